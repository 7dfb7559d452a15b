package borrow

import "context"

type actorKey struct{}

// WithActor tags ctx with the user performing the operation; it ends up in the audit trail.
func WithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorKey{}, userID)
}

func ActorFrom(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(actorKey{}).(string)
	return id, ok && id != ""
}
