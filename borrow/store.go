package borrow

import (
	"context"
	"time"

	"toolsharer/models"
)

// RequestFilter selects borrow requests. Zero fields do not filter.
type RequestFilter struct {
	ID         string
	ExcludeID  string
	ToolIDs    []string
	BorrowerID string
	// OwnerID matches requests on tools owned by this user.
	OwnerID  string
	Statuses []models.RequestStatus
}

// ToolFilter selects tools. Zero fields do not filter.
type ToolFilter struct {
	IDs           []string
	OwnerID       string
	AvailableOnly bool
}

// Reader is the read side of the store used outside transactions.
// Tools come back with Owner loaded; requests with Tool and Borrower loaded,
// newest first. Events come back oldest first.
type Reader interface {
	FindTools(ctx context.Context, f ToolFilter) ([]models.Tool, error)
	FindRequests(ctx context.Context, f RequestFilter) ([]models.BorrowRequest, error)
	FindEvents(ctx context.Context, requestID string) ([]models.RequestEvent, error)
}

// Store is the persistent store the engine runs against.
type Store interface {
	Reader
	// InTx runs fn as one atomic unit. If fn returns an error nothing it wrote survives.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the view of the store inside one unit of work.
//
// Lookups of a missing row return an error wrapping ErrNotFound. An insert
// that breaks a uniqueness rule returns an error wrapping ErrConflict.
// Lock* reads keep the row locked until the unit ends. Callers lock the tool
// before any of its requests.
type Tx interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
	FindRequests(ctx context.Context, f RequestFilter) ([]models.BorrowRequest, error)
	LockTool(ctx context.Context, id string) (*models.Tool, error)
	LockRequest(ctx context.Context, id string) (*models.BorrowRequest, error)

	InsertRequest(ctx context.Context, r *models.BorrowRequest) error
	// UpdateRequestStatus sets every request matching f to status to and reports how many rows changed.
	UpdateRequestStatus(ctx context.Context, f RequestFilter, to models.RequestStatus, at time.Time) (int64, error)
	// UpdateToolAvailability flips the flag only if it still equals from.
	UpdateToolAvailability(ctx context.Context, toolID string, from, to bool, at time.Time) (bool, error)
	// DeleteTool removes the tool together with its requests and their events.
	DeleteTool(ctx context.Context, toolID string) error
	InsertEvents(ctx context.Context, events ...models.RequestEvent) error
}
