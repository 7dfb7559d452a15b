package borrow

import "toolsharer/models"

// Action is an event applied to a borrow request.
type Action string

const (
	ActionCreate  Action = "create"
	ActionApprove Action = "approve"
	ActionDecline Action = "decline"
	ActionCancel  Action = "cancel"
	ActionReturn  Action = "return"
	// ActionSupersede declines a pending request because a sibling on the same tool was approved.
	ActionSupersede Action = "supersede"
)

var transitions = map[models.RequestStatus]map[Action]models.RequestStatus{
	models.StatusPending: {
		ActionApprove:   models.StatusApproved,
		ActionDecline:   models.StatusDeclined,
		ActionCancel:    models.StatusCancelled,
		ActionSupersede: models.StatusDeclined,
	},
	models.StatusApproved: {
		ActionReturn: models.StatusReturned,
	},
}

// Next returns the status a request moves to when action is applied in status from.
// Disallowed moves are Conflict errors; nothing else is ever returned.
func Next(from models.RequestStatus, action Action) (models.RequestStatus, error) {
	if to, ok := transitions[from][action]; ok {
		return to, nil
	}
	if action == ActionReturn {
		return "", conflict(reasonOnlyApproved)
	}
	return "", conflict(reasonOnlyPending)
}
