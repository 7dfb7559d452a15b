// Package borrow is the borrow lifecycle engine: borrow requests move through
// PENDING, APPROVED, DECLINED, CANCELLED and RETURNED, and tool availability
// follows them. Every operation checks its preconditions and writes its
// effects inside one Store transaction.
package borrow

import (
	"context"
	"errors"
	"strings"
	"time"

	"toolsharer/jsonlog"
	"toolsharer/models"

	"github.com/google/uuid"
)

var (
	pendingOnly  = []models.RequestStatus{models.StatusPending}
	approvedOnly = []models.RequestStatus{models.StatusApproved}
)

type Engine struct {
	store  Store
	clock  Clock
	logger *jsonlog.Logger
}

func NewEngine(store Store, clock Clock, logger *jsonlog.Logger) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = jsonlog.Discard()
	}
	return &Engine{store: store, clock: clock, logger: logger}
}

// Today is the current calendar date according to the engine's clock.
func (e *Engine) Today() time.Time { return DateOf(e.clock.Now()) }

type CreateInput struct {
	ToolID     string
	BorrowerID string
	Message    *string
	StartDate  *time.Time
	DueDate    *time.Time
}

// CreateRequest files a PENDING request for a tool. The tool itself is not changed.
func (e *Engine) CreateRequest(ctx context.Context, in CreateInput) (*RequestView, error) {
	var created models.BorrowRequest
	err := e.store.InTx(ctx, func(tx Tx) error {
		tool, err := tx.LockTool(ctx, in.ToolID)
		if err != nil {
			return missing(err, reasonToolNotFound)
		}
		if !tool.IsAvailable {
			return conflict(reasonToolUnavailable)
		}
		borrower, err := tx.FindUser(ctx, in.BorrowerID)
		if err != nil {
			return missing(err, reasonBorrowerNotFound)
		}
		if tool.OwnerID == borrower.ID {
			return conflict(reasonOwnRequest)
		}
		open, err := tx.FindRequests(ctx, RequestFilter{
			ToolIDs:    []string{tool.ID},
			BorrowerID: borrower.ID,
			Statuses:   pendingOnly,
		})
		if err != nil {
			return err
		}
		if len(open) > 0 {
			return conflict(reasonDuplicatePending)
		}
		start, due := datePtr(in.StartDate), datePtr(in.DueDate)
		if start != nil && due != nil && due.Before(*start) {
			return invalid(reasonDueBeforeStart)
		}

		now := e.clock.Now().UTC()
		created = models.BorrowRequest{
			ID:         uuid.NewString(),
			ToolID:     tool.ID,
			BorrowerID: borrower.ID,
			Message:    normalizeMessage(in.Message),
			StartDate:  start,
			DueDate:    due,
			Status:     models.StatusPending,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if err := tx.InsertRequest(ctx, &created); err != nil {
			// the partial unique index caught a concurrent duplicate
			if errors.Is(err, ErrConflict) {
				return conflict(reasonDuplicatePending)
			}
			return err
		}
		created.Tool, created.Borrower = tool, borrower
		return tx.InsertEvents(ctx, e.event(ctx, created, ActionCreate, "", models.StatusPending, now))
	})
	if err != nil {
		return nil, err
	}
	e.logger.PrintInfo("borrow request created", map[string]string{
		"request_id":  created.ID,
		"tool_id":     created.ToolID,
		"borrower_id": created.BorrowerID,
	})
	v := NewRequestView(created, e.Today())
	return &v, nil
}

// Approve approves a pending request, marks its tool unavailable and declines
// every other pending request on the same tool, all in one unit.
func (e *Engine) Approve(ctx context.Context, requestID string) (*RequestView, error) {
	return e.apply(ctx, requestID, ActionApprove)
}

// Decline declines a pending request. The tool is not touched.
func (e *Engine) Decline(ctx context.Context, requestID string) (*RequestView, error) {
	return e.apply(ctx, requestID, ActionDecline)
}

// Cancel withdraws a pending request on behalf of its borrower. The tool is not touched.
func (e *Engine) Cancel(ctx context.Context, requestID string) (*RequestView, error) {
	return e.apply(ctx, requestID, ActionCancel)
}

// Return closes an approved request and makes its tool available again.
func (e *Engine) Return(ctx context.Context, requestID string) (*RequestView, error) {
	return e.apply(ctx, requestID, ActionReturn)
}

func (e *Engine) apply(ctx context.Context, requestID string, action Action) (*RequestView, error) {
	var (
		out        models.BorrowRequest
		superseded []string
	)
	err := e.store.InTx(ctx, func(tx Tx) error {
		found, err := tx.FindRequests(ctx, RequestFilter{ID: requestID})
		if err != nil {
			return err
		}
		if len(found) == 0 {
			return notFound(reasonRequestNotFound)
		}
		if _, err := Next(found[0].Status, action); err != nil {
			return err
		}

		// tool first, then the request: the same order create and toggle use
		tool, err := tx.LockTool(ctx, found[0].ToolID)
		if err != nil {
			return missing(err, reasonToolNotFound)
		}
		req, err := tx.LockRequest(ctx, requestID)
		if err != nil {
			return missing(err, reasonRequestNotFound)
		}
		to, err := Next(req.Status, action)
		if err != nil {
			return err
		}

		now := e.clock.Now().UTC()
		switch action {
		case ActionApprove:
			if !tool.IsAvailable {
				return conflict(reasonToolUnavailable)
			}
			if err := e.setAvailability(ctx, tx, tool, false, now); err != nil {
				return err
			}
		case ActionReturn:
			if err := e.setAvailability(ctx, tx, tool, true, now); err != nil {
				return err
			}
		}

		if err := e.move(ctx, tx, req, action, to, now); err != nil {
			return err
		}
		if action == ActionApprove {
			if superseded, err = e.supersede(ctx, tx, req, now); err != nil {
				return err
			}
		}

		out = *req
		out.Tool = tool
		if found[0].Borrower != nil {
			out.Borrower = found[0].Borrower
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	props := map[string]string{
		"request_id": out.ID,
		"tool_id":    out.ToolID,
		"status":     string(out.Status),
	}
	if len(superseded) > 0 {
		props["declined"] = strings.Join(superseded, ",")
	}
	e.logger.PrintInfo("borrow request "+string(action), props)

	v := NewRequestView(out, e.Today())
	return &v, nil
}

// move performs one guarded status write and records it.
func (e *Engine) move(ctx context.Context, tx Tx, req *models.BorrowRequest, action Action, to models.RequestStatus, now time.Time) error {
	from := req.Status
	n, err := tx.UpdateRequestStatus(ctx, RequestFilter{
		ID:       req.ID,
		Statuses: []models.RequestStatus{from},
	}, to, now)
	if err != nil {
		return err
	}
	if n != 1 {
		return conflict(reasonRequestChanged)
	}
	req.Status = to
	req.UpdatedAt = now
	return tx.InsertEvents(ctx, e.event(ctx, *req, action, from, to, now))
}

// supersede declines all other pending requests on the approved request's tool.
func (e *Engine) supersede(ctx context.Context, tx Tx, approved *models.BorrowRequest, now time.Time) ([]string, error) {
	siblings := RequestFilter{
		ToolIDs:   []string{approved.ToolID},
		ExcludeID: approved.ID,
		Statuses:  pendingOnly,
	}
	pending, err := tx.FindRequests(ctx, siblings)
	if err != nil || len(pending) == 0 {
		return nil, err
	}
	n, err := tx.UpdateRequestStatus(ctx, siblings, models.StatusDeclined, now)
	if err != nil {
		return nil, err
	}
	// the tool lock keeps new pending siblings out, so the counts must agree
	if n != int64(len(pending)) {
		return nil, conflict(reasonRequestChanged)
	}

	ids := make([]string, 0, len(pending))
	events := make([]models.RequestEvent, 0, len(pending))
	for _, r := range pending {
		ids = append(ids, r.ID)
		ev := e.event(ctx, r, ActionSupersede, models.StatusPending, models.StatusDeclined, now)
		ev.ActorID = nil
		events = append(events, ev)
	}
	return ids, tx.InsertEvents(ctx, events...)
}

func (e *Engine) setAvailability(ctx context.Context, tx Tx, tool *models.Tool, to bool, now time.Time) error {
	ok, err := tx.UpdateToolAvailability(ctx, tool.ID, tool.IsAvailable, to, now)
	if err != nil {
		return err
	}
	if !ok {
		return conflict(reasonAvailabilityMoved)
	}
	tool.IsAvailable = to
	tool.UpdatedAt = now
	return nil
}

// ToggleAvailability is the owner's manual override. It is refused while the tool is lent out.
func (e *Engine) ToggleAvailability(ctx context.Context, toolID string) (*models.Tool, error) {
	var out models.Tool
	err := e.store.InTx(ctx, func(tx Tx) error {
		tool, err := tx.LockTool(ctx, toolID)
		if err != nil {
			return missing(err, reasonToolNotFound)
		}
		if err := e.ensureNotLent(ctx, tx, tool.ID, reasonToolBorrowed); err != nil {
			return err
		}
		if err := e.setAvailability(ctx, tx, tool, !tool.IsAvailable, e.clock.Now().UTC()); err != nil {
			return err
		}
		out = *tool
		return nil
	})
	if err != nil {
		return nil, err
	}
	e.logger.PrintInfo("tool availability toggled", map[string]string{
		"tool_id":   out.ID,
		"available": boolString(out.IsAvailable),
	})
	return &out, nil
}

// DeleteTool removes a tool and its request history. It is refused while the tool is lent out.
func (e *Engine) DeleteTool(ctx context.Context, toolID string) error {
	err := e.store.InTx(ctx, func(tx Tx) error {
		tool, err := tx.LockTool(ctx, toolID)
		if err != nil {
			return missing(err, reasonToolNotFound)
		}
		if err := e.ensureNotLent(ctx, tx, tool.ID, reasonDeleteBorrowed); err != nil {
			return err
		}
		return tx.DeleteTool(ctx, tool.ID)
	})
	if err != nil {
		return err
	}
	e.logger.PrintInfo("tool deleted", map[string]string{"tool_id": toolID})
	return nil
}

func (e *Engine) ensureNotLent(ctx context.Context, tx Tx, toolID, reason string) error {
	approved, err := tx.FindRequests(ctx, RequestFilter{ToolIDs: []string{toolID}, Statuses: approvedOnly})
	if err != nil {
		return err
	}
	if len(approved) > 0 {
		return conflict(reason)
	}
	return nil
}

func (e *Engine) event(ctx context.Context, r models.BorrowRequest, action Action, from, to models.RequestStatus, at time.Time) models.RequestEvent {
	ev := models.RequestEvent{
		ID:         uuid.NewString(),
		RequestID:  r.ID,
		ToolID:     r.ToolID,
		Action:     string(action),
		FromStatus: from,
		ToStatus:   to,
		CreatedAt:  at,
	}
	if actor, ok := ActorFrom(ctx); ok {
		ev.ActorID = &actor
	}
	return ev
}

func normalizeMessage(m *string) *string {
	if m == nil {
		return nil
	}
	s := strings.TrimSpace(*m)
	if s == "" {
		return nil
	}
	return &s
}

func boolString(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
