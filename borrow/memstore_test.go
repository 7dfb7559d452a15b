package borrow_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"toolsharer/borrow"
	"toolsharer/models"
)

var errInjected = errors.New("injected store failure")

// memStore is a borrow.Store over maps. A unit of work holds the mutex for its
// whole run and is restored from a snapshot when it fails.
type memStore struct {
	mu       sync.Mutex
	users    map[string]models.User
	tools    map[string]models.Tool
	requests map[string]models.BorrowRequest
	order    []string
	events   []models.RequestEvent

	failMethod string
	failAt     int
	calls      map[string]int
}

func newMemStore() *memStore {
	return &memStore{
		users:    map[string]models.User{},
		tools:    map[string]models.Tool{},
		requests: map[string]models.BorrowRequest{},
		calls:    map[string]int{},
	}
}

// failOn makes the n-th call of method from now on fail.
func (s *memStore) failOn(method string, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failMethod, s.failAt = method, n
	s.calls = map[string]int{}
}

func (s *memStore) hit(method string) error {
	s.calls[method]++
	if method == s.failMethod && s.calls[method] == s.failAt {
		return fmt.Errorf("%s: %w", method, errInjected)
	}
	return nil
}

func (s *memStore) addUser(u models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

func (s *memStore) addTool(t models.Tool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tools[t.ID] = t
}

func (s *memStore) tool(id string) models.Tool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tools[id]
}

func (s *memStore) request(id string) models.BorrowRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.requests[id]
}

func (s *memStore) requestCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.requests)
}

func (s *memStore) allEvents() []models.RequestEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.events)
}

type memSnapshot struct {
	tools    map[string]models.Tool
	requests map[string]models.BorrowRequest
	order    []string
	events   []models.RequestEvent
}

func (s *memStore) snapshot() memSnapshot {
	snap := memSnapshot{
		tools:    make(map[string]models.Tool, len(s.tools)),
		requests: make(map[string]models.BorrowRequest, len(s.requests)),
		order:    slices.Clone(s.order),
		events:   slices.Clone(s.events),
	}
	for k, v := range s.tools {
		snap.tools[k] = v
	}
	for k, v := range s.requests {
		snap.requests[k] = v
	}
	return snap
}

func (s *memStore) restore(snap memSnapshot) {
	s.tools, s.requests, s.order, s.events = snap.tools, snap.requests, snap.order, snap.events
}

func (s *memStore) InTx(ctx context.Context, fn func(tx borrow.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.snapshot()
	if err := fn(memTx{s}); err != nil {
		s.restore(snap)
		return err
	}
	return nil
}

func (s *memStore) FindTools(ctx context.Context, f borrow.ToolFilter) ([]models.Tool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("FindTools"); err != nil {
		return nil, err
	}
	var out []models.Tool
	for _, t := range s.tools {
		if len(f.IDs) > 0 && !slices.Contains(f.IDs, t.ID) {
			continue
		}
		if f.OwnerID != "" && t.OwnerID != f.OwnerID {
			continue
		}
		if f.AvailableOnly && !t.IsAvailable {
			continue
		}
		if owner, ok := s.users[t.OwnerID]; ok {
			t.Owner = &owner
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) FindRequests(ctx context.Context, f borrow.RequestFilter) ([]models.BorrowRequest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.hit("FindRequests"); err != nil {
		return nil, err
	}
	return s.findRequests(f), nil
}

func (s *memStore) FindEvents(ctx context.Context, requestID string) ([]models.RequestEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.RequestEvent
	for _, ev := range s.events {
		if ev.RequestID == requestID {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (s *memStore) matches(r models.BorrowRequest, f borrow.RequestFilter) bool {
	switch {
	case f.ID != "" && r.ID != f.ID:
		return false
	case f.ExcludeID != "" && r.ID == f.ExcludeID:
		return false
	case len(f.ToolIDs) > 0 && !slices.Contains(f.ToolIDs, r.ToolID):
		return false
	case f.BorrowerID != "" && r.BorrowerID != f.BorrowerID:
		return false
	case f.OwnerID != "" && s.tools[r.ToolID].OwnerID != f.OwnerID:
		return false
	case len(f.Statuses) > 0 && !slices.Contains(f.Statuses, r.Status):
		return false
	}
	return true
}

func (s *memStore) findRequests(f borrow.RequestFilter) []models.BorrowRequest {
	var out []models.BorrowRequest
	for i := len(s.order) - 1; i >= 0; i-- {
		r := s.requests[s.order[i]]
		if !s.matches(r, f) {
			continue
		}
		if t, ok := s.tools[r.ToolID]; ok {
			r.Tool = &t
		}
		if u, ok := s.users[r.BorrowerID]; ok {
			r.Borrower = &u
		}
		out = append(out, r)
	}
	return out
}

// checkUnique mirrors the partial unique indexes of the SQL schema.
func (s *memStore) checkUnique(r models.BorrowRequest) error {
	for _, o := range s.requests {
		if o.ID == r.ID || o.ToolID != r.ToolID || o.Status != r.Status {
			continue
		}
		if r.Status == models.StatusApproved {
			return fmt.Errorf("approved request exists: %w", borrow.ErrConflict)
		}
		if r.Status == models.StatusPending && o.BorrowerID == r.BorrowerID {
			return fmt.Errorf("pending request exists: %w", borrow.ErrConflict)
		}
	}
	return nil
}

type memTx struct{ s *memStore }

func (tx memTx) FindUser(ctx context.Context, id string) (*models.User, error) {
	if err := tx.s.hit("FindUser"); err != nil {
		return nil, err
	}
	u, ok := tx.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, borrow.ErrNotFound)
	}
	return &u, nil
}

func (tx memTx) FindRequests(ctx context.Context, f borrow.RequestFilter) ([]models.BorrowRequest, error) {
	if err := tx.s.hit("FindRequests"); err != nil {
		return nil, err
	}
	return tx.s.findRequests(f), nil
}

func (tx memTx) LockTool(ctx context.Context, id string) (*models.Tool, error) {
	if err := tx.s.hit("LockTool"); err != nil {
		return nil, err
	}
	t, ok := tx.s.tools[id]
	if !ok {
		return nil, fmt.Errorf("tool %s: %w", id, borrow.ErrNotFound)
	}
	return &t, nil
}

func (tx memTx) LockRequest(ctx context.Context, id string) (*models.BorrowRequest, error) {
	if err := tx.s.hit("LockRequest"); err != nil {
		return nil, err
	}
	r, ok := tx.s.requests[id]
	if !ok {
		return nil, fmt.Errorf("request %s: %w", id, borrow.ErrNotFound)
	}
	return &r, nil
}

func (tx memTx) InsertRequest(ctx context.Context, r *models.BorrowRequest) error {
	if err := tx.s.hit("InsertRequest"); err != nil {
		return err
	}
	if err := tx.s.checkUnique(*r); err != nil {
		return err
	}
	stored := *r
	stored.Tool, stored.Borrower = nil, nil
	tx.s.requests[r.ID] = stored
	tx.s.order = append(tx.s.order, r.ID)
	return nil
}

func (tx memTx) UpdateRequestStatus(ctx context.Context, f borrow.RequestFilter, to models.RequestStatus, at time.Time) (int64, error) {
	if err := tx.s.hit("UpdateRequestStatus"); err != nil {
		return 0, err
	}
	var n int64
	for id, r := range tx.s.requests {
		if !tx.s.matches(r, f) {
			continue
		}
		r.Status, r.UpdatedAt = to, at
		if err := tx.s.checkUnique(r); err != nil {
			return 0, err
		}
		tx.s.requests[id] = r
		n++
	}
	return n, nil
}

func (tx memTx) UpdateToolAvailability(ctx context.Context, toolID string, from, to bool, at time.Time) (bool, error) {
	if err := tx.s.hit("UpdateToolAvailability"); err != nil {
		return false, err
	}
	t, ok := tx.s.tools[toolID]
	if !ok || t.IsAvailable != from {
		return false, nil
	}
	t.IsAvailable, t.UpdatedAt = to, at
	tx.s.tools[toolID] = t
	return true, nil
}

func (tx memTx) DeleteTool(ctx context.Context, toolID string) error {
	if err := tx.s.hit("DeleteTool"); err != nil {
		return err
	}
	delete(tx.s.tools, toolID)
	kept := tx.s.order[:0:0]
	for _, id := range tx.s.order {
		if tx.s.requests[id].ToolID == toolID {
			delete(tx.s.requests, id)
			continue
		}
		kept = append(kept, id)
	}
	tx.s.order = kept
	tx.s.events = slices.DeleteFunc(tx.s.events, func(ev models.RequestEvent) bool { return ev.ToolID == toolID })
	return nil
}

func (tx memTx) InsertEvents(ctx context.Context, events ...models.RequestEvent) error {
	if err := tx.s.hit("InsertEvents"); err != nil {
		return err
	}
	tx.s.events = append(tx.s.events, events...)
	return nil
}
