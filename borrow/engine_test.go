package borrow_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"toolsharer/borrow"
	"toolsharer/models"
)

var now = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

type fixture struct {
	store  *memStore
	engine *borrow.Engine
	ctx    context.Context
	tool   models.Tool
}

const (
	ownerID = "00000000-0000-0000-0000-00000000000a"
	aliceID = "00000000-0000-0000-0000-00000000000b"
	bobID   = "00000000-0000-0000-0000-00000000000c"
	carolID = "00000000-0000-0000-0000-00000000000d"
	toolID  = "00000000-0000-0000-0000-0000000000f1"
)

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := newMemStore()
	for _, u := range []models.User{
		{ID: ownerID, Email: "owner@example.com"},
		{ID: aliceID, Email: "alice@example.com"},
		{ID: bobID, Email: "bob@example.com"},
		{ID: carolID, Email: "carol@example.com"},
	} {
		s.addUser(u)
	}
	tool := models.Tool{ID: toolID, Name: "Drill", OwnerID: ownerID, IsAvailable: true}
	s.addTool(tool)

	return &fixture{
		store:  s,
		engine: borrow.NewEngine(s, borrow.FixedClock(now), nil),
		ctx:    context.Background(),
		tool:   tool,
	}
}

func (f *fixture) create(t *testing.T, borrowerID string) *borrow.RequestView {
	t.Helper()
	r, err := f.engine.CreateRequest(f.ctx, borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: borrowerID})
	require.NoError(t, err)
	return r
}

// assertInvariants checks the two storage rules and the availability rule for every tool.
func (f *fixture) assertInvariants(t *testing.T) {
	t.Helper()
	f.store.mu.Lock()
	defer f.store.mu.Unlock()

	approved := map[string]int{}
	pending := map[[2]string]int{}
	for _, r := range f.store.requests {
		switch r.Status {
		case models.StatusApproved:
			approved[r.ToolID]++
		case models.StatusPending:
			pending[[2]string{r.ToolID, r.BorrowerID}]++
		}
	}
	for id, tool := range f.store.tools {
		assert.LessOrEqual(t, approved[id], 1, "tool %s has several approved requests", id)
		assert.Equal(t, approved[id] == 1, !tool.IsAvailable, "tool %s availability out of sync", id)
	}
	for pair, n := range pending {
		assert.Equal(t, 1, n, "pair %v has several pending requests", pair)
	}
}

func Test_CreateRequest_Success(t *testing.T) {
	f := newFixture(t)
	start, due := now, now.AddDate(0, 0, 7)

	r, err := f.engine.CreateRequest(f.ctx, borrow.CreateInput{
		ToolID:     f.tool.ID,
		BorrowerID: aliceID,
		Message:    strp("  for the weekend  "),
		StartDate:  &start,
		DueDate:    &due,
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	require.NotNil(t, r.Message)
	assert.Equal(t, "for the weekend", *r.Message)
	assert.Equal(t, time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC), *r.StartDate)
	assert.Equal(t, 7, r.DaysUntilDue)
	require.NotNil(t, r.Tool)
	require.NotNil(t, r.Borrower)
	assert.Equal(t, "alice@example.com", r.Borrower.Email)

	assert.True(t, f.store.tool(f.tool.ID).IsAvailable)
	assert.Equal(t, models.StatusPending, f.store.request(r.ID).Status)
	f.assertInvariants(t)
}

func Test_CreateRequest_Rejected(t *testing.T) {
	cases := []struct {
		name    string
		arrange func(f *fixture)
		in      func(f *fixture) borrow.CreateInput
		kind    error
		reason  string
	}{
		{
			name: "tool missing",
			in: func(f *fixture) borrow.CreateInput {
				return borrow.CreateInput{ToolID: "nope", BorrowerID: aliceID}
			},
			kind:   borrow.ErrNotFound,
			reason: "tool not found",
		},
		{
			name: "tool unavailable is checked before the borrower",
			arrange: func(f *fixture) {
				f.tool.IsAvailable = false
				f.store.addTool(f.tool)
			},
			in: func(f *fixture) borrow.CreateInput {
				return borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: "nobody"}
			},
			kind:   borrow.ErrConflict,
			reason: "tool is not available",
		},
		{
			name: "borrower missing",
			in: func(f *fixture) borrow.CreateInput {
				return borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: "nobody"}
			},
			kind:   borrow.ErrNotFound,
			reason: "borrower not found",
		},
		{
			name: "owner asks for own tool",
			in: func(f *fixture) borrow.CreateInput {
				return borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: ownerID}
			},
			kind:   borrow.ErrConflict,
			reason: "owner cannot request own tool",
		},
		{
			name: "pending request already exists",
			arrange: func(f *fixture) {
				_, err := f.engine.CreateRequest(f.ctx, borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: aliceID})
				if err != nil {
					panic(err)
				}
			},
			in: func(f *fixture) borrow.CreateInput {
				return borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: aliceID}
			},
			kind:   borrow.ErrConflict,
			reason: "you already have a pending request for this tool",
		},
		{
			name: "due before start",
			in: func(f *fixture) borrow.CreateInput {
				start, due := now.AddDate(0, 0, 3), now.AddDate(0, 0, 2)
				return borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: aliceID, StartDate: &start, DueDate: &due}
			},
			kind:   borrow.ErrValidation,
			reason: "due_date cannot be before start_date",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			if tc.arrange != nil {
				tc.arrange(f)
			}
			before := f.store.requestCount()

			_, err := f.engine.CreateRequest(f.ctx, tc.in(f))

			require.ErrorIs(t, err, tc.kind)
			assert.EqualError(t, err, tc.reason)
			assert.Equal(t, before, f.store.requestCount())
		})
	}
}

func Test_CreateRequest_Permissive_OnPastStartAndSameDay(t *testing.T) {
	f := newFixture(t)
	start := now.AddDate(0, 0, -10)
	due := start

	r, err := f.engine.CreateRequest(f.ctx, borrow.CreateInput{
		ToolID: f.tool.ID, BorrowerID: aliceID, StartDate: &start, DueDate: &due,
	})

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, r.Status)
	assert.False(t, r.IsOverdue)
}

func Test_CreateRequest_AllowedAgain_AfterPendingIsClosed(t *testing.T) {
	f := newFixture(t)
	first := f.create(t, aliceID)
	_, err := f.engine.Cancel(f.ctx, first.ID)
	require.NoError(t, err)

	second := f.create(t, aliceID)

	assert.NotEqual(t, first.ID, second.ID)
	f.assertInvariants(t)
}

func Test_Approve_DeclinesSiblings(t *testing.T) {
	f := newFixture(t)
	r1 := f.create(t, aliceID)
	r2 := f.create(t, bobID)
	r3 := f.create(t, carolID)

	got, err := f.engine.Approve(f.ctx, r1.ID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, got.Status)
	assert.Equal(t, models.StatusApproved, f.store.request(r1.ID).Status)
	assert.Equal(t, models.StatusDeclined, f.store.request(r2.ID).Status)
	assert.Equal(t, models.StatusDeclined, f.store.request(r3.ID).Status)
	assert.False(t, f.store.tool(f.tool.ID).IsAvailable)
	f.assertInvariants(t)
}

func Test_Approve_LeavesOtherToolsAlone(t *testing.T) {
	f := newFixture(t)
	other := models.Tool{ID: "00000000-0000-0000-0000-0000000000f2", Name: "Saw", OwnerID: ownerID, IsAvailable: true}
	f.store.addTool(other)
	r1 := f.create(t, aliceID)
	onOther, err := f.engine.CreateRequest(f.ctx, borrow.CreateInput{ToolID: other.ID, BorrowerID: bobID})
	require.NoError(t, err)

	_, err = f.engine.Approve(f.ctx, r1.ID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, f.store.request(onOther.ID).Status)
	assert.True(t, f.store.tool(other.ID).IsAvailable)
}

func Test_Approve_Conflict_WhenToolAlreadyUnavailable(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, aliceID)
	f.tool.IsAvailable = false
	f.store.addTool(f.tool)

	_, err := f.engine.Approve(f.ctx, r.ID)

	require.ErrorIs(t, err, borrow.ErrConflict)
	assert.Equal(t, models.StatusPending, f.store.request(r.ID).Status)
	assert.False(t, f.store.tool(f.tool.ID).IsAvailable)
}

func Test_Approve_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.Approve(f.ctx, "missing")

	require.ErrorIs(t, err, borrow.ErrNotFound)
	assert.EqualError(t, err, "borrow request not found")
}

func Test_Return_FreesTool_AndAllowsNewRequests(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, aliceID)
	_, err := f.engine.Approve(f.ctx, r.ID)
	require.NoError(t, err)

	got, err := f.engine.Return(f.ctx, r.ID)

	require.NoError(t, err)
	assert.Equal(t, models.StatusReturned, got.Status)
	assert.True(t, f.store.tool(f.tool.ID).IsAvailable)
	f.assertInvariants(t)

	next, err := f.engine.CreateRequest(f.ctx, borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: bobID})
	require.NoError(t, err)
	assert.Equal(t, models.StatusPending, next.Status)
}

func Test_Return_Conflict_WhenNotApproved(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, aliceID)

	_, err := f.engine.Return(f.ctx, r.ID)

	require.ErrorIs(t, err, borrow.ErrConflict)
	assert.EqualError(t, err, "only approved requests can be returned")
	assert.Equal(t, models.StatusPending, f.store.request(r.ID).Status)
	assert.True(t, f.store.tool(f.tool.ID).IsAvailable)
}

func Test_DeclineAndCancel_DoNotTouchTool(t *testing.T) {
	for _, tc := range []struct {
		name string
		op   func(e *borrow.Engine, ctx context.Context, id string) (*borrow.RequestView, error)
		want models.RequestStatus
	}{
		{"decline", (*borrow.Engine).Decline, models.StatusDeclined},
		{"cancel", (*borrow.Engine).Cancel, models.StatusCancelled},
	} {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			r := f.create(t, aliceID)
			toolBefore := f.store.tool(f.tool.ID)

			got, err := tc.op(f.engine, f.ctx, r.ID)

			require.NoError(t, err)
			assert.Equal(t, tc.want, got.Status)
			assert.Equal(t, toolBefore, f.store.tool(f.tool.ID))
		})
	}
}

func Test_TerminalRequests_RejectEveryPendingOnlyAction(t *testing.T) {
	type op func(e *borrow.Engine, ctx context.Context, id string) (*borrow.RequestView, error)
	ops := map[string]op{
		"approve": (*borrow.Engine).Approve,
		"decline": (*borrow.Engine).Decline,
		"cancel":  (*borrow.Engine).Cancel,
	}
	closers := map[string]func(f *fixture, id string){
		"declined":  func(f *fixture, id string) { _, _ = f.engine.Decline(f.ctx, id) },
		"cancelled": func(f *fixture, id string) { _, _ = f.engine.Cancel(f.ctx, id) },
		"approved":  func(f *fixture, id string) { _, _ = f.engine.Approve(f.ctx, id) },
		"returned": func(f *fixture, id string) {
			_, _ = f.engine.Approve(f.ctx, id)
			_, _ = f.engine.Return(f.ctx, id)
		},
	}

	for state, closeFn := range closers {
		for name, call := range ops {
			t.Run(state+"/"+name, func(t *testing.T) {
				f := newFixture(t)
				r := f.create(t, aliceID)
				closeFn(f, r.ID)
				reqBefore := f.store.request(r.ID)
				toolBefore := f.store.tool(f.tool.ID)
				eventsBefore := len(f.store.allEvents())

				_, err := call(f.engine, f.ctx, r.ID)

				require.ErrorIs(t, err, borrow.ErrConflict)
				assert.Equal(t, reqBefore, f.store.request(r.ID))
				assert.Equal(t, toolBefore, f.store.tool(f.tool.ID))
				assert.Len(t, f.store.allEvents(), eventsBefore)
			})
		}
	}
}

func Test_Approve_RollsBack_WhenCascadeFails(t *testing.T) {
	f := newFixture(t)
	r1 := f.create(t, aliceID)
	r2 := f.create(t, bobID)
	eventsBefore := len(f.store.allEvents())
	// the first status write approves r1, the second declines the siblings
	f.store.failOn("UpdateRequestStatus", 2)

	_, err := f.engine.Approve(f.ctx, r1.ID)

	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, models.StatusPending, f.store.request(r1.ID).Status)
	assert.Equal(t, models.StatusPending, f.store.request(r2.ID).Status)
	assert.True(t, f.store.tool(f.tool.ID).IsAvailable)
	assert.Len(t, f.store.allEvents(), eventsBefore)
	f.assertInvariants(t)
}

func Test_Return_RollsBack_WhenEventWriteFails(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, aliceID)
	_, err := f.engine.Approve(f.ctx, r.ID)
	require.NoError(t, err)
	f.store.failOn("InsertEvents", 1)

	_, err = f.engine.Return(f.ctx, r.ID)

	require.ErrorIs(t, err, errInjected)
	assert.Equal(t, models.StatusApproved, f.store.request(r.ID).Status)
	assert.False(t, f.store.tool(f.tool.ID).IsAvailable)
}

func Test_ConcurrentApprovals_OnlyOneWins(t *testing.T) {
	f := newFixture(t)
	ids := []string{f.create(t, aliceID).ID, f.create(t, bobID).ID, f.create(t, carolID).ID}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for _, id := range ids {
		id := id
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Approve(f.ctx, id)
			if err == nil {
				mu.Lock()
				successes++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, borrow.ErrConflict)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.False(t, f.store.tool(f.tool.ID).IsAvailable)
	f.assertInvariants(t)
}

func Test_ToggleAvailability(t *testing.T) {
	f := newFixture(t)

	got, err := f.engine.ToggleAvailability(f.ctx, f.tool.ID)
	require.NoError(t, err)
	assert.False(t, got.IsAvailable)

	_, err = f.engine.CreateRequest(f.ctx, borrow.CreateInput{ToolID: f.tool.ID, BorrowerID: aliceID})
	require.ErrorIs(t, err, borrow.ErrConflict)

	got, err = f.engine.ToggleAvailability(f.ctx, f.tool.ID)
	require.NoError(t, err)
	assert.True(t, got.IsAvailable)
}

func Test_ToggleAvailability_Conflict_WhileBorrowed(t *testing.T) {
	f := newFixture(t)
	r := f.create(t, aliceID)
	_, err := f.engine.Approve(f.ctx, r.ID)
	require.NoError(t, err)

	_, err = f.engine.ToggleAvailability(f.ctx, f.tool.ID)

	require.ErrorIs(t, err, borrow.ErrConflict)
	assert.EqualError(t, err, "cannot change availability while tool is borrowed")
	assert.False(t, f.store.tool(f.tool.ID).IsAvailable)
	f.assertInvariants(t)
}

func Test_ToggleAvailability_NotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.engine.ToggleAvailability(f.ctx, "missing")

	require.ErrorIs(t, err, borrow.ErrNotFound)
}

func Test_DeleteTool(t *testing.T) {
	t.Run("removes requests and history", func(t *testing.T) {
		f := newFixture(t)
		r := f.create(t, aliceID)

		require.NoError(t, f.engine.DeleteTool(f.ctx, f.tool.ID))

		assert.Zero(t, f.store.requestCount())
		assert.Empty(t, f.store.allEvents())
		_, err := f.engine.GetRequest(f.ctx, r.ID)
		assert.ErrorIs(t, err, borrow.ErrNotFound)
	})

	t.Run("refused while borrowed", func(t *testing.T) {
		f := newFixture(t)
		r := f.create(t, aliceID)
		_, err := f.engine.Approve(f.ctx, r.ID)
		require.NoError(t, err)

		err = f.engine.DeleteTool(f.ctx, f.tool.ID)

		require.ErrorIs(t, err, borrow.ErrConflict)
		assert.Equal(t, 1, f.store.requestCount())
	})
}

func Test_Events_RecordActorAndCascade(t *testing.T) {
	f := newFixture(t)
	r1 := f.create(t, aliceID)
	r2 := f.create(t, bobID)

	_, err := f.engine.Approve(borrow.WithActor(f.ctx, ownerID), r1.ID)
	require.NoError(t, err)

	h1, err := f.engine.History(f.ctx, r1.ID)
	require.NoError(t, err)
	require.Len(t, h1, 2)
	assert.Equal(t, string(borrow.ActionCreate), h1[0].Action)
	assert.Nil(t, h1[0].ActorID)
	assert.Equal(t, string(borrow.ActionApprove), h1[1].Action)
	require.NotNil(t, h1[1].ActorID)
	assert.Equal(t, ownerID, *h1[1].ActorID)
	assert.Equal(t, models.StatusPending, h1[1].FromStatus)
	assert.Equal(t, models.StatusApproved, h1[1].ToStatus)

	h2, err := f.engine.History(f.ctx, r2.ID)
	require.NoError(t, err)
	require.Len(t, h2, 2)
	assert.Equal(t, string(borrow.ActionSupersede), h2[1].Action)
	assert.Nil(t, h2[1].ActorID)
	assert.Equal(t, models.StatusDeclined, h2[1].ToStatus)
}
