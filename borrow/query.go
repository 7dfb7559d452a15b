package borrow

import (
	"context"
	"sort"

	"toolsharer/geo"
	"toolsharer/models"
)

var activeStatuses = []models.RequestStatus{models.StatusPending, models.StatusApproved}

func (e *Engine) GetRequest(ctx context.Context, id string) (*RequestView, error) {
	found, err := e.store.FindRequests(ctx, RequestFilter{ID: id})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, notFound(reasonRequestNotFound)
	}
	v := NewRequestView(found[0], e.Today())
	return &v, nil
}

// ListRequests returns matching requests, newest first, annotated for today.
func (e *Engine) ListRequests(ctx context.Context, f RequestFilter) ([]RequestView, error) {
	found, err := e.store.FindRequests(ctx, f)
	if err != nil {
		return nil, err
	}
	today := e.Today()
	out := make([]RequestView, 0, len(found))
	for _, r := range found {
		out = append(out, NewRequestView(r, today))
	}
	return out, nil
}

// History lists the status changes of one request, oldest first.
func (e *Engine) History(ctx context.Context, requestID string) ([]models.RequestEvent, error) {
	found, err := e.store.FindRequests(ctx, RequestFilter{ID: requestID})
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		return nil, notFound(reasonRequestNotFound)
	}
	return e.store.FindEvents(ctx, requestID)
}

// ToolQuery selects tools and the viewer they are projected for.
type ToolQuery struct {
	ToolFilter
	ViewerID string
	// Near restricts results to tools with coordinates and orders them by distance.
	Near *geo.Point
	// RadiusKm drops tools further than this from Near. Zero means no limit.
	RadiusKm float64
}

func (e *Engine) ListTools(ctx context.Context, q ToolQuery) ([]ToolView, error) {
	tools, err := e.store.FindTools(ctx, q.ToolFilter)
	if err != nil {
		return nil, err
	}
	if q.Near != nil {
		tools = within(tools, *q.Near, q.RadiusKm)
	}
	if len(tools) == 0 {
		return []ToolView{}, nil
	}

	ids := make([]string, 0, len(tools))
	for _, t := range tools {
		ids = append(ids, t.ID)
	}
	active, err := e.store.FindRequests(ctx, RequestFilter{ToolIDs: ids, Statuses: activeStatuses})
	if err != nil {
		return nil, err
	}
	byTool := make(map[string][]models.BorrowRequest, len(tools))
	for _, r := range active {
		byTool[r.ToolID] = append(byTool[r.ToolID], r)
	}

	today := e.Today()
	out := make([]ToolView, 0, len(tools))
	for _, t := range tools {
		v := AnnotateTool(t, byTool[t.ID], q.ViewerID, today)
		if q.Near != nil {
			d := geo.DistanceKm(*q.Near, geo.Point{Lat: *t.Lat, Lng: *t.Lng})
			v.DistanceKm = &d
		}
		out = append(out, v)
	}
	if q.Near != nil {
		sort.SliceStable(out, func(i, j int) bool { return *out[i].DistanceKm < *out[j].DistanceKm })
	}
	return out, nil
}

func (e *Engine) GetTool(ctx context.Context, id, viewerID string) (*ToolView, error) {
	views, err := e.ListTools(ctx, ToolQuery{ToolFilter: ToolFilter{IDs: []string{id}}, ViewerID: viewerID})
	if err != nil {
		return nil, err
	}
	if len(views) == 0 {
		return nil, notFound(reasonToolNotFound)
	}
	return &views[0], nil
}

func within(tools []models.Tool, from geo.Point, radiusKm float64) []models.Tool {
	kept := tools[:0:0]
	for _, t := range tools {
		if !t.HasLocation() {
			continue
		}
		if radiusKm > 0 && geo.DistanceKm(from, geo.Point{Lat: *t.Lat, Lng: *t.Lng}) > radiusKm {
			continue
		}
		kept = append(kept, t)
	}
	return kept
}
