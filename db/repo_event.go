package db

import (
	"context"
	"fmt"

	"toolsharer/models"
)

// FindEvents returns the audit trail of one request, oldest first.
func (r *Repo) FindEvents(ctx context.Context, requestID string) ([]models.RequestEvent, error) {
	var evs []models.RequestEvent
	if err := r.DB.WithContext(ctx).
		Where("request_id = ?", requestID).
		Order("created_at ASC").
		Find(&evs).Error; err != nil {
		return nil, fmt.Errorf("list request events: %w", err)
	}
	return evs, nil
}
