package db

import (
	"context"
	"strings"
	"time"

	"toolsharer/borrow"
	"toolsharer/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

func (r *Repo) CreateTool(ctx context.Context, t *models.Tool) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	t.Name = strings.TrimSpace(t.Name)
	if err := r.DB.WithContext(ctx).Omit("Owner").Create(t).Error; err != nil {
		return translate(err)
	}
	return nil
}

// ToolPatch holds the owner-editable fields; nil means unchanged.
type ToolPatch struct {
	Name        *string
	Description *string
	Address     *string
	Lat         *float64
	Lng         *float64
}

func (p ToolPatch) columns() map[string]any {
	cols := map[string]any{}
	if p.Name != nil {
		cols["name"] = strings.TrimSpace(*p.Name)
	}
	if p.Description != nil {
		cols["description"] = *p.Description
	}
	if p.Address != nil {
		cols["address"] = *p.Address
	}
	if p.Lat != nil {
		cols["lat"] = *p.Lat
	}
	if p.Lng != nil {
		cols["lng"] = *p.Lng
	}
	return cols
}

// UpdateTool applies p. Availability is not editable here; it follows the borrow lifecycle.
func (r *Repo) UpdateTool(ctx context.Context, id string, p ToolPatch) (*models.Tool, error) {
	var t models.Tool
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&t, "id = ?", id).Error; err != nil {
			return translate(err)
		}
		cols := p.columns()
		if len(cols) == 0 {
			return nil
		}
		cols["updated_at"] = time.Now().UTC()
		if err := tx.Model(&models.Tool{}).Where("id = ?", id).Updates(cols).Error; err != nil {
			return err
		}
		return tx.First(&t, "id = ?", id).Error
	})
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// FindTools returns tools newest first with their owner loaded.
func (r *Repo) FindTools(ctx context.Context, f borrow.ToolFilter) ([]models.Tool, error) {
	q := r.DB.WithContext(ctx).Model(&models.Tool{}).Preload("Owner").Order("created_at DESC")
	if len(f.IDs) > 0 {
		q = q.Where("id IN ?", f.IDs)
	}
	if f.OwnerID != "" {
		q = q.Where("owner_id = ?", f.OwnerID)
	}
	if f.AvailableOnly {
		q = q.Where("is_available = ?", true)
	}
	var ts []models.Tool
	if err := q.Find(&ts).Error; err != nil {
		return nil, err
	}
	return ts, nil
}
