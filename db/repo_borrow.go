package db

import (
	"context"
	"time"

	"toolsharer/borrow"
	"toolsharer/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var _ borrow.Store = (*Repo)(nil)

// InTx 在一个数据库事务里执行整个借用操作，fn 出错则整体回滚
func (r *Repo) InTx(ctx context.Context, fn func(tx borrow.Tx) error) error {
	return r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(txRepo{db: tx})
	})
}

func (r *Repo) FindRequests(ctx context.Context, f borrow.RequestFilter) ([]models.BorrowRequest, error) {
	return findRequests(r.DB.WithContext(ctx), f)
}

func requestScope(f borrow.RequestFilter) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if f.ID != "" {
			q = q.Where("id = ?", f.ID)
		}
		if f.ExcludeID != "" {
			q = q.Where("id <> ?", f.ExcludeID)
		}
		if len(f.ToolIDs) > 0 {
			q = q.Where("tool_id IN ?", f.ToolIDs)
		}
		if f.BorrowerID != "" {
			q = q.Where("borrower_id = ?", f.BorrowerID)
		}
		if f.OwnerID != "" {
			q = q.Where("tool_id IN (SELECT id FROM "+models.ToolTable+" WHERE owner_id = ?)", f.OwnerID)
		}
		if len(f.Statuses) > 0 {
			q = q.Where("status IN ?", f.Statuses)
		}
		return q
	}
}

func findRequests(q *gorm.DB, f borrow.RequestFilter) ([]models.BorrowRequest, error) {
	var rs []models.BorrowRequest
	err := q.Model(&models.BorrowRequest{}).
		Scopes(requestScope(f)).
		Preload("Tool").Preload("Tool.Owner").Preload("Borrower").
		Order("created_at DESC").Order("id").
		Find(&rs).Error
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// txRepo is the borrow.Tx view of one open transaction.
type txRepo struct{ db *gorm.DB }

func (t txRepo) FindUser(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := t.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (t txRepo) FindRequests(ctx context.Context, f borrow.RequestFilter) ([]models.BorrowRequest, error) {
	return findRequests(t.db.WithContext(ctx), f)
}

// 锁住工具行（SELECT ... FOR UPDATE）
func (t txRepo) LockTool(ctx context.Context, id string) (*models.Tool, error) {
	var tool models.Tool
	if err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&tool, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &tool, nil
}

func (t txRepo) LockRequest(ctx context.Context, id string) (*models.BorrowRequest, error) {
	var r models.BorrowRequest
	if err := t.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&r, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &r, nil
}

func (t txRepo) InsertRequest(ctx context.Context, r *models.BorrowRequest) error {
	return translate(t.db.WithContext(ctx).Omit(clause.Associations).Create(r).Error)
}

// 带条件更新：只改仍处于预期状态的行，调用方核对影响行数
func (t txRepo) UpdateRequestStatus(ctx context.Context, f borrow.RequestFilter, to models.RequestStatus, at time.Time) (int64, error) {
	res := t.db.WithContext(ctx).Model(&models.BorrowRequest{}).
		Scopes(requestScope(f)).
		Updates(map[string]any{"status": to, "updated_at": at})
	if res.Error != nil {
		return 0, translate(res.Error)
	}
	return res.RowsAffected, nil
}

func (t txRepo) UpdateToolAvailability(ctx context.Context, toolID string, from, to bool, at time.Time) (bool, error) {
	res := t.db.WithContext(ctx).Model(&models.Tool{}).
		Where("id = ? AND is_available = ?", toolID, from).
		Updates(map[string]any{"is_available": to, "updated_at": at})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (t txRepo) DeleteTool(ctx context.Context, toolID string) error {
	db := t.db.WithContext(ctx)
	if err := db.Where("tool_id = ?", toolID).Delete(&models.RequestEvent{}).Error; err != nil {
		return err
	}
	if err := db.Where("tool_id = ?", toolID).Delete(&models.BorrowRequest{}).Error; err != nil {
		return err
	}
	return db.Where("id = ?", toolID).Delete(&models.Tool{}).Error
}

func (t txRepo) InsertEvents(ctx context.Context, events ...models.RequestEvent) error {
	if len(events) == 0 {
		return nil
	}
	return t.db.WithContext(ctx).Create(&events).Error
}
