package db

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"toolsharer/borrow"
	"toolsharer/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

var ErrEmailTaken = errors.New("email already registered")

type Repo struct{ DB *gorm.DB }

func NewRepo(db *gorm.DB) *Repo { return &Repo{DB: db} }

// translate maps gorm errors onto the engine's error kinds.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return fmt.Errorf("%w: %v", borrow.ErrNotFound, err)
	case isDuplicate(err):
		return fmt.Errorf("%w: %v", borrow.ErrConflict, err)
	}
	return err
}

// isDuplicate also matches raw driver messages for dialects without an error translator.
func isDuplicate(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "duplicate key value")
}

// Users

func (r *Repo) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	u.Email = normalizeEmail(u.Email)
	if err := r.DB.WithContext(ctx).Create(u).Error; err != nil {
		if isDuplicate(err) {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// 按 ID 查
func (r *Repo) FindUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

func (r *Repo) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := r.DB.WithContext(ctx).Where("email = ?", normalizeEmail(email)).First(&u).Error; err != nil {
		return nil, translate(err)
	}
	return &u, nil
}

// FindOrCreateUserByEmail is the dev-login path; created reports whether the user is new.
func (r *Repo) FindOrCreateUserByEmail(ctx context.Context, email, fullName string) (u *models.User, created bool, err error) {
	u, err = r.FindUserByEmail(ctx, email)
	if err == nil {
		return u, false, nil
	}
	if !errors.Is(err, borrow.ErrNotFound) {
		return nil, false, err
	}
	u = &models.User{Email: email, FullName: strings.TrimSpace(fullName)}
	if err := r.CreateUser(ctx, u); err != nil {
		// 并发登录时另一个请求先建了用户
		if errors.Is(err, ErrEmailTaken) {
			u, err = r.FindUserByEmail(ctx, email)
			return u, false, err
		}
		return nil, false, err
	}
	return u, true, nil
}

// 列表（分页 + 关键词，关键词匹配邮箱/姓名）
type ListUsersResult struct {
	Users []models.User `json:"users"`
	Total int64         `json:"total"`
}

func (r *Repo) ListUsers(ctx context.Context, q string, page, size int) (ListUsersResult, error) {
	if page <= 0 {
		page = 1
	}
	if size <= 0 || size > 100 {
		size = 20
	}

	tx := r.DB.WithContext(ctx).Model(&models.User{})
	if q = strings.TrimSpace(q); q != "" {
		like := "%" + strings.ToLower(q) + "%"
		tx = tx.Where("LOWER(email) LIKE ? OR LOWER(full_name) LIKE ?", like, like)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return ListUsersResult{}, err
	}

	var users []models.User
	if err := tx.
		Order("created_at DESC").
		Offset((page - 1) * size).
		Limit(size).
		Find(&users).Error; err != nil {
		return ListUsersResult{}, err
	}
	return ListUsersResult{Users: users, Total: total}, nil
}

func (r *Repo) TouchUserLogin(ctx context.Context, userID, ip, ua string) error {
	now := time.Now().UTC()
	if len(ua) > 255 {
		ua = ua[:255]
	}
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Updates(map[string]any{
			"last_login_at": now,
			"last_seen_at":  now,
			"login_count":   gorm.Expr("COALESCE(login_count, 0) + 1"),
			"last_login_ip": ip,
			"last_login_ua": ua,
		}).Error
}

func (r *Repo) TouchUserSeen(ctx context.Context, userID string) error {
	return r.DB.WithContext(ctx).Model(&models.User{}).
		Where("id = ?", userID).
		Update("last_seen_at", time.Now().UTC()).Error
}

func normalizeEmail(s string) string { return strings.ToLower(strings.TrimSpace(s)) }
