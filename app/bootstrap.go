// app/bootstrap.go
package app

import (
	"context"
	"strconv"

	"toolsharer/jsonlog"
	"toolsharer/models"
)

type UserSeeder interface {
	FindOrCreateUserByEmail(ctx context.Context, email, fullName string) (*models.User, bool, error)
}

// SeedUsers makes sure every configured email has an account. It returns how many were created.
func SeedUsers(ctx context.Context, emails []string, users UserSeeder, logger *jsonlog.Logger) int {
	created := 0
	for _, email := range emails {
		u, isNew, err := users.FindOrCreateUserByEmail(ctx, email, "")
		if err != nil {
			logger.PrintError(err, map[string]string{"email": email})
			continue
		}
		if isNew {
			created++
			logger.PrintInfo("seeded user", map[string]string{"email": u.Email, "user_id": u.ID})
		}
	}
	if len(emails) > 0 {
		logger.PrintInfo("seed done", map[string]string{"created": strconv.Itoa(created)})
	}
	return created
}
