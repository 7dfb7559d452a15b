package db

import (
	"fmt"

	"toolsharer/models"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ConnectDB opens Postgres and migrates the schema. Callers own the handle.
func ConnectDB(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}
	if err := Migrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return db, nil
}

func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.User{}, &models.Tool{}, &models.BorrowRequest{}, &models.RequestEvent{}); err != nil {
		return err
	}

	// 同一工具最多一条已批准的申请
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_approved_per_tool
	  ON %s (tool_id)
	  WHERE status = 'APPROVED';
	`, models.BorrowRequestTable, models.BorrowRequestTable)).Error; err != nil {
		return err
	}

	// 同一借用人对同一工具最多一条待处理申请
	if err := db.Exec(fmt.Sprintf(`
	  CREATE UNIQUE INDEX IF NOT EXISTS %s_one_pending_per_borrower
	  ON %s (tool_id, borrower_id)
	  WHERE status = 'PENDING';
	`, models.BorrowRequestTable, models.BorrowRequestTable)).Error; err != nil {
		return err
	}

	// 物主视角的列表按时间倒序
	if err := db.Exec(fmt.Sprintf(`
	  CREATE INDEX IF NOT EXISTS %s_tool_created_desc
	  ON %s (tool_id, created_at DESC);
	`, models.BorrowRequestTable, models.BorrowRequestTable)).Error; err != nil {
		return err
	}

	return nil
}
