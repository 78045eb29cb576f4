package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/fastygo/taskboard/internal/config"
	sqliteRepo "github.com/fastygo/taskboard/repository/sqlite"
)

// Open connects GORM to the SQLite file at cfg.SQLitePath and migrates the schema.
func Open(cfg config.DatabaseConfig, logger *zap.Logger) (*gorm.DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	path := cfg.SQLitePath
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY under load
	sqlDB.SetMaxOpenConns(1)

	if err := sqliteRepo.AutoMigrate(db); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("connected to sqlite", zap.String("path", path))
	return db, nil
}

// Ping adapts the underlying *sql.DB to the monitor's probe signature.
func Ping(sqlDB *sql.DB) func(ctx context.Context) error {
	return sqlDB.PingContext
}
