package database

import (
	"context"
	"embed"
	"fmt"
	"log/slog"
	"strings"

	"realblog/internal/middleware"

	"github.com/pressly/goose/v3"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var migrationFS embed.FS

// gooseLogger adapts goose's printf logging onto slog.
type gooseLogger struct{}

func (gooseLogger) Printf(format string, v ...interface{}) {
	middleware.Logger.Info(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "goose"))
}

func (gooseLogger) Fatalf(format string, v ...interface{}) {
	middleware.Logger.Error(strings.TrimSpace(fmt.Sprintf(format, v...)), slog.String("component", "goose"))
}

func prepareGoose(db *gorm.DB) error {
	if Dialect(db) != DialectPostgres {
		return fmt.Errorf("sql migrations target postgres, got %s", Dialect(db))
	}
	goose.SetBaseFS(migrationFS)
	goose.SetLogger(gooseLogger{})
	return goose.SetDialect("postgres")
}

// RunMigrations applies every pending embedded SQL migration.
func RunMigrations(ctx context.Context, db *gorm.DB) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return goose.UpContext(ctx, sqlDB, migrationsDir)
}

// RollbackMigration migrates down to (and keeping) version.
func RollbackMigration(ctx context.Context, db *gorm.DB, version int64) error {
	if err := prepareGoose(db); err != nil {
		return err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return goose.DownToContext(ctx, sqlDB, migrationsDir, version)
}

// MigrationVersion returns the currently applied migration version.
func MigrationVersion(ctx context.Context, db *gorm.DB) (int64, error) {
	if err := prepareGoose(db); err != nil {
		return 0, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return 0, err
	}
	return goose.GetDBVersionContext(ctx, sqlDB)
}

// PendingMigrations lists embedded migrations newer than the applied version.
func PendingMigrations(ctx context.Context, db *gorm.DB) (goose.Migrations, error) {
	current, err := MigrationVersion(ctx, db)
	if err != nil {
		return nil, err
	}
	return goose.CollectMigrations(migrationsDir, current, goose.MaxVersion)
}
