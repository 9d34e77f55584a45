package migrations

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/pressly/goose/v3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"
)

var tracer = otel.Tracer(
	"github.com/testsmith/testsmith/cmd/server/internal/migrations",
)

// Migrations are registered from Go, so goose reads no directory.
const migrationsDir = "."

// Up applies every pending migration.
func Up(ctx context.Context, db *gorm.DB) error {
	ctx, span := tracer.Start(ctx, "Up")
	defer span.End()

	rawDB, err := db.DB()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to acquire database connection")
		return fmt.Errorf("failed to acquire database connection: %w", err)
	}

	if err := goose.UpContext(ctx, rawDB, migrationsDir); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to bring migrations up")
		return fmt.Errorf("failed to bring migrations up: %w", err)
	}

	version, err := goose.GetDBVersionContext(ctx, rawDB)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to read schema version")
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	span.SetAttributes(attribute.Int64("schema.version", version))
	span.RecordError(nil)
	span.SetStatus(codes.Ok, "brought migrations up")
	return nil
}

// Down reverts every migration.
func Down(ctx context.Context, db *gorm.DB) error {
	rawDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to acquire database connection: %w", err)
	}

	if err := goose.DownToContext(ctx, rawDB, migrationsDir, 0); err != nil {
		return fmt.Errorf("failed to bring migrations down: %w", err)
	}
	return nil
}

// Version reports the applied schema version, 0 for an empty database.
func Version(ctx context.Context, db *gorm.DB) (int64, error) {
	rawDB, err := db.DB()
	if err != nil {
		return 0, fmt.Errorf("failed to acquire database connection: %w", err)
	}
	return goose.GetDBVersionContext(ctx, rawDB)
}

type statement struct {
	query string
	args  []any
}

func execStatements(ctx context.Context, tx *sql.Tx, statements ...statement) error {
	for i, s := range statements {
		if _, err := tx.ExecContext(ctx, s.query, s.args...); err != nil {
			return fmt.Errorf("statement %d: %w", i+1, err)
		}
	}

	return nil
}
