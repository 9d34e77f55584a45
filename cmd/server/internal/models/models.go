package models

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const name string = "github.com/testsmith/testsmith/cmd/server/internal/models"

var tracer = otel.Tracer(name)

var (
	ErrNotFound        = errors.New("record not found")
	ErrVersionConflict = errors.New("record was modified concurrently")
)

// Common columns. IDs are time ordered uuidv7 values assigned by the database.
type Model struct {
	CreatedAt time.Time
	UpdatedAt time.Time
	ID        uuid.UUID `gorm:"primaryKey;default:uuidv7_sub_ms()"`
}

type Record interface {
	GetID() uuid.UUID
}

// first loads the single row matching query into a T, mapping a missing row to ErrNotFound.
func first[T Record](ctx context.Context, db *gorm.DB, span trace.Span, query string, args ...any) (*T, error) {
	var data T
	span.SetAttributes(attribute.String("type", reflect.TypeOf(data).String()))

	err := db.WithContext(ctx).Where(query, args...).First(&data).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "record not found")
		return nil, ErrNotFound
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to query record")
		return nil, fmt.Errorf("failed to query record: %w", err)
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "found record")
	return &data, nil
}

// gets an object by id from the db
func ByID[T Record](ctx context.Context, db *gorm.DB, id uuid.UUID) (*T, error) {
	ctx, span := tracer.Start(ctx, "ByID", trace.WithAttributes(
		attribute.String("id", id.String()),
	))
	defer span.End()

	return first[T](ctx, db, span, "id = ?", id)
}

// gets an object by id only when ownerID owns it. A record owned by someone
// else is indistinguishable from a missing one.
func ByOwnedID[T Record](ctx context.Context, db *gorm.DB, ownerID, id uuid.UUID) (*T, error) {
	ctx, span := tracer.Start(ctx, "ByOwnedID", trace.WithAttributes(
		attribute.String("id", id.String()),
		attribute.String("ownerID", ownerID.String()),
	))
	defer span.End()

	return first[T](ctx, db, span, "id = ? AND owner_id = ?", id, ownerID)
}

// Transmutes a pointer into a [datatypes.Null]
func NewNull[T any](d *T) datatypes.Null[T] {
	if d != nil {
		return datatypes.NewNull(*d)
	}

	return datatypes.Null[T]{}
}

// Transmutes data into valid [datatypes.Null]
func NewNullFromData[T any](d T) datatypes.Null[T] {
	return datatypes.NewNull(d)
}

// Maps a [datatypes.Null] back into a pointer
func PtrFromNull[T any](d datatypes.Null[T]) *T {
	if !d.Valid {
		return nil
	}

	return &d.V
}
