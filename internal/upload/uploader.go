package upload

import (
	"context"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/testsmith/testsmith/internal/hash"
)

var tracer = otel.Tracer("github.com/testsmith/testsmith/internal/upload")

//go:generate mockgen -destination ./mock/mock.go -package mock . Uploader

// Object store for archived artifacts
type Uploader interface {
	// Create or overwrite the object stored under key
	Upload(ctx context.Context, reader io.ReadSeeker, length int64, key string, contentType string) error
	// Reports whether key is already stored. Only used to skip duplicate uploads.
	Exists(ctx context.Context, key string) (bool, error)
	// Names the location objects are written to, for audit records
	StoreIdentifier(ctx context.Context) (string, error)
}

// Stores reader under the hash of its contents followed by ext (when set).
// Content already present in the store is not uploaded again.
func Hashed(
	ctx context.Context,
	u Uploader,
	reader io.ReadSeeker,
	length int64,
	ext string,
	contentType string,
) (string, error) {
	ctx, span := tracer.Start(ctx, "UploadHashed", trace.WithAttributes(
		attribute.Int64("length", length),
		attribute.String("contentType", contentType),
	))
	defer span.End()

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	sum, err := hash.Reader(ctx, reader)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to hash reader")
		return "", err
	}

	key := hash.Key(sum, ext)
	span.SetAttributes(attribute.String("key", key))

	exists, err := u.Exists(ctx, key)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to check if object exists")
		return "", err
	}

	if exists {
		span.RecordError(nil)
		span.SetStatus(codes.Ok, "found existing object")
		return key, nil
	}

	if _, err := reader.Seek(0, io.SeekStart); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to seek to start")
		return "", err
	}

	if err := u.Upload(ctx, reader, length, key, contentType); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload object")
		return "", err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "uploaded object by hash")
	return key, nil
}
