package upload

import (
	"context"
	"io"
	"time"

	"github.com/sethvargo/go-retry"
	"go.opentelemetry.io/otel/codes"
)

var _ Uploader = (*RetryUploader)(nil)

// Wraps every Uploader call in a backoff loop
type RetryUploader struct {
	uploader Uploader
	backoff  func() retry.Backoff
}

func NewRetryUploaderBackoff(uploader Uploader, backoff func() retry.Backoff) *RetryUploader {
	return &RetryUploader{
		uploader: uploader,
		backoff:  backoff,
	}
}

// Archiving happens after the response is built so latency is not a concern
func NewRetryUploader(uploader Uploader) *RetryUploader {
	return NewRetryUploaderBackoff(uploader, func() retry.Backoff {
		b := retry.NewExponential(500 * time.Millisecond)
		b = retry.WithMaxDuration(30*time.Second, b)
		return b
	})
}

func withRetry[T any](
	ctx context.Context,
	backoff retry.Backoff,
	name string,
	fn func(ctx context.Context) (T, error),
) (T, error) {
	ctx, span := tracer.Start(ctx, name)
	defer span.End()

	var result T
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		//nolint:govet // shadow: intentionally shadow ctx and span to avoid using the incorrect one.
		ctx, span := tracer.Start(ctx, name+".Retry")
		defer span.End()

		var err error
		result, err = fn(ctx)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "attempt failed")
			return retry.RetryableError(err)
		}

		span.RecordError(nil)
		span.SetStatus(codes.Ok, "attempt succeeded")
		return nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "exhausted retries")
		var zero T
		return zero, err
	}

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "completed")
	return result, nil
}

func (r *RetryUploader) Exists(ctx context.Context, key string) (bool, error) {
	return withRetry(ctx, r.backoff(), "RetryUploader.Exists", func(ctx context.Context) (bool, error) {
		return r.uploader.Exists(ctx, key)
	})
}

func (r *RetryUploader) StoreIdentifier(ctx context.Context) (string, error) {
	return withRetry(ctx, r.backoff(), "RetryUploader.StoreIdentifier", r.uploader.StoreIdentifier)
}

func (r *RetryUploader) Upload(
	ctx context.Context,
	reader io.ReadSeeker,
	length int64,
	key string,
	contentType string,
) error {
	_, err := withRetry(ctx, r.backoff(), "RetryUploader.Upload", func(ctx context.Context) (struct{}, error) {
		if _, err := reader.Seek(0, io.SeekStart); err != nil {
			return struct{}{}, err
		}
		return struct{}{}, r.uploader.Upload(ctx, reader, length, key, contentType)
	})
	return err
}
