package hash

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/testsmith/testsmith/internal/hash")

// Will consume reader to the end
func Reader(ctx context.Context, f io.Reader) (string, error) {
	_, span := tracer.Start(ctx, "Reader")
	defer span.End()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to copy reader into hasher")
		return "", err
	}

	sum := hex.EncodeToString(h.Sum(nil))

	span.AddEvent("digested", trace.WithAttributes(attribute.String("sum", sum)))

	return sum, nil
}

// Object key for a digest, sharded by its first two characters so listings stay small
func Key(sum string, ext string) string {
	key := sum
	if len(sum) > 2 {
		key = sum[:2] + "/" + sum
	}
	if ext = strings.TrimPrefix(ext, "."); ext != "" {
		key += "." + ext
	}
	return key
}
