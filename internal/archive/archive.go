package archive

import (
	"context"
	"errors"
	"mime"
	"path"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/testsmith/testsmith/internal/audit"
	"github.com/testsmith/testsmith/internal/types"
	"github.com/testsmith/testsmith/internal/upload"
)

var tracer = otel.Tracer("github.com/testsmith/testsmith/internal/archive")

const defaultContentType = "text/plain; charset=utf-8"

var ErrEmptyArtifact = errors.New("artifact has no code to archive")

// Copies generated test files into an object store and records an audit event for each
type ArtifactArchiver struct {
	uploader upload.Uploader
}

func NewArtifactArchiver(u upload.Uploader) *ArtifactArchiver {
	return &ArtifactArchiver{uploader: u}
}

func contentType(filename string) string {
	if t := mime.TypeByExtension(path.Ext(filename)); t != "" {
		return t
	}
	return defaultContentType
}

func (a *ArtifactArchiver) ArchiveArtifact(
	ctx context.Context,
	auditContext audit.Context,
	artifact types.CodeArtifact,
) error {
	ctx, span := tracer.Start(ctx, "ArchiveArtifact", trace.WithAttributes(
		attribute.String("artifact.id", artifact.ID),
		attribute.String("artifact.filename", artifact.Filename),
	))
	defer span.End()

	if artifact.Code == "" {
		span.RecordError(ErrEmptyArtifact)
		span.SetStatus(codes.Error, "nothing to archive")
		return ErrEmptyArtifact
	}

	reader := strings.NewReader(artifact.Code)
	objectName, err := upload.Hashed(
		ctx,
		a.uploader,
		reader,
		reader.Size(),
		path.Ext(artifact.Filename),
		contentType(artifact.Filename),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload artifact")
		return err
	}

	identifier, err := a.uploader.StoreIdentifier(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to get identifier")
		return err
	}

	span.AddEvent("generating audit log message")
	audit.LogFileArchived(
		auditContext,
		identifier,
		objectName,
		audit.ArchivedFileGeneratedTest,
		audit.EntityCodeArtifact,
		artifact.ID,
	)

	span.RecordError(nil)
	span.SetStatus(codes.Ok, "archived artifact")
	return nil
}
