package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0003, Down0003)
}

func Up0003(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE test_job (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    owner_id UUID NOT NULL REFERENCES users(id),
    status TEXT NOT NULL DEFAULT 'pending',
    summary_origin TEXT NOT NULL DEFAULT '',
    repository JSONB NOT NULL,
    files JSONB NOT NULL DEFAULT '[]'::jsonb,
    summaries JSONB NOT NULL DEFAULT '[]'::jsonb,
    generated_code JSONB NOT NULL DEFAULT '[]'::jsonb,
    pull_requests JSONB NOT NULL DEFAULT '[]'::jsonb,
    version BIGINT NOT NULL DEFAULT 1,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT test_job_status_check
        CHECK (status IN ('pending', 'processing', 'completed', 'failed'))
);
`},
		statement{query: `CREATE INDEX test_job_owner_created_idx ON test_job (owner_id, created_at DESC);`},
	)
}

func Down0003(ctx context.Context, tx *sql.Tx) error {
	_, err := tx.ExecContext(ctx, `DROP TABLE test_job;`)
	return err
}
