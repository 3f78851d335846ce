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
CREATE TABLE submissions (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    owner_id UUID NOT NULL UNIQUE REFERENCES principal(id),
    reference_code TEXT NOT NULL UNIQUE,
    status TEXT NOT NULL DEFAULT 'draft' CHECK (status IN (
        'draft', 'submitted', 'under_review', 'shortlisted', 'winner', 'not_selected', 'disqualified'
    )),
    is_locked BOOLEAN NOT NULL DEFAULT false,
    current_step INTEGER NOT NULL DEFAULT 1 CHECK (current_step BETWEEN 1 AND 6),
    furthest_step INTEGER NOT NULL DEFAULT 1 CHECK (furthest_step BETWEEN 1 AND 6),
    title TEXT NOT NULL DEFAULT '',
    category TEXT NOT NULL DEFAULT '',
    problem_statement TEXT NOT NULL DEFAULT '',
    proposed_solution TEXT NOT NULL DEFAULT '',
    innovation_approach TEXT NOT NULL DEFAULT '',
    expected_impact TEXT NOT NULL DEFAULT '',
    video_link TEXT NOT NULL DEFAULT '',
    submitted_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT locked_iff_not_draft CHECK (is_locked = (status <> 'draft'))
);
`},
		statement{query: `CREATE INDEX submissions_status_idx ON submissions (status);`},
		statement{query: `
CREATE TABLE submission_files (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    submission_id UUID NOT NULL REFERENCES submissions(id) ON DELETE CASCADE,
    kind TEXT NOT NULL CHECK (kind IN ('document', 'image')),
    name TEXT NOT NULL,
    path TEXT NOT NULL,
    content_type TEXT NOT NULL,
    size BIGINT NOT NULL CHECK (size > 0),
    sha256 TEXT NOT NULL,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `CREATE INDEX submission_files_submission_idx ON submission_files (submission_id, kind);`},
	)
}

func Down0003(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE submission_files;`},
		statement{query: `DROP TABLE submissions;`},
	)
}
