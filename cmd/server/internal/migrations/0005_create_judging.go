package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0005, Down0005)
}

func Up0005(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE judging_criteria (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    name TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    max_score DOUBLE PRECISION NOT NULL CHECK (max_score > 0),
    weight DOUBLE PRECISION NOT NULL CHECK (weight >= 0 AND weight <= 100),
    sort_order INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `
CREATE TABLE judge_assignments (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    judge_id UUID NOT NULL REFERENCES principal(id),
    submission_id UUID NOT NULL REFERENCES submissions(id),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    UNIQUE (judge_id, submission_id)
);
`},
		statement{query: `
CREATE TABLE judging_scores (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    judge_id UUID NOT NULL REFERENCES principal(id),
    submission_id UUID NOT NULL REFERENCES submissions(id),
    scores JSONB NOT NULL DEFAULT '{}',
    comments TEXT NOT NULL DEFAULT '',
    total_score DOUBLE PRECISION NOT NULL DEFAULT 0,
    is_submitted BOOLEAN NOT NULL DEFAULT false,
    submitted_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    UNIQUE (judge_id, submission_id)
);
`},
	)
}

func Down0005(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE judging_scores;`},
		statement{query: `DROP TABLE judge_assignments;`},
		statement{query: `DROP TABLE judging_criteria;`},
	)
}
