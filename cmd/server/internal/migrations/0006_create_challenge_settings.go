package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0006, Down0006)
}

func Up0006(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE challenge_settings (
    id INTEGER PRIMARY KEY CHECK (id = 1),
    registration_open TIMESTAMP WITH TIME ZONE,
    registration_close TIMESTAMP WITH TIME ZONE,
    submission_open TIMESTAMP WITH TIME ZONE,
    submission_deadline TIMESTAMP WITH TIME ZONE,
    judging_start TIMESTAMP WITH TIME ZONE,
    judging_end TIMESTAMP WITH TIME ZONE,
    results_date TIMESTAMP WITH TIME ZONE,
    judging_locked BOOLEAN NOT NULL DEFAULT false,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `INSERT INTO challenge_settings (id) VALUES (1);`},
		statement{query: `
CREATE TABLE challenge_categories (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    name TEXT NOT NULL UNIQUE,
    description TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
	)
}

func Down0006(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE challenge_categories;`},
		statement{query: `DROP TABLE challenge_settings;`},
	)
}
