package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0008, Down0008)
}

func Up0008(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE password_resets (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    principal_id UUID NOT NULL REFERENCES principal(id) ON DELETE CASCADE,
    token_hash TEXT NOT NULL UNIQUE,
    expires_at TIMESTAMP WITH TIME ZONE NOT NULL,
    used_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `CREATE INDEX password_resets_principal_idx ON password_resets (principal_id);`},
		statement{query: `
CREATE TRIGGER touch_updated_at_trigger
BEFORE UPDATE ON password_resets
FOR EACH ROW EXECUTE PROCEDURE touch_updated_at();`},
	)
}

func Down0008(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TRIGGER touch_updated_at_trigger ON password_resets;`},
		statement{query: `DROP TABLE password_resets;`},
	)
}
