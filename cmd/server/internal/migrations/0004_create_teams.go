package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0004, Down0004)
}

func Up0004(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE teams (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    name TEXT NOT NULL,
    lead_id UUID NOT NULL UNIQUE REFERENCES principal(id),
    university TEXT CHECK (university IN ('UST', 'IAUE', 'UNIPORT')),
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `
CREATE TABLE team_members (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    team_id UUID NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
    email TEXT NOT NULL,
    user_id UUID REFERENCES principal(id),
    status TEXT NOT NULL DEFAULT 'invited' CHECK (status IN ('invited', 'accepted', 'declined')),
    invite_token TEXT UNIQUE,
    responded_at TIMESTAMP WITH TIME ZONE,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    CONSTRAINT accepted_has_user CHECK (status <> 'accepted' OR user_id IS NOT NULL)
);
`},
		statement{
			query: `CREATE UNIQUE INDEX team_members_one_team_idx ON team_members (user_id) WHERE status = 'accepted';`,
		},
		statement{query: `CREATE INDEX team_members_team_idx ON team_members (team_id, status);`},
	)
}

func Down0004(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE team_members;`},
		statement{query: `DROP TABLE teams;`},
	)
}
