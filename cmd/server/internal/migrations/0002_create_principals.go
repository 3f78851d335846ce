package migrations

import (
	"context"
	"database/sql"

	"github.com/pressly/goose/v3"
)

func init() {
	goose.AddMigrationContext(Up0002, Down0002)
}

func Up0002(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `
CREATE TABLE principal (
    id UUID PRIMARY KEY DEFAULT uuidv7_sub_ms(),
    email TEXT NOT NULL UNIQUE,
    password_hash TEXT NOT NULL,
    active BOOLEAN,
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
		statement{query: `
CREATE TABLE user_roles (
    principal_id UUID PRIMARY KEY REFERENCES principal(id) ON DELETE CASCADE,
    role TEXT NOT NULL CHECK (role IN ('participant', 'coordinator', 'judge', 'admin')),
    university TEXT CHECK (university IN ('UST', 'IAUE', 'UNIPORT')),
    CONSTRAINT coordinator_has_university CHECK (role <> 'coordinator' OR university IS NOT NULL)
);
`},
		statement{query: `CREATE INDEX user_roles_role_university_idx ON user_roles (role, university);`},
		statement{query: `
CREATE TABLE profiles (
    id UUID PRIMARY KEY REFERENCES principal(id) ON DELETE CASCADE,
    first_name TEXT NOT NULL DEFAULT '',
    last_name TEXT NOT NULL DEFAULT '',
    phone TEXT NOT NULL DEFAULT '',
    gender TEXT NOT NULL DEFAULT '',
    university TEXT CHECK (university IN ('UST', 'IAUE', 'UNIPORT')),
    department TEXT NOT NULL DEFAULT '',
    year_of_study TEXT NOT NULL DEFAULT '',
    participation_type TEXT CHECK (participation_type IN ('individual', 'team')),
    photo_path TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT current_timestamp
);
`},
	)
}

func Down0002(ctx context.Context, tx *sql.Tx) error {
	return execStatements(ctx, tx,
		statement{query: `DROP TABLE profiles;`},
		statement{query: `DROP TABLE user_roles;`},
		statement{query: `DROP TABLE principal;`},
	)
}
