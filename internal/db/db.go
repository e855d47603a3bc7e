package db

import (
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect initializes the database connection and runs migrations.
func Connect(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return db, nil
}

func runMigrations(db *sqlx.DB) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS threads (
            id UUID PRIMARY KEY,
            kind TEXT NOT NULL CHECK (kind IN ('DIRECT', 'GROUP')),
            title TEXT NOT NULL DEFAULT '',
            created_by TEXT NOT NULL,
            is_archived BOOLEAN NOT NULL DEFAULT FALSE,
            direct_key TEXT UNIQUE,
            last_message_id UUID,
            last_message_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK ((kind = 'DIRECT') = (direct_key IS NOT NULL))
        );`,
		`CREATE INDEX IF NOT EXISTS idx_threads_last_message_at ON threads (last_message_at DESC NULLS LAST);`,
		`CREATE TABLE IF NOT EXISTS thread_members (
            id BIGSERIAL PRIMARY KEY,
            thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            role TEXT NOT NULL DEFAULT 'MEMBER' CHECK (role IN ('OWNER', 'ADMIN', 'MEMBER')),
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            last_read_message_id UUID,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (thread_id, user_id)
        );`,
		`CREATE INDEX IF NOT EXISTS idx_thread_members_user_active ON thread_members (user_id, is_active);`,
		`CREATE TABLE IF NOT EXISTS messages (
            id UUID PRIMARY KEY,
            thread_id UUID NOT NULL REFERENCES threads(id) ON DELETE CASCADE,
            sender_id TEXT,
            type TEXT NOT NULL DEFAULT 'TEXT' CHECK (type IN ('TEXT', 'FILE', 'SYSTEM')),
            text TEXT NOT NULL DEFAULT '',
            reply_to_id UUID REFERENCES messages(id) ON DELETE SET NULL,
            client_id TEXT,
            edited_at TIMESTAMPTZ,
            deleted_at TIMESTAMPTZ,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_messages_thread_client_id
            ON messages (thread_id, client_id) WHERE client_id IS NOT NULL;`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread_created ON messages (thread_id, created_at);`,
		`CREATE TABLE IF NOT EXISTS message_audit (
            id BIGSERIAL PRIMARY KEY,
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            actor_id TEXT,
            event TEXT NOT NULL CHECK (event IN ('EDIT', 'DELETE')),
            old_text TEXT NOT NULL DEFAULT '',
            new_text TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE INDEX IF NOT EXISTS idx_message_audit_message ON message_audit (message_id, event);`,
		`CREATE TABLE IF NOT EXISTS attachments (
            id BIGSERIAL PRIMARY KEY,
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            storage_key TEXT NOT NULL DEFAULT '',
            file_name TEXT NOT NULL DEFAULT '',
            mime TEXT NOT NULL DEFAULT '',
            size BIGINT NOT NULL DEFAULT 0,
            sha256 TEXT NOT NULL DEFAULT '',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
		`CREATE TABLE IF NOT EXISTS reactions (
            id BIGSERIAL PRIMARY KEY,
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            emoji TEXT NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            UNIQUE (message_id, user_id, emoji)
        );`,
		`CREATE TABLE IF NOT EXISTS receipts (
            id BIGSERIAL PRIMARY KEY,
            message_id UUID NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            user_id TEXT NOT NULL,
            status TEXT NOT NULL DEFAULT 'DELIVERED' CHECK (status IN ('DELIVERED', 'READ')),
            delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            read_at TIMESTAMPTZ,
            UNIQUE (message_id, user_id)
        );`,
	}

	for _, m := range migrations {
		if _, err := db.Exec(m); err != nil {
			return err
		}
	}
	log.Println("database migrations applied")
	return nil
}
