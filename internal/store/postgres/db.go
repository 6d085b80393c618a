package postgres

import (
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"chatrelay/internal/store"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// NewStores builds the repository bundle on a PostgreSQL connection.
func NewStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Users:    NewUserRepo(db),
		Rooms:    NewRoomRepo(db),
		Messages: NewMessageRepo(db),
		Friends:  NewFriendRepo(db),
	}
}

// Migrate runs idempotent DDL migrations for the chatrelay schema.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id              TEXT PRIMARY KEY,
			username        VARCHAR(50)  UNIQUE NOT NULL,
			email           VARCHAR(100) UNIQUE,
			hashed_password VARCHAR(255) NOT NULL,
			status          TEXT NOT NULL DEFAULT 'offline',
			created_at      TIMESTAMPTZ NOT NULL,
			last_seen       TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS rooms (
			id                   TEXT PRIMARY KEY,
			name                 VARCHAR(100),
			room_type            TEXT NOT NULL DEFAULT 'private',
			created_by           TEXT REFERENCES users(id),
			created_at           TIMESTAMPTZ NOT NULL,
			last_message_content TEXT,
			last_message_sender  TEXT,
			last_message_at      TIMESTAMPTZ
		);`,
		`CREATE TABLE IF NOT EXISTS room_members (
			room_id TEXT NOT NULL REFERENCES rooms(id),
			user_id TEXT NOT NULL REFERENCES users(id),
			PRIMARY KEY (room_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS messages (
			id           TEXT PRIMARY KEY,
			room_id      TEXT NOT NULL REFERENCES rooms(id),
			sender_id    TEXT NOT NULL REFERENCES users(id),
			content      TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'text',
			created_at   TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS message_reads (
			message_id TEXT NOT NULL REFERENCES messages(id),
			user_id    TEXT NOT NULL REFERENCES users(id),
			PRIMARY KEY (message_id, user_id)
		);`,
		`CREATE TABLE IF NOT EXISTS friend_requests (
			id           TEXT PRIMARY KEY,
			from_user_id TEXT NOT NULL REFERENCES users(id),
			to_user_id   TEXT NOT NULL REFERENCES users(id),
			status       TEXT NOT NULL DEFAULT 'pending',
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS friendships (
			id         TEXT PRIMARY KEY,
			user1_id   TEXT NOT NULL REFERENCES users(id),
			user2_id   TEXT NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL,
			UNIQUE (user1_id, user2_id)
		);`,
		`CREATE INDEX IF NOT EXISTS idx_users_username ON users(username);`,
		`CREATE INDEX IF NOT EXISTS idx_users_status ON users(status);`,
		`CREATE INDEX IF NOT EXISTS idx_rooms_last_message_at ON rooms(last_message_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_room_members_user ON room_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_messages_room_created ON messages(room_id, created_at DESC);`,
		`CREATE INDEX IF NOT EXISTS idx_message_reads_user ON message_reads(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_to ON friend_requests(to_user_id, status);`,
		`CREATE INDEX IF NOT EXISTS idx_friend_requests_from ON friend_requests(from_user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_friendships_user2 ON friendships(user2_id);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}

	return nil
}
