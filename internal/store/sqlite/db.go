package sqlite

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"chatrelay/internal/store"
)

// Open opens a SQLite database with the given DSN.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys = ON;`); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}
	return db, nil
}

// NewStores builds the repository bundle on a SQLite connection.
func NewStores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Users:    NewUserRepo(db),
		Rooms:    NewRoomRepo(db),
		Messages: NewMessageRepo(db),
		Friends:  NewFriendRepo(db),
	}
}

// Migrate runs an idempotent set of CREATE TABLE / CREATE INDEX statements.
func Migrate(db *sql.DB) error {
	stmts := []string{
		// Users
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(100) UNIQUE,
			hashed_password VARCHAR(255) NOT NULL,
			status TEXT NOT NULL DEFAULT 'offline',
			created_at DATETIME NOT NULL,
			last_seen DATETIME NOT NULL
		);`,
		// Rooms with the denormalized last-message preview
		`CREATE TABLE IF NOT EXISTS rooms (
			id TEXT PRIMARY KEY,
			name VARCHAR(100),
			room_type TEXT NOT NULL DEFAULT 'private',
			created_by TEXT,
			created_at DATETIME NOT NULL,
			last_message_content TEXT,
			last_message_sender TEXT,
			last_message_at DATETIME,
			FOREIGN KEY (created_by) REFERENCES users(id)
		);`,
		// Room membership
		`CREATE TABLE IF NOT EXISTS room_members (
			room_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (room_id, user_id),
			FOREIGN KEY (room_id) REFERENCES rooms(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		// Messages
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			room_id TEXT NOT NULL,
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL,
			message_type TEXT NOT NULL DEFAULT 'text',
			created_at DATETIME NOT NULL,
			FOREIGN KEY (room_id) REFERENCES rooms(id),
			FOREIGN KEY (sender_id) REFERENCES users(id)
		);`,
		// Read receipts; one row per (message, reader), grows monotonically
		`CREATE TABLE IF NOT EXISTS message_reads (
			message_id TEXT NOT NULL,
			user_id TEXT NOT NULL,
			PRIMARY KEY (message_id, user_id),
			FOREIGN KEY (message_id) REFERENCES messages(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		// Friend requests
		`CREATE TABLE IF NOT EXISTS friend_requests (
			id TEXT PRIMARY KEY,
			from_user_id TEXT NOT NULL,
			to_user_id TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'pending',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (from_user_id) REFERENCES users(id),
			FOREIGN KEY (to_user_id) REFERENCES users(id)
		);`,
		// Friendships, canonical pair order: user1_id < user2_id
		`CREATE TABLE IF NOT EXISTS friendships (
			id TEXT PRIMARY KEY,
			user1_id TEXT NOT NULL,
			user2_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (user1_id, user2_id),
			FOREIGN KEY (user1_id) REFERENCES users(id),
			FOREIGN KEY (user2_id) REFERENCES users(id)
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
