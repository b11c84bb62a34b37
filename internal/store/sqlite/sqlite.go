package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/avolkov/chanhub/internal/store"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	username      TEXT NOT NULL UNIQUE,
	password_hash TEXT NOT NULL,
	display_name  TEXT NOT NULL,
	avatar_color  TEXT NOT NULL DEFAULT '',
	presence      TEXT NOT NULL DEFAULT 'offline',
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS channels (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	name       TEXT NOT NULL UNIQUE,
	is_private BOOLEAN NOT NULL DEFAULT 0,
	created_by INTEGER,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	FOREIGN KEY (created_by) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS channel_members (
	channel_id INTEGER NOT NULL,
	user_id    INTEGER NOT NULL,
	joined_at  DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (channel_id, user_id),
	FOREIGN KEY (channel_id) REFERENCES channels(id),
	FOREIGN KEY (user_id) REFERENCES users(id)
);

CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	channel_id INTEGER NOT NULL,
	sender_id  INTEGER NOT NULL,
	content    TEXT NOT NULL,
	created_at DATETIME NOT NULL,
	FOREIGN KEY (channel_id) REFERENCES channels(id),
	FOREIGN KEY (sender_id) REFERENCES users(id)
);

CREATE INDEX IF NOT EXISTS idx_messages_channel ON messages(channel_id, id);
CREATE INDEX IF NOT EXISTS idx_channel_members_user ON channel_members(user_id);
`

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store at dbPath and applies the schema.
func New(dbPath string) (*SQLiteStore, error) {
	return NewWithSetup(dbPath, func(db *sql.DB) error {
		_, err := db.Exec(schema)
		return err
	})
}

// NewWithSetup creates a new SQLite store and runs a setup function.
// Tests use it to apply a custom schema or seed data.
func NewWithSetup(dbPath string, setup func(*sql.DB) error) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if setup != nil {
		if err := setup(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("setup: %w", err)
		}
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// mapErr converts driver-level errors into store sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		if serr.ExtendedCode == sqlite3.ErrConstraintUnique || serr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return store.ErrDuplicate
		}
	}
	return err
}

// ==== UserStore implementation ====

// CreateUser creates a new user with a hashed password.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, passwordHash, displayName, avatarColor string) (*store.User, error) {
	query := `
		INSERT INTO users (username, password_hash, display_name, avatar_color, presence)
		VALUES (?, ?, ?, ?, 'offline')
	`
	result, err := s.db.ExecContext(ctx, query, username, passwordHash, displayName, avatarColor)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", mapErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetUserByID(ctx, id)
}

const userColumns = `id, username, password_hash, display_name, avatar_color, presence, created_at`

func scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.PasswordHash,
		&user.DisplayName,
		&user.AvatarColor,
		&user.Presence,
		&user.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("query user: %w", mapErr(err))
	}
	return &user, nil
}

// GetUserByID retrieves a user by ID.
func (s *SQLiteStore) GetUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = ?`
	return scanUser(s.db.QueryRowContext(ctx, query, username))
}

// SetPresence updates the user's presence flag.
func (s *SQLiteStore) SetPresence(ctx context.Context, userID int64, presence store.Presence) error {
	query := `UPDATE users SET presence = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query, string(presence), userID)
	if err != nil {
		return fmt.Errorf("update presence: %w", mapErr(err))
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ==== ChannelStore implementation ====

// CreateChannel creates a new channel.
func (s *SQLiteStore) CreateChannel(ctx context.Context, name string, isPrivate bool, createdBy int64) (*store.Channel, error) {
	query := `
		INSERT INTO channels (name, is_private, created_by)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, name, isPrivate, createdBy)
	if err != nil {
		return nil, fmt.Errorf("insert channel: %w", mapErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.GetChannelByID(ctx, id)
}

const channelColumns = `id, name, is_private, created_by, created_at`

func scanChannel(scan func(dest ...any) error) (*store.Channel, error) {
	var ch store.Channel
	var createdBy sql.NullInt64
	err := scan(&ch.ID, &ch.Name, &ch.IsPrivate, &createdBy, &ch.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("query channel: %w", mapErr(err))
	}
	if createdBy.Valid {
		ch.CreatedBy = &createdBy.Int64
	}
	return &ch, nil
}

// GetChannelByID retrieves a channel by ID.
func (s *SQLiteStore) GetChannelByID(ctx context.Context, id int64) (*store.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE id = ?`
	return scanChannel(s.db.QueryRowContext(ctx, query, id).Scan)
}

// GetChannelByName retrieves a channel by name.
func (s *SQLiteStore) GetChannelByName(ctx context.Context, name string) (*store.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels WHERE name = ?`
	return scanChannel(s.db.QueryRowContext(ctx, query, name).Scan)
}

// ListChannels lists all channels, newest first.
func (s *SQLiteStore) ListChannels(ctx context.Context) ([]*store.Channel, error) {
	query := `SELECT ` + channelColumns + ` FROM channels ORDER BY created_at DESC, id DESC`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query channels: %w", err)
	}
	defer rows.Close()

	var channels []*store.Channel
	for rows.Next() {
		ch, err := scanChannel(rows.Scan)
		if err != nil {
			return nil, err
		}
		channels = append(channels, ch)
	}

	return channels, rows.Err()
}

// AddMember records a user as a member of a channel. Idempotent.
func (s *SQLiteStore) AddMember(ctx context.Context, userID, channelID int64) error {
	query := `
		INSERT OR IGNORE INTO channel_members (channel_id, user_id)
		VALUES (?, ?)
	`
	if _, err := s.db.ExecContext(ctx, query, channelID, userID); err != nil {
		return fmt.Errorf("insert channel member: %w", mapErr(err))
	}
	return nil
}

// ListMembers lists the member profiles of a channel.
func (s *SQLiteStore) ListMembers(ctx context.Context, channelID int64) ([]*store.User, error) {
	query := `
		SELECT u.id, u.username, u.password_hash, u.display_name, u.avatar_color, u.presence, u.created_at
		FROM channel_members cm
		JOIN users u ON u.id = cm.user_id
		WHERE cm.channel_id = ?
		ORDER BY cm.joined_at ASC
	`
	rows, err := s.db.QueryContext(ctx, query, channelID)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	var members []*store.User
	for rows.Next() {
		var user store.User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.PasswordHash,
			&user.DisplayName,
			&user.AvatarColor,
			&user.Presence,
			&user.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, &user)
	}

	return members, rows.Err()
}

// ==== MessageStore implementation ====

// SaveMessage persists a message. The store assigns the canonical id and
// creation timestamp before returning.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (channel_id, sender_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`
	createdAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, query, msg.ChannelID, msg.SenderID, msg.Content, createdAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", mapErr(err))
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}

	msg.ID = id
	msg.CreatedAt = createdAt
	return nil
}

// ListMessages retrieves messages from a channel with pagination, joined
// with sender profiles, in chronological order.
func (s *SQLiteStore) ListMessages(ctx context.Context, channelID int64, limit int, beforeID *int64) ([]*store.MessageWithSender, error) {
	var query string
	var args []any

	const base = `
		SELECT m.id, m.channel_id, m.sender_id, m.content, m.created_at,
		       u.id, u.username, u.display_name, u.avatar_color, u.presence
		FROM messages m
		JOIN users u ON u.id = m.sender_id
	`
	if beforeID != nil {
		query = base + `WHERE m.channel_id = ? AND m.id < ? ORDER BY m.id DESC LIMIT ?`
		args = []any{channelID, *beforeID, limit}
	} else {
		query = base + `WHERE m.channel_id = ? ORDER BY m.id DESC LIMIT ?`
		args = []any{channelID, limit}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var messages []*store.MessageWithSender
	for rows.Next() {
		var msg store.MessageWithSender
		if err := rows.Scan(
			&msg.ID,
			&msg.ChannelID,
			&msg.SenderID,
			&msg.Content,
			&msg.CreatedAt,
			&msg.Sender.ID,
			&msg.Sender.Username,
			&msg.Sender.DisplayName,
			&msg.Sender.AvatarColor,
			&msg.Sender.Presence,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		messages = append(messages, &msg)
	}

	// Reverse to get chronological order.
	for i := 0; i < len(messages)/2; i++ {
		messages[i], messages[len(messages)-1-i] = messages[len(messages)-1-i], messages[i]
	}

	return messages, rows.Err()
}
