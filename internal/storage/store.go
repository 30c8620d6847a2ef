// Package storage is the durable side of the relay: users, messages and the
// call audit log in SQLite. The relay treats every operation as
// transactional-per-call and never assumes atomicity across calls.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/dkeye/Talk/internal/domain"
	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Store struct {
	db   *sql.DB
	path string
}

// Open opens or creates the database and applies the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// WAL for concurrent readers while the router writes.
	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			id         TEXT PRIMARY KEY,
			username   TEXT NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS messages (
			id          TEXT PRIMARY KEY,
			content     TEXT NOT NULL DEFAULT '',
			type        TEXT NOT NULL DEFAULT 'text',
			file_name   TEXT,
			file_size   INTEGER,
			file_type   TEXT,
			sender_id   TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			is_read     INTEGER NOT NULL DEFAULT 0,
			created_at  DATETIME NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_pair
			ON messages (sender_id, receiver_id, created_at);
		CREATE INDEX IF NOT EXISTS idx_messages_unread
			ON messages (receiver_id, is_read);

		CREATE TABLE IF NOT EXISTS calls (
			id          TEXT PRIMARY KEY,
			type        TEXT NOT NULL,
			status      TEXT NOT NULL,
			duration    INTEGER,
			created_at  DATETIME NOT NULL,
			ended_at    DATETIME,
			caller_id   TEXT NOT NULL,
			receiver_id TEXT NOT NULL
		);
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Path() string {
	return s.path
}

func (s *Store) UpsertUser(ctx context.Context, u *domain.User) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, username) VALUES (?, ?)
		ON CONFLICT(id) DO UPDATE SET username = excluded.username
	`, string(u.ID), u.Username)
	if err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (s *Store) GetUser(ctx context.Context, id domain.UserID) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, username FROM users WHERE id = ?`, string(id),
	).Scan(&u.ID, &u.Username)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return &u, nil
}

func (s *Store) CreateMessage(ctx context.Context, m *domain.Message) error {
	var fileName, fileType any
	var fileSize any
	if m.Kind == domain.MessageFile {
		fileName, fileSize, fileType = m.FileName, m.FileSize, m.FileType
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO messages
			(id, content, type, file_name, file_size, file_type,
			 sender_id, receiver_id, is_read, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, m.ID, m.Content, string(m.Kind), fileName, fileSize, fileType,
		string(m.SenderID), string(m.ReceiverID), boolToInt(m.IsRead), m.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("create message: %w", err)
	}
	return nil
}

func (s *Store) MessagesBetween(ctx context.Context, a, b domain.UserID) ([]*domain.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, content, type, file_name, file_size, file_type,
		       sender_id, receiver_id, is_read, created_at
		FROM messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC
	`, string(a), string(b), string(b), string(a))
	if err != nil {
		return nil, fmt.Errorf("messages between: %w", err)
	}
	defer rows.Close()

	var out []*domain.Message
	for rows.Next() {
		var (
			m        domain.Message
			fileName sql.NullString
			fileSize sql.NullInt64
			fileType sql.NullString
			isRead   int
		)
		if err := rows.Scan(&m.ID, &m.Content, &m.Kind, &fileName, &fileSize, &fileType,
			&m.SenderID, &m.ReceiverID, &isRead, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		m.FileName = fileName.String
		m.FileSize = fileSize.Int64
		m.FileType = fileType.String
		m.IsRead = isRead != 0
		out = append(out, &m)
	}
	return out, rows.Err()
}

func (s *Store) MarkMessagesRead(ctx context.Context, sender, reader domain.UserID) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET is_read = 1
		WHERE sender_id = ? AND receiver_id = ? AND is_read = 0
	`, string(sender), string(reader))
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return res.RowsAffected()
}

func (s *Store) UnreadCounts(ctx context.Context, user domain.UserID) (map[domain.UserID]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT sender_id, COUNT(*) FROM messages
		WHERE receiver_id = ? AND is_read = 0
		GROUP BY sender_id
	`, string(user))
	if err != nil {
		return nil, fmt.Errorf("unread counts: %w", err)
	}
	defer rows.Close()

	counts := make(map[domain.UserID]int)
	for rows.Next() {
		var sender string
		var n int
		if err := rows.Scan(&sender, &n); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts[domain.UserID(sender)] = n
	}
	return counts, rows.Err()
}

func (s *Store) CreateCall(ctx context.Context, c *domain.Call) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO calls (id, type, status, created_at, caller_id, receiver_id)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.ID, string(c.Kind), string(c.Status), c.CreatedAt.UTC(),
		string(c.CallerID), string(c.ReceiverID))
	if err != nil {
		return fmt.Errorf("create call: %w", err)
	}
	return nil
}

func (s *Store) MarkCallAccepted(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE calls SET status = ? WHERE id = ?
	`, string(domain.CallAccepted), id)
	if err != nil {
		return fmt.Errorf("mark call accepted: %w", err)
	}
	return nil
}

func (s *Store) EndCall(ctx context.Context, id string, status domain.CallStatus, duration time.Duration, endedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE calls SET status = ?, duration = ?, ended_at = ? WHERE id = ?
	`, string(status), int64(duration.Seconds()), endedAt.UTC(), id)
	if err != nil {
		return fmt.Errorf("end call: %w", err)
	}
	return nil
}

// GetCall reads the audit record back; used by tests and diagnostics, never
// by the signaling hot path.
func (s *Store) GetCall(ctx context.Context, id string) (*domain.Call, error) {
	var (
		c        domain.Call
		duration sql.NullInt64
		endedAt  sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, type, status, duration, created_at, ended_at, caller_id, receiver_id
		FROM calls WHERE id = ?
	`, id).Scan(&c.ID, &c.Kind, &c.Status, &duration, &c.CreatedAt, &endedAt,
		&c.CallerID, &c.ReceiverID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get call: %w", err)
	}
	c.Duration = duration.Int64
	if endedAt.Valid {
		t := endedAt.Time
		c.EndedAt = &t
	}
	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
