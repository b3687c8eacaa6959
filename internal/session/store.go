package session

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// ErrNotFound is returned by Load when no session has the requested ID.
var ErrNotFound = errors.New("session not found")

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS sessions (
	id TEXT PRIMARY KEY,
	start_time DATETIME,
	source TEXT
);`

const createMessagesTable = `
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id TEXT,
	role TEXT,
	content TEXT,
	timestamp DATETIME,
	FOREIGN KEY(session_id) REFERENCES sessions(id)
);`

// Store archives chat transcripts in SQLite.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// OpenStore opens (or creates) the transcript database at path.
func OpenStore(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open database: %s", path)
	}

	if _, err := db.Exec(createSessionsTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create sessions table")
	}

	if _, err := db.Exec(createMessagesTable); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "failed to create messages table")
	}

	return &Store{db: db, logger: logger}, nil
}

// Save writes the session and replaces its stored messages.
func (s *Store) Save(ctx context.Context, sess *Session) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		"INSERT OR REPLACE INTO sessions (id, start_time, source) VALUES (?, ?, ?)",
		sess.ID, sess.StartTime, sess.Source,
	)
	if err != nil {
		return errors.Wrap(err, "failed to save session")
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ?", sess.ID); err != nil {
		return errors.Wrap(err, "failed to clear messages")
	}

	for _, msg := range sess.Messages {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO messages (session_id, role, content, timestamp) VALUES (?, ?, ?, ?)",
			sess.ID, msg.Role, msg.Content, msg.Timestamp,
		)
		if err != nil {
			return errors.Wrap(err, "failed to save message")
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}

	s.logger.Info("session saved", "session_id", sess.ID, "message_count", len(sess.Messages))
	return nil
}

// Load reads a session and its messages in insertion order.
func (s *Store) Load(ctx context.Context, id string) (*Session, error) {
	var source string
	var startTime time.Time

	err := s.db.QueryRowContext(ctx, "SELECT source, start_time FROM sessions WHERE id = ?", id).
		Scan(&source, &startTime)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Wrapf(ErrNotFound, "id %s", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to load session")
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT role, content, timestamp FROM messages WHERE session_id = ? ORDER BY id",
		id,
	)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load messages")
	}
	defer rows.Close()

	messages := []Message{}
	for rows.Next() {
		var msg Message
		if err := rows.Scan(&msg.Role, &msg.Content, &msg.Timestamp); err != nil {
			return nil, errors.Wrap(err, "failed to scan message")
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate messages")
	}

	return &Session{
		ID:        id,
		StartTime: startTime,
		Source:    source,
		Messages:  messages,
	}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}
