// Package sqlite provides the SQLite-backed session registry, set-order
// store, and response store.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	msqlite "modernc.org/sqlite"
	sqlite3lib "modernc.org/sqlite/lib"

	"github.com/ahrav/go-mfdc/internal/domain"
	"github.com/ahrav/go-mfdc/internal/ports"
)

//go:embed schema.sql
var schemaSQL string

// Compile-time verification that Store implements the storage ports.
var (
	_ ports.SessionRegistry = (*Store)(nil)
	_ ports.ResponseStore   = (*Store)(nil)
	_ ports.OrderStore      = (*Store)(nil)
)

// Store persists sessions, set orders and responses in SQLite.
type Store struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite database file and applies the embedded schema.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := "file:" + filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	return open(dsn, 0)
}

// OpenMemory opens a private in-memory database. Its contents are lost
// when the store is closed.
func OpenMemory() (*Store, error) {
	// Every pooled connection to :memory: would see its own empty database,
	// so the pool is pinned to one connection.
	return open("file::memory:?_pragma=busy_timeout(5000)", 1)
}

func open(dsn string, maxConns int) (*Store, error) {
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schemaSQL); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return ports.ErrStorageUnavailable
	}
	return nil
}

// CreateSession registers a session code.
func (s *Store) CreateSession(ctx context.Context, session ports.Session) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	code := strings.TrimSpace(session.Code)
	if code == "" {
		return fmt.Errorf("session code is required")
	}
	createdAt := session.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO sessions (code, title, created_at) VALUES (?, ?, ?)`,
		code, strings.TrimSpace(session.Title), toMillis(createdAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", domain.ErrSessionExists, code)
		}
		return ports.NewStorageError("session", "CreateSession", err)
	}
	return nil
}

// GetSession returns the session registered under code.
func (s *Store) GetSession(ctx context.Context, code string) (ports.Session, error) {
	if err := s.ready(ctx); err != nil {
		return ports.Session{}, err
	}

	var (
		session   ports.Session
		createdAt int64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT code, title, created_at FROM sessions WHERE code = ?`,
		strings.TrimSpace(code),
	).Scan(&session.Code, &session.Title, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ports.Session{}, fmt.Errorf("%w: %s", domain.ErrSessionNotFound, code)
	}
	if err != nil {
		return ports.Session{}, ports.NewStorageError("session", "GetSession", err)
	}
	session.CreatedAt = fromMillis(createdAt)
	return session, nil
}

// GetOrder returns the stored set ids of a session.
func (s *Store) GetOrder(ctx context.Context, sessionCode string) ([]string, bool, error) {
	if err := s.ready(ctx); err != nil {
		return nil, false, err
	}

	var raw string
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT set_ids FROM session_orders WHERE session_code = ?`, sessionCode,
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, ports.NewStorageError("order", "GetOrder", err)
	}

	var ids []string
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		return nil, false, ports.NewStorageError("order", "GetOrder",
			fmt.Errorf("%w: %v", ports.ErrCorruptRecord, err))
	}
	return ids, true, nil
}

// PutOrder stores the set ids of a session unless one is already stored.
func (s *Store) PutOrder(ctx context.Context, sessionCode string, setIDs []string) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	raw, err := json.Marshal(setIDs)
	if err != nil {
		return ports.NewStorageError("order", "PutOrder", err)
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO session_orders (session_code, set_ids, created_at) VALUES (?, ?, ?)
		 ON CONFLICT(session_code) DO NOTHING`,
		sessionCode, string(raw), toMillis(time.Now()),
	)
	if err != nil {
		return ports.NewStorageError("order", "PutOrder", err)
	}
	return nil
}

// SaveResponse appends one scored response.
func (s *Store) SaveResponse(ctx context.Context, response domain.StoredResponse) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	if strings.TrimSpace(response.ID) == "" {
		return fmt.Errorf("response id is required")
	}
	if strings.TrimSpace(response.SessionCode) == "" {
		return fmt.Errorf("session code is required")
	}

	scores, err := json.Marshal(response.AxisScores)
	if err != nil {
		return ports.NewStorageError("response", "SaveResponse", err)
	}
	poles, err := json.Marshal(response.Pole)
	if err != nil {
		return ports.NewStorageError("response", "SaveResponse", err)
	}
	submittedAt := response.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}

	_, err = s.sqlDB.ExecContext(ctx,
		`INSERT INTO responses (
		   id,
		   session_code,
		   leadership_type,
		   axis_scores,
		   pole,
		   participant_name,
		   participant_email,
		   client_hash,
		   submitted_at
		 ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		response.ID,
		response.SessionCode,
		response.LeadershipType,
		string(scores),
		string(poles),
		response.ParticipantName,
		response.ParticipantEmail,
		response.ClientHash,
		toMillis(submittedAt),
	)
	if err != nil {
		return ports.NewStorageError("response", "SaveResponse", err)
	}
	return nil
}

// ListResponses returns the session's responses in submission order.
func (s *Store) ListResponses(ctx context.Context, sessionCode string) ([]domain.StoredResponse, error) {
	if err := s.ready(ctx); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT id, session_code, leadership_type, axis_scores, pole,
		        participant_name, participant_email, client_hash, submitted_at
		   FROM responses
		  WHERE session_code = ?
		  ORDER BY seq`,
		sessionCode,
	)
	if err != nil {
		return nil, ports.NewStorageError("response", "ListResponses", err)
	}
	defer rows.Close()

	out := make([]domain.StoredResponse, 0)
	for rows.Next() {
		var (
			r             domain.StoredResponse
			scores, poles string
			submittedAt   int64
		)
		if err := rows.Scan(
			&r.ID, &r.SessionCode, &r.LeadershipType, &scores, &poles,
			&r.ParticipantName, &r.ParticipantEmail, &r.ClientHash, &submittedAt,
		); err != nil {
			return nil, ports.NewStorageError("response", "ListResponses", err)
		}
		if err := json.Unmarshal([]byte(scores), &r.AxisScores); err != nil {
			return nil, ports.NewStorageError("response", "ListResponses",
				fmt.Errorf("%w: response %s axis scores: %v", ports.ErrCorruptRecord, r.ID, err))
		}
		if err := json.Unmarshal([]byte(poles), &r.Pole); err != nil {
			return nil, ports.NewStorageError("response", "ListResponses",
				fmt.Errorf("%w: response %s poles: %v", ports.ErrCorruptRecord, r.ID, err))
		}
		r.SubmittedAt = fromMillis(submittedAt)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ports.NewStorageError("response", "ListResponses", err)
	}
	return out, nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() {
		case sqlite3lib.SQLITE_CONSTRAINT_PRIMARYKEY, sqlite3lib.SQLITE_CONSTRAINT_UNIQUE:
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "unique constraint failed")
}

// IsTransient reports whether err is a lock or busy condition that may
// succeed when retried.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	var sqliteErr *msqlite.Error
	if errors.As(err, &sqliteErr) {
		switch sqliteErr.Code() & 0xff {
		case sqlite3lib.SQLITE_BUSY, sqlite3lib.SQLITE_LOCKED:
			return true
		}
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}
