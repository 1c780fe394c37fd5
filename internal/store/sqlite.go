// Package store provides storage backends for conversation state.
//
// This file implements the SQLite-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "embed"

	"github.com/bmblueprint/dmagent/internal/models"
	_ "github.com/mattn/go-sqlite3"
)

// DefaultDirPermissions defines the default permissions for database
// directories.
const DefaultDirPermissions = 0755

//go:embed migrations_sqlite.sql
var sqliteMigrations string

type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite store with the given DSN. The DSN is a
// file path to the database file; missing directories are created.
func NewSQLiteStore(opts ...Option) (*SQLiteStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewSQLiteStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("SQLiteStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	dir := filepath.Dir(dsn)
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		slog.Error("Failed to create database directory", "error", err, "dir", dir)
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		slog.Error("Failed to open SQLite connection", "error", err)
		return nil, err
	}
	if err := db.Ping(); err != nil {
		slog.Error("SQLite ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running SQLite migrations")
	if _, err := db.Exec(sqliteMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) SaveConversationState(st *models.ConversationState) error {
	data, err := st.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize state for %s: %w", st.ConversationID, err)
	}
	_, err = s.db.Exec(
		`INSERT OR REPLACE INTO conversation_states (conversation_id, stage, state, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		st.ConversationID, string(st.Stage), data, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		slog.Error("SQLiteStore SaveConversationState failed", "error", err, "conversationID", st.ConversationID)
		return fmt.Errorf("failed to save state for %s: %w", st.ConversationID, err)
	}
	slog.Debug("SQLiteStore SaveConversationState succeeded", "conversationID", st.ConversationID, "stage", st.Stage)
	return nil
}

func (s *SQLiteStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT state FROM conversation_states WHERE conversation_id = ?`, conversationID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("SQLiteStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to load state for %s: %w", conversationID, err)
	}
	var st models.ConversationState
	if err := st.FromJSON(data); err != nil {
		return nil, fmt.Errorf("failed to deserialize state for %s: %w", conversationID, err)
	}
	return &st, nil
}

func (s *SQLiteStore) ListConversationStates() ([]*models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT state FROM conversation_states ORDER BY conversation_id`)
	if err != nil {
		slog.Error("SQLiteStore ListConversationStates query failed", "error", err)
		return nil, fmt.Errorf("failed to query states: %w", err)
	}
	defer rows.Close()

	var states []*models.ConversationState
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan state row: %w", err)
		}
		var st models.ConversationState
		if err := st.FromJSON(data); err != nil {
			return nil, fmt.Errorf("failed to deserialize state row: %w", err)
		}
		states = append(states, &st)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate state rows: %w", err)
	}
	slog.Debug("SQLiteStore ListConversationStates succeeded", "count", len(states))
	return states, nil
}

func (s *SQLiteStore) DeleteConversationState(conversationID string) error {
	if _, err := s.db.Exec(`DELETE FROM turn_records WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to delete turn records for %s: %w", conversationID, err)
	}
	if _, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = ?`, conversationID); err != nil {
		slog.Error("SQLiteStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete state for %s: %w", conversationID, err)
	}
	return nil
}

func (s *SQLiteStore) AddTurnRecord(rec models.TurnRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO turn_records (conversation_id, stage, user_text, reply, time) VALUES (?, ?, ?, ?, ?)`,
		rec.ConversationID, string(rec.Stage), rec.UserText, rec.Reply, rec.Time)
	if err != nil {
		slog.Error("SQLiteStore AddTurnRecord failed", "error", err, "conversationID", rec.ConversationID)
		return fmt.Errorf("failed to insert turn record for %s: %w", rec.ConversationID, err)
	}
	return nil
}

func (s *SQLiteStore) GetTurnRecords(conversationID string) ([]models.TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT conversation_id, stage, user_text, reply, time FROM turn_records WHERE conversation_id = ? ORDER BY time`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query turn records: %w", err)
	}
	defer rows.Close()

	var recs []models.TurnRecord
	for rows.Next() {
		var rec models.TurnRecord
		var stage string
		if err := rows.Scan(&rec.ConversationID, &stage, &rec.UserText, &rec.Reply, &rec.Time); err != nil {
			return nil, fmt.Errorf("failed to scan turn record row: %w", err)
		}
		rec.Stage = models.Stage(stage)
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate turn record rows: %w", err)
	}
	return recs, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
