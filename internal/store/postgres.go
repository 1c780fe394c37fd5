// Package store provides storage backends for conversation state.
//
// This file implements the PostgreSQL-backed store, compatible with hosted
// Postgres offerings such as Supabase.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/bmblueprint/dmagent/internal/models"
	_ "github.com/lib/pq"
)

// Database connection pool configuration constants.
const (
	DefaultMaxOpenConns    = 25
	DefaultMaxIdleConns    = 25
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("PostgresStore.NewPostgresStore: creating Postgres store", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) SaveConversationState(st *models.ConversationState) error {
	data, err := st.ToJSON()
	if err != nil {
		return fmt.Errorf("failed to serialize state for %s: %w", st.ConversationID, err)
	}
	_, err = s.db.Exec(
		`INSERT INTO conversation_states (conversation_id, stage, state, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (conversation_id) DO UPDATE SET stage = $2, state = $3, updated_at = $5`,
		st.ConversationID, string(st.Stage), data, st.CreatedAt, st.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveConversationState failed", "error", err, "conversationID", st.ConversationID)
		return fmt.Errorf("failed to save state for %s: %w", st.ConversationID, err)
	}
	slog.Debug("PostgresStore SaveConversationState succeeded", "conversationID", st.ConversationID, "stage", st.Stage)
	return nil
}

func (s *PostgresStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	var data string
	err := s.db.QueryRow(
		`SELECT state FROM conversation_states WHERE conversation_id = $1`, conversationID).Scan(&data)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetConversationState failed", "error", err, "conversationID", conversationID)
		return nil, fmt.Errorf("failed to load state for %s: %w", conversationID, err)
	}
	var st models.ConversationState
	if err := st.FromJSON(data); err != nil {
		return nil, fmt.Errorf("failed to deserialize state for %s: %w", conversationID, err)
	}
	return &st, nil
}

func (s *PostgresStore) ListConversationStates() ([]*models.ConversationState, error) {
	rows, err := s.db.Query(`SELECT state FROM conversation_states ORDER BY conversation_id`)
	if err != nil {
		slog.Error("PostgresStore ListConversationStates query failed", "error", err)
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
	return states, nil
}

func (s *PostgresStore) DeleteConversationState(conversationID string) error {
	if _, err := s.db.Exec(`DELETE FROM turn_records WHERE conversation_id = $1`, conversationID); err != nil {
		return fmt.Errorf("failed to delete turn records for %s: %w", conversationID, err)
	}
	if _, err := s.db.Exec(`DELETE FROM conversation_states WHERE conversation_id = $1`, conversationID); err != nil {
		slog.Error("PostgresStore DeleteConversationState failed", "error", err, "conversationID", conversationID)
		return fmt.Errorf("failed to delete state for %s: %w", conversationID, err)
	}
	return nil
}

func (s *PostgresStore) AddTurnRecord(rec models.TurnRecord) error {
	_, err := s.db.Exec(
		`INSERT INTO turn_records (conversation_id, stage, user_text, reply, time) VALUES ($1, $2, $3, $4, $5)`,
		rec.ConversationID, string(rec.Stage), rec.UserText, rec.Reply, rec.Time)
	if err != nil {
		slog.Error("PostgresStore AddTurnRecord failed", "error", err, "conversationID", rec.ConversationID)
		return fmt.Errorf("failed to insert turn record for %s: %w", rec.ConversationID, err)
	}
	return nil
}

func (s *PostgresStore) GetTurnRecords(conversationID string) ([]models.TurnRecord, error) {
	rows, err := s.db.Query(
		`SELECT conversation_id, stage, user_text, reply, time FROM turn_records WHERE conversation_id = $1 ORDER BY time`, conversationID)
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

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
