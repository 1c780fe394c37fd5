// Package store provides storage backends for conversation state.
//
// It includes an in-memory store for tests and single-process setups, plus
// SQLite and PostgreSQL backends for persistent deployments.
package store

import (
	"sort"
	"sync"

	"github.com/bmblueprint/dmagent/internal/models"
)

// Store persists conversation state between turns, keyed by conversation ID.
// GetConversationState returns (nil, nil) when no state exists yet.
type Store interface {
	SaveConversationState(st *models.ConversationState) error
	GetConversationState(conversationID string) (*models.ConversationState, error)
	ListConversationStates() ([]*models.ConversationState, error)
	DeleteConversationState(conversationID string) error

	// AddTurnRecord appends one entry to the per-conversation audit log.
	AddTurnRecord(rec models.TurnRecord) error
	GetTurnRecords(conversationID string) ([]models.TurnRecord, error)

	Close() error
}

// Opts holds configuration for store backends.
type Opts struct {
	DSN string
}

// Option configures a store backend.
type Option func(*Opts)

// WithDSN sets the database connection string (file path for SQLite, URL for
// Postgres).
func WithDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// InMemoryStore keeps everything in process memory. Safe for concurrent use.
type InMemoryStore struct {
	mu     sync.RWMutex
	states map[string]string // conversation ID -> state JSON
	turns  map[string][]models.TurnRecord
}

// NewInMemoryStore creates an empty in-memory store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		states: make(map[string]string),
		turns:  make(map[string][]models.TurnRecord),
	}
}

func (s *InMemoryStore) SaveConversationState(st *models.ConversationState) error {
	data, err := st.ToJSON()
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[st.ConversationID] = data
	return nil
}

func (s *InMemoryStore) GetConversationState(conversationID string) (*models.ConversationState, error) {
	s.mu.RLock()
	data, ok := s.states[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	var st models.ConversationState
	if err := st.FromJSON(data); err != nil {
		return nil, err
	}
	return &st, nil
}

func (s *InMemoryStore) ListConversationStates() ([]*models.ConversationState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.states))
	for id := range s.states {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	states := make([]*models.ConversationState, 0, len(ids))
	for _, id := range ids {
		var st models.ConversationState
		if err := st.FromJSON(s.states[id]); err != nil {
			return nil, err
		}
		states = append(states, &st)
	}
	return states, nil
}

func (s *InMemoryStore) DeleteConversationState(conversationID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, conversationID)
	delete(s.turns, conversationID)
	return nil
}

func (s *InMemoryStore) AddTurnRecord(rec models.TurnRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turns[rec.ConversationID] = append(s.turns[rec.ConversationID], rec)
	return nil
}

func (s *InMemoryStore) GetTurnRecords(conversationID string) ([]models.TurnRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := s.turns[conversationID]
	out := make([]models.TurnRecord, len(recs))
	copy(out, recs)
	return out, nil
}

func (s *InMemoryStore) Close() error { return nil }
