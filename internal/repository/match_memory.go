package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/match"
)

// MemoryMatchRepository keeps encoded matches in memory. Every Get decodes a fresh
// copy, so callers never share state with the store.
type MemoryMatchRepository struct {
	mu      sync.RWMutex
	matches map[string][]byte
	logger  *zap.Logger
}

// NewMemoryMatchRepository creates an empty repository.
func NewMemoryMatchRepository(logger *zap.Logger) *MemoryMatchRepository {
	return &MemoryMatchRepository{
		matches: make(map[string][]byte),
		logger:  logger,
	}
}

// Create implements match.Repository.
func (r *MemoryMatchRepository) Create(ctx context.Context, m *match.Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match: %w", err)
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.matches[m.ID]; ok {
		return fmt.Errorf("%w: %s", ErrMatchExists, m.ID)
	}
	r.matches[m.ID] = raw
	return nil
}

// Get implements match.Repository.
func (r *MemoryMatchRepository) Get(ctx context.Context, id string) (*match.Match, error) {
	r.mu.RLock()
	raw, ok := r.matches[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
	}
	return decodeMatch(raw)
}

// Save implements match.Repository.
func (r *MemoryMatchRepository) Save(ctx context.Context, m *match.Match) error {
	raw, err := json.Marshal(m)
	if err != nil {
		return fmt.Errorf("failed to encode match: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	prev, ok := r.matches[m.ID]
	if !ok {
		return fmt.Errorf("%w: %s", ErrMatchNotFound, m.ID)
	}
	stored, err := decodeMatch(prev)
	if err != nil {
		return err
	}
	if err := checkSave(stored, m); err != nil {
		return err
	}
	r.matches[m.ID] = raw

	if r.logger != nil {
		r.logger.Debug("saved match",
			zap.String("match_id", m.ID),
			zap.Int("version", m.Version),
			zap.Int("actions", len(m.Actions)),
		)
	}
	return nil
}

// IDs returns every stored match id in order.
func (r *MemoryMatchRepository) IDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.matches))
	for id := range r.matches {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func decodeMatch(raw []byte) (*match.Match, error) {
	var m match.Match
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("failed to decode match: %w", err)
	}
	return &m, nil
}

// checkSave enforces the version step and the append-only history.
func checkSave(stored, next *match.Match) error {
	if next.Version != stored.Version+1 {
		return fmt.Errorf("%w: %s stored at version %d, saving %d", ErrVersionConflict, next.ID, stored.Version, next.Version)
	}
	if len(next.Actions) < len(stored.Actions) {
		return fmt.Errorf("%w: %s would drop %d actions", ErrHistoryRewrite, next.ID, len(stored.Actions)-len(next.Actions))
	}
	for i, a := range stored.Actions {
		if next.Actions[i].Checksum != a.Checksum {
			return fmt.Errorf("%w: %s action %d changed", ErrHistoryRewrite, next.ID, i)
		}
	}
	return nil
}
