package match

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/deck"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/engine"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// Repository stores match aggregates.
type Repository interface {
	// Create stores a new match.
	Create(ctx context.Context, m *Match) error
	// Get loads a match.
	Get(ctx context.Context, id string) (*Match, error)
	// Save replaces a match whose stored version is m.Version-1. The stored action
	// history must be a prefix of the new one.
	Save(ctx context.Context, m *Match) error
}

// DeckError reports a deck list that breaks construction rules.
type DeckError struct {
	PlayerID string
	Report   *deck.Report
}

func (e *DeckError) Error() string {
	if len(e.Report.Problems) == 0 {
		return fmt.Sprintf("invalid deck for %s", e.PlayerID)
	}
	return fmt.Sprintf("invalid deck for %s: %s", e.PlayerID, e.Report.Problems[0].Message)
}

// Service runs matches. Actions on the same match are applied one at a time;
// different matches never wait on each other.
type Service struct {
	repo     Repository
	executor *engine.Executor
	catalog  catalog.Catalog
	archive  *ReplayArchive
	bus      *rules.EventBus
	logger   *zap.Logger
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*matchLock
}

type matchLock struct {
	mu   sync.Mutex
	refs int
}

// NewService creates a service. archive and logger may be nil.
func NewService(repo Repository, executor *engine.Executor, cat catalog.Catalog, archive *ReplayArchive, logger *zap.Logger) *Service {
	return &Service{
		repo:     repo,
		executor: executor,
		catalog:  cat,
		archive:  archive,
		logger:   logger,
		now:      time.Now,
		locks:    make(map[string]*matchLock),
	}
}

// WithClock replaces the time source and returns s.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// WithEventBus publishes the events of every committed action to bus and returns s.
func (s *Service) WithEventBus(bus *rules.EventBus) *Service {
	s.bus = bus
	return s
}

// lock serializes work on one match and returns the unlock function.
func (s *Service) lock(matchID string) func() {
	s.mu.Lock()
	l, ok := s.locks[matchID]
	if !ok {
		l = &matchLock{}
		s.locks[matchID] = l
	}
	l.refs++
	s.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		s.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(s.locks, matchID)
		}
		s.mu.Unlock()
	}
}

// CreateMatch validates both deck lists, deals the opening boards and stores a new
// match in setup.
func (s *Service) CreateMatch(ctx context.Context, player1ID, player2ID string, deck1, deck2 []string) (*Match, error) {
	opts := s.executor.Rules().DeckOptions()
	for _, d := range []struct {
		player string
		cards  []string
	}{{player1ID, deck1}, {player2ID, deck2}} {
		report, err := deck.Validate(ctx, s.catalog, d.cards, opts)
		if err != nil {
			return nil, fmt.Errorf("failed to validate deck: %w", err)
		}
		if !report.Valid() {
			return nil, &DeckError{PlayerID: d.player, Report: report}
		}
	}

	now := s.now()
	m, err := New(uuid.NewString(), player1ID, player2ID, now)
	if err != nil {
		return nil, err
	}
	if err := m.Start(ctx, s.catalog, s.executor.Rules(), deck1, deck2, now); err != nil {
		return nil, err
	}
	m.Version = 1
	if err := s.repo.Create(ctx, m); err != nil {
		return nil, fmt.Errorf("failed to store match: %w", err)
	}

	if s.logger != nil {
		s.logger.Info("match created",
			zap.String("match_id", m.ID),
			zap.String("player1_id", player1ID),
			zap.String("player2_id", player2ID),
			zap.Int("player1_mulligans", m.Mulligans[player1ID]),
			zap.Int("player2_mulligans", m.Mulligans[player2ID]),
		)
	}
	return m, nil
}

// Get loads a match.
func (s *Service) Get(ctx context.Context, matchID string) (*Match, error) {
	return s.repo.Get(ctx, matchID)
}

// Submit applies one action to a match and persists the result. Rule violations
// are returned as *rules.Failure and leave the stored match untouched.
func (s *Service) Submit(ctx context.Context, matchID, playerID, actionType string, data map[string]any) (*Match, state.ActionSummary, error) {
	action, err := engine.NewAction(actionType, playerID, data)
	if err != nil {
		return nil, state.ActionSummary{}, err
	}

	unlock := s.lock(matchID)
	defer unlock()

	m, err := s.repo.Get(ctx, matchID)
	if err != nil {
		return nil, state.ActionSummary{}, err
	}
	if m.State == nil {
		return nil, state.ActionSummary{}, rules.IllegalState(rules.CodeWrongPhase, "match has not been dealt").Wrap(ErrNotStarted)
	}

	now := s.now()
	out, err := s.executor.Resolve(ctx, m.State, action, now)
	if err != nil {
		return nil, state.ActionSummary{}, err
	}
	if err := m.Record(action, out.State, now); err != nil {
		return nil, state.ActionSummary{}, err
	}
	m.Version++
	if err := s.repo.Save(ctx, m); err != nil {
		return nil, state.ActionSummary{}, fmt.Errorf("failed to save match: %w", err)
	}
	if s.bus != nil {
		s.bus.PublishBatch(out.Events)
	}

	if m.Lifecycle == LifecycleEnded {
		if err := s.archive.Save(m, now); err != nil && s.logger != nil {
			s.logger.Warn("replay archive failed",
				zap.String("match_id", m.ID),
				zap.Error(err),
			)
		}
	}
	return m, out.Summary, nil
}

// AvailableActions lists what playerID may submit in the match right now.
func (s *Service) AvailableActions(ctx context.Context, matchID, playerID string) ([]state.ActionType, error) {
	m, err := s.repo.Get(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if m.State == nil {
		return []state.ActionType{}, nil
	}
	return s.executor.AvailableActions(ctx, m.State, playerID)
}

// Verify replays a stored match and returns its final checksum. It publishes nothing.
func (s *Service) Verify(ctx context.Context, matchID string) (string, error) {
	m, err := s.repo.Get(ctx, matchID)
	if err != nil {
		return "", err
	}
	r, err := BuildReplay(ctx, s.executor, m)
	if err != nil {
		return "", err
	}
	return state.Checksum(r.StateAt(r.Size() - 1))
}

// StepReplay rebuilds a match, places the cursor at from and applies move. Finished
// matches are read from the replay archive when it holds them; everything else is
// read from the repository.
func (s *Service) StepReplay(ctx context.Context, matchID string, from int, move ReplayMove, count int) (*ReplayFrame, error) {
	m, archived, err := s.replaySource(ctx, matchID)
	if err != nil {
		return nil, err
	}
	r, err := BuildReplay(ctx, s.executor, m)
	if err != nil {
		return nil, err
	}
	r.Skip(from)
	g, err := r.Step(move, count)
	if err != nil {
		return nil, err
	}
	sum, err := state.Checksum(g)
	if err != nil {
		return nil, fmt.Errorf("failed to checksum replay state: %w", err)
	}

	frame := &ReplayFrame{
		MatchID:  m.ID,
		Index:    r.Position(),
		Size:     r.Size(),
		State:    g,
		Checksum: sum,
		Archived: archived,
	}
	if frame.Index > 0 {
		rec := m.Actions[frame.Index-1]
		frame.Action = &rec
	}
	return frame, nil
}

func (s *Service) replaySource(ctx context.Context, matchID string) (*Match, bool, error) {
	if s.archive.Enabled() {
		m, err := s.archive.Load(matchID)
		if err == nil {
			return m, true, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return nil, false, err
		}
	}
	m, err := s.repo.Get(ctx, matchID)
	return m, false, err
}
