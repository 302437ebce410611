package match_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog/catalogtest"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/engine"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/match"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/repository"
)

var clock = time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

func build(parts ...any) []string {
	var out []string
	for i := 0; i < len(parts); i += 2 {
		id := parts[i].(string)
		for n := 0; n < parts[i+1].(int); n++ {
			out = append(out, id)
		}
	}
	return out
}

func fireDeck() []string {
	return build("charmander", 4, "charmeleon", 4, "ponyta", 4, "rattata", 4, "potion", 4, "bill", 4, "fire-energy", 36)
}

func waterDeck() []string {
	return build("squirtle", 4, "poliwag", 4, "pidgey", 4, "snorlax", 4, "switch", 4, "potion", 4, "water-energy", 36)
}

type fixture struct {
	cat     *catalog.MemoryCatalog
	repo    *repository.MemoryMatchRepository
	service *match.Service
	archive string
	events  *[]rules.Event
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	cat := catalogtest.Catalog(t)
	repo := repository.NewMemoryMatchRepository(logger)
	f := newFixtureWithRepo(t, cat, repo)
	f.repo = repo
	return f
}

func newFixtureWithRepo(t *testing.T, cat *catalog.MemoryCatalog, repo match.Repository) *fixture {
	t.Helper()
	logger := zaptest.NewLogger(t)
	ex := engine.NewExecutor(cat, engine.DefaultRules(), logger)
	bus := rules.NewEventBus()
	var events []rules.Event
	var mu sync.Mutex
	bus.Subscribe(func(ev rules.Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})
	dir := t.TempDir()
	svc := match.NewService(repo, ex, cat, match.NewReplayArchive(dir, logger), logger).
		WithClock(func() time.Time { return clock }).
		WithEventBus(bus)
	return &fixture{cat: cat, service: svc, archive: dir, events: &events}
}

func (f *fixture) eventTypes() []rules.EventType {
	out := make([]rules.EventType, 0, len(*f.events))
	for _, ev := range *f.events {
		out = append(out, ev.Type)
	}
	return out
}

// firstBasic returns a basic pokemon from the player's hand.
func (f *fixture) firstBasic(t *testing.T, p *state.PlayerGameState) string {
	t.Helper()
	for _, id := range p.Hand {
		def, err := f.cat.GetDefinition(context.Background(), id)
		require.NoError(t, err)
		if def.IsBasicPokemon() {
			return id
		}
	}
	t.Fatalf("hand of %s holds no basic pokemon: %v", p.PlayerID, p.Hand)
	return ""
}

func TestDeal(t *testing.T) {
	cat := catalogtest.Catalog(t)
	cfg := engine.DefaultRules()
	ctx := context.Background()

	p, mulligans, err := match.Deal(ctx, cat, "m-1", "alice", fireDeck(), cfg)
	require.NoError(t, err)
	assert.Len(t, p.Hand, 7)
	assert.Len(t, p.Prizes, 6)
	assert.Len(t, p.Deck, 47)
	assert.Equal(t, 60, p.CardCount())
	assert.GreaterOrEqual(t, mulligans, 0)

	again, n, err := match.Deal(ctx, cat, "m-1", "alice", fireDeck(), cfg)
	require.NoError(t, err)
	assert.Equal(t, p, again)
	assert.Equal(t, mulligans, n)

	_, _, err = match.Deal(ctx, cat, "m-1", "alice", build("fire-energy", 60), cfg)
	assert.ErrorIs(t, err, match.ErrNoBasicPokemon)

	_, _, err = match.Deal(ctx, cat, "m-1", "alice", build("charmander", 4, "fire-energy", 5), cfg)
	assert.ErrorIs(t, err, match.ErrDeckTooSmall)
}

func TestStartTwice(t *testing.T) {
	cat := catalogtest.Catalog(t)
	m, err := match.New("m-2", "alice", "bob", clock)
	require.NoError(t, err)
	assert.Equal(t, "WAITING", m.Lifecycle.String())

	require.NoError(t, m.Start(context.Background(), cat, engine.DefaultRules(), fireDeck(), waterDeck(), clock))
	assert.Equal(t, match.LifecycleSetup, m.Lifecycle)
	assert.Equal(t, state.PhaseSetup, m.State.Phase)
	assert.NotSame(t, m.Initial, m.State)

	err = m.Start(context.Background(), cat, engine.DefaultRules(), fireDeck(), waterDeck(), clock)
	assert.ErrorIs(t, err, match.ErrAlreadyStarted)

	_, err = match.New("m-3", "alice", "alice", clock)
	assert.Error(t, err)
}

func TestCreateMatchRejectsIllegalDeck(t *testing.T) {
	f := newFixture(t)
	bad := append(fireDeck(), "charmander")

	_, err := f.service.CreateMatch(context.Background(), "alice", "bob", bad, waterDeck())
	var deckErr *match.DeckError
	require.True(t, errors.As(err, &deckErr))
	assert.Equal(t, "alice", deckErr.PlayerID)
	assert.False(t, deckErr.Report.Valid())
	assert.Empty(t, f.repo.IDs())
}

func TestMatchFlow(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.service.CreateMatch(ctx, "alice", "bob", fireDeck(), waterDeck())
	require.NoError(t, err)
	assert.Equal(t, 1, m.Version)
	assert.Equal(t, match.LifecycleSetup, m.Lifecycle)

	for _, p := range []*state.PlayerGameState{m.State.Player1, m.State.Player2} {
		m, _, err = f.service.Submit(ctx, m.ID, p.PlayerID, "PLAY_POKEMON", map[string]any{
			engine.KeyCardID:   f.firstBasic(t, p),
			engine.KeyPosition: "ACTIVE",
		})
		require.NoError(t, err)
	}
	for _, id := range []string{"alice", "bob"} {
		m, _, err = f.service.Submit(ctx, m.ID, id, "COMPLETE_INITIAL_SETUP", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, match.LifecyclePlaying, m.Lifecycle)
	assert.Equal(t, 1, m.State.TurnNumber)
	assert.Equal(t, 5, m.Version)
	first := m.State.CurrentPlayerID

	_, _, err = f.service.Submit(ctx, m.ID, first, "END_TURN", nil)
	failure, ok := rules.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeWrongPhase, failure.Code)

	stored, err := f.service.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Version)

	_, _, err = f.service.Submit(ctx, m.ID, first, "SHUFFLE", nil)
	failure, ok = rules.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeUnknownAction, failure.Code)

	m, summary, err := f.service.Submit(ctx, m.ID, first, "DRAW_CARD", nil)
	require.NoError(t, err)
	assert.Equal(t, state.ActionDrawCard, summary.ActionType)
	assert.Equal(t, clock, summary.Timestamp)

	actions, err := f.service.AvailableActions(ctx, m.ID, first)
	require.NoError(t, err)
	assert.Contains(t, actions, state.ActionEndTurn)
	assert.NotContains(t, actions, state.ActionDrawCard)

	sum, err := f.service.Verify(ctx, m.ID)
	require.NoError(t, err)
	want, err := m.Checksum()
	require.NoError(t, err)
	assert.Equal(t, want, sum)

	loser := m.State.OpponentID(first)
	m, _, err = f.service.Submit(ctx, m.ID, loser, "CONCEDE", nil)
	require.NoError(t, err)
	assert.Equal(t, match.LifecycleEnded, m.Lifecycle)
	require.NotNil(t, m.Result)
	assert.Equal(t, first, m.Result.WinnerID)
	assert.Equal(t, rules.ReasonConcede, m.Result.Reason)

	_, _, err = f.service.Submit(ctx, m.ID, first, "END_TURN", nil)
	failure, ok = rules.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeMatchOver, failure.Code)

	archived, err := match.LoadReplayFile(f.archive, m.ID)
	require.NoError(t, err)
	assert.Len(t, archived.Actions, len(m.Actions))

	replay, err := match.BuildReplay(ctx, engine.NewExecutor(f.cat, engine.DefaultRules(), nil), archived)
	require.NoError(t, err)
	assert.Equal(t, len(m.Actions)+1, replay.Size())
	assert.Equal(t, state.PhaseSetup, replay.Next().Phase)
	assert.Equal(t, 1, replay.Position())
	last := replay.Skip(100)
	assert.Equal(t, replay.Size()-1, replay.Position())
	assert.Nil(t, replay.Next())
	got, err := state.Checksum(last)
	require.NoError(t, err)
	final, err := m.Checksum()
	require.NoError(t, err)
	assert.Equal(t, final, got)
}

func TestReplayDetectsTampering(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.service.CreateMatch(ctx, "alice", "bob", fireDeck(), waterDeck())
	require.NoError(t, err)
	m, _, err = f.service.Submit(ctx, m.ID, "alice", "PLAY_POKEMON", map[string]any{
		engine.KeyCardID:   f.firstBasic(t, m.State.Player1),
		engine.KeyPosition: "ACTIVE",
	})
	require.NoError(t, err)

	m.Actions[0].Checksum = "0000"
	ex := engine.NewExecutor(f.cat, engine.DefaultRules(), nil)
	_, err = match.BuildReplay(ctx, ex, m)
	assert.ErrorIs(t, err, match.ErrReplayDiverged)
}

func TestConcurrentSubmitsAreSerialized(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.service.CreateMatch(ctx, "alice", "bob", fireDeck(), waterDeck())
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, p := range []*state.PlayerGameState{m.State.Player1, m.State.Player2} {
		card := f.firstBasic(t, p)
		wg.Add(1)
		go func(i int, playerID, card string) {
			defer wg.Done()
			_, _, errs[i] = f.service.Submit(ctx, m.ID, playerID, "PLAY_POKEMON", map[string]any{
				engine.KeyCardID:   card,
				engine.KeyPosition: "ACTIVE",
			})
		}(i, p.PlayerID, card)
	}
	wg.Wait()
	require.NoError(t, errs[0])
	require.NoError(t, errs[1])

	stored, err := f.service.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Version)
	assert.Len(t, stored.Actions, 2)
	assert.NotNil(t, stored.State.Player1.Active)
	assert.NotNil(t, stored.State.Player2.Active)
}

// conflictingRepository loses every save to a concurrent writer.
type conflictingRepository struct {
	*repository.MemoryMatchRepository
}

func (r conflictingRepository) Save(ctx context.Context, m *match.Match) error {
	return repository.ErrVersionConflict
}

func TestSubmitPublishesOnlyCommittedActions(t *testing.T) {
	ctx := context.Background()
	cat := catalogtest.Catalog(t)
	repo := repository.NewMemoryMatchRepository(zaptest.NewLogger(t))
	f := newFixtureWithRepo(t, cat, conflictingRepository{repo})

	m, err := f.service.CreateMatch(ctx, "alice", "bob", fireDeck(), waterDeck())
	require.NoError(t, err)

	_, _, err = f.service.Submit(ctx, m.ID, "alice", "PLAY_POKEMON", map[string]any{
		engine.KeyCardID:   f.firstBasic(t, m.State.Player1),
		engine.KeyPosition: "ACTIVE",
	})
	require.ErrorIs(t, err, repository.ErrVersionConflict)
	assert.Empty(t, *f.events)

	stored, err := repo.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version)
	assert.Empty(t, stored.Actions)
}

func TestReplaysPublishNothing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.service.CreateMatch(ctx, "alice", "bob", fireDeck(), waterDeck())
	require.NoError(t, err)
	_, _, err = f.service.Submit(ctx, m.ID, "alice", "PLAY_POKEMON", map[string]any{
		engine.KeyCardID:   f.firstBasic(t, m.State.Player1),
		engine.KeyPosition: "ACTIVE",
	})
	require.NoError(t, err)
	require.Equal(t, []rules.EventType{rules.EventActionApplied}, f.eventTypes())

	_, err = f.service.Verify(ctx, m.ID)
	require.NoError(t, err)
	_, err = f.service.StepReplay(ctx, m.ID, 0, match.ReplaySkip, 1)
	require.NoError(t, err)
	assert.Equal(t, []rules.EventType{rules.EventActionApplied}, f.eventTypes())
}

func TestStepReplay(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	m, err := f.service.CreateMatch(ctx, "alice", "bob", fireDeck(), waterDeck())
	require.NoError(t, err)
	for _, p := range []*state.PlayerGameState{m.State.Player1, m.State.Player2} {
		m, _, err = f.service.Submit(ctx, m.ID, p.PlayerID, "PLAY_POKEMON", map[string]any{
			engine.KeyCardID:   f.firstBasic(t, p),
			engine.KeyPosition: "ACTIVE",
		})
		require.NoError(t, err)
	}

	frame, err := f.service.StepReplay(ctx, m.ID, 2, match.ReplayStart, 0)
	require.NoError(t, err)
	assert.Equal(t, 0, frame.Index)
	assert.Equal(t, 3, frame.Size)
	assert.Nil(t, frame.Action)
	assert.False(t, frame.Archived)
	dealt, err := state.Checksum(m.Initial)
	require.NoError(t, err)
	assert.Equal(t, dealt, frame.Checksum)

	frame, err = f.service.StepReplay(ctx, m.ID, 0, match.ReplayNext, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Index)
	require.NotNil(t, frame.Action)
	assert.Equal(t, "alice", frame.Action.Action.PlayerID)
	assert.Equal(t, m.Actions[0].Checksum, frame.Checksum)
	assert.NotNil(t, frame.State.Player1.Active)
	assert.Nil(t, frame.State.Player2.Active)

	frame, err = f.service.StepReplay(ctx, m.ID, 2, match.ReplayPrevious, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, frame.Index)

	frame, err = f.service.StepReplay(ctx, m.ID, 0, match.ReplaySkip, 10)
	require.NoError(t, err)
	assert.Equal(t, 2, frame.Index)
	assert.Equal(t, "bob", frame.Action.Action.PlayerID)
	final, err := m.Checksum()
	require.NoError(t, err)
	assert.Equal(t, final, frame.Checksum)

	_, err = f.service.StepReplay(ctx, m.ID, 2, match.ReplayNext, 0)
	assert.ErrorIs(t, err, match.ErrReplayBounds)
	_, err = f.service.StepReplay(ctx, m.ID, 0, match.ReplayPrevious, 0)
	assert.ErrorIs(t, err, match.ErrReplayBounds)
	_, err = f.service.StepReplay(ctx, m.ID, 0, match.ReplayMove("REWIND"), 0)
	assert.ErrorIs(t, err, match.ErrUnknownReplayMove)
	_, err = f.service.StepReplay(ctx, "missing", 0, match.ReplayStart, 0)
	assert.ErrorIs(t, err, repository.ErrMatchNotFound)

	m, _, err = f.service.Submit(ctx, m.ID, "bob", "CONCEDE", nil)
	require.NoError(t, err)
	require.Equal(t, match.LifecycleEnded, m.Lifecycle)

	frame, err = f.service.StepReplay(ctx, m.ID, 0, match.ReplaySkip, 3)
	require.NoError(t, err)
	assert.True(t, frame.Archived)
	assert.Equal(t, 3, frame.Index)
	assert.Equal(t, state.ActionConcede, frame.Action.Action.Type)
}
