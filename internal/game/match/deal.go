package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/deck"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/engine"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// MaxMulligans bounds the redeals of one opening hand.
const MaxMulligans = 50

var (
	// ErrDeckTooSmall is returned when a deck cannot cover the opening hand and prizes.
	ErrDeckTooSmall = errors.New("deck too small to deal")
	// ErrNoBasicPokemon is returned when no opening hand could hold a basic pokemon.
	ErrNoBasicPokemon = errors.New("deck holds no basic pokemon")
)

// Start deals both opening boards and moves the match into setup. Each deck is
// shuffled with a key derived from the match, so the deal replays exactly.
func (m *Match) Start(ctx context.Context, cat catalog.Catalog, cfg engine.Rules, deck1, deck2 []string, now time.Time) error {
	if m.Lifecycle != LifecycleWaiting {
		return ErrAlreadyStarted
	}
	cfg = cfg.WithDefaults()

	p1, n1, err := Deal(ctx, cat, m.ID, m.Player1ID, deck1, cfg)
	if err != nil {
		return fmt.Errorf("failed to deal for %s: %w", m.Player1ID, err)
	}
	p2, n2, err := Deal(ctx, cat, m.ID, m.Player2ID, deck2, cfg)
	if err != nil {
		return fmt.Errorf("failed to deal for %s: %w", m.Player2ID, err)
	}

	g := state.NewGameState(m.ID, p1, p2)
	m.Initial = g
	m.State = g.Clone()
	m.Mulligans = map[string]int{m.Player1ID: n1, m.Player2ID: n2}
	m.Lifecycle = LifecycleSetup
	m.UpdatedAt = now.UTC()
	return nil
}

// Deal shuffles cards and deals the opening hand and prize cards. A hand without a
// basic pokemon is shuffled back and redealt; the number of redeals is returned.
func Deal(ctx context.Context, cat catalog.Catalog, matchID, playerID string, cards []string, cfg engine.Rules) (*state.PlayerGameState, int, error) {
	need := cfg.HandSize + cfg.PrizeCount
	if len(cards) < need {
		return nil, 0, fmt.Errorf("%w: %d cards, need at least %d", ErrDeckTooSmall, len(cards), need)
	}
	if ok, err := anyBasic(ctx, cat, cards); err != nil {
		return nil, 0, err
	} else if !ok {
		return nil, 0, ErrNoBasicPokemon
	}

	for attempt := 0; attempt <= MaxMulligans; attempt++ {
		shuffled := deck.Shuffle(cards, fmt.Sprintf("deal|%s|%s|%d", matchID, playerID, attempt))
		hand := shuffled[:cfg.HandSize]
		ok, err := anyBasic(ctx, cat, hand)
		if err != nil {
			return nil, 0, err
		}
		if !ok {
			continue
		}
		p := state.NewPlayerGameState(playerID, shuffled[need:])
		p.Hand = append([]string{}, hand...)
		p.Prizes = append([]string{}, shuffled[cfg.HandSize:need]...)
		return p, attempt, nil
	}
	return nil, 0, fmt.Errorf("%w: no basic after %d mulligans", ErrNoBasicPokemon, MaxMulligans)
}

func anyBasic(ctx context.Context, cat catalog.Catalog, cards []string) (bool, error) {
	seen := make(map[string]bool, len(cards))
	for _, id := range cards {
		if seen[id] {
			continue
		}
		seen[id] = true
		def, err := cat.GetDefinition(ctx, id)
		if err != nil {
			return false, fmt.Errorf("failed to look up %s: %w", id, err)
		}
		if def.IsBasicPokemon() {
			return true, nil
		}
	}
	return false, nil
}
