package engine

import (
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/deck"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/status"
)

// Rules holds the numeric game rules the executor enforces.
type Rules struct {
	PrizeCount          int
	BenchSize           int
	HandSize            int
	DeckSize            int
	MaxCopies           int
	PoisonDamage        int
	BurnDamage          int
	ConfusionSelfDamage int
	MaxUntilTailsFlips  int
	// LegacyTextEffects enables the deprecated rule text fallback for attacks
	// that carry no structured effect data.
	LegacyTextEffects bool
}

// DefaultRules returns the printed rules.
func DefaultRules() Rules {
	return Rules{
		PrizeCount:          6,
		BenchSize:           state.MaxBenchSize,
		HandSize:            7,
		DeckSize:            deck.DefaultSize,
		MaxCopies:           deck.DefaultMaxCopies,
		PoisonDamage:        status.DefaultPoisonDamage,
		BurnDamage:          status.DefaultBurnDamage,
		ConfusionSelfDamage: status.DefaultConfusionSelfDamage,
		MaxUntilTailsFlips:  coinflip.DefaultUntilTailsCap,
		LegacyTextEffects:   true,
	}
}

// WithDefaults fills zero values from DefaultRules and caps the bench at the board size.
func (r Rules) WithDefaults() Rules {
	def := DefaultRules()
	if r.PrizeCount <= 0 {
		r.PrizeCount = def.PrizeCount
	}
	if r.BenchSize <= 0 || r.BenchSize > state.MaxBenchSize {
		r.BenchSize = def.BenchSize
	}
	if r.HandSize <= 0 {
		r.HandSize = def.HandSize
	}
	if r.DeckSize <= 0 {
		r.DeckSize = def.DeckSize
	}
	if r.MaxCopies <= 0 {
		r.MaxCopies = def.MaxCopies
	}
	if r.PoisonDamage <= 0 {
		r.PoisonDamage = def.PoisonDamage
	}
	if r.BurnDamage <= 0 {
		r.BurnDamage = def.BurnDamage
	}
	if r.ConfusionSelfDamage <= 0 {
		r.ConfusionSelfDamage = def.ConfusionSelfDamage
	}
	if r.MaxUntilTailsFlips <= 0 {
		r.MaxUntilTailsFlips = def.MaxUntilTailsFlips
	}
	return r
}

// DeckOptions returns the construction rules for deck.Validate and deck.FixUp.
func (r Rules) DeckOptions() deck.Options {
	return deck.Options{Size: r.DeckSize, MaxCopies: r.MaxCopies}
}

// StatusConfig returns the amounts for the status processor.
func (r Rules) StatusConfig() status.Config {
	return status.Config{
		PoisonDamage:        r.PoisonDamage,
		BurnDamage:          r.BurnDamage,
		ConfusionSelfDamage: r.ConfusionSelfDamage,
	}
}
