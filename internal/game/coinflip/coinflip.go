// Package coinflip implements the deterministic coin flip subsystem.
//
// Every flip is a pure function of (match id, turn number, action id, flip index), so
// flips can be computed ahead of time, replayed, or verified independently of the
// executor that requested them.
package coinflip

import (
	"fmt"
)

// Result is the outcome of a single coin flip.
type Result string

const (
	Heads Result = "HEADS"
	Tails Result = "TAILS"
)

// CountType describes how many coins a configuration flips.
type CountType string

const (
	// CountFixed flips Config.Count coins.
	CountFixed CountType = "FIXED"
	// CountUntilTails flips until the first tails, bounded by the resolver cap.
	CountUntilTails CountType = "UNTIL_TAILS"
	// CountVariable derives the number of coins from board state at resolution time.
	CountVariable CountType = "VARIABLE"
)

// VariableSource selects the board quantity used by CountVariable.
type VariableSource string

const (
	SourceEnergyAttached VariableSource = "ENERGY_ATTACHED"
	SourceBenchSize      VariableSource = "BENCH_SIZE"
	SourceDamageCounters VariableSource = "DAMAGE_COUNTERS"
	SourceHandSize       VariableSource = "HAND_SIZE"
)

// DamageMode describes how damage is derived from flip results.
type DamageMode string

const (
	// ModeBaseDamage is plain pass/fail: any tails means the attack does nothing.
	ModeBaseDamage DamageMode = "BASE_DAMAGE"
	// ModeMultiplyByHeads deals BaseDamage plus DamagePerHead for each heads.
	ModeMultiplyByHeads DamageMode = "MULTIPLY_BY_HEADS"
	// ModeConditionalBonus deals BaseDamage plus BonusOnHeads when every flip is heads.
	ModeConditionalBonus DamageMode = "CONDITIONAL_BONUS"
	// ModeStatusEffectOnly deals BaseDamage unconditionally; the flip only gates side effects.
	ModeStatusEffectOnly DamageMode = "STATUS_EFFECT_ONLY"
)

// DefaultUntilTailsCap bounds CountUntilTails sequences.
const DefaultUntilTailsCap = 20

// Config is the declarative flip configuration attached to an attack or status check.
type Config struct {
	CountType      CountType      `json:"countType" yaml:"countType"`
	Count          int            `json:"count,omitempty" yaml:"count,omitempty"`
	VariableSource VariableSource `json:"variableSource,omitempty" yaml:"variableSource,omitempty"`
	Mode           DamageMode     `json:"mode" yaml:"mode"`
	BaseDamage     int            `json:"baseDamage,omitempty" yaml:"baseDamage,omitempty"`
	DamagePerHead  int            `json:"damagePerHead,omitempty" yaml:"damagePerHead,omitempty"`
	BonusOnHeads   int            `json:"bonusOnHeads,omitempty" yaml:"bonusOnHeads,omitempty"`
}

// SingleFlip returns a one-coin configuration with the given damage mode.
func SingleFlip(mode DamageMode, baseDamage int) Config {
	return Config{CountType: CountFixed, Count: 1, Mode: mode, BaseDamage: baseDamage}
}

// Validate checks that the configuration is internally consistent.
func (c Config) Validate() error {
	switch c.CountType {
	case CountFixed:
		if c.Count <= 0 {
			return fmt.Errorf("fixed coin flip requires a positive count, got %d", c.Count)
		}
	case CountUntilTails:
	case CountVariable:
		switch c.VariableSource {
		case SourceEnergyAttached, SourceBenchSize, SourceDamageCounters, SourceHandSize:
		default:
			return fmt.Errorf("unknown variable flip source %q", c.VariableSource)
		}
	default:
		return fmt.Errorf("unknown coin flip count type %q", c.CountType)
	}
	switch c.Mode {
	case ModeBaseDamage, ModeMultiplyByHeads, ModeConditionalBonus, ModeStatusEffectOnly:
	default:
		return fmt.Errorf("unknown coin flip damage mode %q", c.Mode)
	}
	return nil
}

// Inputs are the board quantities available to CountVariable at resolution time.
type Inputs struct {
	EnergyAttached int
	BenchSize      int
	DamageCounters int
	HandSize       int
}

// HashString is the stable 32-bit string hash used for seeding
// (h = h*31 + c with int32 wrap-around, over UTF-16 code units of ASCII input).
func HashString(s string) int32 {
	var h int32
	for _, r := range s {
		h = (h << 5) - h + int32(r)
	}
	return h
}

// Seed derives the seed for one flip.
func Seed(matchID string, turnNumber int, actionID string, flipIndex int) int64 {
	key := fmt.Sprintf("%s-%d-%s-%d", matchID, turnNumber, actionID, flipIndex)
	h := int64(HashString(key))
	if h < 0 {
		h = -h
	}
	return h
}

// Flip runs one linear congruential step from seed and maps it to heads or tails.
func Flip(seed int64) Result {
	const (
		multiplier = 9301
		increment  = 49297
		modulus    = 233280
	)
	next := (seed*multiplier + increment) % modulus
	if next < modulus/2 {
		return Heads
	}
	return Tails
}

// Resolver computes flip sequences and flip-derived damage. It holds no mutable state.
type Resolver struct {
	untilTailsCap int
}

// NewResolver creates a resolver; a non-positive cap falls back to DefaultUntilTailsCap.
func NewResolver(untilTailsCap int) *Resolver {
	if untilTailsCap <= 0 {
		untilTailsCap = DefaultUntilTailsCap
	}
	return &Resolver{untilTailsCap: untilTailsCap}
}

// UntilTailsCap returns the hard bound applied to CountUntilTails.
func (r *Resolver) UntilTailsCap() int {
	return r.untilTailsCap
}

// Count returns the number of coins to flip. For CountUntilTails this is the upper bound.
func (r *Resolver) Count(cfg Config, in Inputs) int {
	switch cfg.CountType {
	case CountFixed:
		return cfg.Count
	case CountUntilTails:
		return r.untilTailsCap
	case CountVariable:
		switch cfg.VariableSource {
		case SourceEnergyAttached:
			return in.EnergyAttached
		case SourceBenchSize:
			return in.BenchSize
		case SourceDamageCounters:
			return in.DamageCounters
		case SourceHandSize:
			return in.HandSize
		}
	}
	return 0
}

// FlipAll produces the full result sequence for cfg.
func (r *Resolver) FlipAll(cfg Config, in Inputs, matchID string, turnNumber int, actionID string) []Result {
	n := r.Count(cfg, in)
	results := make([]Result, 0, n)
	for i := 0; i < n; i++ {
		res := Flip(Seed(matchID, turnNumber, actionID, i))
		results = append(results, res)
		if cfg.CountType == CountUntilTails && res == Tails {
			break
		}
	}
	return results
}

// CountHeads returns the number of heads in results.
func CountHeads(results []Result) int {
	n := 0
	for _, res := range results {
		if res == Heads {
			n++
		}
	}
	return n
}

// AllHeads reports whether results is non-empty and contains no tails.
func AllHeads(results []Result) bool {
	return len(results) > 0 && CountHeads(results) == len(results)
}

// Damage derives the attack damage from the flip results.
func Damage(cfg Config, results []Result) int {
	heads := CountHeads(results)
	switch cfg.Mode {
	case ModeBaseDamage:
		if AllHeads(results) {
			return cfg.BaseDamage
		}
		return 0
	case ModeMultiplyByHeads:
		return cfg.BaseDamage + heads*cfg.DamagePerHead
	case ModeConditionalBonus:
		if AllHeads(results) {
			return cfg.BaseDamage + cfg.BonusOnHeads
		}
		return cfg.BaseDamage
	case ModeStatusEffectOnly:
		return cfg.BaseDamage
	}
	return 0
}

// ShouldProceed reports whether the attack continues after the flips. Only plain
// pass/fail flips cancel the attack outright; the other modes only fail side effects.
func ShouldProceed(cfg Config, results []Result) bool {
	if cfg.Mode == ModeBaseDamage {
		return AllHeads(results)
	}
	return true
}
