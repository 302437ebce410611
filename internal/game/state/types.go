// Package state holds the match data model: immutable GameState snapshots and the
// player/pokemon records they are built from.
package state

import (
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleCaser = cases.Title(language.English)

func displayName(s string) string {
	return titleCaser.String(strings.ReplaceAll(strings.ToLower(s), "_", " "))
}

// TurnPhase is the phase of the current player's turn.
type TurnPhase string

const (
	// PhaseSetup covers the initial placement of active and bench pokemon before turn 1.
	PhaseSetup TurnPhase = "SETUP"
	PhaseDraw  TurnPhase = "DRAW"
	PhaseMain  TurnPhase = "MAIN_PHASE"
	// PhaseAttack is entered while an attack waits on a coin flip.
	PhaseAttack TurnPhase = "ATTACK"
	// PhaseEnd follows a resolved attack; only END_TURN and knockout follow-ups remain.
	PhaseEnd TurnPhase = "END"
)

// ActionType enumerates the actions a player can submit.
type ActionType string

const (
	ActionDrawCard             ActionType = "DRAW_CARD"
	ActionAttachEnergy         ActionType = "ATTACH_ENERGY"
	ActionPlayPokemon          ActionType = "PLAY_POKEMON"
	ActionSetActivePokemon     ActionType = "SET_ACTIVE_POKEMON"
	ActionEvolvePokemon        ActionType = "EVOLVE_POKEMON"
	ActionRetreat              ActionType = "RETREAT"
	ActionAttack               ActionType = "ATTACK"
	ActionUseAbility           ActionType = "USE_ABILITY"
	ActionPlayTrainer          ActionType = "PLAY_TRAINER"
	ActionEndTurn              ActionType = "END_TURN"
	ActionSelectPrize          ActionType = "SELECT_PRIZE"
	ActionGenerateCoinFlip     ActionType = "GENERATE_COIN_FLIP"
	ActionConcede              ActionType = "CONCEDE"
	ActionCompleteInitialSetup ActionType = "COMPLETE_INITIAL_SETUP"
)

// AllActionTypes lists every action type in display order.
var AllActionTypes = []ActionType{
	ActionDrawCard,
	ActionAttachEnergy,
	ActionPlayPokemon,
	ActionSetActivePokemon,
	ActionEvolvePokemon,
	ActionRetreat,
	ActionAttack,
	ActionUseAbility,
	ActionPlayTrainer,
	ActionEndTurn,
	ActionSelectPrize,
	ActionGenerateCoinFlip,
	ActionConcede,
	ActionCompleteInitialSetup,
}

// ParseActionType validates a wire action type.
func ParseActionType(s string) (ActionType, error) {
	candidate := ActionType(strings.ToUpper(strings.TrimSpace(s)))
	for _, at := range AllActionTypes {
		if at == candidate {
			return at, nil
		}
	}
	return "", fmt.Errorf("unknown action type %q", s)
}

// DisplayName returns a human readable name, e.g. "Attach Energy".
func (a ActionType) DisplayName() string {
	return displayName(string(a))
}

// StatusEffect is a special condition on a pokemon in play.
type StatusEffect string

const (
	StatusAsleep    StatusEffect = "ASLEEP"
	StatusParalyzed StatusEffect = "PARALYZED"
	StatusConfused  StatusEffect = "CONFUSED"
	StatusPoisoned  StatusEffect = "POISONED"
	StatusBurned    StatusEffect = "BURNED"
)

// blockingPriority orders the mutually exclusive conditions; lower wins.
var blockingPriority = map[StatusEffect]int{
	StatusAsleep:    0,
	StatusParalyzed: 1,
	StatusConfused:  2,
}

// IsBlocking reports whether the effect is one of the mutually exclusive
// conditions that gate attacks (ASLEEP, PARALYZED, CONFUSED).
func (s StatusEffect) IsBlocking() bool {
	_, ok := blockingPriority[s]
	return ok
}

// Valid reports whether s is a known status effect.
func (s StatusEffect) Valid() bool {
	switch s {
	case StatusAsleep, StatusParalyzed, StatusConfused, StatusPoisoned, StatusBurned:
		return true
	}
	return false
}

// DisplayName returns e.g. "Poisoned".
func (s StatusEffect) DisplayName() string {
	return displayName(string(s))
}

// PokemonPosition is a board slot.
type PokemonPosition string

const (
	PositionActive PokemonPosition = "ACTIVE"
	PositionBench0 PokemonPosition = "BENCH_0"
	PositionBench1 PokemonPosition = "BENCH_1"
	PositionBench2 PokemonPosition = "BENCH_2"
	PositionBench3 PokemonPosition = "BENCH_3"
	PositionBench4 PokemonPosition = "BENCH_4"
)

// MaxBenchSize is the printed bench limit.
const MaxBenchSize = 5

// BenchPosition returns the position for bench slot i.
func BenchPosition(i int) PokemonPosition {
	return PokemonPosition(fmt.Sprintf("BENCH_%d", i))
}

// BenchIndex returns the bench slot of p, or false for the active slot and unknown values.
func (p PokemonPosition) BenchIndex() (int, bool) {
	var idx int
	if _, err := fmt.Sscanf(string(p), "BENCH_%d", &idx); err != nil {
		return 0, false
	}
	if idx < 0 || idx >= MaxBenchSize || BenchPosition(idx) != p {
		return 0, false
	}
	return idx, true
}

// ParsePosition validates a wire position.
func ParsePosition(s string) (PokemonPosition, error) {
	p := PokemonPosition(strings.ToUpper(strings.TrimSpace(s)))
	if p == PositionActive {
		return p, nil
	}
	if _, ok := p.BenchIndex(); ok {
		return p, nil
	}
	return "", fmt.Errorf("unknown position %q", s)
}
