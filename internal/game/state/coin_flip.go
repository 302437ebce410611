package state

import (
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
)

// CoinFlipStatus tracks whether a pending flip has been produced.
type CoinFlipStatus string

const (
	CoinFlipReady     CoinFlipStatus = "READY"
	CoinFlipCompleted CoinFlipStatus = "COMPLETED"
)

// CoinFlipContext says what a pending flip resolves.
type CoinFlipContext string

const (
	// FlipContextAttack resolves an attack's own coin flip.
	FlipContextAttack CoinFlipContext = "ATTACK"
	// FlipContextStatusCheck resolves a confusion check or a sleep wake-up.
	FlipContextStatusCheck CoinFlipContext = "STATUS_CHECK"
)

// CoinFlipState describes a flip an action is paused on.
type CoinFlipState struct {
	Status        CoinFlipStatus    `json:"status"`
	Context       CoinFlipContext   `json:"context"`
	Configuration coinflip.Config   `json:"configuration"`
	Results       []coinflip.Result `json:"results"`
	// ActionID is the id of the action that created the flip; it seeds the results.
	ActionID string `json:"actionId"`
	// PlayerID is the player expected to submit GENERATE_COIN_FLIP.
	PlayerID          string       `json:"playerId"`
	AttackIndex       int          `json:"attackIndex"`
	PokemonInstanceID string       `json:"pokemonInstanceId,omitempty"`
	StatusEffect      StatusEffect `json:"statusEffect,omitempty"`
	// InstanceIDs lists every asleep pokemon covered by a between-turn wake-up flip.
	InstanceIDs       []string `json:"instanceIds,omitempty"`
	SelectedEnergyIDs []string `json:"selectedEnergyIds,omitempty"`
}

// Clone returns a deep copy.
func (c *CoinFlipState) Clone() *CoinFlipState {
	if c == nil {
		return nil
	}
	out := *c
	out.Results = append([]coinflip.Result{}, c.Results...)
	out.InstanceIDs = cloneStrings(c.InstanceIDs)
	out.SelectedEnergyIDs = cloneStrings(c.SelectedEnergyIDs)
	return &out
}

// IsWakeUp reports whether this is the between-turn sleep check.
func (c *CoinFlipState) IsWakeUp() bool {
	return c.Context == FlipContextStatusCheck && c.StatusEffect == StatusAsleep
}

// IsConfusionCheck reports whether this is the attack-time confusion check.
func (c *CoinFlipState) IsConfusionCheck() bool {
	return c.Context == FlipContextStatusCheck && c.StatusEffect == StatusConfused
}
