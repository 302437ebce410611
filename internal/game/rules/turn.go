package rules

import (
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// phaseActions lists the actions the player whose turn it is may submit in each phase.
var phaseActions = map[state.TurnPhase][]state.ActionType{
	state.PhaseSetup: {
		state.ActionPlayPokemon,
		state.ActionSetActivePokemon,
		state.ActionCompleteInitialSetup,
		state.ActionConcede,
	},
	state.PhaseDraw: {
		state.ActionDrawCard,
		state.ActionSetActivePokemon,
		state.ActionGenerateCoinFlip,
		state.ActionConcede,
	},
	state.PhaseMain: {
		state.ActionAttachEnergy,
		state.ActionPlayPokemon,
		state.ActionSetActivePokemon,
		state.ActionEvolvePokemon,
		state.ActionRetreat,
		state.ActionAttack,
		state.ActionUseAbility,
		state.ActionPlayTrainer,
		state.ActionEndTurn,
		state.ActionSelectPrize,
		state.ActionGenerateCoinFlip,
		state.ActionConcede,
	},
	state.PhaseAttack: {
		state.ActionGenerateCoinFlip,
		state.ActionConcede,
	},
	state.PhaseEnd: {
		state.ActionEndTurn,
		state.ActionSelectPrize,
		state.ActionSetActivePokemon,
		state.ActionConcede,
	},
}

// outOfTurnActions may be submitted by the player whose turn it is not.
var outOfTurnActions = map[state.ActionType]bool{
	state.ActionSetActivePokemon: true,
	state.ActionConcede:          true,
}

// PhaseAllows reports whether action is in the phase table for phase.
func PhaseAllows(phase state.TurnPhase, action state.ActionType) bool {
	for _, a := range phaseActions[phase] {
		if a == action {
			return true
		}
	}
	return false
}

// PhaseActions returns the phase table entry for phase.
func PhaseActions(phase state.TurnPhase) []state.ActionType {
	return append([]state.ActionType{}, phaseActions[phase]...)
}

// AllowedOutOfTurn reports whether the non-current player may submit action.
func AllowedOutOfTurn(action state.ActionType) bool {
	return outOfTurnActions[action]
}

// PassTurn hands the turn to the other player on the draft g: the turn number
// advances, per-turn flags reset for both players, expired damage effects are
// dropped, and the new turn starts in the draw phase.
func PassTurn(g *state.GameState) {
	g.TurnNumber++
	g.CurrentPlayerID = g.OpponentID(g.CurrentPlayerID)
	g.Phase = state.PhaseDraw
	for _, p := range g.Players() {
		p.EnergyAttachedThisTurn = false
	}
	g.AbilitiesUsed = []string{}
	g.PruneDamageEffects()
}

// StartFirstTurn leaves setup and gives turn 1 to firstPlayerID.
func StartFirstTurn(g *state.GameState, firstPlayerID string) {
	g.TurnNumber = 1
	g.FirstPlayerID = firstPlayerID
	g.CurrentPlayerID = firstPlayerID
	g.Phase = state.PhaseDraw
	for _, p := range g.Players() {
		p.EnergyAttachedThisTurn = false
	}
}
