package engine

import (
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// resolveEndTurn passes the turn and runs the between-turn status pass. A player who
// would start their turn with an empty deck loses instead.
func (e *Executor) resolveEndTurn(r *resolution) error {
	next := r.opponent
	if len(next.Deck) == 0 {
		r.payload["deckOut"] = next.PlayerID
		r.end(rules.MatchResult{WinnerID: r.actor.PlayerID, LoserID: next.PlayerID, Reason: rules.ReasonDeckOut})
		return nil
	}

	rules.PassTurn(r.g)
	outcome := e.statuses.BetweenTurns(r.g, r.actor.PlayerID, r.actionID)

	r.payload["nextPlayerId"] = r.g.CurrentPlayerID
	r.payload["turnNumber"] = r.g.TurnNumber
	if len(outcome.Ticks) > 0 {
		ticks := make(map[string]any, len(outcome.Ticks))
		for _, t := range outcome.Ticks {
			prev, _ := ticks[t.InstanceID].(int)
			ticks[t.InstanceID] = prev + t.Damage
		}
		r.payload["statusDamage"] = ticks
	}
	if len(outcome.Cleared) > 0 {
		r.payload["paralysisCleared"] = outcome.Cleared
	}
	e.scoreKnockouts(r, outcome.Knockouts, false)

	if outcome.WakeUp != nil {
		r.g.CoinFlip = outcome.WakeUp
		r.payload[state.PayloadCoinFlipState] = map[string]any{
			"context":      string(outcome.WakeUp.Context),
			"statusEffect": string(outcome.WakeUp.StatusEffect),
			"instanceIds":  outcome.WakeUp.InstanceIDs,
		}
		ev := r.event(rules.EventCoinFlipPending, outcome.WakeUp.PlayerID)
		ev.Metadata["context"] = string(outcome.WakeUp.Context)
		ev.Metadata["status"] = string(state.StatusAsleep)
	}
	r.event(rules.EventTurnStarted, r.g.CurrentPlayerID)
	return nil
}

func (e *Executor) resolveSelectPrize(r *resolution) error {
	idx, ok, err := r.action.intValue(KeyPrizeIndex)
	if err != nil {
		return err
	}
	if !ok {
		idx = 0
	}
	card, taken := r.actor.TakePrize(idx)
	if !taken {
		return rules.Validation(rules.CodeInvalidField, "prize index %d out of range", idx).
			With("field", KeyPrizeIndex).
			With("prizes", itoa(len(r.actor.Prizes)))
	}
	r.payload[KeyPrizeIndex] = idx
	r.payload[KeyCardID] = card
	r.payload["prizesRemaining"] = len(r.actor.Prizes)
	return nil
}

func (e *Executor) resolveConcede(r *resolution) error {
	r.end(rules.MatchResult{WinnerID: r.opponent.PlayerID, LoserID: r.actor.PlayerID, Reason: rules.ReasonConcede})
	return nil
}

// resolveCompleteSetup marks the actor ready. Once both players are ready a coin flip
// picks who takes turn 1: heads gives it to player 1.
func (e *Executor) resolveCompleteSetup(r *resolution) error {
	if r.g.Phase != state.PhaseSetup {
		return rules.IllegalState(rules.CodeWrongPhase, "initial setup is over")
	}
	if r.actor.SetupComplete {
		return rules.IllegalState(rules.CodeSetupComplete, "initial setup already completed")
	}
	if r.actor.Active == nil {
		return rules.IllegalState(rules.CodeSetupIncomplete, "choose an active pokemon first")
	}
	r.actor.SetupComplete = true
	r.payload["benchSize"] = len(r.actor.Bench)

	if !r.opponent.SetupComplete {
		return nil
	}
	results := e.flips.FlipAll(coinflip.SingleFlip(coinflip.ModeStatusEffectOnly, 0), coinflip.Inputs{}, r.g.MatchID, 0, r.actionID)
	first := r.g.Player1.PlayerID
	if len(results) == 0 || results[0] == coinflip.Tails {
		first = r.g.Player2.PlayerID
	}
	rules.StartFirstTurn(r.g, first)
	r.payload["firstPlayerId"] = first
	r.payload["results"] = resultStrings(results)
	r.event(rules.EventTurnStarted, first)
	return nil
}
