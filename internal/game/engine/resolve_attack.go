package engine

import (
	"strconv"

	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/damage"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/status"
)

func itoa(n int) string {
	return strconv.Itoa(n)
}

// attackOf resolves the attacker's definition and the attack at idx.
func (e *Executor) attackOf(r *resolution, attacker *state.CardInstance, idx int) (*catalog.CardDefinition, *catalog.Attack, error) {
	def, err := e.definition(r.ctx, attacker.CardID)
	if err != nil {
		return nil, nil, err
	}
	if idx < 0 || idx >= len(def.Attacks) {
		return nil, nil, rules.Validation(rules.CodeInvalidField, "%s has no attack %d", def.Name, idx).
			With("field", KeyAttackIndex)
	}
	return def, &def.Attacks[idx], nil
}

func (e *Executor) resolveAttack(r *resolution) error {
	idx, err := r.action.requireInt(KeyAttackIndex)
	if err != nil {
		return err
	}
	attacker := r.actor.Active
	if attacker == nil {
		return rules.IllegalState(rules.CodeActiveRequired, "no active pokemon to attack with")
	}
	if r.opponent.Active == nil {
		return rules.IllegalState(rules.CodeNoDefender, "the opponent has no active pokemon")
	}
	def, attack, err := e.attackOf(r, attacker, idx)
	if err != nil {
		return err
	}

	gate := e.statuses.CheckAttack(attacker)
	if gate.Decision == status.Blocked {
		return rules.IllegalState(rules.CodeAttackBlocked, "%s is %s", def.Name, gate.Status.DisplayName()).
			With("status", string(gate.Status))
	}

	pool, err := e.energyPool(r.ctx, attacker)
	if err != nil {
		return err
	}
	if err := e.pipeline.ValidateEnergy(attack, pool); err != nil {
		return rules.IllegalState(rules.CodeInsufficientEnergy, "not enough energy for %s", attack.Name).Wrap(err)
	}

	var selected []string
	if req, ok := e.pipeline.DiscardRequirement(def, attack); ok {
		selected = r.action.strings(KeySelectedEnergyIDs)
		if err := energy.ValidateSelection(*req, pool, selected); err != nil {
			return selectionFailure(err, *req, pool, attack.Name)
		}
	}

	r.payload[KeyAttackIndex] = idx
	r.payload["attackName"] = attack.Name
	r.payload["attackerId"] = attacker.InstanceID

	if gate.Decision == status.NeedsConfusionFlip {
		e.pause(r, e.statuses.ConfusionFlip(r.actor.PlayerID, r.actionID, attacker, idx, selected))
		return nil
	}
	return e.commitAttack(r, idx, selected)
}

// commitAttack pays the discard cost and either pauses on the attack's own coin flip or
// deals the damage.
func (e *Executor) commitAttack(r *resolution, idx int, selected []string) error {
	attacker := r.actor.Active
	if attacker == nil {
		return rules.IllegalState(rules.CodeActiveRequired, "no active pokemon to attack with")
	}
	def, attack, err := e.attackOf(r, attacker, idx)
	if err != nil {
		return err
	}
	if len(selected) > 0 {
		if !discardFromPokemon(r.actor, attacker, selected) {
			return rules.Validation(rules.CodeInvalidEnergySelection, "selected energy is not attached to %s", def.Name)
		}
		r.payload["costDiscarded"] = append([]string{}, selected...)
	}

	if cfg := e.pipeline.CoinFlipConfig(def, attack); cfg != nil {
		e.pause(r, &state.CoinFlipState{
			Status:            state.CoinFlipReady,
			Context:           state.FlipContextAttack,
			Configuration:     *cfg,
			Results:           []coinflip.Result{},
			ActionID:          r.actionID,
			PlayerID:          r.actor.PlayerID,
			AttackIndex:       idx,
			PokemonInstanceID: attacker.InstanceID,
		})
		return nil
	}
	return e.strike(r, idx, nil)
}

// pause parks the action on a coin flip the player must generate next.
func (e *Executor) pause(r *resolution, flip *state.CoinFlipState) {
	r.g.CoinFlip = flip
	r.g.Phase = state.PhaseAttack
	r.payload[state.PayloadInitiated] = true
	r.payload[state.PayloadCoinFlipState] = map[string]any{
		"context":      string(flip.Context),
		"statusEffect": string(flip.StatusEffect),
		"attackIndex":  flip.AttackIndex,
		"countType":    string(flip.Configuration.CountType),
		"mode":         string(flip.Configuration.Mode),
	}
	ev := r.event(rules.EventCoinFlipPending, flip.PlayerID)
	ev.TargetID = flip.PokemonInstanceID
	ev.Metadata["context"] = string(flip.Context)
	if flip.StatusEffect != "" {
		ev.Metadata["status"] = string(flip.StatusEffect)
	}
}

// strike runs the damage pipeline for the actor's attack at idx and applies the result.
func (e *Executor) strike(r *resolution, idx int, flips []coinflip.Result) error {
	attacker := r.actor.Active
	defender := r.opponent.Active
	if attacker == nil {
		return rules.IllegalState(rules.CodeActiveRequired, "no active pokemon to attack with")
	}
	if defender == nil {
		return rules.IllegalState(rules.CodeNoDefender, "the opponent has no active pokemon")
	}
	attDef, attack, err := e.attackOf(r, attacker, idx)
	if err != nil {
		return err
	}
	defDef, err := e.definition(r.ctx, defender.CardID)
	if err != nil {
		return err
	}
	attPool, err := e.energyPool(r.ctx, attacker)
	if err != nil {
		return err
	}
	defPool, err := e.energyPool(r.ctx, defender)
	if err != nil {
		return err
	}

	in := damage.Input{
		MatchTurn:         r.g.TurnNumber,
		AttackerPlayerID:  r.actor.PlayerID,
		DefenderPlayerID:  r.opponent.PlayerID,
		Attacker:          attacker,
		AttackerDef:       attDef,
		Attack:            attack,
		Defender:          defender,
		DefenderDef:       defDef,
		AttackerEnergy:    attPool,
		DefenderEnergy:    defPool,
		OwnBenchSize:      len(r.actor.Bench),
		OpponentBenchSize: len(r.opponent.Bench),
		FlipResults:       flips,
		DefenderEffects:   r.g.ActiveDamageEffects(defender.InstanceID),
	}
	res, err := e.pipeline.Calculate(in)
	if err != nil {
		return rules.CatalogLookup(attDef.CardID, err)
	}
	applied := damage.Apply(r.g, in, res)

	r.payload[KeyAttackIndex] = idx
	r.payload["attackName"] = attack.Name
	r.payload["attackerId"] = attacker.InstanceID
	r.payload["defenderId"] = defender.InstanceID
	r.payload[state.PayloadDamage] = applied.DamageDealt
	r.payload["baseDamage"] = res.BaseDamage
	r.payload["proceeded"] = res.Proceeded
	if res.WeaknessApplied {
		r.payload["weakness"] = true
	}
	if res.ResistanceApplied {
		r.payload["resistance"] = true
	}
	if res.Prevented > 0 {
		r.payload["prevented"] = res.Prevented
	}
	if applied.SelfDamageDealt > 0 {
		r.payload["selfDamage"] = applied.SelfDamageDealt
	}
	if len(applied.BenchDamage) > 0 {
		bench := make(map[string]any, len(applied.BenchDamage))
		for id, n := range applied.BenchDamage {
			bench[id] = n
		}
		r.payload["benchDamage"] = bench
	}
	if len(applied.StatusesApplied) > 0 {
		r.payload["statusesApplied"] = applied.StatusesApplied
	}
	if len(applied.DiscardedEnergy) > 0 {
		r.payload["defenderDiscarded"] = applied.DiscardedEnergy
	}
	if flips != nil {
		r.payload["flipResults"] = resultStrings(flips)
	}

	r.g.CoinFlip = nil
	r.g.Phase = state.PhaseEnd
	e.scoreKnockouts(r, applied.Knockouts, true)
	return nil
}

// scoreKnockouts records knockouts and their prizes. A knockout scored by the actor
// during their own action is owed as a SELECT_PRIZE when allowSelection is set; any
// other knockout gives the scorer their top prize card immediately.
func (e *Executor) scoreKnockouts(r *resolution, kos []state.Knockout, allowSelection bool) {
	if len(kos) == 0 {
		return
	}
	ids := state.StringList(r.payload[state.PayloadKnockedOut])
	auto := state.StringList(r.payload[state.PayloadAutoPrizes])
	owed, _ := r.payload[state.PayloadPrizesOwed].(int)

	for _, ko := range kos {
		ids = append(ids, ko.InstanceID)
		ev := r.event(rules.EventKnockout, ko.PlayerID)
		ev.TargetID = ko.InstanceID
		ev.Metadata["card_id"] = ko.CardID
		if r.payload["defenderId"] == ko.InstanceID {
			ev.Amount, _ = r.payload[state.PayloadDamage].(int)
		}

		scorerID := r.g.OpponentID(ko.PlayerID)
		if allowSelection && scorerID == r.actor.PlayerID {
			owed++
		} else if _, ok := r.g.Player(scorerID).TakePrize(0); ok {
			auto = append(auto, scorerID)
		}

		if e.logger != nil {
			e.logger.Info("pokemon knocked out",
				zap.String("match_id", r.g.MatchID),
				zap.String("player_id", ko.PlayerID),
				zap.String("instance_id", ko.InstanceID),
				zap.String("card_id", ko.CardID),
				zap.String("scorer_id", scorerID),
			)
		}
	}

	r.payload[state.PayloadKnockout] = true
	r.payload[state.PayloadKnockedOut] = ids
	if owed > 0 {
		r.payload[state.PayloadPrizesOwed] = owed
	}
	if len(auto) > 0 {
		r.payload[state.PayloadAutoPrizes] = auto
	}
}

func (e *Executor) resolveCoinFlip(r *resolution) error {
	flip := r.g.CoinFlip
	if flip == nil || flip.Status != state.CoinFlipReady {
		return rules.IllegalState(rules.CodeNoCoinFlipPending, "no coin flip is pending")
	}
	if flip.PlayerID != "" && flip.PlayerID != r.actor.PlayerID {
		return rules.IllegalState(rules.CodeNotYourTurn, "the coin flip belongs to the other player").
			With("player_id", flip.PlayerID)
	}

	results := e.flips.FlipAll(flip.Configuration, e.flipInputs(r, flip), r.g.MatchID, r.g.TurnNumber, flip.ActionID)
	flip.Results = results
	flip.Status = state.CoinFlipCompleted
	r.g.CoinFlip = nil
	r.payload["flipContext"] = string(flip.Context)
	r.payload["results"] = resultStrings(results)
	r.payload["heads"] = coinflip.CountHeads(results)

	switch {
	case flip.IsWakeUp():
		woke := e.statuses.ResolveWakeUp(r.g, flip)
		if woke == nil {
			woke = []string{}
		}
		r.payload["wokeUp"] = woke
		return nil

	case flip.IsConfusionCheck():
		attacker := r.actor.Active
		if attacker == nil || attacker.InstanceID != flip.PokemonInstanceID {
			return rules.IllegalState(rules.CodeInvalidTarget, "the confused pokemon is no longer active")
		}
		proceed, self := e.statuses.ResolveConfusion(attacker, results)
		if proceed {
			return e.commitAttack(r, flip.AttackIndex, flip.SelectedEnergyIDs)
		}
		r.payload["confusionDamage"] = self
		r.g.Phase = state.PhaseEnd
		e.scoreKnockouts(r, r.g.RemoveKnockedOut(), true)
		return nil
	}
	return e.strike(r, flip.AttackIndex, results)
}

// flipInputs reads the board quantities a variable flip count depends on.
func (e *Executor) flipInputs(r *resolution, flip *state.CoinFlipState) coinflip.Inputs {
	c := r.actor.Active
	if flip.PokemonInstanceID != "" {
		if _, found, ok := r.g.OwnerOf(flip.PokemonInstanceID); ok {
			c = found
		}
	}
	in := coinflip.Inputs{
		BenchSize: len(r.actor.Bench),
		HandSize:  len(r.actor.Hand),
	}
	if c != nil {
		in.EnergyAttached = len(c.AttachedEnergy)
		in.DamageCounters = c.DamageCounters()
	}
	return in
}

func resultStrings(results []coinflip.Result) []string {
	out := make([]string, len(results))
	for i, res := range results {
		out[i] = string(res)
	}
	return out
}
