package engine

import (
	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/damage"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/deck"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// effectScope is where a trainer or ability effect runs from.
type effectScope struct {
	// source is the pokemon using an ability; nil for trainer cards.
	source *state.CardInstance
	// targetKey is the action data key naming a SELECTED pokemon.
	targetKey string
}

func (e *Executor) resolvePlayTrainer(r *resolution) error {
	cardID, err := r.action.requireString(KeyCardID)
	if err != nil {
		return err
	}
	def, err := e.handCard(r, cardID)
	if err != nil {
		return err
	}
	if !def.IsTrainer() {
		return rules.Validation(rules.CodeWrongCardType, "%s is not a trainer card", cardID).With("card_id", cardID)
	}

	r.actor.RemoveFromHand(cardID)
	if err := e.runEffects(r, def.TrainerEffects, effectScope{targetKey: KeyTarget}); err != nil {
		return err
	}
	r.actor.Discard = append(r.actor.Discard, cardID)
	r.payload[KeyCardID] = cardID
	return nil
}

func (e *Executor) resolveUseAbility(r *resolution) error {
	name, err := r.action.requireString(KeyAbilityName)
	if err != nil {
		return err
	}
	pos, ok, err := r.action.position(KeyTarget)
	if err != nil {
		return err
	}
	if !ok {
		pos = state.PositionActive
	}
	source, err := pokemonAt(r.actor, pos)
	if err != nil {
		return err
	}
	def, err := e.definition(r.ctx, source.CardID)
	if err != nil {
		return err
	}
	ability, found := def.Ability(name)
	if !found {
		return rules.Validation(rules.CodeInvalidField, "%s has no ability %q", def.Name, name).With("field", KeyAbilityName)
	}
	key := state.AbilityKey(source.InstanceID, ability.Name)
	if ability.OncePerTurn && r.g.HasUsedAbility(key) {
		return rules.IllegalState(rules.CodeAbilityAlreadyUsed, "%s was already used this turn", ability.Name).
			With("instance_id", source.InstanceID)
	}

	if err := e.runEffects(r, ability.Effects, effectScope{source: source, targetKey: KeyEffectTarget}); err != nil {
		return err
	}
	if ability.OncePerTurn {
		r.g.MarkAbilityUsed(key)
	}
	r.payload[KeyAbilityName] = ability.Name
	r.payload["instanceId"] = source.InstanceID
	return nil
}

func (e *Executor) runEffects(r *resolution, effects []catalog.Effect, scope effectScope) error {
	applied := state.StringList(r.payload["effects"])
	for _, eff := range effects {
		if err := e.runEffect(r, eff, scope); err != nil {
			return err
		}
		applied = append(applied, string(eff.Type))
	}
	r.payload["effects"] = applied
	return nil
}

func (e *Executor) runEffect(r *resolution, eff catalog.Effect, scope effectScope) error {
	switch eff.Type {
	case catalog.EffectDrawCards:
		n := r.actor.Draw(eff.Amount)
		prev, _ := r.payload["cardsDrawn"].(int)
		r.payload["cardsDrawn"] = prev + n

	case catalog.EffectHeal:
		target, _, err := e.effectTarget(r, eff, scope)
		if err != nil {
			return err
		}
		amount := eff.Amount
		if amount <= 0 {
			amount = target.DamageTaken()
		}
		r.payload["healed"] = target.Heal(amount)
		r.payload["healedId"] = target.InstanceID

	case catalog.EffectCureStatus:
		target, _, err := e.effectTarget(r, eff, scope)
		if err != nil {
			return err
		}
		if eff.Status != "" {
			target.RemoveStatus(state.StatusEffect(eff.Status))
		} else {
			target.ClearStatus()
		}
		r.payload["curedId"] = target.InstanceID

	case catalog.EffectSwitchActive:
		return e.switchActive(r, scope)

	case catalog.EffectDiscardEnergy:
		return e.discardEnergy(r, eff, scope)

	case catalog.EffectRetrieveEnergy:
		return e.retrieveEnergy(r, eff)

	case catalog.EffectShuffleHandDraw:
		pile := append(append([]string{}, r.actor.Deck...), r.actor.Hand...)
		r.actor.Deck = deck.Shuffle(pile, r.actionID)
		r.actor.Hand = []string{}
		r.payload["cardsDrawn"] = r.actor.Draw(eff.Amount)

	case catalog.EffectPreventDamage, catalog.EffectReduceDamage:
		target, _, err := e.effectTarget(r, eff, scope)
		if err != nil {
			return err
		}
		r.g.AddDamageEffect(damage.ProtectionEffect(eff, r.actor.PlayerID, target.InstanceID, r.g.TurnNumber))
		r.payload["protectedId"] = target.InstanceID

	case catalog.EffectStatusCondition:
		st := state.StatusEffect(eff.Status)
		if !st.Valid() {
			return rules.Validation(rules.CodeInvalidField, "unknown status %q", eff.Status)
		}
		target, _, err := e.effectTarget(r, eff, scope)
		if err != nil {
			return err
		}
		target.AddStatus(st)
		if st == state.StatusPoisoned && eff.PoisonDamage > 0 {
			target.PoisonDamage = eff.PoisonDamage
		}
		r.payload["statusApplied"] = string(st)
		r.payload["statusTargetId"] = target.InstanceID

	default:
		if e.logger != nil {
			e.logger.Debug("effect ignored outside an attack",
				zap.String("match_id", r.g.MatchID),
				zap.String("effect", string(eff.Type)),
			)
		}
	}
	return nil
}

// effectTarget resolves the single pokemon an effect applies to and its owner.
func (e *Executor) effectTarget(r *resolution, eff catalog.Effect, scope effectScope) (*state.CardInstance, *state.PlayerGameState, error) {
	switch eff.Target {
	case "", catalog.TargetSelf:
		if scope.source != nil {
			return scope.source, r.actor, nil
		}
		c, err := pokemonAt(r.actor, state.PositionActive)
		return c, r.actor, err
	case catalog.TargetDefender, catalog.TargetOpponent:
		if r.opponent.Active == nil {
			return nil, nil, rules.IllegalState(rules.CodeNoDefender, "the opponent has no active pokemon")
		}
		return r.opponent.Active, r.opponent, nil
	case catalog.TargetSelected:
		pos, ok, err := r.action.position(scope.targetKey)
		if err != nil {
			return nil, nil, err
		}
		if !ok {
			pos = state.PositionActive
		}
		c, err := pokemonAt(r.actor, pos)
		return c, r.actor, err
	}
	return nil, nil, rules.Validation(rules.CodeInvalidTarget, "effect %s cannot target %s", eff.Type, eff.Target)
}

// switchActive swaps the active pokemon with the selected bench pokemon. The pokemon
// leaving the active slot loses its special conditions.
func (e *Executor) switchActive(r *resolution, scope effectScope) error {
	idx, err := r.action.requireBench(scope.targetKey)
	if err != nil {
		return err
	}
	if r.actor.Active == nil {
		return rules.IllegalState(rules.CodeActiveRequired, "no active pokemon to switch")
	}
	if idx >= len(r.actor.Bench) {
		return rules.NotFound(rules.CodePositionEmpty, "no pokemon at %s", state.BenchPosition(idx))
	}
	leaving := r.actor.Active
	leaving.ClearStatus()
	r.actor.SwapActive(idx)
	r.payload["switchedOut"] = leaving.InstanceID
	r.payload["switchedIn"] = r.actor.Active.InstanceID
	return nil
}

// discardEnergy removes energy from the targeted pokemon. Without a selection the most
// recently attached matching cards go first.
func (e *Executor) discardEnergy(r *resolution, eff catalog.Effect, scope effectScope) error {
	if eff.Target == "" {
		eff.Target = catalog.TargetDefender
	}
	target, owner, err := e.effectTarget(r, eff, scope)
	if err != nil {
		return err
	}
	pool, err := e.energyPool(r.ctx, target)
	if err != nil {
		return err
	}
	ids := r.action.strings(KeySelectedEnergyIDs)
	if len(ids) > 0 {
		req := energy.Requirement{Amount: eff.Amount, All: eff.All, Type: eff.EnergyType, Target: string(target.Position)}
		if n := pool.CountCards(eff.EnergyType); !req.All && n < req.Amount {
			req.Amount = n
		}
		if err := energy.ValidateSelection(req, pool, ids); err != nil {
			return selectionFailure(err, req, pool, "the effect")
		}
	} else {
		ids = damage.PickEnergy(pool, eff.EnergyType, eff.Amount, eff.All)
	}
	if !discardFromPokemon(owner, target, ids) {
		return rules.Validation(rules.CodeInvalidEnergySelection, "selected energy is not attached")
	}
	if ids == nil {
		ids = []string{}
	}
	r.payload["discardedEnergy"] = ids
	r.payload["discardTargetId"] = target.InstanceID
	return nil
}

// retrieveEnergy moves basic energy cards from the actor's discard pile to the hand.
func (e *Executor) retrieveEnergy(r *resolution, eff catalog.Effect) error {
	limit := eff.Amount
	selected := r.action.strings(KeySelectedCardIDs)
	var out []string

	if len(selected) > 0 {
		if !eff.All && len(selected) > limit {
			return rules.Validation(rules.CodeInvalidField, "select at most %d energy cards", limit).With("field", KeySelectedCardIDs)
		}
		for _, id := range selected {
			def, err := e.definition(r.ctx, id)
			if err != nil {
				return err
			}
			if !def.IsBasicEnergy() {
				return rules.Validation(rules.CodeWrongCardType, "%s is not a basic energy card", id).With("card_id", id)
			}
			if !removeOne(&r.actor.Discard, id) {
				return rules.NotFound(rules.CodeCardNotFound, "%s is not in the discard pile", id).With("card_id", id)
			}
			out = append(out, id)
		}
	} else {
		for i := len(r.actor.Discard) - 1; i >= 0 && (eff.All || len(out) < limit); i-- {
			id := r.actor.Discard[i]
			def, err := e.definition(r.ctx, id)
			if err != nil {
				return err
			}
			if !def.IsBasicEnergy() || (eff.EnergyType != "" && def.EnergyType != eff.EnergyType) {
				continue
			}
			r.actor.Discard = append(r.actor.Discard[:i], r.actor.Discard[i+1:]...)
			out = append(out, id)
		}
	}

	r.actor.Hand = append(r.actor.Hand, out...)
	if out == nil {
		out = []string{}
	}
	r.payload["retrievedEnergy"] = out
	return nil
}

func removeOne(list *[]string, v string) bool {
	for i, s := range *list {
		if s == v {
			*list = append((*list)[:i], (*list)[i+1:]...)
			return true
		}
	}
	return false
}
