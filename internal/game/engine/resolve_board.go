package engine

import (
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

func (e *Executor) resolveDraw(r *resolution) error {
	if len(r.actor.Deck) == 0 {
		return rules.IllegalState(rules.CodeDeckEmpty, "deck is empty")
	}
	card := r.actor.Deck[0]
	r.actor.Draw(1)
	r.g.Phase = state.PhaseMain
	r.payload[KeyCardID] = card
	r.payload["handSize"] = len(r.actor.Hand)
	return nil
}

// handCard checks that cardID is in the actor's hand and resolves its definition.
func (e *Executor) handCard(r *resolution, cardID string) (*catalog.CardDefinition, error) {
	if !r.actor.HandContains(cardID) {
		return nil, rules.NotFound(rules.CodeCardNotInHand, "%s is not in hand", cardID).With("card_id", cardID)
	}
	return e.definition(r.ctx, cardID)
}

func (e *Executor) resolveAttachEnergy(r *resolution) error {
	cardID, err := r.action.requireString(KeyEnergyCardID)
	if err != nil {
		return err
	}
	pos, err := r.action.requirePosition(KeyTarget)
	if err != nil {
		return err
	}
	if r.actor.EnergyAttachedThisTurn {
		return rules.IllegalState(rules.CodeEnergyAlreadyAttached, "energy was already attached this turn")
	}
	def, err := e.handCard(r, cardID)
	if err != nil {
		return err
	}
	if !def.IsEnergy() {
		return rules.Validation(rules.CodeWrongCardType, "%s is not an energy card", cardID).With("card_id", cardID)
	}
	target, err := pokemonAt(r.actor, pos)
	if err != nil {
		return err
	}

	r.actor.RemoveFromHand(cardID)
	target.AttachedEnergy = append(target.AttachedEnergy, cardID)
	r.actor.EnergyAttachedThisTurn = true

	r.payload[KeyEnergyCardID] = cardID
	r.payload[KeyTarget] = string(pos)
	r.payload["instanceId"] = target.InstanceID
	return nil
}

func (e *Executor) resolvePlayPokemon(r *resolution) error {
	cardID, err := r.action.requireString(KeyCardID)
	if err != nil {
		return err
	}
	pos, hasPos, err := r.action.position(KeyPosition)
	if err != nil {
		return err
	}
	setup := r.g.Phase == state.PhaseSetup
	if setup && r.actor.SetupComplete {
		return rules.IllegalState(rules.CodeSetupComplete, "initial setup already completed")
	}
	def, err := e.handCard(r, cardID)
	if err != nil {
		return err
	}
	if !def.IsBasicPokemon() {
		return rules.Validation(rules.CodeWrongCardType, "%s is not a basic pokemon", cardID).With("card_id", cardID)
	}

	toActive := hasPos && pos == state.PositionActive
	if toActive && !setup {
		return rules.Validation(rules.CodeInvalidField, "pokemon can only be played to the active slot during setup").With("field", KeyPosition)
	}
	if toActive && r.actor.Active != nil {
		return rules.IllegalState(rules.CodeActiveOccupied, "active pokemon already present")
	}
	if !toActive && len(r.actor.Bench) >= e.cfg.BenchSize {
		return rules.IllegalState(rules.CodeBenchFull, "bench is full").With("bench_size", itoa(e.cfg.BenchSize))
	}

	r.actor.RemoveFromHand(cardID)
	instance := state.NewCardInstance(state.InstanceID(r.g.MatchID, r.seq, 0), cardID, state.PositionActive, def.HP, r.g.TurnNumber)
	if toActive {
		r.actor.Active = instance
	} else {
		instance.Position = state.BenchPosition(len(r.actor.Bench))
		r.actor.Bench = append(r.actor.Bench, instance)
	}

	r.payload[KeyCardID] = cardID
	r.payload["instanceId"] = instance.InstanceID
	r.payload[KeyPosition] = string(instance.Position)
	return nil
}

// resolveSetActive fills an empty active slot from the bench, or from the hand during setup.
func (e *Executor) resolveSetActive(r *resolution) error {
	if r.actor.Active != nil {
		return rules.IllegalState(rules.CodeActiveOccupied, "active pokemon already present")
	}
	if r.g.Phase == state.PhaseSetup {
		if r.actor.SetupComplete {
			return rules.IllegalState(rules.CodeSetupComplete, "initial setup already completed")
		}
		if cardID, ok := r.action.str(KeyCardID); ok {
			def, err := e.handCard(r, cardID)
			if err != nil {
				return err
			}
			if !def.IsBasicPokemon() {
				return rules.Validation(rules.CodeWrongCardType, "%s is not a basic pokemon", cardID).With("card_id", cardID)
			}
			r.actor.RemoveFromHand(cardID)
			r.actor.Active = state.NewCardInstance(state.InstanceID(r.g.MatchID, r.seq, 0), cardID, state.PositionActive, def.HP, r.g.TurnNumber)
			r.payload[KeyCardID] = cardID
			r.payload["instanceId"] = r.actor.Active.InstanceID
			return nil
		}
	}

	idx, err := r.action.requireBench(KeyTarget)
	if err != nil {
		return err
	}
	if idx >= len(r.actor.Bench) {
		return rules.NotFound(rules.CodePositionEmpty, "no pokemon at %s", state.BenchPosition(idx))
	}
	promoted := r.actor.Bench[idx]
	r.actor.PromoteFromBench(idx)

	r.payload[KeyTarget] = string(state.BenchPosition(idx))
	r.payload["instanceId"] = promoted.InstanceID
	return nil
}

func (e *Executor) resolveEvolve(r *resolution) error {
	cardID, err := r.action.requireString(KeyEvolutionCardID)
	if err != nil {
		return err
	}
	pos, err := r.action.requirePosition(KeyTarget)
	if err != nil {
		return err
	}
	target, err := pokemonAt(r.actor, pos)
	if err != nil {
		return err
	}
	next, err := e.handCard(r, cardID)
	if err != nil {
		return err
	}
	current, err := e.definition(r.ctx, target.CardID)
	if err != nil {
		return err
	}
	if !current.EvolvesInto(next) {
		return rules.IllegalState(rules.CodeInvalidEvolution, "%s does not evolve into %s", current.Name, next.Name).
			With("card_id", cardID).
			With("target_card_id", target.CardID)
	}
	if evolvedThisTurn(r.g, target) {
		return rules.IllegalState(rules.CodeAlreadyEvolved, "%s already evolved this turn", target.InstanceID).With("instance_id", target.InstanceID)
	}
	if target.PlayedAtTurn == r.g.TurnNumber {
		return rules.IllegalState(rules.CodeEvolvedOnPlayTurn, "a pokemon cannot evolve on the turn it was played").With("instance_id", target.InstanceID)
	}

	r.actor.RemoveFromHand(cardID)
	before := target.CardID
	target.Evolve(cardID, next.HP, r.g.TurnNumber)

	r.payload[KeyEvolutionCardID] = cardID
	r.payload["evolvedFrom"] = before
	r.payload["instanceId"] = target.InstanceID
	r.payload[KeyTarget] = string(pos)
	r.payload["currentHp"] = target.CurrentHP
	r.payload["maxHp"] = target.MaxHP
	return nil
}

// evolvedThisTurn checks the instance's evolved-at turn and falls back to this
// turn's history for states written before the field was tracked.
func evolvedThisTurn(g *state.GameState, c *state.CardInstance) bool {
	if c.EvolvedAtTurn == g.TurnNumber && g.TurnNumber > 0 {
		return true
	}
	for _, a := range g.TurnActions() {
		if a.ActionType == state.ActionEvolvePokemon && a.Text("instanceId") == c.InstanceID {
			return true
		}
	}
	return false
}

func (e *Executor) resolveRetreat(r *resolution) error {
	idx, err := r.action.requireBench(KeyTarget)
	if err != nil {
		return err
	}
	active := r.actor.Active
	if active == nil {
		return rules.NotFound(rules.CodePositionEmpty, "no active pokemon")
	}
	if idx >= len(r.actor.Bench) {
		return rules.NotFound(rules.CodePositionEmpty, "no pokemon at %s", state.BenchPosition(idx))
	}
	if !e.statuses.CanRetreat(active) {
		return rules.IllegalState(rules.CodeRetreatBlocked, "paralyzed pokemon cannot retreat").With("status", string(state.StatusParalyzed))
	}
	def, err := e.definition(r.ctx, active.CardID)
	if err != nil {
		return err
	}
	if def.HasFlag(catalog.FlagCannotRetreat) {
		return rules.IllegalState(rules.CodeRetreatBlocked, "%s cannot retreat", def.Name).With("card_id", def.CardID)
	}
	cost := def.RetreatCost
	if def.HasFlag(catalog.FlagFreeRetreat) {
		cost = 0
	}

	pool, err := e.energyPool(r.ctx, active)
	if err != nil {
		return err
	}
	selected := r.action.strings(KeySelectedEnergyIDs)
	if err := energy.ValidateRetreatSelection(cost, pool, selected); err != nil {
		req := energy.Requirement{Amount: cost, Target: string(state.PositionActive)}
		return selectionFailure(err, req, pool, "retreat")
	}

	incoming := r.actor.Bench[idx]
	discardFromPokemon(r.actor, active, selected)
	active.ClearStatus()
	incoming.ClearStatus()
	r.actor.SwapActive(idx)

	r.payload["retreatedId"] = active.InstanceID
	r.payload["activeId"] = incoming.InstanceID
	r.payload[KeyTarget] = string(state.BenchPosition(idx))
	r.payload["discardedEnergy"] = append([]string{}, selected...)
	return nil
}
