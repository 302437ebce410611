package engine

import (
	"context"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/status"
)

// AvailableActions lists the action types playerID could submit against g right now,
// in display order. An action is listed when it passes the shared legality checks and
// the board offers at least one way to perform it.
func (e *Executor) AvailableActions(ctx context.Context, g *state.GameState, playerID string) ([]state.ActionType, error) {
	if g == nil || !g.IsParticipant(playerID) {
		return nil, rules.Validation(rules.CodeNotParticipant, "player is not part of this match").With("player_id", playerID)
	}
	hand, err := e.handDefinitions(ctx, g.Player(playerID))
	if err != nil {
		return nil, err
	}
	out := []state.ActionType{}
	for _, at := range state.AllActionTypes {
		if !e.checker.Check(g, at, playerID).Legal {
			continue
		}
		ok, err := e.feasible(ctx, g, at, playerID, hand)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, at)
		}
	}
	return out, nil
}

func (e *Executor) handDefinitions(ctx context.Context, p *state.PlayerGameState) ([]*catalog.CardDefinition, error) {
	out := make([]*catalog.CardDefinition, 0, len(p.Hand))
	for _, id := range p.Hand {
		def, err := e.definition(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, def)
	}
	return out, nil
}

func anyCard(hand []*catalog.CardDefinition, pred func(*catalog.CardDefinition) bool) bool {
	for _, d := range hand {
		if pred(d) {
			return true
		}
	}
	return false
}

func (e *Executor) feasible(ctx context.Context, g *state.GameState, at state.ActionType, playerID string, hand []*catalog.CardDefinition) (bool, error) {
	p := g.Player(playerID)
	opp := g.Opponent(playerID)
	setup := g.Phase == state.PhaseSetup
	basic := func(d *catalog.CardDefinition) bool { return d.IsBasicPokemon() }

	switch at {
	case state.ActionDrawCard:
		return len(p.Deck) > 0, nil

	case state.ActionAttachEnergy:
		return !p.EnergyAttachedThisTurn && p.HasPokemonInPlay() &&
			anyCard(hand, func(d *catalog.CardDefinition) bool { return d.IsEnergy() }), nil

	case state.ActionPlayPokemon:
		if setup && p.SetupComplete {
			return false, nil
		}
		room := len(p.Bench) < e.cfg.BenchSize || (setup && p.Active == nil)
		return room && anyCard(hand, basic), nil

	case state.ActionSetActivePokemon:
		if setup {
			return !p.SetupComplete && p.Active == nil && (len(p.Bench) > 0 || anyCard(hand, basic)), nil
		}
		return p.NeedsActive(), nil

	case state.ActionEvolvePokemon:
		return e.canEvolve(ctx, g, p, hand)

	case state.ActionRetreat:
		return e.canRetreat(ctx, p)

	case state.ActionAttack:
		if p.Active == nil || opp.Active == nil {
			return false, nil
		}
		return e.canAttack(ctx, p.Active)

	case state.ActionUseAbility:
		for _, c := range p.InPlay() {
			def, err := e.definition(ctx, c.CardID)
			if err != nil {
				return false, err
			}
			for _, a := range def.Abilities {
				if !a.OncePerTurn || !g.HasUsedAbility(state.AbilityKey(c.InstanceID, a.Name)) {
					return true, nil
				}
			}
		}
		return false, nil

	case state.ActionPlayTrainer:
		return anyCard(hand, func(d *catalog.CardDefinition) bool { return d.IsTrainer() }), nil

	case state.ActionGenerateCoinFlip:
		return g.CoinFlip != nil && (g.CoinFlip.PlayerID == "" || g.CoinFlip.PlayerID == playerID), nil

	case state.ActionCompleteInitialSetup:
		return !p.SetupComplete && p.Active != nil, nil
	}
	return true, nil
}

func (e *Executor) canEvolve(ctx context.Context, g *state.GameState, p *state.PlayerGameState, hand []*catalog.CardDefinition) (bool, error) {
	for _, c := range p.InPlay() {
		if c.PlayedAtTurn == g.TurnNumber || evolvedThisTurn(g, c) {
			continue
		}
		def, err := e.definition(ctx, c.CardID)
		if err != nil {
			return false, err
		}
		if anyCard(hand, def.EvolvesInto) {
			return true, nil
		}
	}
	return false, nil
}

func (e *Executor) canRetreat(ctx context.Context, p *state.PlayerGameState) (bool, error) {
	if p.Active == nil || len(p.Bench) == 0 || !e.statuses.CanRetreat(p.Active) {
		return false, nil
	}
	def, err := e.definition(ctx, p.Active.CardID)
	if err != nil {
		return false, err
	}
	if def.HasFlag(catalog.FlagCannotRetreat) {
		return false, nil
	}
	if def.HasFlag(catalog.FlagFreeRetreat) {
		return true, nil
	}
	pool, err := e.energyPool(ctx, p.Active)
	if err != nil {
		return false, err
	}
	return pool.Size() >= def.RetreatCost, nil
}

func (e *Executor) canAttack(ctx context.Context, attacker *state.CardInstance) (bool, error) {
	if e.statuses.CheckAttack(attacker).Decision == status.Blocked {
		return false, nil
	}
	def, err := e.definition(ctx, attacker.CardID)
	if err != nil {
		return false, err
	}
	pool, err := e.energyPool(ctx, attacker)
	if err != nil {
		return false, err
	}
	for i := range def.Attacks {
		if e.pipeline.ValidateEnergy(&def.Attacks[i], pool) == nil {
			return true, nil
		}
	}
	return false, nil
}
