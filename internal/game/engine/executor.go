// Package engine resolves player actions against a GameState. Each action type has a
// dedicated resolver; the executor runs the shared legality checks, hands a cloned
// draft to the resolver, and commits the draft with its history entry.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/damage"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/status"
)

// resolution is the working set of one action: the draft being mutated and the
// history payload and events it produces.
type resolution struct {
	ctx      context.Context
	g        *state.GameState
	action   Action
	actor    *state.PlayerGameState
	opponent *state.PlayerGameState
	seq      int
	actionID string
	payload  map[string]any
	events   []rules.Event
}

func (r *resolution) event(t rules.EventType, playerID string) *rules.Event {
	ev := rules.NewEvent(t, r.g.MatchID, playerID, r.g.TurnNumber)
	ev.ActionID = r.actionID
	ev.ActionType = string(r.action.Type)
	r.events = append(r.events, ev)
	return &r.events[len(r.events)-1]
}

func (r *resolution) end(result rules.MatchResult) {
	r.payload[state.PayloadMatchResult] = result.Payload()
}

// resolver applies one action type to the draft.
type resolver func(e *Executor, r *resolution) error

// Executor applies actions. It holds no per-match state and may be shared by
// every match; callers serialize actions per match.
type Executor struct {
	catalog   catalog.Catalog
	cfg       Rules
	logger    *zap.Logger
	checker   *rules.Checker
	pipeline  *damage.Pipeline
	statuses  *status.Processor
	flips     *coinflip.Resolver
	resolvers map[state.ActionType]resolver
}

// NewExecutor creates an executor. logger may be nil.
func NewExecutor(cat catalog.Catalog, cfg Rules, logger *zap.Logger) *Executor {
	cfg = cfg.WithDefaults()
	return &Executor{
		catalog:  cat,
		cfg:      cfg,
		logger:   logger,
		checker:  rules.NewChecker(),
		pipeline: damage.NewPipeline(logger, cfg.LegacyTextEffects),
		statuses: status.NewProcessor(cfg.StatusConfig(), logger),
		flips:    coinflip.NewResolver(cfg.MaxUntilTailsFlips),
		resolvers: map[state.ActionType]resolver{
			state.ActionDrawCard:             (*Executor).resolveDraw,
			state.ActionAttachEnergy:         (*Executor).resolveAttachEnergy,
			state.ActionPlayPokemon:          (*Executor).resolvePlayPokemon,
			state.ActionSetActivePokemon:     (*Executor).resolveSetActive,
			state.ActionEvolvePokemon:        (*Executor).resolveEvolve,
			state.ActionRetreat:              (*Executor).resolveRetreat,
			state.ActionAttack:               (*Executor).resolveAttack,
			state.ActionUseAbility:           (*Executor).resolveUseAbility,
			state.ActionPlayTrainer:          (*Executor).resolvePlayTrainer,
			state.ActionEndTurn:              (*Executor).resolveEndTurn,
			state.ActionSelectPrize:          (*Executor).resolveSelectPrize,
			state.ActionGenerateCoinFlip:     (*Executor).resolveCoinFlip,
			state.ActionConcede:              (*Executor).resolveConcede,
			state.ActionCompleteInitialSetup: (*Executor).resolveCompleteSetup,
		},
	}
}

// Rules returns the effective rules.
func (e *Executor) Rules() Rules {
	return e.cfg
}

// Outcome is the result of one resolved action. Events are returned to the caller
// and never published by the executor.
type Outcome struct {
	State   *state.GameState
	Summary state.ActionSummary
	Events  []rules.Event
}

// Apply validates action against g and resolves it. On success it returns a new state
// with the action appended to its history; g itself is never modified. On failure the
// error is a *rules.Failure.
func (e *Executor) Apply(ctx context.Context, g *state.GameState, action Action, now time.Time) (*state.GameState, state.ActionSummary, error) {
	out, err := e.Resolve(ctx, g, action, now)
	if err != nil {
		return nil, state.ActionSummary{}, err
	}
	return out.State, out.Summary, nil
}

// Resolve is Apply plus the events the action produced, ACTION_APPLIED first.
func (e *Executor) Resolve(ctx context.Context, g *state.GameState, action Action, now time.Time) (*Outcome, error) {
	if g == nil {
		return nil, rules.NotFound(rules.CodeNotParticipant, "match has no game state")
	}
	resolve, ok := e.resolvers[action.Type]
	if !ok {
		return nil, rules.Validation(rules.CodeUnknownAction, "unknown action type %q", action.Type)
	}
	if verdict := e.checker.Check(g, action.Type, action.PlayerID); !verdict.Legal {
		f := verdict.Failure()
		e.logRejected(g, action, f)
		return nil, f
	}

	draft := g.Clone()
	seq := len(draft.ActionHistory)
	r := &resolution{
		ctx:      ctx,
		g:        draft,
		action:   action,
		actor:    draft.Player(action.PlayerID),
		opponent: draft.Opponent(action.PlayerID),
		seq:      seq,
		actionID: state.ActionID(draft.MatchID, seq),
		payload:  map[string]any{},
	}

	if err := resolve(e, r); err != nil {
		f := asFailure(err)
		e.logRejected(g, action, f)
		return nil, f
	}

	if _, done := r.payload[state.PayloadMatchResult]; !done {
		if result, over := CheckWinConditions(draft, action.PlayerID); over {
			r.end(result)
		}
	}

	summary := state.ActionSummary{
		ID:         r.actionID,
		PlayerID:   action.PlayerID,
		ActionType: action.Type,
		Timestamp:  now.UTC(),
		Payload:    r.payload,
	}
	draft.Append(summary)

	return &Outcome{
		State:   draft,
		Summary: summary.Clone(),
		Events:  e.collect(r, summary),
	}, nil
}

func asFailure(err error) *rules.Failure {
	if f, ok := rules.AsFailure(err); ok {
		return f
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return rules.CatalogLookup("", err)
	}
	return rules.IllegalState(rules.CodeInvalidField, "%v", err).Wrap(err)
}

// collect orders the events of r behind ACTION_APPLIED and appends MATCH_ENDED
// when the action finished the match.
func (e *Executor) collect(r *resolution, summary state.ActionSummary) []rules.Event {
	applied := rules.NewEvent(rules.EventActionApplied, r.g.MatchID, summary.PlayerID, r.g.TurnNumber)
	applied.ActionID = summary.ID
	applied.ActionType = string(summary.ActionType)
	if n, ok := r.payload[state.PayloadDamage].(int); ok {
		applied.Amount = n
		applied.TargetID, _ = r.payload["defenderId"].(string)
	}
	events := append([]rules.Event{applied}, r.events...)

	result, over := rules.ResultOf(r.g)
	if over {
		ended := rules.NewEvent(rules.EventMatchEnded, r.g.MatchID, result.WinnerID, r.g.TurnNumber)
		ended.ActionID = summary.ID
		ended.Metadata["loser_id"] = result.LoserID
		ended.Metadata["reason"] = result.Reason
		events = append(events, ended)
	}
	for i := range events {
		events[i].Timestamp = summary.Timestamp
	}

	if e.logger != nil {
		e.logger.Debug("action applied",
			zap.String("match_id", r.g.MatchID),
			zap.String("player_id", summary.PlayerID),
			zap.String("action_type", string(summary.ActionType)),
			zap.Int("turn", r.g.TurnNumber),
			zap.String("phase", string(r.g.Phase)),
		)
		if over {
			e.logger.Info("match ended",
				zap.String("match_id", r.g.MatchID),
				zap.String("winner_id", result.WinnerID),
				zap.String("reason", result.Reason),
			)
		}
	}
	return events
}

func (e *Executor) logRejected(g *state.GameState, action Action, f *rules.Failure) {
	if e.logger == nil {
		return
	}
	e.logger.Debug("action rejected",
		zap.String("match_id", g.MatchID),
		zap.String("player_id", action.PlayerID),
		zap.String("action_type", string(action.Type)),
		zap.String("kind", string(f.Kind)),
		zap.String("code", f.Code),
		zap.String("reason", f.Message),
	)
}

// definition resolves a card, reporting catalog errors as CatalogLookup failures.
func (e *Executor) definition(ctx context.Context, cardID string) (*catalog.CardDefinition, error) {
	def, err := e.catalog.GetDefinition(ctx, cardID)
	if err != nil {
		return nil, rules.CatalogLookup(cardID, err)
	}
	return def, nil
}

// energyPool builds the energy pool of a pokemon from its attached cards.
func (e *Executor) energyPool(ctx context.Context, c *state.CardInstance) (*energy.Pool, error) {
	if c == nil {
		return energy.NewPool(nil), nil
	}
	cards := make([]energy.Card, 0, len(c.AttachedEnergy))
	for _, id := range c.AttachedEnergy {
		def, err := e.definition(ctx, id)
		if err != nil {
			return nil, err
		}
		cards = append(cards, energy.Card{ID: id, Provides: def.EnergyUnits()})
	}
	return energy.NewPool(cards), nil
}

// availableEnergy lists a pool for an energy selection prompt.
func availableEnergy(pool *energy.Pool) []rules.AvailableEnergy {
	out := make([]rules.AvailableEnergy, 0, len(pool.Cards()))
	for _, c := range pool.Cards() {
		types := make([]string, len(c.Provides))
		for i, t := range c.Provides {
			types[i] = string(t)
		}
		out = append(out, rules.AvailableEnergy{ID: c.ID, Types: types})
	}
	return out
}

// selectionFailure maps an energy selection error to a failure, prompting when the
// selection is missing.
func selectionFailure(err error, req energy.Requirement, pool *energy.Pool, what string) error {
	if errors.Is(err, energy.ErrSelectionRequired) {
		var amount any = req.Amount
		if req.All {
			amount = "all"
		}
		return rules.SelectionRequired(
			fmt.Sprintf("select energy to discard for %s", what),
			rules.EnergyRequirement{Amount: amount, EnergyType: string(req.Type), Target: req.Target},
			availableEnergy(pool),
		)
	}
	return rules.Validation(rules.CodeInvalidEnergySelection, "%v", err).Wrap(err)
}

// discardFromPokemon detaches ids from c and puts them on the owner's discard pile.
func discardFromPokemon(owner *state.PlayerGameState, c *state.CardInstance, ids []string) bool {
	if len(ids) == 0 {
		return true
	}
	if !c.RemoveEnergy(ids) {
		return false
	}
	owner.Discard = append(owner.Discard, ids...)
	return true
}

// pokemonAt resolves a position on the actor's board.
func pokemonAt(p *state.PlayerGameState, pos state.PokemonPosition) (*state.CardInstance, error) {
	c, ok := p.PokemonAt(pos)
	if !ok {
		return nil, rules.NotFound(rules.CodePositionEmpty, "no pokemon at %s", pos).With("position", string(pos))
	}
	return c, nil
}
