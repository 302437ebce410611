package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog/catalogtest"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

const testMatchID = "match-1"

var testNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func newTestExecutor(t *testing.T) *Executor {
	t.Helper()
	return NewExecutor(catalogtest.Catalog(t), DefaultRules(), zaptest.NewLogger(t))
}

func repeat(id string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = id
	}
	return out
}

func mon(id, cardID string, pos state.PokemonPosition, hp int, energy ...string) *state.CardInstance {
	c := state.NewCardInstance(id, cardID, pos, hp, 1)
	c.AttachedEnergy = append(c.AttachedEnergy, energy...)
	return c
}

// board returns turn 3 of a match in p1's main phase. Nothing on the board was
// played this turn.
func board() *state.GameState {
	p1 := state.NewPlayerGameState("p1", []string{"fire-energy", "fire-energy", "potion", "bill", "fire-energy"})
	p2 := state.NewPlayerGameState("p2", []string{"water-energy", "water-energy", "water-energy", "potion", "bill"})
	p1.Prizes = repeat("fire-energy", 3)
	p2.Prizes = repeat("water-energy", 3)
	p1.Active = mon("p1-active", "charmander", state.PositionActive, 50)
	p1.Bench = []*state.CardInstance{mon("p1-bench-0", "rattata", state.BenchPosition(0), 30)}
	p2.Active = mon("p2-active", "snorlax", state.PositionActive, 90)
	p2.Bench = []*state.CardInstance{mon("p2-bench-0", "pidgey", state.BenchPosition(0), 40)}

	g := state.NewGameState(testMatchID, p1, p2)
	g.TurnNumber = 3
	g.FirstPlayerID = "p1"
	g.CurrentPlayerID = "p1"
	g.Phase = state.PhaseMain
	return g
}

func apply(t *testing.T, ex *Executor, g *state.GameState, at state.ActionType, playerID string, data map[string]any) (*state.GameState, state.ActionSummary) {
	t.Helper()
	next, summary, err := ex.Apply(context.Background(), g, Action{Type: at, PlayerID: playerID, Data: data}, testNow)
	require.NoError(t, err)
	require.NotNil(t, next)
	return next, summary
}

func resolve(t *testing.T, ex *Executor, g *state.GameState, at state.ActionType, playerID string, data map[string]any) *Outcome {
	t.Helper()
	out, err := ex.Resolve(context.Background(), g, Action{Type: at, PlayerID: playerID, Data: data}, testNow)
	require.NoError(t, err)
	require.NotNil(t, out.State)
	require.NotEmpty(t, out.Events)
	assert.Equal(t, rules.EventActionApplied, out.Events[0].Type)
	assert.Equal(t, out.Summary.ID, out.Events[0].ActionID)
	return out
}

func reject(t *testing.T, ex *Executor, g *state.GameState, at state.ActionType, playerID string, data map[string]any) *rules.Failure {
	t.Helper()
	next, _, err := ex.Apply(context.Background(), g, Action{Type: at, PlayerID: playerID, Data: data}, testNow)
	require.Error(t, err)
	assert.Nil(t, next)
	f, ok := rules.AsFailure(err)
	require.True(t, ok, "expected a rules.Failure, got %v", err)
	return f
}

func TestNewAction(t *testing.T) {
	a, err := NewAction("attach_energy", "p1", nil)
	require.NoError(t, err)
	assert.Equal(t, state.ActionAttachEnergy, a.Type)
	assert.NotNil(t, a.Data)

	_, err = NewAction("SHUFFLE", "p1", nil)
	f, ok := rules.AsFailure(err)
	require.True(t, ok)
	assert.Equal(t, rules.CodeUnknownAction, f.Code)
}

func TestApplyLeavesInputUntouched(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Hand = []string{"fire-energy"}
	before, err := state.Checksum(g)
	require.NoError(t, err)

	next, summary := apply(t, ex, g, state.ActionAttachEnergy, "p1", map[string]any{
		KeyEnergyCardID: "fire-energy",
		KeyTarget:       "ACTIVE",
	})

	after, err := state.Checksum(g)
	require.NoError(t, err)
	assert.Equal(t, before, after)
	assert.Empty(t, g.ActionHistory)

	require.Len(t, next.ActionHistory, 1)
	assert.Equal(t, state.ActionID(testMatchID, 0), summary.ID)
	assert.Equal(t, summary.ID, next.LastAction.ID)
	assert.Equal(t, testNow, summary.Timestamp)
	assert.Equal(t, []string{"fire-energy"}, next.Player1.Active.AttachedEnergy)
	assert.Empty(t, next.Player1.Hand)
	assert.True(t, next.Player1.EnergyAttachedThisTurn)
}

func TestAttachEnergyOncePerTurn(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Hand = []string{"fire-energy", "fire-energy", "potion"}

	g1, _ := apply(t, ex, g, state.ActionAttachEnergy, "p1", map[string]any{KeyEnergyCardID: "fire-energy", KeyTarget: "BENCH_0"})
	assert.Equal(t, []string{"fire-energy"}, g1.Player1.Bench[0].AttachedEnergy)

	f := reject(t, ex, g1, state.ActionAttachEnergy, "p1", map[string]any{KeyEnergyCardID: "fire-energy", KeyTarget: "ACTIVE"})
	assert.Equal(t, rules.CodeEnergyAlreadyAttached, f.Code)

	f = reject(t, ex, g, state.ActionAttachEnergy, "p1", map[string]any{KeyEnergyCardID: "potion", KeyTarget: "ACTIVE"})
	assert.Equal(t, rules.CodeWrongCardType, f.Code)

	f = reject(t, ex, g, state.ActionAttachEnergy, "p1", map[string]any{KeyEnergyCardID: "water-energy", KeyTarget: "ACTIVE"})
	assert.Equal(t, rules.CodeCardNotInHand, f.Code)

	f = reject(t, ex, g, state.ActionAttachEnergy, "p1", map[string]any{KeyEnergyCardID: "fire-energy", KeyTarget: "BENCH_3"})
	assert.Equal(t, rules.CodePositionEmpty, f.Code)

	f = reject(t, ex, g, state.ActionAttachEnergy, "p1", map[string]any{KeyEnergyCardID: "fire-energy"})
	assert.Equal(t, rules.KindValidation, f.Kind)
	assert.Equal(t, rules.CodeMissingField, f.Code)
}

func TestPlayPokemon(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Hand = []string{"ponyta", "charmeleon"}

	g1, summary := apply(t, ex, g, state.ActionPlayPokemon, "p1", map[string]any{KeyCardID: "ponyta"})
	require.Len(t, g1.Player1.Bench, 2)
	played := g1.Player1.Bench[1]
	assert.Equal(t, "ponyta", played.CardID)
	assert.Equal(t, state.BenchPosition(1), played.Position)
	assert.Equal(t, 40, played.CurrentHP)
	assert.Equal(t, 3, played.PlayedAtTurn)
	assert.Equal(t, state.InstanceID(testMatchID, 0, 0), played.InstanceID)
	assert.Equal(t, played.InstanceID, summary.Text("instanceId"))

	f := reject(t, ex, g, state.ActionPlayPokemon, "p1", map[string]any{KeyCardID: "charmeleon"})
	assert.Equal(t, rules.CodeWrongCardType, f.Code)

	f = reject(t, ex, g, state.ActionPlayPokemon, "p1", map[string]any{KeyCardID: "ponyta", KeyPosition: "ACTIVE"})
	assert.Equal(t, rules.CodeInvalidField, f.Code)

	full := board()
	full.Player1.Hand = []string{"ponyta"}
	for i := 1; i < state.MaxBenchSize; i++ {
		full.Player1.Bench = append(full.Player1.Bench, mon("extra", "rattata", state.BenchPosition(i), 30))
	}
	f = reject(t, ex, full, state.ActionPlayPokemon, "p1", map[string]any{KeyCardID: "ponyta"})
	assert.Equal(t, rules.CodeBenchFull, f.Code)
}

func TestEvolve(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Active.CurrentHP = 40
	g.Player1.Active.AddStatus(state.StatusPoisoned)
	g.Player1.Active.AttachedEnergy = []string{"fire-energy"}
	g.Player1.Hand = []string{"charmeleon", "charizard"}

	g1, summary := apply(t, ex, g, state.ActionEvolvePokemon, "p1", map[string]any{
		KeyEvolutionCardID: "charmeleon",
		KeyTarget:          "ACTIVE",
	})
	active := g1.Player1.Active
	assert.Equal(t, "charmeleon", active.CardID)
	assert.Equal(t, 70, active.CurrentHP)
	assert.Equal(t, 80, active.MaxHP)
	assert.Empty(t, active.StatusEffects)
	assert.Equal(t, []string{"charmander"}, active.EvolutionChain)
	assert.Equal(t, []string{"fire-energy"}, active.AttachedEnergy)
	assert.Equal(t, "p1-active", active.InstanceID)
	assert.Equal(t, []string{"charizard"}, g1.Player1.Hand)
	assert.Equal(t, "charmander", summary.Text("evolvedFrom"))

	f := reject(t, ex, g1, state.ActionEvolvePokemon, "p1", map[string]any{KeyEvolutionCardID: "charizard", KeyTarget: "ACTIVE"})
	assert.Equal(t, rules.CodeAlreadyEvolved, f.Code)

	f = reject(t, ex, g, state.ActionEvolvePokemon, "p1", map[string]any{KeyEvolutionCardID: "charmeleon", KeyTarget: "BENCH_0"})
	assert.Equal(t, rules.CodeInvalidEvolution, f.Code)

	fresh := board()
	fresh.Player1.Active.PlayedAtTurn = 3
	fresh.Player1.Hand = []string{"charmeleon"}
	f = reject(t, ex, fresh, state.ActionEvolvePokemon, "p1", map[string]any{KeyEvolutionCardID: "charmeleon", KeyTarget: "ACTIVE"})
	assert.Equal(t, rules.CodeEvolvedOnPlayTurn, f.Code)
}

func TestRetreat(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Active.AttachedEnergy = []string{"fire-energy", "fire-energy"}
	g.Player1.Active.AddStatus(state.StatusConfused)

	f := reject(t, ex, g, state.ActionRetreat, "p1", map[string]any{KeyTarget: "BENCH_0"})
	assert.Equal(t, rules.KindEnergySelectionRequired, f.Kind)
	require.NotNil(t, f.Selection)
	assert.Len(t, f.Selection.AvailableEnergy, 2)

	f = reject(t, ex, g, state.ActionRetreat, "p1", map[string]any{
		KeyTarget:            "BENCH_0",
		KeySelectedEnergyIDs: []string{"fire-energy", "fire-energy"},
	})
	assert.Equal(t, rules.CodeInvalidEnergySelection, f.Code)

	g1, _ := apply(t, ex, g, state.ActionRetreat, "p1", map[string]any{
		KeyTarget:            "BENCH_0",
		KeySelectedEnergyIDs: []any{"fire-energy"},
	})
	assert.Equal(t, "p1-bench-0", g1.Player1.Active.InstanceID)
	assert.Equal(t, state.PositionActive, g1.Player1.Active.Position)
	require.Len(t, g1.Player1.Bench, 1)
	benched := g1.Player1.Bench[0]
	assert.Equal(t, "p1-active", benched.InstanceID)
	assert.Equal(t, []string{"fire-energy"}, benched.AttachedEnergy)
	assert.Empty(t, benched.StatusEffects)
	assert.Equal(t, []string{"fire-energy"}, g1.Player1.Discard)

	f = reject(t, ex, g1, state.ActionRetreat, "p1", map[string]any{KeyTarget: "BENCH_0"})
	assert.Equal(t, rules.CodeRetreatAlreadyUsed, f.Code)

	paralyzed := board()
	paralyzed.Player1.Active.AddStatus(state.StatusParalyzed)
	f = reject(t, ex, paralyzed, state.ActionRetreat, "p1", map[string]any{KeyTarget: "BENCH_0"})
	assert.Equal(t, rules.CodeRetreatBlocked, f.Code)

	stuck := board()
	stuck.Player1.Active = mon("p1-active", "snorlax", state.PositionActive, 90, repeat("fire-energy", 4)...)
	f = reject(t, ex, stuck, state.ActionRetreat, "p1", map[string]any{KeyTarget: "BENCH_0"})
	assert.Equal(t, rules.CodeRetreatBlocked, f.Code)

	free := board()
	free.Player1.Active = mon("p1-active", "rattata", state.PositionActive, 30)
	free.Player1.Bench[0] = mon("p1-bench-0", "charmander", state.BenchPosition(0), 50)
	g2, _ := apply(t, ex, free, state.ActionRetreat, "p1", map[string]any{KeyTarget: "BENCH_0"})
	assert.Equal(t, "charmander", g2.Player1.Active.CardID)
}

func TestAttackDiscardsSelectedEnergy(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Active.AttachedEnergy = repeat("fire-energy", 3)
	ember := map[string]any{KeyAttackIndex: 1}

	f := reject(t, ex, g, state.ActionAttack, "p1", ember)
	assert.Equal(t, rules.KindEnergySelectionRequired, f.Kind)
	assert.True(t, f.Recoverable())
	require.NotNil(t, f.Selection)
	assert.Equal(t, 1, f.Selection.Requirement.Amount)
	assert.Equal(t, "FIRE", f.Selection.Requirement.EnergyType)
	assert.Len(t, f.Selection.AvailableEnergy, 3)

	f = reject(t, ex, g, state.ActionAttack, "p1", map[string]any{
		KeyAttackIndex:       1,
		KeySelectedEnergyIDs: []string{"water-energy"},
	})
	assert.Equal(t, rules.KindValidation, f.Kind)
	assert.Equal(t, rules.CodeInvalidEnergySelection, f.Code)

	g1, summary := apply(t, ex, g, state.ActionAttack, "p1", map[string]any{
		KeyAttackIndex:       1,
		KeySelectedEnergyIDs: []string{"fire-energy"},
	})
	assert.Equal(t, repeat("fire-energy", 2), g1.Player1.Active.AttachedEnergy)
	assert.Equal(t, []string{"fire-energy"}, g1.Player1.Discard)
	assert.Equal(t, 60, g1.Player2.Active.CurrentHP)
	dmg, _ := summary.Int(state.PayloadDamage)
	assert.Equal(t, 30, dmg)
	assert.Equal(t, state.PhaseEnd, g1.Phase)

	f = reject(t, ex, g1, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 0})
	assert.Equal(t, rules.CodeWrongPhase, f.Code)
}

func TestAttackRejections(t *testing.T) {
	ex := newTestExecutor(t)

	g := board()
	f := reject(t, ex, g, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 0})
	assert.Equal(t, rules.CodeInsufficientEnergy, f.Code)

	f = reject(t, ex, g, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 7})
	assert.Equal(t, rules.CodeInvalidField, f.Code)

	asleep := board()
	asleep.Player1.Active.AttachedEnergy = []string{"fire-energy"}
	asleep.Player1.Active.AddStatus(state.StatusAsleep)
	f = reject(t, ex, asleep, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 0})
	assert.Equal(t, rules.CodeAttackBlocked, f.Code)
	assert.Equal(t, "ASLEEP", f.Details["status"])

	f = reject(t, ex, board(), state.ActionAttack, "p2", map[string]any{KeyAttackIndex: 0})
	assert.Equal(t, rules.CodeNotYourTurn, f.Code)
}

func TestKnockoutAndPrizeSelection(t *testing.T) {
	ex := newTestExecutor(t)

	g := board()
	g.Player1.Active = mon("p1-active", "rattata", state.PositionActive, 30, "fire-energy")
	g.Player2.Active = mon("p2-active", "rattata", state.PositionActive, 30)
	g.Player2.Active.CurrentHP = 20

	out := resolve(t, ex, g, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 0})
	g1, summary, events := out.State, out.Summary, out.Events
	assert.Nil(t, g1.Player2.Active)
	assert.Contains(t, g1.Player2.Discard, "rattata")
	assert.True(t, summary.Bool(state.PayloadKnockout))
	assert.Equal(t, []string{"p2-active"}, summary.Strings(state.PayloadKnockedOut))
	assert.Equal(t, 1, rules.PrizesOwed(g1, "p1"))
	assert.Len(t, g1.Player1.Prizes, 3)

	var kinds []rules.EventType
	for _, ev := range events {
		kinds = append(kinds, ev.Type)
	}
	assert.Equal(t, []rules.EventType{rules.EventActionApplied, rules.EventKnockout}, kinds)
	assert.Equal(t, "p2-active", events[0].TargetID)
	assert.Equal(t, 20, events[0].Amount)
	assert.Equal(t, "p2-active", events[1].TargetID)
	assert.Equal(t, 20, events[1].Amount)
	assert.Equal(t, "rattata", events[1].Metadata["card_id"])
	for _, ev := range events {
		assert.Equal(t, testNow, ev.Timestamp)
	}

	f := reject(t, ex, g1, state.ActionEndTurn, "p1", nil)
	assert.Equal(t, rules.CodePrizeSelectionRequired, f.Code)

	g2, _ := apply(t, ex, g1, state.ActionSelectPrize, "p1", map[string]any{KeyPrizeIndex: 0})
	assert.Len(t, g2.Player1.Prizes, 2)
	assert.Equal(t, []string{"fire-energy"}, g2.Player1.Hand)

	f = reject(t, ex, g2, state.ActionSelectPrize, "p1", nil)
	assert.Equal(t, rules.CodeNoPrizeOwed, f.Code)

	g3, _ := apply(t, ex, g2, state.ActionSetActivePokemon, "p2", map[string]any{KeyTarget: "BENCH_0"})
	assert.Equal(t, "p2-bench-0", g3.Player2.Active.InstanceID)
	assert.Empty(t, g3.Player2.Bench)

	g4, _ := apply(t, ex, g3, state.ActionEndTurn, "p1", nil)
	assert.Equal(t, 4, g4.TurnNumber)
	assert.Equal(t, "p2", g4.CurrentPlayerID)
	assert.Equal(t, state.PhaseDraw, g4.Phase)
}

func TestDoubleKnockout(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Active = mon("p1-active", "chansey", state.PositionActive, 120, repeat("fire-energy", 4)...)
	g.Player1.Active.CurrentHP = 80
	g.Player2.Active = mon("p2-active", "rattata", state.PositionActive, 30)

	g1, summary := apply(t, ex, g, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 0})
	assert.Nil(t, g1.Player1.Active)
	assert.Nil(t, g1.Player2.Active)
	assert.ElementsMatch(t, []string{"p1-active", "p2-active"}, summary.Strings(state.PayloadKnockedOut))
	assert.Equal(t, []string{"p2"}, summary.Strings(state.PayloadAutoPrizes))
	assert.Len(t, g1.Player2.Prizes, 2)
	assert.Equal(t, 1, rules.PrizesOwed(g1, "p1"))
	_, over := rules.ResultOf(g1)
	assert.False(t, over)

	f := reject(t, ex, g1, state.ActionSelectPrize, "p1", nil)
	assert.Equal(t, rules.CodeActiveRequired, f.Code)

	g2, _ := apply(t, ex, g1, state.ActionSetActivePokemon, "p1", map[string]any{KeyTarget: "BENCH_0"})
	g3, _ := apply(t, ex, g2, state.ActionSetActivePokemon, "p2", map[string]any{KeyTarget: "BENCH_0"})
	g4, _ := apply(t, ex, g3, state.ActionSelectPrize, "p1", nil)
	g5, _ := apply(t, ex, g4, state.ActionEndTurn, "p1", nil)
	assert.Equal(t, "p2", g5.CurrentPlayerID)
	assert.Len(t, g5.Player1.Prizes, 2)
}

func TestWinByLastPrize(t *testing.T) {
	ex := newTestExecutor(t)
	g := board()
	g.Player1.Prizes = []string{"potion"}
	g.Player1.Active = mon("p1-active", "rattata", state.PositionActive, 30, "fire-energy")
	g.Player2.Active = mon("p2-active", "rattata", state.PositionActive, 30)

	g1, _ := apply(t, ex, g, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 0})
	_, over := rules.ResultOf(g1)
	assert.False(t, over)

	g2, summary := apply(t, ex, g1, state.ActionSelectPrize, "p1", nil)
	result, over := rules.ResultOf(g2)
	require.True(t, over)
	assert.Equal(t, rules.MatchResult{WinnerID: "p1", LoserID: "p2", Reason: rules.ReasonPrizes}, result)
	assert.Contains(t, summary.Payload, state.PayloadMatchResult)

	f := reject(t, ex, g2, state.ActionConcede, "p2", nil)
	assert.Equal(t, rules.CodeMatchOver, f.Code)
}

func TestWinByNoPokemonInPlay(t *testing.T) {
	ex := newTestExecutor(t)

	g := board()
	g.Player1.Active = mon("p1-active", "rattata", state.PositionActive, 30, "fire-energy")
	g.Player2.Active = mon("p2-active", "rattata", state.PositionActive, 30)
	g.Player2.Bench = nil

	out := resolve(t, ex, g, state.ActionAttack, "p1", map[string]any{KeyAttackIndex: 0})
	g1 := out.State
	var ended []rules.Event
	for _, ev := range out.Events {
		if ev.Type == rules.EventMatchEnded {
			ended = append(ended, ev)
		}
	}
	result, over := rules.ResultOf(g1)
	require.True(t, over)
	assert.Equal(t, "p1", result.WinnerID)
	assert.Equal(t, rules.ReasonNoPokemon, result.Reason)
	require.Len(t, ended, 1)
	assert.Equal(t, "p1", ended[0].PlayerID)
	assert.Equal(t, "p2", ended[0].Metadata["loser_id"])
	assert.Equal(t, rules.EventMatchEnded, out.Events[len(out.Events)-1].Type)
}

func TestConcede(t *testing.T) {
	ex := newTestExecutor(t)
	g1, _ := apply(t, ex, board(), state.ActionConcede, "p2", nil)
	result, over := rules.ResultOf(g1)
	require.True(t, over)
	assert.Equal(t, rules.MatchResult{WinnerID: "p1", LoserID: "p2", Reason: rules.ReasonConcede}, result)
}

func TestCheckWinConditionsFavorsActor(t *testing.T) {
	g := board()
	g.Player1.Prizes = nil
	g.Player2.Prizes = nil

	result, over := CheckWinConditions(g, "p2")
	require.True(t, over)
	assert.Equal(t, "p2", result.WinnerID)

	result, over = CheckWinConditions(g, "p1")
	require.True(t, over)
	assert.Equal(t, "p1", result.WinnerID)

	g.Phase = state.PhaseSetup
	_, over = CheckWinConditions(g, "p1")
	assert.False(t, over)
}
