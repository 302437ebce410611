package rules

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

func playingGame() *state.GameState {
	p1 := state.NewPlayerGameState("p1", []string{"a", "b", "c"})
	p2 := state.NewPlayerGameState("p2", []string{"d", "e", "f"})
	p1.Prizes = []string{"p1-prize-1", "p1-prize-2"}
	p2.Prizes = []string{"p2-prize-1", "p2-prize-2"}
	p1.Active = state.NewCardInstance("p1-a", "rattata", state.PositionActive, 30, 1)
	p1.Bench = []*state.CardInstance{state.NewCardInstance("p1-b", "pidgey", state.PositionBench0, 40, 1)}
	p2.Active = state.NewCardInstance("p2-a", "rattata", state.PositionActive, 30, 1)
	p2.Bench = []*state.CardInstance{state.NewCardInstance("p2-b", "pidgey", state.PositionBench0, 40, 1)}
	g := state.NewGameState("m1", p1, p2)
	StartFirstTurn(g, "p1")
	g.Phase = state.PhaseMain
	return g
}

func record(g *state.GameState, playerID string, action state.ActionType, payload map[string]any) {
	if payload == nil {
		payload = map[string]any{}
	}
	g.Append(state.ActionSummary{
		ID:         state.ActionID(g.MatchID, len(g.ActionHistory)),
		PlayerID:   playerID,
		ActionType: action,
		Timestamp:  time.Unix(0, 0).UTC(),
		Payload:    payload,
	})
}

func TestCheckParticipantAndTurn(t *testing.T) {
	g := playingGame()
	c := NewChecker()

	res := c.Check(g, state.ActionDrawCard, "stranger")
	assert.False(t, res.Legal)
	assert.Equal(t, KindValidation, res.Kind)
	assert.Equal(t, CodeNotParticipant, res.Code)

	res = c.Check(g, state.ActionAttachEnergy, "p2")
	assert.Equal(t, CodeNotYourTurn, res.Code)

	assert.True(t, c.Check(g, state.ActionConcede, "p2").Legal)
	assert.True(t, c.Check(g, state.ActionAttachEnergy, "p1").Legal)
}

func TestCheckPhaseTable(t *testing.T) {
	g := playingGame()
	g.Phase = state.PhaseDraw
	c := NewChecker()

	assert.True(t, c.Check(g, state.ActionDrawCard, "p1").Legal)
	res := c.Check(g, state.ActionAttack, "p1")
	assert.Equal(t, CodeWrongPhase, res.Code)

	g.Phase = state.PhaseMain
	res = c.Check(g, state.ActionDrawCard, "p1")
	assert.Equal(t, CodeWrongPhase, res.Code)
}

func TestCheckPendingCoinFlip(t *testing.T) {
	g := playingGame()
	g.CoinFlip = &state.CoinFlipState{Status: state.CoinFlipReady, Context: state.FlipContextAttack, PlayerID: "p1"}
	g.Phase = state.PhaseAttack
	c := NewChecker()

	res := c.Check(g, state.ActionEndTurn, "p1")
	assert.Equal(t, CodeCoinFlipPending, res.Code)
	assert.True(t, c.Check(g, state.ActionGenerateCoinFlip, "p1").Legal)
	assert.True(t, c.Check(g, state.ActionConcede, "p1").Legal)

	g.CoinFlip = nil
	g.Phase = state.PhaseMain
	res = c.Check(g, state.ActionGenerateCoinFlip, "p1")
	assert.Equal(t, CodeNoCoinFlipPending, res.Code)
}

func TestCheckRetreatAndAttackOrdering(t *testing.T) {
	g := playingGame()
	c := NewChecker()

	record(g, "p1", state.ActionRetreat, nil)
	res := c.Check(g, state.ActionRetreat, "p1")
	assert.Equal(t, CodeRetreatAlreadyUsed, res.Code)
	assert.True(t, c.Check(g, state.ActionAttack, "p1").Legal)

	record(g, "p1", state.ActionAttack, nil)
	g.Phase = state.PhaseEnd
	assert.False(t, c.Check(g, state.ActionRetreat, "p1").Legal)
	assert.True(t, c.Check(g, state.ActionEndTurn, "p1").Legal)

	g.Phase = state.PhaseMain
	res = c.Check(g, state.ActionRetreat, "p1")
	assert.Equal(t, CodeActionAfterAttack, res.Code)
	res = c.Check(g, state.ActionAttack, "p1")
	assert.Equal(t, CodeAttackAlreadyUsed, res.Code)
	res = c.Check(g, state.ActionPlayTrainer, "p1")
	assert.Equal(t, CodeActionAfterAttack, res.Code)
}

func TestOrderingResetsEachTurn(t *testing.T) {
	g := playingGame()
	c := NewChecker()
	record(g, "p1", state.ActionRetreat, nil)
	record(g, "p1", state.ActionAttack, nil)
	record(g, "p1", state.ActionEndTurn, nil)
	PassTurn(g)
	record(g, "p2", state.ActionDrawCard, nil)
	g.Phase = state.PhaseMain

	assert.True(t, c.Check(g, state.ActionRetreat, "p2").Legal)
	assert.True(t, c.Check(g, state.ActionAttack, "p2").Legal)
}

func TestPrizeSelectionGatesEndTurn(t *testing.T) {
	g := playingGame()
	c := NewChecker()

	record(g, "p1", state.ActionAttack, map[string]any{state.PayloadKnockout: true, state.PayloadPrizesOwed: 1})
	g.Phase = state.PhaseEnd
	assert.Equal(t, 1, PrizesOwed(g, "p1"))
	assert.Zero(t, PrizesOwed(g, "p2"))

	res := c.Check(g, state.ActionEndTurn, "p1")
	assert.Equal(t, CodePrizeSelectionRequired, res.Code)
	assert.Equal(t, "1", res.Details["prizes_owed"])
	assert.True(t, c.Check(g, state.ActionSelectPrize, "p1").Legal)

	record(g, "p1", state.ActionSelectPrize, nil)
	assert.Zero(t, PrizesOwed(g, "p1"))
	assert.True(t, c.Check(g, state.ActionEndTurn, "p1").Legal)
	assert.Equal(t, CodeNoPrizeOwed, c.Check(g, state.ActionSelectPrize, "p1").Code)
}

func TestDoubleKnockoutSetActive(t *testing.T) {
	g := playingGame()
	g.Player1.Active = nil
	g.Player2.Active = nil
	c := NewChecker()

	assert.True(t, c.Check(g, state.ActionSetActivePokemon, "p2").Legal)
	assert.True(t, c.Check(g, state.ActionSetActivePokemon, "p1").Legal)
	res := c.Check(g, state.ActionAttachEnergy, "p1")
	assert.Equal(t, CodeActiveRequired, res.Code)

	g.Player2.Active = g.Player2.Bench[0]
	g.Player2.Bench = nil
	res = c.Check(g, state.ActionSetActivePokemon, "p2")
	assert.Equal(t, CodeActiveOccupied, res.Code)
}

func TestMatchOver(t *testing.T) {
	g := playingGame()
	record(g, "p2", state.ActionConcede, map[string]any{
		state.PayloadMatchResult: MatchResult{WinnerID: "p1", LoserID: "p2", Reason: ReasonConcede}.Payload(),
	})
	res, ok := ResultOf(g)
	require.True(t, ok)
	assert.Equal(t, "p1", res.WinnerID)

	c := NewChecker()
	assert.Equal(t, CodeMatchOver, c.Check(g, state.ActionConcede, "p1").Code)
}

func TestLegalityResultFailure(t *testing.T) {
	assert.Nil(t, legal().Failure())
	f := illegal(CodeWrongPhase, "nope", map[string]string{"phase": "DRAW"}).Failure()
	require.NotNil(t, f)
	assert.Equal(t, KindIllegalState, f.Kind)
	assert.Equal(t, "DRAW", f.Details["phase"])
	assert.Contains(t, f.Error(), CodeWrongPhase)
}
