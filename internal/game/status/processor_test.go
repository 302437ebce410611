package status

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

func newGame() *state.GameState {
	p1 := state.NewPlayerGameState("p1", []string{"a", "b"})
	p2 := state.NewPlayerGameState("p2", []string{"c", "d"})
	g := state.NewGameState("match-1", p1, p2)
	g.TurnNumber = 4
	g.CurrentPlayerID = "p2"
	g.Phase = state.PhaseDraw
	p1.Active = state.NewCardInstance("p1-active", "snorlax", state.PositionActive, 90, 1)
	p2.Active = state.NewCardInstance("p2-active", "chansey", state.PositionActive, 120, 1)
	return g
}

func TestCheckAttackPriority(t *testing.T) {
	p := NewProcessor(Config{}, zaptest.NewLogger(t))
	c := state.NewCardInstance("x", "snorlax", state.PositionActive, 90, 1)

	assert.Equal(t, Allow, p.CheckAttack(c).Decision)

	c.AddStatus(state.StatusPoisoned)
	c.AddStatus(state.StatusBurned)
	assert.Equal(t, Allow, p.CheckAttack(c).Decision)

	c.AddStatus(state.StatusConfused)
	assert.Equal(t, NeedsConfusionFlip, p.CheckAttack(c).Decision)

	c.AddStatus(state.StatusParalyzed)
	gate := p.CheckAttack(c)
	assert.Equal(t, Blocked, gate.Decision)
	assert.Equal(t, state.StatusParalyzed, gate.Status)

	// force both blocking conditions to check priority
	c.StatusEffects = []state.StatusEffect{state.StatusConfused, state.StatusParalyzed, state.StatusAsleep}
	gate = p.CheckAttack(c)
	assert.Equal(t, Blocked, gate.Decision)
	assert.Equal(t, state.StatusAsleep, gate.Status)
}

func TestBetweenTurnsPoisonAndBurnStack(t *testing.T) {
	g := newGame()
	active := g.Player1.Active
	active.AddStatus(state.StatusPoisoned)
	active.AddStatus(state.StatusBurned)

	p := NewProcessor(DefaultConfig(), zaptest.NewLogger(t))
	out := p.BetweenTurns(g, "p1", "action-1")

	assert.Equal(t, 60, active.CurrentHP)
	require.Len(t, out.Ticks, 2)
	assert.Equal(t, 10, out.Ticks[0].Damage)
	assert.Equal(t, 20, out.Ticks[1].Damage)
	assert.Nil(t, out.WakeUp)
	assert.Empty(t, out.Knockouts)
}

func TestBetweenTurnsPoisonOverride(t *testing.T) {
	g := newGame()
	active := g.Player2.Active
	active.AddStatus(state.StatusPoisoned)
	active.PoisonDamage = 20

	p := NewProcessor(Config{PoisonDamage: 10}, nil)
	p.BetweenTurns(g, "p1", "action-1")
	assert.Equal(t, 100, active.CurrentHP)
}

func TestBetweenTurnsClearsParalysisOfEndedPlayer(t *testing.T) {
	g := newGame()
	g.Player1.Active.AddStatus(state.StatusParalyzed)
	g.Player2.Active.AddStatus(state.StatusParalyzed)

	p := NewProcessor(DefaultConfig(), nil)
	out := p.BetweenTurns(g, "p1", "action-1")

	assert.Equal(t, []string{"p1-active"}, out.Cleared)
	assert.False(t, g.Player1.Active.HasStatus(state.StatusParalyzed))
	assert.True(t, g.Player2.Active.HasStatus(state.StatusParalyzed))
}

func TestBetweenTurnsKnockout(t *testing.T) {
	g := newGame()
	g.Player1.Active.CurrentHP = 10
	g.Player1.Active.AddStatus(state.StatusBurned)

	p := NewProcessor(DefaultConfig(), nil)
	out := p.BetweenTurns(g, "p1", "action-1")

	require.Len(t, out.Knockouts, 1)
	assert.Equal(t, "p1", out.Knockouts[0].PlayerID)
	assert.Nil(t, g.Player1.Active)
	assert.Contains(t, g.Player1.Discard, "snorlax")
}

func TestWakeUpFlip(t *testing.T) {
	g := newGame()
	g.Player1.Active.AddStatus(state.StatusAsleep)
	g.Player2.Active.AddStatus(state.StatusAsleep)

	p := NewProcessor(DefaultConfig(), nil)
	out := p.BetweenTurns(g, "p1", "action-1")
	require.NotNil(t, out.WakeUp)
	assert.True(t, out.WakeUp.IsWakeUp())
	assert.Equal(t, "p2", out.WakeUp.PlayerID)
	assert.Equal(t, 2, out.WakeUp.Configuration.Count)
	assert.Equal(t, []string{"p1-active", "p2-active"}, out.WakeUp.InstanceIDs)

	flip := out.WakeUp.Clone()
	flip.Results = []coinflip.Result{coinflip.Tails, coinflip.Heads}
	woke := p.ResolveWakeUp(g, flip)
	assert.Equal(t, []string{"p2-active"}, woke)
	assert.True(t, g.Player1.Active.HasStatus(state.StatusAsleep))
	assert.False(t, g.Player2.Active.HasStatus(state.StatusAsleep))
}

func TestConfusion(t *testing.T) {
	p := NewProcessor(DefaultConfig(), nil)
	c := state.NewCardInstance("x", "snorlax", state.PositionActive, 90, 1)
	c.AddStatus(state.StatusConfused)

	flip := p.ConfusionFlip("p1", "action-1", c, 0, []string{"fire-energy"})
	assert.True(t, flip.IsConfusionCheck())
	assert.Equal(t, 1, flip.Configuration.Count)

	proceed, dmg := p.ResolveConfusion(c, []coinflip.Result{coinflip.Heads})
	assert.True(t, proceed)
	assert.Zero(t, dmg)
	assert.Equal(t, 90, c.CurrentHP)

	proceed, dmg = p.ResolveConfusion(c, []coinflip.Result{coinflip.Tails})
	assert.False(t, proceed)
	assert.Equal(t, 30, dmg)
	assert.Equal(t, 60, c.CurrentHP)
}

func TestCanRetreat(t *testing.T) {
	p := NewProcessor(DefaultConfig(), nil)
	c := state.NewCardInstance("x", "snorlax", state.PositionActive, 90, 1)
	assert.True(t, p.CanRetreat(c))
	c.AddStatus(state.StatusConfused)
	assert.True(t, p.CanRetreat(c))
	c.AddStatus(state.StatusParalyzed)
	assert.False(t, p.CanRetreat(c))
}
