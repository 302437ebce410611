package state

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testState() *GameState {
	p1 := NewPlayerGameState("p1", []string{"a", "b", "c"})
	p2 := NewPlayerGameState("p2", []string{"d", "e"})
	p1.Active = NewCardInstance("i1", "charmander", PositionActive, 50, 1)
	p1.Active.AttachedEnergy = []string{"fire-energy"}
	p1.Bench = []*CardInstance{NewCardInstance("i2", "pikachu", BenchPosition(0), 40, 1)}
	p2.Active = NewCardInstance("i3", "squirtle", PositionActive, 40, 1)
	p1.Prizes = []string{"x"}
	g := NewGameState("m1", p1, p2)
	g.TurnNumber = 2
	g.Phase = PhaseMain
	g.CurrentPlayerID = "p1"
	return g
}

func TestCloneSharesNothing(t *testing.T) {
	g := testState()
	c := g.Clone()

	c.Player1.Active.CurrentHP = 10
	c.Player1.Active.AttachedEnergy[0] = "water-energy"
	c.Player1.Hand = append(c.Player1.Hand, "zzz")
	c.Player1.Bench[0].AddStatus(StatusPoisoned)
	c.Append(ActionSummary{ID: "x", ActionType: ActionDrawCard, Payload: map[string]any{"k": 1}})
	c.MarkAbilityUsed("i1/blaze")

	assert.Equal(t, 50, g.Player1.Active.CurrentHP)
	assert.Equal(t, "fire-energy", g.Player1.Active.AttachedEnergy[0])
	assert.Empty(t, g.Player1.Hand)
	assert.Empty(t, g.Player1.Bench[0].StatusEffects)
	assert.Empty(t, g.ActionHistory)
	assert.Nil(t, g.LastAction)
	assert.Empty(t, g.AbilitiesUsed)
}

func TestStatusCoexistence(t *testing.T) {
	c := NewCardInstance("i", "card", PositionActive, 60, 1)

	c.AddStatus(StatusPoisoned)
	c.AddStatus(StatusBurned)
	assert.True(t, c.HasStatus(StatusPoisoned))
	assert.True(t, c.HasStatus(StatusBurned))

	c.AddStatus(StatusConfused)
	c.AddStatus(StatusAsleep)
	assert.False(t, c.HasStatus(StatusConfused), "blocking conditions replace each other")
	assert.True(t, c.HasStatus(StatusAsleep))
	assert.True(t, c.HasStatus(StatusPoisoned))
	assert.True(t, c.HasStatus(StatusBurned))

	blocking, ok := c.BlockingStatus()
	require.True(t, ok)
	assert.Equal(t, StatusAsleep, blocking)
}

func TestBlockingPriority(t *testing.T) {
	// priority applies even if a malformed record carries several blocking conditions
	c := &CardInstance{StatusEffects: []StatusEffect{StatusConfused, StatusParalyzed, StatusAsleep}}
	s, ok := c.BlockingStatus()
	require.True(t, ok)
	assert.Equal(t, StatusAsleep, s)

	c.StatusEffects = []StatusEffect{StatusConfused, StatusParalyzed}
	s, _ = c.BlockingStatus()
	assert.Equal(t, StatusParalyzed, s)

	c.StatusEffects = []StatusEffect{StatusPoisoned}
	_, ok = c.BlockingStatus()
	assert.False(t, ok)
}

func TestEvolvePreservesDamage(t *testing.T) {
	c := NewCardInstance("i", "charmander", PositionActive, 50, 1)
	c.ApplyDamage(10)
	c.AttachedEnergy = []string{"fire-energy", "fire-energy"}
	c.AddStatus(StatusPoisoned)
	c.PoisonDamage = 20

	c.Evolve("charmeleon", 80, 3)

	assert.Equal(t, 70, c.CurrentHP)
	assert.Equal(t, 80, c.MaxHP)
	assert.Empty(t, c.StatusEffects)
	assert.Zero(t, c.PoisonDamage)
	assert.Equal(t, []string{"charmander"}, c.EvolutionChain)
	assert.Equal(t, 3, c.EvolvedAtTurn)
	assert.Len(t, c.AttachedEnergy, 2)
	assert.Equal(t, "i", c.InstanceID)
}

func TestDamageAndHealClamp(t *testing.T) {
	c := NewCardInstance("i", "card", PositionActive, 20, 1)
	assert.Equal(t, 20, c.ApplyDamage(30))
	assert.Equal(t, 0, c.CurrentHP)
	assert.True(t, c.IsKnockedOut())
	assert.Equal(t, 20, c.Heal(50))
	assert.Equal(t, 20, c.CurrentHP)
	assert.Equal(t, 0, c.ApplyDamage(-5))
}

func TestRemoveFromPlayMovesLineageAndEnergy(t *testing.T) {
	g := testState()
	p1 := g.Player1
	before := p1.CardCount()
	p1.Bench = append(p1.Bench, NewCardInstance("i4", "bulbasaur", BenchPosition(1), 40, 1))
	p1.Bench[0].EvolutionChain = []string{"pichu"}

	removed, ok := p1.RemoveFromPlay("i2")
	require.True(t, ok)
	assert.Equal(t, "pikachu", removed.CardID)
	assert.Equal(t, []string{"pichu", "pikachu"}, p1.Discard)
	require.Len(t, p1.Bench, 1)
	assert.Equal(t, BenchPosition(0), p1.Bench[0].Position)
	assert.Equal(t, before+2, p1.CardCount())

	_, ok = p1.RemoveFromPlay("i1")
	require.True(t, ok)
	assert.Nil(t, p1.Active)
	assert.Equal(t, []string{"pichu", "pikachu", "charmander", "fire-energy"}, p1.Discard)
	assert.True(t, p1.NeedsActive())
}

func TestPromoteAndSwap(t *testing.T) {
	g := testState()
	p1 := g.Player1
	require.True(t, p1.SwapActive(0))
	assert.Equal(t, "pikachu", p1.Active.CardID)
	assert.Equal(t, PositionActive, p1.Active.Position)
	assert.Equal(t, BenchPosition(0), p1.Bench[0].Position)

	p1.Active = nil
	require.True(t, p1.PromoteFromBench(0))
	assert.Equal(t, "charmander", p1.Active.CardID)
	assert.Empty(t, p1.Bench)
	assert.False(t, p1.PromoteFromBench(0))
}

func TestPositions(t *testing.T) {
	idx, ok := PokemonPosition("BENCH_3").BenchIndex()
	assert.True(t, ok)
	assert.Equal(t, 3, idx)

	_, ok = PokemonPosition("BENCH_5").BenchIndex()
	assert.False(t, ok)
	_, ok = PokemonPosition("BENCH_01").BenchIndex()
	assert.False(t, ok)
	_, ok = PositionActive.BenchIndex()
	assert.False(t, ok)

	p, err := ParsePosition("bench_2")
	require.NoError(t, err)
	assert.Equal(t, PositionBench2, p)
	_, err = ParsePosition("hand")
	assert.Error(t, err)
}

func TestParseActionType(t *testing.T) {
	at, err := ParseActionType("attach_energy")
	require.NoError(t, err)
	assert.Equal(t, ActionAttachEnergy, at)
	assert.Equal(t, "Attach Energy", at.DisplayName())
	assert.Equal(t, "Poisoned", StatusPoisoned.DisplayName())

	_, err = ParseActionType("SHUFFLE")
	assert.Error(t, err)
}

func TestTurnActions(t *testing.T) {
	g := testState()
	g.Append(ActionSummary{ID: "1", ActionType: ActionAttack})
	g.Append(ActionSummary{ID: "2", ActionType: ActionEndTurn})
	g.Append(ActionSummary{ID: "3", ActionType: ActionDrawCard})
	g.Append(ActionSummary{ID: "4", ActionType: ActionRetreat})

	actions := g.TurnActions()
	require.Len(t, actions, 2)
	assert.Equal(t, "3", actions[0].ID)
	assert.Equal(t, "4", g.LastAction.ID)
}

func TestDamageEffects(t *testing.T) {
	g := testState()
	g.AddDamageEffect(DamageEffect{PlayerID: "p2", InstanceID: "i3", ExpiresAtTurn: 3, Kind: EffectPreventAll})
	g.AddDamageEffect(DamageEffect{PlayerID: "p2", InstanceID: "i3", ExpiresAtTurn: 3, Kind: EffectPreventAll, Source: "again"})
	g.AddDamageEffect(DamageEffect{PlayerID: "p2", InstanceID: "i3", ExpiresAtTurn: 3, Kind: EffectReduce, Amount: 20})
	require.Len(t, g.DamageEffects, 2)
	assert.Len(t, g.ActiveDamageEffects("i3"), 2)

	g.TurnNumber = 4
	assert.Empty(t, g.ActiveDamageEffects("i3"))
	g.PruneDamageEffects()
	assert.Empty(t, g.DamageEffects)
}

func TestPayloadAccessorsAfterJSONRoundTrip(t *testing.T) {
	a := ActionSummary{
		ID:         "a",
		ActionType: ActionAttack,
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Payload: map[string]any{
			PayloadKnockout:   true,
			PayloadPrizesOwed: 2,
			PayloadKnockedOut: []string{"i3"},
			"attackName":      "Ember",
		},
	}
	raw, err := json.Marshal(a)
	require.NoError(t, err)
	var decoded ActionSummary
	require.NoError(t, json.Unmarshal(raw, &decoded))

	for _, s := range []ActionSummary{a, decoded} {
		n, ok := s.Int(PayloadPrizesOwed)
		assert.True(t, ok)
		assert.Equal(t, 2, n)
		assert.True(t, s.Bool(PayloadKnockout))
		assert.Equal(t, []string{"i3"}, s.Strings(PayloadKnockedOut))
		assert.Equal(t, "Ember", s.Text("attackName"))
	}
}

func TestChecksumStableAcrossJSONRoundTrip(t *testing.T) {
	g := testState()
	g.Append(ActionSummary{
		ID:         ActionID("m1", 0),
		PlayerID:   "p1",
		ActionType: ActionAttack,
		Timestamp:  time.Date(2024, 1, 2, 3, 4, 5, 6, time.UTC),
		Payload:    map[string]any{PayloadDamage: 30, PayloadKnockedOut: []string{"i3"}},
	})

	sum, err := Checksum(g)
	require.NoError(t, err)
	assert.Len(t, sum, 64)

	raw, err := json.Marshal(g)
	require.NoError(t, err)
	var decoded GameState
	require.NoError(t, json.Unmarshal(raw, &decoded))

	again, err := Checksum(&decoded)
	require.NoError(t, err)
	assert.Equal(t, sum, again)

	g.Player1.Active.CurrentHP--
	changed, err := Checksum(g)
	require.NoError(t, err)
	assert.NotEqual(t, sum, changed)
}

func TestDeterministicIDs(t *testing.T) {
	assert.Equal(t, ActionID("m", 3), ActionID("m", 3))
	assert.NotEqual(t, ActionID("m", 3), ActionID("m", 4))
	assert.NotEqual(t, InstanceID("m", 3, 0), InstanceID("m", 3, 1))
}

func TestConservationAcrossDraw(t *testing.T) {
	g := testState()
	before := g.Player1.CardCount()
	g.Player1.Draw(2)
	assert.Equal(t, before, g.Player1.CardCount())
	assert.Equal(t, 1, g.Player1.Draw(5))
	assert.Empty(t, g.Player1.Deck)
	assert.Equal(t, before, g.Player1.CardCount())
}
