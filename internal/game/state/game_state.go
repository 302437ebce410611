package state

import (
	"sort"
)

// DamageEffectKind is the kind of an active damage prevention or reduction.
type DamageEffectKind string

const (
	// EffectPreventAll prevents all damage to the pokemon.
	EffectPreventAll DamageEffectKind = "PREVENT_ALL"
	// EffectPreventUpTo prevents damage of Amount or less; larger hits pass in full.
	EffectPreventUpTo DamageEffectKind = "PREVENT_UP_TO"
	// EffectReduce subtracts Amount from each hit.
	EffectReduce DamageEffectKind = "REDUCE"
)

// DamageEffect is an active prevention/reduction on one pokemon, keyed by
// (PlayerID, InstanceID, ExpiresAtTurn). It applies while TurnNumber <= ExpiresAtTurn.
type DamageEffect struct {
	PlayerID      string           `json:"playerId"`
	InstanceID    string           `json:"instanceId"`
	ExpiresAtTurn int              `json:"expiresAtTurn"`
	Kind          DamageEffectKind `json:"kind"`
	Amount        int              `json:"amount,omitempty"`
	Source        string           `json:"source,omitempty"`
}

// GameState is a full turn snapshot. A published GameState is never modified;
// transformations Clone it and return the copy.
type GameState struct {
	MatchID         string           `json:"matchId"`
	TurnNumber      int              `json:"turnNumber"`
	Phase           TurnPhase        `json:"phase"`
	CurrentPlayerID string           `json:"currentPlayerId"`
	FirstPlayerID   string           `json:"firstPlayerId,omitempty"`
	Player1         *PlayerGameState `json:"player1"`
	Player2         *PlayerGameState `json:"player2"`
	LastAction      *ActionSummary   `json:"lastAction,omitempty"`
	ActionHistory   []ActionSummary  `json:"actionHistory"`
	CoinFlip        *CoinFlipState   `json:"coinFlip,omitempty"`
	DamageEffects   []DamageEffect   `json:"damageEffects"`
	// AbilitiesUsed holds "instanceID/abilityName" keys for the current turn, sorted.
	AbilitiesUsed []string `json:"abilitiesUsed"`
}

// NewGameState creates the setup snapshot for two players.
func NewGameState(matchID string, p1, p2 *PlayerGameState) *GameState {
	return &GameState{
		MatchID:       matchID,
		TurnNumber:    0,
		Phase:         PhaseSetup,
		Player1:       p1,
		Player2:       p2,
		ActionHistory: []ActionSummary{},
		DamageEffects: []DamageEffect{},
		AbilitiesUsed: []string{},
	}
}

// Clone returns a deep copy that shares nothing mutable with the receiver.
func (g *GameState) Clone() *GameState {
	if g == nil {
		return nil
	}
	out := *g
	out.Player1 = g.Player1.Clone()
	out.Player2 = g.Player2.Clone()
	out.ActionHistory = make([]ActionSummary, len(g.ActionHistory))
	for i, a := range g.ActionHistory {
		out.ActionHistory[i] = a.Clone()
	}
	if g.LastAction != nil {
		last := g.LastAction.Clone()
		out.LastAction = &last
	}
	out.CoinFlip = g.CoinFlip.Clone()
	out.DamageEffects = append([]DamageEffect{}, g.DamageEffects...)
	out.AbilitiesUsed = cloneStrings(g.AbilitiesUsed)
	return &out
}

// IsParticipant reports whether playerID is one of the two players.
func (g *GameState) IsParticipant(playerID string) bool {
	return playerID != "" && (g.Player1.PlayerID == playerID || g.Player2.PlayerID == playerID)
}

// Player returns the board of playerID.
func (g *GameState) Player(playerID string) *PlayerGameState {
	switch playerID {
	case g.Player1.PlayerID:
		return g.Player1
	case g.Player2.PlayerID:
		return g.Player2
	}
	return nil
}

// Opponent returns the board of the other player.
func (g *GameState) Opponent(playerID string) *PlayerGameState {
	switch playerID {
	case g.Player1.PlayerID:
		return g.Player2
	case g.Player2.PlayerID:
		return g.Player1
	}
	return nil
}

// OpponentID returns the id of the other player.
func (g *GameState) OpponentID(playerID string) string {
	if opp := g.Opponent(playerID); opp != nil {
		return opp.PlayerID
	}
	return ""
}

// Players returns both boards in seat order.
func (g *GameState) Players() []*PlayerGameState {
	return []*PlayerGameState{g.Player1, g.Player2}
}

// OwnerOf finds the pokemon with instanceID on either board.
func (g *GameState) OwnerOf(instanceID string) (*PlayerGameState, *CardInstance, bool) {
	for _, p := range g.Players() {
		if c, ok := p.FindInPlay(instanceID); ok {
			return p, c, true
		}
	}
	return nil, nil, false
}

// TurnActions returns the history entries recorded since the last END_TURN, oldest first.
func (g *GameState) TurnActions() []ActionSummary {
	start := 0
	for i := len(g.ActionHistory) - 1; i >= 0; i-- {
		if g.ActionHistory[i].ActionType == ActionEndTurn {
			start = i + 1
			break
		}
	}
	return g.ActionHistory[start:]
}

// Append records a resolved action as the newest history entry.
func (g *GameState) Append(summary ActionSummary) {
	g.ActionHistory = append(g.ActionHistory, summary)
	last := summary.Clone()
	g.LastAction = &last
}

// HasUsedAbility reports whether the ability key was used this turn.
func (g *GameState) HasUsedAbility(key string) bool {
	idx := sort.SearchStrings(g.AbilitiesUsed, key)
	return idx < len(g.AbilitiesUsed) && g.AbilitiesUsed[idx] == key
}

// MarkAbilityUsed records a once-per-turn ability use.
func (g *GameState) MarkAbilityUsed(key string) {
	if g.HasUsedAbility(key) {
		return
	}
	g.AbilitiesUsed = append(g.AbilitiesUsed, key)
	sort.Strings(g.AbilitiesUsed)
}

// AbilityKey builds the AbilitiesUsed key for an ability on a pokemon instance.
func AbilityKey(instanceID, abilityName string) string {
	return instanceID + "/" + abilityName
}

// AddDamageEffect stores an effect, replacing any effect of the same kind under the same key.
func (g *GameState) AddDamageEffect(effect DamageEffect) {
	next := make([]DamageEffect, 0, len(g.DamageEffects)+1)
	for _, e := range g.DamageEffects {
		if e.PlayerID == effect.PlayerID && e.InstanceID == effect.InstanceID &&
			e.ExpiresAtTurn == effect.ExpiresAtTurn && e.Kind == effect.Kind {
			continue
		}
		next = append(next, e)
	}
	next = append(next, effect)
	sort.SliceStable(next, func(i, j int) bool {
		if next[i].InstanceID != next[j].InstanceID {
			return next[i].InstanceID < next[j].InstanceID
		}
		return next[i].ExpiresAtTurn < next[j].ExpiresAtTurn
	})
	g.DamageEffects = next
}

// ActiveDamageEffects returns the effects protecting instanceID on the current turn.
func (g *GameState) ActiveDamageEffects(instanceID string) []DamageEffect {
	var out []DamageEffect
	for _, e := range g.DamageEffects {
		if e.InstanceID == instanceID && g.TurnNumber <= e.ExpiresAtTurn {
			out = append(out, e)
		}
	}
	return out
}

// PruneDamageEffects drops expired effects and effects on pokemon no longer in play.
func (g *GameState) PruneDamageEffects() {
	next := make([]DamageEffect, 0, len(g.DamageEffects))
	for _, e := range g.DamageEffects {
		if g.TurnNumber > e.ExpiresAtTurn {
			continue
		}
		if _, _, ok := g.OwnerOf(e.InstanceID); !ok {
			continue
		}
		next = append(next, e)
	}
	g.DamageEffects = next
}

// Knockout records a pokemon removed from play at 0 hp.
type Knockout struct {
	PlayerID   string
	InstanceID string
	CardID     string
	WasActive  bool
}

// RemoveKnockedOut moves every pokemon at 0 hp to its owner's discard pile,
// renumbering benches, and returns them in seat order.
func (g *GameState) RemoveKnockedOut() []Knockout {
	var out []Knockout
	for _, p := range g.Players() {
		for _, c := range p.InPlay() {
			if !c.IsKnockedOut() {
				continue
			}
			wasActive := p.Active != nil && p.Active.InstanceID == c.InstanceID
			p.RemoveFromPlay(c.InstanceID)
			out = append(out, Knockout{PlayerID: p.PlayerID, InstanceID: c.InstanceID, CardID: c.CardID, WasActive: wasActive})
		}
	}
	return out
}
