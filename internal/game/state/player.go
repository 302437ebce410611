package state

// PlayerGameState is one player's side of the board.
type PlayerGameState struct {
	PlayerID string          `json:"playerId"`
	Deck     []string        `json:"deck"`
	Hand     []string        `json:"hand"`
	Active   *CardInstance   `json:"active,omitempty"`
	Bench    []*CardInstance `json:"bench"`
	Prizes   []string        `json:"prizes"`
	Discard  []string        `json:"discard"`
	// EnergyAttachedThisTurn is reset for both players at END_TURN.
	EnergyAttachedThisTurn bool `json:"energyAttachedThisTurn"`
	SetupComplete          bool `json:"setupComplete,omitempty"`
}

// NewPlayerGameState creates an empty board holding deck as the draw pile.
func NewPlayerGameState(playerID string, deck []string) *PlayerGameState {
	return &PlayerGameState{
		PlayerID: playerID,
		Deck:     cloneStrings(deck),
		Hand:     []string{},
		Bench:    []*CardInstance{},
		Prizes:   []string{},
		Discard:  []string{},
	}
}

// Clone returns a deep copy.
func (p *PlayerGameState) Clone() *PlayerGameState {
	if p == nil {
		return nil
	}
	out := *p
	out.Deck = cloneStrings(p.Deck)
	out.Hand = cloneStrings(p.Hand)
	out.Prizes = cloneStrings(p.Prizes)
	out.Discard = cloneStrings(p.Discard)
	out.Active = p.Active.Clone()
	out.Bench = make([]*CardInstance, len(p.Bench))
	for i, b := range p.Bench {
		out.Bench[i] = b.Clone()
	}
	return &out
}

// CardCount totals every card the player owns across all zones.
func (p *PlayerGameState) CardCount() int {
	n := len(p.Deck) + len(p.Hand) + len(p.Prizes) + len(p.Discard)
	for _, c := range p.InPlay() {
		n += len(c.CardsInPlay())
	}
	return n
}

// InPlay returns the active pokemon followed by the bench.
func (p *PlayerGameState) InPlay() []*CardInstance {
	out := make([]*CardInstance, 0, 1+len(p.Bench))
	if p.Active != nil {
		out = append(out, p.Active)
	}
	out = append(out, p.Bench...)
	return out
}

// HasPokemonInPlay reports whether any pokemon is on the board.
func (p *PlayerGameState) HasPokemonInPlay() bool {
	return p.Active != nil || len(p.Bench) > 0
}

// NeedsActive reports whether the active slot is empty but a bench pokemon can fill it.
func (p *PlayerGameState) NeedsActive() bool {
	return p.Active == nil && len(p.Bench) > 0
}

// PokemonAt returns the pokemon in a board slot.
func (p *PlayerGameState) PokemonAt(pos PokemonPosition) (*CardInstance, bool) {
	if pos == PositionActive {
		return p.Active, p.Active != nil
	}
	idx, ok := pos.BenchIndex()
	if !ok || idx >= len(p.Bench) {
		return nil, false
	}
	return p.Bench[idx], true
}

// FindInPlay locates a pokemon by instance id.
func (p *PlayerGameState) FindInPlay(instanceID string) (*CardInstance, bool) {
	for _, c := range p.InPlay() {
		if c.InstanceID == instanceID {
			return c, true
		}
	}
	return nil, false
}

// HandContains reports whether cardID is in hand.
func (p *PlayerGameState) HandContains(cardID string) bool {
	return indexOf(p.Hand, cardID) >= 0
}

// RemoveFromHand removes one copy of cardID from the hand.
func (p *PlayerGameState) RemoveFromHand(cardID string) bool {
	idx := indexOf(p.Hand, cardID)
	if idx < 0 {
		return false
	}
	p.Hand = append(p.Hand[:idx], p.Hand[idx+1:]...)
	return true
}

// Draw moves up to n cards from the top of the deck to the hand and returns how many moved.
func (p *PlayerGameState) Draw(n int) int {
	if n > len(p.Deck) {
		n = len(p.Deck)
	}
	p.Hand = append(p.Hand, p.Deck[:n]...)
	p.Deck = p.Deck[n:]
	return n
}

// RenumberBench rewrites bench positions so slots stay contiguous.
func (p *PlayerGameState) RenumberBench() {
	for i, b := range p.Bench {
		b.Position = BenchPosition(i)
	}
	if p.Active != nil {
		p.Active.Position = PositionActive
	}
}

// RemoveFromPlay takes a pokemon off the board and moves it, its evolution chain and
// its attached energy to the discard pile. The bench is renumbered.
func (p *PlayerGameState) RemoveFromPlay(instanceID string) (*CardInstance, bool) {
	if p.Active != nil && p.Active.InstanceID == instanceID {
		removed := p.Active
		p.Active = nil
		p.Discard = append(p.Discard, removed.CardsInPlay()...)
		return removed, true
	}
	for i, b := range p.Bench {
		if b.InstanceID == instanceID {
			p.Bench = append(p.Bench[:i], p.Bench[i+1:]...)
			p.Discard = append(p.Discard, b.CardsInPlay()...)
			p.RenumberBench()
			return b, true
		}
	}
	return nil, false
}

// PromoteFromBench moves a bench pokemon into the empty active slot.
func (p *PlayerGameState) PromoteFromBench(benchIndex int) bool {
	if p.Active != nil || benchIndex < 0 || benchIndex >= len(p.Bench) {
		return false
	}
	p.Active = p.Bench[benchIndex]
	p.Bench = append(p.Bench[:benchIndex], p.Bench[benchIndex+1:]...)
	p.RenumberBench()
	return true
}

// SwapActive exchanges the active pokemon with a bench pokemon.
func (p *PlayerGameState) SwapActive(benchIndex int) bool {
	if p.Active == nil || benchIndex < 0 || benchIndex >= len(p.Bench) {
		return false
	}
	p.Active, p.Bench[benchIndex] = p.Bench[benchIndex], p.Active
	p.RenumberBench()
	return true
}

// TakePrize moves the prize at index into the hand.
func (p *PlayerGameState) TakePrize(index int) (string, bool) {
	if index < 0 || index >= len(p.Prizes) {
		return "", false
	}
	card := p.Prizes[index]
	p.Prizes = append(p.Prizes[:index], p.Prizes[index+1:]...)
	p.Hand = append(p.Hand, card)
	return card, true
}
