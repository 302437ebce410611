package state

import (
	"sort"
)

// DamageCounterSize is the hp represented by one damage counter.
const DamageCounterSize = 10

// CardInstance is a pokemon in play.
type CardInstance struct {
	InstanceID     string          `json:"instanceId"`
	CardID         string          `json:"cardId"`
	Position       PokemonPosition `json:"position"`
	CurrentHP      int             `json:"currentHp"`
	MaxHP          int             `json:"maxHp"`
	AttachedEnergy []string        `json:"attachedEnergy"`
	StatusEffects  []StatusEffect  `json:"statusEffects"`
	EvolutionChain []string        `json:"evolutionChain"`
	// PoisonDamage overrides the default poison tick when non-zero.
	PoisonDamage int `json:"poisonDamage,omitempty"`
	// EvolvedAtTurn is the turn of the last evolution, zero if never evolved.
	EvolvedAtTurn int `json:"evolvedAtTurn,omitempty"`
	PlayedAtTurn  int `json:"playedAtTurn,omitempty"`
}

// NewCardInstance creates a freshly played basic pokemon at full hp.
func NewCardInstance(instanceID, cardID string, position PokemonPosition, hp, turn int) *CardInstance {
	return &CardInstance{
		InstanceID:     instanceID,
		CardID:         cardID,
		Position:       position,
		CurrentHP:      hp,
		MaxHP:          hp,
		AttachedEnergy: []string{},
		StatusEffects:  []StatusEffect{},
		EvolutionChain: []string{},
		PlayedAtTurn:   turn,
	}
}

// Clone returns a deep copy.
func (c *CardInstance) Clone() *CardInstance {
	if c == nil {
		return nil
	}
	out := *c
	out.AttachedEnergy = cloneStrings(c.AttachedEnergy)
	out.StatusEffects = append([]StatusEffect{}, c.StatusEffects...)
	out.EvolutionChain = cloneStrings(c.EvolutionChain)
	return &out
}

// DamageTaken returns the absolute damage marked on the pokemon.
func (c *CardInstance) DamageTaken() int {
	return c.MaxHP - c.CurrentHP
}

// DamageCounters returns the number of damage counters on the pokemon.
func (c *CardInstance) DamageCounters() int {
	return c.DamageTaken() / DamageCounterSize
}

// IsKnockedOut reports whether the pokemon has no hp left.
func (c *CardInstance) IsKnockedOut() bool {
	return c.CurrentHP <= 0
}

// ApplyDamage removes hp, flooring at zero, and returns the damage actually dealt.
func (c *CardInstance) ApplyDamage(amount int) int {
	if amount <= 0 {
		return 0
	}
	if amount > c.CurrentHP {
		amount = c.CurrentHP
	}
	c.CurrentHP -= amount
	return amount
}

// Heal restores hp up to max hp and returns the amount healed.
func (c *CardInstance) Heal(amount int) int {
	if amount <= 0 {
		return 0
	}
	if missing := c.MaxHP - c.CurrentHP; amount > missing {
		amount = missing
	}
	c.CurrentHP += amount
	return amount
}

// Evolve replaces the card identity, keeping absolute damage and attached energy and
// clearing every status effect.
func (c *CardInstance) Evolve(cardID string, maxHP, turn int) {
	damage := c.DamageTaken()
	c.EvolutionChain = append(c.EvolutionChain, c.CardID)
	c.CardID = cardID
	c.MaxHP = maxHP
	c.CurrentHP = maxHP - damage
	if c.CurrentHP < 0 {
		c.CurrentHP = 0
	}
	c.StatusEffects = []StatusEffect{}
	c.PoisonDamage = 0
	c.EvolvedAtTurn = turn
}

// HasStatus reports whether the effect is active.
func (c *CardInstance) HasStatus(effect StatusEffect) bool {
	for _, s := range c.StatusEffects {
		if s == effect {
			return true
		}
	}
	return false
}

// AddStatus applies an effect. A blocking condition replaces any other blocking
// condition; POISONED and BURNED stack with everything.
func (c *CardInstance) AddStatus(effect StatusEffect) {
	next := make([]StatusEffect, 0, len(c.StatusEffects)+1)
	for _, s := range c.StatusEffects {
		if s == effect {
			continue
		}
		if effect.IsBlocking() && s.IsBlocking() {
			continue
		}
		next = append(next, s)
	}
	next = append(next, effect)
	sort.Slice(next, func(i, j int) bool { return next[i] < next[j] })
	c.StatusEffects = next
}

// RemoveStatus clears a single effect.
func (c *CardInstance) RemoveStatus(effect StatusEffect) {
	next := make([]StatusEffect, 0, len(c.StatusEffects))
	for _, s := range c.StatusEffects {
		if s != effect {
			next = append(next, s)
		}
	}
	c.StatusEffects = next
	if effect == StatusPoisoned {
		c.PoisonDamage = 0
	}
}

// ClearStatus removes every effect.
func (c *CardInstance) ClearStatus() {
	c.StatusEffects = []StatusEffect{}
	c.PoisonDamage = 0
}

// BlockingStatus returns the highest priority blocking condition, if any.
func (c *CardInstance) BlockingStatus() (StatusEffect, bool) {
	best := StatusEffect("")
	bestRank := len(blockingPriority)
	for _, s := range c.StatusEffects {
		if rank, ok := blockingPriority[s]; ok && rank < bestRank {
			best, bestRank = s, rank
		}
	}
	return best, best != ""
}

// RemoveEnergy detaches the given energy ids, failing without change if any id is not attached.
func (c *CardInstance) RemoveEnergy(ids []string) bool {
	remaining := cloneStrings(c.AttachedEnergy)
	for _, id := range ids {
		idx := indexOf(remaining, id)
		if idx < 0 {
			return false
		}
		remaining = append(remaining[:idx], remaining[idx+1:]...)
	}
	c.AttachedEnergy = remaining
	return true
}

// CardsInPlay returns every card id the instance represents on the board:
// its current card, its evolution chain, and attached energy.
func (c *CardInstance) CardsInPlay() []string {
	out := make([]string, 0, 1+len(c.EvolutionChain)+len(c.AttachedEnergy))
	out = append(out, c.EvolutionChain...)
	out = append(out, c.CardID)
	out = append(out, c.AttachedEnergy...)
	return out
}

func cloneStrings(in []string) []string {
	if in == nil {
		return []string{}
	}
	out := make([]string, len(in))
	copy(out, in)
	return out
}

func indexOf(list []string, v string) int {
	for i, s := range list {
		if s == v {
			return i
		}
	}
	return -1
}
