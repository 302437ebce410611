package energy

// Card is an attached energy card with the energy units it provides.
// Basic energy provides one unit of its type; special energy may provide more.
type Card struct {
	ID       string
	Provides []Type
}

// Unit is one energy unit from an attached card.
type Unit struct {
	CardIndex int
	CardID    string
	Type      Type
}

// Pool is the ordered set of energy units attached to one pokemon.
type Pool struct {
	cards []Card
	units []Unit
}

// NewPool builds a pool from attached cards in attachment order.
func NewPool(cards []Card) *Pool {
	p := &Pool{cards: append([]Card{}, cards...)}
	for i, c := range cards {
		for _, t := range c.Provides {
			p.units = append(p.units, Unit{CardIndex: i, CardID: c.ID, Type: t})
		}
	}
	return p
}

// Cards returns the attached cards.
func (p *Pool) Cards() []Card {
	return append([]Card{}, p.cards...)
}

// Units returns every unit in the pool.
func (p *Pool) Units() []Unit {
	return append([]Unit{}, p.units...)
}

// Size returns the number of units.
func (p *Pool) Size() int {
	return len(p.units)
}

// Count returns the units of type t.
func (p *Pool) Count(t Type) int {
	n := 0
	for _, u := range p.units {
		if u.Type == t {
			n++
		}
	}
	return n
}

// CountCards returns the attached cards that provide type t, or every card when t is empty.
func (p *Pool) CountCards(t Type) int {
	n := 0
	for _, c := range p.cards {
		if t == "" || provides(c, t) {
			n++
		}
	}
	return n
}

func provides(c Card, t Type) bool {
	for _, p := range c.Provides {
		if p == t {
			return true
		}
	}
	return false
}
