// Package energy validates attack and retreat costs against attached energy and
// checks player energy selections for discard costs.
package energy

import (
	"fmt"
	"sort"
	"strings"
)

// Type is a pokemon energy type.
type Type string

const (
	Grass     Type = "GRASS"
	Fire      Type = "FIRE"
	Water     Type = "WATER"
	Lightning Type = "LIGHTNING"
	Psychic   Type = "PSYCHIC"
	Fighting  Type = "FIGHTING"
	Darkness  Type = "DARKNESS"
	Metal     Type = "METAL"
	Fairy     Type = "FAIRY"
	Dragon    Type = "DRAGON"
	// Colorless in a cost can be paid by any energy.
	Colorless Type = "COLORLESS"
)

var typeAliases = map[string]Type{
	"G": Grass,
	"R": Fire,
	"W": Water,
	"L": Lightning,
	"P": Psychic,
	"F": Fighting,
	"D": Darkness,
	"M": Metal,
	"Y": Fairy,
	"N": Dragon,
	"C": Colorless,
}

var allTypes = []Type{Grass, Fire, Water, Lightning, Psychic, Fighting, Darkness, Metal, Fairy, Dragon, Colorless}

// ParseType accepts a full type name ("FIRE") or its single letter symbol ("R").
func ParseType(s string) (Type, error) {
	symbol := strings.ToUpper(strings.TrimSpace(s))
	symbol = strings.TrimSuffix(strings.TrimPrefix(symbol, "{"), "}")
	if t, ok := typeAliases[symbol]; ok {
		return t, nil
	}
	for _, t := range allTypes {
		if string(t) == symbol {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown energy type: %q", s)
}

// Cost is a parsed energy cost.
type Cost struct {
	Typed     map[Type]int
	Colorless int
}

// ParseCost parses a list of energy symbols or names, e.g. ["FIRE", "COLORLESS"] or ["R", "C"].
func ParseCost(symbols []string) (*Cost, error) {
	cost := &Cost{Typed: map[Type]int{}}
	for _, s := range symbols {
		t, err := ParseType(s)
		if err != nil {
			return nil, err
		}
		if t == Colorless {
			cost.Colorless++
		} else {
			cost.Typed[t]++
		}
	}
	return cost, nil
}

// Total returns the number of energy units the cost requires.
func (c *Cost) Total() int {
	if c == nil {
		return 0
	}
	n := c.Colorless
	for _, v := range c.Typed {
		n += v
	}
	return n
}

// String renders the cost in a stable order, e.g. "FIRE,FIRE,COLORLESS".
func (c *Cost) String() string {
	if c == nil {
		return ""
	}
	var parts []string
	for _, t := range c.sortedTypes() {
		for i := 0; i < c.Typed[t]; i++ {
			parts = append(parts, string(t))
		}
	}
	for i := 0; i < c.Colorless; i++ {
		parts = append(parts, string(Colorless))
	}
	return strings.Join(parts, ",")
}

func (c *Cost) sortedTypes() []Type {
	types := make([]Type, 0, len(c.Typed))
	for t := range c.Typed {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
