package energy

import (
	"errors"
	"fmt"
	"strconv"
)

var (
	// ErrSelectionRequired means a discard cost needs an explicit selection that was not supplied.
	ErrSelectionRequired = errors.New("energy selection required")
	ErrSelectionCount    = errors.New("wrong number of energy cards selected")
	ErrNotAttached       = errors.New("selected energy is not attached")
	ErrWrongType         = errors.New("selected energy does not provide the required type")
	ErrInsufficientUnits = errors.New("selected energy does not cover the cost")
)

// Requirement describes an energy discard the player must choose.
type Requirement struct {
	Amount int
	// All discards every matching energy; Amount is ignored.
	All    bool
	Type   Type
	Target string
}

// AmountLabel renders the amount as an integer string or "all".
func (r Requirement) AmountLabel() string {
	if r.All {
		return "all"
	}
	return strconv.Itoa(r.Amount)
}

// Expected returns the number of cards a valid selection contains for the pool.
func (r Requirement) Expected(pool *Pool) int {
	if r.All {
		return pool.CountCards(r.Type)
	}
	return r.Amount
}

// ValidateSelection checks that selected names exactly the energy cards the requirement
// asks for. Ids may repeat when several copies of the same card are attached.
func ValidateSelection(req Requirement, pool *Pool, selected []string) error {
	expected := req.Expected(pool)
	if expected > 0 && len(selected) == 0 {
		return ErrSelectionRequired
	}
	if len(selected) != expected {
		return fmt.Errorf("%w: expected %d, got %d", ErrSelectionCount, expected, len(selected))
	}
	if _, err := matchCards(pool, selected, req.Type); err != nil {
		return err
	}
	return nil
}

// ValidateRetreatSelection checks a retreat discard: the selected cards must provide at
// least cost units and every selected card must be needed to reach it.
func ValidateRetreatSelection(cost int, pool *Pool, selected []string) error {
	if cost <= 0 {
		if len(selected) > 0 {
			return fmt.Errorf("%w: retreat is free", ErrSelectionCount)
		}
		return nil
	}
	if len(selected) == 0 {
		return ErrSelectionRequired
	}
	cards, err := matchCards(pool, selected, "")
	if err != nil {
		return err
	}
	total := 0
	for _, c := range cards {
		total += len(c.Provides)
	}
	if total < cost {
		return fmt.Errorf("%w: retreat costs %d, selected %d", ErrInsufficientUnits, cost, total)
	}
	for _, c := range cards {
		if total-len(c.Provides) >= cost {
			return fmt.Errorf("%w: %s is not needed to pay a retreat cost of %d", ErrSelectionCount, c.ID, cost)
		}
	}
	return nil
}

// matchCards resolves selected ids against the attached cards, consuming one attached
// copy per selected id.
func matchCards(pool *Pool, selected []string, required Type) ([]Card, error) {
	available := pool.Cards()
	taken := make([]bool, len(available))
	out := make([]Card, 0, len(selected))
	for _, id := range selected {
		found := -1
		for i, c := range available {
			if !taken[i] && c.ID == id {
				found = i
				break
			}
		}
		if found < 0 {
			return nil, fmt.Errorf("%w: %s", ErrNotAttached, id)
		}
		if required != "" && !provides(available[found], required) {
			return nil, fmt.Errorf("%w: %s is not %s", ErrWrongType, id, required)
		}
		taken[found] = true
		out = append(out, available[found])
	}
	return out, nil
}
