package energy

import (
	"fmt"
)

// PaymentResult is the outcome of checking a cost against a pool.
type PaymentResult struct {
	Success bool
	// Used lists the units assigned to the cost.
	Used []Unit
	// Remaining lists the units left after paying.
	Remaining []Unit
	Reason    string
}

// CalculatePayment assigns pool units to the cost. Typed requirements are paid
// first with exact matches; colorless is then paid from what is left, spending
// units of the preserve type last so callers can count surplus of that type.
func CalculatePayment(cost *Cost, pool *Pool, preserve Type) *PaymentResult {
	units := pool.Units()
	used := make([]bool, len(units))
	result := &PaymentResult{}

	if cost != nil {
		for _, t := range cost.sortedTypes() {
			need := cost.Typed[t]
			for i, u := range units {
				if need == 0 {
					break
				}
				if !used[i] && u.Type == t {
					used[i] = true
					need--
				}
			}
			if need > 0 {
				result.Reason = fmt.Sprintf("insufficient %s energy (need %d more)", t, need)
				return result
			}
		}

		need := cost.Colorless
		for pass := 0; pass < 2 && need > 0; pass++ {
			for i, u := range units {
				if need == 0 {
					break
				}
				if used[i] {
					continue
				}
				// first pass skips the preserved type
				if pass == 0 && preserve != "" && u.Type == preserve {
					continue
				}
				used[i] = true
				need--
			}
		}
		if need > 0 {
			result.Reason = fmt.Sprintf("insufficient energy for colorless cost (need %d more)", need)
			return result
		}
	}

	for i, u := range units {
		if used[i] {
			result.Used = append(result.Used, u)
		} else {
			result.Remaining = append(result.Remaining, u)
		}
	}
	result.Success = true
	return result
}

// CanPay reports whether the pool covers the cost.
func CanPay(cost *Cost, pool *Pool) bool {
	return CalculatePayment(cost, pool, "").Success
}

// ExtraEnergy counts units of type t left over after paying cost, capped when
// limit is positive. Returns 0 when the cost cannot be paid.
func ExtraEnergy(cost *Cost, pool *Pool, t Type, limit int) int {
	res := CalculatePayment(cost, pool, t)
	if !res.Success {
		return 0
	}
	n := 0
	for _, u := range res.Remaining {
		if t == "" || u.Type == t {
			n++
		}
	}
	if limit > 0 && n > limit {
		n = limit
	}
	return n
}
