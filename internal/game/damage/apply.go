package damage

import (
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// Applied is what Apply changed on the draft.
type Applied struct {
	DamageDealt     int
	SelfDamageDealt int
	// BenchDamage maps instance id to damage dealt to that benched pokemon.
	BenchDamage     map[string]int
	StatusesApplied []string
	DiscardedEnergy []string
	Knockouts       []state.Knockout
}

// Apply writes a calculated result onto the draft state g. The instances in in must
// belong to g. Knocked out pokemon are moved to their owner's discard pile and the
// remaining bench slots are renumbered.
func Apply(g *state.GameState, in Input, res *Result) *Applied {
	out := &Applied{BenchDamage: map[string]int{}}
	if !res.Proceeded {
		return out
	}
	attacker := g.Player(in.AttackerPlayerID)
	defender := g.Player(in.DefenderPlayerID)

	out.DamageDealt = in.Defender.ApplyDamage(res.Damage)
	if res.SelfDamage > 0 {
		out.SelfDamageDealt = in.Attacker.ApplyDamage(res.SelfDamage)
	}

	for _, hit := range res.BenchHits {
		bench := defender.Bench
		if hit.Side == catalog.TargetOwnBench {
			bench = attacker.Bench
		}
		for _, b := range bench {
			amount := applyPrevention(hit.Amount, g.ActiveDamageEffects(b.InstanceID))
			out.BenchDamage[b.InstanceID] += b.ApplyDamage(amount)
		}
	}

	for _, st := range res.Statuses {
		target := in.Defender
		if st.Target == catalog.TargetSelf {
			target = in.Attacker
		}
		if target.IsKnockedOut() {
			continue
		}
		target.AddStatus(st.Status)
		if st.Status == state.StatusPoisoned && st.PoisonDamage > 0 {
			target.PoisonDamage = st.PoisonDamage
		}
		out.StatusesApplied = append(out.StatusesApplied, string(st.Status))
	}

	if res.DefenderDiscard != nil && in.DefenderEnergy != nil {
		ids := PickEnergy(in.DefenderEnergy, res.DefenderDiscard.EnergyType, res.DefenderDiscard.Amount, res.DefenderDiscard.All)
		if len(ids) > 0 && in.Defender.RemoveEnergy(ids) {
			defender.Discard = append(defender.Discard, ids...)
			out.DiscardedEnergy = ids
		}
	}

	for _, e := range res.NewEffects {
		g.AddDamageEffect(e)
	}

	out.Knockouts = g.RemoveKnockedOut()
	return out
}

// PickEnergy chooses energy cards to discard from a pool when the player does not
// choose: the most recently attached cards providing t go first.
func PickEnergy(pool *energy.Pool, t energy.Type, amount int, all bool) []string {
	cards := pool.Cards()
	var out []string
	for i := len(cards) - 1; i >= 0; i-- {
		if !all && len(out) >= amount {
			break
		}
		if t != "" && !cardProvides(cards[i], t) {
			continue
		}
		out = append(out, cards[i].ID)
	}
	return out
}

func cardProvides(c energy.Card, t energy.Type) bool {
	for _, p := range c.Provides {
		if p == t {
			return true
		}
	}
	return false
}
