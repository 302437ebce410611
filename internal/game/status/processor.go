// Package status applies special conditions at attack time and between turns.
package status

import (
	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// Default printed amounts.
const (
	DefaultPoisonDamage        = 10
	DefaultBurnDamage          = 20
	DefaultConfusionSelfDamage = 30
)

// Config holds the amounts the processor deals.
type Config struct {
	PoisonDamage        int
	BurnDamage          int
	ConfusionSelfDamage int
}

// DefaultConfig returns the printed rules.
func DefaultConfig() Config {
	return Config{
		PoisonDamage:        DefaultPoisonDamage,
		BurnDamage:          DefaultBurnDamage,
		ConfusionSelfDamage: DefaultConfusionSelfDamage,
	}
}

// Decision is the attack-time verdict for the attacking pokemon.
type Decision int

const (
	// Allow lets the attack run.
	Allow Decision = iota
	// Blocked rejects the attack.
	Blocked
	// NeedsConfusionFlip pauses the attack on a confusion check.
	NeedsConfusionFlip
)

var decisionNames = map[Decision]string{
	Allow:              "ALLOW",
	Blocked:            "BLOCKED",
	NeedsConfusionFlip: "NEEDS_CONFUSION_FLIP",
}

func (d Decision) String() string {
	return decisionNames[d]
}

// Gate is the result of CheckAttack.
type Gate struct {
	Decision Decision
	Status   state.StatusEffect
}

// Tick is one between-turn damage application.
type Tick struct {
	PlayerID   string
	InstanceID string
	Status     state.StatusEffect
	Damage     int
}

// Outcome reports what the between-turn pass did to the draft.
type Outcome struct {
	Ticks []Tick
	// Cleared lists instance ids whose paralysis ended.
	Cleared   []string
	Knockouts []state.Knockout
	// WakeUp is the pending sleep check, nil when nothing is asleep.
	WakeUp *state.CoinFlipState
}

// Processor applies status effects. It holds no per-match state.
type Processor struct {
	cfg    Config
	logger *zap.Logger
}

// NewProcessor creates a processor. Zero amounts in cfg fall back to the printed rules.
func NewProcessor(cfg Config, logger *zap.Logger) *Processor {
	def := DefaultConfig()
	if cfg.PoisonDamage <= 0 {
		cfg.PoisonDamage = def.PoisonDamage
	}
	if cfg.BurnDamage <= 0 {
		cfg.BurnDamage = def.BurnDamage
	}
	if cfg.ConfusionSelfDamage <= 0 {
		cfg.ConfusionSelfDamage = def.ConfusionSelfDamage
	}
	return &Processor{cfg: cfg, logger: logger}
}

// Config returns the effective amounts.
func (p *Processor) Config() Config {
	return p.cfg
}

// CheckAttack evaluates the blocking conditions on the attacker in priority order
// ASLEEP, PARALYZED, CONFUSED.
func (p *Processor) CheckAttack(attacker *state.CardInstance) Gate {
	st, ok := attacker.BlockingStatus()
	if !ok {
		return Gate{Decision: Allow}
	}
	switch st {
	case state.StatusAsleep, state.StatusParalyzed:
		return Gate{Decision: Blocked, Status: st}
	case state.StatusConfused:
		return Gate{Decision: NeedsConfusionFlip, Status: st}
	}
	return Gate{Decision: Allow}
}

// CanRetreat reports whether the active pokemon may retreat. Only paralysis prevents it.
func (p *Processor) CanRetreat(active *state.CardInstance) bool {
	return !active.HasStatus(state.StatusParalyzed)
}

// PoisonDamage returns the per-tick poison damage for c.
func (p *Processor) PoisonDamage(c *state.CardInstance) int {
	if c.PoisonDamage > 0 {
		return c.PoisonDamage
	}
	return p.cfg.PoisonDamage
}

// BetweenTurns runs the between-turn pass on the draft g after the turn has passed to
// the next player. endedPlayerID is the player whose turn just finished; their
// pokemon lose paralysis. actionID seeds the wake-up flip if one is needed.
func (p *Processor) BetweenTurns(g *state.GameState, endedPlayerID, actionID string) *Outcome {
	out := &Outcome{}

	for _, player := range g.Players() {
		for _, c := range player.InPlay() {
			if c.HasStatus(state.StatusPoisoned) {
				dmg := c.ApplyDamage(p.PoisonDamage(c))
				out.Ticks = append(out.Ticks, Tick{PlayerID: player.PlayerID, InstanceID: c.InstanceID, Status: state.StatusPoisoned, Damage: dmg})
			}
			if c.HasStatus(state.StatusBurned) {
				dmg := c.ApplyDamage(p.cfg.BurnDamage)
				out.Ticks = append(out.Ticks, Tick{PlayerID: player.PlayerID, InstanceID: c.InstanceID, Status: state.StatusBurned, Damage: dmg})
			}
			if player.PlayerID == endedPlayerID && c.HasStatus(state.StatusParalyzed) {
				c.RemoveStatus(state.StatusParalyzed)
				out.Cleared = append(out.Cleared, c.InstanceID)
			}
		}
	}

	out.Knockouts = g.RemoveKnockedOut()

	var asleep []string
	for _, player := range g.Players() {
		for _, c := range player.InPlay() {
			if c.HasStatus(state.StatusAsleep) {
				asleep = append(asleep, c.InstanceID)
			}
		}
	}
	if len(asleep) > 0 {
		out.WakeUp = &state.CoinFlipState{
			Status:  state.CoinFlipReady,
			Context: state.FlipContextStatusCheck,
			Configuration: coinflip.Config{
				CountType: coinflip.CountFixed,
				Count:     len(asleep),
				Mode:      coinflip.ModeStatusEffectOnly,
			},
			Results:      []coinflip.Result{},
			ActionID:     actionID,
			PlayerID:     g.CurrentPlayerID,
			AttackIndex:  -1,
			StatusEffect: state.StatusAsleep,
			InstanceIDs:  asleep,
		}
	}

	if p.logger != nil && (len(out.Ticks) > 0 || out.WakeUp != nil) {
		p.logger.Debug("between-turn status pass",
			zap.String("match_id", g.MatchID),
			zap.Int("turn", g.TurnNumber),
			zap.Int("ticks", len(out.Ticks)),
			zap.Int("knockouts", len(out.Knockouts)),
			zap.Int("asleep", len(asleep)),
		)
	}
	return out
}

// ResolveWakeUp applies a completed sleep check: each pokemon wakes on its own heads.
// It returns the instance ids that woke up.
func (p *Processor) ResolveWakeUp(g *state.GameState, flip *state.CoinFlipState) []string {
	var woke []string
	for i, id := range flip.InstanceIDs {
		if i >= len(flip.Results) || flip.Results[i] != coinflip.Heads {
			continue
		}
		if _, c, ok := g.OwnerOf(id); ok {
			c.RemoveStatus(state.StatusAsleep)
			woke = append(woke, id)
		}
	}
	return woke
}

// ConfusionFlip returns the pending confusion check for an attack.
func (p *Processor) ConfusionFlip(playerID, actionID string, attacker *state.CardInstance, attackIndex int, selectedEnergy []string) *state.CoinFlipState {
	return &state.CoinFlipState{
		Status:            state.CoinFlipReady,
		Context:           state.FlipContextStatusCheck,
		Configuration:     coinflip.SingleFlip(coinflip.ModeStatusEffectOnly, 0),
		Results:           []coinflip.Result{},
		ActionID:          actionID,
		PlayerID:          playerID,
		AttackIndex:       attackIndex,
		PokemonInstanceID: attacker.InstanceID,
		StatusEffect:      state.StatusConfused,
		SelectedEnergyIDs: append([]string{}, selectedEnergy...),
	}
}

// ResolveConfusion applies a completed confusion check. On tails the attacker hurts
// itself and the attack is abandoned; the returned bool says whether it proceeds.
func (p *Processor) ResolveConfusion(attacker *state.CardInstance, results []coinflip.Result) (bool, int) {
	if coinflip.AllHeads(results) {
		return true, 0
	}
	return false, attacker.ApplyDamage(p.cfg.ConfusionSelfDamage)
}
