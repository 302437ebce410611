// Package damage computes attack damage and applies its results to a draft state.
package damage

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// ErrInsufficientEnergy is returned when attached energy does not cover an attack cost.
var ErrInsufficientEnergy = errors.New("insufficient energy")

// Suffix is the special marker after a printed damage value.
type Suffix string

const (
	SuffixNone  Suffix = ""
	SuffixPlus  Suffix = "+"
	SuffixMinus Suffix = "-"
	SuffixTimes Suffix = "×"
)

// ParseDamage splits a printed damage value such as "30+", "50-" or "20×".
func ParseDamage(printed string) (int, Suffix, error) {
	s := strings.TrimSpace(printed)
	if s == "" {
		return 0, SuffixNone, nil
	}
	suffix := SuffixNone
	switch {
	case strings.HasSuffix(s, "+"):
		suffix, s = SuffixPlus, strings.TrimSuffix(s, "+")
	case strings.HasSuffix(s, "-"), strings.HasSuffix(s, "−"):
		suffix = SuffixMinus
		s = strings.TrimSuffix(strings.TrimSuffix(s, "-"), "−")
	case strings.HasSuffix(s, "×"), strings.HasSuffix(s, "x"), strings.HasSuffix(s, "X"):
		suffix = SuffixTimes
		s = strings.TrimRight(s, "×xX")
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, SuffixNone, fmt.Errorf("invalid damage value %q", printed)
	}
	return n, suffix, nil
}

// Input is everything the pipeline needs for one attack. The instances point into
// the draft state that Apply mutates.
type Input struct {
	MatchTurn        int
	AttackerPlayerID string
	DefenderPlayerID string
	Attacker         *state.CardInstance
	AttackerDef      *catalog.CardDefinition
	Attack           *catalog.Attack
	Defender         *state.CardInstance
	DefenderDef      *catalog.CardDefinition
	// AttackerEnergy is the attacker's pool after any discard cost was paid.
	AttackerEnergy *energy.Pool
	// DefenderEnergy is the defender's attached pool; nil counts as empty.
	DefenderEnergy    *energy.Pool
	OwnBenchSize      int
	OpponentBenchSize int
	// FlipResults holds the resolved flips, nil when the attack has none.
	FlipResults []coinflip.Result
	// DefenderEffects are the prevention/reduction effects active on the defender.
	DefenderEffects []state.DamageEffect
}

// StatusApplication is a status effect to put on a pokemon.
type StatusApplication struct {
	Target       string
	Status       state.StatusEffect
	PoisonDamage int
}

// BenchHit is splash damage to benched pokemon.
type BenchHit struct {
	Side   string
	Amount int
}

// Result is the computed outcome of an attack, before it is applied.
type Result struct {
	BaseDamage        int
	Damage            int
	WeaknessApplied   bool
	ResistanceApplied bool
	Prevented         int
	SelfDamage        int
	BenchHits         []BenchHit
	Statuses          []StatusApplication
	DefenderDiscard   *catalog.Effect
	NewEffects        []state.DamageEffect
	// Proceeded is false when a pass/fail flip cancelled the attack.
	Proceeded bool
	UsedText  bool
}

// Pipeline runs the attack damage steps. Structured attack data is canonical;
// rule text parsing is a deprecated fallback enabled by legacyText.
type Pipeline struct {
	logger     *zap.Logger
	legacyText bool
}

// NewPipeline creates a pipeline.
func NewPipeline(logger *zap.Logger, legacyText bool) *Pipeline {
	return &Pipeline{logger: logger, legacyText: legacyText}
}

// ValidateEnergy checks that the pool covers the attack cost.
func (p *Pipeline) ValidateEnergy(attack *catalog.Attack, pool *energy.Pool) error {
	cost, err := energy.ParseCost(attack.EnergyCost)
	if err != nil {
		return err
	}
	res := energy.CalculatePayment(cost, pool, "")
	if !res.Success {
		return fmt.Errorf("%w for %s: %s", ErrInsufficientEnergy, attack.Name, res.Reason)
	}
	return nil
}

// DiscardRequirement returns the attacker-side energy discard cost, if any.
func (p *Pipeline) DiscardRequirement(def *catalog.CardDefinition, attack *catalog.Attack) (*energy.Requirement, bool) {
	if d := attack.DiscardCost; d != nil {
		return &energy.Requirement{Amount: d.Amount, All: d.All, Type: d.Type, Target: string(state.PositionActive)}, true
	}
	if !p.legacyText || attack.Text == "" {
		return nil, false
	}
	req, ok := parseDiscardText(attack.Text)
	if ok {
		p.noteFallback(def, attack, "discard cost")
		req.Target = string(state.PositionActive)
	}
	return req, ok
}

// CoinFlipConfig returns the attack's flip configuration with defaults filled from
// the printed damage, or nil when the attack needs no flip.
func (p *Pipeline) CoinFlipConfig(def *catalog.CardDefinition, attack *catalog.Attack) *coinflip.Config {
	var cfg coinflip.Config
	switch {
	case attack.CoinFlip != nil:
		cfg = *attack.CoinFlip
	case p.legacyText && attack.Text != "":
		parsed, ok := parseCoinFlipText(attack.Text)
		if !ok {
			return nil
		}
		p.noteFallback(def, attack, "coin flip")
		cfg = *parsed
	default:
		return nil
	}

	printed, _, err := ParseDamage(attack.Damage)
	if err != nil {
		printed = 0
	}
	if cfg.Mode == coinflip.ModeMultiplyByHeads {
		if cfg.DamagePerHead == 0 {
			cfg.DamagePerHead = printed
		}
	} else if cfg.BaseDamage == 0 {
		cfg.BaseDamage = printed
	}
	return &cfg
}

// Calculate runs steps 4 through 7 and collects the side effects of step 8.
func (p *Pipeline) Calculate(in Input) (*Result, error) {
	res := &Result{Proceeded: true}
	attack := in.Attack

	printed, suffix, err := ParseDamage(attack.Damage)
	if err != nil {
		return nil, err
	}

	// step 4: base damage
	base := printed
	if cfg := p.CoinFlipConfig(in.AttackerDef, attack); cfg != nil {
		if !coinflip.ShouldProceed(*cfg, in.FlipResults) {
			res.Proceeded = false
			return res, nil
		}
		base = coinflip.Damage(*cfg, in.FlipResults)
	} else if suffix == SuffixTimes {
		// a multiplier without a flip configuration has nothing to multiply
		base = 0
	}
	switch suffix {
	case SuffixPlus:
		base += p.bonus(in, res)
	case SuffixMinus:
		base -= p.reduction(in, res)
	}
	res.BaseDamage = base

	// step 5: structured modifiers
	dmg := base
	for _, e := range attack.Effects {
		if e.Type == catalog.EffectDamageModifier && p.conditionsMet(in, e.Conditions) {
			dmg += e.Amount
		}
	}

	// step 6: clamp, weakness, resistance
	if dmg < 0 {
		dmg = 0
	}
	if dmg > 0 && in.DefenderDef != nil && in.AttackerDef != nil {
		if w := in.DefenderDef.Weakness; w != nil && w.Type == in.AttackerDef.PokemonType {
			dmg = w.Apply(dmg)
			res.WeaknessApplied = true
		}
		if r := in.DefenderDef.Resistance; r != nil && r.Type == in.AttackerDef.PokemonType {
			dmg -= r.Amount
			res.ResistanceApplied = true
			if dmg < 0 {
				dmg = 0
			}
		}
	}

	// step 7: prevention then reduction
	before := dmg
	dmg = applyPrevention(dmg, in.DefenderEffects)
	res.Prevented = before - dmg
	res.Damage = dmg

	p.collectSideEffects(in, res)
	return res, nil
}

// applyPrevention applies every "prevent" effect, then every flat reduction.
func applyPrevention(dmg int, effects []state.DamageEffect) int {
	for _, e := range effects {
		switch e.Kind {
		case state.EffectPreventAll:
			dmg = 0
		case state.EffectPreventUpTo:
			if dmg <= e.Amount {
				dmg = 0
			}
		}
	}
	for _, e := range effects {
		if e.Kind == state.EffectReduce {
			dmg -= e.Amount
		}
	}
	if dmg < 0 {
		dmg = 0
	}
	return dmg
}

func (p *Pipeline) bonus(in Input, res *Result) int {
	b := in.Attack.DamageBonus
	if b == nil && p.legacyText {
		if parsed, ok := parseBonusText(in.Attack.Text, in.AttackerDef.Name); ok {
			p.noteFallback(in.AttackerDef, in.Attack, "damage bonus")
			res.UsedText = true
			b = parsed
		}
	}
	if b == nil {
		return 0
	}

	units := 0
	switch b.Source {
	case catalog.BonusExtraEnergy:
		cost, err := energy.ParseCost(in.Attack.EnergyCost)
		if err == nil && in.AttackerEnergy != nil {
			units = energy.ExtraEnergy(cost, in.AttackerEnergy, b.EnergyType, 0)
		}
	case catalog.BonusDefenderEnergy:
		if in.DefenderEnergy != nil {
			units = in.DefenderEnergy.Size()
		}
	case catalog.BonusDamageCounters:
		if b.Subject == catalog.SubjectDefender {
			units = in.Defender.DamageCounters()
		} else {
			units = in.Attacker.DamageCounters()
		}
	case catalog.BonusBenchCount:
		switch b.Subject {
		case catalog.SubjectOpponent:
			units = in.OpponentBenchSize
		case catalog.SubjectBoth:
			units = in.OwnBenchSize + in.OpponentBenchSize
		default:
			units = in.OwnBenchSize
		}
	}
	if b.Cap > 0 && units > b.Cap {
		units = b.Cap
	}
	return units * b.PerUnit
}

func (p *Pipeline) reduction(in Input, res *Result) int {
	r := in.Attack.DamageReduction
	if r == nil && p.legacyText {
		if parsed, ok := parseReductionText(in.Attack.Text, in.AttackerDef.Name); ok {
			p.noteFallback(in.AttackerDef, in.Attack, "damage reduction")
			res.UsedText = true
			r = parsed
		}
	}
	if r == nil {
		return 0
	}
	subject := in.Attacker
	if r.Subject == catalog.SubjectDefender {
		subject = in.Defender
	}
	return subject.DamageCounters() * r.PerCounter
}

func (p *Pipeline) conditionsMet(in Input, conds []catalog.Condition) bool {
	for _, c := range conds {
		if !p.conditionMet(in, c) {
			return false
		}
	}
	return true
}

func (p *Pipeline) conditionMet(in Input, c catalog.Condition) bool {
	switch c.Type {
	case catalog.ConditionAlways, "":
		return true
	case catalog.ConditionCoinFlipSuccess:
		return coinflip.AllHeads(in.FlipResults)
	case catalog.ConditionCoinFlipFailure:
		return len(in.FlipResults) > 0 && !coinflip.AllHeads(in.FlipResults)
	case catalog.ConditionSelfHasDamage:
		return in.Attacker.DamageTaken() > 0
	case catalog.ConditionOpponentHasDamage:
		return in.Defender.DamageTaken() > 0
	case catalog.ConditionSelfHasEnergyType:
		need := c.MinCount
		if need <= 0 {
			need = 1
		}
		return in.AttackerEnergy != nil && in.AttackerEnergy.Count(c.EnergyType) >= need
	}
	return false
}

func (p *Pipeline) collectSideEffects(in Input, res *Result) {
	effects := in.Attack.Effects
	if len(effects) == 0 && p.legacyText && in.Attack.Text != "" {
		parsed := parseEffectsText(in.Attack.Text)
		if len(parsed) > 0 {
			p.noteFallback(in.AttackerDef, in.Attack, "attack effects")
			res.UsedText = true
			effects = parsed
		}
	}

	for _, e := range effects {
		if !p.conditionsMet(in, e.Conditions) {
			continue
		}
		switch e.Type {
		case catalog.EffectSelfDamage:
			res.SelfDamage += e.Amount
		case catalog.EffectBenchDamage:
			side := e.Target
			if side == "" {
				side = catalog.TargetOpponentBench
			}
			res.BenchHits = append(res.BenchHits, BenchHit{Side: side, Amount: e.Amount})
		case catalog.EffectStatusCondition:
			status := state.StatusEffect(strings.ToUpper(e.Status))
			if !status.Valid() {
				continue
			}
			target := e.Target
			if target == "" {
				target = catalog.TargetDefender
			}
			res.Statuses = append(res.Statuses, StatusApplication{Target: target, Status: status, PoisonDamage: e.PoisonDamage})
		case catalog.EffectDiscardEnergy:
			eff := e
			res.DefenderDiscard = &eff
		case catalog.EffectPreventDamage, catalog.EffectReduceDamage:
			res.NewEffects = append(res.NewEffects, ProtectionEffect(e, in.AttackerPlayerID, in.Attacker.InstanceID, in.MatchTurn))
		}
	}
}

// ProtectionEffect converts a PREVENT_DAMAGE or REDUCE_DAMAGE effect into the
// state record protecting instanceID. Without an explicit duration it lasts
// through the opponent's next turn.
func ProtectionEffect(e catalog.Effect, playerID, instanceID string, turn int) state.DamageEffect {
	turns := e.Turns
	if turns <= 0 {
		turns = 1
	}
	out := state.DamageEffect{
		PlayerID:      playerID,
		InstanceID:    instanceID,
		ExpiresAtTurn: turn + turns,
		Source:        string(e.Type),
	}
	switch {
	case e.Type == catalog.EffectReduceDamage:
		out.Kind = state.EffectReduce
		out.Amount = e.Amount
	case e.Threshold > 0:
		out.Kind = state.EffectPreventUpTo
		out.Amount = e.Threshold
	default:
		out.Kind = state.EffectPreventAll
	}
	return out
}

// noteFallback flags use of the deprecated rule text path.
func (p *Pipeline) noteFallback(def *catalog.CardDefinition, attack *catalog.Attack, what string) {
	if p.logger == nil {
		return
	}
	cardID := ""
	if def != nil {
		cardID = def.CardID
	}
	p.logger.Debug("using rule text fallback",
		zap.String("card_id", cardID),
		zap.String("attack", attack.Name),
		zap.String("parsed", what),
	)
}
