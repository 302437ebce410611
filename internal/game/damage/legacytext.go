package damage

// Rule text parsing for cards whose structured attack data has not been backfilled.
//
// Deprecated: every function in this file is a fallback. Structured fields on
// catalog.Attack take precedence and the fallback can be disabled through
// configuration once the dataset is complete.

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
)

var (
	discardPattern     = regexp.MustCompile(`(?i)discard (\d+|all|an?) ?(\w+)? energy cards? attached to [\w\s'-]+? (?:in order to use this attack|to use this attack)`)
	flipNothingPattern = regexp.MustCompile(`(?i)flip a coin\. if tails, this attack does nothing`)
	flipTimesPattern   = regexp.MustCompile(`(?i)flip (\d+) coins\. this attack does (\d+) damage times the number of heads`)
	flipUntilPattern   = regexp.MustCompile(`(?i)flip coins until you get tails\. this attack does (\d+) damage times the number of heads`)
	flipHeadsPattern   = regexp.MustCompile(`(?i)flip a coin\. if (heads|tails)`)
	flipBonusPattern   = regexp.MustCompile(`(?i)flip a coin\. if heads, this attack does (\d+) damage plus (\d+) more damage`)

	extraEnergyPattern   = regexp.MustCompile(`(?i)(\d+) more damage for each (\w+) energy attached to [\w\s'-]+? but not used to pay`)
	bonusCapPattern      = regexp.MustCompile(`(?i)can't add more than (\d+) damage`)
	counterBonusPattern  = regexp.MustCompile(`(?i)(\d+) more damage for each damage counter on ([\w\s'-]+?)[.,]`)
	defenderEnergyBonus  = regexp.MustCompile(`(?i)(\d+) more damage for each energy (?:card )?attached to the defending pok[eé]mon`)
	benchBonusPattern    = regexp.MustCompile(`(?i)(\d+) more damage for each of (your|your opponent's) benched pok[eé]mon`)
	counterMinusPattern  = regexp.MustCompile(`(?i)minus (\d+) damage for each damage counter on ([\w\s'-]+?)[.,]`)
	selfDamagePattern    = regexp.MustCompile(`(?i)(?:(if (?:heads|tails)), )?[\w\s'-]*?does (\d+) damage to itself`)
	benchAllPattern      = regexp.MustCompile(`(?i)does (\d+) damage to each pok[eé]mon on each player's bench`)
	benchOpponentPattern = regexp.MustCompile(`(?i)does (\d+) damage to each of your opponent's benched pok[eé]mon`)
	benchOwnPattern      = regexp.MustCompile(`(?i)does (\d+) damage to each of your (?:own )?benched pok[eé]mon`)
	statusPattern        = regexp.MustCompile(`(?i)(?:(if heads|if tails)[,;]? )?(?:the defending pok[eé]mon|it) is now (asleep|paralyzed|confused|poisoned|burned)`)
	toxicPattern         = regexp.MustCompile(`(?i)takes (\d+) poison damage`)
)

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}

func parseDiscardText(text string) (*energy.Requirement, bool) {
	m := discardPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	req := &energy.Requirement{}
	switch strings.ToLower(m[1]) {
	case "all":
		req.All = true
	case "a", "an":
		req.Amount = 1
	default:
		req.Amount = atoi(m[1])
	}
	if m[2] != "" {
		if t, err := energy.ParseType(m[2]); err == nil {
			req.Type = t
		}
	}
	return req, true
}

func parseCoinFlipText(text string) (*coinflip.Config, bool) {
	if m := flipUntilPattern.FindStringSubmatch(text); m != nil {
		return &coinflip.Config{CountType: coinflip.CountUntilTails, Mode: coinflip.ModeMultiplyByHeads, DamagePerHead: atoi(m[1])}, true
	}
	if m := flipTimesPattern.FindStringSubmatch(text); m != nil {
		return &coinflip.Config{CountType: coinflip.CountFixed, Count: atoi(m[1]), Mode: coinflip.ModeMultiplyByHeads, DamagePerHead: atoi(m[2])}, true
	}
	if flipNothingPattern.MatchString(text) {
		cfg := coinflip.SingleFlip(coinflip.ModeBaseDamage, 0)
		return &cfg, true
	}
	if m := flipBonusPattern.FindStringSubmatch(text); m != nil {
		cfg := coinflip.SingleFlip(coinflip.ModeConditionalBonus, atoi(m[1]))
		cfg.BonusOnHeads = atoi(m[2])
		return &cfg, true
	}
	if flipHeadsPattern.MatchString(text) {
		cfg := coinflip.SingleFlip(coinflip.ModeStatusEffectOnly, 0)
		return &cfg, true
	}
	return nil, false
}

func parseBonusText(text, attackerName string) (*catalog.DamageBonus, bool) {
	if m := extraEnergyPattern.FindStringSubmatch(text); m != nil {
		b := &catalog.DamageBonus{Source: catalog.BonusExtraEnergy, PerUnit: atoi(m[1])}
		if t, err := energy.ParseType(m[2]); err == nil {
			b.EnergyType = t
		}
		if c := bonusCapPattern.FindStringSubmatch(text); c != nil && b.PerUnit > 0 {
			b.Cap = atoi(c[1]) / b.PerUnit
		}
		return b, true
	}
	if m := defenderEnergyBonus.FindStringSubmatch(text); m != nil {
		return &catalog.DamageBonus{Source: catalog.BonusDefenderEnergy, PerUnit: atoi(m[1])}, true
	}
	if m := counterBonusPattern.FindStringSubmatch(text); m != nil {
		return &catalog.DamageBonus{Source: catalog.BonusDamageCounters, PerUnit: atoi(m[1]), Subject: subjectOf(m[2], attackerName)}, true
	}
	if m := benchBonusPattern.FindStringSubmatch(text); m != nil {
		subject := catalog.SubjectOwn
		if strings.Contains(strings.ToLower(m[2]), "opponent") {
			subject = catalog.SubjectOpponent
		}
		return &catalog.DamageBonus{Source: catalog.BonusBenchCount, PerUnit: atoi(m[1]), Subject: subject}, true
	}
	return nil, false
}

func parseReductionText(text, attackerName string) (*catalog.DamageReduction, bool) {
	m := counterMinusPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return &catalog.DamageReduction{PerCounter: atoi(m[1]), Subject: subjectOf(m[2], attackerName)}, true
}

func subjectOf(phrase, attackerName string) string {
	p := strings.ToLower(strings.TrimSpace(phrase))
	if strings.Contains(p, "defending") {
		return catalog.SubjectDefender
	}
	if attackerName != "" && !strings.Contains(p, strings.ToLower(attackerName)) && strings.Contains(p, "opponent") {
		return catalog.SubjectDefender
	}
	return catalog.SubjectSelf
}

func flipCondition(phrase string) []catalog.Condition {
	switch strings.ToLower(strings.TrimSpace(phrase)) {
	case "if heads":
		return []catalog.Condition{{Type: catalog.ConditionCoinFlipSuccess}}
	case "if tails":
		return []catalog.Condition{{Type: catalog.ConditionCoinFlipFailure}}
	}
	return nil
}

// parseEffectsText extracts self damage, bench damage and status conditions.
func parseEffectsText(text string) []catalog.Effect {
	var out []catalog.Effect

	for _, sentence := range splitClauses(text) {
		if m := selfDamagePattern.FindStringSubmatch(sentence); m != nil {
			out = append(out, catalog.Effect{
				Type:       catalog.EffectSelfDamage,
				Amount:     atoi(m[2]),
				Conditions: flipCondition(m[1]),
			})
		}
	}

	if m := benchAllPattern.FindStringSubmatch(text); m != nil {
		out = append(out,
			catalog.Effect{Type: catalog.EffectBenchDamage, Target: catalog.TargetOpponentBench, Amount: atoi(m[1])},
			catalog.Effect{Type: catalog.EffectBenchDamage, Target: catalog.TargetOwnBench, Amount: atoi(m[1])},
		)
	} else {
		if m := benchOpponentPattern.FindStringSubmatch(text); m != nil {
			out = append(out, catalog.Effect{Type: catalog.EffectBenchDamage, Target: catalog.TargetOpponentBench, Amount: atoi(m[1])})
		}
		if m := benchOwnPattern.FindStringSubmatch(text); m != nil {
			out = append(out, catalog.Effect{Type: catalog.EffectBenchDamage, Target: catalog.TargetOwnBench, Amount: atoi(m[1])})
		}
	}

	poison := 0
	if m := toxicPattern.FindStringSubmatch(text); m != nil {
		poison = atoi(m[1])
	}
	for _, m := range statusPattern.FindAllStringSubmatch(text, -1) {
		e := catalog.Effect{
			Type:       catalog.EffectStatusCondition,
			Target:     catalog.TargetDefender,
			Status:     strings.ToUpper(m[2]),
			Conditions: flipCondition(m[1]),
		}
		if e.Status == "POISONED" {
			e.PoisonDamage = poison
		}
		out = append(out, e)
	}

	return out
}

func splitClauses(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool { return r == '.' || r == ';' })
}
