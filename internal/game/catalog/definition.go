// Package catalog provides static card definitions to the rules engine.
package catalog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/coinflip"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/energy"
)

// Supertype is the broad card category.
type Supertype string

const (
	SupertypePokemon Supertype = "POKEMON"
	SupertypeTrainer Supertype = "TRAINER"
	SupertypeEnergy  Supertype = "ENERGY"
)

// Stage is a pokemon's evolution stage.
type Stage string

const (
	StageBasic Stage = "BASIC"
	Stage1     Stage = "STAGE_1"
	Stage2     Stage = "STAGE_2"
)

var stageOrder = map[Stage]int{StageBasic: 0, Stage1: 1, Stage2: 2}

// Next returns the stage that evolves from s.
func (s Stage) Next() (Stage, bool) {
	switch s {
	case StageBasic:
		return Stage1, true
	case Stage1:
		return Stage2, true
	}
	return "", false
}

// Rule flags carried by a definition.
const (
	FlagCannotRetreat = "CANNOT_RETREAT"
	FlagFreeRetreat   = "FREE_RETREAT"
)

// Weakness doubles (or adds to) damage from one type.
type Weakness struct {
	Type energy.Type `yaml:"type" json:"type"`
	// Modifier is "×2", "x2" or "+20".
	Modifier string `yaml:"modifier" json:"modifier"`
}

// Apply returns damage after the weakness modifier.
func (w *Weakness) Apply(damage int) int {
	mod := strings.TrimSpace(w.Modifier)
	switch {
	case mod == "":
		return damage * 2
	case strings.HasPrefix(mod, "+"):
		n, err := strconv.Atoi(strings.TrimPrefix(mod, "+"))
		if err != nil {
			return damage * 2
		}
		return damage + n
	default:
		mod = strings.TrimLeft(mod, "×xX*")
		n, err := strconv.Atoi(mod)
		if err != nil || n <= 0 {
			return damage * 2
		}
		return damage * n
	}
}

// Resistance subtracts a fixed amount of damage from one type.
type Resistance struct {
	Type   energy.Type `yaml:"type" json:"type"`
	Amount int         `yaml:"amount" json:"amount"`
}

// ConditionType gates a structured effect.
type ConditionType string

const (
	ConditionAlways            ConditionType = "ALWAYS"
	ConditionCoinFlipSuccess   ConditionType = "COIN_FLIP_SUCCESS"
	ConditionCoinFlipFailure   ConditionType = "COIN_FLIP_FAILURE"
	ConditionSelfHasDamage     ConditionType = "SELF_HAS_DAMAGE"
	ConditionOpponentHasDamage ConditionType = "OPPONENT_HAS_DAMAGE"
	ConditionSelfHasEnergyType ConditionType = "SELF_HAS_ENERGY_TYPE"
)

// Condition is one requirement of an effect.
type Condition struct {
	Type       ConditionType `yaml:"type" json:"type"`
	EnergyType energy.Type   `yaml:"energyType,omitempty" json:"energyType,omitempty"`
	// MinCount applies to SELF_HAS_ENERGY_TYPE; zero means one.
	MinCount int `yaml:"minCount,omitempty" json:"minCount,omitempty"`
}

// EffectType identifies a structured attack, ability or trainer effect.
type EffectType string

const (
	EffectDamageModifier  EffectType = "DAMAGE_MODIFIER"
	EffectStatusCondition EffectType = "STATUS_CONDITION"
	EffectSelfDamage      EffectType = "SELF_DAMAGE"
	EffectBenchDamage     EffectType = "BENCH_DAMAGE"
	EffectDiscardEnergy   EffectType = "DISCARD_ENERGY"
	EffectDrawCards       EffectType = "DRAW_CARDS"
	EffectHeal            EffectType = "HEAL"
	EffectCureStatus      EffectType = "CURE_STATUS"
	EffectSwitchActive    EffectType = "SWITCH_ACTIVE"
	EffectRetrieveEnergy  EffectType = "RETRIEVE_ENERGY"
	EffectShuffleHandDraw EffectType = "SHUFFLE_HAND_DRAW"
	EffectPreventDamage   EffectType = "PREVENT_DAMAGE"
	EffectReduceDamage    EffectType = "REDUCE_DAMAGE"
)

// Effect targets.
const (
	TargetSelf          = "SELF"
	TargetDefender      = "DEFENDER"
	TargetOpponentBench = "OPPONENT_BENCH"
	TargetOwnBench      = "OWN_BENCH"
	TargetOpponent      = "OPPONENT"
	// TargetSelected uses the pokemon named by the action's target key.
	TargetSelected = "SELECTED"
)

// Effect is a declarative effect. Which fields matter depends on Type.
type Effect struct {
	Type       EffectType  `yaml:"type" json:"type"`
	Conditions []Condition `yaml:"conditions,omitempty" json:"conditions,omitempty"`
	Target     string      `yaml:"target,omitempty" json:"target,omitempty"`
	Amount     int         `yaml:"amount,omitempty" json:"amount,omitempty"`
	// All applies DISCARD_ENERGY / RETRIEVE_ENERGY to every matching card.
	All          bool        `yaml:"all,omitempty" json:"all,omitempty"`
	Status       string      `yaml:"status,omitempty" json:"status,omitempty"`
	PoisonDamage int         `yaml:"poisonDamage,omitempty" json:"poisonDamage,omitempty"`
	EnergyType   energy.Type `yaml:"energyType,omitempty" json:"energyType,omitempty"`
	// Threshold is the PREVENT_DAMAGE cutoff; zero prevents all damage.
	Threshold int `yaml:"threshold,omitempty" json:"threshold,omitempty"`
	// Turns is how many turns a prevention or reduction lasts; zero means through the opponent's next turn.
	Turns int `yaml:"turns,omitempty" json:"turns,omitempty"`
}

// BonusSource selects what a "+" damage suffix scales with.
type BonusSource string

const (
	BonusExtraEnergy    BonusSource = "EXTRA_ENERGY"
	BonusDefenderEnergy BonusSource = "DEFENDER_ENERGY"
	BonusDamageCounters BonusSource = "DAMAGE_COUNTERS"
	BonusBenchCount     BonusSource = "BENCH_COUNT"
)

// Subjects for damage counter and bench based modifiers.
const (
	SubjectSelf     = "SELF"
	SubjectDefender = "DEFENDER"
	SubjectOwn      = "OWN"
	SubjectOpponent = "OPPONENT"
	SubjectBoth     = "BOTH"
)

// DamageBonus is the structured form of a "+" damage suffix.
type DamageBonus struct {
	Source     BonusSource `yaml:"source" json:"source"`
	EnergyType energy.Type `yaml:"energyType,omitempty" json:"energyType,omitempty"`
	// PerUnit is the damage added per counted unit.
	PerUnit int `yaml:"perUnit" json:"perUnit"`
	// Cap limits the counted units when positive.
	Cap     int    `yaml:"cap,omitempty" json:"cap,omitempty"`
	Subject string `yaml:"subject,omitempty" json:"subject,omitempty"`
}

// DamageReduction is the structured form of a "-" damage suffix.
type DamageReduction struct {
	PerCounter int    `yaml:"perCounter" json:"perCounter"`
	Subject    string `yaml:"subject,omitempty" json:"subject,omitempty"`
}

// EnergyDiscard is an attack cost that discards energy from the attacker.
type EnergyDiscard struct {
	Amount int         `yaml:"amount,omitempty" json:"amount,omitempty"`
	All    bool        `yaml:"all,omitempty" json:"all,omitempty"`
	Type   energy.Type `yaml:"type,omitempty" json:"type,omitempty"`
}

// Attack is a printed attack.
type Attack struct {
	Name       string   `yaml:"name" json:"name"`
	EnergyCost []string `yaml:"energyCost" json:"energyCost"`
	// Damage is the printed value, e.g. "30", "10+", "50-", "20×".
	Damage          string           `yaml:"damage,omitempty" json:"damage,omitempty"`
	Text            string           `yaml:"text,omitempty" json:"text,omitempty"`
	CoinFlip        *coinflip.Config `yaml:"coinFlip,omitempty" json:"coinFlip,omitempty"`
	DamageBonus     *DamageBonus     `yaml:"damageBonus,omitempty" json:"damageBonus,omitempty"`
	DamageReduction *DamageReduction `yaml:"damageReduction,omitempty" json:"damageReduction,omitempty"`
	DiscardCost     *EnergyDiscard   `yaml:"discardCost,omitempty" json:"discardCost,omitempty"`
	Effects         []Effect         `yaml:"effects,omitempty" json:"effects,omitempty"`
}

// Ability is a pokemon power usable during the main phase.
type Ability struct {
	Name        string   `yaml:"name" json:"name"`
	Text        string   `yaml:"text,omitempty" json:"text,omitempty"`
	OncePerTurn bool     `yaml:"oncePerTurn" json:"oncePerTurn"`
	Effects     []Effect `yaml:"effects" json:"effects"`
}

// CardDefinition is the static data of one card.
type CardDefinition struct {
	CardID      string      `yaml:"cardId" json:"cardId"`
	Name        string      `yaml:"name" json:"name"`
	Supertype   Supertype   `yaml:"supertype" json:"supertype"`
	Stage       Stage       `yaml:"stage,omitempty" json:"stage,omitempty"`
	HP          int         `yaml:"hp,omitempty" json:"hp,omitempty"`
	PokemonType energy.Type `yaml:"pokemonType,omitempty" json:"pokemonType,omitempty"`
	// EvolvesFrom is the name of the previous stage.
	EvolvesFrom string      `yaml:"evolvesFrom,omitempty" json:"evolvesFrom,omitempty"`
	Weakness    *Weakness   `yaml:"weakness,omitempty" json:"weakness,omitempty"`
	Resistance  *Resistance `yaml:"resistance,omitempty" json:"resistance,omitempty"`
	RetreatCost int         `yaml:"retreatCost,omitempty" json:"retreatCost,omitempty"`
	Attacks     []Attack    `yaml:"attacks,omitempty" json:"attacks,omitempty"`
	Abilities   []Ability   `yaml:"abilities,omitempty" json:"abilities,omitempty"`
	RuleFlags   []string    `yaml:"ruleFlags,omitempty" json:"ruleFlags,omitempty"`

	TrainerType    string   `yaml:"trainerType,omitempty" json:"trainerType,omitempty"`
	TrainerEffects []Effect `yaml:"trainerEffects,omitempty" json:"trainerEffects,omitempty"`

	EnergyType energy.Type `yaml:"energyType,omitempty" json:"energyType,omitempty"`
	// Provides overrides the units a special energy supplies; basic energy provides EnergyType once.
	Provides []energy.Type `yaml:"provides,omitempty" json:"provides,omitempty"`
}

// IsPokemon reports whether the card is a pokemon.
func (d *CardDefinition) IsPokemon() bool { return d.Supertype == SupertypePokemon }

// IsBasicPokemon reports whether the card can be played directly to the bench.
func (d *CardDefinition) IsBasicPokemon() bool {
	return d.IsPokemon() && d.Stage == StageBasic
}

// IsEnergy reports whether the card is an energy card.
func (d *CardDefinition) IsEnergy() bool { return d.Supertype == SupertypeEnergy }

// IsTrainer reports whether the card is a trainer card.
func (d *CardDefinition) IsTrainer() bool { return d.Supertype == SupertypeTrainer }

// IsBasicEnergy reports whether the card is a basic energy, exempt from copy limits.
func (d *CardDefinition) IsBasicEnergy() bool {
	return d.IsEnergy() && len(d.Provides) == 0 && d.EnergyType != "" && d.EnergyType != energy.Colorless
}

// EnergyUnits returns the energy units the card provides when attached.
func (d *CardDefinition) EnergyUnits() []energy.Type {
	if len(d.Provides) > 0 {
		return append([]energy.Type{}, d.Provides...)
	}
	if d.EnergyType != "" {
		return []energy.Type{d.EnergyType}
	}
	return nil
}

// HasFlag reports whether a rule flag is present.
func (d *CardDefinition) HasFlag(flag string) bool {
	for _, f := range d.RuleFlags {
		if strings.EqualFold(f, flag) {
			return true
		}
	}
	return false
}

// EvolvesInto reports whether next is a legal evolution of d.
func (d *CardDefinition) EvolvesInto(next *CardDefinition) bool {
	if !d.IsPokemon() || !next.IsPokemon() {
		return false
	}
	want, ok := d.Stage.Next()
	if !ok || next.Stage != want {
		return false
	}
	return strings.EqualFold(strings.TrimSpace(next.EvolvesFrom), strings.TrimSpace(d.Name))
}

// Ability returns the named ability.
func (d *CardDefinition) Ability(name string) (*Ability, bool) {
	for i := range d.Abilities {
		if strings.EqualFold(d.Abilities[i].Name, name) {
			return &d.Abilities[i], true
		}
	}
	return nil, false
}

// Validate checks the fields the engine depends on.
func (d *CardDefinition) Validate() error {
	if strings.TrimSpace(d.CardID) == "" {
		return fmt.Errorf("card definition missing cardId")
	}
	switch d.Supertype {
	case SupertypePokemon:
		if _, ok := stageOrder[d.Stage]; !ok {
			return fmt.Errorf("card %s: unknown stage %q", d.CardID, d.Stage)
		}
		if d.HP <= 0 {
			return fmt.Errorf("card %s: pokemon requires positive hp", d.CardID)
		}
		if d.Stage != StageBasic && d.EvolvesFrom == "" {
			return fmt.Errorf("card %s: evolved pokemon requires evolvesFrom", d.CardID)
		}
		for i, a := range d.Attacks {
			if _, err := energy.ParseCost(a.EnergyCost); err != nil {
				return fmt.Errorf("card %s attack %d: %w", d.CardID, i, err)
			}
			if a.CoinFlip != nil {
				if err := a.CoinFlip.Validate(); err != nil {
					return fmt.Errorf("card %s attack %d: %w", d.CardID, i, err)
				}
			}
		}
	case SupertypeEnergy:
		if len(d.EnergyUnits()) == 0 {
			return fmt.Errorf("card %s: energy card provides no energy", d.CardID)
		}
	case SupertypeTrainer:
	default:
		return fmt.Errorf("card %s: unknown supertype %q", d.CardID, d.Supertype)
	}
	return nil
}
