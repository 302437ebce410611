package engine

import (
	"math"
	"strconv"
	"strings"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// Action data keys.
const (
	KeyEnergyCardID      = "energyCardId"
	KeyCardID            = "cardId"
	KeyEvolutionCardID   = "evolutionCardId"
	KeyTarget            = "target"
	KeyPosition          = "position"
	KeyAttackIndex       = "attackIndex"
	KeyAbilityName       = "abilityName"
	KeyEffectTarget      = "effectTarget"
	KeySelectedEnergyIDs = "selectedEnergyIds"
	KeySelectedCardIDs   = "selectedCardIds"
	KeyPrizeIndex        = "prizeIndex"
)

// Action is a player request. Data is loosely typed; the keys it needs depend on Type.
type Action struct {
	Type     state.ActionType `json:"type"`
	PlayerID string           `json:"playerId"`
	Data     map[string]any   `json:"data,omitempty"`
}

// NewAction validates the wire action type and builds an action.
func NewAction(actionType, playerID string, data map[string]any) (Action, error) {
	at, err := state.ParseActionType(actionType)
	if err != nil {
		return Action{}, rules.Validation(rules.CodeUnknownAction, "%v", err)
	}
	if data == nil {
		data = map[string]any{}
	}
	return Action{Type: at, PlayerID: playerID, Data: data}, nil
}

func (a Action) has(key string) bool {
	v, ok := a.Data[key]
	return ok && v != nil
}

func (a Action) str(key string) (string, bool) {
	v, ok := a.Data[key].(string)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

func (a Action) requireString(key string) (string, error) {
	v, ok := a.str(key)
	if !ok {
		return "", rules.Validation(rules.CodeMissingField, "%s requires %s", a.Type, key).With("field", key)
	}
	return v, nil
}

// intValue reads an integer. Numbers decoded from JSON arrive as float64.
func (a Action) intValue(key string) (int, bool, error) {
	raw, ok := a.Data[key]
	if !ok || raw == nil {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		return int(v), true, nil
	case float64:
		if v == math.Trunc(v) {
			return int(v), true, nil
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n, true, nil
		}
	}
	return 0, false, rules.Validation(rules.CodeInvalidField, "%s must be an integer", key).With("field", key)
}

func (a Action) requireInt(key string) (int, error) {
	n, ok, err := a.intValue(key)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, rules.Validation(rules.CodeMissingField, "%s requires %s", a.Type, key).With("field", key)
	}
	return n, nil
}

func (a Action) position(key string) (state.PokemonPosition, bool, error) {
	raw, ok := a.str(key)
	if !ok {
		return "", false, nil
	}
	pos, err := state.ParsePosition(raw)
	if err != nil {
		return "", false, rules.Validation(rules.CodeInvalidField, "%v", err).With("field", key)
	}
	return pos, true, nil
}

func (a Action) requirePosition(key string) (state.PokemonPosition, error) {
	pos, ok, err := a.position(key)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", rules.Validation(rules.CodeMissingField, "%s requires %s", a.Type, key).With("field", key)
	}
	return pos, nil
}

func (a Action) requireBench(key string) (int, error) {
	pos, err := a.requirePosition(key)
	if err != nil {
		return 0, err
	}
	idx, ok := pos.BenchIndex()
	if !ok {
		return 0, rules.Validation(rules.CodeInvalidField, "%s must be a bench position", key).With("field", key)
	}
	return idx, nil
}

func (a Action) strings(key string) []string {
	if s, ok := a.Data[key].(string); ok && s != "" {
		return []string{s}
	}
	return state.StringList(a.Data[key])
}
