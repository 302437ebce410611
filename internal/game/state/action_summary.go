package state

import (
	"time"
)

// Well-known ActionSummary payload keys shared by the executor and the ordering rules.
const (
	PayloadKnockout      = "knockout"
	PayloadKnockedOut    = "knockedOut"
	PayloadPrizesOwed    = "prizesOwed"
	PayloadAutoPrizes    = "autoPrizes"
	PayloadCoinFlipState = "coinFlip"
	PayloadInitiated     = "initiated"
	PayloadDamage        = "damage"
	PayloadMatchResult   = "matchResult"
)

// ActionSummary is the immutable history record of one resolved action.
// Payload values are never mutated once the summary is appended.
type ActionSummary struct {
	ID         string         `json:"id"`
	PlayerID   string         `json:"playerId"`
	ActionType ActionType     `json:"actionType"`
	Timestamp  time.Time      `json:"timestamp"`
	Payload    map[string]any `json:"payload"`
}

// Clone copies the summary and its top-level payload map.
func (a ActionSummary) Clone() ActionSummary {
	out := a
	out.Payload = make(map[string]any, len(a.Payload))
	for k, v := range a.Payload {
		out.Payload[k] = v
	}
	return out
}

// Int reads an integer payload value. Values decoded from JSON arrive as float64.
func (a ActionSummary) Int(key string) (int, bool) {
	switch v := a.Payload[key].(type) {
	case int:
		return v, true
	case int32:
		return int(v), true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	}
	return 0, false
}

// Bool reads a boolean payload value.
func (a ActionSummary) Bool(key string) bool {
	v, _ := a.Payload[key].(bool)
	return v
}

// Text reads a string payload value.
func (a ActionSummary) Text(key string) string {
	v, _ := a.Payload[key].(string)
	return v
}

// Strings reads a string list payload value.
func (a ActionSummary) Strings(key string) []string {
	return StringList(a.Payload[key])
}

// StringList converts []string or a decoded []any into []string.
func StringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return cloneStrings(list)
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
