package rules

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a rejected action.
type Kind string

const (
	// KindValidation is malformed or missing action data.
	KindValidation Kind = "VALIDATION"
	// KindIllegalState is an action not permitted in the current phase or turn.
	KindIllegalState Kind = "ILLEGAL_STATE"
	// KindNotFound is a reference to a missing match, card, or board slot.
	KindNotFound Kind = "NOT_FOUND"
	// KindEnergySelectionRequired asks the client to resubmit with selectedEnergyIds.
	KindEnergySelectionRequired Kind = "ENERGY_SELECTION_REQUIRED"
	// KindCatalogLookup means the card catalog could not resolve a card id.
	KindCatalogLookup Kind = "CATALOG_LOOKUP"
)

// Stable failure codes.
const (
	CodeNotParticipant         = "NOT_PARTICIPANT"
	CodeMatchOver              = "MATCH_OVER"
	CodeNotYourTurn            = "NOT_YOUR_TURN"
	CodeWrongPhase             = "WRONG_PHASE"
	CodeMissingField           = "MISSING_FIELD"
	CodeInvalidField           = "INVALID_FIELD"
	CodeUnknownAction          = "UNKNOWN_ACTION"
	CodeCardNotInHand          = "CARD_NOT_IN_HAND"
	CodeCardNotFound           = "CARD_NOT_FOUND"
	CodePositionEmpty          = "POSITION_EMPTY"
	CodeWrongCardType          = "WRONG_CARD_TYPE"
	CodeDeckEmpty              = "DECK_EMPTY"
	CodeBenchFull              = "BENCH_FULL"
	CodeEnergyAlreadyAttached  = "ENERGY_ALREADY_ATTACHED"
	CodeInsufficientEnergy     = "INSUFFICIENT_ENERGY"
	CodeInvalidEnergySelection = "INVALID_ENERGY_SELECTION"
	CodeInvalidEvolution       = "INVALID_EVOLUTION"
	CodeAlreadyEvolved         = "ALREADY_EVOLVED_THIS_TURN"
	CodeEvolvedOnPlayTurn      = "EVOLVED_ON_PLAY_TURN"
	CodeRetreatBlocked         = "RETREAT_BLOCKED"
	CodeRetreatAlreadyUsed     = "RETREAT_ALREADY_USED"
	CodeAttackAlreadyUsed      = "ATTACK_ALREADY_USED"
	CodeActionAfterAttack      = "ACTION_AFTER_ATTACK"
	CodeAttackBlocked          = "ATTACK_BLOCKED"
	CodeNoDefender             = "NO_DEFENDING_POKEMON"
	CodeAbilityAlreadyUsed     = "ABILITY_ALREADY_USED"
	CodeInvalidTarget          = "INVALID_TARGET"
	CodeCoinFlipPending        = "COIN_FLIP_PENDING"
	CodeNoCoinFlipPending      = "NO_COIN_FLIP_PENDING"
	CodePrizeSelectionRequired = "PRIZE_SELECTION_REQUIRED"
	CodeNoPrizeOwed            = "NO_PRIZE_OWED"
	CodeActiveRequired         = "ACTIVE_POKEMON_REQUIRED"
	CodeActiveOccupied         = "ACTIVE_POKEMON_PRESENT"
	CodeSetupIncomplete        = "SETUP_INCOMPLETE"
	CodeSetupComplete          = "SETUP_ALREADY_COMPLETE"
	CodeAlreadyConceded        = "ALREADY_CONCEDED"
	CodeCatalogLookup          = "CATALOG_LOOKUP_FAILED"
	CodeEnergySelection        = "ENERGY_SELECTION_REQUIRED"
)

// EnergyRequirement describes the discard the client must choose.
type EnergyRequirement struct {
	// Amount is an integer count or "all".
	Amount     any    `json:"amount"`
	EnergyType string `json:"energyType,omitempty"`
	Target     string `json:"target,omitempty"`
}

// AvailableEnergy is one energy card attached to the pokemon being asked about.
type AvailableEnergy struct {
	ID    string   `json:"id"`
	Types []string `json:"types"`
}

// EnergySelectionPrompt is the machine readable body of an ENERGY_SELECTION_REQUIRED failure.
type EnergySelectionPrompt struct {
	Code            string            `json:"code"`
	Message         string            `json:"message"`
	Requirement     EnergyRequirement `json:"requirement"`
	AvailableEnergy []AvailableEnergy `json:"availableEnergy"`
}

// Failure is a rejected action. The state the action was applied to is untouched.
type Failure struct {
	Kind      Kind
	Code      string
	Message   string
	Details   map[string]string
	Selection *EnergySelectionPrompt
	Cause     error
}

func (f *Failure) Error() string {
	var b strings.Builder
	b.WriteString(string(f.Kind))
	b.WriteString(" ")
	b.WriteString(f.Code)
	if f.Message != "" {
		b.WriteString(": ")
		b.WriteString(f.Message)
	}
	if f.Cause != nil {
		b.WriteString(": ")
		b.WriteString(f.Cause.Error())
	}
	return b.String()
}

func (f *Failure) Unwrap() error {
	return f.Cause
}

// With adds a detail and returns f.
func (f *Failure) With(key, value string) *Failure {
	if f.Details == nil {
		f.Details = make(map[string]string)
	}
	f.Details[key] = value
	return f
}

// Wrap attaches a cause and returns f.
func (f *Failure) Wrap(err error) *Failure {
	f.Cause = err
	return f
}

// Recoverable reports whether the client can fix the action by supplying more input.
func (f *Failure) Recoverable() bool {
	return f.Kind == KindEnergySelectionRequired
}

func newFailure(kind Kind, code, format string, args ...any) *Failure {
	return &Failure{Kind: kind, Code: code, Message: fmt.Sprintf(format, args...)}
}

// Validation reports malformed action data.
func Validation(code, format string, args ...any) *Failure {
	return newFailure(KindValidation, code, format, args...)
}

// IllegalState reports an action not allowed right now.
func IllegalState(code, format string, args ...any) *Failure {
	return newFailure(KindIllegalState, code, format, args...)
}

// NotFound reports a missing card, slot, or match.
func NotFound(code, format string, args ...any) *Failure {
	return newFailure(KindNotFound, code, format, args...)
}

// CatalogLookup wraps a card catalog error.
func CatalogLookup(cardID string, err error) *Failure {
	return newFailure(KindCatalogLookup, CodeCatalogLookup, "could not resolve card %s", cardID).
		With("card_id", cardID).
		Wrap(err)
}

// SelectionRequired builds the recoverable energy selection prompt.
func SelectionRequired(message string, req EnergyRequirement, available []AvailableEnergy) *Failure {
	if available == nil {
		available = []AvailableEnergy{}
	}
	return &Failure{
		Kind:    KindEnergySelectionRequired,
		Code:    CodeEnergySelection,
		Message: message,
		Selection: &EnergySelectionPrompt{
			Code:            CodeEnergySelection,
			Message:         message,
			Requirement:     req,
			AvailableEnergy: available,
		},
	}
}

// AsFailure extracts a Failure from err.
func AsFailure(err error) (*Failure, bool) {
	var f *Failure
	if errors.As(err, &f) {
		return f, true
	}
	return nil, false
}
