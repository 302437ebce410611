package rules

import (
	"strconv"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// LegalityResult is the verdict of a pre-resolution check.
type LegalityResult struct {
	Legal   bool
	Kind    Kind
	Code    string
	Reason  string
	Details map[string]string
}

// Failure converts an illegal result into a Failure, or nil when legal.
func (r LegalityResult) Failure() *Failure {
	if r.Legal {
		return nil
	}
	kind := r.Kind
	if kind == "" {
		kind = KindIllegalState
	}
	f := &Failure{Kind: kind, Code: r.Code, Message: r.Reason}
	for k, v := range r.Details {
		f.With(k, v)
	}
	return f
}

func legal() LegalityResult {
	return LegalityResult{Legal: true}
}

func illegal(code, reason string, details map[string]string) LegalityResult {
	return LegalityResult{Legal: false, Kind: KindIllegalState, Code: code, Reason: reason, Details: details}
}

// MatchResult is the terminal outcome recorded in the action that ended the match.
type MatchResult struct {
	WinnerID string `json:"winnerId"`
	LoserID  string `json:"loserId"`
	Reason   string `json:"reason"`
}

// Win reasons.
const (
	ReasonPrizes    = "ALL_PRIZES_TAKEN"
	ReasonNoPokemon = "NO_POKEMON_IN_PLAY"
	ReasonDeckOut   = "DECK_OUT"
	ReasonConcede   = "CONCEDE"
)

// Payload renders the result for an ActionSummary payload.
func (r MatchResult) Payload() map[string]any {
	return map[string]any{"winnerId": r.WinnerID, "loserId": r.LoserID, "reason": r.Reason}
}

// ResultOf returns the match result if the last recorded action ended the match.
func ResultOf(g *state.GameState) (MatchResult, bool) {
	if g.LastAction == nil {
		return MatchResult{}, false
	}
	raw, ok := g.LastAction.Payload[state.PayloadMatchResult].(map[string]any)
	if !ok {
		return MatchResult{}, false
	}
	res := MatchResult{}
	res.WinnerID, _ = raw["winnerId"].(string)
	res.LoserID, _ = raw["loserId"].(string)
	res.Reason, _ = raw["reason"].(string)
	return res, true
}

// PrizesOwed returns how many prizes playerID still has to take this turn: the prizes
// earned by their knockouts minus the SELECT_PRIZE actions already taken.
func PrizesOwed(g *state.GameState, playerID string) int {
	owed := 0
	for _, a := range g.TurnActions() {
		if a.PlayerID != playerID {
			continue
		}
		if n, ok := a.Int(state.PayloadPrizesOwed); ok {
			owed += n
		}
		if a.ActionType == state.ActionSelectPrize {
			owed--
		}
	}
	if owed < 0 {
		return 0
	}
	if n := len(g.Player(playerID).Prizes); owed > n {
		owed = n
	}
	return owed
}

// UsedThisTurn reports whether playerID recorded action earlier this turn.
func UsedThisTurn(g *state.GameState, playerID string, action state.ActionType) bool {
	for _, a := range g.TurnActions() {
		if a.PlayerID == playerID && a.ActionType == action {
			return true
		}
	}
	return false
}

// Checker runs the action-independent checks in order: participation, match end,
// turn ownership and phase, pending coin flips, knockout follow-ups and turn ordering.
type Checker struct{}

// NewChecker creates a checker.
func NewChecker() *Checker {
	return &Checker{}
}

// Check validates that actorID may submit action against g.
func (c *Checker) Check(g *state.GameState, action state.ActionType, actorID string) LegalityResult {
	if !g.IsParticipant(actorID) {
		return LegalityResult{Kind: KindValidation, Code: CodeNotParticipant,
			Reason: "player is not part of this match", Details: map[string]string{"player_id": actorID}}
	}
	if _, over := ResultOf(g); over {
		return illegal(CodeMatchOver, "the match has ended", nil)
	}
	if action == state.ActionConcede {
		return legal()
	}

	if g.Phase == state.PhaseSetup {
		if !PhaseAllows(g.Phase, action) {
			return illegal(CodeWrongPhase, "action not allowed during setup", map[string]string{"phase": string(g.Phase)})
		}
		return legal()
	}

	player := g.Player(actorID)
	if g.CurrentPlayerID != actorID {
		if !AllowedOutOfTurn(action) {
			return illegal(CodeNotYourTurn, "it is not this player's turn", map[string]string{"current_player_id": g.CurrentPlayerID})
		}
		if action == state.ActionSetActivePokemon && !player.NeedsActive() {
			return illegal(CodeActiveOccupied, "active pokemon already present", nil)
		}
		return legal()
	}

	if flip := g.CoinFlip; flip != nil && flip.Status == state.CoinFlipReady {
		if action != state.ActionGenerateCoinFlip {
			return illegal(CodeCoinFlipPending, "a coin flip must be generated first",
				map[string]string{"context": string(flip.Context)})
		}
		return legal()
	}
	if action == state.ActionGenerateCoinFlip {
		return illegal(CodeNoCoinFlipPending, "no coin flip is pending", nil)
	}

	if !PhaseAllows(g.Phase, action) {
		return illegal(CodeWrongPhase, "action not allowed in this phase",
			map[string]string{"phase": string(g.Phase), "action_type": string(action)})
	}

	if player.NeedsActive() && action != state.ActionSetActivePokemon {
		return illegal(CodeActiveRequired, "select a new active pokemon first", nil)
	}

	return c.checkOrdering(g, action, actorID)
}

// checkOrdering enforces the turn-local ordering rules: one attack and one retreat per
// turn, no retreat once the attack was declared, and prizes taken before the turn ends.
func (c *Checker) checkOrdering(g *state.GameState, action state.ActionType, actorID string) LegalityResult {
	attacked := UsedThisTurn(g, actorID, state.ActionAttack)
	switch action {
	case state.ActionRetreat:
		if attacked {
			return illegal(CodeActionAfterAttack, "cannot retreat after attacking", nil)
		}
		if UsedThisTurn(g, actorID, state.ActionRetreat) {
			return illegal(CodeRetreatAlreadyUsed, "already retreated this turn", nil)
		}
	case state.ActionAttack:
		if attacked {
			return illegal(CodeAttackAlreadyUsed, "already attacked this turn", nil)
		}
	case state.ActionEndTurn:
		if owed := PrizesOwed(g, actorID); owed > 0 {
			return illegal(CodePrizeSelectionRequired, "select prize cards before ending the turn",
				map[string]string{"prizes_owed": strconv.Itoa(owed)})
		}
	case state.ActionSelectPrize:
		if PrizesOwed(g, actorID) == 0 {
			return illegal(CodeNoPrizeOwed, "no prize card is owed", nil)
		}
	case state.ActionSetActivePokemon:
		if !g.Player(actorID).NeedsActive() {
			return illegal(CodeActiveOccupied, "active pokemon already present", nil)
		}
	default:
		if attacked {
			return illegal(CodeActionAfterAttack, "only END_TURN and prize selection follow an attack", nil)
		}
	}
	return legal()
}
