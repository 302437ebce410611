package engine

import (
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// CheckWinConditions reports whether g is won: a player who has taken every prize
// card, or whose opponent has no pokemon left in play, wins. When both players
// qualify at once the acting player wins. Setup is never decided.
func CheckWinConditions(g *state.GameState, actorID string) (rules.MatchResult, bool) {
	if g.Phase == state.PhaseSetup {
		return rules.MatchResult{}, false
	}
	var wins []rules.MatchResult
	for _, p := range g.Players() {
		opp := g.Opponent(p.PlayerID)
		switch {
		case len(p.Prizes) == 0:
			wins = append(wins, rules.MatchResult{WinnerID: p.PlayerID, LoserID: opp.PlayerID, Reason: rules.ReasonPrizes})
		case !opp.HasPokemonInPlay():
			wins = append(wins, rules.MatchResult{WinnerID: p.PlayerID, LoserID: opp.PlayerID, Reason: rules.ReasonNoPokemon})
		}
	}
	switch len(wins) {
	case 0:
		return rules.MatchResult{}, false
	case 1:
		return wins[0], true
	}
	for _, w := range wins {
		if w.WinnerID == actorID {
			return w, true
		}
	}
	return wins[0], true
}
