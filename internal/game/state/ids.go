package state

import (
	"fmt"

	"github.com/google/uuid"
)

// idNamespace scopes every deterministic id minted by the engine.
var idNamespace = uuid.MustParse("6f1f6b5e-2f43-4c59-9a53-8c1f0d3b7a21")

// ActionID returns the id of the action recorded at history index seq.
// Ids are derived from the match so replays reproduce them exactly.
func ActionID(matchID string, seq int) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("action|%s|%d", matchID, seq))).String()
}

// InstanceID returns the id of the n-th pokemon put into play by the action at history index seq.
func InstanceID(matchID string, seq, n int) string {
	return uuid.NewSHA1(idNamespace, []byte(fmt.Sprintf("instance|%s|%d|%d", matchID, seq, n))).String()
}
