// Package match holds the match aggregate: the two players, the dealt starting
// board, every accepted action and the current state. Service serializes actions
// per match and persists the aggregate after each one.
package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/engine"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/rules"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

var (
	// ErrAlreadyStarted is returned by Start on a match that was already dealt.
	ErrAlreadyStarted = errors.New("match already started")
	// ErrNotStarted is returned when an action reaches a match that was never dealt.
	ErrNotStarted = errors.New("match not started")
)

// Lifecycle is the coarse state of a match.
type Lifecycle int

const (
	LifecycleWaiting Lifecycle = iota
	LifecycleSetup
	LifecyclePlaying
	LifecycleEnded
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleWaiting:
		return "WAITING"
	case LifecycleSetup:
		return "SETUP"
	case LifecyclePlaying:
		return "PLAYING"
	case LifecycleEnded:
		return "ENDED"
	default:
		return "UNKNOWN"
	}
}

// RecordedAction is an accepted action as it was submitted.
type RecordedAction struct {
	Seq       int           `json:"seq"`
	Action    engine.Action `json:"action"`
	Timestamp time.Time     `json:"timestamp"`
	// Checksum is the checksum of the state the action produced.
	Checksum string `json:"checksum"`
}

// Match is the persisted aggregate.
type Match struct {
	ID        string    `json:"id"`
	Player1ID string    `json:"player1Id"`
	Player2ID string    `json:"player2Id"`
	Lifecycle Lifecycle `json:"lifecycle"`
	// Mulligans counts the opening hands each player redrew for lack of a basic pokemon.
	Mulligans map[string]int `json:"mulligans,omitempty"`
	// Initial is the dealt board every replay starts from.
	Initial *state.GameState   `json:"initialState,omitempty"`
	State   *state.GameState   `json:"state,omitempty"`
	Actions []RecordedAction   `json:"actions"`
	Result  *rules.MatchResult `json:"result,omitempty"`
	// Version increases by one on every save.
	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// New creates a match waiting to be dealt.
func New(id, player1ID, player2ID string, now time.Time) (*Match, error) {
	switch {
	case id == "":
		return nil, fmt.Errorf("match id is required")
	case player1ID == "" || player2ID == "":
		return nil, fmt.Errorf("both player ids are required")
	case player1ID == player2ID:
		return nil, fmt.Errorf("players must differ: %s", player1ID)
	}
	return &Match{
		ID:        id,
		Player1ID: player1ID,
		Player2ID: player2ID,
		Lifecycle: LifecycleWaiting,
		Actions:   []RecordedAction{},
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}, nil
}

// HasPlayer reports whether playerID takes part in the match.
func (m *Match) HasPlayer(playerID string) bool {
	return playerID != "" && (playerID == m.Player1ID || playerID == m.Player2ID)
}

// Record appends an accepted action and moves the match to next. The lifecycle
// follows the state: leaving the setup phase starts play and a match result ends it.
func (m *Match) Record(action engine.Action, next *state.GameState, now time.Time) error {
	if m.State == nil {
		return ErrNotStarted
	}
	if len(next.ActionHistory) != len(m.State.ActionHistory)+1 {
		return fmt.Errorf("state history has %d entries, want %d", len(next.ActionHistory), len(m.State.ActionHistory)+1)
	}
	sum, err := state.Checksum(next)
	if err != nil {
		return fmt.Errorf("failed to checksum state: %w", err)
	}
	m.Actions = append(m.Actions, RecordedAction{
		Seq:       len(m.Actions),
		Action:    action,
		Timestamp: next.LastAction.Timestamp,
		Checksum:  sum,
	})
	m.State = next
	m.UpdatedAt = now.UTC()

	if result, over := rules.ResultOf(next); over {
		m.Lifecycle = LifecycleEnded
		m.Result = &result
		return nil
	}
	if m.Lifecycle == LifecycleSetup && next.Phase != state.PhaseSetup {
		m.Lifecycle = LifecyclePlaying
	}
	return nil
}

// Checksum returns the checksum of the current state, or "" before the deal.
func (m *Match) Checksum() (string, error) {
	if m.State == nil {
		return "", nil
	}
	return state.Checksum(m.State)
}
