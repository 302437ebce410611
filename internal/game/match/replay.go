package match

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/engine"
	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/state"
)

// ReplayVersion is the replay file format version.
const ReplayVersion = 1

// ErrReplayDiverged is returned when re-applying the recorded actions does not
// reproduce the recorded states.
var ErrReplayDiverged = errors.New("replay diverged")

// Replay holds every state of a match in order: the dealt board followed by the
// state after each recorded action.
type Replay struct {
	MatchID      string
	States       []*state.GameState
	CurrentIndex int
	mu           sync.RWMutex
}

// BuildReplay re-applies the recorded actions of m from its dealt board and checks
// every intermediate checksum and the final one against the record.
func BuildReplay(ctx context.Context, ex *engine.Executor, m *Match) (*Replay, error) {
	if m.Initial == nil {
		return nil, ErrNotStarted
	}
	r := &Replay{MatchID: m.ID, States: []*state.GameState{m.Initial}}
	g := m.Initial
	for _, rec := range m.Actions {
		next, _, err := ex.Apply(ctx, g, rec.Action, rec.Timestamp)
		if err != nil {
			return nil, fmt.Errorf("%w: action %d (%s) rejected: %v", ErrReplayDiverged, rec.Seq, rec.Action.Type, err)
		}
		sum, err := state.Checksum(next)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum state %d: %w", rec.Seq, err)
		}
		if rec.Checksum != "" && sum != rec.Checksum {
			return nil, fmt.Errorf("%w: action %d checksum %s, recorded %s", ErrReplayDiverged, rec.Seq, sum, rec.Checksum)
		}
		r.States = append(r.States, next)
		g = next
	}

	if m.State != nil {
		want, err := state.Checksum(m.State)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum stored state: %w", err)
		}
		got, err := state.Checksum(g)
		if err != nil {
			return nil, fmt.Errorf("failed to checksum replayed state: %w", err)
		}
		if got != want {
			return nil, fmt.Errorf("%w: final checksum %s, stored %s", ErrReplayDiverged, got, want)
		}
	}
	return r, nil
}

// ReplayMove moves a replay cursor.
type ReplayMove string

const (
	ReplayStart    ReplayMove = "START"
	ReplayNext     ReplayMove = "NEXT"
	ReplayPrevious ReplayMove = "PREVIOUS"
	ReplaySkip     ReplayMove = "SKIP"
)

var (
	// ErrReplayBounds is returned when NEXT or PREVIOUS would leave the recorded range.
	ErrReplayBounds = errors.New("replay cursor out of range")
	// ErrUnknownReplayMove is returned for a move that is not a ReplayMove.
	ErrUnknownReplayMove = errors.New("unknown replay move")
)

// Start resets the replay to the dealt board and returns it.
func (r *Replay) Start() *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.CurrentIndex = 0
	return r.States[0]
}

// Next moves forward one state and returns it, or nil at the last state.
func (r *Replay) Next() *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex+1 < len(r.States) {
		r.CurrentIndex++
		return r.States[r.CurrentIndex]
	}
	return nil
}

// Previous moves back one state and returns it, or nil at the dealt board.
func (r *Replay) Previous() *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.CurrentIndex > 0 {
		r.CurrentIndex--
		return r.States[r.CurrentIndex]
	}
	return nil
}

// Skip moves by count states, clamped to the recorded range.
func (r *Replay) Skip(count int) *state.GameState {
	r.mu.Lock()
	defer r.mu.Unlock()

	idx := r.CurrentIndex + count
	if idx >= len(r.States) {
		idx = len(r.States) - 1
	}
	if idx < 0 {
		idx = 0
	}
	r.CurrentIndex = idx
	return r.States[idx]
}

// Position returns the cursor index.
func (r *Replay) Position() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.CurrentIndex
}

// Step applies move from the current position. count is only read by SKIP.
func (r *Replay) Step(move ReplayMove, count int) (*state.GameState, error) {
	var g *state.GameState
	switch move {
	case ReplayStart:
		g = r.Start()
	case ReplayNext:
		g = r.Next()
	case ReplayPrevious:
		g = r.Previous()
	case ReplaySkip:
		g = r.Skip(count)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownReplayMove, move)
	}
	if g == nil {
		return nil, fmt.Errorf("%w: %s from %d of %d", ErrReplayBounds, move, r.Position(), r.Size())
	}
	return g, nil
}

// Size returns the number of states, the dealt board included.
func (r *Replay) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.States)
}

// StateAt returns the state after the index-th action; 0 is the dealt board.
func (r *Replay) StateAt(index int) *state.GameState {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if index >= 0 && index < len(r.States) {
		return r.States[index]
	}
	return nil
}

// ReplayFrame is one state of a replay with the action that produced it.
type ReplayFrame struct {
	MatchID string           `json:"matchId"`
	Index   int              `json:"index"`
	Size    int              `json:"size"`
	State   *state.GameState `json:"state"`
	// Action is nil for the dealt board.
	Action   *RecordedAction `json:"action,omitempty"`
	Checksum string          `json:"checksum"`
	// Archived is set when the frame was rebuilt from the replay archive.
	Archived bool `json:"archived"`
}

// replayFile is the on-disk form: the match record, enough to rebuild every state.
type replayFile struct {
	Version int       `json:"version"`
	SavedAt time.Time `json:"savedAt"`
	Match   *Match    `json:"match"`
}

func replayPath(dir, matchID string) string {
	return filepath.Join(dir, fmt.Sprintf("%s.replay.json.gz", filepath.Base(matchID)))
}

// SaveReplayFile writes m to a gzipped JSON file in dir.
func SaveReplayFile(dir string, m *Match, now time.Time) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	file, err := os.Create(replayPath(dir, m.ID))
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	zw := gzip.NewWriter(file)
	if err := json.NewEncoder(zw).Encode(replayFile{Version: ReplayVersion, SavedAt: now.UTC(), Match: m}); err != nil {
		zw.Close()
		return fmt.Errorf("failed to encode replay: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush replay: %w", err)
	}
	return nil
}

// LoadReplayFile reads a match written by SaveReplayFile.
func LoadReplayFile(dir, matchID string) (*Match, error) {
	file, err := os.Open(replayPath(dir, matchID))
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	zr, err := gzip.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer zr.Close()

	var rf replayFile
	if err := json.NewDecoder(zr).Decode(&rf); err != nil {
		return nil, fmt.Errorf("failed to decode replay: %w", err)
	}
	if rf.Version != ReplayVersion {
		return nil, fmt.Errorf("unsupported replay version: %d", rf.Version)
	}
	if rf.Match == nil {
		return nil, fmt.Errorf("replay file holds no match")
	}
	return rf.Match, nil
}

// ReplayArchive writes finished matches to disk.
type ReplayArchive struct {
	dir    string
	logger *zap.Logger
}

// NewReplayArchive creates an archive rooted at dir. An empty dir disables it.
func NewReplayArchive(dir string, logger *zap.Logger) *ReplayArchive {
	return &ReplayArchive{dir: dir, logger: logger}
}

// Enabled reports whether the archive has a directory.
func (a *ReplayArchive) Enabled() bool {
	return a != nil && a.dir != ""
}

// Save writes m if the archive is enabled.
func (a *ReplayArchive) Save(m *Match, now time.Time) error {
	if !a.Enabled() {
		return nil
	}
	if err := SaveReplayFile(a.dir, m, now); err != nil {
		return fmt.Errorf("failed to save replay: %w", err)
	}
	if a.logger != nil {
		a.logger.Info("saved replay to disk",
			zap.String("match_id", m.ID),
			zap.Int("action_count", len(m.Actions)),
			zap.String("directory", a.dir),
		)
	}
	return nil
}

// Load reads the replay of matchID.
func (a *ReplayArchive) Load(matchID string) (*Match, error) {
	if !a.Enabled() {
		return nil, fmt.Errorf("replay archive disabled")
	}
	m, err := LoadReplayFile(a.dir, matchID)
	if err != nil {
		return nil, err
	}
	if a.logger != nil {
		a.logger.Info("loaded replay from disk",
			zap.String("match_id", matchID),
			zap.Int("action_count", len(m.Actions)),
		)
	}
	return m, nil
}
