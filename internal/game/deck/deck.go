// Package deck validates and repairs deck lists and shuffles them deterministically.
package deck

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"golang.org/x/crypto/blake2b"

	"github.com/3jesters/OpenTCG-Backend-sub005/internal/game/catalog"
)

// Printed construction rules.
const (
	DefaultSize      = 60
	DefaultMaxCopies = 4
)

// Problem codes reported by Validate.
const (
	ProblemWrongSize     = "WRONG_SIZE"
	ProblemTooManyCopies = "TOO_MANY_COPIES"
	ProblemNoBasic       = "NO_BASIC_POKEMON"
	ProblemUnknownCard   = "UNKNOWN_CARD"
)

// Options bound deck construction.
type Options struct {
	Size      int
	MaxCopies int
	// FallbackBasic is added by FixUp when the list holds no basic pokemon at all.
	FallbackBasic string
	// FallbackEnergy fills slots freed by FixUp when the list holds no basic energy.
	FallbackEnergy string
}

// DefaultOptions returns the printed construction rules.
func DefaultOptions() Options {
	return Options{Size: DefaultSize, MaxCopies: DefaultMaxCopies}
}

func (o Options) withDefaults() Options {
	if o.Size <= 0 {
		o.Size = DefaultSize
	}
	if o.MaxCopies <= 0 {
		o.MaxCopies = DefaultMaxCopies
	}
	return o
}

// Problem is one construction rule a deck breaks.
type Problem struct {
	Code    string `json:"code"`
	CardID  string `json:"cardId,omitempty"`
	Message string `json:"message"`
}

// Report lists every problem found in a deck.
type Report struct {
	Problems []Problem `json:"problems"`
}

// Valid reports whether the deck broke no rule.
func (r *Report) Valid() bool {
	return len(r.Problems) == 0
}

func (r *Report) add(code, cardID, format string, args ...any) {
	r.Problems = append(r.Problems, Problem{Code: code, CardID: cardID, Message: fmt.Sprintf(format, args...)})
}

// Validate checks size, copy limits and the basic pokemon requirement. Catalog
// failures other than an unknown card are returned as errors.
func Validate(ctx context.Context, cat catalog.Catalog, cards []string, opts Options) (*Report, error) {
	opts = opts.withDefaults()
	report := &Report{}

	if len(cards) != opts.Size {
		report.add(ProblemWrongSize, "", "deck has %d cards, expected %d", len(cards), opts.Size)
	}

	defs, err := resolve(ctx, cat, cards)
	if err != nil {
		return nil, err
	}

	hasBasic := false
	n := counts(cards)
	for _, id := range sortedKeys(n) {
		def := defs[id]
		if def == nil {
			report.add(ProblemUnknownCard, id, "card %s is not in the catalog", id)
			continue
		}
		if def.IsBasicPokemon() {
			hasBasic = true
		}
		if !def.IsBasicEnergy() && n[id] > opts.MaxCopies {
			report.add(ProblemTooManyCopies, id, "%d copies of %s, at most %d allowed", n[id], id, opts.MaxCopies)
		}
	}
	if !hasBasic {
		report.add(ProblemNoBasic, "", "deck has no basic pokemon")
	}
	return report, nil
}

// FixUp returns a repaired copy of cards that passes Validate: excess copies and unknown
// cards are replaced by basic energy, a basic pokemon is guaranteed, and the list is
// padded or trimmed to exactly opts.Size cards.
func FixUp(ctx context.Context, cat catalog.Catalog, cards []string, opts Options) ([]string, error) {
	opts = opts.withDefaults()
	defs, err := resolve(ctx, cat, cards)
	if err != nil {
		return nil, err
	}

	filler := opts.FallbackEnergy
	if id := mostCommonBasicEnergy(cards, defs); id != "" {
		filler = id
	}
	if filler == "" {
		return nil, errors.New("deck has no basic energy and no fallback energy is configured")
	}

	out := make([]string, 0, opts.Size)
	seen := map[string]int{}
	hasBasic := false
	for _, id := range cards {
		def := defs[id]
		if def == nil {
			out = append(out, filler)
			continue
		}
		if !def.IsBasicEnergy() && seen[id] >= opts.MaxCopies {
			out = append(out, filler)
			continue
		}
		seen[id]++
		if def.IsBasicPokemon() {
			hasBasic = true
		}
		out = append(out, id)
	}

	if !hasBasic {
		if opts.FallbackBasic == "" {
			return nil, errors.New("deck has no basic pokemon and no fallback basic is configured")
		}
		// the basic takes the place of the last energy so the size is unchanged
		replaced := false
		for i := len(out) - 1; i >= 0; i-- {
			if out[i] == filler {
				out[i] = opts.FallbackBasic
				replaced = true
				break
			}
		}
		if !replaced {
			out = append([]string{opts.FallbackBasic}, out...)
		}
	}

	for len(out) < opts.Size {
		out = append(out, filler)
	}
	if len(out) > opts.Size {
		out = trim(out, defs, filler, opts.Size)
	}
	return out, nil
}

// trim drops cards from the end, energy first, keeping at least one basic pokemon.
func trim(cards []string, defs map[string]*catalog.CardDefinition, filler string, size int) []string {
	out := append([]string{}, cards...)
	for i := len(out) - 1; i >= 0 && len(out) > size; i-- {
		if out[i] == filler {
			out = append(out[:i], out[i+1:]...)
		}
	}
	for i := len(out) - 1; i >= 0 && len(out) > size; i-- {
		if def := defs[out[i]]; def != nil && def.IsBasicPokemon() && basicCount(out, defs) == 1 {
			continue
		}
		out = append(out[:i], out[i+1:]...)
	}
	return out
}

func basicCount(cards []string, defs map[string]*catalog.CardDefinition) int {
	n := 0
	for _, id := range cards {
		if def := defs[id]; def != nil && def.IsBasicPokemon() {
			n++
		}
	}
	return n
}

// Shuffle returns a permutation of cards fully determined by key.
func Shuffle(cards []string, key string) []string {
	out := append([]string{}, cards...)
	rng := rand.New(rand.NewSource(SeedFor(key)))
	rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	return out
}

// SeedFor derives a stable 63-bit seed from an arbitrary key.
func SeedFor(key string) int64 {
	sum := blake2b.Sum256([]byte(key))
	return int64(binary.BigEndian.Uint64(sum[:8]) >> 1)
}

// resolve looks every distinct card up once. Unknown cards map to nil.
func resolve(ctx context.Context, cat catalog.Catalog, cards []string) (map[string]*catalog.CardDefinition, error) {
	defs := make(map[string]*catalog.CardDefinition)
	for _, id := range cards {
		if _, done := defs[id]; done {
			continue
		}
		def, err := cat.GetDefinition(ctx, id)
		if errors.Is(err, catalog.ErrCardNotFound) {
			defs[id] = nil
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to resolve card %s: %w", id, err)
		}
		defs[id] = def
	}
	return defs, nil
}

func mostCommonBasicEnergy(cards []string, defs map[string]*catalog.CardDefinition) string {
	c := counts(cards)
	best, bestN := "", 0
	for _, id := range sortedKeys(c) {
		if def := defs[id]; def != nil && def.IsBasicEnergy() && c[id] > bestN {
			best, bestN = id, c[id]
		}
	}
	return best
}

func counts(cards []string) map[string]int {
	out := make(map[string]int)
	for _, id := range cards {
		out[id]++
	}
	return out
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
