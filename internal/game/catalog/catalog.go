package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

// ErrCardNotFound is returned when a catalog has no definition for a card id.
var ErrCardNotFound = errors.New("card not found")

// Catalog resolves card ids to static definitions. Lookups may block on I/O.
// Returned definitions are shared and must not be modified.
type Catalog interface {
	GetDefinition(ctx context.Context, cardID string) (*CardDefinition, error)
}

// MemoryCatalog serves definitions from memory.
type MemoryCatalog struct {
	mu    sync.RWMutex
	cards map[string]*CardDefinition
}

// NewMemoryCatalog creates a catalog holding defs.
func NewMemoryCatalog(defs ...*CardDefinition) *MemoryCatalog {
	c := &MemoryCatalog{cards: make(map[string]*CardDefinition, len(defs))}
	for _, d := range defs {
		c.cards[d.CardID] = d
	}
	return c
}

// Add stores or replaces a definition.
func (c *MemoryCatalog) Add(def *CardDefinition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cards[def.CardID] = def
}

// GetDefinition implements Catalog.
func (c *MemoryCatalog) GetDefinition(ctx context.Context, cardID string) (*CardDefinition, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.cards[cardID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCardNotFound, cardID)
	}
	return def, nil
}

// All returns every definition sorted by card id.
func (c *MemoryCatalog) All() []*CardDefinition {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*CardDefinition, 0, len(c.cards))
	for _, d := range c.cards {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CardID < out[j].CardID })
	return out
}

// Len returns the number of definitions.
func (c *MemoryCatalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.cards)
}

type yamlFile struct {
	Cards []*CardDefinition `yaml:"cards"`
}

// ParseYAML decodes and validates a card dataset of the form `cards: [...]`.
func ParseYAML(data []byte) ([]*CardDefinition, error) {
	var file yamlFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to decode card yaml: %w", err)
	}
	seen := make(map[string]bool, len(file.Cards))
	for _, d := range file.Cards {
		if err := d.Validate(); err != nil {
			return nil, err
		}
		if seen[d.CardID] {
			return nil, fmt.Errorf("duplicate card id %s", d.CardID)
		}
		seen[d.CardID] = true
	}
	return file.Cards, nil
}

// LoadYAML reads a card dataset file into a MemoryCatalog.
func LoadYAML(path string) (*MemoryCatalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read card file %s: %w", path, err)
	}
	defs, err := ParseYAML(data)
	if err != nil {
		return nil, fmt.Errorf("card file %s: %w", path, err)
	}
	return NewMemoryCatalog(defs...), nil
}
