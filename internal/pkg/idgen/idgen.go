// Package idgen provides ID generation utilities
package idgen

import (
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
)

// Generator generates unique identifiers
type Generator interface {
	Generate() string
}

// CardGenerator produces "<sequence>-<random>" suffixes for card ids.
// The sequence keeps ids of duplicate names within one pack distinct and the
// random part keeps them distinct across packs.
type CardGenerator struct {
	counter uint64
}

func NewCardGenerator() *CardGenerator {
	return &CardGenerator{}
}

func (g *CardGenerator) Generate() string {
	n := atomic.AddUint64(&g.counter, 1)
	return fmt.Sprintf("%d-%s", n, uuid.NewString()[:8])
}

// SequentialGenerator generates sequential IDs for testing
type SequentialGenerator struct {
	prefix  string
	counter uint64
}

// NewSequential creates a new sequential generator
func NewSequential(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix}
}

// Generate creates a new sequential ID
func (g *SequentialGenerator) Generate() string {
	n := atomic.AddUint64(&g.counter, 1)
	if g.prefix != "" {
		return fmt.Sprintf("%s_%d", g.prefix, n)
	}
	return fmt.Sprintf("%d", n)
}
