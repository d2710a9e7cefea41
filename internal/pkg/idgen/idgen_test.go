package idgen_test

import (
	"strings"
	"testing"

	"github.com/dom/lotus-draft/internal/pkg/idgen"
	"github.com/stretchr/testify/assert"
)

func TestCardGenerator(t *testing.T) {
	g := idgen.NewCardGenerator()
	first := g.Generate()
	second := g.Generate()

	assert.True(t, strings.HasPrefix(first, "1-"))
	assert.True(t, strings.HasPrefix(second, "2-"))
	assert.Len(t, first, len("1-")+8)
	assert.NotEqual(t, first, second)
}

func TestSequentialGenerator(t *testing.T) {
	g := idgen.NewSequential("card")
	assert.Equal(t, "card_1", g.Generate())
	assert.Equal(t, "card_2", g.Generate())
	assert.Equal(t, "1", idgen.NewSequential("").Generate())
}
