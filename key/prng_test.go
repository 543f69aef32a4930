package key

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPrngDeterministic(t *testing.T) {
	p1 := NewPrng("author seed A")
	p2 := NewPrng("author seed A")

	require.Equal(t, p1.SeedKey(), p2.SeedKey())
	require.Equal(t, p1.Sub("ephemeral-1", 32), p2.Sub("ephemeral-1", 32))
}

func TestPrngDistinctLabels(t *testing.T) {
	p := NewPrng("author seed A")
	require.NotEqual(t, p.Sub("a", 16), p.Sub("b", 16))
}

func TestPrngDistinctSeeds(t *testing.T) {
	require.NotEqual(t, NewPrng("A").SeedKey(), NewPrng("B").SeedKey())
}
