package sizeclass

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func testGeometry() Geometry {
	return Geometry{MinBlockSize: 64, LayerSpan: 1 << 40, LayerCount: 35}
}

func TestForSizeMinimum(t *testing.T) {
	g := testGeometry()
	layer, blockSize, ok := g.ForSize(1)
	require.True(t, ok)
	require.Equal(t, 0, layer)
	require.Equal(t, uintptr(64), blockSize)
}

func TestForSizeExactPowerOfTwo(t *testing.T) {
	g := testGeometry()
	layer, blockSize, ok := g.ForSize(128)
	require.True(t, ok)
	require.Equal(t, 1, layer)
	require.Equal(t, uintptr(128), blockSize)
}

func TestForSizeRoundsUp(t *testing.T) {
	g := testGeometry()
	layer, blockSize, ok := g.ForSize(129)
	require.True(t, ok)
	require.Equal(t, 2, layer)
	require.Equal(t, uintptr(256), blockSize)
}

func TestForSizeMaxBlock(t *testing.T) {
	g := testGeometry()
	layer, blockSize, ok := g.ForSize(g.LayerSpan)
	require.True(t, ok)
	require.Equal(t, g.LayerCount-1, layer)
	require.Equal(t, g.LayerSpan, blockSize)
}

func TestForSizeTooLarge(t *testing.T) {
	g := testGeometry()
	_, _, ok := g.ForSize(g.LayerSpan + 1)
	require.False(t, ok)
}

func TestClassRoundTrip(t *testing.T) {
	g := testGeometry()
	const base = 0x7f0000000000
	for _, n := range []uintptr{1, 63, 64, 65, 1 << 10, 1 << 20, 1<<20 + 7, 1 << 39, g.LayerSpan} {
		layer, _, ok := g.ForSize(n)
		require.True(t, ok)
		p := base + uintptr(layer)*g.LayerSpan + (g.Capacity(layer)-1)*g.BlockSize(layer)
		require.Equal(t, layer, g.ForAddr(base, p), "size %d", n)
	}
}

func TestCapacityTimesBlockSizeEqualsSpan(t *testing.T) {
	g := testGeometry()
	for i := 0; i < g.LayerCount; i++ {
		require.Equal(t, g.LayerSpan, g.Capacity(i)*g.BlockSize(i))
	}
}
