package gen

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClamp(t *testing.T) {
	require.Equal(t, 5, Clamp(5, 0, 10))
	require.Equal(t, 0, Clamp(-3, 0, 10))
	require.Equal(t, 10, Clamp(17, 0, 10))
	require.Equal(t, float32(1.5), Clamp(float32(1.5), float32(0), float32(2)))
}

func TestMode(t *testing.T) {
	mode, count := Mode([]int{3, 1, 3, 2, 3, 1})
	require.Equal(t, 3, mode)
	require.Equal(t, 3, count)

	mode, count = Mode([]int{})
	require.Equal(t, 0, mode)
	require.Equal(t, 0, count)

	smode, count := Mode([]string{"w", "c", "w"})
	require.Equal(t, "w", smode)
	require.Equal(t, 2, count)
}

func TestDrain(t *testing.T) {
	ch := make(chan int, 8)
	ch <- 1
	ch <- 2
	ch <- 3
	require.Equal(t, []int{1, 2, 3}, Drain(ch))
	require.Equal(t, []int{}, Drain(ch))
}
