package perfstats

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTimeAccumulator(t *testing.T) {
	a := TimeAccumulator{}
	require.Equal(t, time.Duration(0), a.Average())
	require.Equal(t, float64(0), a.FPS())

	a.AddSample(10 * time.Millisecond)
	a.AddSample(30 * time.Millisecond)
	require.Equal(t, 20*time.Millisecond, a.Average())
	require.InDelta(t, 50.0, a.FPS(), 1e-9)

	a.Reset()
	require.Equal(t, int64(0), a.Samples)
	require.Equal(t, time.Duration(0), a.Total)
	require.Equal(t, float64(0), a.FPS())
}

func TestFPSWindow(t *testing.T) {
	a := TimeAccumulator{}
	// A slow start should age out of the FPS readout but not the average.
	a.AddSample(time.Second)
	for i := 0; i < fpsWindow; i++ {
		a.AddSample(10 * time.Millisecond)
	}
	require.InDelta(t, 100.0, a.FPS(), 1e-9)
	require.Greater(t, a.Average(), 10*time.Millisecond)
}
