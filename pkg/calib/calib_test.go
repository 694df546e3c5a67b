package calib

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/stretchr/testify/require"
)

func TestPatternPoints(t *testing.T) {
	pts := patternPoints()
	require.Len(t, pts, PatternColumns*PatternRows)
	// x runs fastest, in square-size steps
	require.Equal(t, float32(0), pts[0].X)
	require.Equal(t, float32(0), pts[0].Y)
	require.Equal(t, float32(SquareSize), pts[1].X)
	require.Equal(t, float32(0), pts[1].Y)
	require.Equal(t, float32(0), pts[PatternColumns].X)
	require.Equal(t, float32(SquareSize), pts[PatternColumns].Y)
	last := pts[len(pts)-1]
	require.Equal(t, float32((PatternColumns-1)*SquareSize), last.X)
	require.Equal(t, float32((PatternRows-1)*SquareSize), last.Y)
	for _, p := range pts {
		require.Equal(t, float32(0), p.Z)
	}
}

func TestCalibrationSaveLoad(t *testing.T) {
	calib := &Calibration{
		CameraMatrix: [3][3]float64{{600, 0, 320}, {0, 600, 240}, {0, 0, 1}},
		DistCoeffs:   []float64{0.1, -0.2, 0, 0, 0.05},
		Width:        640,
		Height:       480,
		RMS:          0.42,
	}
	fn := filepath.Join(t.TempDir(), DefaultFilename)
	require.NoError(t, calib.Save(fn))
	loaded, err := Load(fn)
	require.NoError(t, err)
	require.Equal(t, calib, loaded)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
}

func TestUndistortPointAndAngles(t *testing.T) {
	calib := &Calibration{
		CameraMatrix: [3][3]float64{{600, 0, 320}, {0, 600, 240}, {0, 0, 1}},
		Width:        640,
		Height:       480,
	}

	center := calib.UndistortPoint(boxes.Point{X: 320, Y: 240})
	require.Equal(t, float32(0), center.X)
	require.Equal(t, float32(0), center.Y)

	right := calib.UndistortPoint(boxes.Point{X: 920, Y: 240})
	require.InDelta(t, 1.0, right.X, 1e-6)
	require.InDelta(t, 0.0, right.Y, 1e-6)

	// A point one focal length to the right of center is 45 degrees off
	// axis. Straight ahead is zero.
	xdeg, ydeg := calib.AngleTo(boxes.Point{X: 920, Y: 240})
	require.InDelta(t, 45, xdeg, 1e-4)
	require.InDelta(t, 0, ydeg, 1e-4)

	xdeg, ydeg = calib.AngleTo(boxes.Point{X: 320, Y: 240})
	require.InDelta(t, 0, xdeg, 1e-4)
	require.InDelta(t, 0, ydeg, 1e-4)

	// Left of center is negative.
	xdeg, _ = calib.AngleTo(boxes.Point{X: 0, Y: 240})
	require.Less(t, xdeg, float32(0))
}

func TestRansacKeepsLowestRMS(t *testing.T) {
	log := logs.NewTestingLog(t)
	obs := make([]Observation, 12)

	calls := 0
	fake := func(sample []Observation, width, height int) (*Calibration, error) {
		require.Len(t, sample, 10)
		require.Equal(t, 640, width)
		require.Equal(t, 480, height)
		calls++
		return &Calibration{RMS: float64(100 - calls), Width: width, Height: height}, nil
	}

	best, err := Ransac(log, obs, 640, 480, fake)
	require.NoError(t, err)
	require.Equal(t, 100, calls)
	require.Equal(t, float64(0), best.RMS)
}

func TestRansacTooFewObservations(t *testing.T) {
	log := logs.NewTestingLog(t)
	_, err := Ransac(log, make([]Observation, MinFrames-1), 640, 480, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "need at least")
}

func TestRansacAllAttemptsFail(t *testing.T) {
	log := logs.NewTestingLog(t)
	fake := func(sample []Observation, width, height int) (*Calibration, error) {
		return nil, fmt.Errorf("degenerate sample")
	}
	_, err := Ransac(log, make([]Observation, MinFrames), 640, 480, fake)
	require.Error(t, err)
}
