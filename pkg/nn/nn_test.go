package nn

import (
	"fmt"
	"image"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/fieldvision/boxlab/pkg/videox"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestParseBoxPriors(t *testing.T) {
	text := "0.1 0.2 0.3\n0.4 0.5 0.6\n\n0.7 0.8 0.9\n1.0 1.1 1.2\n"
	priors, err := parseBoxPriors(strings.NewReader(text))
	require.NoError(t, err)
	require.Equal(t, []float32{0.1, 0.2, 0.3}, priors[0])
	require.Equal(t, []float32{0.4, 0.5, 0.6}, priors[1])
	require.Equal(t, []float32{0.7, 0.8, 0.9}, priors[2])
	require.Equal(t, []float32{1.0, 1.1, 1.2}, priors[3])

	_, err = parseBoxPriors(strings.NewReader("1 2\n3 4\n5 6"))
	require.ErrorIs(t, err, ErrBadPriors)

	_, err = parseBoxPriors(strings.NewReader("1 2\n3 4\n5 6\n7 8\n9 10"))
	require.ErrorIs(t, err, ErrBadPriors)

	_, err = parseBoxPriors(strings.NewReader("1 2\n3 4\n5 6\n7 8 9"))
	require.ErrorIs(t, err, ErrBadPriors)

	_, err = parseBoxPriors(strings.NewReader("1 x\n3 4\n5 6\n7 8"))
	require.Error(t, err)
}

func TestDedupDetections(t *testing.T) {
	dets := []Detection{
		{Class: 1, Confidence: 0.7, Box: boxes.Rect{X1: 0.1, Y1: 0.1, X2: 0.5, Y2: 0.5}},
		{Class: 1, Confidence: 0.9, Box: boxes.Rect{X1: 0.12, Y1: 0.12, X2: 0.5, Y2: 0.5}},
		{Class: 2, Confidence: 0.8, Box: boxes.Rect{X1: 0.1, Y1: 0.1, X2: 0.5, Y2: 0.5}},
	}
	out := dedupDetections(dets, 0.5)
	require.Len(t, out, 2)

	// The larger of the two class 1 boxes survives, with the absorbed
	// detection's higher confidence.
	require.Equal(t, 1, out[0].Class)
	require.Equal(t, dets[0].Box, out[0].Box)
	require.Equal(t, float32(0.9), out[0].Confidence)

	// Class 2 overlaps class 1 but never merges with it.
	require.Equal(t, 2, out[1].Class)
	require.Equal(t, float32(0.8), out[1].Confidence)
}

func TestPixelRect(t *testing.T) {
	r := PixelRect(boxes.Rect{X1: 0.25, Y1: 0.5, X2: 0.75, Y2: 1.0}, 640, 480)
	require.Equal(t, boxes.Rect{X1: 160, Y1: 240, X2: 480, Y2: 480}, r)
}

func TestModelConfig(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, ConfigFileName)
	config := &ModelConfig{Name: "balls", Width: 320, Height: 256, Classes: []string{"background", "ball"}}
	require.NoError(t, SaveModelConfig(fn, config))
	loaded, err := LoadModelConfig(fn)
	require.NoError(t, err)
	require.Equal(t, config, loaded)

	// A model with a config file next to it uses that config
	fromModel, err := ConfigForModel(filepath.Join(dir, "model.pb"), nil)
	require.NoError(t, err)
	require.Equal(t, config, fromModel)

	// No config file: fall back to 300x300 and the caller's classes
	fallback, err := ConfigForModel(filepath.Join(t.TempDir(), "model.pb"), []string{"background", "ball"})
	require.NoError(t, err)
	require.Equal(t, 300, fallback.Width)
	require.Equal(t, 300, fallback.Height)
	require.Equal(t, []string{"background", "ball"}, fallback.Classes)
}

type fakeDetector struct {
	size image.Point
	dets []Detection
	err  error
}

func (f *fakeDetector) DetectFrame(img gocv.Mat) ([]Detection, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.dets, nil
}

func (f *fakeDetector) InputSize() image.Point { return f.size }
func (f *fakeDetector) Classes() []string      { return []string{"background", "ball"} }
func (f *fakeDetector) Close() error           { return nil }

func TestTiledInferenceSingleTile(t *testing.T) {
	// Frame smaller than the model input: one tile, detections pass
	// through unchanged.
	img := gocv.NewMatWithSize(40, 50, gocv.MatTypeCV8UC3)
	defer img.Close()
	fake := &fakeDetector{
		size: image.Pt(100, 100),
		dets: []Detection{{Class: 1, Confidence: 0.9, Box: boxes.Rect{X1: 0.25, Y1: 0.25, X2: 0.75, Y2: 0.75}}},
	}
	dets, err := TiledInference(fake, img, 2)
	require.NoError(t, err)
	require.Len(t, dets, 1)
	require.Equal(t, 1, dets[0].Class)
	require.Equal(t, float32(0.9), dets[0].Confidence)
	require.InDelta(t, 0.25, dets[0].Box.X1, 1e-5)
	require.InDelta(t, 0.25, dets[0].Box.Y1, 1e-5)
	require.InDelta(t, 0.75, dets[0].Box.X2, 1e-5)
	require.InDelta(t, 0.75, dets[0].Box.Y2, 1e-5)
}

func TestTiledInferenceManyTiles(t *testing.T) {
	img := gocv.NewMatWithSize(400, 1000, gocv.MatTypeCV8UC3)
	defer img.Close()
	fake := &fakeDetector{
		size: image.Pt(300, 300),
		dets: []Detection{{Class: 1, Confidence: 0.5, Box: boxes.Rect{X1: 0.4, Y1: 0.4, X2: 0.6, Y2: 0.6}}},
	}
	dets, err := TiledInference(fake, img, 4)
	require.NoError(t, err)
	// A tile-center box per tile, too far apart to merge across seams.
	require.GreaterOrEqual(t, len(dets), 2)
	for _, d := range dets {
		require.Equal(t, 1, d.Class)
		require.GreaterOrEqual(t, d.Box.X1, float32(0))
		require.GreaterOrEqual(t, d.Box.Y1, float32(0))
		require.LessOrEqual(t, d.Box.X2, float32(1))
		require.LessOrEqual(t, d.Box.Y2, float32(1))
		require.Less(t, d.Box.X1, d.Box.X2)
		require.Less(t, d.Box.Y1, d.Box.Y2)
	}
}

func TestTiledInferenceError(t *testing.T) {
	img := gocv.NewMatWithSize(400, 1000, gocv.MatTypeCV8UC3)
	defer img.Close()
	fake := &fakeDetector{
		size: image.Pt(300, 300),
		err:  fmt.Errorf("model exploded"),
	}
	_, err := TiledInference(fake, img, 4)
	require.ErrorContains(t, err, "model exploded")
}

// writeTestMovie writes a short MJPG clip and returns its path.
func writeTestMovie(t *testing.T, frames int) string {
	path := filepath.Join(t.TempDir(), "clip.avi")
	writer, err := videox.NewWriter(path, 30, 64, 48)
	require.NoError(t, err)
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(30, 60, 90, 0), 48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()
	for i := 0; i < frames; i++ {
		require.NoError(t, writer.Write(img))
	}
	require.NoError(t, writer.Close())
	return path
}

func TestRunOnVideo(t *testing.T) {
	path := writeTestMovie(t, 4)
	fake := &fakeDetector{
		size: image.Pt(300, 300),
		dets: []Detection{{Class: 1, Confidence: 0.8, Box: boxes.Rect{X1: 0.1, Y1: 0.1, X2: 0.3, Y2: 0.3}}},
	}

	got := []int{}
	err := RunOnVideo(fake, path, false, func(frameIndex int, img gocv.Mat, dets []Detection) error {
		require.False(t, img.Empty())
		require.Len(t, dets, 1)
		got = append(got, frameIndex)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []int{0, 1, 2, 3}, got)

	// An fn error stops the run
	calls := 0
	err = RunOnVideo(fake, path, false, func(frameIndex int, img gocv.Mat, dets []Detection) error {
		calls++
		return fmt.Errorf("stop here")
	})
	require.ErrorContains(t, err, "stop here")
	require.Equal(t, 1, calls)

	err = RunOnVideo(fake, filepath.Join(t.TempDir(), "missing.mp4"), false, func(int, gocv.Mat, []Detection) error { return nil })
	require.Error(t, err)
}
