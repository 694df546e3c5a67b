package track

import (
	"image"
	"image/color"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

func TestRegistry(t *testing.T) {
	require.Equal(t, []string{"csrt", "kcf", "mil"}, TrackerNames())

	_, err := NewTracker("goturn")
	require.Error(t, err)
	require.Contains(t, err.Error(), "csrt, kcf, mil")

	tracker, err := NewTracker(DefaultTracker)
	require.NoError(t, err)
	require.NoError(t, tracker.Close())
}

func TestNewMultiTrackerMismatch(t *testing.T) {
	log := logs.NewTestingLog(t)
	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()
	_, err := NewMultiTracker(log, DefaultTracker, frame, []boxes.Box{{W: 10, H: 10}}, nil)
	require.Error(t, err)

	_, err = NewMultiTracker(log, "bogus", frame, []boxes.Box{{W: 10, H: 10}}, []string{"w"})
	require.Error(t, err)
}

func TestRefineBoxNoRefiner(t *testing.T) {
	frame := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer frame.Close()
	box := boxes.Box{X: 10, Y: 10, W: 20, H: 20}
	out, err := RefineBox(frame, box, "z")
	require.ErrorIs(t, err, ErrNoRefiner)
	require.Equal(t, box, out)
}

func TestRefineCube(t *testing.T) {
	// Orange square on black: low hue, saturated, so the mask is just the
	// square and its bounding box comes back through the component stats.
	roi := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 200, gocv.MatTypeCV8UC3)
	defer roi.Close()
	gocv.Rectangle(&roi, image.Rect(60, 70, 140, 150), color.RGBA{R: 255, G: 100, B: 0}, -1)

	box, err := refineCube(roi)
	require.NoError(t, err)
	require.InDelta(t, 60, box.X, 5)
	require.InDelta(t, 70, box.Y, 5)
	require.InDelta(t, 80, box.W, 8)
	require.InDelta(t, 80, box.H, 8)

	// All black: nothing saturated, no component.
	dark := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 200, 200, gocv.MatTypeCV8UC3)
	defer dark.Close()
	_, err = refineCube(dark)
	require.ErrorIs(t, err, ErrNoComponent)
}

func TestRefineBoxMapsBack(t *testing.T) {
	// The square sits away from the crop origin, so a correct result
	// proves the crop/resize round trip back into frame coordinates.
	frame := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), 400, 400, gocv.MatTypeCV8UC3)
	defer frame.Close()
	gocv.Rectangle(&frame, image.Rect(160, 170, 240, 250), color.RGBA{R: 255, G: 100, B: 0}, -1)

	loose := boxes.Box{X: 150, Y: 160, W: 100, H: 100}
	tight, err := RefineBox(frame, loose, "c")
	require.NoError(t, err)
	require.InDelta(t, 160, tight.X, 6)
	require.InDelta(t, 170, tight.Y, 6)
	require.InDelta(t, 80, tight.W, 8)
	require.InDelta(t, 80, tight.H, 8)
}
