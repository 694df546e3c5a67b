package track

import (
	"errors"
	"fmt"
	"image"

	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/fieldvision/boxlab/pkg/gen"
	"gocv.io/x/gocv"
)

var (
	ErrNoRefiner   = fmt.Errorf("no refiner for class")
	ErrNoCircle    = fmt.Errorf("no circle found")
	ErrNoComponent = fmt.Errorf("no component found")
)

// refineSize is the short side of the working crop in pixels. The Hough
// and threshold parameters below are tuned against it.
const refineSize = 100

// refineInflate grows the tracker's box before cropping, in case the
// tracker is trailing the object.
const refineInflate = 1.2

var refiners = map[string]func(roi gocv.Mat) (boxes.Box, error){
	"w": refineWhiffle,
	"c": refineCube,
}

// RefineBox computes a tight box around the object inside the tracker's
// box. Returns ErrNoRefiner for classes that have no refinement recipe.
func RefineBox(frame gocv.Mat, box boxes.Box, class string) (boxes.Box, error) {
	refiner := refiners[class]
	if refiner == nil {
		return box, ErrNoRefiner
	}
	frameWidth := float32(frame.Cols())
	frameHeight := float32(frame.Rows())
	crop := box.Scale(refineInflate).Clamp(frameWidth, frameHeight)
	roiRect := crop.ImageRect()
	if roiRect.Dx() < 2 || roiRect.Dy() < 2 {
		return box, fmt.Errorf("box %vx%v is too small to refine", roiRect.Dx(), roiRect.Dy())
	}
	region := frame.Region(roiRect)
	defer region.Close()

	// Resize so the short side is a known size, which keeps the detection
	// parameters stable across box sizes.
	sf := float32(refineSize) / float32(gen.Min(roiRect.Dx(), roiRect.Dy()))
	roi := gocv.NewMat()
	defer roi.Close()
	gocv.Resize(region, &roi, image.Point{}, float64(sf), float64(sf), gocv.InterpolationLinear)

	tight, err := refiner(roi)
	if err != nil {
		return box, err
	}
	return boxes.Box{
		X: tight.X/sf + float32(roiRect.Min.X),
		Y: tight.Y/sf + float32(roiRect.Min.Y),
		W: tight.W / sf,
		H: tight.H / sf,
	}, nil
}

// Refine tightens every refinable box in place and reinitializes the
// trackers whose boxes moved. scale is the tracker inflation factor, so a
// refined tight box is re-inflated before it goes back to its tracker.
func (mt *MultiTracker) Refine(frame gocv.Mat, bxs []*boxes.Box, scale float32) {
	frameWidth := float32(frame.Cols())
	frameHeight := float32(frame.Rows())
	for i, box := range bxs {
		if box == nil {
			continue
		}
		tight, err := RefineBox(frame, *box, mt.classes[i])
		if errors.Is(err, ErrNoRefiner) {
			continue
		}
		if err != nil {
			mt.log.Warnf("Refining box %v (%v): %v", i, mt.classes[i], err)
			continue
		}
		scaled := tight.Scale(scale).Clamp(frameWidth, frameHeight)
		if err := mt.Reinit(i, frame, scaled); err != nil {
			mt.log.Warnf("Refining box %v (%v): %v", i, mt.classes[i], err)
			continue
		}
		*box = scaled
	}
}

// refineWhiffle finds the whiffle ball as the largest circle in the crop.
func refineWhiffle(roi gocv.Mat) (boxes.Box, error) {
	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(roi, &gray, gocv.ColorBGRToGray)

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient, 1,
		refineSize/2, 30, 50, refineSize/4, refineSize/2)
	if circles.Empty() {
		return boxes.Box{}, ErrNoCircle
	}

	best := -1
	bestRadius := float32(0)
	for i := 0; i < circles.Cols(); i++ {
		radius := circles.GetVecfAt(0, i)[2]
		if radius > bestRadius {
			best = i
			bestRadius = radius
		}
	}
	if best < 0 || bestRadius < refineSize/4 {
		return boxes.Box{}, ErrNoCircle
	}
	c := circles.GetVecfAt(0, best)
	return boxes.Box{X: c[0] - c[2], Y: c[1] - c[2], W: 2 * c[2], H: 2 * c[2]}, nil
}

// refineCube finds the orange cube as the largest low-hue, high-saturation
// component in the crop.
func refineCube(roi gocv.Mat) (boxes.Box, error) {
	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(roi, &hsv, gocv.ColorBGRToHSV)
	gocv.GaussianBlur(hsv, &hsv, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	channels := gocv.Split(hsv)
	defer func() {
		for _, ch := range channels {
			ch.Close()
		}
	}()

	hueMask := gocv.NewMat()
	defer hueMask.Close()
	gocv.Threshold(channels[0], &hueMask, 30, 255, gocv.ThresholdBinaryInv)
	satMask := gocv.NewMat()
	defer satMask.Close()
	gocv.Threshold(channels[1], &satMask, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.BitwiseAnd(hueMask, satMask, &mask)

	// Knock out speckle before looking for components.
	kernel := gocv.GetStructuringElement(gocv.MorphRect, image.Pt(11, 11))
	defer kernel.Close()
	gocv.MorphologyEx(mask, &mask, gocv.MorphOpen, kernel)

	labels := gocv.NewMat()
	defer labels.Close()
	stats := gocv.NewMat()
	defer stats.Close()
	centroids := gocv.NewMat()
	defer centroids.Close()
	n := gocv.ConnectedComponentsWithStatsWithParams(mask, &labels, &stats, &centroids,
		4, gocv.MatTypeCV32S, gocv.CCL_DEFAULT)

	// Row 0 is the background component.
	best := 0
	bestArea := int32(0)
	for i := 1; i < n; i++ {
		area := stats.GetIntAt(i, 4)
		if area > bestArea {
			best = i
			bestArea = area
		}
	}
	if best == 0 {
		return boxes.Box{}, ErrNoComponent
	}
	return boxes.Box{
		X: float32(stats.GetIntAt(best, 0)),
		Y: float32(stats.GetIntAt(best, 1)),
		W: float32(stats.GetIntAt(best, 2)),
		H: float32(stats.GetIntAt(best, 3)),
	}, nil
}
