package main

import (
	"fmt"
	"image"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

const window = "threshtool"

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// rangeBars is the six min/max trackbars riding on the mask window.
type rangeBars struct {
	min [3]*gocv.Trackbar
	max [3]*gocv.Trackbar
}

func newRangeBars(win *gocv.Window) *rangeBars {
	bars := &rangeBars{}
	for i := 0; i < 3; i++ {
		bars.min[i] = win.CreateTrackbar(fmt.Sprintf("min_%v", i+1), 255)
		bars.max[i] = win.CreateTrackbar(fmt.Sprintf("max_%v", i+1), 255)
	}
	return bars
}

func (b *rangeBars) bounds() (gocv.Scalar, gocv.Scalar) {
	lower := gocv.NewScalar(float64(b.min[0].GetPos()), float64(b.min[1].GetPos()), float64(b.min[2].GetPos()), 0)
	upper := gocv.NewScalar(float64(b.max[0].GetPos()), float64(b.max[1].GetPos()), float64(b.max[2].GetPos()), 0)
	return lower, upper
}

// showMasked renders the in-range mask and the masked original. Returns
// false when q was pressed.
func showMasked(win, winMasked *gocv.Window, bars *rangeBars, src, converted gocv.Mat, delay int) bool {
	lower, upper := bars.bounds()
	mask := gocv.NewMat()
	defer mask.Close()
	gocv.InRangeWithScalar(converted, lower, upper, &mask)

	masked := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), src.Rows(), src.Cols(), src.Type())
	defer masked.Close()
	gocv.BitwiseAndWithMask(src, src, &masked, mask)

	win.IMShow(mask)
	winMasked.IMShow(masked)
	return win.WaitKey(delay) != 'q'
}

func imageMode(path string, hsv bool) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		check(fmt.Errorf("unable to read image %v", path))
	}
	defer img.Close()

	converted := gocv.NewMat()
	defer converted.Close()
	if hsv {
		gocv.CvtColor(img, &converted, gocv.ColorBGRToHSV)
	} else {
		img.CopyTo(&converted)
	}

	win := gocv.NewWindow(window)
	defer win.Close()
	winMasked := gocv.NewWindow("masked")
	defer winMasked.Close()
	bars := newRangeBars(win)

	for showMasked(win, winMasked, bars, img, converted, 25) {
	}
}

// videoMode loops the clip at half scale with a box blur and HSV
// conversion, which is the preprocessing the robot's blob finders use.
func videoMode(path string, startFrame int) {
	video, err := videox.OpenVideo(path)
	check(err)
	defer video.Close()
	video.Capture.Set(gocv.VideoCapturePosFrames, float64(startFrame))

	win := gocv.NewWindow(window)
	defer win.Close()
	winMasked := gocv.NewWindow("masked")
	defer winMasked.Close()
	winOrig := gocv.NewWindow("original")
	defer winOrig.Close()
	bars := newRangeBars(win)

	frame := gocv.NewMat()
	defer frame.Close()
	small := gocv.NewMat()
	defer small.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()
	converted := gocv.NewMat()
	defer converted.Close()
	for {
		if !video.Read(&frame) {
			video.Capture.Set(gocv.VideoCapturePosFrames, float64(startFrame))
			if !video.Read(&frame) {
				check(fmt.Errorf("no readable frames in %v after frame %v", path, startFrame))
			}
		}
		if frame.Empty() {
			continue
		}
		gocv.Resize(frame, &small, image.Point{}, 0.5, 0.5, gocv.InterpolationLinear)
		gocv.Blur(small, &blurred, image.Pt(11, 11))
		gocv.CvtColor(blurred, &converted, gocv.ColorBGRToHSV)

		winOrig.IMShow(small)
		if !showMasked(win, winMasked, bars, small, converted, 25) {
			return
		}
	}
}

// autoMode prints Otsu thresholds for the gray and HSV channels and shows
// each binarization, plus Hough circles on the gray image.
func autoMode(logger logs.Log, path string) {
	img := gocv.IMRead(path, gocv.IMReadColor)
	if img.Empty() {
		check(fmt.Errorf("unable to read image %v", path))
	}
	defer img.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)
	blurred := gocv.NewMat()
	defer blurred.Close()
	gocv.GaussianBlur(gray, &blurred, image.Pt(5, 5), 0, 0, gocv.BorderDefault)

	winImage := gocv.NewWindow("image")
	defer winImage.Close()
	winImage.IMShow(img)

	grayThresh := gocv.NewMat()
	defer grayThresh.Close()
	t := gocv.Threshold(blurred, &grayThresh, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
	logger.Infof("Otsu gray: %.0f", t)
	winGray := gocv.NewWindow("thresh gray")
	defer winGray.Close()
	winGray.IMShow(grayThresh)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(img, &hsv, gocv.ColorBGRToHSV)
	channels := gocv.Split(hsv)
	names := []string{"hue", "sat", "val"}
	for i, ch := range channels {
		thresh := gocv.NewMat()
		t := gocv.Threshold(ch, &thresh, 0, 255, gocv.ThresholdBinary|gocv.ThresholdOtsu)
		logger.Infof("Otsu %v: %.0f", names[i], t)
		win := gocv.NewWindow("thresh " + names[i])
		defer win.Close()
		win.IMShow(thresh)
		thresh.Close()
		ch.Close()
	}

	circles := gocv.NewMat()
	defer circles.Close()
	gocv.HoughCirclesWithParams(gray, &circles, gocv.HoughGradient, 1, 20, 50, 30, 0, 0)
	annotated := img.Clone()
	defer annotated.Close()
	for i := 0; i < circles.Cols(); i++ {
		v := circles.GetVecfAt(0, i)
		center := image.Pt(int(v[0]), int(v[1]))
		gocv.Circle(&annotated, center, int(v[2]), draw.Green, 2)
		gocv.Circle(&annotated, center, 2, draw.Red, 3)
	}
	logger.Infof("%v Hough circles", circles.Cols())
	winCircles := gocv.NewWindow("circles")
	defer winCircles.Close()
	winCircles.IMShow(annotated)

	winCircles.WaitKey(0)
}

func main() {
	parser := argparse.NewParser("threshtool", "Explore channel thresholds: interactive min/max range masks over an image or video, or automatic Otsu readouts")
	imagePath := parser.String("i", "image", &argparse.Options{Help: "Image file", Required: false, Default: ""})
	videoPath := parser.String("v", "video", &argparse.Options{Help: "Video file", Required: false, Default: ""})
	hsv := parser.Flag("", "hsv", &argparse.Options{Help: "Convert the image to HSV before masking", Required: false})
	startFrame := parser.Int("s", "start-frame", &argparse.Options{Help: "First frame of the video loop", Required: false, Default: 0})
	auto := parser.Flag("a", "auto", &argparse.Options{Help: "No trackbars: print Otsu thresholds for gray/H/S/V and show Hough circles", Required: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	if (*imagePath != "") == (*videoPath != "") {
		check(fmt.Errorf("pick exactly one of --image or --video"))
	}
	if *auto {
		if *imagePath == "" {
			check(fmt.Errorf("--auto needs --image"))
		}
		autoMode(logger, *imagePath)
		return
	}
	if *imagePath != "" {
		imageMode(*imagePath, *hsv)
		return
	}
	videoMode(*videoPath, *startFrame)
}
