package main

import (
	"fmt"
	"image"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/nn"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// bestBall is the highest-confidence detection of the ball class, or nil
// when the frame has none.
func bestBall(detections []nn.Detection, class int) *nn.Detection {
	var best *nn.Detection
	for i := range detections {
		d := &detections[i]
		if d.Class != class {
			continue
		}
		if best == nil || d.Confidence > best.Confidence {
			best = d
		}
	}
	return best
}

func main() {
	parser := argparse.NewParser("balldemo", "Chase the ball: detect it, run a P-controller on its horizontal offset, and draw the wheel commands as arrows")
	camera := parser.Int("c", "camera", &argparse.Options{Help: "Camera device number", Required: false, Default: 0})
	model := parser.String("", "model", &argparse.Options{Help: "Model file (.pb frozen graph, or .tflite with --lite)", Required: true})
	graph := parser.String("", "graph", &argparse.Options{Help: "Graph config (.pbtxt) for the frozen model", Required: false, Default: ""})
	lite := parser.Flag("", "lite", &argparse.Options{Help: "Use the TensorFlow Lite interpreter", Required: false})
	priors := parser.String("", "priors", &argparse.Options{Help: "Box priors file (required with --lite)", Required: false, Default: ""})
	labels := parser.String("l", "labels", &argparse.Options{Help: "label.pbtxt (full) or class list file (lite)", Required: false, Default: ""})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence", Required: false, Default: float64(nn.DefaultThreshold)})
	ballClass := parser.Int("", "class", &argparse.Options{Help: "Class id of the ball", Required: false, Default: 1})
	kp := parser.Float("", "kp", &argparse.Options{Help: "Proportional gain", Required: false, Default: 1.5})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	params := nn.NewParams()
	params.Threshold = float32(*threshold)
	det, err := nn.OpenDetector(*model, *graph, *priors, *labels, *lite, params)
	check(err)
	defer det.Close()

	video, err := videox.OpenCamera(*camera)
	check(err)
	defer video.Close()
	logger.Infof("%v: %vx%v, chasing class %v", video.Path, video.Width, video.Height, *ballClass)

	win := gocv.NewWindow("balldemo")
	defer win.Close()

	img := gocv.NewMat()
	defer img.Close()
	for {
		if !video.Read(&img) {
			break
		}
		if img.Empty() {
			continue
		}
		detections, err := det.DetectFrame(img)
		check(err)

		w, h := img.Cols(), img.Rows()
		if ball := bestBall(detections, *ballClass); ball != nil {
			pix := nn.PixelRect(ball.Box, w, h).Box()
			gocv.Rectangle(&img, pix.ImageRect(), draw.Yellow, 2)
			center := pix.Center()
			gocv.Circle(&img, image.Pt(int(center.X), int(center.Y)), 5, draw.Yellow, 2)

			// Positive means the ball is right of center. Normalized
			// coordinates, so the error is in [-0.5, 0.5].
			errX := float64((ball.Box.X1+ball.Box.X2)/2) - 0.5
			left := *kp * errX
			right := -left

			// A positive command points the arrow up (drive forward).
			mid := h / 2
			draw.Arrow(&img, int(0.4*float64(w)), mid, int(float64(mid)*(1-left)), draw.Yellow)
			draw.Arrow(&img, int(0.6*float64(w)), mid, int(float64(mid)*(1-right)), draw.Yellow)
			draw.HUD(&img, []string{fmt.Sprintf("left %+.2f  right %+.2f", left, right)})
		}

		win.IMShow(img)
		if win.WaitKey(1) == 'q' {
			break
		}
	}
}
