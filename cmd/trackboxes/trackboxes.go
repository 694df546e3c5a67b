package main

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/labeldb"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/perfstats"
	"github.com/fieldvision/boxlab/pkg/track"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

const window = "trackboxes"

// The display runs at half scale so a full HD frame fits on a laptop screen.
const windowScale = 0.5

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func asPtrs(bxs []boxes.Box) []*boxes.Box {
	ptrs := make([]*boxes.Box, len(bxs))
	for i := range bxs {
		ptrs[i] = &bxs[i]
	}
	return ptrs
}

func showScaled(win *gocv.Window, img gocv.Mat, scaled *gocv.Mat) {
	gocv.Resize(img, scaled, image.Point{}, windowScale, windowScale, gocv.InterpolationLinear)
	win.IMShow(*scaled)
}

// saveFrame writes the clean frame, the annotated frame, and the label
// file. The trackers hold inflated boxes; what gets saved is each box
// deflated back to a tight fit and clamped to the frame. Failed trackers
// have no box to save.
func saveFrame(runDir string, frameCount int, clean, annotated gocv.Mat, bxs []*boxes.Box, classes []string, scale float32) error {
	width := float32(clean.Cols())
	height := float32(clean.Rows())
	rects := []boxes.Rect{}
	saved := []string{}
	for i, b := range bxs {
		if b == nil {
			continue
		}
		tight := b.Scale(1 / scale).Clamp(width, height)
		rects = append(rects, tight.Rect())
		saved = append(saved, classes[i])
	}
	if ok := gocv.IMWrite(filepath.Join(runDir, labelio.FrameImageName(frameCount)), clean); !ok {
		return fmt.Errorf("unable to write frame %v", frameCount)
	}
	if ok := gocv.IMWrite(filepath.Join(runDir, labelio.AnnotatedFrameName(frameCount)), annotated); !ok {
		return fmt.Errorf("unable to write annotated frame %v", frameCount)
	}
	return labelio.WriteRects(filepath.Join(runDir, labelio.FrameLabelName(frameCount)), rects, saved)
}

// correctionMode pauses tracking so drifted boxes can be fixed by hand.
// Corner dots show which boxes are live. A digit key redraws that box with
// the ROI selector, r refines, and space or c reinitializes the modified
// trackers and resumes.
func correctionMode(logger logs.Log, win *gocv.Window, mt *track.MultiTracker, clean gocv.Mat, bxs []*boxes.Box, annotated []string, scale float32) {
	display := gocv.NewMat()
	defer display.Close()
	scaled := gocv.NewMat()
	defer scaled.Close()
	modified := map[int]bool{}
	for {
		clean.CopyTo(&display)
		draw.Boxes(&display, bxs, annotated, scale)
		draw.Dots(&display, bxs)
		draw.HUD(&display, []string{"correction: 0-9 redraw a box, r refine, space resume"})
		showScaled(win, display, &scaled)

		key := win.WaitKey(0)
		switch {
		case key == ' ' || key == 'c':
			for i := range modified {
				logger.Infof("Reinitializing tracker %v", i)
				if err := mt.Reinit(i, clean, *bxs[i]); err != nil {
					logger.Warnf("%v", err)
				}
			}
			return
		case key == 'r':
			mt.Refine(clean, bxs, scale)
		case key >= '0' && key <= '9':
			i := int(key - '0')
			if i >= len(bxs) {
				logger.Warnf("No box %v", i)
				continue
			}
			roi := gocv.SelectROI(window, scaled)
			if roi.Dx() <= 0 || roi.Dy() <= 0 {
				continue
			}
			// The selector works on the scaled display, so map the rect
			// back to frame coordinates.
			b := boxes.Box{
				X: float32(roi.Min.X) / windowScale,
				Y: float32(roi.Min.Y) / windowScale,
				W: float32(roi.Dx()) / windowScale,
				H: float32(roi.Dy()) / windowScale,
			}
			bxs[i] = &b
			modified[i] = true
		}
	}
}

func main() {
	parser := argparse.NewParser("trackboxes", "Track the labeled boxes of the first frame through a video, saving labeled frames as it goes. Label the first frame with drawboxes, then run this")
	video := parser.StringPositional(&argparse.Options{Help: "Video to track through", Required: true})
	scaleFlag := parser.Float("s", "scale", &argparse.Options{Help: "Inflate boxes by this factor to help the tracker along", Required: false, Default: 1.0})
	tracker := parser.String("t", "tracker", &argparse.Options{Help: "Tracker to use (csrt, kcf, mil)", Required: false, Default: track.DefaultTracker})
	yes := parser.Flag("y", "yes", &argparse.Options{Help: "Skip the initial bounding box verification", Required: false})
	frames := parser.Int("f", "frames", &argparse.Options{Help: "Save every Nth frame (0 disables saving)", Required: false, Default: 10})
	experiment := parser.Flag("x", "experiment", &argparse.Options{Help: "Don't write any files", Required: false})
	refine := parser.Flag("r", "refine", &argparse.Options{Help: "Tighten boxes with per-class refinement on every frame", Required: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	rectFile := labelio.RectFilePath(*video)
	rects, classes, err := labelio.ReadRects(rectFile)
	check(err)
	if len(rects) == 0 {
		check(fmt.Errorf("no boxes in %v; label the first frame with drawboxes first", rectFile))
	}
	scale := float32(*scaleFlag)
	initial := make([]boxes.Box, len(rects))
	for i, r := range rects {
		initial[i] = r.Box().Scale(scale)
	}

	vid, err := videox.OpenVideo(*video)
	check(err)
	defer vid.Close()

	img := gocv.NewMat()
	defer img.Close()
	if !vid.Read(&img) {
		check(fmt.Errorf("reading first frame of %v: empty stream", *video))
	}

	win := gocv.NewWindow(window)
	defer win.Close()
	display := gocv.NewMat()
	defer display.Close()
	scaled := gocv.NewMat()
	defer scaled.Close()

	img.CopyTo(&display)
	draw.Boxes(&display, asPtrs(initial), classes, scale)
	draw.HUD(&display, []string{"Do boxes look okay (y/n)?"})
	showScaled(win, display, &scaled)
	if !*yes && win.WaitKey(0) == 'n' {
		logger.Errorf("Poor bounding boxes, quitting")
		os.Exit(1)
	}

	mt, err := track.NewMultiTracker(logger, *tracker, img, initial, classes)
	check(err)
	defer mt.Close()

	runDir := labelio.TrackRunDir(*video, *tracker, *scaleFlag)
	var writer *gocv.VideoWriter
	if !*experiment {
		check(os.MkdirAll(runDir, 0755))
		writer, err = videox.NewWriter(runDir+".avi", vid.FPS, vid.Width, vid.Height)
		check(err)
		defer writer.Close()
		// The first frame goes in as-is, so the movie lines up with the
		// source video.
		check(writer.Write(img))
	}

	stats := perfstats.TimeAccumulator{}
	saved := 0
	frameCount := -1 // so the first tracked frame is 00000

	for {
		if !vid.Read(&img) {
			break
		}
		if img.Empty() {
			continue
		}
		frameCount++

		start := time.Now()
		bxs, annotated := mt.Update(img)
		if *refine {
			mt.Refine(img, bxs, scale)
		}
		stats.AddSample(time.Since(start))

		img.CopyTo(&display)
		draw.Boxes(&display, bxs, annotated, scale)

		if *frames > 0 && frameCount%*frames == 0 && !*experiment {
			check(saveFrame(runDir, frameCount, img, display, bxs, classes, scale))
			saved++
		}

		draw.HUD(&display, []string{
			mt.Name(),
			fmt.Sprintf("FPS: %.0f", stats.FPS()),
			fmt.Sprintf("Frame: %v", frameCount),
		})
		showScaled(win, display, &scaled)
		if writer != nil {
			check(writer.Write(display))
		}

		key := win.WaitKey(1)
		if key == 'q' {
			break
		}
		switch key {
		case 'p', ' ':
			correctionMode(logger, win, mt, img, bxs, annotated, scale)
		case 'r':
			mt.Refine(img, bxs, scale)
		}
	}

	logger.Infof("Tracked %v frames, saved %v labeled frames to %v", frameCount+1, saved, runDir)
	if !*experiment {
		index := labeldb.OpenAdvisory(logger, filepath.Dir(*video))
		defer index.Close()
		index.AddRun(*video, "trackboxes", *tracker, *scaleFlag, saved, classes)
	}
}
