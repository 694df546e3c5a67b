package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/gen"
	"github.com/fieldvision/boxlab/pkg/labeldb"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

const (
	window    = "labelframes"
	cacheSize = 150 // about 5 seconds of footage
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func boxPtrs(rects []boxes.Rect) []*boxes.Box {
	bxs := make([]*boxes.Box, len(rects))
	for i, r := range rects {
		b := r.Box()
		bxs[i] = &b
	}
	return bxs
}

// loadLabels reads the labels saved for a frame on a previous run, if any.
func loadLabels(runDir string, frame int) ([]boxes.Rect, []string) {
	path := filepath.Join(runDir, labelio.FrameLabelName(frame))
	if _, err := os.Stat(path); err != nil {
		return nil, nil
	}
	rects, classes, err := labelio.ReadRects(path)
	check(err)
	return rects, classes
}

// saveFrame writes the frame's PNG once and its labels on every visit.
func saveFrame(logger logs.Log, runDir string, f *videox.CachedFrame) {
	imgPath := filepath.Join(runDir, labelio.FrameImageName(f.Index))
	if _, err := os.Stat(imgPath); err != nil {
		logger.Infof("Saving frame %v to %v", f.Index, imgPath)
		gocv.IMWrite(imgPath, f.Image)
	}
	check(labelio.WriteRects(filepath.Join(runDir, labelio.FrameLabelName(f.Index)), f.Rects, f.Classes))
}

func main() {
	parser := argparse.NewParser("labelframes", "Step through a video labeling frames by hand: shift+letter picks a class, b draws a box, l/h step, space autoplays, q quits")
	movie := parser.StringPositional(&argparse.Options{Help: "Video to label", Required: true})
	frames := parser.Int("f", "frames", &argparse.Options{Help: "Save every Nth frame (0 disables saving)", Required: false, Default: 10})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	video, err := videox.OpenVideo(*movie)
	check(err)
	defer video.Close()

	runDir := labelio.LabelRunDir(*movie)
	check(os.MkdirAll(runDir, 0755))
	logger.Infof("Labels for %v go to %v", *movie, runDir)

	index := labeldb.OpenAdvisory(logger, filepath.Dir(*movie))
	defer index.Close()

	cache := videox.NewFrameCache(cacheSize)
	defer cache.Close()

	win := gocv.NewWindow(window)
	defer win.Close()

	current := 0
	currentClass := ""
	autoplay := false
	autoplayDelay := 32
	stopAtNextSave := false
	var lastRects []boxes.Rect
	var lastClasses []string
	savedFrames := map[int]bool{}
	savedClasses := map[string]bool{}

	display := gocv.NewMat()
	defer display.Close()

loop:
	for {
		isSave := *frames > 0 && current%*frames == 0

		f := cache.Get(current)
		if f == nil {
			// Frames only leave the decoder in order, and stepping back
			// is clamped to the cache, so a miss always means "decode
			// the next frame".
			img := gocv.NewMat()
			if !video.Read(&img) {
				img.Close()
				logger.Infof("Out of frames at %v, stopping", current)
				break
			}
			rects, classes := loadLabels(runDir, current)
			f = &videox.CachedFrame{Index: current, Image: img, Rects: rects, Classes: classes}
			cache.Add(f)
		}

		f.Image.CopyTo(&display)
		draw.Boxes(&display, boxPtrs(f.Rects), f.Classes, 1)
		saveMark := ""
		if isSave {
			saveMark = " (save)"
		}
		class := currentClass
		if class == "" {
			class = "none (press shift+letter)"
		}
		hud := []string{
			fmt.Sprintf("frame: %v%v", current, saveMark),
			fmt.Sprintf("class: %v", class),
			fmt.Sprintf("autoplay: %v, delay %v ms", autoplay, autoplayDelay),
		}
		if stopAtNextSave {
			hud = append(hud, "stopping at next save frame")
		}
		draw.HUD(&display, hud)
		win.IMShow(display)

		delay := 0 // block until a key
		if autoplay {
			delay = autoplayDelay
		}
		key := win.WaitKey(delay)

		// Save frames get their labels rewritten on every visit, so
		// edits made while sitting on the frame land on the next pass
		// through this loop.
		if isSave {
			saveFrame(logger, runDir, f)
			savedFrames[f.Index] = true
			for _, c := range f.Classes {
				savedClasses[c] = true
			}
			if stopAtNextSave {
				stopAtNextSave = false
				autoplay = false
			}
		}

		switch {
		case key == 'q':
			break loop
		case key == 'l':
			current++
		case key == 'h':
			floor := cache.OldestIndex()
			if current-1 < floor {
				logger.Warnf("Frame %v has left the cache", current-1)
			}
			current = gen.Max(current-1, floor)
		case key == 'j':
			autoplayDelay = gen.Max(autoplayDelay/2, 1)
		case key == 'k':
			autoplayDelay *= 2
		case key == ' ':
			autoplay = !autoplay
			autoplayDelay = 32
		case key == 'n':
			stopAtNextSave = true
			autoplay = true
			autoplayDelay = 1
			current++
		case key == 'b':
			if currentClass == "" {
				logger.Warnf("Pick a class first (shift+letter)")
				continue
			}
			roi := gocv.SelectROI(window, display)
			if roi.Dx() > 0 && roi.Dy() > 0 {
				box := boxes.FromImageRect(roi).Standardize()
				f.Rects = append(f.Rects, box.Rect())
				f.Classes = append(f.Classes, currentClass)
			}
		case key == 'x':
			if len(f.Rects) > 0 {
				f.Rects = f.Rects[:len(f.Rects)-1]
				f.Classes = f.Classes[:len(f.Classes)-1]
			}
		case key == 'c':
			f.Rects = nil
			f.Classes = nil
		case key == 'r':
			f.Rects = append([]boxes.Rect{}, lastRects...)
			f.Classes = append([]string{}, lastClasses...)
		case key >= 'A' && key <= 'Z':
			currentClass = string(rune(key - 'A' + 'a'))
		default:
			if autoplay {
				current++
			}
		}

		if len(f.Rects) > 0 {
			lastRects = append([]boxes.Rect{}, f.Rects...)
			lastClasses = append([]string{}, f.Classes...)
		}
	}

	classes := make([]string, 0, len(savedClasses))
	for c := range savedClasses {
		classes = append(classes, c)
	}
	sort.Strings(classes)
	index.AddRun(*movie, "labelframes", "", 0, len(savedFrames), classes)
	logger.Infof("Saved labels for %v frames", len(savedFrames))
}
