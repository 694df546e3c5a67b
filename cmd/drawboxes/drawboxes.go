package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

const window = "drawboxes"

func isClassKey(key int) bool {
	return (key >= 'a' && key <= 'z' && key != 'q' && key != 'u') || (key >= '0' && key <= '9')
}

func main() {
	parser := argparse.NewParser("drawboxes",
		"Draw initial bounding boxes on a video's first frame. Press a class key (lowercase letter or digit), "+
			"then draw the box with the ROI selector (enter confirms, c cancels). 'u' removes the last box, 'q' quits. "+
			"Boxes save to <video>_rects.txt after every change, ready for trackboxes. Draw them as tight as you "+
			"can; any inflation happens at tracking time.")
	videoPath := parser.StringPositional(&argparse.Options{Help: "Path to video file", Required: true})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	frame, err := videox.FirstFrame(*videoPath)
	check(err)
	defer frame.Close()

	rectFile := labelio.RectFilePath(*videoPath)
	rects := []boxes.Rect{}
	classes := []string{}
	if _, err := os.Stat(rectFile); err == nil {
		rects, classes, err = labelio.ReadRects(rectFile)
		check(err)
		logger.Infof("Loaded %v existing boxes from %v", len(rects), rectFile)
	}

	win := gocv.NewWindow(window)
	defer win.Close()

	class := ""
	display := gocv.NewMat()
	defer display.Close()
	for {
		frame.CopyTo(&display)
		bxs := make([]*boxes.Box, len(rects))
		for i, r := range rects {
			b := r.Box()
			bxs[i] = &b
		}
		draw.Boxes(&display, bxs, classes, 1)
		hud := fmt.Sprintf("class: %v  boxes: %v", class, len(rects))
		if class == "" {
			hud = "press a class key to start"
		}
		draw.HUD(&display, []string{hud})
		win.IMShow(display)

		key := win.WaitKey(30)
		switch {
		case key == 'q':
			return
		case key == 'u' && len(rects) > 0:
			rects = rects[:len(rects)-1]
			classes = classes[:len(classes)-1]
			check(labelio.WriteRects(rectFile, rects, classes))
		case isClassKey(key):
			class = string(rune(key))
			roi := gocv.SelectROI(window, display)
			if roi.Dx() == 0 || roi.Dy() == 0 {
				continue
			}
			b := boxes.FromImageRect(roi).Standardize()
			rects = append(rects, b.Rect())
			classes = append(classes, class)
			check(labelio.WriteRects(rectFile, rects, classes))
			logger.Infof("Added '%v' box, %v total", class, len(rects))
		}
	}
}
