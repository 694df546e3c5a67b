package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/nn"
	"github.com/fieldvision/boxlab/pkg/perfstats"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func className(classes []string, id int) string {
	if id >= 0 && id < len(classes) {
		return classes[id]
	}
	return fmt.Sprintf("class %v", id)
}

func main() {
	parser := argparse.NewParser("detect", "Run the full or lite detector over a movie or the default camera")
	movie := parser.String("m", "movie", &argparse.Options{Help: "Movie file (default: camera 0)", Required: false, Default: ""})
	model := parser.String("", "model", &argparse.Options{Help: "Model file (.pb frozen graph, or .tflite with --lite)", Required: true})
	graph := parser.String("", "graph", &argparse.Options{Help: "Graph config (.pbtxt) for the frozen model", Required: false, Default: ""})
	lite := parser.Flag("", "lite", &argparse.Options{Help: "Use the TensorFlow Lite interpreter", Required: false})
	priors := parser.String("", "priors", &argparse.Options{Help: "Box priors file (required with --lite)", Required: false, Default: ""})
	labels := parser.String("l", "labels", &argparse.Options{Help: "label.pbtxt (full) or class list file (lite)", Required: false, Default: ""})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence", Required: false, Default: float64(nn.DefaultThreshold)})
	writeImages := parser.Flag("", "write-images", &argparse.Options{Help: "Save original and annotated frames into <movie>_images/", Required: false})
	writeMovie := parser.Flag("", "write-movie", &argparse.Options{Help: "Save an annotated movie next to the input", Required: false})
	writeJSON := parser.Flag("", "write-json", &argparse.Options{Help: "Save per-frame detections as JSON", Required: false})
	tiled := parser.Flag("", "tiled", &argparse.Options{Help: "Tile frames larger than the model input", Required: false})
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

	var video *videox.Video
	stem := ""
	if *movie != "" {
		video, err = videox.OpenVideo(*movie)
		stem = labelio.Stem(*movie)
	} else {
		video, err = videox.OpenCamera(0)
		stem = "movie"
	}
	check(err)
	defer video.Close()
	logger.Infof("%v: %vx%v @ %.1f FPS", video.Path, video.Width, video.Height, video.FPS)

	var movieOut *gocv.VideoWriter
	if *writeMovie {
		movieOut, err = videox.NewWriter(stem+"_boxes.mkv", video.FPS, video.Width, video.Height)
		check(err)
		defer movieOut.Close()
	}
	imagesDir := stem + "_images"
	if *writeImages {
		check(os.MkdirAll(imagesDir, 0755))
	}
	videoLabels := &nn.VideoLabels{Movie: video.Path, Classes: det.Classes()}

	win := gocv.NewWindow("detect")
	defer win.Close()

	img := gocv.NewMat()
	defer img.Close()
	annotated := gocv.NewMat()
	defer annotated.Close()
	stats := perfstats.TimeAccumulator{}
	frame := 0
	for {
		if !video.Read(&img) {
			break
		}
		if img.Empty() {
			continue
		}
		start := time.Now()
		var detections []nn.Detection
		if *tiled {
			detections, err = nn.TiledInference(det, img, 0)
		} else {
			detections, err = det.DetectFrame(img)
		}
		check(err)
		stats.AddSample(time.Since(start))

		if *writeImages {
			gocv.IMWrite(filepath.Join(imagesDir, fmt.Sprintf("orig_%05d.png", frame)), img)
		}

		img.CopyTo(&annotated)
		for _, d := range detections {
			rect := nn.PixelRect(d.Box, annotated.Cols(), annotated.Rows()).Box().ImageRect()
			gocv.Rectangle(&annotated, rect, draw.Yellow, 2)
			text := fmt.Sprintf("%v: %.2f", className(det.Classes(), d.Class), d.Confidence)
			draw.Label(&annotated, text, image.Pt(rect.Min.X, rect.Min.Y-5), draw.Yellow)
		}
		draw.HUD(&annotated, []string{fmt.Sprintf("FPS: %.1f", stats.FPS())})

		if *writeImages {
			gocv.IMWrite(filepath.Join(imagesDir, fmt.Sprintf("box_%05d.png", frame)), annotated)
		}
		if movieOut != nil {
			check(movieOut.Write(annotated))
		}
		if *writeJSON {
			videoLabels.Frames = append(videoLabels.Frames, &nn.FrameLabels{Frame: frame, Objects: detections})
		}

		win.IMShow(annotated)
		if win.WaitKey(1) == 'q' {
			break
		}
		frame++
	}

	if *writeJSON {
		path := stem + "_detections.json"
		f, err := os.Create(path)
		check(err)
		defer f.Close()
		encoder := json.NewEncoder(f)
		encoder.SetIndent("", "  ")
		check(encoder.Encode(videoLabels))
		logger.Infof("Wrote %v", path)
	}
	logger.Infof("%v frames, average inference %v", frame, stats.Average())
}
