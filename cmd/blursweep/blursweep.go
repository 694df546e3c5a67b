package main

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"sort"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/draw"
	"github.com/fieldvision/boxlab/pkg/gen"
	"github.com/fieldvision/boxlab/pkg/labeldb"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/nn"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
)

// Gaussian kernels to sweep. All odd, as OpenCV requires.
const (
	kernelMin  = 1
	kernelMax  = 151
	kernelStep = 10
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

// sweepKernel runs the detector over the whole movie with a kernel x kernel
// Gaussian blur applied first, one labeldb row per frame. q skips to the
// next kernel.
func sweepKernel(det nn.Detector, moviePath string, kernel int, win *gocv.Window) ([]labeldb.Sweep, error) {
	video, err := videox.OpenVideo(moviePath)
	if err != nil {
		return nil, err
	}
	defer video.Close()

	rows := []labeldb.Sweep{}
	img := gocv.NewMat()
	defer img.Close()
	blurred := gocv.NewMat()
	defer blurred.Close()
	frame := 0
	for {
		if !video.Read(&img) {
			break
		}
		if img.Empty() {
			continue
		}
		gocv.GaussianBlur(img, &blurred, image.Pt(kernel, kernel), 0, 0, gocv.BorderDefault)
		detections, err := det.DetectFrame(blurred)
		if err != nil {
			return rows, err
		}

		row := labeldb.Sweep{Movie: moviePath, Kernel: kernel, Frame: frame}
		for _, d := range detections {
			row.Detections++
			row.Weighted += float64(d.Confidence)
			rect := nn.PixelRect(d.Box, blurred.Cols(), blurred.Rows()).Box().ImageRect()
			gocv.Rectangle(&blurred, rect, draw.Yellow, 2)
			text := fmt.Sprintf("%v: %.2f", className(det.Classes(), d.Class), d.Confidence)
			draw.Label(&blurred, text, image.Pt(rect.Min.X, rect.Min.Y-5), draw.Yellow)
		}
		rows = append(rows, row)

		draw.HUD(&blurred, []string{fmt.Sprintf("kernel %v  frame %v  hits %v", kernel, frame, row.Detections)})
		win.IMShow(blurred)
		if win.WaitKey(1) == 'q' {
			break
		}
		frame++
	}
	return rows, nil
}

func writeJSON(path string, rows []labeldb.Sweep) {
	f, err := os.Create(path)
	check(err)
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	check(enc.Encode(rows))
}

// analyze charts a stored sweep: the best kernel per frame, its running
// average, and its running mode, which converges on the best overall blur.
func analyze(logger logs.Log, index *labeldb.DB, movie, outPath string) {
	rows, err := index.SweepResults(movie)
	check(err)
	if len(rows) == 0 {
		check(fmt.Errorf("no sweep results for %v", movie))
	}

	type best struct {
		kernel   int
		weighted float64
	}
	byFrame := map[int]best{}
	for _, r := range rows {
		if b, ok := byFrame[r.Frame]; !ok || r.Weighted > b.weighted {
			byFrame[r.Frame] = best{r.Kernel, r.Weighted}
		}
	}
	frames := make([]int, 0, len(byFrame))
	for f := range byFrame {
		frames = append(frames, f)
	}
	sort.Ints(frames)

	bestKernels := make([]float64, len(frames))
	kernelInts := make([]int, len(frames))
	for i, f := range frames {
		bestKernels[i] = float64(byFrame[f].kernel)
		kernelInts[i] = byFrame[f].kernel
	}
	cum := make([]float64, len(bestKernels))
	floats.CumSum(cum, bestKernels)

	bestLine := make(plotter.XYs, len(frames))
	avgLine := make(plotter.XYs, len(frames))
	modeLine := make(plotter.XYs, len(frames))
	for i, f := range frames {
		x := float64(f)
		bestLine[i] = plotter.XY{X: x, Y: bestKernels[i]}
		avgLine[i] = plotter.XY{X: x, Y: cum[i] / float64(i+1)}
		mode, _ := gen.Mode(kernelInts[:i+1])
		modeLine[i] = plotter.XY{X: x, Y: float64(mode)}
	}

	p := plot.New()
	p.Title.Text = "Weighted detection best performance"
	p.X.Label.Text = "Frame Number"
	p.Y.Label.Text = "Blur Amount"
	check(plotutil.AddLines(p,
		"Highest weighted confidence blur", bestLine,
		"Best average blur", avgLine,
		"Best overall blur", modeLine))
	check(p.Save(10*vg.Inch, 6*vg.Inch, outPath))
	logger.Infof("Wrote %v (%v frames)", outPath, len(frames))
}

func main() {
	parser := argparse.NewParser("blursweep", "Measure detector robustness to blur: run the detector at increasing Gaussian kernels and chart the best kernel per frame")
	movie := parser.String("m", "movie", &argparse.Options{Help: "Movie file", Required: true})
	model := parser.String("", "model", &argparse.Options{Help: "Model file (.pb frozen graph, or .tflite with --lite)", Required: false, Default: ""})
	graph := parser.String("", "graph", &argparse.Options{Help: "Graph config (.pbtxt) for the frozen model", Required: false, Default: ""})
	lite := parser.Flag("", "lite", &argparse.Options{Help: "Use the TensorFlow Lite interpreter", Required: false})
	priors := parser.String("", "priors", &argparse.Options{Help: "Box priors file (required with --lite)", Required: false, Default: ""})
	labels := parser.String("l", "labels", &argparse.Options{Help: "label.pbtxt (full) or class list file (lite)", Required: false, Default: ""})
	threshold := parser.Float("t", "threshold", &argparse.Options{Help: "Minimum confidence", Required: false, Default: float64(nn.DefaultThreshold)})
	root := parser.String("r", "root", &argparse.Options{Help: "Folder holding the run index", Required: false, Default: "."})
	analyzeFlag := parser.Flag("a", "analyze", &argparse.Options{Help: "Chart a stored sweep instead of running one", Required: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	if *analyzeFlag {
		// Analysis reads from the index, so it has to be there.
		index, err := labeldb.Open(logger, *root)
		check(err)
		defer index.Close()
		analyze(logger, index, *movie, "blursweep.png")
		return
	}
	index := labeldb.OpenAdvisory(logger, *root)
	defer index.Close()

	if *model == "" {
		check(fmt.Errorf("--model is required to run a sweep"))
	}
	params := nn.NewParams()
	params.Threshold = float32(*threshold)
	det, err := nn.OpenDetector(*model, *graph, *priors, *labels, *lite, params)
	check(err)
	defer det.Close()

	win := gocv.NewWindow("blursweep")
	defer win.Close()

	all := []labeldb.Sweep{}
	jsonPath := labelio.Stem(*movie) + "_blursweep.json"
	for kernel := kernelMin; kernel <= kernelMax; kernel += kernelStep {
		logger.Infof("Sweeping kernel %vx%v", kernel, kernel)
		rows, err := sweepKernel(det, *movie, kernel, win)
		if len(rows) > 0 {
			index.AddSweeps(rows)
			all = append(all, rows...)
			// Rewritten after every kernel, so a stopped sweep keeps
			// its data.
			writeJSON(jsonPath, all)
		}
		check(err)
	}
	logger.Infof("Swept %v kernels, %v rows -> %v and the run index", (kernelMax-kernelMin)/kernelStep+1, len(all), jsonPath)
}
