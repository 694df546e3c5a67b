package nn

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/chewxy/math32"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/mattn/go-tflite"
	"gocv.io/x/gocv"
)

var ErrBadPriors = fmt.Errorf("box priors file must have exactly 4 rows of equal length")

// locationScale divides the raw location tensor before anchor decode.
// The lite export uses 10 for all four of y, x, h, w.
const locationScale = 10.0

// dedupMinIoU is the overlap at which two same-class detections are
// considered the same object.
const dedupMinIoU = 0.5

// LiteDetector runs a TensorFlow Lite model. The lite export has no
// postprocessing ops in the graph, so we decode the raw location tensor
// against a box priors (anchor) table and apply our own score threshold
// and dedup.
type LiteDetector struct {
	mu          sync.Mutex // one interpreter, one invocation at a time
	model       *tflite.Model
	options     *tflite.InterpreterOptions
	interpreter *tflite.Interpreter
	priors      [4][]float32
	config      *ModelConfig
	params      Params
}

func NewLiteDetector(modelPath, priorsPath string, config *ModelConfig, params *Params) (*LiteDetector, error) {
	priors, err := loadBoxPriors(priorsPath)
	if err != nil {
		return nil, fmt.Errorf("loading box priors %v: %w", priorsPath, err)
	}
	model := tflite.NewModelFromFile(modelPath)
	if model == nil {
		return nil, fmt.Errorf("failed to load tflite model %v", modelPath)
	}
	options := tflite.NewInterpreterOptions()
	options.SetNumThread(runtime.NumCPU())
	interpreter := tflite.NewInterpreter(model, options)
	if interpreter == nil {
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("failed to create tflite interpreter for %v", modelPath)
	}
	if status := interpreter.AllocateTensors(); status != tflite.OK {
		interpreter.Delete()
		options.Delete()
		model.Delete()
		return nil, fmt.Errorf("tflite tensor allocation failed for %v", modelPath)
	}
	return &LiteDetector{
		model:       model,
		options:     options,
		interpreter: interpreter,
		priors:      priors,
		config:      config,
		params:      *params,
	}, nil
}

func (d *LiteDetector) DetectFrame(img gocv.Mat) ([]Detection, error) {
	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(img, &resized, image.Pt(d.config.Width, d.config.Height), 0, 0, gocv.InterpolationLinear)
	// The model is trained on RGB input; gocv frames are BGR.
	gocv.CvtColor(resized, &resized, gocv.ColorBGRToRGB)

	data, err := resized.DataPtrUint8()
	if err != nil {
		return nil, err
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	in := d.interpreter.GetInputTensor(0).Float32s()
	if len(in) != len(data) {
		return nil, fmt.Errorf("model wants %v input floats, frame has %v bytes", len(in), len(data))
	}
	for i, v := range data {
		in[i] = float32(v)/128 - 1
	}
	if status := d.interpreter.Invoke(); status != tflite.OK {
		return nil, fmt.Errorf("tflite invoke failed")
	}

	// Output 0 is locations [1,N,4], output 1 is class logits [1,N,C].
	clsTensor := d.interpreter.GetOutputTensor(1)
	locs := d.interpreter.GetOutputTensor(0).Float32s()
	logits := clsTensor.Float32s()
	n := clsTensor.Dim(1)
	numClasses := clsTensor.Dim(2)
	if numClasses < 2 {
		return nil, fmt.Errorf("class tensor has %v classes, need background + at least 1", numClasses)
	}
	if n > len(d.priors[0]) {
		return nil, fmt.Errorf("model emits %v anchors, but box priors only cover %v", n, len(d.priors[0]))
	}

	detections := []Detection{}
	for i := 0; i < n; i++ {
		row := logits[i*numClasses : (i+1)*numClasses]
		// Sigmoid is monotonic, so the argmax over raw logits picks the
		// same class. Class 0 is background and never wins.
		top := 1
		for j := 2; j < numClasses; j++ {
			if row[j] > row[top] {
				top = j
			}
		}
		score := sigmoid(row[top])
		if score <= d.params.Threshold {
			continue
		}
		loc := locs[i*4 : i*4+4]
		ycenter := loc[0]/locationScale*d.priors[2][i] + d.priors[0][i]
		xcenter := loc[1]/locationScale*d.priors[3][i] + d.priors[1][i]
		h := math32.Exp(loc[2]/locationScale) * d.priors[2][i]
		w := math32.Exp(loc[3]/locationScale) * d.priors[3][i]
		box := boxes.Rect{
			X1: xcenter - w/2,
			Y1: ycenter - h/2,
			X2: xcenter + w/2,
			Y2: ycenter + h/2,
		}
		detections = append(detections, Detection{
			Class:      top,
			Confidence: score,
			Box:        box.Clamp(1, 1),
		})
	}
	detections = dedupDetections(detections, dedupMinIoU)
	sort.Slice(detections, func(a, b int) bool {
		return detections[a].Confidence < detections[b].Confidence
	})
	return detections, nil
}

func (d *LiteDetector) InputSize() image.Point {
	return image.Pt(d.config.Width, d.config.Height)
}

func (d *LiteDetector) Classes() []string {
	return d.config.Classes
}

func (d *LiteDetector) Close() error {
	d.interpreter.Delete()
	d.options.Delete()
	d.model.Delete()
	return nil
}

func sigmoid(v float32) float32 {
	return 1 / (1 + math32.Exp(-v))
}

// dedupDetections removes overlapping duplicates of the same class.
// Near-identical anchors fire together because the graph has no NMS, so
// the surviving box takes the best confidence among those it absorbed.
func dedupDetections(dets []Detection, minIoU float32) []Detection {
	if len(dets) <= 1 {
		return dets
	}
	bxs := make([]boxes.Box, len(dets))
	classes := make([]int, len(dets))
	for i, det := range dets {
		bxs[i] = det.Box.Box()
		classes[i] = det.Class
	}
	out := []Detection{}
	for _, keep := range boxes.Dedup(bxs, classes, minIoU) {
		det := dets[keep]
		for j := range dets {
			if dets[j].Class == det.Class && dets[j].Confidence > det.Confidence && bxs[keep].IOU(bxs[j]) >= minIoU {
				det.Confidence = dets[j].Confidence
			}
		}
		out = append(out, det)
	}
	return out
}

func loadBoxPriors(filename string) ([4][]float32, error) {
	f, err := os.Open(filename)
	if err != nil {
		return [4][]float32{}, err
	}
	defer f.Close()
	return parseBoxPriors(f)
}

// parseBoxPriors reads the anchor table: 4 whitespace-separated rows
// [ycenter, xcenter, height, width], one column per anchor.
func parseBoxPriors(r io.Reader) ([4][]float32, error) {
	priors := [4][]float32{}
	row := 0
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 1024*1024), 1024*1024) // rows are thousands of anchors long
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if row >= 4 {
			return priors, ErrBadPriors
		}
		fields := strings.Fields(line)
		vals := make([]float32, 0, len(fields))
		for _, field := range fields {
			v, err := strconv.ParseFloat(field, 32)
			if err != nil {
				return priors, fmt.Errorf("box priors row %v: %w", row+1, err)
			}
			vals = append(vals, float32(v))
		}
		priors[row] = vals
		row++
	}
	if err := scanner.Err(); err != nil {
		return priors, err
	}
	if row != 4 {
		return priors, ErrBadPriors
	}
	for i := 1; i < 4; i++ {
		if len(priors[i]) != len(priors[0]) {
			return priors, ErrBadPriors
		}
	}
	return priors, nil
}
