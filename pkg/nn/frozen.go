package nn

import (
	"fmt"
	"image"
	"sync"

	"github.com/fieldvision/boxlab/pkg/boxes"
	"gocv.io/x/gocv"
)

// detectionStride is the row width of the SSD output blob [1,1,N,7]:
// [batchId, classId, score, x1, y1, x2, y2].
const detectionStride = 7

// FrozenDetector runs a TensorFlow frozen graph (the full model) through
// OpenCV's DNN module. The graph must be the standard SSD export, whose
// single output is [1,1,N,7] with coordinates normalized to [0,1].
type FrozenDetector struct {
	mu     sync.Mutex // the underlying cv::dnn::Net is not reentrant
	net    gocv.Net
	config *ModelConfig
	params Params
}

// NewFrozenDetector loads a frozen graph (.pb) together with the text graph
// description (.pbtxt) that OpenCV needs to run it.
func NewFrozenDetector(modelPath, graphPath string, config *ModelConfig, params *Params) (*FrozenDetector, error) {
	net := gocv.ReadNet(modelPath, graphPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to read detection model from %v, %v", modelPath, graphPath)
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)
	return &FrozenDetector{
		net:    net,
		config: config,
		params: *params,
	}, nil
}

func (d *FrozenDetector) DetectFrame(img gocv.Mat) ([]Detection, error) {
	blob := gocv.BlobFromImage(img, 1.0/127.5, image.Pt(d.config.Width, d.config.Height),
		gocv.NewScalar(127.5, 127.5, 127.5, 0), true, false)
	defer blob.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	d.net.SetInput(blob, "")
	prob := d.net.Forward("")
	defer prob.Close()

	// gocv exposes the output blob as one flat row of floats.
	detections := []Detection{}
	for i := 0; i+detectionStride <= prob.Total(); i += detectionStride {
		score := prob.GetFloatAt(0, i+2)
		if score <= d.params.Threshold {
			continue
		}
		box := boxes.Rect{
			X1: prob.GetFloatAt(0, i+3),
			Y1: prob.GetFloatAt(0, i+4),
			X2: prob.GetFloatAt(0, i+5),
			Y2: prob.GetFloatAt(0, i+6),
		}
		detections = append(detections, Detection{
			Class:      int(prob.GetFloatAt(0, i+1)),
			Confidence: score,
			Box:        box.Clamp(1, 1),
		})
	}
	return detections, nil
}

func (d *FrozenDetector) InputSize() image.Point {
	return image.Pt(d.config.Width, d.config.Height)
}

func (d *FrozenDetector) Classes() []string {
	return d.config.Classes
}

func (d *FrozenDetector) Close() error {
	return d.net.Close()
}
