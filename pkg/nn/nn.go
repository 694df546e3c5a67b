// Package nn runs the trained detectors: the full frozen graph through
// OpenCV's DNN module, and the lite model through TensorFlow Lite. Both
// produce the same Detection type, so every tool downstream is agnostic
// about which model produced its boxes.
package nn

import (
	"image"

	"github.com/fieldvision/boxlab/pkg/boxes"
	"gocv.io/x/gocv"
)

const DefaultThreshold = 0.6

// Detection is one object found in a frame. Box is normalized to [0,1] on
// both axes, so it is independent of frame resolution.
type Detection struct {
	Class      int        `json:"class"`
	Confidence float32    `json:"confidence"`
	Box        boxes.Rect `json:"box"`
}

// Detection parameters
type Params struct {
	Threshold float32 // Minimum confidence. Detections at or below this are dropped.
}

func NewParams() *Params {
	return &Params{Threshold: DefaultThreshold}
}

// Detector runs a detection model on single frames.
type Detector interface {
	// DetectFrame runs the model on a BGR image as decoded by gocv.
	// Implementations are safe for concurrent calls.
	DetectFrame(img gocv.Mat) ([]Detection, error)

	// InputSize is the model's native input resolution.
	InputSize() image.Point

	// Classes returns the class names, indexed by Detection.Class.
	Classes() []string

	// Close releases the model (C++ objects underneath).
	Close() error
}

// VideoLabels is the JSON dump of a detection run over a movie.
type VideoLabels struct {
	Movie   string         `json:"movie"`
	Classes []string       `json:"classes"`
	Frames  []*FrameLabels `json:"frames"`
}

type FrameLabels struct {
	Frame   int         `json:"frame"`
	Objects []Detection `json:"objects"`
}

// PixelRect scales a normalized detection rect to pixel coordinates.
func PixelRect(r boxes.Rect, width, height int) boxes.Rect {
	return boxes.Rect{
		X1: r.X1 * float32(width),
		Y1: r.Y1 * float32(height),
		X2: r.X2 * float32(width),
		Y2: r.Y2 * float32(height),
	}
}
