// Package videox wraps the gocv video IO used by every tool: opening files
// and cameras with their metadata, writing MJPG movies, rotation metadata
// probing, and the labeler's frame cache.
package videox

import (
	"fmt"

	"gocv.io/x/gocv"
)

// Video is an open capture plus the metadata every tool wants up front.
type Video struct {
	Capture *gocv.VideoCapture
	Path    string // file path, or "camera:N" for devices
	FPS     float64
	Width   int
	Height  int
}

// OpenVideo opens a video file. Failure to open is fatal for every tool,
// so the error carries the path.
func OpenVideo(path string) (*Video, error) {
	capture, err := gocv.OpenVideoCapture(path)
	if err != nil {
		return nil, fmt.Errorf("opening video %v: %w", path, err)
	}
	return newVideo(capture, path), nil
}

// OpenCamera opens a capture device by number.
func OpenCamera(device int) (*Video, error) {
	capture, err := gocv.OpenVideoCapture(device)
	if err != nil {
		return nil, fmt.Errorf("opening camera %v: %w", device, err)
	}
	return newVideo(capture, fmt.Sprintf("camera:%v", device)), nil
}

func newVideo(capture *gocv.VideoCapture, path string) *Video {
	return &Video{
		Capture: capture,
		Path:    path,
		FPS:     capture.Get(gocv.VideoCaptureFPS),
		Width:   int(capture.Get(gocv.VideoCaptureFrameWidth)),
		Height:  int(capture.Get(gocv.VideoCaptureFrameHeight)),
	}
}

// Read decodes the next frame into img. Returns false at end of stream.
func (v *Video) Read(img *gocv.Mat) bool {
	return v.Capture.Read(img)
}

func (v *Video) Close() error {
	return v.Capture.Close()
}

// FirstFrame decodes the first frame of a video file. The caller owns the
// returned Mat.
func FirstFrame(path string) (gocv.Mat, error) {
	v, err := OpenVideo(path)
	if err != nil {
		return gocv.Mat{}, err
	}
	defer v.Close()
	img := gocv.NewMat()
	if !v.Read(&img) {
		img.Close()
		return gocv.Mat{}, fmt.Errorf("reading first frame of %v: empty stream", path)
	}
	return img, nil
}

// NewWriter creates an MJPG movie writer. MJPG keeps individual frames
// intact, which matters when the output is training data.
func NewWriter(path string, fps float64, width, height int) (*gocv.VideoWriter, error) {
	if fps <= 0 {
		fps = 30
	}
	w, err := gocv.VideoWriterFile(path, "MJPG", fps, width, height, true)
	if err != nil {
		return nil, fmt.Errorf("creating movie %v: %w", path, err)
	}
	return w, nil
}
