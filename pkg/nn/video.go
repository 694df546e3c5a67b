package nn

import (
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

// FrameFunc receives each decoded frame together with its detections. The
// image is reused between frames, so it is only valid for the duration of
// the call. Returning an error stops the run.
type FrameFunc func(frameIndex int, img gocv.Mat, detections []Detection) error

// RunOnVideo runs the detector over every frame of a movie file. Tiled
// switches on tiled inference for frames larger than the model input.
func RunOnVideo(det Detector, moviePath string, tiled bool, fn FrameFunc) error {
	video, err := videox.OpenVideo(moviePath)
	if err != nil {
		return err
	}
	defer video.Close()

	img := gocv.NewMat()
	defer img.Close()
	frameIndex := 0
	for {
		if ok := video.Read(&img); !ok {
			return nil
		}
		if img.Empty() {
			continue
		}
		var dets []Detection
		if tiled {
			dets, err = TiledInference(det, img, 0)
		} else {
			dets, err = det.DetectFrame(img)
		}
		if err != nil {
			return err
		}
		if err := fn(frameIndex, img, dets); err != nil {
			return err
		}
		frameIndex++
	}
}
