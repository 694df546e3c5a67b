package calib

import (
	"os"
	"path/filepath"

	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/videox"
	"gocv.io/x/gocv"
)

// ShowFunc lets the caller display each frame (annotated with corners when
// the chessboard was found). Returning false aborts collection.
type ShowFunc func(frame gocv.Mat, accepted int) bool

// CollectFromVideo samples chessboard observations from a stream: one
// sampling attempt every SampleInterval, until MaxFrames observations are
// accepted or the stream ends. A failed attempt still waits out the
// interval, which gives the operator time to move the board.
func CollectFromVideo(log logs.Log, video *videox.Video, show ShowFunc) ([]Observation, int, int, error) {
	fps := int(video.FPS)
	if fps <= 0 {
		fps = 30
	}
	interval := int(SampleInterval.Seconds()) * fps

	obs := []Observation{}
	elapsed := 0
	lastSample := -interval // so the first eligible frame samples immediately
	img := gocv.NewMat()
	defer img.Close()
	for len(obs) < MaxFrames {
		if ok := video.Read(&img); !ok {
			log.Infof("Stream ended after %v observations", len(obs))
			break
		}
		elapsed++
		if elapsed-lastSample >= interval {
			lastSample = elapsed
			if corners, found := FindCorners(img); found {
				obs = append(obs, Observation{Corners: corners})
				log.Infof("Added calibration frame %v of %v", len(obs), MaxFrames)
			}
		}
		if show != nil && !show(img, len(obs)) {
			break
		}
	}
	return obs, video.Width, video.Height, nil
}

// CollectFromImages reads every file in a folder and keeps the ones with a
// detectable chessboard. The reported size is that of the last readable
// image.
func CollectFromImages(log logs.Log, folder string, show ShowFunc) ([]Observation, int, int, error) {
	entries, err := os.ReadDir(folder)
	if err != nil {
		return nil, 0, 0, err
	}
	obs := []Observation{}
	width, height := 0, 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(folder, entry.Name())
		img := gocv.IMRead(path, gocv.IMReadColor)
		if img.Empty() {
			img.Close()
			log.Warnf("Skipping unreadable image %v", path)
			continue
		}
		width = img.Cols()
		height = img.Rows()
		if corners, found := FindCorners(img); found {
			obs = append(obs, Observation{Corners: corners})
			log.Infof("Added calibration frame %v (%v)", len(obs), entry.Name())
		}
		stop := show != nil && !show(img, len(obs))
		img.Close()
		if stop {
			break
		}
	}
	return obs, width, height, nil
}
