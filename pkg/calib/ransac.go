package calib

import (
	"fmt"
	"math/rand"

	"github.com/cyclopcam/logs"
)

const (
	ransacIterations = 100
	ransacSampleSize = 10
)

// CalibrateFunc runs one calibration over a sample of observations.
type CalibrateFunc func(obs []Observation, width, height int) (*Calibration, error)

// Ransac calibrates repeatedly on random samples (with replacement) and
// keeps the calibration with the lowest reprojection error. A bad
// chessboard detection poisons every sample containing it, so the samples
// that dodge it win. calibrate is normally nil, meaning Calibrate; tests
// inject their own.
func Ransac(log logs.Log, obs []Observation, width, height int, calibrate CalibrateFunc) (*Calibration, error) {
	if len(obs) < MinFrames {
		return nil, fmt.Errorf("only %v usable chessboard frames, need at least %v", len(obs), MinFrames)
	}
	if calibrate == nil {
		calibrate = Calibrate
	}
	var best *Calibration
	for i := 0; i < ransacIterations; i++ {
		sample := make([]Observation, ransacSampleSize)
		for j := range sample {
			sample[j] = obs[rand.Intn(len(obs))]
		}
		c, err := calibrate(sample, width, height)
		if err != nil {
			log.Warnf("Calibration attempt %v failed: %v", i, err)
			continue
		}
		if best == nil || c.RMS < best.RMS {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("all %v calibration attempts failed", ransacIterations)
	}
	log.Infof("Best RANSAC RMS error: %.4f", best.RMS)
	return best, nil
}
