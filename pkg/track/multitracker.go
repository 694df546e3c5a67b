package track

import (
	"fmt"
	"image"

	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"gocv.io/x/gocv"
)

// MultiTracker tracks several labeled boxes through a video, one OpenCV
// tracker instance per box. A tracker that fails to initialize or update
// leaves a nil box at its index, so indices stay aligned with classes.
type MultiTracker struct {
	log      logs.Log
	name     string
	trackers []gocv.Tracker
	classes  []string
}

// NewMultiTracker initializes one tracker per box on the given frame.
// A box whose tracker refuses to initialize is dropped with a warning.
func NewMultiTracker(log logs.Log, name string, frame gocv.Mat, bxs []boxes.Box, classes []string) (*MultiTracker, error) {
	if len(bxs) != len(classes) {
		return nil, fmt.Errorf("%v boxes but %v classes", len(bxs), len(classes))
	}
	mt := &MultiTracker{
		log:     log,
		name:    name,
		classes: classes,
	}
	for i, box := range bxs {
		tracker, err := NewTracker(name)
		if err != nil {
			mt.Close()
			return nil, err
		}
		if !tracker.Init(frame, box.ImageRect()) {
			log.Warnf("Unable to initialize tracker %v (%v)", i, classes[i])
			tracker.Close()
			tracker = nil
		}
		mt.trackers = append(mt.trackers, tracker)
	}
	return mt, nil
}

func (mt *MultiTracker) Name() string { return mt.name }

func (mt *MultiTracker) Len() int { return len(mt.trackers) }

func (mt *MultiTracker) Classes() []string { return mt.classes }

// Update advances all trackers to the given frame. A failed tracker yields
// a nil box, and its annotated class gains a [FAILURE] prefix.
func (mt *MultiTracker) Update(frame gocv.Mat) ([]*boxes.Box, []string) {
	bxs := make([]*boxes.Box, len(mt.trackers))
	annotated := make([]string, len(mt.trackers))
	for i, tracker := range mt.trackers {
		var rect image.Rectangle
		ok := tracker != nil
		if ok {
			rect, ok = tracker.Update(frame)
		}
		if !ok {
			mt.log.Warnf("Tracking failure for object %v", i)
			annotated[i] = fmt.Sprintf("[FAILURE] %v:%v", i, mt.classes[i])
			continue
		}
		box := boxes.FromImageRect(rect)
		bxs[i] = &box
		annotated[i] = fmt.Sprintf("%v:%v", i, mt.classes[i])
	}
	return bxs, annotated
}

// Reinit replaces tracker i, typically after a human correction or a
// refinement moved its box.
func (mt *MultiTracker) Reinit(i int, frame gocv.Mat, box boxes.Box) error {
	if mt.trackers[i] != nil {
		mt.trackers[i].Close()
		mt.trackers[i] = nil
	}
	tracker, err := NewTracker(mt.name)
	if err != nil {
		return err
	}
	if !tracker.Init(frame, box.ImageRect()) {
		tracker.Close()
		return fmt.Errorf("unable to reinitialize tracker %v", i)
	}
	mt.trackers[i] = tracker
	return nil
}

func (mt *MultiTracker) Close() {
	for _, tracker := range mt.trackers {
		if tracker != nil {
			tracker.Close()
		}
	}
	mt.trackers = nil
}
