// Package track follows labeled boxes through a video with OpenCV's
// single-object trackers, and tightens them back up with per-class
// refinement when the tracker drifts.
package track

import (
	"fmt"
	"sort"
	"strings"

	"gocv.io/x/gocv"
	"gocv.io/x/gocv/contrib"
)

// DefaultTracker is what the tools use when no tracker is named.
const DefaultTracker = "csrt"

// CSRT and KCF live in OpenCV contrib, MIL in core.
var trackerFactories = map[string]func() gocv.Tracker{
	"csrt": func() gocv.Tracker { return contrib.NewTrackerCSRT() },
	"kcf":  func() gocv.Tracker { return contrib.NewTrackerKCF() },
	"mil":  func() gocv.Tracker { return gocv.NewTrackerMIL() },
}

// TrackerNames returns the names of the available trackers, sorted.
func TrackerNames() []string {
	names := make([]string, 0, len(trackerFactories))
	for name := range trackerFactories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewTracker creates a single tracker instance by name.
func NewTracker(name string) (gocv.Tracker, error) {
	factory := trackerFactories[name]
	if factory == nil {
		return nil, fmt.Errorf("unknown tracker '%v' (valid trackers: %v)", name, strings.Join(TrackerNames(), ", "))
	}
	return factory(), nil
}
