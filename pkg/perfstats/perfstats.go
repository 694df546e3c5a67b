// Package perfstats tracks how long per-frame work takes, for the live HUD
// readouts and the end-of-run summaries.
package perfstats

import "time"

// fpsWindow is how many recent samples the FPS readout averages over. Long
// enough that the number doesn't flicker, short enough that a slowdown
// shows up within a second of video.
const fpsWindow = 30

// TimeAccumulator records per-frame durations. The zero value is ready to
// use. Average covers the whole run; FPS covers only the last fpsWindow
// samples, so the HUD follows the current rate rather than the lifetime
// mean.
type TimeAccumulator struct {
	Samples int64
	Total   time.Duration

	recent    [fpsWindow]time.Duration
	recentSum time.Duration
	filled    int
	next      int
}

func (a *TimeAccumulator) Reset() {
	*a = TimeAccumulator{}
}

func (a *TimeAccumulator) AddSample(v time.Duration) {
	a.Samples++
	a.Total += v
	if a.filled == len(a.recent) {
		a.recentSum -= a.recent[a.next]
	} else {
		a.filled++
	}
	a.recent[a.next] = v
	a.recentSum += v
	a.next = (a.next + 1) % len(a.recent)
}

// Average is the mean duration over every sample.
func (a *TimeAccumulator) Average() time.Duration {
	if a.Samples == 0 {
		return 0
	}
	return a.Total / time.Duration(a.Samples)
}

// FPS converts the recent mean duration into a rate.
func (a *TimeAccumulator) FPS() float64 {
	if a.filled == 0 || a.recentSum <= 0 {
		return 0
	}
	return float64(a.filled) * float64(time.Second) / float64(a.recentSum)
}
