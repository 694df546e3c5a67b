package labelio

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Stem returns the path without its extension ("clips/a.mp4" -> "clips/a").
func Stem(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path))
}

// RectFilePath is where the initial boxes for a video live:
// <dir>/<video>_rects.txt next to the video.
func RectFilePath(videoPath string) string {
	return Stem(videoPath) + "_rects.txt"
}

// TrackRunDir is the output directory of a tracking run. The scale keeps
// the original %f formatting so runs at different scales never collide.
func TrackRunDir(videoPath, tracker string, scale float64) string {
	return fmt.Sprintf("%s_%s_%f", Stem(videoPath), tracker, scale)
}

// LabelRunDir is the output directory of a labelframes run.
func LabelRunDir(videoPath string) string {
	return Stem(videoPath)
}

func FrameImageName(frame int) string {
	return fmt.Sprintf("%05d.png", frame)
}

func FrameLabelName(frame int) string {
	return fmt.Sprintf("%05d.txt", frame)
}

// AnnotatedFrameName is the boxes-burned-in copy saved next to the clean frame.
func AnnotatedFrameName(frame int) string {
	return fmt.Sprintf("rect_%05d.png", frame)
}
