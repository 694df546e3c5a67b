// Package labelio reads and writes the label text formats shared by the
// labeling, tracking and conversion tools: per-frame rect files, the
// label.pbtxt class map, and the lite model's class list.
package labelio

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fieldvision/boxlab/pkg/boxes"
)

// WriteRects writes one "x1,y1,x2,y2,class" line per box.
// rects and classes must be the same length.
func WriteRects(filename string, rects []boxes.Rect, classes []string) error {
	if len(rects) != len(classes) {
		return fmt.Errorf("writing %v: %v rects vs %v classes", filename, len(rects), len(classes))
	}
	b := strings.Builder{}
	for i, r := range rects {
		b.WriteString(FormatLine(r, classes[i]))
		b.WriteByte('\n')
	}
	return os.WriteFile(filename, []byte(b.String()), 0644)
}

func FormatLine(r boxes.Rect, class string) string {
	return fmt.Sprintf("%v,%v,%v,%v,%s", r.X1, r.Y1, r.X2, r.Y2, class)
}

// ReadRects parses a rect file. The class is the text after the last comma;
// the four fields before it parse as floats and are truncated toward zero,
// which keeps us compatible with files written by tools that format either
// ints or floats. Lines that don't fit the format (including "#path" header
// lines) are skipped.
func ReadRects(filename string) ([]boxes.Rect, []string, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, nil, err
	}
	rects, classes := ParseRects(string(raw))
	return rects, classes, nil
}

func ParseRects(content string) ([]boxes.Rect, []string) {
	rects := []boxes.Rect{}
	classes := []string{}
	for _, line := range strings.Split(content, "\n") {
		parts := strings.Split(strings.TrimSpace(line), ",")
		if len(parts) != 5 {
			continue
		}
		vals := [4]float32{}
		ok := true
		for i := 0; i < 4; i++ {
			f, err := strconv.ParseFloat(strings.TrimSpace(parts[i]), 64)
			if err != nil {
				ok = false
				break
			}
			vals[i] = float32(int(f))
		}
		if !ok {
			continue
		}
		rects = append(rects, boxes.Rect{X1: vals[0], Y1: vals[1], X2: vals[2], Y2: vals[3]})
		classes = append(classes, parts[4])
	}
	return rects, classes
}

// ReadLabelFile reads a label file for dataset conversion. If the first line
// is "#<path>" and that path exists on disk, it names the image the labels
// belong to; otherwise imagePath is empty and the caller falls back to the
// "<stem>.png" convention.
func ReadLabelFile(filename string) (imagePath string, rects []boxes.Rect, classes []string, err error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return "", nil, nil, err
	}
	content := string(raw)
	if first, _, _ := strings.Cut(content, "\n"); strings.HasPrefix(first, "#") {
		p := strings.TrimSpace(first[1:])
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			imagePath = p
		}
	}
	rects, classes = ParseRects(content)
	return imagePath, rects, classes, nil
}
