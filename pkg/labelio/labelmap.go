package labelio

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
)

// WriteLabelMap writes label.pbtxt in the format the training pipeline
// expects. Ids are 1-based: id = position in classes + 1, so classes must
// already be in the dataset's sorted order.
func WriteLabelMap(filename string, classes []string) error {
	items := make([]string, 0, len(classes))
	for i, cls := range classes {
		items = append(items, fmt.Sprintf("item {\n  id: %d\n  name:'%s'\n}\n", i+1, cls))
	}
	return os.WriteFile(filename, []byte(strings.Join(items, "\n")), 0644)
}

// ReadLabelMap parses label.pbtxt back into id -> name. It is a minimal
// parser for the exact shape WriteLabelMap produces, tolerant of single or
// double quoted names and flexible whitespace.
func ReadLabelMap(filename string) (map[int]string, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	labels := map[int]string{}
	id := -1
	name := ""
	haveName := false
	for ln, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		switch {
		case strings.HasPrefix(line, "id:"):
			v, err := strconv.Atoi(strings.TrimSpace(line[len("id:"):]))
			if err != nil {
				return nil, fmt.Errorf("%v:%v: bad id %q", filename, ln+1, line)
			}
			id = v
		case strings.HasPrefix(line, "name:"):
			v := strings.TrimSpace(line[len("name:"):])
			v = strings.Trim(v, `'"`)
			name = v
			haveName = true
		case strings.HasPrefix(line, "}"):
			if id >= 0 && haveName {
				labels[id] = name
			}
			id = -1
			name = ""
			haveName = false
		}
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("%v: no items found", filename)
	}
	return labels, nil
}

// LabelMapClasses returns the names from a label map ordered by id.
func LabelMapClasses(labels map[int]string) []string {
	ids := make([]int, 0, len(labels))
	for id := range labels {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	classes := make([]string, 0, len(ids))
	for _, id := range ids {
		classes = append(classes, labels[id])
	}
	return classes
}

// ReadClassList reads the lite model's label file: one class name per line,
// line index = class id, line 0 conventionally the background class.
func ReadClassList(filename string) ([]string, error) {
	raw, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(raw), "\n"), "\n")
	classes := make([]string, len(lines))
	for i, line := range lines {
		classes[i] = strings.TrimSpace(line)
	}
	return classes, nil
}
