package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/labelio"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

// convertFile turns one legacy label file into "<stem>.txt". Legacy files
// start with a path header line, which is dropped along with any line whose
// class has no mapping. Returns the lines that survived.
func convertFile(path string, mapping map[string]string) (kept []string, dropped int, err error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, 0, err
	}
	_, rest, _ := strings.Cut(string(raw), "\n")
	rects, classes := labelio.ParseRects(rest)
	for i, r := range rects {
		to, ok := mapping[strings.TrimSpace(classes[i])]
		if !ok {
			dropped++
			continue
		}
		kept = append(kept, labelio.FormatLine(r, to))
	}
	return kept, dropped, nil
}

func main() {
	parser := argparse.NewParser("renamelabels", "Convert legacy label files: rename classes, drop unmapped lines, write <stem>.txt and delete the original")
	folder := parser.StringPositional(&argparse.Options{Help: "Folder of legacy label files", Required: true})
	maps := parser.StringList("m", "map", &argparse.Options{Help: "Class rename old=new, repeatable (eg white_whiffle=w)", Required: true})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	mapping := map[string]string{}
	for _, m := range *maps {
		from, to, ok := strings.Cut(m, "=")
		if !ok || from == "" || to == "" {
			check(fmt.Errorf("bad mapping '%v': want old=new", m))
		}
		mapping[from] = to
	}

	entries, err := os.ReadDir(*folder)
	check(err)

	wrote, emptied, dropped := 0, 0, 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(*folder, e.Name())
		kept, droppedHere, err := convertFile(path, mapping)
		if err != nil {
			check(fmt.Errorf("%v: %w", path, err))
		}
		dropped += droppedHere

		stem, _, _ := strings.Cut(e.Name(), ".")
		outPath := filepath.Join(*folder, stem+".txt")
		if len(kept) > 0 {
			check(os.WriteFile(outPath, []byte(strings.Join(kept, "\n")+"\n"), 0644))
			wrote++
		} else {
			emptied++
			logger.Infof("%v: no classes survived", e.Name())
		}
		// The legacy file goes away either way, but never the file we
		// just wrote.
		if len(kept) == 0 || outPath != path {
			check(os.Remove(path))
		}
	}
	logger.Infof("Converted %v label files (%v empty, %v lines dropped)", wrote, emptied, dropped)
}
