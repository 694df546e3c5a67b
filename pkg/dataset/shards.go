package dataset

import (
	"fmt"
	"io/fs"
	"math/rand"
	"path/filepath"
	"sort"
	"strings"

	"github.com/fieldvision/boxlab/pkg/gen"
	"github.com/fieldvision/boxlab/pkg/labelio"
)

// task is one shard's worth of label files.
type task struct {
	id      string
	files   []string
	outPath string
}

// shuffledLabelFiles walks root for label files and shuffles them, so that
// shards (and the eval holdout) draw evenly from the whole recording rather
// than from contiguous runs of frames. Rect files written by the tracker
// ("...rects.txt") are not labels and are skipped.
func shuffledLabelFiles(root string, rng *rand.Rand) ([]string, error) {
	files := []string{}
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".txt") || strings.HasSuffix(path, "rects.txt") {
			return nil
		}
		files = append(files, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scanning %v: %w", root, err)
	}
	rng.Shuffle(len(files), func(i, j int) {
		files[i], files[j] = files[j], files[i]
	})
	return files, nil
}

// collectClasses gathers every class named across the label files, sorted.
func collectClasses(files []string) ([]string, error) {
	set := map[string]bool{}
	for _, f := range files {
		_, classes, err := labelio.ReadRects(f)
		if err != nil {
			return nil, err
		}
		for _, class := range classes {
			set[class] = true
		}
	}
	classes := make([]string, 0, len(set))
	for class := range set {
		classes = append(classes, class)
	}
	sort.Strings(classes)
	return classes, nil
}

// shardTasks splits files round-robin into at most 'shards' shards, named
// like "train-00". No files means no tasks.
func shardTasks(prefix string, files []string, shards int, outFolder string) []task {
	n := gen.Min(gen.Max(shards, 1), len(files))
	lists := make([][]string, n)
	for i, f := range files {
		lists[i%n] = append(lists[i%n], f)
	}
	tasks := make([]task, 0, n)
	for i, list := range lists {
		id := fmt.Sprintf("%v-%02d", prefix, i)
		tasks = append(tasks, task{
			id:      id,
			files:   list,
			outPath: filepath.Join(outFolder, id+".record"),
		})
	}
	return tasks
}
