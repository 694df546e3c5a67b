// Package dataset converts labeled frames into sharded TFRecord files for
// the object detection trainer.
package dataset

import (
	"fmt"
	"math/rand"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/gen"
	"github.com/fieldvision/boxlab/pkg/tfrecord"
)

const (
	DefaultShards    = 10
	DefaultEvalSplit = 0.15

	// The shuffle is seeded so that reruns over the same data produce the
	// same train/eval split.
	shuffleSeed = 42
)

type Params struct {
	TrainFolder string
	Eval        bool    // hold out a fraction of the train data for eval
	EvalSplit   float64 // fraction held out when Eval is set
	EvalFolder  string  // separate eval data, mutually exclusive with Eval
	Shards      int     // requested shards per split
	Workers     int     // worker goroutines (0 = NumCPU)
}

func NewParams() *Params {
	return &Params{
		Shards:    DefaultShards,
		EvalSplit: DefaultEvalSplit,
	}
}

// Result summarizes one written shard.
type Result struct {
	ID          string
	Records     int
	ClassCounts map[string]int
	Negatives   int
	Bytes       int64
}

// Aggregate sums shard results for the final summary.
func Aggregate(results []Result) Result {
	total := Result{ID: "total", ClassCounts: map[string]int{}}
	for _, r := range results {
		total.Records += r.Records
		total.Negatives += r.Negatives
		total.Bytes += r.Bytes
		for class, n := range r.ClassCounts {
			total.ClassCounts[class] += n
		}
	}
	return total
}

type shardOutcome struct {
	result Result
	err    error
}

// Convert walks the train (and optionally eval) folders, splits the label
// files into shards, and writes them in parallel. It returns the per-shard
// results and the sorted class list.
func Convert(log logs.Log, params *Params) ([]Result, []string, error) {
	if params.Eval && params.EvalFolder != "" {
		return nil, nil, fmt.Errorf("eval split and eval folder are mutually exclusive")
	}
	rng := rand.New(rand.NewSource(shuffleSeed))
	trainFiles, err := shuffledLabelFiles(params.TrainFolder, rng)
	if err != nil {
		return nil, nil, err
	}
	evalFiles := []string{}
	if params.EvalFolder != "" {
		evalFiles, err = shuffledLabelFiles(params.EvalFolder, rng)
		if err != nil {
			return nil, nil, err
		}
	} else if params.Eval {
		split := int(float64(len(trainFiles)) * params.EvalSplit)
		log.Infof("Holding out %v of %v frames for eval", split, len(trainFiles))
		evalFiles = trainFiles[:split]
		trainFiles = trainFiles[split:]
	}
	if len(trainFiles) == 0 && len(evalFiles) == 0 {
		log.Warnf("No label files found in %v", params.TrainFolder)
		return nil, nil, nil
	}

	all := append(append([]string{}, trainFiles...), evalFiles...)
	classes, err := collectClasses(all)
	if err != nil {
		return nil, nil, err
	}
	labels := map[string]int{}
	for i, class := range classes {
		labels[class] = i
	}
	log.Infof("%v train frames, %v eval frames, classes: %v", len(trainFiles), len(evalFiles), strings.Join(classes, ", "))

	tasks := shardTasks("train", trainFiles, params.Shards, params.TrainFolder)
	tasks = append(tasks, shardTasks("eval", evalFiles, params.Shards, params.TrainFolder)...)

	nWorkers := params.Workers
	if nWorkers <= 0 {
		nWorkers = runtime.NumCPU()
	}
	if nWorkers > len(tasks) {
		nWorkers = len(tasks)
	}
	taskQueue := make(chan task, len(tasks))
	for _, tk := range tasks {
		taskQueue <- tk
	}
	close(taskQueue)

	outcomes := make(chan shardOutcome, len(tasks))
	var wg sync.WaitGroup
	for i := 0; i < nWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for tk := range taskQueue {
				result, err := writeShard(log, labels, tk)
				outcomes <- shardOutcome{result: result, err: err}
			}
		}()
	}
	wg.Wait()

	results := []Result{}
	var firstError error
	for _, outcome := range gen.Drain(outcomes) {
		if outcome.err != nil {
			if firstError == nil {
				firstError = outcome.err
			}
			continue
		}
		results = append(results, outcome.result)
	}
	if firstError != nil {
		return results, classes, firstError
	}
	sort.Slice(results, func(i, j int) bool { return results[i].ID < results[j].ID })
	return results, classes, nil
}

// writeShard writes one TFRecord shard. Any frame that fails to convert
// fails the whole shard.
func writeShard(log logs.Log, labels map[string]int, tk task) (Result, error) {
	res := Result{ID: tk.id, ClassCounts: map[string]int{}}
	log.Infof("[%v] writing %v frames to %v", tk.id, len(tk.files), tk.outPath)
	f, err := os.Create(tk.outPath)
	if err != nil {
		return res, err
	}
	defer f.Close()
	writer := tfrecord.NewWriter(f)
	for _, txtPath := range tk.files {
		ex, counts, negative, err := buildExample(labels, txtPath)
		if err != nil {
			return res, fmt.Errorf("shard %v: %w", tk.id, err)
		}
		if err := writer.Write(ex.Marshal()); err != nil {
			return res, fmt.Errorf("shard %v: writing record for %v: %w", tk.id, txtPath, err)
		}
		res.Records++
		for class, n := range counts {
			res.ClassCounts[class] += n
		}
		if negative {
			res.Negatives++
		}
	}
	res.Bytes = writer.BytesWritten()
	return res, f.Close()
}
