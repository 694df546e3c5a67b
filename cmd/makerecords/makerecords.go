package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/dustin/go-humanize"
	"github.com/fieldvision/boxlab/pkg/dataset"
	"github.com/fieldvision/boxlab/pkg/labeldb"
	"github.com/fieldvision/boxlab/pkg/labelio"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("makerecords", "Convert a folder of labeled frames into sharded TFRecord files plus label.pbtxt")
	trainFolder := parser.StringPositional(&argparse.Options{Help: "Folder of labeled frames (images + label txt files)", Required: true})
	evalFolder := parser.String("", "eval-folder", &argparse.Options{Help: "Separate folder of eval frames", Required: false, Default: ""})
	eval := parser.Flag("e", "eval", &argparse.Options{Help: "Hold out a fraction of the train frames for eval", Required: false})
	evalSplit := parser.Float("", "eval-split", &argparse.Options{Help: "Fraction held out with --eval", Required: false, Default: dataset.DefaultEvalSplit})
	shards := parser.Int("s", "shards", &argparse.Options{Help: "Shards per split", Required: false, Default: dataset.DefaultShards})
	workers := parser.Int("w", "workers", &argparse.Options{Help: "Worker goroutines (0 = one per core)", Required: false, Default: 0})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	params := dataset.NewParams()
	params.TrainFolder = *trainFolder
	params.EvalFolder = *evalFolder
	params.Eval = *eval
	params.EvalSplit = *evalSplit
	params.Shards = *shards
	params.Workers = *workers

	results, classes, err := dataset.Convert(logger, params)
	check(err)
	if len(results) == 0 {
		return
	}

	labelMap := filepath.Join(*trainFolder, "label.pbtxt")
	check(labelio.WriteLabelMap(labelMap, classes))
	logger.Infof("Wrote %v (%v classes)", labelMap, len(classes))

	for _, r := range results {
		logger.Infof("[%v] %v records, %v negative, %v", r.ID, r.Records, r.Negatives, humanize.IBytes(uint64(r.Bytes)))
	}
	total := dataset.Aggregate(results)
	counts := []string{}
	for _, class := range classes {
		counts = append(counts, fmt.Sprintf("%v=%v", class, total.ClassCounts[class]))
	}
	logger.Infof("Total: %v records, %v negative, %v (%v)",
		total.Records, total.Negatives, humanize.IBytes(uint64(total.Bytes)), strings.Join(counts, " "))

	index := labeldb.OpenAdvisory(logger, *trainFolder)
	defer index.Close()
	index.AddBuild(*trainFolder, *shards, total.Records, total.Negatives, total.Bytes)
}
