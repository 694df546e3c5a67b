package main

import (
	"fmt"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/dustin/go-humanize"
	"github.com/fieldvision/boxlab/pkg/labeldb"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("datasets", "List recorded labeling runs and dataset builds")
	root := parser.String("r", "root", &argparse.Options{Help: "Folder holding the run index (boxlab.sqlite)", Required: false, Default: "."})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	index, err := labeldb.Open(logger, *root)
	check(err)
	defer index.Close()

	runs, err := index.Runs()
	check(err)
	builds, err := index.Builds()
	check(err)

	fmt.Printf("%v runs\n", len(runs))
	for _, r := range runs {
		tracker := r.Tracker
		if tracker == "" {
			tracker = "-"
		}
		fmt.Printf("  %v  %-12v %-5v scale %.2f  %4v frames  [%v]  %v\n",
			r.CreatedAt.Get().Format("2006-01-02 15:04"), r.Tool, tracker, r.Scale, r.Frames, r.Classes, r.Video)
	}
	fmt.Printf("%v builds\n", len(builds))
	for _, b := range builds {
		fmt.Printf("  %v  %2v shards  %5v records (%v negative)  %-8v  %v\n",
			b.CreatedAt.Get().Format("2006-01-02 15:04"), b.Shards, b.Records, b.Negatives, humanize.IBytes(uint64(b.Bytes)), b.Folder)
	}
}
