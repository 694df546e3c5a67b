package main

import (
	"fmt"
	"io"
	"math/rand"
	"os"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/tfrecord"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("splitrecords", "Re-partition one record file into train and eval record files")
	input := parser.StringPositional(&argparse.Options{Help: "Input record file", Required: true})
	trainOut := parser.String("t", "train", &argparse.Options{Help: "Train output file", Required: false, Default: "train.record"})
	evalOut := parser.String("e", "eval", &argparse.Options{Help: "Eval output file", Required: false, Default: "eval.record"})
	fraction := parser.Float("f", "train-fraction", &argparse.Options{Help: "Probability a record lands in the train output", Required: false, Default: 0.7})
	seed := parser.Int("s", "seed", &argparse.Options{Help: "Random seed, for reproducible splits", Required: false, Default: 42})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	in, err := os.Open(*input)
	check(err)
	defer in.Close()
	trainFile, err := os.Create(*trainOut)
	check(err)
	defer trainFile.Close()
	evalFile, err := os.Create(*evalOut)
	check(err)
	defer evalFile.Close()

	rng := rand.New(rand.NewSource(int64(*seed)))
	reader := tfrecord.NewReader(in)
	trainWriter := tfrecord.NewWriter(trainFile)
	evalWriter := tfrecord.NewWriter(evalFile)
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		check(err)
		if rng.Float64() < *fraction {
			check(trainWriter.Write(payload))
		} else {
			check(evalWriter.Write(payload))
		}
	}
	check(trainFile.Close())
	check(evalFile.Close())
	logger.Infof("%v records: %v train, %v eval", reader.Count(), trainWriter.Count(), evalWriter.Count())
}
