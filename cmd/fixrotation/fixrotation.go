package main

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/videox"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func main() {
	parser := argparse.NewParser("fixrotation",
		"Re-encode videos whose rotation lives only in metadata. OpenCV ignores the rotate tag, "+
			"so portrait clips must have the rotation baked into the pixels before labeling.")
	folder := parser.StringPositional(&argparse.Options{Help: "Folder containing videos", Required: true})
	dry := parser.Flag("", "dry", &argparse.Options{Help: "Only report what would be converted", Required: false})
	del := parser.Flag("d", "delete", &argparse.Options{Help: "Delete originals after a successful re-encode", Required: false})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	converted := 0
	err = filepath.WalkDir(*folder, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(path, ".mp4") {
			return nil
		}
		deg, err := videox.Rotation(path)
		if err != nil {
			return err
		}
		if deg == 0 {
			return nil
		}
		out := labelio.Stem(path) + "_rotated.mp4"
		logger.Infof("%v is rotated %v degrees, converting to %v", path, deg, out)
		if *dry {
			return nil
		}
		if err := videox.BakeRotation(path, out); err != nil {
			return err
		}
		converted++
		if *del {
			logger.Infof("Removing %v", path)
			return os.Remove(path)
		}
		return nil
	})
	check(err)
	logger.Infof("Converted %v videos", converted)
}
