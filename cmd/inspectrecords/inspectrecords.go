package main

import (
	"bytes"
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/akamensky/argparse"
	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/tfrecord"
	"github.com/fogleman/gg"
	"golang.org/x/image/font/basicfont"
)

func check(err error) {
	if err != nil {
		panic(err)
	}
}

func renderExample(ex tfrecord.Example, fontPath, outPath string) error {
	encoded := ex["image/encoded"].BytesList
	if len(encoded) == 0 {
		return fmt.Errorf("no image/encoded feature")
	}
	im, err := png.Decode(bytes.NewReader(encoded[0]))
	if err != nil {
		return fmt.Errorf("decoding image: %w", err)
	}
	width := float64(im.Bounds().Dx())
	height := float64(im.Bounds().Dy())

	ctx := gg.NewContextForImage(im)
	if fontPath != "" {
		if err := ctx.LoadFontFace(fontPath, 14); err != nil {
			return fmt.Errorf("loading font %v: %w", fontPath, err)
		}
	} else {
		ctx.SetFontFace(basicfont.Face7x13)
	}

	xmins := ex["image/object/bbox/xmin"].FloatList
	xmaxs := ex["image/object/bbox/xmax"].FloatList
	ymins := ex["image/object/bbox/ymin"].FloatList
	ymaxs := ex["image/object/bbox/ymax"].FloatList
	texts := ex["image/object/class/text"].BytesList
	ctx.SetRGB(1, 0, 0)
	ctx.SetLineWidth(2)
	for i := range xmins {
		x := float64(xmins[i]) * width
		y := float64(ymins[i]) * height
		w := float64(xmaxs[i]-xmins[i]) * width
		h := float64(ymaxs[i]-ymins[i]) * height
		ctx.DrawRectangle(x, y, w, h)
		ctx.Stroke()
		if i < len(texts) {
			ctx.DrawString(string(texts[i]), x+3, y+13)
		}
	}
	return ctx.SavePNG(outPath)
}

func main() {
	parser := argparse.NewParser("inspectrecords", "Decode a record file and render its frames with their boxes burned in")
	input := parser.StringPositional(&argparse.Options{Help: "Record file", Required: true})
	out := parser.String("o", "out", &argparse.Options{Help: "Output folder", Required: false, Default: "inspect"})
	font := parser.String("", "font", &argparse.Options{Help: "TTF font for class text (default: built-in bitmap font)", Required: false, Default: ""})
	err := parser.Parse(os.Args)
	if err != nil {
		fmt.Print(parser.Usage(err))
		os.Exit(1)
	}

	logger, _ := logs.NewLog()

	f, err := os.Open(*input)
	check(err)
	defer f.Close()
	check(os.MkdirAll(*out, 0755))

	reader := tfrecord.NewReader(f)
	n := 0
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		check(err)
		ex, err := tfrecord.UnmarshalExample(payload)
		if err != nil {
			check(fmt.Errorf("record %v: %w", n, err))
		}
		outPath := filepath.Join(*out, fmt.Sprintf("%05d.png", n))
		if err := renderExample(ex, *font, outPath); err != nil {
			check(fmt.Errorf("record %v: %w", n, err))
		}
		n++
	}
	logger.Infof("Rendered %v frames into %v", n, *out)
}
