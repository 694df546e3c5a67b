package dataset

import (
	"fmt"

	"github.com/fieldvision/boxlab/pkg/gen"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/tfrecord"
	"gocv.io/x/gocv"
)

// buildExample converts one label file and its image into an Example.
// A frame with no boxes still produces an example, since those teach the
// trainer what background looks like; negative reports that case.
func buildExample(labels map[string]int, txtPath string) (ex tfrecord.Example, classCounts map[string]int, negative bool, err error) {
	imagePath, rects, classes, err := labelio.ReadLabelFile(txtPath)
	if err != nil {
		return nil, nil, false, err
	}
	if imagePath == "" {
		imagePath = labelio.Stem(txtPath) + ".png"
	}
	img := gocv.IMRead(imagePath, gocv.IMReadColor)
	if img.Empty() {
		return nil, nil, false, fmt.Errorf("unable to read image %v for %v", imagePath, txtPath)
	}
	defer img.Close()

	// Source images can be anything OpenCV reads; records always carry PNG.
	buf, err := gocv.IMEncode(gocv.PNGFileExt, img)
	if err != nil {
		return nil, nil, false, fmt.Errorf("encoding %v: %w", imagePath, err)
	}
	encoded := make([]byte, buf.Len())
	copy(encoded, buf.GetBytes())
	buf.Close()

	width := float32(img.Cols())
	height := float32(img.Rows())
	xmins := []float32{}
	xmaxs := []float32{}
	ymins := []float32{}
	ymaxs := []float32{}
	texts := [][]byte{}
	ids := []int64{}
	classCounts = map[string]int{}
	for i, r := range rects {
		id, ok := labels[classes[i]]
		if !ok {
			return nil, nil, false, fmt.Errorf("unknown class '%v' in %v", classes[i], txtPath)
		}
		xmins = append(xmins, gen.Clamp(r.X1/width, 0, 1))
		xmaxs = append(xmaxs, gen.Clamp(r.X2/width, 0, 1))
		ymins = append(ymins, gen.Clamp(r.Y1/height, 0, 1))
		ymaxs = append(ymaxs, gen.Clamp(r.Y2/height, 0, 1))
		texts = append(texts, []byte(classes[i]))
		// Record ids are 1-based, matching label.pbtxt, with 0 reserved
		// for background.
		ids = append(ids, int64(id+1))
		classCounts[classes[i]]++
	}

	ex = tfrecord.Example{
		"image/height":             tfrecord.Int64Feature(int64(img.Rows())),
		"image/width":              tfrecord.Int64Feature(int64(img.Cols())),
		"image/channels":           tfrecord.Int64Feature(int64(img.Channels())),
		"image/colorspace":         tfrecord.BytesFeature([]byte("RGB")),
		"image/filename":           tfrecord.BytesFeature([]byte(imagePath)),
		"image/source_id":          tfrecord.BytesFeature([]byte(imagePath)),
		"image/image_key":          tfrecord.BytesFeature([]byte(imagePath)),
		"image/encoded":            tfrecord.BytesFeature(encoded),
		"image/format":             tfrecord.BytesFeature([]byte("png")),
		"image/object/bbox/xmin":   tfrecord.FloatListFeature(xmins),
		"image/object/bbox/xmax":   tfrecord.FloatListFeature(xmaxs),
		"image/object/bbox/ymin":   tfrecord.FloatListFeature(ymins),
		"image/object/bbox/ymax":   tfrecord.FloatListFeature(ymaxs),
		"image/object/class/text":  tfrecord.BytesListFeature(texts),
		"image/object/class/label": tfrecord.Int64ListFeature(ids),
	}
	return ex, classCounts, len(rects) == 0, nil
}
