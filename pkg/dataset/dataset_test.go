package dataset

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cyclopcam/logs"
	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/fieldvision/boxlab/pkg/labelio"
	"github.com/fieldvision/boxlab/pkg/tfrecord"
	"github.com/stretchr/testify/require"
	"gocv.io/x/gocv"
)

const (
	frameWidth  = 60
	frameHeight = 40
)

// writeFrame writes a label file and the image next to it.
func writeFrame(t *testing.T, dir string, frame int, rects []boxes.Rect, classes []string) {
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(40, 80, 120, 0), frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer img.Close()
	require.True(t, gocv.IMWrite(filepath.Join(dir, labelio.FrameImageName(frame)), img))
	require.NoError(t, labelio.WriteRects(filepath.Join(dir, labelio.FrameLabelName(frame)), rects, classes))
}

func readAllExamples(t *testing.T, path string) []tfrecord.Example {
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	reader := tfrecord.NewReader(f)
	examples := []tfrecord.Example{}
	for {
		payload, err := reader.Next()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		ex, err := tfrecord.UnmarshalExample(payload)
		require.NoError(t, err)
		examples = append(examples, ex)
	}
	return examples
}

func TestConvert(t *testing.T) {
	dir := t.TempDir()
	w := []string{"w"}
	writeFrame(t, dir, 0, []boxes.Rect{{X1: 10, Y1: 5, X2: 30, Y2: 25}}, w)
	writeFrame(t, dir, 1, []boxes.Rect{{X1: 0, Y1: 0, X2: 20, Y2: 20}, {X1: -5, Y1: 10, X2: 70, Y2: 50}}, []string{"c", "w"})
	writeFrame(t, dir, 2, nil, nil)
	writeFrame(t, dir, 3, []boxes.Rect{{X1: 1, Y1: 1, X2: 9, Y2: 9}}, w)
	writeFrame(t, dir, 4, []boxes.Rect{{X1: 2, Y1: 2, X2: 8, Y2: 8}}, w)
	writeFrame(t, dir, 5, []boxes.Rect{{X1: 3, Y1: 3, X2: 7, Y2: 7}}, w)
	// Tracker rect files and non-label files must be skipped.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "video_rects.txt"), []byte("1,2,3,4,w\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.md"), []byte("scratch"), 0644))

	params := NewParams()
	params.TrainFolder = dir
	params.Shards = 2
	params.Workers = 2
	results, classes, err := Convert(logs.NewTestingLog(t), params)
	require.NoError(t, err)
	require.Equal(t, []string{"c", "w"}, classes)
	require.Len(t, results, 2)
	require.Equal(t, "train-00", results[0].ID)
	require.Equal(t, "train-01", results[1].ID)
	require.Equal(t, 3, results[0].Records)
	require.Equal(t, 3, results[1].Records)

	total := Aggregate(results)
	require.Equal(t, 6, total.Records)
	require.Equal(t, 1, total.Negatives)
	require.Equal(t, map[string]int{"c": 1, "w": 5}, total.ClassCounts)
	require.Greater(t, total.Bytes, int64(0))

	byName := map[string]tfrecord.Example{}
	for _, shard := range []string{"train-00.record", "train-01.record"} {
		for _, ex := range readAllExamples(t, filepath.Join(dir, shard)) {
			byName[string(ex["image/filename"].BytesList[0])] = ex
		}
	}
	require.Len(t, byName, 6)

	ex := byName[filepath.Join(dir, "00000.png")]
	require.NotNil(t, ex)
	require.Equal(t, int64(frameHeight), ex["image/height"].Int64List[0])
	require.Equal(t, int64(frameWidth), ex["image/width"].Int64List[0])
	require.Equal(t, int64(3), ex["image/channels"].Int64List[0])
	require.Equal(t, "png", string(ex["image/format"].BytesList[0]))
	require.Equal(t, "RGB", string(ex["image/colorspace"].BytesList[0]))
	require.InDelta(t, 10.0/frameWidth, ex["image/object/bbox/xmin"].FloatList[0], 1e-6)
	require.InDelta(t, 5.0/frameHeight, ex["image/object/bbox/ymin"].FloatList[0], 1e-6)
	require.InDelta(t, 30.0/frameWidth, ex["image/object/bbox/xmax"].FloatList[0], 1e-6)
	require.InDelta(t, 25.0/frameHeight, ex["image/object/bbox/ymax"].FloatList[0], 1e-6)
	require.Equal(t, "w", string(ex["image/object/class/text"].BytesList[0]))
	require.Equal(t, int64(2), ex["image/object/class/label"].Int64List[0])

	// Class ids follow sorted class order, 1-based. Boxes that spill outside
	// the frame are clamped to [0,1].
	ex = byName[filepath.Join(dir, "00001.png")]
	require.Equal(t, []int64{1, 2}, ex["image/object/class/label"].Int64List)
	require.Equal(t, float32(0), ex["image/object/bbox/xmin"].FloatList[1])
	require.Equal(t, float32(1), ex["image/object/bbox/xmax"].FloatList[1])
	require.Equal(t, float32(1), ex["image/object/bbox/ymax"].FloatList[1])

	// A frame with no boxes still produces a record, with empty object lists.
	ex = byName[filepath.Join(dir, "00002.png")]
	require.NotNil(t, ex)
	require.Empty(t, ex["image/object/bbox/xmin"].FloatList)

	img, err := gocv.IMDecode(ex["image/encoded"].BytesList[0], gocv.IMReadColor)
	require.NoError(t, err)
	defer img.Close()
	require.Equal(t, frameWidth, img.Cols())
	require.Equal(t, frameHeight, img.Rows())
}

func TestConvertEvalSplit(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 10; i++ {
		writeFrame(t, dir, i, []boxes.Rect{{X1: 1, Y1: 1, X2: 5, Y2: 5}}, []string{"b"})
	}
	params := NewParams()
	params.TrainFolder = dir
	params.Eval = true
	params.EvalSplit = 0.2
	params.Shards = 3
	results, classes, err := Convert(logs.NewTestingLog(t), params)
	require.NoError(t, err)
	require.Equal(t, []string{"b"}, classes)

	ids := []string{}
	evalRecords := 0
	trainRecords := 0
	for _, r := range results {
		ids = append(ids, r.ID)
		if strings.HasPrefix(r.ID, "eval") {
			evalRecords += r.Records
		} else {
			trainRecords += r.Records
		}
	}
	require.Equal(t, []string{"eval-00", "eval-01", "train-00", "train-01", "train-02"}, ids)
	require.Equal(t, 2, evalRecords)
	require.Equal(t, 8, trainRecords)
}

func TestConvertEvalFolder(t *testing.T) {
	train := t.TempDir()
	eval := t.TempDir()
	writeFrame(t, train, 0, []boxes.Rect{{X1: 1, Y1: 1, X2: 5, Y2: 5}}, []string{"w"})
	writeFrame(t, train, 1, []boxes.Rect{{X1: 1, Y1: 1, X2: 5, Y2: 5}}, []string{"w"})
	writeFrame(t, eval, 0, []boxes.Rect{{X1: 2, Y1: 2, X2: 6, Y2: 6}}, []string{"c"})

	params := NewParams()
	params.TrainFolder = train
	params.EvalFolder = eval
	params.Shards = 1
	results, classes, err := Convert(logs.NewTestingLog(t), params)
	require.NoError(t, err)
	// Classes from both folders feed the label map.
	require.Equal(t, []string{"c", "w"}, classes)
	require.Len(t, results, 2)
	require.Equal(t, "eval-00", results[0].ID)
	require.Equal(t, 1, results[0].Records)
	require.Equal(t, "train-00", results[1].ID)
	require.Equal(t, 2, results[1].Records)

	// Both shards land in the train folder.
	_, err = os.Stat(filepath.Join(train, "eval-00.record"))
	require.NoError(t, err)
}

func TestConvertPathDirective(t *testing.T) {
	dir := t.TempDir()
	imgDir := filepath.Join(dir, "frames")
	require.NoError(t, os.MkdirAll(imgDir, 0755))
	imgPath := filepath.Join(imgDir, "ball.png")
	img := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(10, 20, 30, 0), frameHeight, frameWidth, gocv.MatTypeCV8UC3)
	defer img.Close()
	require.True(t, gocv.IMWrite(imgPath, img))
	content := "#" + imgPath + "\n" + labelio.FormatLine(boxes.Rect{X1: 4, Y1: 4, X2: 12, Y2: 12}, "w") + "\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "frame.txt"), []byte(content), 0644))

	params := NewParams()
	params.TrainFolder = dir
	params.Shards = 1
	results, _, err := Convert(logs.NewTestingLog(t), params)
	require.NoError(t, err)
	require.Equal(t, 1, results[0].Records)

	examples := readAllExamples(t, filepath.Join(dir, "train-00.record"))
	require.Len(t, examples, 1)
	require.Equal(t, imgPath, string(examples[0]["image/filename"].BytesList[0]))
}

func TestConvertEvalModesExclusive(t *testing.T) {
	params := NewParams()
	params.TrainFolder = t.TempDir()
	params.Eval = true
	params.EvalFolder = "/somewhere/else"
	_, _, err := Convert(logs.NewTestingLog(t), params)
	require.ErrorContains(t, err, "mutually exclusive")
}

func TestConvertEmptyFolder(t *testing.T) {
	params := NewParams()
	params.TrainFolder = t.TempDir()
	results, classes, err := Convert(logs.NewTestingLog(t), params)
	require.NoError(t, err)
	require.Empty(t, results)
	require.Empty(t, classes)
}

func TestConvertMissingImage(t *testing.T) {
	dir := t.TempDir()
	writeFrame(t, dir, 0, []boxes.Rect{{X1: 1, Y1: 1, X2: 5, Y2: 5}}, []string{"w"})
	orphan := filepath.Join(dir, "00042.txt")
	require.NoError(t, labelio.WriteRects(orphan, []boxes.Rect{{X1: 1, Y1: 1, X2: 5, Y2: 5}}, []string{"w"}))

	params := NewParams()
	params.TrainFolder = dir
	params.Shards = 1
	params.Workers = 1
	_, _, err := Convert(logs.NewTestingLog(t), params)
	require.ErrorContains(t, err, "unable to read image")
	require.ErrorContains(t, err, "00042.txt")
}
