package labelio

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/fieldvision/boxlab/pkg/boxes"
	"github.com/stretchr/testify/require"
)

func TestRectsRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "frame_rects.txt")

	rects := []boxes.Rect{
		{X1: 10, Y1: 20, X2: 110, Y2: 220},
		{X1: 5, Y1: 6, X2: 7, Y2: 8},
	}
	classes := []string{"w", "c"}
	require.NoError(t, WriteRects(fn, rects, classes))

	gotRects, gotClasses, err := ReadRects(fn)
	require.NoError(t, err)
	require.Equal(t, rects, gotRects)
	require.Equal(t, classes, gotClasses)

	require.Error(t, WriteRects(fn, rects, []string{"w"}))
}

func TestParseRects(t *testing.T) {
	content := "10.7,20.2,110.9,220.5,w\n" + // floats truncate toward zero
		"#/not/a/real/image.png\n" + // path header has the wrong field count
		"1,2,3,4\n" + // too few fields
		"1,2,3,4,5,6\n" + // too many fields
		"a,2,3,4,w\n" + // unparseable number
		"  1, 2, 3, 4 ,c\n" // whitespace tolerated

	rects, classes := ParseRects(content)
	require.Equal(t, []boxes.Rect{
		{X1: 10, Y1: 20, X2: 110, Y2: 220},
		{X1: 1, Y1: 2, X2: 3, Y2: 4},
	}, rects)
	require.Equal(t, []string{"w", "c"}, classes)
}

func TestReadLabelFilePathDirective(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "elsewhere.png")
	require.NoError(t, os.WriteFile(img, []byte("png"), 0644))

	fn := filepath.Join(dir, "00010.txt")
	require.NoError(t, os.WriteFile(fn, []byte("#"+img+"\n1,2,3,4,w\n"), 0644))
	imagePath, rects, classes, err := ReadLabelFile(fn)
	require.NoError(t, err)
	require.Equal(t, img, imagePath)
	require.Len(t, rects, 1)
	require.Equal(t, []string{"w"}, classes)

	// A directive pointing at a missing file is ignored
	require.NoError(t, os.WriteFile(fn, []byte("#/nope/missing.png\n1,2,3,4,w\n"), 0644))
	imagePath, _, _, err = ReadLabelFile(fn)
	require.NoError(t, err)
	require.Equal(t, "", imagePath)
}

func TestNames(t *testing.T) {
	require.Equal(t, "clips/a", Stem("clips/a.mp4"))
	require.Equal(t, "clips/a_rects.txt", RectFilePath("clips/a.mp4"))
	require.Equal(t, "clips/a_csrt_1.000000", TrackRunDir("clips/a.mp4", "csrt", 1.0))
	require.Equal(t, "clips/a_kcf_1.500000", TrackRunDir("clips/a.mp4", "kcf", 1.5))
	require.Equal(t, "clips/a", LabelRunDir("clips/a.mp4"))
	require.Equal(t, "00012.png", FrameImageName(12))
	require.Equal(t, "00012.txt", FrameLabelName(12))
	require.Equal(t, "rect_00012.png", AnnotatedFrameName(12))
}

func TestLabelMapRoundTrip(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "label.pbtxt")
	require.NoError(t, WriteLabelMap(fn, []string{"c", "w"}))

	raw, err := os.ReadFile(fn)
	require.NoError(t, err)
	require.Equal(t, "item {\n  id: 1\n  name:'c'\n}\n\nitem {\n  id: 2\n  name:'w'\n}\n", string(raw))

	labels, err := ReadLabelMap(fn)
	require.NoError(t, err)
	require.Equal(t, map[int]string{1: "c", 2: "w"}, labels)
	require.Equal(t, []string{"c", "w"}, LabelMapClasses(labels))
}

func TestReadLabelMapDoubleQuotes(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "label.pbtxt")
	require.NoError(t, os.WriteFile(fn, []byte("item {\n  id: 1\n  name: \"ball\"\n}\n"), 0644))
	labels, err := ReadLabelMap(fn)
	require.NoError(t, err)
	require.Equal(t, map[int]string{1: "ball"}, labels)

	require.NoError(t, os.WriteFile(fn, []byte("nothing here"), 0644))
	_, err = ReadLabelMap(fn)
	require.Error(t, err)
}

func TestReadClassList(t *testing.T) {
	dir := t.TempDir()
	fn := filepath.Join(dir, "labels.txt")
	require.NoError(t, os.WriteFile(fn, []byte("background\nwhiffle\ncube\n"), 0644))
	classes, err := ReadClassList(fn)
	require.NoError(t, err)
	require.Equal(t, []string{"background", "whiffle", "cube"}, classes)
}
