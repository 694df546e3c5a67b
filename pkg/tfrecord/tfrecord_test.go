package tfrecord

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/encoding/protowire"
)

func TestFramingRoundTrip(t *testing.T) {
	buf := bytes.Buffer{}
	w := NewWriter(&buf)
	payloads := [][]byte{
		[]byte("first"),
		{},
		[]byte("a longer third payload with some bytes in it"),
	}
	for _, p := range payloads {
		require.NoError(t, w.Write(p))
	}
	require.Equal(t, 3, w.Count())
	require.Equal(t, int64(buf.Len()), w.BytesWritten())

	r := NewReader(bytes.NewReader(buf.Bytes()))
	for _, want := range payloads {
		got, err := r.Next()
		require.NoError(t, err)
		require.Equal(t, want, got)
	}
	_, err := r.Next()
	require.Equal(t, io.EOF, err)
	require.Equal(t, 3, r.Count())
}

func TestFramingCorruption(t *testing.T) {
	buf := bytes.Buffer{}
	w := NewWriter(&buf)
	require.NoError(t, w.Write([]byte("payload")))

	// Flip a payload byte
	raw := append([]byte{}, buf.Bytes()...)
	raw[12] ^= 0xff
	_, err := NewReader(bytes.NewReader(raw)).Next()
	require.ErrorIs(t, err, ErrBadRecord)

	// Flip a length byte
	raw = append([]byte{}, buf.Bytes()...)
	raw[0] ^= 0xff
	_, err = NewReader(bytes.NewReader(raw)).Next()
	require.ErrorIs(t, err, ErrBadRecord)

	// Truncate mid-payload
	raw = buf.Bytes()[:14]
	_, err = NewReader(bytes.NewReader(raw)).Next()
	require.ErrorIs(t, err, ErrBadRecord)

	// io.EOF only at a clean record boundary
	r := NewReader(bytes.NewReader(buf.Bytes()))
	_, err = r.Next()
	require.NoError(t, err)
	_, err = r.Next()
	require.Equal(t, io.EOF, err)
}

func TestExampleRoundTrip(t *testing.T) {
	ex := Example{}
	ex["image/encoded"] = BytesFeature([]byte{0x89, 'P', 'N', 'G'})
	ex["image/height"] = Int64Feature(480)
	ex["image/object/bbox/xmin"] = FloatListFeature([]float32{0.1, 0.5, 0})
	ex["image/object/class/text"] = BytesListFeature([][]byte{[]byte("w"), []byte("c")})
	ex["image/object/class/label"] = Int64ListFeature([]int64{1, 2})
	data := ex.Marshal()

	got, err := UnmarshalExample(data)
	require.NoError(t, err)
	require.Equal(t, [][]byte{{0x89, 'P', 'N', 'G'}}, got["image/encoded"].BytesList)
	require.Equal(t, []int64{480}, got["image/height"].Int64List)
	require.Equal(t, []float32{0.1, 0.5, 0}, got["image/object/bbox/xmin"].FloatList)
	require.Equal(t, [][]byte{[]byte("w"), []byte("c")}, got["image/object/class/text"].BytesList)
	require.Equal(t, []int64{1, 2}, got["image/object/class/label"].Int64List)
}

func TestExampleEmptyLists(t *testing.T) {
	// A negative example has empty box lists, but the keys are still present
	ex := Example{}
	ex["image/object/bbox/xmin"] = FloatListFeature([]float32{})
	ex["image/object/class/label"] = Int64ListFeature([]int64{})
	got, err := UnmarshalExample(ex.Marshal())
	require.NoError(t, err)
	require.Contains(t, got, "image/object/bbox/xmin")
	require.Empty(t, got["image/object/bbox/xmin"].FloatList)
	require.Contains(t, got, "image/object/class/label")
	require.Empty(t, got["image/object/class/label"].Int64List)
}

func TestExampleDeterministic(t *testing.T) {
	ex := Example{
		"b": Int64Feature(2),
		"a": Int64Feature(1),
		"c": Int64Feature(3),
	}
	require.Equal(t, ex.Marshal(), ex.Marshal())
}

func TestExampleUnknownFieldsSkipped(t *testing.T) {
	ex := Example{"image/width": Int64Feature(640)}
	data := ex.Marshal()
	// Unknown trailing field in the Example message
	data = protowire.AppendTag(data, 99, protowire.VarintType)
	data = protowire.AppendVarint(data, 7)

	got, err := UnmarshalExample(data)
	require.NoError(t, err)
	require.Equal(t, []int64{640}, got["image/width"].Int64List)
}

func TestExampleGarbage(t *testing.T) {
	_, err := UnmarshalExample([]byte{0xff, 0xff, 0xff})
	require.Error(t, err)
}
