// Package tfrecord reads and writes the record container consumed by the
// training pipeline, and encodes/decodes the Example payloads inside it.
//
// Container framing, per record:
//
//	uint64 little-endian    payload length
//	uint32 little-endian    masked CRC32-C of the 8 length bytes
//	byte[length]            payload
//	uint32 little-endian    masked CRC32-C of the payload
package tfrecord

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
)

var ErrBadRecord = fmt.Errorf("bad record")

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

const crcMaskDelta = 0xa282ead8

// maskedCRC is the record container's CRC masking: rotate right by 15 bits,
// then add a constant, so that CRCs of CRCs stay well distributed.
func maskedCRC(data []byte) uint32 {
	crc := crc32.Checksum(data, castagnoli)
	return ((crc >> 15) | (crc << 17)) + crcMaskDelta
}

// Writer frames payloads into an io.Writer. One Writer owns one shard file;
// it is not safe for concurrent use.
type Writer struct {
	w     io.Writer
	count int
	bytes int64
}

func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

func (w *Writer) Write(payload []byte) error {
	var header [12]byte
	binary.LittleEndian.PutUint64(header[:8], uint64(len(payload)))
	binary.LittleEndian.PutUint32(header[8:], maskedCRC(header[:8]))
	var footer [4]byte
	binary.LittleEndian.PutUint32(footer[:], maskedCRC(payload))

	if _, err := w.w.Write(header[:]); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	if _, err := w.w.Write(footer[:]); err != nil {
		return err
	}
	w.count++
	w.bytes += int64(len(header)) + int64(len(payload)) + int64(len(footer))
	return nil
}

// Count is the number of records written.
func (w *Writer) Count() int {
	return w.count
}

// BytesWritten includes framing overhead.
func (w *Writer) BytesWritten() int64 {
	return w.bytes
}

// Reader iterates records from an io.Reader.
type Reader struct {
	r      io.Reader
	offset int64
	count  int
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Next returns the next record payload, io.EOF at the clean end of the
// stream, or an error wrapping ErrBadRecord on corruption. The returned
// slice is owned by the caller.
func (r *Reader) Next() ([]byte, error) {
	var header [12]byte
	if _, err := io.ReadFull(r.r, header[:]); err != nil {
		if err == io.EOF {
			return nil, io.EOF
		}
		if err == io.ErrUnexpectedEOF {
			return nil, fmt.Errorf("record %v at offset %v: truncated header: %w", r.count, r.offset, ErrBadRecord)
		}
		return nil, err
	}
	length := binary.LittleEndian.Uint64(header[:8])
	if maskedCRC(header[:8]) != binary.LittleEndian.Uint32(header[8:]) {
		return nil, fmt.Errorf("record %v at offset %v: length CRC mismatch: %w", r.count, r.offset, ErrBadRecord)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r.r, payload); err != nil {
		return nil, fmt.Errorf("record %v at offset %v: truncated payload: %w", r.count, r.offset, ErrBadRecord)
	}
	var footer [4]byte
	if _, err := io.ReadFull(r.r, footer[:]); err != nil {
		return nil, fmt.Errorf("record %v at offset %v: truncated payload CRC: %w", r.count, r.offset, ErrBadRecord)
	}
	if maskedCRC(payload) != binary.LittleEndian.Uint32(footer[:]) {
		return nil, fmt.Errorf("record %v at offset %v: payload CRC mismatch: %w", r.count, r.offset, ErrBadRecord)
	}

	r.offset += 12 + int64(length) + 4
	r.count++
	return payload, nil
}

// Count is the number of records returned so far.
func (r *Reader) Count() int {
	return r.count
}
