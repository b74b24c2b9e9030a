// Package wire implements the single canonical, length-prefixed binary
// encoding shared by on-disk storage and the P2P protocol. Integers are
// little-endian fixed width; variable-length fields carry a u32 length
// prefix.
package wire

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
)

// ErrShortBuffer is returned when a decode reads past the end of the input.
var ErrShortBuffer = errors.New("wire: unexpected end of buffer")

// Writer accumulates a canonical byte encoding.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter constructs an empty Writer.
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the accumulated encoding.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Uint8 appends a single byte.
func (w *Writer) Uint8(v uint8) {
	w.buf.WriteByte(v)
}

// Uint32 appends a little-endian u32.
func (w *Writer) Uint32(v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf.Write(b[:])
}

// Uint64 appends a little-endian u64.
func (w *Writer) Uint64(v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf.Write(b[:])
}

// FixedBytes appends raw bytes with no length prefix; the caller guarantees
// a fixed, known width (e.g. a hash or address).
func (w *Writer) FixedBytes(b []byte) {
	w.buf.Write(b)
}

// VarBytes appends bytes with a u32 length prefix.
func (w *Writer) VarBytes(b []byte) {
	w.Uint32(uint32(len(b)))
	w.buf.Write(b)
}

// Reader consumes a canonical byte encoding produced by Writer.
type Reader struct {
	r *bytes.Reader
}

// NewReader constructs a Reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{r: bytes.NewReader(data)}
}

// Len returns the number of unread bytes.
func (r *Reader) Len() int {
	return r.r.Len()
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.r.ReadByte()
	if err != nil {
		return 0, ErrShortBuffer
	}
	return b, nil
}

// Uint32 reads a little-endian u32.
func (r *Reader) Uint32() (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

// Uint64 reads a little-endian u64.
func (r *Reader) Uint64() (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r.r, b[:]); err != nil {
		return 0, ErrShortBuffer
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// FixedBytes reads exactly n raw bytes.
func (r *Reader) FixedBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(r.r, b); err != nil {
		return nil, ErrShortBuffer
	}
	return b, nil
}

// VarBytes reads a u32-length-prefixed byte slice.
func (r *Reader) VarBytes() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	return r.FixedBytes(int(n))
}
