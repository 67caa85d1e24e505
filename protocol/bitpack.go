package protocol

import (
	"encoding/binary"
	"math"
)

// Reader walks a decoded (zerocode-expanded) payload buffer. Every numeric
// field is little-endian except where callers explicitly read big-endian
// (sequence ids, appended-ack ids), matching spec.md §4.1.
type Reader struct {
	buf []byte
	pos int
}

func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

func (r *Reader) Remaining() int { return len(r.buf) - r.pos }

// Pos returns the reader's current byte offset into its backing buffer,
// for callers (block-array loops) that need to slice out the raw bytes
// of one just-decoded block.
func (r *Reader) Pos() int { return r.pos }

func (r *Reader) bytes(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.buf) {
		return nil, newError(PayloadTruncated, "need %d bytes, have %d", n, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *Reader) U8() (uint8, error) {
	b, err := r.bytes(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *Reader) U16() (uint16, error) {
	b, err := r.bytes(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

func (r *Reader) U32() (uint32, error) {
	b, err := r.bytes(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

func (r *Reader) U64() (uint64, error) {
	b, err := r.bytes(8)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b), nil
}

func (r *Reader) S32() (int32, error) {
	v, err := r.U32()
	return int32(v), err
}

func (r *Reader) F32() (float32, error) {
	v, err := r.U32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

// Bytes reads n raw bytes without interpretation.
func (r *Reader) Bytes(n int) ([]byte, error) {
	b, err := r.bytes(n)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, b)
	return out, nil
}

// VarBytes1 reads a 1-byte-length-prefixed variable field.
func (r *Reader) VarBytes1() ([]byte, error) {
	n, err := r.U8()
	if err != nil {
		return nil, err
	}
	return r.Bytes(int(n))
}

// VarBytes2 reads a 2-byte-length-prefixed variable field. The length is
// big-endian per the wire codec's variable-field convention.
func (r *Reader) VarBytes2() ([]byte, error) {
	b, err := r.bytes(2)
	if err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint16(b)
	return r.Bytes(int(n))
}

// CString reads a NUL-terminated string (used by compressed-update
// sub-blocks); the terminator is consumed but not included.
func (r *Reader) CString() (string, error) {
	start := r.pos
	for r.pos < len(r.buf) {
		if r.buf[r.pos] == 0 {
			s := string(r.buf[start:r.pos])
			r.pos++
			return s, nil
		}
		r.pos++
	}
	return "", newError(PayloadTruncated, "unterminated string")
}

// Writer builds a payload buffer with the same endianness conventions as
// Reader.
type Writer struct {
	buf []byte
}

func NewWriter() *Writer { return &Writer{} }

func (w *Writer) Bytes() []byte { return w.buf }

func (w *Writer) U8(v uint8) *Writer {
	w.buf = append(w.buf, v)
	return w
}

func (w *Writer) U16(v uint16) *Writer {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) U32(v uint32) *Writer {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) U64(v uint64) *Writer {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	w.buf = append(w.buf, b[:]...)
	return w
}

func (w *Writer) S32(v int32) *Writer {
	return w.U32(uint32(v))
}

func (w *Writer) F32(v float32) *Writer {
	return w.U32(math.Float32bits(v))
}

func (w *Writer) Raw(b []byte) *Writer {
	w.buf = append(w.buf, b...)
	return w
}

func (w *Writer) VarBytes1(b []byte) *Writer {
	w.U8(uint8(len(b)))
	return w.Raw(b)
}

func (w *Writer) VarBytes2(b []byte) *Writer {
	var lb [2]byte
	binary.BigEndian.PutUint16(lb[:], uint16(len(b)))
	w.buf = append(w.buf, lb[:]...)
	return w.Raw(b)
}

func (w *Writer) CString(s string) *Writer {
	w.buf = append(w.buf, []byte(s)...)
	w.buf = append(w.buf, 0)
	return w
}
