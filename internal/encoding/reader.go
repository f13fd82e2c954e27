package encoding

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"unicode/utf8"
)

var (
	// ErrTruncated means the data ended inside a field
	ErrTruncated = errors.New("unexpected end of data")
	// ErrInvalidBool means a flag byte was neither 0 nor 1
	ErrInvalidBool = errors.New("invalid boolean byte")
	// ErrInvalidLength means a length or count prefix is negative, oversized
	// or not minimally encoded
	ErrInvalidLength = errors.New("invalid length")
	// ErrInvalidUTF8 means a string field is not valid UTF-8
	ErrInvalidUTF8 = errors.New("invalid utf-8 string")
	// ErrInvalidValue means a field decoded to a value no encoder writes
	ErrInvalidValue = errors.New("invalid value")
	// ErrTrailingBytes means bytes remain after a complete record
	ErrTrailingBytes = errors.New("trailing bytes after record")
)

// maxStringPrefix is the widest 7-bit encoded string length, which holds
// any int32
const maxStringPrefix = 5

// Error reports a malformed or absent field. It is fatal to the record being
// decoded only.
type Error struct {
	Field  string
	Offset int
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("encoding: field %q at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Reader decodes a canonical encoding. The first failure is sticky: later
// reads return zero values and Err reports the original cause.
type Reader struct {
	data []byte
	off  int
	err  error
}

// NewReader creates a Reader over data
func NewReader(data []byte) *Reader {
	return &Reader{data: data}
}

// Err returns the first decoding error, if any
func (r *Reader) Err() error {
	return r.err
}

// Fail records err against field unless an error is already recorded.
func (r *Reader) Fail(field string, err error) {
	if r.err == nil {
		r.err = &Error{Field: field, Offset: r.off, Err: err}
	}
}

// Remaining returns the number of unread bytes
func (r *Reader) Remaining() int {
	return len(r.data) - r.off
}

// Finish fails the reader if unread bytes remain and returns Err.
func (r *Reader) Finish() error {
	if r.err == nil && r.Remaining() != 0 {
		r.Fail("", ErrTrailingBytes)
	}
	return r.err
}

func (r *Reader) take(field string, n int) []byte {
	if r.err != nil {
		return nil
	}
	if n < 0 || n > r.Remaining() {
		r.Fail(field, ErrTruncated)
		return nil
	}
	p := r.data[r.off : r.off+n]
	r.off += n
	return p
}

// ReadBool reads a presence flag or boolean
func (r *Reader) ReadBool(field string) bool {
	p := r.take(field, 1)
	if p == nil {
		return false
	}
	switch p[0] {
	case 0:
		return false
	case 1:
		return true
	}
	r.off--
	r.Fail(field, ErrInvalidBool)
	return false
}

// ReadUint8 reads a single byte
func (r *Reader) ReadUint8(field string) byte {
	p := r.take(field, 1)
	if p == nil {
		return 0
	}
	return p[0]
}

// ReadInt32 reads 4 little-endian bytes
func (r *Reader) ReadInt32(field string) int32 {
	p := r.take(field, 4)
	if p == nil {
		return 0
	}
	return int32(binary.LittleEndian.Uint32(p))
}

// ReadInt64 reads 8 little-endian bytes
func (r *Reader) ReadInt64(field string) int64 {
	p := r.take(field, 8)
	if p == nil {
		return 0
	}
	return int64(binary.LittleEndian.Uint64(p))
}

// ReadString reads a 7-bit length prefixed UTF-8 string
func (r *Reader) ReadString(field string) string {
	if r.err != nil {
		return ""
	}
	n, sz := binary.Uvarint(r.data[r.off:])
	if sz == 0 {
		r.Fail(field, ErrTruncated)
		return ""
	}
	if sz < 0 || sz > maxStringPrefix || n > math.MaxInt32 || sz != uvarintLen(n) {
		r.Fail(field, ErrInvalidLength)
		return ""
	}
	if n > uint64(r.Remaining()-sz) {
		r.Fail(field, ErrTruncated)
		return ""
	}
	r.off += sz
	p := r.take(field, int(n))
	if !utf8.Valid(p) {
		r.Fail(field, ErrInvalidUTF8)
		return ""
	}
	return string(p)
}

// ReadBuffer reads a presence flag and, when present, a length prefixed
// byte buffer. An absent buffer is returned as nil, an empty one as a
// non-nil zero length slice.
func (r *Reader) ReadBuffer(field string) []byte {
	if !r.ReadBool(field) {
		return nil
	}
	n := r.ReadInt32(field)
	if r.err != nil {
		return nil
	}
	if n < 0 {
		r.Fail(field, ErrInvalidLength)
		return nil
	}
	p := r.take(field, int(n))
	if p == nil {
		return nil
	}
	out := make([]byte, len(p))
	copy(out, p)
	return out
}

// ReadCount reads a sequence header. present is false for an absent
// sequence. The count is bounded by the bytes left, given each element
// occupies at least minElemSize bytes.
func (r *Reader) ReadCount(field string, minElemSize int) (n int, present bool) {
	if !r.ReadBool(field) {
		return 0, false
	}
	c := r.ReadInt32(field)
	if r.err != nil {
		return 0, false
	}
	if c < 0 || (minElemSize > 0 && int64(c)*int64(minElemSize) > int64(r.Remaining())) {
		r.Fail(field, ErrInvalidLength)
		return 0, false
	}
	return int(c), true
}

// uvarintLen returns the minimal encoded width of n
func uvarintLen(n uint64) int {
	var b [binary.MaxVarintLen64]byte
	return binary.PutUvarint(b[:], n)
}
