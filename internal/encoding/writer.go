// Package encoding implements the canonical binary form of ledger entities.
//
// The layout is little-endian and mirrors what a .NET BinaryWriter produces,
// so digests computed over it agree with other implementations of the ledger.
// The canonical form exists for hashing and storage only.
package encoding

import (
	"bytes"
	"encoding/binary"
)

// Hashable is implemented by entities that can be content hashed. The
// encoding written must cover every persisted field except the entity's own
// hash.
type Hashable interface {
	EncodeHashable(w *Writer)
}

// Encodable is implemented by entities with a full persisted encoding.
type Encodable interface {
	Encode(w *Writer)
}

// Writer accumulates a canonical encoding. Writes never fail.
type Writer struct {
	buf bytes.Buffer
}

// NewWriter creates an empty Writer
func NewWriter() *Writer {
	return &Writer{}
}

// Bytes returns the encoded bytes
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far
func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteBool writes a single 0x00/0x01 byte and returns v, so callers can
// guard a nested encoding on the presence flag.
func (w *Writer) WriteBool(v bool) bool {
	if v {
		w.buf.WriteByte(1)
	} else {
		w.buf.WriteByte(0)
	}
	return v
}

// WriteUint8 writes one byte; enums are written through it as their ordinal.
func (w *Writer) WriteUint8(b byte) {
	w.buf.WriteByte(b)
}

// WriteInt32 writes v as 4 little-endian bytes
func (w *Writer) WriteInt32(v int32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	w.buf.Write(b[:])
}

// WriteInt64 writes v as 8 little-endian bytes
func (w *Writer) WriteInt64(v int64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], uint64(v))
	w.buf.Write(b[:])
}

// WriteString writes a 7-bit encoded length followed by the UTF-8 bytes.
func (w *Writer) WriteString(s string) {
	var b [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(b[:], uint64(len(s)))
	w.buf.Write(b[:n])
	w.buf.WriteString(s)
}

// WriteBuffer writes a presence flag and, for a non-nil buffer, an int32
// length and the bytes. A nil buffer and an empty one encode differently.
func (w *Writer) WriteBuffer(p []byte) {
	if w.WriteBool(p != nil) {
		w.WriteInt32(int32(len(p)))
		w.buf.Write(p)
	}
}

// WriteCount writes a sequence header: presence flag plus int32 count. It
// reports whether elements should follow.
func (w *Writer) WriteCount(present bool, n int) bool {
	if w.WriteBool(present) {
		w.WriteInt32(int32(n))
		return true
	}
	return false
}

// Marshal returns the full encoding of e
func Marshal(e Encodable) []byte {
	w := NewWriter()
	e.Encode(w)
	return w.Bytes()
}

// MarshalHashable returns the hashable encoding of e
func MarshalHashable(e Hashable) []byte {
	w := NewWriter()
	e.EncodeHashable(w)
	return w.Bytes()
}
