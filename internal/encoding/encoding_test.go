package encoding

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterLayout(t *testing.T) {
	w := NewWriter()
	w.WriteString("ab")
	w.WriteInt64(1)
	w.WriteInt32(-1)
	w.WriteUint8(2)
	w.WriteBuffer(nil)
	w.WriteBuffer([]byte{})
	w.WriteBuffer([]byte{0xaa})
	w.WriteCount(false, 0)
	w.WriteCount(true, 3)

	expected := []byte{
		0x02, 'a', 'b',
		0x01, 0, 0, 0, 0, 0, 0, 0,
		0xff, 0xff, 0xff, 0xff,
		0x02,
		0x00,
		0x01, 0, 0, 0, 0,
		0x01, 1, 0, 0, 0, 0xaa,
		0x00,
		0x01, 3, 0, 0, 0,
	}
	assert.Equal(t, expected, w.Bytes())
}

func TestLongStringUsesVarintLength(t *testing.T) {
	s := strings.Repeat("x", 200)
	w := NewWriter()
	w.WriteString(s)

	b := w.Bytes()
	assert.Equal(t, []byte{0xc8, 0x01}, b[:2])

	r := NewReader(b)
	assert.Equal(t, s, r.ReadString("s"))
	require.NoError(t, r.Finish())
}

func TestReaderRoundTrip(t *testing.T) {
	w := NewWriter()
	w.WriteString("héllo")
	w.WriteInt64(-42)
	w.WriteBool(true)
	w.WriteBuffer(nil)
	w.WriteBuffer([]byte{})
	w.WriteBuffer([]byte{1, 2, 3})
	w.WriteCount(true, 0)

	r := NewReader(w.Bytes())
	assert.Equal(t, "héllo", r.ReadString("s"))
	assert.Equal(t, int64(-42), r.ReadInt64("i"))
	assert.True(t, r.ReadBool("b"))
	assert.Nil(t, r.ReadBuffer("nil"))
	empty := r.ReadBuffer("empty")
	assert.NotNil(t, empty)
	assert.Len(t, empty, 0)
	assert.Equal(t, []byte{1, 2, 3}, r.ReadBuffer("buf"))
	n, present := r.ReadCount("seq", 1)
	assert.True(t, present)
	assert.Equal(t, 0, n)
	require.NoError(t, r.Finish())
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		read func(r *Reader)
		want error
	}{
		{"truncated int64", []byte{1, 2, 3}, func(r *Reader) { r.ReadInt64("x") }, ErrTruncated},
		{"empty string header", nil, func(r *Reader) { r.ReadString("x") }, ErrTruncated},
		{"string too long", []byte{5, 'a'}, func(r *Reader) { r.ReadString("x") }, ErrTruncated},
		{"padded string length", []byte{0x81, 0x00, 'a'}, func(r *Reader) { r.ReadString("x") }, ErrInvalidLength},
		{"padded empty string", []byte{0x80, 0x00}, func(r *Reader) { r.ReadString("x") }, ErrInvalidLength},
		{"string prefix over five bytes", []byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x00}, func(r *Reader) { r.ReadString("x") }, ErrInvalidLength},
		{"string length over int32", []byte{0x80, 0x80, 0x80, 0x80, 0x08}, func(r *Reader) { r.ReadString("x") }, ErrInvalidLength},
		{"invalid utf8", []byte{1, 0xff}, func(r *Reader) { r.ReadString("x") }, ErrInvalidUTF8},
		{"invalid bool", []byte{2}, func(r *Reader) { r.ReadBool("x") }, ErrInvalidBool},
		{"negative buffer length", []byte{1, 0xff, 0xff, 0xff, 0xff}, func(r *Reader) { r.ReadBuffer("x") }, ErrInvalidLength},
		{"count exceeds data", []byte{1, 0xff, 0, 0, 0}, func(r *Reader) { r.ReadCount("x", 8) }, ErrInvalidLength},
		{"trailing bytes", []byte{0, 0}, func(r *Reader) { r.ReadBool("x") }, ErrTrailingBytes},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReader(tt.data)
			tt.read(r)
			err := r.Finish()
			require.Error(t, err)

			var encErr *Error
			require.True(t, errors.As(err, &encErr))
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestReaderErrorIsSticky(t *testing.T) {
	r := NewReader([]byte{7})
	r.ReadBool("first")
	assert.Equal(t, int64(0), r.ReadInt64("second"))

	var encErr *Error
	require.True(t, errors.As(r.Err(), &encErr))
	assert.Equal(t, "first", encErr.Field)
}
