package link

import (
	"fmt"
	"io"
	"time"
)

// Frame code bits.
const (
	// CodeEvent marks frames sent without a request.
	CodeEvent byte = 0x80
	// CodeError marks a reply carrying an error code.
	CodeError byte = 0x01
	// CodeMask keeps the bits of a code carried on the wire.
	CodeMask byte = 0x8f

	// MaxData is the largest payload of a frame.
	MaxData = 0x7f

	lenShift      = 4
	lenMask  byte = 0x70
	lenExt   byte = 7
)

// Seq is the sequence number of a frame, 1 to 0xef.
type Seq byte

// NewSeq picks a start sequence number.
func NewSeq() Seq {
	return Seq(byte(time.Now().UnixNano())).Next()
}

// Next returns the sequence number after s.
func (s Seq) Next() Seq {
	n := byte(s) + 1
	if !Seq(n).IsValid() {
		n = 1
	}
	return Seq(n)
}

// IsValid reports whether s can be carried by a frame. Larger values are
// control bytes.
func (s Seq) IsValid() bool {
	return s > 0 && s < 0xf0
}

// Frame is one unit of the link protocol.
//
// Wire format: seq, code|len<<4, data. A payload of 7 bytes or more sets
// len to 7 and is preceded by a length byte.
type Frame struct {
	Seq  Seq
	Code byte
	Data []byte
}

// IsEvent reports whether f was sent without a request.
func (f *Frame) IsEvent() bool {
	return f.Code&CodeEvent != 0
}

func (f *Frame) String() string {
	return fmt.Sprintf("frame(seq=%d code=%02x len=%d)", f.Seq, f.Code, len(f.Data))
}

func (f *Frame) header() []byte {
	n := byte(len(f.Data))
	h := []byte{byte(f.Seq), f.Code & CodeMask, n}
	if n < lenExt {
		h[1] |= (n << lenShift) & lenMask
		return h[:2]
	}
	h[1] |= lenMask
	return h
}

// Bytes returns the encoded frame.
func (f *Frame) Bytes() []byte {
	return append(f.header(), f.Data...)
}

// WriteTo writes the encoded frame in one call.
func (f *Frame) WriteTo(w io.Writer) (int64, error) {
	if len(f.Data) > MaxData {
		return 0, fmt.Errorf("%d bytes: %w", len(f.Data), ErrTooLarge)
	}
	n, err := w.Write(f.Bytes())
	return int64(n), err
}
