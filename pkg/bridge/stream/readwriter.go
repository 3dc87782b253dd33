// Package stream carries packets over byte streams such as TCP
// connections and host serial ports.
package stream

import (
	"encoding/binary"
	"errors"
	"io"
	"sync"
)

// MaxPacketSize limits the length accepted by ReadWriter.ReadPacket.
const MaxPacketSize = 1 << 16

// ErrPacketTooLarge indicates a length prefix above MaxPacketSize.
var ErrPacketTooLarge = errors.New("packet too large")

type closeOnce struct {
	closer io.Closer
	once   sync.Once
	err    error
}

func (c *closeOnce) Close() error {
	if c.closer == nil {
		return nil
	}
	c.once.Do(func() { c.err = c.closer.Close() })
	return c.err
}

func closerOf(s io.ReadWriter) *closeOnce {
	closer, _ := s.(io.Closer)
	return &closeOnce{closer: closer}
}

// ReadWriter implements bridge.PacketReadWriter.
// Each packet is prefixed by 4-byte (little-endian) indicate the length.
type ReadWriter struct {
	io.ReadWriter
	closer *closeOnce
}

// New creates a ReadWriter with io.ReadWriter.
func New(s io.ReadWriter) *ReadWriter {
	return &ReadWriter{ReadWriter: s, closer: closerOf(s)}
}

// ReadPacket implements PacketReader.
func (p *ReadWriter) ReadPacket() ([]byte, error) {
	var size uint32
	if err := binary.Read(p.ReadWriter, binary.LittleEndian, &size); err != nil {
		return nil, err
	}
	if size > MaxPacketSize {
		return nil, ErrPacketTooLarge
	}
	pkt := make([]byte, size)
	_, err := io.ReadFull(p.ReadWriter, pkt)
	return pkt, err
}

// WritePacket implements PacketWriter.
func (p *ReadWriter) WritePacket(pkt []byte) error {
	if len(pkt) > MaxPacketSize {
		return ErrPacketTooLarge
	}
	buf := make([]byte, 4+len(pkt))
	binary.LittleEndian.PutUint32(buf, uint32(len(pkt)))
	copy(buf[4:], pkt)
	_, err := p.Write(buf)
	return err
}

// Close closes the underlying stream if it is an io.Closer.
func (p *ReadWriter) Close() error {
	return p.closer.Close()
}

// Raw implements bridge.PacketReadWriter without framing: each read
// returns what the stream delivered and each packet is written as is.
type Raw struct {
	io.ReadWriter
	// ChunkSize is the read buffer size, defaults to 256.
	ChunkSize int
	closer    *closeOnce
}

// NewRaw creates a Raw.
func NewRaw(s io.ReadWriter) *Raw {
	return &Raw{ReadWriter: s, closer: closerOf(s)}
}

// ReadPacket implements PacketReader. Reads returning no data are
// retried.
func (p *Raw) ReadPacket() ([]byte, error) {
	size := p.ChunkSize
	if size <= 0 {
		size = 256
	}
	buf := make([]byte, size)
	for {
		n, err := p.Read(buf)
		if n > 0 {
			return buf[:n], nil
		}
		if err != nil {
			return nil, err
		}
	}
}

// WritePacket implements PacketWriter.
func (p *Raw) WritePacket(pkt []byte) error {
	_, err := p.Write(pkt)
	return err
}

// Close closes the underlying stream if it is an io.Closer.
func (p *Raw) Close() error {
	return p.closer.Close()
}
