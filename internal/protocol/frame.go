package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Header constants
const (
	HeaderSize = 8 // 4-byte id + 4-byte length

	// MetadataID marks control traffic. It is tested with a bitwise AND so it
	// never collides with a data channel id.
	MetadataID uint32 = 0x80000000

	// MaxChannelID is the highest data channel id the server assigns
	MaxChannelID uint32 = 7

	// DefaultMaxFrameSize is the default size of the reassembly buffer
	DefaultMaxFrameSize = 1 << 20
)

// Framing errors. All of them are fatal to the connection.
var (
	ErrInvalidID     = errors.New("invalid frame id")
	ErrInvalidLength = errors.New("invalid frame length")
	ErrFrameTooLarge = errors.New("frame exceeds receive buffer")
	ErrShortHeader   = errors.New("short frame header")
)

// Header is the fixed-size prefix of every message
type Header struct {
	ID     uint32 // 0-7 for data, MetadataID for control
	Length uint32 // Total message length including the header
}

// ValidID reports whether id belongs to the legal identifier set
func ValidID(id uint32) bool {
	return id <= MaxChannelID || id == MetadataID
}

// DecodeHeader reads a header from the first HeaderSize bytes of b
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: have %d bytes, need %d", ErrShortHeader, len(b), HeaderSize)
	}
	return Header{
		ID:     binary.BigEndian.Uint32(b[0:4]),
		Length: binary.BigEndian.Uint32(b[4:8]),
	}, nil
}

// PutHeader writes h into the first HeaderSize bytes of b.
// It panics if b is too short, like binary.BigEndian.PutUint32.
func PutHeader(b []byte, h Header) {
	binary.BigEndian.PutUint32(b[0:4], h.ID)
	binary.BigEndian.PutUint32(b[4:8], h.Length)
}

// Validate checks the id against the legal set and the length against the
// header size
func (h Header) Validate() error {
	if !ValidID(h.ID) {
		return fmt.Errorf("%w: 0x%08x", ErrInvalidID, h.ID)
	}
	if h.Length < HeaderSize {
		return fmt.Errorf("%w: %d is shorter than the header", ErrInvalidLength, h.Length)
	}
	return nil
}

// IsControl reports whether the header carries control traffic
func (h Header) IsControl() bool {
	return h.ID&MetadataID != 0
}

// PayloadLen returns the number of payload bytes following the header
func (h Header) PayloadLen() int {
	if h.Length < HeaderSize {
		return 0
	}
	return int(h.Length) - HeaderSize
}

// String returns a debug representation of the header
func (h Header) String() string {
	if h.IsControl() {
		return fmt.Sprintf("Header{id=control(0x%08x), length=%d}", h.ID, h.Length)
	}
	return fmt.Sprintf("Header{id=%d, length=%d}", h.ID, h.Length)
}

// Frame is one complete protocol message reconstructed from the byte stream
type Frame struct {
	Header
	Payload []byte // Length-HeaderSize bytes; see Reader.Next for lifetime
}

// Clone returns a copy of the frame that does not alias the reader buffer
func (f Frame) Clone() Frame {
	return Frame{
		Header:  f.Header,
		Payload: append([]byte(nil), f.Payload...),
	}
}

// String returns a debug representation of the frame
func (f Frame) String() string {
	return fmt.Sprintf("Frame{%s, payload=%d bytes}", f.Header, len(f.Payload))
}
