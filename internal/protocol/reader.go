package protocol

import (
	"fmt"
	"io"
)

// Reader reconstructs frames from a byte stream that may deliver partial,
// exact or coalesced message boundaries.
//
// The reader never asks the underlying io.Reader for more bytes than the
// current message needs, so it never consumes bytes of the following message.
type Reader struct {
	r       io.Reader
	maxSize int
	buf     []byte
	offset  int   // bytes accumulated for the current message
	want    int   // bytes requested by the next read
	err     error // deferred read error, returned after a completed frame
}

// ReaderOption configures a Reader
type ReaderOption func(*Reader)

// WithMaxFrameSize sets the size of the fixed reassembly buffer. Messages
// longer than n bytes are rejected with ErrFrameTooLarge.
func WithMaxFrameSize(n int) ReaderOption {
	return func(r *Reader) {
		if n >= HeaderSize {
			r.maxSize = n
		}
	}
}

// NewReader creates a Reader over r
func NewReader(r io.Reader, opts ...ReaderOption) *Reader {
	rd := &Reader{
		r:       r,
		maxSize: DefaultMaxFrameSize,
		want:    HeaderSize,
	}
	for _, opt := range opts {
		opt(rd)
	}
	rd.buf = make([]byte, rd.maxSize)
	return rd
}

// MaxFrameSize returns the size of the reassembly buffer
func (r *Reader) MaxFrameSize() int {
	return r.maxSize
}

// Next blocks until one complete frame is available and returns it.
//
// The returned Frame.Payload aliases the reader's buffer and is only valid
// until the next call to Next. Use Frame.Clone to keep it.
//
// Any error is fatal: the stream position is unknown afterwards and the
// connection must be dropped.
func (r *Reader) Next() (Frame, error) {
	if r.err != nil {
		return Frame{}, r.err
	}

	for {
		if r.offset+r.want > len(r.buf) {
			r.err = fmt.Errorf("%w: reading %d bytes at offset %d, buffer is %d bytes",
				ErrFrameTooLarge, r.want, r.offset, len(r.buf))
			return Frame{}, r.err
		}

		n, err := r.r.Read(r.buf[r.offset : r.offset+r.want])
		if n > 0 {
			r.offset += n
			frame, done, ferr := r.advance()
			if ferr != nil {
				r.err = ferr
				return Frame{}, ferr
			}
			if done {
				if err != nil {
					r.err = fmt.Errorf("failed to read frame: %w", err)
				}
				return frame, nil
			}
		}

		if err != nil {
			r.err = fmt.Errorf("failed to read frame at offset %d: %w", r.offset, err)
			return Frame{}, r.err
		}
		if n == 0 {
			r.err = io.ErrNoProgress
			return Frame{}, r.err
		}
	}
}

// advance updates the read target after new bytes arrived and reports
// whether a complete frame is ready
func (r *Reader) advance() (Frame, bool, error) {
	// Keep reading toward a full header
	if r.offset < HeaderSize {
		r.want = HeaderSize - r.offset
		return Frame{}, false, nil
	}

	hdr, err := DecodeHeader(r.buf[:HeaderSize])
	if err != nil {
		return Frame{}, false, err
	}
	if err := hdr.Validate(); err != nil {
		return Frame{}, false, err
	}

	if r.offset < int(hdr.Length) {
		r.want = int(hdr.Length) - r.offset
		return Frame{}, false, nil
	}

	frame := Frame{
		Header:  hdr,
		Payload: r.buf[HeaderSize:hdr.Length],
	}

	// Expect a new header
	r.offset = 0
	r.want = HeaderSize

	return frame, true, nil
}
