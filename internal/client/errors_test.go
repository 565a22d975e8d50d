package client

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/protocol"
)

func TestClassifyNetworkError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"frame too large", fmt.Errorf("wrap: %w", protocol.ErrFrameTooLarge), ErrTypeProtocol},
		{"invalid id", protocol.ErrInvalidID, ErrTypeProtocol},
		{"invalid length", protocol.ErrInvalidLength, ErrTypeProtocol},
		{"no progress", io.ErrNoProgress, ErrTypeProtocol},
		{"eof", fmt.Errorf("failed to read frame at offset 0: %w", io.EOF), ErrTypeClosed},
		{"reset", &net.OpError{Op: "read", Err: os.NewSyscallError("read", syscall.ECONNRESET)}, ErrTypeClosed},
		{"refused", &net.OpError{Op: "dial", Err: os.NewSyscallError("connect", syscall.ECONNREFUSED)}, ErrTypeRefused},
		{"host unreachable", &net.OpError{Op: "dial", Err: syscall.EHOSTUNREACH}, ErrTypeUnreachable},
		{"net unreachable", &net.OpError{Op: "dial", Err: syscall.ENETUNREACH}, ErrTypeUnreachable},
		{"timeout", os.ErrDeadlineExceeded, ErrTypeTimeout},
		{"dns", &net.OpError{Op: "dial", Err: &net.DNSError{Name: "nohost", Err: "no such host"}}, ErrTypeDNS},
		{"other", errors.New("boom"), ErrTypeNetwork},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce := ClassifyNetworkError("read", "10.0.0.1:10006", tt.err)
			assert.Equal(t, tt.want, ce.Type, "got %s", ce.Type)
			assert.ErrorIs(t, ce, tt.err)
			assert.Contains(t, ce.Error(), "10.0.0.1:10006")
		})
	}

	assert.Nil(t, ClassifyNetworkError("read", "x", nil))
}

func TestShortMessage(t *testing.T) {
	assert.Equal(t, "boom", ShortMessage(errors.New("boom")))
	assert.Equal(t, "connection closed", ShortMessage(nil))

	ce := &ConnectionError{Type: ErrTypeTimeout, Op: "dial", Addr: "h:1", Err: os.ErrDeadlineExceeded}
	assert.Contains(t, ShortMessage(fmt.Errorf("connect: %w", ce)), "timeout")

	ce = &ConnectionError{Type: ErrTypeProtocol, Op: "read", Addr: "h:1", Err: protocol.ErrInvalidID}
	assert.Contains(t, ShortMessage(ce), "invalid frame")
}

func TestErrorType_String(t *testing.T) {
	assert.Equal(t, "Connection Refused", ErrTypeRefused.String())
	assert.Equal(t, "ErrorType(42)", ErrorType(42).String())
}

func TestMultiSink(t *testing.T) {
	var first, second []EventKind
	sink := MultiSink(
		func(ev Event) { first = append(first, ev.Kind()) },
		nil,
		func(ev Event) { second = append(second, ev.Kind()) },
	)

	sink(AcquisitionChanged{Acquiring: true})
	sink(UnavailableChannel{Name: "x"})

	want := []EventKind{KindAcquisitionChanged, KindUnavailableChannel}
	assert.Equal(t, want, first)
	assert.Equal(t, want, second)
	assert.Equal(t, "unavailable_channel", KindUnavailableChannel.String())
}

func TestChannelData_Values(t *testing.T) {
	raw := protocol.EncodeSamples(nil, []float32{2, 4}, binary.BigEndian)
	raw = append(raw, 0x01) // partial sample

	ev := ChannelData{
		ID:      1,
		Raw:     raw,
		Count:   protocol.SampleCount(len(raw)),
		Channel: channels.Descriptor{Scale: 0.5, Offset: 10},
		order:   binary.BigEndian,
	}
	assert.Equal(t, []float32{2, 4}, ev.Samples(nil))
	assert.Equal(t, []float64{11, 12}, ev.Values(nil))
}
