package client

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/protocol"
)

// EventKind discriminates events delivered to an EventSink
type EventKind int

const (
	KindAvailableChannel EventKind = iota
	KindUnavailableChannel
	KindChannelSubscribed
	KindChannelUnsubscribed
	KindChannelFirstSampleTimestamp
	KindAcquisitionChanged
	KindChannelData
	KindDisconnected
)

func (k EventKind) String() string {
	switch k {
	case KindAvailableChannel:
		return "available_channel"
	case KindUnavailableChannel:
		return "unavailable_channel"
	case KindChannelSubscribed:
		return "channel_subscribed"
	case KindChannelUnsubscribed:
		return "channel_unsubscribed"
	case KindChannelFirstSampleTimestamp:
		return "channel_first_sample_timestamp"
	case KindAcquisitionChanged:
		return "acquisition_changed"
	case KindChannelData:
		return "channel_data"
	case KindDisconnected:
		return "disconnected"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is implemented by every event type in this package
type Event interface {
	Kind() EventKind
	event()
}

// EventSink receives events synchronously on the reader goroutine. It must
// return quickly and must not call Client.Close.
type EventSink func(Event)

// MultiSink delivers every event to each non-nil sink in order
func MultiSink(sinks ...EventSink) EventSink {
	return func(ev Event) {
		for _, sink := range sinks {
			if sink != nil {
				sink(ev)
			}
		}
	}
}

// AvailableChannel announces a channel the server offers
type AvailableChannel struct {
	Channel channels.Descriptor
}

// UnavailableChannel announces a channel the server withdrew
type UnavailableChannel struct {
	Name string
}

// ChannelSubscribed confirms a subscription and its server-assigned id
type ChannelSubscribed struct {
	Name string
	ID   int
}

// ChannelUnsubscribed confirms that id no longer streams
type ChannelUnsubscribed struct {
	ID   int
	Name string
}

// ChannelFirstSampleTimestamp carries the time of a channel's first sample
// in seconds since the epoch. Zero means acquisition stopped.
type ChannelFirstSampleTimestamp struct {
	Name      string
	ID        int
	Timestamp float64
}

// AcquisitionChanged reports the server's acquisition state
type AcquisitionChanged struct {
	Acquiring bool
}

// ChannelData carries one data frame for a subscribed channel.
//
// Raw aliases the client's receive buffer and is only valid until the sink
// returns. Copy it, or decode with Samples, to keep the data.
type ChannelData struct {
	ID      int
	Raw     []byte
	Count   int                 // Whole samples in Raw
	Channel channels.Descriptor // Descriptor the id was subscribed with

	order binary.ByteOrder
}

// Samples decodes the raw payload into float32 values appended to dst
func (e ChannelData) Samples(dst []float32) []float32 {
	order := e.order
	if order == nil {
		order = binary.LittleEndian
	}
	return protocol.DecodeSamples(dst, e.Raw, order)
}

// Values decodes the payload and applies the channel's scale and offset
func (e ChannelData) Values(dst []float64) []float64 {
	order := e.order
	if order == nil {
		order = binary.LittleEndian
	}
	for i := 0; i < e.Count; i++ {
		bits := order.Uint32(e.Raw[i*protocol.SampleSize:])
		dst = append(dst, e.Channel.Convert(math.Float32frombits(bits)))
	}
	return dst
}

// Disconnected reports that the connection ended with a fatal error. It is
// not emitted when Close ends the connection.
type Disconnected struct {
	Err error
}

func (AvailableChannel) Kind() EventKind            { return KindAvailableChannel }
func (UnavailableChannel) Kind() EventKind          { return KindUnavailableChannel }
func (ChannelSubscribed) Kind() EventKind           { return KindChannelSubscribed }
func (ChannelUnsubscribed) Kind() EventKind         { return KindChannelUnsubscribed }
func (ChannelFirstSampleTimestamp) Kind() EventKind { return KindChannelFirstSampleTimestamp }
func (AcquisitionChanged) Kind() EventKind          { return KindAcquisitionChanged }
func (ChannelData) Kind() EventKind                 { return KindChannelData }
func (Disconnected) Kind() EventKind                { return KindDisconnected }

func (AvailableChannel) event()            {}
func (UnavailableChannel) event()          {}
func (ChannelSubscribed) event()           {}
func (ChannelUnsubscribed) event()         {}
func (ChannelFirstSampleTimestamp) event() {}
func (AcquisitionChanged) event()          {}
func (ChannelData) event()                 {}
func (Disconnected) event()                {}
