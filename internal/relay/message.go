package relay

import (
	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/client"
)

// Message is the JSON form of a client event
type Message struct {
	Type      string               `json:"type"`
	Channel   string               `json:"channel,omitempty"`
	ID        *int                 `json:"id,omitempty"`
	Timestamp *float64             `json:"timestamp,omitempty"`
	Acquiring *bool                `json:"acquiring,omitempty"`
	Count     int                  `json:"count,omitempty"`
	Values    []float64            `json:"values,omitempty"` // Scaled samples
	Info      *channels.Descriptor `json:"info,omitempty"`
	Error     string               `json:"error,omitempty"`
}

// FromEvent converts an event. Data payloads are decoded and scaled so the
// message does not alias the client's receive buffer.
func FromEvent(ev client.Event) Message {
	msg := Message{Type: ev.Kind().String()}

	switch e := ev.(type) {
	case client.AvailableChannel:
		desc := e.Channel
		msg.Channel = desc.Name
		msg.Info = &desc
	case client.UnavailableChannel:
		msg.Channel = e.Name
	case client.ChannelSubscribed:
		msg.Channel = e.Name
		msg.ID = intPtr(e.ID)
	case client.ChannelUnsubscribed:
		msg.Channel = e.Name
		msg.ID = intPtr(e.ID)
	case client.ChannelFirstSampleTimestamp:
		msg.Channel = e.Name
		msg.ID = intPtr(e.ID)
		ts := e.Timestamp
		msg.Timestamp = &ts
	case client.AcquisitionChanged:
		on := e.Acquiring
		msg.Acquiring = &on
	case client.ChannelData:
		msg.Channel = e.Channel.Name
		msg.ID = intPtr(e.ID)
		msg.Count = e.Count
		msg.Values = e.Values(make([]float64, 0, e.Count))
	case client.Disconnected:
		if e.Err != nil {
			msg.Error = e.Err.Error()
		}
	}

	return msg
}

// Sink returns an EventSink that publishes every event to the hub
func (h *Hub) Sink() client.EventSink {
	return func(ev client.Event) {
		h.Publish(FromEvent(ev))
	}
}

func intPtr(v int) *int {
	return &v
}
