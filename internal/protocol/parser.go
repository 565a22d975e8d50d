package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrMalformedControl is returned for control payloads that are not a
// well-formed JSON object of a known shape. It is never fatal.
var ErrMalformedControl = errors.New("malformed control message")

// ControlType identifies an inbound control message by its top-level key
type ControlType string

// Inbound control message keys
const (
	ControlUnsubscribed     ControlType = "unsubscribed"
	ControlSubscribed       ControlType = "subscribed"
	ControlAvailable        ControlType = "available"
	ControlUnavailable      ControlType = "unavailable"
	ControlAcquisitionState ControlType = "acquisition_state"
	ControlStatus           ControlType = "status"
	ControlUnknown          ControlType = "unknown"
)

// controlKeyOrder is the dispatch order; the first key present wins
var controlKeyOrder = []ControlType{
	ControlUnsubscribed,
	ControlSubscribed,
	ControlAvailable,
	ControlUnavailable,
	ControlAcquisitionState,
	ControlStatus,
}

// Acquisition states reported by the server
const (
	AcquisitionOn  = "on"
	AcquisitionOff = "off"
)

// ControlMessage is a decoded inbound control message
type ControlMessage interface {
	Type() ControlType
	String() string
}

// UnsubscribedMessage confirms that channels are no longer streamed
type UnsubscribedMessage struct {
	Names []string
}

func (m *UnsubscribedMessage) Type() ControlType { return ControlUnsubscribed }

func (m *UnsubscribedMessage) String() string {
	return fmt.Sprintf("Unsubscribed{%s}", strings.Join(m.Names, ", "))
}

// SubscribedChannel is one entry of a subscribe confirmation
type SubscribedChannel struct {
	Name                   string `json:"name"`
	ID                     int    `json:"id"`
	FirstSampleTimestampNS uint64 `json:"first_sample_timestamp_ns"`
}

// FirstSampleTimestamp returns the timestamp in seconds since the epoch
func (c SubscribedChannel) FirstSampleTimestamp() float64 {
	return float64(c.FirstSampleTimestampNS) / 1e9
}

// SubscribedMessage confirms subscriptions and assigns channel ids
type SubscribedMessage struct {
	Channels []SubscribedChannel
}

func (m *SubscribedMessage) Type() ControlType { return ControlSubscribed }

func (m *SubscribedMessage) String() string {
	parts := make([]string, len(m.Channels))
	for i, c := range m.Channels {
		parts[i] = fmt.Sprintf("%s=%d", c.Name, c.ID)
	}
	return fmt.Sprintf("Subscribed{%s}", strings.Join(parts, ", "))
}

// ChannelSpec describes a channel the server offers
type ChannelSpec struct {
	SamplePeriod float64 `json:"sample_period"`
	DataType     string  `json:"data_type"`
	Scale        float64 `json:"scale"`
	Offset       float64 `json:"offset"`
}

// AvailableMessage announces channels that can be subscribed
type AvailableMessage struct {
	Channels map[string]ChannelSpec
}

func (m *AvailableMessage) Type() ControlType { return ControlAvailable }

func (m *AvailableMessage) String() string {
	return fmt.Sprintf("Available{%s}", strings.Join(m.SortedNames(), ", "))
}

// SortedNames returns the announced channel names in lexical order so that
// events are emitted deterministically
func (m *AvailableMessage) SortedNames() []string {
	names := make([]string, 0, len(m.Channels))
	for name := range m.Channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// UnavailableMessage withdraws channels
type UnavailableMessage struct {
	Names []string
}

func (m *UnavailableMessage) Type() ControlType { return ControlUnavailable }

func (m *UnavailableMessage) String() string {
	return fmt.Sprintf("Unavailable{%s}", strings.Join(m.Names, ", "))
}

// AcquisitionStateMessage reports whether the server is acquiring
type AcquisitionStateMessage struct {
	State string // "on" or "off"; other values leave the state unchanged
}

func (m *AcquisitionStateMessage) Type() ControlType { return ControlAcquisitionState }

func (m *AcquisitionStateMessage) String() string {
	return fmt.Sprintf("AcquisitionState{%s}", m.State)
}

// StatusMessage is acknowledged without action
type StatusMessage struct {
	Raw json.RawMessage
}

func (m *StatusMessage) Type() ControlType { return ControlStatus }

func (m *StatusMessage) String() string {
	return fmt.Sprintf("Status{%s}", string(m.Raw))
}

// UnknownMessage preserves a well-formed object with no recognized key
type UnknownMessage struct {
	Raw []byte
}

func (m *UnknownMessage) Type() ControlType { return ControlUnknown }

func (m *UnknownMessage) String() string {
	return fmt.Sprintf("Unknown{%s}", string(m.Raw))
}

// DecodeControl parses a control payload into a typed message.
//
// Keys are checked in a fixed order (unsubscribed, subscribed, available,
// unavailable, acquisition_state, status) and the first present key decides
// the message type. An object without any of them is returned as an
// UnknownMessage; invalid JSON yields ErrMalformedControl.
func DecodeControl(payload []byte) (ControlMessage, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedControl, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: payload is not a JSON object", ErrMalformedControl)
	}

	for _, key := range controlKeyOrder {
		raw, ok := fields[string(key)]
		if !ok {
			continue
		}
		msg, err := decodeControlField(key, raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %q: %v", ErrMalformedControl, key, err)
		}
		return msg, nil
	}

	return &UnknownMessage{Raw: append([]byte(nil), payload...)}, nil
}

func decodeControlField(key ControlType, raw json.RawMessage) (ControlMessage, error) {
	switch key {
	case ControlUnsubscribed:
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, err
		}
		return &UnsubscribedMessage{Names: names}, nil

	case ControlSubscribed:
		var channels []SubscribedChannel
		if err := json.Unmarshal(raw, &channels); err != nil {
			return nil, err
		}
		return &SubscribedMessage{Channels: channels}, nil

	case ControlAvailable:
		var channels map[string]ChannelSpec
		if err := json.Unmarshal(raw, &channels); err != nil {
			return nil, err
		}
		if channels == nil {
			channels = make(map[string]ChannelSpec)
		}
		return &AvailableMessage{Channels: channels}, nil

	case ControlUnavailable:
		var names []string
		if err := json.Unmarshal(raw, &names); err != nil {
			return nil, err
		}
		return &UnavailableMessage{Names: names}, nil

	case ControlAcquisitionState:
		var state string
		if err := json.Unmarshal(raw, &state); err != nil {
			return nil, err
		}
		return &AcquisitionStateMessage{State: state}, nil

	case ControlStatus:
		return &StatusMessage{Raw: append(json.RawMessage(nil), raw...)}, nil
	}

	return nil, fmt.Errorf("unhandled control key %q", key)
}
