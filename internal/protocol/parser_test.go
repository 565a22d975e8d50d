package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeControl(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    ControlType
		verify  func(t *testing.T, msg ControlMessage)
	}{
		{
			name:    "available channels",
			payload: `{"available":{"volts":{"sample_period":0.0005,"data_type":"int16","scale":0.01,"offset":-1.5},"amps":{"sample_period":0.001,"data_type":"float","scale":1,"offset":0}}}`,
			want:    ControlAvailable,
			verify: func(t *testing.T, msg ControlMessage) {
				m := msg.(*AvailableMessage)
				assert.Equal(t, []string{"amps", "volts"}, m.SortedNames())
				assert.Equal(t, ChannelSpec{SamplePeriod: 0.0005, DataType: "int16", Scale: 0.01, Offset: -1.5}, m.Channels["volts"])
			},
		},
		{
			name:    "subscribe confirmation",
			payload: `{"subscribed":[{"name":"temp","id":3,"first_sample_timestamp_ns":5000000000}]}`,
			want:    ControlSubscribed,
			verify: func(t *testing.T, msg ControlMessage) {
				m := msg.(*SubscribedMessage)
				require.Len(t, m.Channels, 1)
				assert.Equal(t, "temp", m.Channels[0].Name)
				assert.Equal(t, 3, m.Channels[0].ID)
				assert.Equal(t, 5.0, m.Channels[0].FirstSampleTimestamp())
			},
		},
		{
			name:    "timestamp beyond int64 range",
			payload: `{"subscribed":[{"name":"t","id":0,"first_sample_timestamp_ns":18446744073709551615}]}`,
			want:    ControlSubscribed,
			verify: func(t *testing.T, msg ControlMessage) {
				m := msg.(*SubscribedMessage)
				assert.Equal(t, uint64(18446744073709551615), m.Channels[0].FirstSampleTimestampNS)
			},
		},
		{
			name:    "unsubscribe confirmation",
			payload: `{"unsubscribed":["temp","volts"]}`,
			want:    ControlUnsubscribed,
			verify: func(t *testing.T, msg ControlMessage) {
				assert.Equal(t, []string{"temp", "volts"}, msg.(*UnsubscribedMessage).Names)
			},
		},
		{
			name:    "unavailable channels",
			payload: `{"unavailable":["temp"]}`,
			want:    ControlUnavailable,
			verify: func(t *testing.T, msg ControlMessage) {
				assert.Equal(t, []string{"temp"}, msg.(*UnavailableMessage).Names)
			},
		},
		{
			name:    "acquisition state",
			payload: `{"acquisition_state":"off"}`,
			want:    ControlAcquisitionState,
			verify: func(t *testing.T, msg ControlMessage) {
				assert.Equal(t, AcquisitionOff, msg.(*AcquisitionStateMessage).State)
			},
		},
		{
			name:    "status is acknowledged",
			payload: `{"status":{"uptime":12}}`,
			want:    ControlStatus,
			verify: func(t *testing.T, msg ControlMessage) {
				assert.JSONEq(t, `{"uptime":12}`, string(msg.(*StatusMessage).Raw))
			},
		},
		{
			name:    "unsubscribed wins over subscribed",
			payload: `{"subscribed":[],"unsubscribed":["x"]}`,
			want:    ControlUnsubscribed,
		},
		{
			name:    "subscribed wins over available",
			payload: `{"available":{},"subscribed":[]}`,
			want:    ControlSubscribed,
		},
		{
			name:    "unrecognized object",
			payload: `{"hello":"world"}`,
			want:    ControlUnknown,
			verify: func(t *testing.T, msg ControlMessage) {
				assert.Equal(t, `{"hello":"world"}`, string(msg.(*UnknownMessage).Raw))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeControl([]byte(tt.payload))
			require.NoError(t, err)
			assert.Equal(t, tt.want, msg.Type())
			assert.NotEmpty(t, msg.String())
			if tt.verify != nil {
				tt.verify(t, msg)
			}
		})
	}
}

func TestDecodeControl_Malformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"truncated JSON", `{"available":`},
		{"not an object", `["subscribe"]`},
		{"null", `null`},
		{"binary garbage", "\x00\x01\x02\x03"},
		{"wrong shape for unsubscribed", `{"unsubscribed":"temp"}`},
		{"wrong shape for subscribed", `{"subscribed":{"name":"temp"}}`},
		{"non-string acquisition state", `{"acquisition_state":true}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := DecodeControl([]byte(tt.payload))
			assert.Nil(t, msg)
			assert.ErrorIs(t, err, ErrMalformedControl)
		})
	}
}
