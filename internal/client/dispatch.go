package client

import (
	"go.uber.org/zap"

	"github.com/hitechniques/llclient/internal/logging"
	"github.com/hitechniques/llclient/internal/protocol"
)

// Reasons recorded for reported control conditions
const (
	reasonMalformed          = "malformed"
	reasonUnknown            = "unknown"
	reasonDuplicateAvailable = "duplicate_available"
	reasonConfirmUnavailable = "confirm_unavailable"
	reasonConfirmUnmatched   = "confirm_unmatched"
	reasonConfirmInvalidID   = "confirm_invalid_id"
	reasonAcquisitionState   = "acquisition_state"
)

// handleControl decodes one control payload and applies it to the registry.
// Events are emitted after each registry call returns, outside its lock.
func (c *Client) handleControl(payload []byte) {
	logging.LogControl("recv", payload)

	msg, err := protocol.DecodeControl(payload)
	if err != nil {
		logging.Warn("Dropping malformed control message",
			zap.String("addr", c.addr),
			zap.Int("length", len(payload)),
			zap.Error(err),
		)
		logging.LogRawBytes("Malformed control payload", payload)
		c.metrics.ControlError(reasonMalformed)
		return
	}

	c.metrics.ControlMessage(string(msg.Type()))

	switch m := msg.(type) {
	case *protocol.UnsubscribedMessage:
		c.onUnsubscribed(m)
	case *protocol.SubscribedMessage:
		c.onSubscribed(m)
	case *protocol.AvailableMessage:
		c.onAvailable(m)
	case *protocol.UnavailableMessage:
		c.onUnavailable(m)
	case *protocol.AcquisitionStateMessage:
		c.onAcquisitionState(m)
	case *protocol.StatusMessage:
		logging.Debug("Server status", zap.ByteString("status", m.Raw))
	case *protocol.UnknownMessage:
		logging.Warn("Unrecognized control message", zap.ByteString("content", m.Raw))
		c.metrics.ControlError(reasonUnknown)
	}

	c.updateGauges()
}

func (c *Client) onUnsubscribed(m *protocol.UnsubscribedMessage) {
	for _, u := range c.registry.ApplyUnsubscribed(m.Names) {
		logging.Info("Channel unsubscribed", zap.String("channel", u.Name), zap.Int("id", u.ID))
		c.sink(ChannelUnsubscribed{ID: u.ID, Name: u.Name})
	}
}

func (c *Client) onSubscribed(m *protocol.SubscribedMessage) {
	res := c.registry.ApplySubscribed(m.Channels)

	for _, name := range res.Unavailable {
		logging.Warn("Subscribe confirmed for a channel that is no longer available",
			zap.String("channel", name))
		c.metrics.ControlError(reasonConfirmUnavailable)
	}
	for _, name := range res.Unmatched {
		logging.Debug("Subscribe confirmation without a pending request", zap.String("channel", name))
		c.metrics.ControlError(reasonConfirmUnmatched)
	}
	for _, name := range res.InvalidID {
		logging.Warn("Subscribe confirmed under an invalid channel id", zap.String("channel", name))
		c.metrics.ControlError(reasonConfirmInvalidID)
	}

	for _, ts := range res.Confirmed {
		logging.Info("Channel subscribed",
			zap.String("channel", ts.Name),
			zap.Int("id", ts.ID),
			zap.Float64("first_sample_timestamp", ts.Timestamp),
		)
		c.sink(ChannelSubscribed{Name: ts.Name, ID: ts.ID})
		c.sink(ChannelFirstSampleTimestamp{Name: ts.Name, ID: ts.ID, Timestamp: ts.Timestamp})
	}
}

func (c *Client) onAvailable(m *protocol.AvailableMessage) {
	res := c.registry.ApplyAvailable(m)

	for _, name := range res.Duplicates {
		logging.Warn("Channel announced twice", zap.String("channel", name))
		c.metrics.ControlError(reasonDuplicateAvailable)
	}

	var auto []protocol.SubscribeRequest
	for _, desc := range res.Added {
		logging.Debug("Channel available",
			zap.String("channel", desc.Name),
			zap.Float64("sample_period", desc.SamplePeriod),
			zap.String("data_type", desc.DataType),
		)
		c.sink(AvailableChannel{Channel: desc})

		if decimation, ok := c.autoSubscribe[desc.Name]; ok {
			auto = append(auto, protocol.SubscribeRequest{Name: desc.Name, Decimation: decimation})
		}
	}

	if len(auto) > 0 {
		if err := c.SubscribeChannels(auto); err != nil {
			logging.Warn("Initial subscription failed", zap.Error(err))
		}
	}
}

func (c *Client) onUnavailable(m *protocol.UnavailableMessage) {
	for _, removal := range c.registry.ApplyUnavailable(m.Names) {
		if removal.Subscribed {
			// The registry entry is already gone, so bypass the subscribed filter
			msg, err := protocol.BuildUnsubscribe([]int{removal.ID})
			if err == nil {
				err = c.send(protocol.CommandUnsubscribe, msg)
			}
			if err != nil {
				logging.Warn("Failed to unsubscribe withdrawn channel",
					zap.String("channel", removal.Name),
					zap.Int("id", removal.ID),
					zap.Error(err),
				)
			}
		}

		logging.Info("Channel unavailable", zap.String("channel", removal.Name))
		c.sink(UnavailableChannel{Name: removal.Name})
	}
}

func (c *Client) onAcquisitionState(m *protocol.AcquisitionStateMessage) {
	if m.State != protocol.AcquisitionOn && m.State != protocol.AcquisitionOff {
		logging.Warn("Unknown acquisition state", zap.String("state", m.State))
		c.metrics.ControlError(reasonAcquisitionState)
	}

	res := c.registry.ApplyAcquisitionState(m.State)
	for _, ts := range res.Reset {
		c.sink(ChannelFirstSampleTimestamp{Name: ts.Name, ID: ts.ID, Timestamp: 0})
	}

	c.metrics.SetAcquiring(res.Acquiring)
	logging.Info("Acquisition state", zap.Bool("acquiring", res.Acquiring))
	c.sink(AcquisitionChanged{Acquiring: res.Acquiring})
}
