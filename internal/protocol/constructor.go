package protocol

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
)

// Outbound control message keys
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
	CommandAcquire     = "acquire"
)

// SubscribeRequest asks for one channel at a given decimation factor
type SubscribeRequest struct {
	Name       string
	Decimation int // values below 1 are sent as 1
}

// BuildControlFrame prefixes a JSON payload with a control header.
//
// Frame Structure:
//
//	[0-3]   MetadataID     (big-endian uint32)
//	[4-7]   8+len(payload) (big-endian uint32)
//	[8+]    payload        JSON bytes
//
// Header and payload share one buffer so they can go out in a single write.
func BuildControlFrame(payload []byte) ([]byte, error) {
	total := uint64(HeaderSize) + uint64(len(payload))
	if total > math.MaxUint32 {
		return nil, fmt.Errorf("control payload too large: %d bytes", len(payload))
	}

	frame := make([]byte, HeaderSize+len(payload))
	PutHeader(frame, Header{ID: MetadataID, Length: uint32(total)})
	copy(frame[HeaderSize:], payload)

	return frame, nil
}

// BuildControl marshals v to JSON and wraps it in a control frame
func BuildControl(v any) ([]byte, error) {
	payload, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal control message: %w", err)
	}
	return BuildControlFrame(payload)
}

// BuildSubscribe constructs {"subscribe": {name: decimation, ...}}.
// A name listed twice keeps its last decimation factor.
func BuildSubscribe(reqs []SubscribeRequest) ([]byte, error) {
	if len(reqs) == 0 {
		return nil, fmt.Errorf("subscribe request has no channels")
	}

	channels := make(map[string]int, len(reqs))
	for _, req := range reqs {
		channels[req.Name] = NormalizeDecimation(req.Decimation)
	}

	return BuildControl(map[string]map[string]int{CommandSubscribe: channels})
}

// BuildUnsubscribe constructs {"unsubscribe": [id, ...]}
func BuildUnsubscribe(ids []int) ([]byte, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("unsubscribe request has no channel ids")
	}
	return BuildControl(map[string][]int{CommandUnsubscribe: ids})
}

// BuildAcquire constructs {"acquire": on}
func BuildAcquire(on bool) ([]byte, error) {
	return BuildControl(map[string]bool{CommandAcquire: on})
}

// BuildDataFrame constructs a data message for channel id carrying samples
// in the given byte order. Acquisition servers and test harnesses use it;
// the client itself never sends data.
func BuildDataFrame(id uint32, samples []float32, order binary.ByteOrder) ([]byte, error) {
	if id > MaxChannelID {
		return nil, fmt.Errorf("%w: data channel id %d", ErrInvalidID, id)
	}

	frame := make([]byte, HeaderSize, HeaderSize+len(samples)*SampleSize)
	frame = EncodeSamples(frame, samples, order)
	PutHeader(frame, Header{ID: id, Length: uint32(len(frame))})

	return frame, nil
}

// NormalizeDecimation clamps a decimation factor to at least 1
func NormalizeDecimation(d int) int {
	if d < 1 {
		return 1
	}
	return d
}
