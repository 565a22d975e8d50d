// Package protocol implements the low-latency streaming data wire protocol.
//
// This package handles framing, validation, and construction of the binary
// messages exchanged with a data-acquisition server. It has no knowledge of
// sockets: the Reader works over any io.Reader and the Build functions return
// byte slices ready to be written.
//
// # Wire Format
//
// Every message starts with an 8-byte header in network byte order:
//   - id: 4 bytes (big-endian)
//   - length: 4 bytes (big-endian), total message length including the header
//
// Two kinds of messages share one identifier space:
//   - Data messages: id 0-7, payload is a sequence of float32 samples
//   - Control messages: id MetadataID, payload is a UTF-8 JSON object
//
// MetadataID is a single high bit, so id&MetadataID != 0 separates control
// traffic from the small data channel ids. Any other id is a protocol
// violation and ends the connection.
//
// # Control Messages
//
// Outbound (client to server):
//
//	{"subscribe": {"chan_a": 4}}
//	{"unsubscribe": [3, 5]}
//	{"acquire": true}
//
// Inbound (server to client):
//
//	{"available": {"temp": {"sample_period": 0.001, "data_type": "int16", "scale": 0.1, "offset": 0}}}
//	{"unavailable": ["temp"]}
//	{"subscribed": [{"name": "temp", "id": 3, "first_sample_timestamp_ns": 5000000000}]}
//	{"unsubscribed": ["temp"]}
//	{"acquisition_state": "on"}
//	{"status": ...}
//
// # Usage Example - Reading
//
//	r := protocol.NewReader(conn)
//	for {
//	    frame, err := r.Next()
//	    if err != nil {
//	        return err
//	    }
//	    if frame.IsControl() {
//	        msg, err := protocol.DecodeControl(frame.Payload)
//	        ...
//	    }
//	}
//
// # Usage Example - Construction
//
//	msg, err := protocol.BuildSubscribe([]protocol.SubscribeRequest{{Name: "temp", Decimation: 4}})
//	if err != nil {
//	    return err
//	}
//	_, err = conn.Write(msg)
//
// # Thread Safety
//
// A Reader must be used from a single goroutine. All decode and Build
// functions are stateless and safe for concurrent use.
package protocol
