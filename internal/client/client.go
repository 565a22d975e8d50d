package client

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/logging"
	"github.com/hitechniques/llclient/internal/metrics"
	"github.com/hitechniques/llclient/internal/protocol"
)

// DefaultPort is the acquisition server's well-known stream port
const DefaultPort = "10006"

// DefaultDialTimeout bounds Dial when the Config leaves it unset
const DefaultDialTimeout = 5 * time.Second

// NotFound is returned by SubscribedChannelID for names that are not subscribed
const NotFound = -1

// waitPollInterval is how often WaitUnsubscribed checks the registry
const waitPollInterval = 20 * time.Millisecond

// Config holds connection parameters for Dial
type Config struct {
	Host            string
	Port            string           // Defaults to DefaultPort
	DialTimeout     time.Duration    // Defaults to DefaultDialTimeout
	MaxFrameSize    int              // Defaults to protocol.DefaultMaxFrameSize
	SampleByteOrder binary.ByteOrder // Defaults to little-endian
}

// Addr returns host:port with defaults applied
func (c Config) Addr() string {
	port := c.Port
	if port == "" {
		port = DefaultPort
	}
	return net.JoinHostPort(c.Host, port)
}

// Option configures a Client
type Option func(*Client)

// WithMetrics records engine activity in m
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithMaxFrameSize sets the receive buffer size
func WithMaxFrameSize(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxFrameSize = n
		}
	}
}

// WithSampleByteOrder sets the byte order of data samples
func WithSampleByteOrder(order binary.ByteOrder) Option {
	return func(c *Client) {
		if order != nil {
			c.order = order
		}
	}
}

// WithInitialSubscriptions subscribes to these channels whenever the server
// announces them
func WithInitialSubscriptions(reqs []protocol.SubscribeRequest) Option {
	return func(c *Client) {
		for _, req := range reqs {
			c.autoSubscribe[req.Name] = req.Decimation
		}
	}
}

// Client is a connection to an acquisition server.
//
// A reader goroutine owns the receive side for the lifetime of the
// connection and delivers events to the sink. Subscribe, unsubscribe and
// acquire calls may be made from any goroutine, including from the sink.
type Client struct {
	conn     net.Conn
	addr     string
	registry *channels.Registry
	sink     EventSink
	metrics  *metrics.Collector

	maxFrameSize  int
	order         binary.ByteOrder
	autoSubscribe map[string]int

	writeMu sync.Mutex
	closing atomic.Bool
	done    chan struct{}

	errMu sync.Mutex
	err   error
}

// Dial connects to the server described by cfg and starts the reader
func Dial(ctx context.Context, cfg Config, sink EventSink, opts ...Option) (*Client, error) {
	timeout := cfg.DialTimeout
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}

	addr := cfg.Addr()
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, ClassifyNetworkError("dial", addr, err)
	}

	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}

	all := make([]Option, 0, len(opts)+2)
	all = append(all, WithMaxFrameSize(cfg.MaxFrameSize), WithSampleByteOrder(cfg.SampleByteOrder))
	all = append(all, opts...)

	return New(conn, sink, all...), nil
}

// New takes ownership of an established connection and starts the reader
func New(conn net.Conn, sink EventSink, opts ...Option) *Client {
	if sink == nil {
		sink = func(Event) {}
	}

	c := &Client{
		conn:          conn,
		addr:          conn.RemoteAddr().String(),
		registry:      channels.New(),
		sink:          sink,
		maxFrameSize:  protocol.DefaultMaxFrameSize,
		order:         binary.LittleEndian,
		autoSubscribe: make(map[string]int),
		done:          make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	c.metrics.SetConnected(true)
	logging.LogConnection(c.addr, "connected")

	reader := protocol.NewReader(conn, protocol.WithMaxFrameSize(c.maxFrameSize))
	go c.readLoop(reader)

	return c
}

// Addr returns the server address
func (c *Client) Addr() string {
	return c.addr
}

// Done is closed when the reader goroutine exits
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Err returns the fatal error that ended the connection, or nil if it is
// still open or was closed with Close
func (c *Client) Err() error {
	c.errMu.Lock()
	defer c.errMu.Unlock()
	return c.err
}

// Snapshot returns a copy of the channel registry
func (c *Client) Snapshot() channels.Snapshot {
	return c.registry.Snapshot()
}

// Acquiring returns the local acquisition flag
func (c *Client) Acquiring() bool {
	return c.registry.Acquiring()
}

// SubscribedChannelID returns the id name is subscribed under, or NotFound
func (c *Client) SubscribedChannelID(name string) int {
	if id, ok := c.registry.SubscribedID(name); ok {
		return id
	}
	return NotFound
}

// SubscribeChannels requests subscription to every available channel in
// reqs. Names that are not available are dropped; when none remain nothing
// is sent. Confirmation arrives later as a ChannelSubscribed event.
func (c *Client) SubscribeChannels(reqs []protocol.SubscribeRequest) error {
	if c.closing.Load() {
		return ErrClosed
	}

	accepted := c.registry.RequestSubscribe(reqs)
	if len(accepted) == 0 {
		return nil
	}

	wire := make([]protocol.SubscribeRequest, len(accepted))
	for i, desc := range accepted {
		wire[i] = protocol.SubscribeRequest{Name: desc.Name, Decimation: desc.DecimationFactor}
	}

	msg, err := protocol.BuildSubscribe(wire)
	if err != nil {
		return err
	}

	c.updateGauges()
	return c.send(protocol.CommandSubscribe, msg)
}

// SubscribeChannel subscribes to a single channel
func (c *Client) SubscribeChannel(name string, decimation int) error {
	return c.SubscribeChannels([]protocol.SubscribeRequest{{Name: name, Decimation: decimation}})
}

// UnsubscribeChannels requests that the subscribed ids in ids stop
// streaming. Ids that are not subscribed are dropped.
func (c *Client) UnsubscribeChannels(ids []int) error {
	if c.closing.Load() {
		return ErrClosed
	}

	kept := c.registry.FilterSubscribed(ids)
	if len(kept) == 0 {
		return nil
	}

	msg, err := protocol.BuildUnsubscribe(kept)
	if err != nil {
		return err
	}
	return c.send(protocol.CommandUnsubscribe, msg)
}

// UnsubscribeChannel unsubscribes a single id
func (c *Client) UnsubscribeChannel(id int) error {
	return c.UnsubscribeChannels([]int{id})
}

// UnsubscribeAll unsubscribes every subscribed channel
func (c *Client) UnsubscribeAll() error {
	return c.UnsubscribeChannels(c.registry.SubscribedIDs())
}

// WaitUnsubscribed blocks until no channel is subscribed, the connection
// ends, or ctx is done
func (c *Client) WaitUnsubscribed(ctx context.Context) error {
	ticker := time.NewTicker(waitPollInterval)
	defer ticker.Stop()

	for {
		if _, _, subscribed := c.registry.Counts(); subscribed == 0 {
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return ErrClosed
		case <-ticker.C:
		}
	}
}

// Acquire toggles acquisition. The local flag flips immediately; the
// server's acquisition_state reply decides the real state.
func (c *Client) Acquire() error {
	if c.closing.Load() {
		return ErrClosed
	}

	on := c.registry.ToggleAcquisition()
	msg, err := protocol.BuildAcquire(on)
	if err != nil {
		return err
	}
	return c.send(protocol.CommandAcquire, msg)
}

// Close shuts the connection down and waits for the reader goroutine.
// It must not be called from the EventSink.
func (c *Client) Close() error {
	if !c.closing.CompareAndSwap(false, true) {
		<-c.done
		return nil
	}

	if hc, ok := c.conn.(interface {
		CloseRead() error
		CloseWrite() error
	}); ok {
		_ = hc.CloseRead()
		_ = hc.CloseWrite()
	}
	err := c.conn.Close()

	<-c.done

	c.metrics.SetConnected(false)
	logging.LogConnection(c.addr, "closed")

	if err != nil && !isClosedConnError(err) {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// send writes one fully encoded control frame
func (c *Client) send(command string, msg []byte) error {
	c.writeMu.Lock()
	_, err := c.conn.Write(msg)
	c.writeMu.Unlock()

	if err != nil {
		if c.closing.Load() {
			return ErrClosed
		}
		return ClassifyNetworkError("write", c.addr, err)
	}

	c.metrics.ControlSent(command)
	if hdr, herr := protocol.DecodeHeader(msg); herr == nil {
		logging.LogFrame("send", hdr.ID, hdr.Length)
	}
	logging.LogControl("send", msg[protocol.HeaderSize:])
	return nil
}

func (c *Client) readLoop(reader *protocol.Reader) {
	defer close(c.done)

	for {
		frame, err := reader.Next()
		if err != nil {
			c.fail(err)
			return
		}
		c.handleFrame(frame)
	}
}

// fail ends the connection after a fatal read error
func (c *Client) fail(err error) {
	if c.closing.Load() {
		logging.Debug("Reader stopped", zap.String("addr", c.addr), zap.Error(err))
		return
	}

	connErr := ClassifyNetworkError("read", c.addr, err)
	logging.Error("Stream connection failed",
		zap.String("addr", c.addr),
		zap.String("type", connErr.Type.String()),
		zap.Error(err),
	)

	c.errMu.Lock()
	c.err = connErr
	c.errMu.Unlock()

	_ = c.conn.Close()
	c.metrics.SetConnected(false)
	c.sink(Disconnected{Err: connErr})
}

func (c *Client) handleFrame(frame protocol.Frame) {
	logging.LogFrame("recv", frame.ID, frame.Length)

	if frame.IsControl() {
		c.metrics.FrameReceived(metrics.KindControl, frame.Length)
		c.handleControl(frame.Payload)
		return
	}

	c.metrics.FrameReceived(metrics.KindData, frame.Length)
	c.handleData(frame)
}

func (c *Client) handleData(frame protocol.Frame) {
	id := int(frame.ID)
	desc, ok := c.registry.Subscription(id)
	if !ok {
		// In-flight data after an unsubscribe
		logging.Debug("Dropping data for unsubscribed channel", zap.Int("id", id))
		c.metrics.DataDropped()
		return
	}

	count := protocol.SampleCount(frame.PayloadLen())
	c.metrics.SamplesReceived(desc.Name, count)

	c.sink(ChannelData{
		ID:      id,
		Raw:     frame.Payload,
		Count:   count,
		Channel: desc,
		order:   c.order,
	})
}

func (c *Client) updateGauges() {
	available, pending, subscribed := c.registry.Counts()
	c.metrics.SetChannelCounts(available, pending, subscribed)
}

func isClosedConnError(err error) bool {
	return errors.Is(err, net.ErrClosed)
}
