package ui

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hitechniques/llclient/internal/channels"
	"github.com/hitechniques/llclient/internal/client"
	"github.com/hitechniques/llclient/internal/protocol"
)

// fakeController records the calls the dashboard makes
type fakeController struct {
	reg *channels.Registry

	mu             sync.Mutex
	subscribed     []string
	unsubscribed   []int
	acquires       int
	unsubscribeAll int

	onWait func(ctx context.Context) error
}

func newFakeController(names ...string) *fakeController {
	reg := channels.New()
	msg := &protocol.AvailableMessage{Channels: map[string]protocol.ChannelSpec{}}
	for _, name := range names {
		msg.Channels[name] = protocol.ChannelSpec{SamplePeriod: 0.001, Scale: 1}
	}
	reg.ApplyAvailable(msg)
	return &fakeController{reg: reg}
}

func (f *fakeController) Snapshot() channels.Snapshot { return f.reg.Snapshot() }

func (f *fakeController) SubscribedChannelID(name string) int {
	if id, ok := f.reg.SubscribedID(name); ok {
		return id
	}
	return client.NotFound
}

func (f *fakeController) SubscribeChannel(name string, decimation int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.subscribed = append(f.subscribed, name)
	return nil
}

func (f *fakeController) UnsubscribeChannel(id int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribed = append(f.unsubscribed, id)
	return nil
}

func (f *fakeController) UnsubscribeAll() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unsubscribeAll++
	return nil
}

func (f *fakeController) WaitUnsubscribed(ctx context.Context) error {
	if f.onWait != nil {
		return f.onWait(ctx)
	}
	return nil
}

func (f *fakeController) Acquire() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.acquires++
	return nil
}

func (f *fakeController) confirm(name string, id int) {
	f.reg.RequestSubscribe([]protocol.SubscribeRequest{{Name: name, Decimation: 1}})
	f.reg.ApplySubscribed([]protocol.SubscribedChannel{{Name: name, ID: id, FirstSampleTimestampNS: 1_700_000_000_000_000_000}})
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

var spaceKey = tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}

func update(t *testing.T, d Dashboard, msg tea.Msg) (Dashboard, tea.Cmd) {
	t.Helper()
	m, cmd := d.Update(msg)
	next, ok := m.(Dashboard)
	require.True(t, ok)
	return next, cmd
}

func dataEvent(name string, scale float64, values ...float32) client.ChannelData {
	raw := make([]byte, 0, len(values)*protocol.SampleSize)
	for _, v := range values {
		raw = binary.LittleEndian.AppendUint32(raw, math.Float32bits(v))
	}
	return client.ChannelData{
		Raw:     raw,
		Count:   len(values),
		Channel: channels.Descriptor{Name: name, Scale: scale, DecimationFactor: 1},
	}
}

func TestDataStats(t *testing.T) {
	s := NewDataStats()
	s.Add(dataEvent("volts", 2, 1, 2, 3))
	s.Add(dataEvent("volts", 2, 4))
	s.Add(dataEvent("amps", 1))

	snap := s.Snapshot()
	assert.Equal(t, uint64(4), snap["volts"].Samples)
	assert.Equal(t, uint64(2), snap["volts"].Frames)
	assert.Equal(t, 8.0, snap["volts"].LastValue)
	assert.True(t, snap["volts"].HasValue)
	assert.Equal(t, uint64(1), snap["amps"].Frames)
	assert.False(t, snap["amps"].HasValue)

	s.Reset()
	snap = s.Snapshot()
	assert.Zero(t, snap["volts"].Samples)
	assert.Zero(t, snap["volts"].Frames)
	assert.Equal(t, 8.0, snap["volts"].LastValue, "reset keeps the last value")

	s.Remove("volts")
	_, ok := s.Snapshot()["volts"]
	assert.False(t, ok)
}

func TestBridge_Sink(t *testing.T) {
	b := NewBridge()
	sink := b.Sink()

	sink(dataEvent("volts", 1, 5))
	sink(client.AvailableChannel{Channel: channels.Descriptor{Name: "volts"}})
	assert.Len(t, b.events, 1, "data events bypass the queue")
	assert.Equal(t, uint64(1), b.Stats().Snapshot()["volts"].Samples)

	sink(client.AcquisitionChanged{Acquiring: false})
	assert.Zero(t, b.Stats().Snapshot()["volts"].Samples)

	msg := b.wait()()
	ev, ok := msg.(eventMsg)
	require.True(t, ok)
	assert.Equal(t, client.KindAvailableChannel, ev.event.Kind())
}

func TestBridge_CloseReleasesBlockedSink(t *testing.T) {
	b := NewBridge()
	sink := b.Sink()
	for i := 0; i < bridgeBuffer; i++ {
		sink(client.ChannelUnsubscribed{ID: i})
	}

	done := make(chan struct{})
	go func() {
		sink(client.ChannelUnsubscribed{ID: 99})
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("sink should block while the queue is full")
	case <-time.After(50 * time.Millisecond):
	}

	b.Close()
	b.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Close should release the sink")
	}
}

func TestRun_CancelledReleasesSinkBeforeUnsubscribe(t *testing.T) {
	ctrl := newFakeController("volts")
	b := NewBridge()
	sink := b.Sink()

	// The reader delivers the unsubscribe confirmation while the queue is
	// full and the program is gone
	ctrl.onWait = func(ctx context.Context) error {
		for full := false; !full; {
			select {
			case b.events <- client.AvailableChannel{}:
			default:
				full = true
			}
		}

		delivered := make(chan struct{})
		go func() {
			sink(client.ChannelUnsubscribed{ID: 1, Name: "volts"})
			close(delivered)
		}()

		select {
		case <-delivered:
			return nil
		case <-time.After(time.Second):
			return errors.New("sink blocked during shutdown")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Run(ctx, ctrl, b, "127.0.0.1:10006",
		tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutSignalHandler())
	require.NoError(t, err)
	assert.Equal(t, 1, ctrl.unsubscribeAll)
}

func TestDashboard_Rows(t *testing.T) {
	ctrl := newFakeController("amps", "volts", "temp")
	ctrl.confirm("volts", 4)
	ctrl.reg.RequestSubscribe([]protocol.SubscribeRequest{{Name: "temp", Decimation: 2}})

	d := NewDashboard(ctrl, NewBridge(), "127.0.0.1:10006")
	require.Len(t, d.rows, 3)

	states := map[string]channelState{}
	for _, r := range d.rows {
		states[r.channel.Name] = r.state
	}
	assert.Equal(t, stateAvailable, states["amps"])
	assert.Equal(t, statePending, states["temp"])
	assert.Equal(t, stateSubscribed, states["volts"])

	view := d.View()
	for _, want := range []string{"LL-CLIENT", "127.0.0.1:10006", "amps", "volts", "#4", "pending"} {
		assert.Contains(t, view, want)
	}
}

func TestDashboard_Cursor(t *testing.T) {
	d := NewDashboard(newFakeController("a", "b"), NewBridge(), "srv")

	d, _ = update(t, d, keyRunes("k"))
	assert.Equal(t, 0, d.cursor)
	d, _ = update(t, d, tea.KeyMsg{Type: tea.KeyDown})
	d, _ = update(t, d, keyRunes("j"))
	assert.Equal(t, 1, d.cursor)
	d, _ = update(t, d, tea.KeyMsg{Type: tea.KeyUp})
	assert.Equal(t, 0, d.cursor)
}

func TestDashboard_Toggle(t *testing.T) {
	ctrl := newFakeController("amps", "volts")
	ctrl.confirm("volts", 6)
	d := NewDashboard(ctrl, NewBridge(), "srv")

	d, cmd := update(t, d, spaceKey)
	require.NotNil(t, cmd)
	assert.Equal(t, actionMsg{action: "subscribe"}, cmd())
	assert.Equal(t, []string{"amps"}, ctrl.subscribed)

	d, _ = update(t, d, keyRunes("j"))
	_, cmd = update(t, d, spaceKey)
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, []int{6}, ctrl.unsubscribed)
}

func TestDashboard_Acquire(t *testing.T) {
	ctrl := newFakeController("amps")
	d := NewDashboard(ctrl, NewBridge(), "srv")

	d, cmd := update(t, d, keyRunes("a"))
	require.NotNil(t, cmd)
	cmd()
	assert.Equal(t, 1, ctrl.acquires)

	d, _ = update(t, d, actionMsg{action: "acquire", err: errors.New("broken pipe")})
	assert.Contains(t, d.status, "acquire failed")
}

func TestDashboard_QuitUnsubscribesAll(t *testing.T) {
	ctrl := newFakeController("amps")
	d := NewDashboard(ctrl, NewBridge(), "srv")

	d, cmd := update(t, d, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.True(t, d.quitting)

	msg := cmd()
	assert.Equal(t, shutdownMsg{}, msg)
	assert.Equal(t, 1, ctrl.unsubscribeAll)

	// Keys are ignored while shutting down
	_, cmd = update(t, d, keyRunes("a"))
	assert.Nil(t, cmd)

	_, cmd = update(t, d, msg)
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
}

func TestDashboard_Disconnected(t *testing.T) {
	ctrl := newFakeController("amps")
	d := NewDashboard(ctrl, NewBridge(), "srv")

	lost := &client.ConnectionError{Type: client.ErrTypeClosed, Op: "read", Err: errors.New("EOF")}
	d, cmd := update(t, d, eventMsg{event: client.Disconnected{Err: lost}})
	assert.NotNil(t, cmd, "the dashboard keeps listening")
	assert.ErrorIs(t, d.Err(), lost)
	assert.True(t, strings.Contains(d.View(), "disconnected"))

	_, cmd = update(t, d, spaceKey)
	assert.Nil(t, cmd)

	_, cmd = update(t, d, keyRunes("q"))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.Zero(t, ctrl.unsubscribeAll)
}

func TestDashboard_TickSamplesStats(t *testing.T) {
	ctrl := newFakeController("volts")
	ctrl.confirm("volts", 1)
	bridge := NewBridge()
	d := NewDashboard(ctrl, bridge, "srv")

	bridge.Sink()(dataEvent("volts", 1, 1.5, 2.5))
	d, cmd := update(t, d, tickMsg(time.Now()))
	assert.NotNil(t, cmd)
	assert.Equal(t, uint64(2), d.stats["volts"].Samples)
	assert.Contains(t, d.View(), "2.5")
}

func TestFormatting(t *testing.T) {
	assert.Equal(t, "-", formatRate(0))
	assert.Equal(t, "-", formatRate(math.Inf(1)))
	assert.Equal(t, "1000.0", formatRate(1000))
	assert.Equal(t, "-", formatTimestamp(0, true))
	assert.Equal(t, "-", formatTimestamp(12, false))
	assert.Len(t, formatTimestamp(1_700_000_000.25, true), len("15:04:05.000"))
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
