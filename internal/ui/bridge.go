package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/hitechniques/llclient/internal/client"
)

const bridgeBuffer = 64

// eventMsg delivers a client event to the dashboard
type eventMsg struct {
	event client.Event
}

// Bridge carries client events into a Bubble Tea program.
//
// Data events are folded into DataStats on the reader goroutine; the
// dashboard samples them on a timer. Every other event is queued and
// delivered as a message, in order.
type Bridge struct {
	events chan client.Event
	closed chan struct{}
	once   sync.Once
	stats  *DataStats
}

func NewBridge() *Bridge {
	return &Bridge{
		events: make(chan client.Event, bridgeBuffer),
		closed: make(chan struct{}),
		stats:  NewDataStats(),
	}
}

// Stats returns the data aggregator fed by the sink
func (b *Bridge) Stats() *DataStats {
	return b.stats
}

// Sink returns the client.EventSink feeding this bridge. Control events
// block while the queue is full, until the bridge is closed.
func (b *Bridge) Sink() client.EventSink {
	return func(ev client.Event) {
		switch e := ev.(type) {
		case client.ChannelData:
			b.stats.Add(e)
			return
		case client.AcquisitionChanged:
			if !e.Acquiring {
				b.stats.Reset()
			}
		case client.UnavailableChannel:
			b.stats.Remove(e.Name)
		}

		select {
		case b.events <- ev:
		case <-b.closed:
		}
	}
}

// Close releases a sink blocked on a full queue. Safe to call more than once.
func (b *Bridge) Close() {
	b.once.Do(func() { close(b.closed) })
}

// wait returns a command that delivers the next queued event
func (b *Bridge) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case ev := <-b.events:
			return eventMsg{event: ev}
		case <-b.closed:
			return nil
		}
	}
}
