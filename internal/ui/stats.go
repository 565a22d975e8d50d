package ui

import (
	"sync"

	"github.com/hitechniques/llclient/internal/client"
)

// ChannelStats summarizes the data received for one channel
type ChannelStats struct {
	Samples   uint64  // Since acquisition last started
	Frames    uint64  // Since acquisition last started
	LastValue float64 // Scaled value of the newest sample
	HasValue  bool
}

// DataStats aggregates data events by channel name. It is written from the
// client's reader goroutine and read by the dashboard.
type DataStats struct {
	mu       sync.Mutex
	channels map[string]*ChannelStats
	scratch  []float64
}

func NewDataStats() *DataStats {
	return &DataStats{channels: make(map[string]*ChannelStats)}
}

// Add records one data frame
func (s *DataStats) Add(ev client.ChannelData) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.channels[ev.Channel.Name]
	if !ok {
		st = &ChannelStats{}
		s.channels[ev.Channel.Name] = st
	}
	st.Frames++
	if ev.Count == 0 {
		return
	}
	st.Samples += uint64(ev.Count)

	s.scratch = ev.Values(s.scratch[:0])
	st.LastValue = s.scratch[len(s.scratch)-1]
	st.HasValue = true
}

// Reset zeroes the sample and frame totals. Last values are kept.
func (s *DataStats) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, st := range s.channels {
		st.Samples = 0
		st.Frames = 0
	}
}

// Remove forgets a channel
func (s *DataStats) Remove(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, name)
}

// Snapshot returns a copy of the per-channel statistics
func (s *DataStats) Snapshot() map[string]ChannelStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make(map[string]ChannelStats, len(s.channels))
	for name, st := range s.channels {
		out[name] = *st
	}
	return out
}
