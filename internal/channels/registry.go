// Package channels holds the client-side view of the server's channels:
// what is available, what has been requested, and what is streaming.
//
// A Registry is shared by the frame reader goroutine and the application
// goroutines. Every method is one atomic mutation or read under a single
// mutex; results are returned as plain values so callers can emit events
// after the lock is released.
package channels

import (
	"sort"
	"sync"

	"github.com/hitechniques/llclient/internal/protocol"
)

// Descriptor describes one channel
type Descriptor struct {
	Name             string  `json:"name"`
	SamplePeriod     float64 `json:"sample_period"` // Seconds between samples
	DataType         string  `json:"data_type"`
	Scale            float64 `json:"scale"`
	Offset           float64 `json:"offset"`
	DecimationFactor int     `json:"decimation_factor"` // Requested at subscribe time, >= 1
}

// Convert applies scale and offset to a raw sample
func (d Descriptor) Convert(raw float32) float64 {
	return float64(raw)*d.Scale + d.Offset
}

// SampleRate returns samples per second, or 0 if the period is unknown
func (d Descriptor) SampleRate() float64 {
	if d.SamplePeriod <= 0 {
		return 0
	}
	return 1 / d.SamplePeriod
}

// Registry is the authoritative in-memory channel state
type Registry struct {
	mu          sync.Mutex
	available   map[string]Descriptor
	pending     []Descriptor
	subscribed  map[int]Descriptor
	firstSample map[string]float64
	acquiring   bool
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		available:   make(map[string]Descriptor),
		subscribed:  make(map[int]Descriptor),
		firstSample: make(map[string]float64),
	}
}

// RequestSubscribe keeps the requests whose channel is available, appends
// them to the pending list and returns them. Unknown names are dropped.
func (r *Registry) RequestSubscribe(reqs []protocol.SubscribeRequest) []Descriptor {
	r.mu.Lock()
	defer r.mu.Unlock()

	accepted := make([]Descriptor, 0, len(reqs))
	for _, req := range reqs {
		desc, ok := r.available[req.Name]
		if !ok {
			continue
		}
		desc.DecimationFactor = protocol.NormalizeDecimation(req.Decimation)
		accepted = append(accepted, desc)
	}

	r.pending = append(r.pending, accepted...)
	return accepted
}

// FilterSubscribed returns the ids that are currently subscribed, in the
// order given
func (r *Registry) FilterSubscribed(ids []int) []int {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := r.subscribed[id]; ok {
			kept = append(kept, id)
		}
	}
	return kept
}

// ToggleAcquisition flips the local acquisition flag and returns the new
// value. The server's acquisition_state message remains the source of truth.
func (r *Registry) ToggleAcquisition() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.acquiring = !r.acquiring
	return r.acquiring
}

// Acquiring returns the local acquisition flag
func (r *Registry) Acquiring() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.acquiring
}

// SubscribedID returns the id a channel is subscribed under
func (r *Registry) SubscribedID(name string) (int, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.idForName(name)
}

// SubscribedIDs returns every subscribed id in ascending order
func (r *Registry) SubscribedIDs() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sortedIDs()
}

// Subscription returns the descriptor subscribed under id
func (r *Registry) Subscription(id int) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.subscribed[id]
	return desc, ok
}

// lookupAvailable returns the descriptor of an available channel
func (r *Registry) lookupAvailable(name string) (Descriptor, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	desc, ok := r.available[name]
	return desc, ok
}

// firstSampleTimestamp returns the first-sample timestamp of a channel in
// seconds since the epoch
func (r *Registry) firstSampleTimestamp(name string) (float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ts, ok := r.firstSample[name]
	return ts, ok
}

// isPending reports whether a subscribe request for name awaits confirmation
func (r *Registry) isPending(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pendingIndex(name) >= 0
}

// Counts returns the sizes of the available, pending and subscribed tables
func (r *Registry) Counts() (available, pending, subscribed int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.available), len(r.pending), len(r.subscribed)
}

// idForName returns the lowest id subscribed under name. Callers hold mu.
func (r *Registry) idForName(name string) (int, bool) {
	for _, id := range r.sortedIDs() {
		if r.subscribed[id].Name == name {
			return id, true
		}
	}
	return 0, false
}

func (r *Registry) sortedIDs() []int {
	ids := make([]int, 0, len(r.subscribed))
	for id := range r.subscribed {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}

func (r *Registry) pendingIndex(name string) int {
	for i, desc := range r.pending {
		if desc.Name == name {
			return i
		}
	}
	return -1
}
