package channels

import "sort"

// Subscription pairs a server-assigned id with its channel
type Subscription struct {
	ID      int        `json:"id"`
	Channel Descriptor `json:"channel"`
}

// Snapshot is a consistent copy of the registry for display
type Snapshot struct {
	Available   []Descriptor       `json:"available"`
	Pending     []Descriptor       `json:"pending"`
	Subscribed  []Subscription     `json:"subscribed"`
	FirstSample map[string]float64 `json:"first_sample_timestamps"`
	Acquiring   bool               `json:"acquiring"`
}

// Snapshot copies every table under one lock
func (r *Registry) Snapshot() Snapshot {
	r.mu.Lock()
	defer r.mu.Unlock()

	snap := Snapshot{
		Available:   make([]Descriptor, 0, len(r.available)),
		Pending:     append([]Descriptor{}, r.pending...),
		Subscribed:  make([]Subscription, 0, len(r.subscribed)),
		FirstSample: make(map[string]float64, len(r.firstSample)),
		Acquiring:   r.acquiring,
	}

	for _, desc := range r.available {
		snap.Available = append(snap.Available, desc)
	}
	sort.Slice(snap.Available, func(i, j int) bool {
		return snap.Available[i].Name < snap.Available[j].Name
	})

	for _, id := range r.sortedIDs() {
		snap.Subscribed = append(snap.Subscribed, Subscription{ID: id, Channel: r.subscribed[id]})
	}

	for name, ts := range r.firstSample {
		snap.FirstSample[name] = ts
	}

	return snap
}

// SubscribedID looks up a channel id in the snapshot
func (s Snapshot) SubscribedID(name string) (int, bool) {
	for _, sub := range s.Subscribed {
		if sub.Channel.Name == name {
			return sub.ID, true
		}
	}
	return 0, false
}
