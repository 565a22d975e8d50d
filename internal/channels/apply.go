package channels

import "github.com/hitechniques/llclient/internal/protocol"

// AvailableResult is the outcome of an available push
type AvailableResult struct {
	Added      []Descriptor // New channels, in name order
	Duplicates []string     // Names that were already available
}

// ApplyAvailable inserts every announced channel that is not yet available.
// New descriptors start with a decimation factor of 1.
func (r *Registry) ApplyAvailable(msg *protocol.AvailableMessage) AvailableResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res AvailableResult
	for _, name := range msg.SortedNames() {
		if _, exists := r.available[name]; exists {
			res.Duplicates = append(res.Duplicates, name)
			continue
		}

		spec := msg.Channels[name]
		desc := Descriptor{
			Name:             name,
			SamplePeriod:     spec.SamplePeriod,
			DataType:         spec.DataType,
			Scale:            spec.Scale,
			Offset:           spec.Offset,
			DecimationFactor: 1,
		}
		r.available[name] = desc
		res.Added = append(res.Added, desc)
	}
	return res
}

// Removal is the outcome of one channel becoming unavailable
type Removal struct {
	Name       string
	ID         int  // Valid when Subscribed is true
	Subscribed bool // The channel was subscribed and the caller must unsubscribe ID
}

// ApplyUnavailable removes channels from the available and subscribed tables
// and forgets their first-sample timestamps. Pending requests are left in
// place; their confirmation will be rejected later.
func (r *Registry) ApplyUnavailable(names []string) []Removal {
	r.mu.Lock()
	defer r.mu.Unlock()

	removals := make([]Removal, 0, len(names))
	for _, name := range names {
		delete(r.available, name)

		removal := Removal{Name: name}
		if id, ok := r.idForName(name); ok {
			removal.ID = id
			removal.Subscribed = true
			delete(r.subscribed, id)
		}

		delete(r.firstSample, name)
		removals = append(removals, removal)
	}
	return removals
}

// Timestamp is a channel's first-sample timestamp in seconds since the epoch
type Timestamp struct {
	Name      string
	ID        int
	Timestamp float64
}

// SubscribedResult is the outcome of a subscribe confirmation
type SubscribedResult struct {
	Confirmed   []Timestamp // Channels now subscribed, in message order
	Unavailable []string    // Pending channels that stopped being available
	Unmatched   []string    // Confirmed names with no pending request
	InvalidID   []string    // Pending channels confirmed under an id outside 0-7
}

// ApplySubscribed moves confirmed channels from pending to subscribed.
//
// The subscribed descriptor is the available one, carrying the decimation
// factor of the pending request. A confirmation under an id the reader
// would reject drops the pending request instead.
func (r *Registry) ApplySubscribed(confirmed []protocol.SubscribedChannel) SubscribedResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res SubscribedResult
	for _, c := range confirmed {
		idx := r.pendingIndex(c.Name)
		if idx < 0 {
			res.Unmatched = append(res.Unmatched, c.Name)
			continue
		}
		if c.ID < 0 || c.ID > int(protocol.MaxChannelID) {
			r.pending = append(r.pending[:idx], r.pending[idx+1:]...)
			res.InvalidID = append(res.InvalidID, c.Name)
			continue
		}

		desc, ok := r.available[c.Name]
		if !ok {
			res.Unavailable = append(res.Unavailable, c.Name)
			continue
		}
		desc.DecimationFactor = r.pending[idx].DecimationFactor

		r.subscribed[c.ID] = desc
		r.pending = append(r.pending[:idx], r.pending[idx+1:]...)

		ts := c.FirstSampleTimestamp()
		r.firstSample[c.Name] = ts
		res.Confirmed = append(res.Confirmed, Timestamp{Name: c.Name, ID: c.ID, Timestamp: ts})
	}
	return res
}

// Unsubscription identifies a channel that stopped streaming
type Unsubscription struct {
	Name string
	ID   int
}

// ApplyUnsubscribed removes confirmed channels from the subscribed table.
// Names that are not subscribed are ignored.
func (r *Registry) ApplyUnsubscribed(names []string) []Unsubscription {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := make([]Unsubscription, 0, len(names))
	for _, name := range names {
		id, ok := r.idForName(name)
		if !ok {
			continue
		}
		delete(r.subscribed, id)
		removed = append(removed, Unsubscription{Name: name, ID: id})
	}
	return removed
}

// AcquisitionResult is the outcome of an acquisition_state message
type AcquisitionResult struct {
	Acquiring bool
	Reset     []Timestamp // Subscribed channels whose timestamp went to zero
}

// ApplyAcquisitionState mirrors the server's acquisition state. Turning
// acquisition off zeroes the first-sample timestamp of every subscribed
// channel. Unknown states leave the flag unchanged.
func (r *Registry) ApplyAcquisitionState(state string) AcquisitionResult {
	r.mu.Lock()
	defer r.mu.Unlock()

	var res AcquisitionResult
	switch state {
	case protocol.AcquisitionOff:
		for _, id := range r.sortedIDs() {
			name := r.subscribed[id].Name
			r.firstSample[name] = 0
			res.Reset = append(res.Reset, Timestamp{Name: name, ID: id})
		}
		r.acquiring = false
	case protocol.AcquisitionOn:
		r.acquiring = true
	}

	res.Acquiring = r.acquiring
	return res
}
