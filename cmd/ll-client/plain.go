package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/hitechniques/llclient/internal/client"
	"github.com/hitechniques/llclient/internal/ui"
)

// plainPrinter writes one line per control event and a periodic summary of
// data received, for logs and pipes
type plainPrinter struct {
	mu    sync.Mutex
	out   io.Writer
	stats *ui.DataStats
	now   func() time.Time
}

func newPlainPrinter(out io.Writer) *plainPrinter {
	return &plainPrinter{out: out, stats: ui.NewDataStats(), now: time.Now}
}

func (p *plainPrinter) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "%s "+format+"\n", append([]any{p.now().Format("15:04:05.000")}, args...)...)
}

// Sink returns the EventSink for plain mode
func (p *plainPrinter) Sink() client.EventSink {
	return func(ev client.Event) {
		switch e := ev.(type) {
		case client.ChannelData:
			p.stats.Add(e)
		case client.AvailableChannel:
			p.printf("available    %s rate=%gHz type=%s scale=%g offset=%g",
				e.Channel.Name, e.Channel.SampleRate(), e.Channel.DataType, e.Channel.Scale, e.Channel.Offset)
		case client.UnavailableChannel:
			p.stats.Remove(e.Name)
			p.printf("unavailable  %s", e.Name)
		case client.ChannelSubscribed:
			p.printf("subscribed   %s id=%d", e.Name, e.ID)
		case client.ChannelUnsubscribed:
			p.printf("unsubscribed %s id=%d", e.Name, e.ID)
		case client.ChannelFirstSampleTimestamp:
			p.printf("first-sample %s id=%d t=%.9f", e.Name, e.ID, e.Timestamp)
		case client.AcquisitionChanged:
			if !e.Acquiring {
				p.stats.Reset()
			}
			p.printf("acquisition  %s", onOff(e.Acquiring))
		case client.Disconnected:
			p.printf("disconnected %s", client.ShortMessage(e.Err))
		}
	}
}

// summary prints one line per channel that received data
func (p *plainPrinter) summary() {
	snap := p.stats.Snapshot()
	names := make([]string, 0, len(snap))
	for name := range snap {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := snap[name]
		if st.Frames == 0 {
			continue
		}
		p.printf("data         %s samples=%d frames=%d last=%g", name, st.Samples, st.Frames, st.LastValue)
	}
}

func onOff(on bool) string {
	if on {
		return "on"
	}
	return "off"
}

// runPlain waits for the connection to end or ctx to be cancelled. On
// cancellation every channel is unsubscribed before returning.
func runPlain(ctx context.Context, c *client.Client, out *plainPrinter, interval time.Duration) error {
	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-tick:
			out.summary()

		case <-c.Done():
			return c.Err()

		case <-ctx.Done():
			if err := c.UnsubscribeAll(); err != nil {
				return err
			}
			wctx, cancel := context.WithTimeout(context.Background(), ui.ShutdownTimeout)
			defer cancel()
			if err := c.WaitUnsubscribed(wctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return nil
		}
	}
}
