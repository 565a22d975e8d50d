// Package ui renders the terminal interface of ll-client.
//
// Dashboard is an interactive Bubble Tea model listing every channel the
// server announces, with its state, sample rate, first sample timestamp,
// received sample count and latest value. It drives the client only through
// the Controller interface and learns about changes only from client events.
//
// Events reach the program through a Bridge:
//
//	bridge := ui.NewBridge()
//	c, err := client.Dial(ctx, cfg, bridge.Sink())
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//	return ui.Run(c, bridge, c.Addr())
//
// Data events never become Bubble Tea messages. The bridge folds them into
// DataStats and the dashboard samples the totals every 100ms, so a fast
// stream cannot flood the event loop.
//
// Printer covers the non-interactive commands (discovery results, config
// display) with the same styles.
//
// Logging goes through internal/logging and is silent unless a level is
// configured. The dashboard owns the terminal, so logs should go to a file.
package ui
