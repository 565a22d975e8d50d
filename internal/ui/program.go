package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"
)

// Run shows the dashboard until the user quits or ctx is cancelled. It
// returns the connection error when the dashboard saw the connection drop.
//
// When ctx ends the dashboard is torn down without the quit key, so the
// unsubscribe-all round trip is made here instead.
func Run(ctx context.Context, ctrl Controller, bridge *Bridge, addr string, opts ...tea.ProgramOption) error {
	defer bridge.Close()

	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewDashboard(ctrl, bridge, addr), opts...)

	final, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		// Nothing drains the queue any more; a blocked sink would hold up
		// the unsubscribe confirmations
		bridge.Close()
		return unsubscribeAll(ctrl)
	}
	if err != nil {
		return err
	}
	if d, ok := final.(Dashboard); ok {
		return d.Err()
	}
	return nil
}

func unsubscribeAll(ctrl Controller) error {
	if err := ctrl.UnsubscribeAll(); err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
	defer cancel()
	if err := ctrl.WaitUnsubscribed(ctx); err != nil && !errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return nil
}
