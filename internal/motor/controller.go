package motor

import (
	"context"
	"fmt"
	"time"

	"github.com/foosbot/goalkeeper/internal/channel"
	"github.com/foosbot/goalkeeper/internal/fault"
	"github.com/foosbot/goalkeeper/internal/state"
)

// loop polls inbox and executes only the newest queued command each
// iteration. Older commands are stale by the time the axis is free.
func loop[C any](ctx context.Context, stop state.StopChecker, inbox *channel.Mailbox[C], interval time.Duration, exec func(C) error) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		if stop.Stopped() {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-stop.Done():
			return nil
		case <-ticker.C:
		}
		if cmd, ok := inbox.Last(); ok {
			if err := exec(cmd); err != nil {
				return err
			}
		}
	}
}

// waitFor spins until cond holds. Motion is not interruptible, so the wait
// ignores the stop signal and is bounded only by timeout.
func waitFor(what string, poll, timeout time.Duration, cond func() (bool, error)) error {
	deadline := time.Now().Add(timeout)
	for {
		done, err := cond()
		if err != nil {
			return err
		}
		if done {
			return nil
		}
		if time.Now().After(deadline) {
			return fault.Actuator(fmt.Errorf("timed out after %s waiting for %s", timeout, what))
		}
		time.Sleep(poll)
	}
}
