package dispatch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"keycast.pinglu.dev/internal/keys"
	"keycast.pinglu.dev/internal/osc"
	"keycast.pinglu.dev/internal/sender"
	"keycast.pinglu.dev/internal/targets"
)

const IDLE int32 = -1
const SLOT_COUNT = 8
const DEFAULT_ADDRESS = "/camera"
const DEFAULT_TICK = 50 * time.Millisecond

type State string

const (
	RUNNING State = "running"
	STOPPED State = "stopped"
)

type Stats struct {
	Ticks  int
	Sent   int
	Failed int
}

// Loop sends one message per tick to every target. The selected index lives
// for a single tick only: a tick without a keystroke sends IDLE again, which
// receivers use as a heartbeat.
type Loop struct {
	Keys    keys.Source
	Conn    sender.Conn
	Targets []targets.Target
	Address string
	Tick    time.Duration
	Out     io.Writer

	state State
	stats Stats
}

// Step maps one poll result to the index to send. Keys '1'..'8' select slots
// 0..7, 'q' in either case quits, everything else is idle.
func Step(key rune, ok bool) (index int32, quit bool) {
	if !ok {
		return IDLE, false
	}

	switch {
	case key == 'q' || key == 'Q':
		return IDLE, true
	case key >= '1' && key < '1'+SLOT_COUNT:
		return int32(key - '1'), false
	default:
		return IDLE, false
	}
}

// Run blocks until 'q' is pressed, the key source reports end of input, or
// ctx is cancelled. The key source is closed on every return path. Per-target
// send failures are logged and never end the loop; an encoding failure does,
// since it can only come from a bad address.
func (l *Loop) Run(ctx context.Context) error {
	if l.Address == "" {
		l.Address = DEFAULT_ADDRESS
	}
	if l.Out == nil {
		l.Out = io.Discard
	}

	l.state = RUNNING
	defer func() {
		l.state = STOPPED
		if err := l.Keys.Close(); err != nil {
			slog.Warn("dispatch: failed to restore key input", "error", err)
		}
	}()

	var timer *time.Timer
	if l.Tick > 0 {
		timer = time.NewTimer(l.Tick)
		timer.Stop()
		defer timer.Stop()
	}

	for {
		if ctx.Err() != nil {
			return nil
		}

		key, ok, err := l.Keys.TryReadKey()
		if err != nil {
			if errors.Is(err, io.EOF) {
				slog.Info("dispatch: key input closed")
				return nil
			}
			slog.Warn("dispatch: key read failed", "error", err)
			ok = false
		}

		index, quit := Step(key, ok)
		if quit {
			return nil
		}

		if index != IDLE {
			fmt.Fprintf(l.Out, "%s %d\n", l.Address, index)
		}

		if err := l.send(index); err != nil {
			return err
		}

		if timer == nil {
			continue
		}

		timer.Reset(l.Tick)
		select {
		case <-ctx.Done():
			return nil
		case <-timer.C:
		}
	}
}

func (l *Loop) send(index int32) error {
	payload, err := osc.Encode(l.Address, index)
	if err != nil {
		return fmt.Errorf("encode %s: %w", l.Address, err)
	}

	errs := sender.Fanout(l.Conn, payload, l.Targets)

	l.stats.Ticks++
	l.stats.Failed += len(errs)
	l.stats.Sent += len(l.Targets) - len(errs)

	return nil
}

func (l *Loop) State() State {
	return l.state
}

func (l *Loop) Stats() Stats {
	return l.stats
}
