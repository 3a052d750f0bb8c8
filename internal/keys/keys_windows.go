//go:build windows

package keys

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/windows"
)

// console turns off line input and echo on the Windows console. Console reads
// cannot be polled portably, so one goroutine blocks on stdin and hands bytes
// over a buffered channel that TryReadKey drains without blocking.
type console struct {
	handle    windows.Handle
	saved     uint32
	keys      chan rune
	readErr   chan error
	closeOnce sync.Once
	closeErr  error
}

func Open() (Source, error) {
	h := windows.Handle(os.Stdin.Fd())

	var mode uint32
	if err := windows.GetConsoleMode(h, &mode); err != nil {
		return nil, fmt.Errorf("%w: %w", ERROR_NOT_A_TERMINAL, err)
	}

	raw := mode &^ (windows.ENABLE_LINE_INPUT | windows.ENABLE_ECHO_INPUT)
	if err := windows.SetConsoleMode(h, raw); err != nil {
		return nil, fmt.Errorf("set console mode: %w", err)
	}

	c := &console{
		handle:  h,
		saved:   mode,
		keys:    make(chan rune, 16),
		readErr: make(chan error, 1),
	}
	go c.readLoop()

	return c, nil
}

func (c *console) readLoop() {
	var buf [1]byte
	for {
		n, err := os.Stdin.Read(buf[:])
		if err != nil {
			c.readErr <- err
			return
		}
		if n == 1 {
			c.keys <- rune(buf[0])
		}
	}
}

func (c *console) TryReadKey() (rune, bool, error) {
	select {
	case k := <-c.keys:
		return k, true, nil
	default:
	}

	select {
	case err := <-c.readErr:
		if err == io.EOF {
			return 0, false, io.EOF
		}
		return 0, false, err
	default:
		return 0, false, nil
	}
}

func (c *console) Close() error {
	c.closeOnce.Do(func() {
		c.closeErr = windows.SetConsoleMode(c.handle, c.saved)
	})
	return c.closeErr
}
