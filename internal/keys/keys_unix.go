//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package keys

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// terminal puts the controlling tty in cbreak mode: no line buffering and no
// echo, but signals and output processing stay on so Ctrl+C and status lines
// behave normally.
type terminal struct {
	fd        int
	saved     unix.Termios
	closeOnce sync.Once
	closeErr  error
}

func Open() (Source, error) {
	return openFd(int(os.Stdin.Fd()))
}

func openFd(fd int) (*terminal, error) {
	saved, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ERROR_NOT_A_TERMINAL, err)
	}

	cbreak := *saved
	cbreak.Lflag &^= unix.ICANON | unix.ECHO
	cbreak.Cc[unix.VMIN] = 1
	cbreak.Cc[unix.VTIME] = 0
	if err := unix.IoctlSetTermios(fd, ioctlSetTermios, &cbreak); err != nil {
		return nil, fmt.Errorf("set cbreak mode: %w", err)
	}

	return &terminal{fd: fd, saved: *saved}, nil
}

func (t *terminal) TryReadKey() (rune, bool, error) {
	fds := []unix.PollFd{{Fd: int32(t.fd), Events: unix.POLLIN}}

	n, err := unix.Poll(fds, 0)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return 0, false, nil
		}
		return 0, false, err
	}

	if n == 0 || fds[0].Revents&(unix.POLLIN|unix.POLLHUP) == 0 {
		return 0, false, nil
	}

	var buf [1]byte
	n, err = unix.Read(t.fd, buf[:])
	if err != nil {
		if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
			return 0, false, nil
		}
		return 0, false, err
	}
	if n == 0 {
		return 0, false, io.EOF
	}

	return rune(buf[0]), true, nil
}

func (t *terminal) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = unix.IoctlSetTermios(t.fd, ioctlSetTermios, &t.saved)
	})
	return t.closeErr
}
