//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

package keys

import (
	"testing"
	"time"

	"github.com/creack/pty"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func lflag(t *testing.T, fd int) uint64 {
	t.Helper()
	tios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	require.NoError(t, err)
	return uint64(tios.Lflag)
}

func TestTerminal(t *testing.T) {
	ptmx, tty, err := pty.Open()
	require.NoError(t, err)
	defer ptmx.Close()
	defer tty.Close()

	fd := int(tty.Fd())
	require.NotZero(t, lflag(t, fd)&unix.ICANON)

	// Test: opening switches the tty to cbreak
	term, err := openFd(fd)
	require.NoError(t, err)
	flags := lflag(t, fd)
	assert.Zero(t, flags&unix.ICANON)
	assert.Zero(t, flags&unix.ECHO)

	// Test: nothing typed yet
	_, ok, err := term.TryReadKey()
	require.NoError(t, err)
	assert.False(t, ok)

	// Test: a single key arrives without a newline
	_, err = ptmx.Write([]byte("3"))
	require.NoError(t, err)
	var key rune
	deadline := time.Now().Add(2 * time.Second)
	for !ok && time.Now().Before(deadline) {
		key, ok, err = term.TryReadKey()
		require.NoError(t, err)
		if !ok {
			time.Sleep(5 * time.Millisecond)
		}
	}
	require.True(t, ok)
	assert.Equal(t, '3', key)

	// Test: closing restores the saved mode
	require.NoError(t, term.Close())
	assert.NotZero(t, lflag(t, fd)&unix.ICANON)
	assert.NotZero(t, lflag(t, fd)&unix.ECHO)

	// Test: a second close does not touch the tty again
	tios, err := unix.IoctlGetTermios(fd, ioctlGetTermios)
	require.NoError(t, err)
	tios.Lflag &^= unix.ICANON
	require.NoError(t, unix.IoctlSetTermios(fd, ioctlSetTermios, tios))
	require.NoError(t, term.Close())
	assert.Zero(t, lflag(t, fd)&unix.ICANON)
}

func TestOpenFdNotATerminal(t *testing.T) {
	r, w, err := pipe()
	require.NoError(t, err)
	defer unix.Close(r)
	defer unix.Close(w)

	_, err = openFd(r)
	require.ErrorIs(t, err, ERROR_NOT_A_TERMINAL)
}

func pipe() (int, int, error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return 0, 0, err
	}
	return p[0], p[1], nil
}
