package sender

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keycast.pinglu.dev/internal/osc"
	"keycast.pinglu.dev/internal/targets"
)

type recordingConn struct {
	fail map[string]error
	sent []targets.Target
}

func (c *recordingConn) SendTo(payload []byte, t targets.Target) error {
	if err, ok := c.fail[t.Host]; ok {
		return err
	}
	c.sent = append(c.sent, t)
	return nil
}

func TestFanout(t *testing.T) {
	ts := []targets.Target{
		{Host: "10.0.0.255", Port: 9000},
		{Host: "172.17.255.255", Port: 9000},
		{Host: "192.168.1.255", Port: 9000},
	}

	// Test: one failing target does not block the other two
	unreachable := errors.New("network is unreachable")
	c := &recordingConn{fail: map[string]error{"172.17.255.255": unreachable}}
	errs := Fanout(c, []byte("payload!"), ts)
	require.Len(t, errs, 1)
	assert.Equal(t, []targets.Target{ts[0], ts[2]}, c.sent)
	assert.ErrorIs(t, errs[0], ERROR_SEND_FAILURE)
	assert.ErrorIs(t, errs[0], unreachable)

	var sendErr *SendError
	require.ErrorAs(t, errs[0], &sendErr)
	assert.Equal(t, ts[1], sendErr.Target)
	assert.Contains(t, sendErr.Error(), "172.17.255.255:9000")

	// Test: all succeed
	c = &recordingConn{}
	errs = Fanout(c, []byte("payload!"), ts)
	assert.Empty(t, errs)
	assert.Equal(t, ts, c.sent)

	// Test: first target fails, later ones still attempted
	c = &recordingConn{fail: map[string]error{"10.0.0.255": errors.New("permission denied")}}
	errs = Fanout(c, []byte("payload!"), ts)
	assert.Len(t, errs, 1)
	assert.Equal(t, ts[1:], c.sent)
}

func TestSenderLoopback(t *testing.T) {
	rx, err := net.ListenUDP("udp4", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1), Port: 0})
	require.NoError(t, err)
	defer rx.Close()

	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	payload, err := osc.Encode("/camera", 2)
	require.NoError(t, err)

	target := targets.Target{Host: "127.0.0.1", Port: rx.LocalAddr().(*net.UDPAddr).Port}
	require.NoError(t, s.SendTo(payload, target))
	// Second send goes through the cached address.
	require.NoError(t, s.SendTo(payload, target))

	buf := make([]byte, 64)
	for range 2 {
		require.NoError(t, rx.SetReadDeadline(time.Now().Add(2*time.Second)))
		n, _, err := rx.ReadFromUDP(buf)
		require.NoError(t, err)
		assert.Equal(t, payload, buf[:n])
	}
}

func TestSenderUnresolvableTarget(t *testing.T) {
	s, err := New()
	require.NoError(t, err)
	defer s.Close()

	err = s.SendTo([]byte("x"), targets.Target{Host: "127.0.0.1", Port: 70000})
	require.Error(t, err)
	assert.Empty(t, s.addrs)
}
