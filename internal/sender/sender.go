package sender

import (
	"errors"
	"fmt"
	"log/slog"
	"net"

	"keycast.pinglu.dev/internal/targets"
)

var ERROR_SEND_FAILURE = errors.New("send failure")
var ERROR_SHORT_WRITE = errors.New("short write")

// Conn is the egress side of the process: one datagram per call, best effort.
type Conn interface {
	SendTo(payload []byte, t targets.Target) error
}

// SendError records which target a failed datagram was meant for.
type SendError struct {
	Target targets.Target
	Err    error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("sendto %s failed: %v", e.Target, e.Err)
}

func (e *SendError) Unwrap() []error {
	return []error{ERROR_SEND_FAILURE, e.Err}
}

// Sender owns a single UDP socket for the lifetime of the process. It is not
// safe for concurrent use.
type Sender struct {
	conn  *net.UDPConn
	addrs map[targets.Target]*net.UDPAddr
}

// New opens an unbound IPv4 UDP socket. Go enables SO_BROADCAST on datagram
// sockets, so broadcast targets need no extra setup.
func New() (*Sender, error) {
	conn, err := net.ListenUDP("udp4", nil)
	if err != nil {
		return nil, fmt.Errorf("open udp socket: %w", err)
	}

	return &Sender{
		conn:  conn,
		addrs: map[targets.Target]*net.UDPAddr{},
	}, nil
}

func (s *Sender) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

func (s *Sender) Close() error {
	return s.conn.Close()
}

func (s *Sender) SendTo(payload []byte, t targets.Target) error {
	addr, err := s.resolve(t)
	if err != nil {
		return err
	}

	n, err := s.conn.WriteToUDP(payload, addr)
	if err != nil {
		return err
	}

	if n != len(payload) {
		return ERROR_SHORT_WRITE
	}

	return nil
}

// resolve caches successful lookups only, so a hostname that fails to resolve
// is retried on the next tick.
func (s *Sender) resolve(t targets.Target) (*net.UDPAddr, error) {
	if addr, ok := s.addrs[t]; ok {
		return addr, nil
	}

	addr, err := t.UDPAddr()
	if err != nil {
		return nil, err
	}

	s.addrs[t] = addr
	return addr, nil
}

// Fanout sends payload to every target in order. A failure on one target is
// logged and does not stop delivery to the others.
func Fanout(c Conn, payload []byte, ts []targets.Target) []error {
	var errs []error

	for _, t := range ts {
		err := c.SendTo(payload, t)
		if err == nil {
			continue
		}

		sendErr := &SendError{Target: t, Err: err}
		slog.Warn("sender: "+sendErr.Error(), "target", t.String())
		errs = append(errs, sendErr)
	}

	return errs
}
