package listener

import (
	"log/slog"
	"net"
	"strconv"
	"sync/atomic"

	"keycast.pinglu.dev/internal/osc"
)

const MAX_DATAGRAM_SIZE = 65535

type Handler func(msg *osc.Message, from *net.UDPAddr)

type Server struct {
	closed  atomic.Bool
	conn    *net.UDPConn
	done    chan struct{}
	handler Handler
}

func (s *Server) Addr() *net.UDPAddr {
	return s.conn.LocalAddr().(*net.UDPAddr)
}

// Close stops the receive loop and waits for it to exit.
func (s *Server) Close() error {
	s.closed.Store(true)
	err := s.conn.Close()
	<-s.done
	return err
}

func (s *Server) listen() {
	defer close(s.done)

	buf := make([]byte, MAX_DATAGRAM_SIZE)
	for {
		n, from, err := s.conn.ReadFromUDP(buf)

		if s.closed.Load() {
			return
		}

		if err != nil {
			slog.Warn("listener: read failed", "error", err)
			continue
		}

		s.handle(buf[:n], from)
	}
}

func (s *Server) handle(data []byte, from *net.UDPAddr) {
	msg, err := osc.Decode(data)
	if err != nil {
		slog.Warn("listener: dropping datagram", "from", from.String(), "bytes", len(data), "error", err)
		return
	}

	s.handler(msg, from)
}

// Serve binds host:port for UDP and calls handler for every datagram that
// decodes. Use port 0 to let the OS pick one.
func Serve(host string, port int, handler Handler) (*Server, error) {
	addr, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(host, strconv.Itoa(port)))
	if err != nil {
		return nil, err
	}

	conn, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, err
	}

	s := &Server{
		conn:    conn,
		done:    make(chan struct{}),
		handler: handler,
	}

	// Listen for datagrams in the background
	go s.listen()

	return s, nil
}
