// Package keys reads single keystrokes without waiting for Enter.
//
// Open returns the variant for the current platform. Every Source must be
// closed exactly once to give the terminal back its original mode; Close is
// idempotent so a deferred Close on every exit path is always safe.
package keys

import (
	"errors"
	"io"
	"sync"
)

var ERROR_NOT_A_TERMINAL = errors.New("stdin is not a terminal")
var ERROR_UNSUPPORTED_PLATFORM = errors.New("raw key input not supported on this platform")
var ERROR_SOURCE_CLOSED = errors.New("key source closed")

// NO_KEY marks an idle tick in a Script.
const NO_KEY rune = 0

type Source interface {
	// TryReadKey returns immediately. ok is false when nothing was pressed
	// since the last call. io.EOF means the input is gone for good.
	TryReadKey() (key rune, ok bool, err error)
	Close() error
}

// Script replays a fixed key sequence, one entry per call, and reports
// io.EOF once the sequence is used up.
type Script struct {
	mu     sync.Mutex
	keys   []rune
	pos    int
	closed bool
}

func NewScript(keys ...rune) *Script {
	return &Script{keys: keys}
}

// ParseScript builds a Script from text where '.' is an idle tick.
func ParseScript(s string) *Script {
	keys := make([]rune, 0, len(s))
	for _, r := range s {
		if r == '.' {
			r = NO_KEY
		}
		keys = append(keys, r)
	}
	return NewScript(keys...)
}

func (s *Script) TryReadKey() (rune, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, false, ERROR_SOURCE_CLOSED
	}

	if s.pos >= len(s.keys) {
		return 0, false, io.EOF
	}

	k := s.keys[s.pos]
	s.pos++
	if k == NO_KEY {
		return 0, false, nil
	}

	return k, true, nil
}

func (s *Script) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *Script) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
