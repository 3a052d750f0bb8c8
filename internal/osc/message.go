package osc

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
	"unicode/utf8"
)

var ERROR_INVALID_ADDRESS = errors.New("invalid address")
var ERROR_UNSUPPORTED_ARGUMENT_TYPE = errors.New("unsupported argument type")

const ADDRESS_PREFIX = "/"
const TYPE_TAG_PREFIX = ','
const TYPE_TAG_INT32 = 'i'

// Message is an address plus int32 arguments. Build a new one per send.
type Message struct {
	Address   string
	Arguments []int32
}

// NewMessage validates the address and every argument before building the
// message, so a Message obtained from here always encodes.
func NewMessage(address string, args ...any) (*Message, error) {
	if err := validateAddress(address); err != nil {
		return nil, err
	}

	ints := make([]int32, 0, len(args))
	for i, a := range args {
		v, err := toInt32(a)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		ints = append(ints, v)
	}

	return &Message{
		Address:   address,
		Arguments: ints,
	}, nil
}

// Encode serializes address and args into one datagram payload:
//
//	address NUL-padded to 4 | ",iii" NUL-padded to 4 | big-endian int32 per argument
func Encode(address string, args ...any) ([]byte, error) {
	m, err := NewMessage(address, args...)
	if err != nil {
		return nil, err
	}

	return m.MarshalBinary()
}

func (m *Message) MarshalBinary() ([]byte, error) {
	if err := validateAddress(m.Address); err != nil {
		return nil, err
	}

	tags := make([]byte, 0, len(m.Arguments)+1)
	tags = append(tags, TYPE_TAG_PREFIX)
	for range m.Arguments {
		tags = append(tags, TYPE_TAG_INT32)
	}

	size := paddedLen(len(m.Address)) + paddedLen(len(tags)) + 4*len(m.Arguments)
	b := make([]byte, 0, size)
	b = appendPaddedString(b, []byte(m.Address))
	b = appendPaddedString(b, tags)
	for _, a := range m.Arguments {
		b = binary.BigEndian.AppendUint32(b, uint32(a))
	}

	return b, nil
}

func (m *Message) String() string {
	var sb strings.Builder
	sb.WriteString(m.Address)
	for _, a := range m.Arguments {
		fmt.Fprintf(&sb, " %d", a)
	}
	return sb.String()
}

// validateAddress accepts UTF-8 text starting with '/' and free of NUL, the
// only addresses a receiver can read back.
func validateAddress(address string) error {
	if !strings.HasPrefix(address, ADDRESS_PREFIX) {
		return fmt.Errorf("%w: %q must start with %q", ERROR_INVALID_ADDRESS, address, ADDRESS_PREFIX)
	}

	if strings.IndexByte(address, 0) >= 0 {
		return fmt.Errorf("%w: %q contains NUL", ERROR_INVALID_ADDRESS, address)
	}

	if !utf8.ValidString(address) {
		return fmt.Errorf("%w: %q is not valid UTF-8", ERROR_INVALID_ADDRESS, address)
	}

	return nil
}

// paddedLen is the size of s plus its NUL terminator rounded up to 4.
func paddedLen(n int) int {
	return (n + 4) &^ 3
}

func appendPaddedString(b []byte, s []byte) []byte {
	b = append(b, s...)
	pad := paddedLen(len(s)) - len(s)
	for range pad {
		b = append(b, 0)
	}
	return b
}

func toInt32(a any) (int32, error) {
	var v int64

	switch n := a.(type) {
	case int32:
		return n, nil
	case int:
		v = int64(n)
	case int8:
		v = int64(n)
	case int16:
		v = int64(n)
	case int64:
		v = n
	case uint8:
		v = int64(n)
	case uint16:
		v = int64(n)
	case uint32:
		v = int64(n)
	case uint:
		if uint64(n) > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d overflows int32", ERROR_UNSUPPORTED_ARGUMENT_TYPE, n)
		}
		v = int64(n)
	case uintptr:
		if uint64(n) > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d overflows int32", ERROR_UNSUPPORTED_ARGUMENT_TYPE, n)
		}
		v = int64(n)
	case uint64:
		if n > math.MaxInt32 {
			return 0, fmt.Errorf("%w: %d overflows int32", ERROR_UNSUPPORTED_ARGUMENT_TYPE, n)
		}
		v = int64(n)
	default:
		return 0, fmt.Errorf("%w: %T", ERROR_UNSUPPORTED_ARGUMENT_TYPE, a)
	}

	if v < math.MinInt32 || v > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %d overflows int32", ERROR_UNSUPPORTED_ARGUMENT_TYPE, v)
	}

	return int32(v), nil
}
