package osc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"unicode/utf8"
)

var ERROR_MALFORMED_MESSAGE = errors.New("malformed message")
var ERROR_MISSING_TYPE_TAGS = errors.New("missing type tags")
var ERROR_UNSUPPORTED_TYPE_TAG = errors.New("unsupported type tag")

type decoderState string

const (
	PARSING_ADDRESS   decoderState = "parsing address"
	PARSING_TYPE_TAGS decoderState = "parsing type tags"
	PARSING_ARGUMENTS decoderState = "parsing arguments"
	DONE              decoderState = "done"
)

type decoder struct {
	msg   *Message
	tags  []byte
	state decoderState
}

// Decode parses one datagram payload back into a Message. The whole payload
// must be consumed; trailing bytes are an error.
func Decode(data []byte) (*Message, error) {
	d := &decoder{
		msg:   &Message{},
		state: PARSING_ADDRESS,
	}

	n, err := d.parse(data)
	if err != nil {
		return nil, err
	}

	if d.state != DONE || n != len(data) {
		return nil, ERROR_MALFORMED_MESSAGE
	}

	return d.msg, nil
}

func (d *decoder) parse(data []byte) (int, error) {
	totalBytesParsed := 0

outer:
	for {
		switch d.state {
		case PARSING_ADDRESS:
			s, n, err := parsePaddedString(data[totalBytesParsed:])
			if err != nil {
				return 0, err
			}
			if len(s) == 0 || s[0] != ADDRESS_PREFIX[0] || !utf8.Valid(s) {
				return 0, ERROR_INVALID_ADDRESS
			}

			d.msg.Address = string(s)
			totalBytesParsed += n
			d.state = PARSING_TYPE_TAGS
		case PARSING_TYPE_TAGS:
			// A bare address with no type tag string is legal in old OSC
			// senders and carries no arguments.
			if totalBytesParsed == len(data) {
				d.state = DONE
				break outer
			}

			s, n, err := parsePaddedString(data[totalBytesParsed:])
			if err != nil {
				return 0, err
			}
			if len(s) == 0 || s[0] != TYPE_TAG_PREFIX {
				return 0, ERROR_MISSING_TYPE_TAGS
			}

			d.tags = s[1:]
			for _, t := range d.tags {
				if t != TYPE_TAG_INT32 {
					return 0, ERROR_UNSUPPORTED_TYPE_TAG
				}
			}

			totalBytesParsed += n
			d.state = PARSING_ARGUMENTS
		case PARSING_ARGUMENTS:
			rest := data[totalBytesParsed:]
			if len(rest) < 4*len(d.tags) {
				return 0, ERROR_MALFORMED_MESSAGE
			}

			d.msg.Arguments = make([]int32, 0, len(d.tags))
			for i := range d.tags {
				v := binary.BigEndian.Uint32(rest[4*i:])
				d.msg.Arguments = append(d.msg.Arguments, int32(v))
			}

			totalBytesParsed += 4 * len(d.tags)
			d.state = DONE
		case DONE:
			break outer
		}
	}

	return totalBytesParsed, nil
}

// parsePaddedString returns the bytes before the NUL terminator and the number
// of bytes consumed including padding. Padding must be NUL and 4-aligned.
func parsePaddedString(data []byte) ([]byte, int, error) {
	index := bytes.IndexByte(data, 0)
	if index == -1 {
		return nil, 0, ERROR_MALFORMED_MESSAGE
	}

	n := paddedLen(index)
	if n > len(data) {
		return nil, 0, ERROR_MALFORMED_MESSAGE
	}

	for _, b := range data[index:n] {
		if b != 0 {
			return nil, 0, ERROR_MALFORMED_MESSAGE
		}
	}

	return data[:index], n, nil
}
