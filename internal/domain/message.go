// Package domain contains the core entities of the energy queue: the
// readings taken from the data source, the messages carried by the queue,
// and the cost records written by the listener.
package domain

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimestampLayout is the wall-clock format carried in every message.
const TimestampLayout = "2006-01-02 15:04:05"

// Message errors.
var (
	ErrEmptyValue       = errors.New("value is empty")
	ErrInvalidValue     = errors.New("value is not a number")
	ErrMalformedMessage = errors.New("malformed message")
)

// Message is a timestamped consumption value as it travels through the queue.
// Its wire form is "<timestamp> <value>", split on the last space.
type Message struct {
	// Timestamp is formatted with TimestampLayout. It contains a space itself.
	Timestamp string

	// Value is the consumption value exactly as read from the source.
	Value string
}

// NewMessage stamps value with t. The value must be a single numeric token
// so that the message can be split back on its last space.
func NewMessage(t time.Time, value string) (Message, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return Message{}, ErrEmptyValue
	}
	if strings.ContainsAny(value, " \t\r\n") {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}
	if _, err := parseValue(value); err != nil {
		return Message{}, fmt.Errorf("%w: %q", ErrInvalidValue, value)
	}

	return Message{
		Timestamp: t.Format(TimestampLayout),
		Value:     value,
	}, nil
}

// String returns the wire form of the message.
func (m Message) String() string {
	return m.Timestamp + " " + m.Value
}

// Bytes returns the wire form of the message as a payload.
func (m Message) Bytes() []byte {
	return []byte(m.String())
}

// ParseMessage decodes a payload into its timestamp and numeric value.
// Only the last space separates the two, so spaces inside the timestamp are kept.
func ParseMessage(body []byte) (Message, float64, error) {
	text := strings.TrimRight(string(body), "\r\n")

	idx := strings.LastIndex(text, " ")
	if idx < 0 {
		return Message{}, 0, fmt.Errorf("%w: no separator in %q", ErrMalformedMessage, text)
	}

	msg := Message{
		Timestamp: text[:idx],
		Value:     strings.TrimSpace(text[idx+1:]),
	}

	v, err := parseValue(msg.Value)
	if err != nil {
		return Message{}, 0, fmt.Errorf("%w: cannot parse value %q: %v", ErrMalformedMessage, msg.Value, err)
	}

	return msg, v, nil
}

// parseValue parses a finite floating point number.
func parseValue(s string) (float64, error) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("value %q is not finite", s)
	}
	return v, nil
}
