package signal

import (
	"bytes"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"unicode/utf8"
)

// Width is the fixed number of bytes a packed string occupies. The last
// byte is always a null terminator, so at most Width-1 bytes of text fit.
const Width = 32

// Invalid is returned by Decode in place of any signal it cannot read.
const Invalid = "Invalid signal"

var (
	// ErrInvalidSignal is wrapped by every decode failure.
	ErrInvalidSignal = errors.New("invalid signal")

	// ErrTooLong is returned when packing text that does not fit in Width-1 bytes.
	ErrTooLong = fmt.Errorf("text must be less than %d bytes", Width)
)

// DecodeError describes why a raw signal could not be decoded.
type DecodeError struct {
	Raw    string
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("invalid signal %q: %s", e.Raw, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	return ErrInvalidSignal
}

// Decode converts a raw signal into text, returning Invalid if it cannot.
func Decode(raw string) string {
	text, err := Parse(raw)
	if err != nil {
		return Invalid
	}
	return text
}

// Parse reads raw as a non-negative integer, either decimal or 0x-prefixed
// hexadecimal, and unpacks it.
func Parse(raw string) (string, error) {
	n, err := parseInt(raw)
	if err != nil {
		return "", &DecodeError{Raw: raw, Reason: err.Error()}
	}
	text, err := Unpack(n)
	if err != nil {
		var derr *DecodeError
		if errors.As(err, &derr) {
			derr.Raw = raw
		}
		return "", err
	}
	return text, nil
}

// Unpack is the inverse of Pack. The minimal big-endian encoding of n must
// be exactly Width bytes with a trailing null byte. Trailing nulls are
// stripped and the remainder must be valid UTF-8.
func Unpack(n *big.Int) (string, error) {
	if n == nil {
		return "", &DecodeError{Reason: "nil value"}
	}
	raw := n.String()
	if n.Sign() < 0 {
		return "", &DecodeError{Raw: raw, Reason: "negative value"}
	}

	data := n.Bytes()
	if len(data) != Width {
		return "", &DecodeError{Raw: raw, Reason: fmt.Sprintf("not %d bytes long", Width)}
	}
	if data[Width-1] != 0 {
		return "", &DecodeError{Raw: raw, Reason: "no null terminator"}
	}

	data = bytes.TrimRight(data, "\x00")
	if !utf8.Valid(data) {
		return "", &DecodeError{Raw: raw, Reason: "invalid utf-8"}
	}
	return string(data), nil
}

// Pack encodes text as a Width-byte, null-padded, big-endian integer.
func Pack(text string) (*big.Int, error) {
	if len(text) > Width-1 {
		return nil, ErrTooLong
	}
	var buf [Width]byte
	copy(buf[:], text)
	return new(big.Int).SetBytes(buf[:]), nil
}

func parseInt(raw string) (*big.Int, error) {
	var (
		digits = raw
		base   = 10
	)
	if strings.HasPrefix(raw, "0x") {
		digits, base = raw[2:], 16
	}
	if digits == "" {
		return nil, errors.New("empty number")
	}
	// SetString tolerates underscores and signs, neither of which is a
	// valid encoding here.
	for _, c := range digits {
		if !isDigit(c, base) {
			return nil, fmt.Errorf("unexpected character %q", c)
		}
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return nil, errors.New("not a number")
	}
	return n, nil
}

func isDigit(c rune, base int) bool {
	switch {
	case c >= '0' && c <= '9':
		return true
	case base == 16 && (c >= 'a' && c <= 'f' || c >= 'A' && c <= 'F'):
		return true
	default:
		return false
	}
}
