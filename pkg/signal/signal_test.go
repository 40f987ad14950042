package signal_test

import (
	"math/big"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/cmwaters/groupsync/pkg/signal"
)

var helloHex = "0x48656c6c6f" + strings.Repeat("00", signal.Width-5)

func TestDecodeHello(t *testing.T) {
	require.Equal(t, "Hello", signal.Decode(helloHex))

	n, ok := new(big.Int).SetString(helloHex[2:], 16)
	require.True(t, ok)
	require.Equal(t, "Hello", signal.Decode(n.String()))
}

func TestDecodeInvalid(t *testing.T) {
	testCases := []struct {
		name string
		raw  string
	}{
		{"short", "0xdeadbeef"},
		{"zero", "0"},
		{"empty", ""},
		{"bare prefix", "0x"},
		{"not a number", "hello"},
		{"negative", "-1"},
		{"underscore", "1_000"},
		{"no null terminator", "0x" + strings.Repeat("41", signal.Width)},
		{"too long", "0x01" + strings.Repeat("00", signal.Width)},
		{"leading null", "0x0048" + strings.Repeat("00", signal.Width-2)},
		{"invalid utf-8", "0xff" + strings.Repeat("00", signal.Width-1)},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, signal.Invalid, signal.Decode(tc.raw))

			_, err := signal.Parse(tc.raw)
			require.ErrorIs(t, err, signal.ErrInvalidSignal)
			var derr *signal.DecodeError
			require.ErrorAs(t, err, &derr)
			require.Equal(t, tc.raw, derr.Raw)
		})
	}
}

func TestDecodeKeepsInteriorNulls(t *testing.T) {
	raw := "0x610062" + strings.Repeat("00", signal.Width-3)
	require.Equal(t, "a\x00b", signal.Decode(raw))
}

func TestUnpackRejectsNegative(t *testing.T) {
	_, err := signal.Unpack(big.NewInt(-5))
	require.ErrorIs(t, err, signal.ErrInvalidSignal)

	_, err = signal.Unpack(nil)
	require.ErrorIs(t, err, signal.ErrInvalidSignal)
}

func TestPack(t *testing.T) {
	n, err := signal.Pack("Hello")
	require.NoError(t, err)
	require.Equal(t, helloHex, "0x"+n.Text(16))

	_, err = signal.Pack(strings.Repeat("a", signal.Width))
	require.ErrorIs(t, err, signal.ErrTooLong)

	n, err = signal.Pack(strings.Repeat("a", signal.Width-1))
	require.NoError(t, err)
	require.Equal(t, strings.Repeat("a", signal.Width-1), signal.Decode(n.String()))
}

func TestPackUnpackRoundTrip(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		text := string(rapid.SliceOfN(rapid.ByteRange(0x20, 0x7e), 1, signal.Width-1).Draw(t, "text").([]byte))

		n, err := signal.Pack(text)
		require.NoError(t, err)
		require.Equal(t, text, signal.Decode(n.String()))
		require.Equal(t, text, signal.Decode("0x"+n.Text(16)))
	})
}

func TestDecodeNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		raw := rapid.String().Draw(t, "raw").(string)
		out := signal.Decode(raw)
		if out != signal.Invalid {
			_, err := signal.Parse(raw)
			require.NoError(t, err)
		}
	})
}
