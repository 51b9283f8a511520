package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTrimHexPrefix(t *testing.T) {
	require.Equal(t, "abcd", trimHexPrefix("0xabcd"))
	require.Equal(t, "abcd", trimHexPrefix("0Xabcd"))
	require.Equal(t, "abcd", trimHexPrefix("abcd"))
}

func TestNewLoggerRejectsUnknownLevel(t *testing.T) {
	_, err := newLogger("deafening")
	require.Error(t, err)
}

func TestNewLoggerAcceptsKnownLevels(t *testing.T) {
	for _, lvl := range []string{"debug", "info", "warn", "error"} {
		_, err := newLogger(lvl)
		require.NoError(t, err)
	}
}
