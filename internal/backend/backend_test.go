package backend

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEVMSignDepositDataIsDeterministic(t *testing.T) {
	b := EVM{Token: [20]byte{1, 2, 3}}
	nullifier := make([]byte, 32)
	nullifier[0] = 0xaa

	var captured []byte
	sign := func(msg []byte) []byte {
		captured = append([]byte{}, msg...)
		return append([]byte{0xde, 0xad}, msg...)
	}

	sig1, err := b.SignDepositData(nullifier, "0xabc", 5, sign)
	require.NoError(t, err)
	sig2, err := b.SignDepositData(nullifier, "0xabc", 5, sign)
	require.NoError(t, err)
	require.Equal(t, sig1, sig2)
	require.Len(t, captured, 32)
}

func TestEVMSignDepositDataRejectsWrongNullifierLength(t *testing.T) {
	b := EVM{}
	_, err := b.SignDepositData([]byte{1, 2, 3}, "0xabc", 1, func(m []byte) []byte { return m })
	require.Error(t, err)
}

func TestUnimplementedBackendsReturnClearError(t *testing.T) {
	for _, b := range []interface {
		SignDepositData([]byte, string, uint64, SignFunc) ([]byte, error)
	}{Near{}, Substrate{}, Waves{}} {
		_, err := b.SignDepositData(make([]byte, 32), "addr", 1, func(m []byte) []byte { return m })
		require.Error(t, err)
	}
}
