package address

import (
	"testing"

	"github.com/mr-tron/base58"
	"github.com/stretchr/testify/require"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

func TestFormatParseRoundTripKeccak(t *testing.T) {
	c := NewKeccakCodec()
	d := poseidon.FromUint64(12345)
	pd := poseidon.FromBytesReducedLE([]byte("a diversified public key bytes!"))

	addr := c.Format(d, pd)
	gotD, gotPD, err := c.Parse(addr)
	require.NoError(t, err)
	require.True(t, poseidon.Eq(d, gotD))
	require.True(t, poseidon.Eq(pd, gotPD))
}

func TestFormatParseRoundTripSHA256(t *testing.T) {
	c := NewSHA256Codec()
	d := poseidon.FromUint64(1)
	pd := poseidon.FromUint64(2)

	addr := c.Format(d, pd)
	gotD, gotPD, err := c.Parse(addr)
	require.NoError(t, err)
	require.True(t, poseidon.Eq(d, gotD))
	require.True(t, poseidon.Eq(pd, gotPD))
}

func TestParseRejectsTamperedChecksum(t *testing.T) {
	c := NewKeccakCodec()
	addr := c.Format(poseidon.FromUint64(7), poseidon.FromUint64(8))

	raw, err := base58.Decode(addr)
	require.NoError(t, err)
	raw[len(raw)-1]++
	_, _, err = c.Parse(base58.Encode(raw))
	require.ErrorIs(t, err, ErrInvalidChecksum)
}

func TestCodecsAreNotCrossCompatible(t *testing.T) {
	keccak := NewKeccakCodec()
	sha := NewSHA256Codec()

	addr := keccak.Format(poseidon.FromUint64(1), poseidon.FromUint64(2))
	_, _, err := sha.Parse(addr)
	require.Error(t, err)
}
