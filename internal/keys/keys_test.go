package keys

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

func TestDeriveIsDeterministic(t *testing.T) {
	sk := ReduceSK([]byte("a spending key seed"))

	k1 := Derive(sk)
	k2 := Derive(sk)

	require.True(t, poseidon.Eq(k1.A, k2.A))
	require.True(t, poseidon.Eq(k1.Eta, k2.Eta))
}

func TestDeriveDiffersAcrossSeeds(t *testing.T) {
	sk1 := ReduceSK([]byte("seed one"))
	sk2 := ReduceSK([]byte("seed two"))

	k1 := Derive(sk1)
	k2 := Derive(sk2)

	require.False(t, poseidon.Eq(k1.A, k2.A))
}

func TestDerivePDIsDeterministicPerDiversifier(t *testing.T) {
	sk := ReduceSK([]byte("a spending key seed"))
	k := Derive(sk)

	d1 := poseidon.FromUint64(1)
	d2 := poseidon.FromUint64(2)

	pd1a := DerivePD(d1, k.Eta)
	pd1b := DerivePD(d1, k.Eta)
	pd2 := DerivePD(d2, k.Eta)

	require.True(t, poseidon.Eq(pd1a, pd1b))
	require.False(t, poseidon.Eq(pd1a, pd2))
}

func TestSignVerifyRoundTrip(t *testing.T) {
	sk := ReduceSK([]byte("a spending key seed"))
	msg := []byte("tx hash bytes")

	sig, err := Sign(sk, msg)
	require.NoError(t, err)

	require.NoError(t, Verify(PublicPoint(sk), msg, sig))
}

func TestVerifyRejectsTamperedMessage(t *testing.T) {
	sk := ReduceSK([]byte("a spending key seed"))
	sig, err := Sign(sk, []byte("original"))
	require.NoError(t, err)

	require.Error(t, Verify(PublicPoint(sk), []byte("tampered"), sig))
}
