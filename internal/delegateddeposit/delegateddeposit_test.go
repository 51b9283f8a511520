package delegateddeposit

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

func sampleDeposit(id uint64) FullDelegatedDeposit {
	var owner [ownerLen]byte
	owner[0] = byte(id)
	return FullDelegatedDeposit{
		ID:                id,
		Owner:             owner,
		ReceiverD:         poseidon.FromUint64(1000 + id),
		ReceiverP:         poseidon.FromUint64(2000 + id),
		DenominatedAmount: 500000000,
		DenominatedFee:    1000,
		Expired:           999999,
	}
}

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	d := sampleDeposit(1)
	raw, err := d.MarshalBinary()
	require.NoError(t, err)
	require.Len(t, raw, fullSize)

	var got FullDelegatedDeposit
	require.NoError(t, got.UnmarshalBinary(raw))
	require.Equal(t, d.ID, got.ID)
	require.Equal(t, d.Owner, got.Owner)
	require.True(t, poseidon.Eq(d.ReceiverD, got.ReceiverD))
	require.True(t, poseidon.Eq(d.ReceiverP, got.ReceiverP))
	require.Equal(t, d.DenominatedAmount, got.DenominatedAmount)
}

func TestCreateAndParseBatchRoundTrip(t *testing.T) {
	accountHash := poseidon.FromUint64(42)
	deposits := []FullDelegatedDeposit{sampleDeposit(1), sampleDeposit(2), sampleDeposit(3)}

	data, err := Create(accountHash, deposits)
	require.NoError(t, err)
	require.True(t, IsDelegatedDepositMemo(data.Memo))
	require.Len(t, data.Hashes, pool.OutSlotSize)
	require.True(t, poseidon.Eq(pool.ZeroAccount().Hash(), data.Hashes[0]))
	require.True(t, poseidon.Eq(deposits[0].ToNote().Hash(), data.Hashes[1]))
	zeroNoteHash := pool.ZeroNote().Hash()
	for i := len(deposits) + 1; i < pool.OutSlotSize; i++ {
		require.True(t, poseidon.Eq(zeroNoteHash, data.Hashes[i]))
	}

	gotAccountHash, gotDeposits, err := ParseBatch(data.Memo)
	require.NoError(t, err)
	require.True(t, poseidon.Eq(accountHash, gotAccountHash))
	require.Len(t, gotDeposits, 3)
	require.Equal(t, deposits[1].ID, gotDeposits[1].ID)
}

func TestCreateRejectsEmptyAndOversizedBatches(t *testing.T) {
	_, err := Create(poseidon.FromUint64(1), nil)
	require.Error(t, err)

	tooMany := make([]FullDelegatedDeposit, MaxDeposits+1)
	for i := range tooMany {
		tooMany[i] = sampleDeposit(uint64(i))
	}
	_, err = Create(poseidon.FromUint64(1), tooMany)
	require.Error(t, err)
}
