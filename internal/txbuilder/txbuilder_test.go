package txbuilder

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeropool/zeropool-client-go/internal/address"
	"github.com/zeropool/zeropool-client-go/internal/keys"
	"github.com/zeropool/zeropool-client-go/internal/kvstore"
	"github.com/zeropool/zeropool-client-go/internal/merkletree"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
)

func newTestTree(t *testing.T) *merkletree.MerkleTree {
	t.Helper()
	store := kvstore.NewMemory(4)
	tree, err := merkletree.New(store)
	require.NoError(t, err)
	return tree
}

func TestCreateFirstDepositTx(t *testing.T) {
	tree := newTestTree(t)
	sk := keys.ReduceSK([]byte("spend key seed"))
	k := keys.Derive(sk)
	codec := address.NewKeccakCodec()
	to := codec.Format(poseidon.FromUint64(7), keys.DerivePD(poseidon.FromUint64(7), k.Eta))

	data, err := Create(sk, codec, TxType{
		Kind:          KindDeposit,
		Fee:           10,
		DepositAmount: 1000,
		Outputs:       []Output{{To: to, Amount: 400}},
	}, StateFragment{Tree: tree, DeltaIndex: 0})
	require.NoError(t, err)

	require.Equal(t, uint64(590), pool.Uint64(data.OutAccount.B))
	require.Len(t, data.OutNotes, 1)
	require.Len(t, data.OutHashes, pool.Out+1)
	require.Len(t, data.Secret.InNoteProofs, pool.In)
	require.NotEmpty(t, data.Memo)
	require.NotEmpty(t, data.ExtraData)
}

func TestCreateTransferInsufficientBalanceFails(t *testing.T) {
	tree := newTestTree(t)
	sk := keys.ReduceSK([]byte("spend key seed"))
	codec := address.NewKeccakCodec()

	_, err := Create(sk, codec, TxType{
		Kind: KindTransfer,
		Fee:  5,
		Outputs: []Output{{To: codec.Format(poseidon.FromUint64(1), poseidon.FromUint64(2)), Amount: 100}},
	}, StateFragment{Tree: tree, DeltaIndex: 0})
	require.ErrorIs(t, err, ErrInsufficientBalance)
}

func TestCreateRejectsTooManyInputs(t *testing.T) {
	tree := newTestTree(t)
	sk := keys.ReduceSK([]byte("spend key seed"))
	codec := address.NewKeccakCodec()

	inNotes := make([]InNote, pool.In+1)
	_, err := Create(sk, codec, TxType{Kind: KindTransfer}, StateFragment{Tree: tree, InNotes: inNotes})
	require.ErrorIs(t, err, ErrTooManyInputs)
}

func TestCreateRejectsUnparseableAddress(t *testing.T) {
	tree := newTestTree(t)
	sk := keys.ReduceSK([]byte("spend key seed"))
	codec := address.NewKeccakCodec()

	_, err := Create(sk, codec, TxType{
		Kind:          KindDeposit,
		DepositAmount: 100,
		Outputs:       []Output{{To: "not a valid address", Amount: 1}},
	}, StateFragment{Tree: tree, DeltaIndex: 0})
	require.ErrorIs(t, err, ErrAddressParse)
}
