package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/zeropool/zeropool-client-go/internal/address"
	"github.com/zeropool/zeropool-client-go/internal/keys"
	"github.com/zeropool/zeropool-client-go/internal/kvstore"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"github.com/zeropool/zeropool-client-go/internal/relayer"
	"github.com/zeropool/zeropool-client-go/internal/state"
	"github.com/zeropool/zeropool-client-go/internal/txbuilder"
)

type stubProver struct{}

func (stubProver) Prove(context.Context, txbuilder.Public, txbuilder.Secret) (relayer.Proof, error) {
	return relayer.Proof{Proof: json.RawMessage(`{}`), Inputs: []string{"0"}}, nil
}

func newTestClient(t *testing.T, srv *httptest.Server) (*Client, *state.State) {
	t.Helper()
	store := kvstore.NewMemory(5)
	st, err := state.New(store)
	require.NoError(t, err)

	sk := keys.ReduceSK([]byte("client test seed"))
	rel := relayer.New(srv.URL, nil)
	cfg := Config{Codec: address.NewKeccakCodec()}
	return New(sk, cfg, st, rel, stubProver{}), st
}

func TestSyncNoopWhenLocalMatchesRelayer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(relayer.Info{APIVersion: "3", OptimisticIndex: 0})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	require.NoError(t, c.Sync(context.Background()))
}

func TestSyncRollsBackWhenLocalIsAhead(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(relayer.Info{APIVersion: "3", OptimisticIndex: 0})
	}))
	defer srv.Close()

	c, st := newTestClient(t, srv)
	require.NoError(t, st.AddHashes(0, zeroSlotHashes()))
	require.Equal(t, uint64(pool.OutSlotSize), st.Tree().NextIndex())

	require.NoError(t, c.Sync(context.Background()))
	require.Equal(t, uint64(0), st.Tree().NextIndex())
}

func zeroSlotHashes() []poseidon.Fr {
	hashes := make([]poseidon.Fr, pool.OutSlotSize)
	for i := range hashes {
		hashes[i] = poseidon.Zero()
	}
	return hashes
}

func TestDepositRequiresBackendWhenSigning(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(relayer.Info{APIVersion: "3"})
	}))
	defer srv.Close()

	c, _ := newTestClient(t, srv)
	_, err := c.Deposit(context.Background(), 1000, 10, "0xabc", func(m []byte) []byte { return m })
	require.Error(t, err)
}
