package relayer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetInfoParsesResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/info", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Info{APIVersion: "3", PoolIndex: 42, OptimisticIndex: 50})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	info, err := c.GetInfo(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), info.PoolIndex)
	require.Equal(t, uint64(50), info.OptimisticIndex)
}

func TestGetInfoRejectsUnsupportedAPIVersion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(Info{APIVersion: "2"})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetInfo(context.Background())
	require.Error(t, err)
}

func TestCreateTransactionReturnsJobID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		var req TxDataRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, TxTypeDeposit, req.TxType)
		_ = json.NewEncoder(w).Encode(map[string]uint64{"jobId": 7})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	jobID, err := c.CreateTransaction(context.Background(), TxDataRequest{TxType: TxTypeDeposit, Memo: "abcd"})
	require.NoError(t, err)
	require.Equal(t, uint64(7), jobID)
}

func TestGetJobReportsState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/job/9", r.URL.Path)
		_ = json.NewEncoder(w).Encode(Job{State: JobCompleted})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	job, err := c.GetJob(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, JobCompleted, job.State)
}

func TestGetTransactionsParsesLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/v2", r.URL.Path)
		require.Equal(t, "0", r.URL.Query().Get("offset"))
		require.Equal(t, "10", r.URL.Query().Get("limit"))
		_ = json.NewEncoder(w).Encode([]TxLogEntry{{Index: 128, MemoHex: "abcd", Commitment: "ef01"}})
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	entries, err := c.GetTransactions(context.Background(), 0, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, uint64(128), entries[0].Index)
}

func TestDoSurfacesHTTPErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(srv.URL, nil)
	_, err := c.GetJob(context.Background(), 1)
	require.Error(t, err)
}
