// Package relayer implements the HTTP JSON client to an external relayer
// (SPEC_FULL.md §4.K.2, §6), grounded on
// original_source/zeropool-client/src/relayer.rs's RelayerClient.
package relayer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"golang.org/x/xerrors"
)

const supportedAPIVersion = "3"

// Info is the relayer's /info response.
type Info struct {
	APIVersion      string `json:"apiVersion"`
	Root            string `json:"root"`
	OptimisticRoot  string `json:"optimisticRoot"`
	PoolIndex       uint64 `json:"poolIndex"`
	OptimisticIndex uint64 `json:"optimisticIndex"`
}

// TxType is the relayer's wire tx-kind code.
type TxType string

const (
	TxTypeDeposit            TxType = "0000"
	TxTypeTransfer           TxType = "0001"
	TxTypeWithdraw           TxType = "0002"
	TxTypeDepositPermittable TxType = "0003"
)

// Proof carries the prover's output in the wire shape the relayer expects.
type Proof struct {
	Proof  json.RawMessage `json:"proof"`
	Inputs []string        `json:"inputs"`
}

// TxDataRequest is the body of a POST /transactions call.
type TxDataRequest struct {
	TxType    TxType `json:"txType"`
	Proof     Proof  `json:"proof"`
	Memo      string `json:"memo"`
	ExtraData string `json:"extraData,omitempty"`
}

// JobState is one of the relayer's reported job lifecycle states.
type JobState string

const (
	JobPending    JobState = "pending"
	JobInProgress JobState = "in_progress"
	JobCompleted  JobState = "completed"
	JobFailed     JobState = "failed"
)

// Job is the relayer's /job/{id} response.
type Job struct {
	State JobState `json:"state"`
}

// Client is a minimal HTTP JSON client to one relayer instance.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a Client targeting baseURL. It makes no request itself; the
// supported apiVersion ("3") is checked by GetInfo, which returns an error
// for any other version.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: baseURL, http: httpClient}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reqBody io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return xerrors.Errorf("relayer: marshal request: %w", err)
		}
		reqBody = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return xerrors.Errorf("relayer: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return xerrors.Errorf("relayer: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return xerrors.Errorf("relayer: read response body: %w", err)
	}
	if resp.StatusCode >= 300 {
		return xerrors.Errorf("relayer: %s %s: status %d: %s", method, path, resp.StatusCode, respBody)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return xerrors.Errorf("relayer: decode response: %w", err)
	}
	return nil
}

// GetInfo fetches the relayer's current root/index view.
func (c *Client) GetInfo(ctx context.Context) (Info, error) {
	var info Info
	if err := c.do(ctx, http.MethodGet, "/info", nil, &info); err != nil {
		return Info{}, err
	}
	if info.APIVersion != supportedAPIVersion {
		return Info{}, xerrors.Errorf("relayer: unsupported apiVersion %q, want %q", info.APIVersion, supportedAPIVersion)
	}
	return info, nil
}

// CreateTransaction submits a proven transaction and returns its job id.
func (c *Client) CreateTransaction(ctx context.Context, req TxDataRequest) (uint64, error) {
	var resp struct {
		JobID uint64 `json:"jobId"`
	}
	if err := c.do(ctx, http.MethodPost, "/transactions", req, &resp); err != nil {
		return 0, err
	}
	return resp.JobID, nil
}

// GetJob polls the status of a previously submitted job.
func (c *Client) GetJob(ctx context.Context, id uint64) (Job, error) {
	var job Job
	path := fmt.Sprintf("/job/%s", strconv.FormatUint(id, 10))
	if err := c.do(ctx, http.MethodGet, path, nil, &job); err != nil {
		return Job{}, err
	}
	return job, nil
}

// TxLogEntry is one entry of the relayer's transaction log, the memo and
// commitment a Client replays through MemoParser to catch up its local
// state (SPEC_FULL.md §4.K's "fetch missing memos" step; not itemized in
// spec §6's wire schema but required for the sync loop it describes, so
// this follows the same {index -> memo/commitment} shape the pool's memo
// format already assumes).
type TxLogEntry struct {
	Index      uint64 `json:"index"`
	MemoHex    string `json:"memo"`
	Commitment string `json:"commitment"`
}

// GetTransactions fetches the relayer's transaction log for the half-open
// range [offset, offset+limit).
func (c *Client) GetTransactions(ctx context.Context, offset, limit uint64) ([]TxLogEntry, error) {
	path := fmt.Sprintf("/transactions/v2?offset=%d&limit=%d", offset, limit)
	var entries []TxLogEntry
	if err := c.do(ctx, http.MethodGet, path, nil, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
