// Package client orchestrates state sync, transaction construction, proof
// dispatch, and relayer submission into the deposit/transfer/withdraw
// entry points a CLI or service wraps (SPEC_FULL.md §4.K), grounded on
// original_source/zeropool-client/src/client.rs.
package client

import (
	"context"
	"encoding/hex"
	"sort"

	"golang.org/x/xerrors"

	"github.com/zeropool/zeropool-client-go/internal/address"
	"github.com/zeropool/zeropool-client-go/internal/backend"
	"github.com/zeropool/zeropool-client-go/internal/keys"
	"github.com/zeropool/zeropool-client-go/internal/memo"
	"github.com/zeropool/zeropool-client-go/internal/pool"
	"github.com/zeropool/zeropool-client-go/internal/poseidon"
	"github.com/zeropool/zeropool-client-go/internal/relayer"
	"github.com/zeropool/zeropool-client-go/internal/state"
	"github.com/zeropool/zeropool-client-go/internal/txbuilder"
)

// Prover dispatches the public/secret witness to an external proving
// service and returns the proof the relayer expects. create_tx itself is
// pure-sync so this call can be made off the state lock (SPEC_FULL.md §5).
type Prover interface {
	Prove(ctx context.Context, public txbuilder.Public, secret txbuilder.Secret) (relayer.Proof, error)
}

// Config carries the per-deployment parameters a Client needs beyond its
// spending key: how to denominate amounts, and which backend/address
// convention this deployment uses. The relayer is passed to New separately.
type Config struct {
	Denominator uint64
	Backend     backend.Backend
	Codec       address.Codec
}

// Client is the top-level orchestrator tying state, tx construction, the
// external prover, and the relayer together.
type Client struct {
	sk      poseidon.Fr
	cfg     Config
	state   *state.State
	relayer *relayer.Client
	prover  Prover
}

// New builds a Client over an already-open State.
func New(sk poseidon.Fr, cfg Config, st *state.State, rel *relayer.Client, prover Prover) *Client {
	return &Client{sk: sk, cfg: cfg, state: st, relayer: rel, prover: prover}
}

// Sync polls the relayer's info endpoint and reconciles local state: if
// local is ahead of the relayer's optimistic index it rolls back to match,
// otherwise it fetches and applies any memos the relayer has recorded
// since the local tip (SPEC_FULL.md §4.K).
func (c *Client) Sync(ctx context.Context) error {
	info, err := c.relayer.GetInfo(ctx)
	if err != nil {
		return xerrors.Errorf("client: sync: %w", err)
	}

	localIndex := c.state.Tree().NextIndex()
	if localIndex > info.OptimisticIndex {
		if err := c.state.Rollback(info.OptimisticIndex); err != nil {
			return xerrors.Errorf("client: sync: rollback: %w", err)
		}
		localIndex = info.OptimisticIndex
	}
	if localIndex >= info.OptimisticIndex {
		return nil
	}

	entries, err := c.relayer.GetTransactions(ctx, localIndex, info.OptimisticIndex-localIndex)
	if err != nil {
		return xerrors.Errorf("client: sync: fetch transactions: %w", err)
	}
	if len(entries) == 0 {
		return nil
	}

	txs := make([]memo.IndexedTx, 0, len(entries))
	for _, e := range entries {
		memoBytes, err := hex.DecodeString(e.MemoHex)
		if err != nil {
			return xerrors.Errorf("client: sync: decode memo at index %d: %w", e.Index, err)
		}
		commitBytes, err := hex.DecodeString(e.Commitment)
		if err != nil {
			return xerrors.Errorf("client: sync: decode commitment at index %d: %w", e.Index, err)
		}
		txs = append(txs, memo.IndexedTx{
			Index:      e.Index,
			Memo:       memoBytes,
			Commitment: poseidon.FromBytesReduced(commitBytes),
		})
	}

	decoded, update, err := memo.ParseTxs(c.sk, txs)
	if err != nil {
		return xerrors.Errorf("client: sync: parse memos: %w", err)
	}

	if err := c.applyStateUpdate(update, decoded); err != nil {
		return err
	}
	return nil
}

func (c *Client) applyStateUpdate(update memo.StateUpdate, decoded []memo.DecMemo) error {
	owned := make(map[uint64]memo.DecMemo, len(decoded))
	for _, d := range decoded {
		owned[d.Index] = d
	}

	sort.Slice(update.NewLeafs, func(i, j int) bool { return update.NewLeafs[i].Index < update.NewLeafs[j].Index })
	for _, batch := range update.NewLeafs {
		if d, ok := owned[batch.Index]; ok {
			if err := c.state.AddFullTx(batch.Index, batch.Hashes, d.Account, nil); err != nil {
				return xerrors.Errorf("client: apply state update: add_full_tx at %d: %w", batch.Index, err)
			}
			for _, n := range d.InNotes {
				if err := c.state.AddNote(n.Index, n.Note); err != nil {
					return err
				}
			}
			continue
		}
		if err := c.state.AddHashes(batch.Index, batch.Hashes); err != nil {
			return xerrors.Errorf("client: apply state update: add_hashes at %d: %w", batch.Index, err)
		}
	}
	return nil
}

func (c *Client) denominate(amount uint64) uint64 {
	if c.cfg.Denominator == 0 {
		return amount
	}
	return amount / c.cfg.Denominator
}

func (c *Client) stateFragment() (txbuilder.StateFragment, error) {
	account, accountIndex, haveAccount := c.state.LatestAccount()
	usable, err := c.state.UsableNotes()
	if err != nil {
		return txbuilder.StateFragment{}, err
	}

	var accountPtr *pool.Account
	if haveAccount {
		accountPtr = &account
	}

	inNotes := make([]txbuilder.InNote, 0, pool.In)
	for _, e := range usable {
		if len(inNotes) >= pool.In {
			break
		}
		inNotes = append(inNotes, txbuilder.InNote{Index: e.Index, Note: e.Value})
	}

	return txbuilder.StateFragment{
		Account:      accountPtr,
		AccountIndex: accountIndex,
		InNotes:      inNotes,
		DeltaIndex:   c.state.Tree().NextIndex(),
		Tree:         c.state.Tree(),
	}, nil
}

// depositSigning bundles the arguments Deposit needs to authorize pulling
// funds from an external token contract via c.cfg.Backend.
type depositSigning struct {
	publicAddress string
	sign          backend.SignFunc
}

// submit builds, proves, and relays one transaction, returning the
// relayer's job id. signing is non-nil only for Deposit/DepositPermittable,
// where the backend's nullifier-commitment signature must accompany the
// tx (SPEC_FULL.md §4.K step 5).
func (c *Client) submit(ctx context.Context, t txbuilder.TxType, signing *depositSigning) (uint64, error) {
	frag, err := c.stateFragment()
	if err != nil {
		return 0, err
	}

	data, err := txbuilder.Create(c.sk, c.cfg.Codec, t, frag)
	if err != nil {
		return 0, xerrors.Errorf("client: create_tx: %w", err)
	}

	proof, err := c.prover.Prove(ctx, data.Public, data.Secret)
	if err != nil {
		return 0, xerrors.Errorf("client: prove: %w", err)
	}

	extraData := data.ExtraData
	if signing != nil {
		if c.cfg.Backend == nil {
			return 0, xerrors.New("client: deposit requires a configured Backend")
		}
		sig, err := c.cfg.Backend.SignDepositData(poseidon.Bytes(data.Public.Nullifier), signing.publicAddress, frag.DeltaIndex, signing.sign)
		if err != nil {
			return 0, xerrors.Errorf("client: sign deposit nullifier: %w", err)
		}
		extraData = append(append([]byte{}, extraData...), sig...)
	}

	req := relayer.TxDataRequest{
		TxType:    txKindToWire(t.Kind),
		Proof:     proof,
		Memo:      hex.EncodeToString(data.Memo),
		ExtraData: hex.EncodeToString(extraData),
	}
	jobID, err := c.relayer.CreateTransaction(ctx, req)
	if err != nil {
		return 0, xerrors.Errorf("client: submit transaction: %w", err)
	}

	if err := c.state.AddFullTx(frag.DeltaIndex, data.OutHashes, &data.OutAccount, data.OutNotes); err != nil {
		return 0, xerrors.Errorf("client: record own transaction: %w", err)
	}

	return jobID, nil
}

func txKindToWire(k txbuilder.Kind) relayer.TxType {
	switch k {
	case txbuilder.KindDeposit:
		return relayer.TxTypeDeposit
	case txbuilder.KindDepositPermittable:
		return relayer.TxTypeDepositPermittable
	case txbuilder.KindWithdraw:
		return relayer.TxTypeWithdraw
	default:
		return relayer.TxTypeTransfer
	}
}

// Deposit builds, proves, signs, and submits a deposit transaction.
// publicAddress and sign are forwarded to c.cfg.Backend.SignDepositData to
// authorize pulling the deposit amount from the token contract.
func (c *Client) Deposit(ctx context.Context, amount, fee uint64, publicAddress string, sign backend.SignFunc) (uint64, error) {
	t := txbuilder.TxType{Kind: txbuilder.KindDeposit, Fee: c.denominate(fee), DepositAmount: c.denominate(amount)}
	return c.submit(ctx, t, &depositSigning{publicAddress: publicAddress, sign: sign})
}

// Transfer builds, proves, and submits a shielded transfer.
func (c *Client) Transfer(ctx context.Context, fee uint64, outputs []txbuilder.Output) (uint64, error) {
	denominated := make([]txbuilder.Output, len(outputs))
	for i, o := range outputs {
		denominated[i] = txbuilder.Output{To: o.To, Amount: c.denominate(o.Amount)}
	}
	t := txbuilder.TxType{Kind: txbuilder.KindTransfer, Fee: c.denominate(fee), Outputs: denominated}
	return c.submit(ctx, t, nil)
}

// Withdraw builds, proves, and submits a withdrawal to an external address.
func (c *Client) Withdraw(ctx context.Context, amount, fee uint64, to []byte) (uint64, error) {
	t := txbuilder.TxType{
		Kind:           txbuilder.KindWithdraw,
		Fee:            c.denominate(fee),
		WithdrawAmount: c.denominate(amount),
		To:             to,
	}
	return c.submit(ctx, t, nil)
}

// Balance returns the client's locally tracked total balance.
func (c *Client) Balance() (uint64, error) {
	return c.state.TotalBalance()
}

// Address renders this client's own shielded address.
func (c *Client) Address() string {
	k := keys.Derive(c.sk)
	d := poseidon.FromUint64(0)
	return c.cfg.Codec.Format(d, keys.DerivePD(d, k.Eta))
}
