package pool

import "golang.org/x/xerrors"

// TxRecordKind tags which variant a persisted TxRecord holds.
type TxRecordKind byte

const (
	// KindAccount marks a persisted Account record.
	KindAccount TxRecordKind = 0
	// KindNote marks a persisted Note record.
	KindNote TxRecordKind = 1
)

// TxRecord is the tagged union `{Account(Account) | Note(Note)}` stored in
// the sparse tx storage, keyed by pool index (SPEC_FULL.md §3).
type TxRecord struct {
	Kind    TxRecordKind
	Account Account
	Note    Note
}

// NewAccountRecord wraps an Account as a TxRecord.
func NewAccountRecord(a Account) TxRecord {
	return TxRecord{Kind: KindAccount, Account: a}
}

// NewNoteRecord wraps a Note as a TxRecord.
func NewNoteRecord(n Note) TxRecord {
	return TxRecord{Kind: KindNote, Note: n}
}

// MarshalBinary is the canonical persisted encoding: one tag byte followed
// by the variant's own canonical encoding.
func (t TxRecord) MarshalBinary() ([]byte, error) {
	switch t.Kind {
	case KindAccount:
		b, err := t.Account.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(KindAccount)}, b...), nil
	case KindNote:
		b, err := t.Note.MarshalBinary()
		if err != nil {
			return nil, err
		}
		return append([]byte{byte(KindNote)}, b...), nil
	default:
		return nil, xerrors.Errorf("pool: tx record: unknown kind %d", t.Kind)
	}
}

// UnmarshalBinary parses the encoding produced by MarshalBinary.
func (t *TxRecord) UnmarshalBinary(data []byte) error {
	if len(data) < 1 {
		return xerrors.New("pool: tx record: empty data")
	}
	switch TxRecordKind(data[0]) {
	case KindAccount:
		var a Account
		if err := a.UnmarshalBinary(data[1:]); err != nil {
			return err
		}
		t.Kind = KindAccount
		t.Account = a
		return nil
	case KindNote:
		var n Note
		if err := n.UnmarshalBinary(data[1:]); err != nil {
			return err
		}
		t.Kind = KindNote
		t.Note = n
		return nil
	default:
		return xerrors.Errorf("pool: tx record: unknown kind byte %d", data[0])
	}
}
