package pool

// TxRecordCodec adapts TxRecord's MarshalBinary/UnmarshalBinary to the
// sparsearray.Codec contract.
type TxRecordCodec struct{}

func (TxRecordCodec) Encode(t TxRecord) ([]byte, error) {
	return t.MarshalBinary()
}

func (TxRecordCodec) Decode(b []byte) (TxRecord, error) {
	var t TxRecord
	err := t.UnmarshalBinary(b)
	return t, err
}
