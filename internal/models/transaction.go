package models

import (
	"bytes"

	"github.com/thanhnp/coin-ledger/internal/encoding"
	"github.com/thanhnp/coin-ledger/internal/hashing"
)

// TransactionType is encoded as a one-byte ordinal
type TransactionType byte

const (
	TransactionRegular TransactionType = iota
	TransactionFee
	TransactionReward
)

func (t TransactionType) String() string {
	switch t {
	case TransactionRegular:
		return "regular"
	case TransactionFee:
		return "fee"
	case TransactionReward:
		return "reward"
	}
	return "unknown"
}

// Valid reports whether t is a known type
func (t TransactionType) Valid() bool {
	return t <= TransactionReward
}

// TransactionOutput is a spendable credit to an address
type TransactionOutput struct {
	Address []byte
	Amount  int64
}

// TransactionInput proves the right to spend a prior output
type TransactionInput struct {
	TransactionID string
	Index         int64
	Address       []byte
	Amount        int64
	Signature     []byte
}

// OutPoint returns the output the input spends
func (in TransactionInput) OutPoint() OutPoint {
	return OutPoint{TransactionID: in.TransactionID, Index: in.Index}
}

// TransactionData holds the ordered inputs and outputs. A nil slice and an
// empty slice are distinct in the canonical encoding.
type TransactionData struct {
	Inputs  []TransactionInput
	Outputs []TransactionOutput
}

// Transaction is a UTXO transaction. Hash is assigned once ID is fixed and
// the transaction is immutable afterwards.
type Transaction struct {
	ID   string
	Hash []byte
	Type TransactionType
	Data *TransactionData
}

// ItemType tags each encoded input or output
type ItemType byte

const (
	ItemInput ItemType = iota
	ItemOutput
)

// Inputs and outputs share one item layout: index, transaction id, item
// type, address, amount, signature. An output is written with its position
// as index, an empty transaction id and no signature.
const (
	minItemSize        = 8 + 1 + 1 + 1 + 8 + 1
	minTransactionSize = 1 + 1 + 1 + 1
)

func writeItem(w *encoding.Writer, index int64, transactionID string, kind ItemType, address []byte, amount int64, signature []byte) {
	w.WriteInt64(index)
	w.WriteString(transactionID)
	w.WriteUint8(byte(kind))
	w.WriteBuffer(address)
	w.WriteInt64(amount)
	w.WriteBuffer(signature)
}

func (out TransactionOutput) encode(w *encoding.Writer, position int) {
	writeItem(w, int64(position), "", ItemOutput, out.Address, out.Amount, nil)
}

func (in TransactionInput) encode(w *encoding.Writer) {
	writeItem(w, in.Index, in.TransactionID, ItemInput, in.Address, in.Amount, in.Signature)
}

func (tx *Transaction) encodeData(w *encoding.Writer) {
	if !w.WriteBool(tx.Data != nil) {
		return
	}
	if w.WriteCount(tx.Data.Inputs != nil, len(tx.Data.Inputs)) {
		for _, in := range tx.Data.Inputs {
			in.encode(w)
		}
	}
	if w.WriteCount(tx.Data.Outputs != nil, len(tx.Data.Outputs)) {
		for i, out := range tx.Data.Outputs {
			out.encode(w, i)
		}
	}
}

// EncodeHashable writes every field except Hash
func (tx *Transaction) EncodeHashable(w *encoding.Writer) {
	w.WriteString(tx.ID)
	w.WriteUint8(byte(tx.Type))
	tx.encodeData(w)
}

// Encode writes the full persisted form
func (tx *Transaction) Encode(w *encoding.Writer) {
	w.WriteString(tx.ID)
	w.WriteBuffer(tx.Hash)
	w.WriteUint8(byte(tx.Type))
	tx.encodeData(w)
}

// ReadTransaction decodes a transaction written by Encode. Failures are
// recorded on r.
func ReadTransaction(r *encoding.Reader) *Transaction {
	tx := &Transaction{
		ID:   r.ReadString("transaction.id"),
		Hash: r.ReadBuffer("transaction.hash"),
		Type: TransactionType(r.ReadUint8("transaction.type")),
	}
	if r.Err() == nil && !tx.Type.Valid() {
		r.Fail("transaction.type", encoding.ErrInvalidValue)
	}
	if !r.ReadBool("transaction.data") {
		return tx
	}

	data := &TransactionData{}
	if n, ok := r.ReadCount("transaction.inputs", minItemSize); ok {
		data.Inputs = make([]TransactionInput, 0, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			data.Inputs = append(data.Inputs, readInput(r))
		}
	}
	if n, ok := r.ReadCount("transaction.outputs", minItemSize); ok {
		data.Outputs = make([]TransactionOutput, 0, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			data.Outputs = append(data.Outputs, readOutput(r, i))
		}
	}
	tx.Data = data
	return tx
}

func readInput(r *encoding.Reader) TransactionInput {
	in := TransactionInput{
		Index:         r.ReadInt64("input.index"),
		TransactionID: r.ReadString("input.transaction_id"),
	}
	kind := ItemType(r.ReadUint8("input.type"))
	in.Address = r.ReadBuffer("input.address")
	in.Amount = r.ReadInt64("input.amount")
	in.Signature = r.ReadBuffer("input.signature")
	if r.Err() == nil && kind != ItemInput {
		r.Fail("input.type", encoding.ErrInvalidValue)
	}
	return in
}

// readOutput rejects output items carrying fields an output never writes,
// so every decoded transaction re-encodes to the same bytes
func readOutput(r *encoding.Reader, position int) TransactionOutput {
	index := r.ReadInt64("output.index")
	transactionID := r.ReadString("output.transaction_id")
	kind := ItemType(r.ReadUint8("output.type"))
	out := TransactionOutput{
		Address: r.ReadBuffer("output.address"),
		Amount:  r.ReadInt64("output.amount"),
	}
	signature := r.ReadBuffer("output.signature")
	if r.Err() != nil {
		return out
	}
	switch {
	case kind != ItemOutput:
		r.Fail("output.type", encoding.ErrInvalidValue)
	case index != int64(position):
		r.Fail("output.index", encoding.ErrInvalidValue)
	case transactionID != "":
		r.Fail("output.transaction_id", encoding.ErrInvalidValue)
	case signature != nil:
		r.Fail("output.signature", encoding.ErrInvalidValue)
	}
	return out
}

// DecodeTransaction decodes a standalone transaction record
func DecodeTransaction(data []byte) (*Transaction, error) {
	r := encoding.NewReader(data)
	tx := ReadTransaction(r)
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return tx, nil
}

// Seal computes and assigns the transaction hash
func (tx *Transaction) Seal(hp hashing.Provider) {
	tx.Hash = hp.ComputeHash(tx)
}

// InputTotal returns the sum of input amounts and false on overflow
func (tx *Transaction) InputTotal() (int64, bool) {
	if tx.Data == nil {
		return 0, true
	}
	var total int64
	for _, in := range tx.Data.Inputs {
		var ok bool
		if total, ok = addAmount(total, in.Amount); !ok {
			return 0, false
		}
	}
	return total, true
}

// OutputTotal returns the sum of output amounts and false on overflow
func (tx *Transaction) OutputTotal() (int64, bool) {
	if tx.Data == nil {
		return 0, true
	}
	var total int64
	for _, out := range tx.Data.Outputs {
		var ok bool
		if total, ok = addAmount(total, out.Amount); !ok {
			return 0, false
		}
	}
	return total, true
}

func addAmount(a, b int64) (int64, bool) {
	c := a + b
	if (b > 0 && c < a) || (b < 0 && c > a) {
		return 0, false
	}
	return c, true
}

// signingMessage is the content an input signature covers
type signingMessage struct {
	transactionID string
	index         int64
	address       []byte
}

func (m signingMessage) EncodeHashable(w *encoding.Writer) {
	w.WriteString(m.transactionID)
	w.WriteInt64(m.index)
	w.WriteBuffer(m.address)
}

// SigningMessage returns the digest an owner signs to spend the output
// (transactionID, index) held by address.
func SigningMessage(hp hashing.Provider, transactionID string, index int64, address []byte) []byte {
	return hp.ComputeHash(signingMessage{transactionID: transactionID, index: index, address: address})
}

// Equal reports whether two transactions have identical encodings
func (tx *Transaction) Equal(other *Transaction) bool {
	return bytes.Equal(encoding.Marshal(tx), encoding.Marshal(other))
}
