package models

import (
	"bytes"
	"fmt"

	"github.com/thanhnp/coin-ledger/internal/encoding"
	"github.com/thanhnp/coin-ledger/internal/hashing"
)

// GenesisIndex is the index the genesis block is stored under
const GenesisIndex int64 = 1

// GenesisPreviousHash is the fixed sentinel standing in for the parent of
// the genesis block.
var GenesisPreviousHash = []byte{0}

// Block is an indexed, hash-linked container of ledger objects
type Block struct {
	Index        int64
	PreviousHash []byte
	Timestamp    int64
	Nonce        int64
	Hash         []byte
	Objects      []BlockObject
}

// NewGenesisBlock builds the genesis block. Its hash is computed while the
// index is still 0 and the index is set to GenesisIndex afterwards; other
// implementations of the ledger hash genesis the same way.
func NewGenesisBlock(hp hashing.Provider, timestamp int64, objects ...BlockObject) *Block {
	if objects == nil {
		objects = []BlockObject{}
	}
	b := &Block{
		Index:        0,
		PreviousHash: GenesisPreviousHash,
		Timestamp:    timestamp,
		Nonce:        0,
		Objects:      objects,
	}
	b.Hash = hp.ComputeHash(b)
	b.Index = GenesisIndex
	return b
}

// IsGenesis reports whether b sits at the genesis position
func (b *Block) IsGenesis() bool {
	return b.Index == GenesisIndex && bytes.Equal(b.PreviousHash, GenesisPreviousHash)
}

func (b *Block) encodeHeader(w *encoding.Writer, index int64) {
	w.WriteInt64(index)
	w.WriteBuffer(b.PreviousHash)
	w.WriteInt64(b.Timestamp)
	w.WriteInt64(b.Nonce)
}

func (b *Block) encodeObjects(w *encoding.Writer) {
	if w.WriteCount(b.Objects != nil, len(b.Objects)) {
		for _, obj := range b.Objects {
			writeObject(w, obj)
		}
	}
}

// EncodeHashable writes every field except Hash
func (b *Block) EncodeHashable(w *encoding.Writer) {
	b.encodeHeader(w, b.Index)
	b.encodeObjects(w)
}

// Encode writes the full persisted form
func (b *Block) Encode(w *encoding.Writer) {
	b.encodeHeader(w, b.Index)
	w.WriteBuffer(b.Hash)
	b.encodeObjects(w)
}

// ReadBlock decodes a block written by Encode. Failures are recorded on r.
func ReadBlock(r *encoding.Reader) *Block {
	b := &Block{
		Index:        r.ReadInt64("block.index"),
		PreviousHash: r.ReadBuffer("block.previous_hash"),
		Timestamp:    r.ReadInt64("block.timestamp"),
		Nonce:        r.ReadInt64("block.nonce"),
		Hash:         r.ReadBuffer("block.hash"),
	}
	if n, ok := r.ReadCount("block.objects", minObjectSize); ok {
		b.Objects = make([]BlockObject, 0, n)
		for i := 0; i < n && r.Err() == nil; i++ {
			if obj := readObject(r); obj != nil {
				b.Objects = append(b.Objects, obj)
			}
		}
	}
	return b
}

// DecodeBlock decodes a standalone block record
func DecodeBlock(data []byte) (*Block, error) {
	r := encoding.NewReader(data)
	b := ReadBlock(r)
	if err := r.Finish(); err != nil {
		return nil, err
	}
	return b, nil
}

// ComputeHash returns the digest of the block's current fields
func (b *Block) ComputeHash(hp hashing.Provider) []byte {
	return hp.ComputeHash(b)
}

// ExpectedHash returns the hash b must carry. For the genesis block that is
// the hash taken at index 0.
func (b *Block) ExpectedHash(hp hashing.Provider) []byte {
	if !b.IsGenesis() {
		return hp.ComputeHash(b)
	}
	w := encoding.NewWriter()
	b.encodeHeader(w, 0)
	b.encodeObjects(w)
	return hp.Sum(w.Bytes())
}

// Seal computes and assigns the block hash
func (b *Block) Seal(hp hashing.Provider) {
	b.Hash = b.ExpectedHash(hp)
}

// Transactions returns the transaction objects of the block in order
func (b *Block) Transactions() []*Transaction {
	var txs []*Transaction
	for _, obj := range b.Objects {
		if tx, ok := obj.(*Transaction); ok {
			txs = append(txs, tx)
		}
	}
	return txs
}

// Check validates the block hash and every contained object against view
// and returns the UTXO transition the block implies. Linkage to the prior
// block is checked by the repository.
func (b *Block) Check(hp hashing.Provider, view OutputView, settings CoinSettings) (*LedgerDelta, error) {
	if computed := b.ExpectedHash(hp); !bytes.Equal(b.Hash, computed) {
		return nil, &HashMismatchError{Entity: "block", Stored: b.Hash, Computed: computed}
	}

	overlay := newOverlayView(view)
	ids := make(map[string]bool, len(b.Objects))
	var (
		regularFees int64
		reward      *Transaction
		fee         *Transaction
	)

	for i, obj := range b.Objects {
		if obj == nil {
			return nil, fmt.Errorf("object %d is nil", i)
		}
		if err := obj.Check(hp, overlay, settings); err != nil {
			return nil, fmt.Errorf("object %d: %w", i, err)
		}

		tx, ok := obj.(*Transaction)
		if !ok {
			continue
		}
		if ids[tx.ID] {
			return nil, fmt.Errorf("object %d: %w", i, assertionf(tx, ReasonDuplicateTransaction, "id repeated in block"))
		}
		ids[tx.ID] = true

		switch tx.Type {
		case TransactionRegular:
			sum, ok := addAmount(regularFees, tx.Fee())
			if !ok {
				return nil, fmt.Errorf("object %d: %w", i, assertionf(tx, ReasonAmountOverflow, "block fees overflow"))
			}
			regularFees = sum
		case TransactionReward:
			if reward != nil {
				return nil, fmt.Errorf("object %d: %w", i, assertionf(tx, ReasonRewardExceeded, "block already has reward %s", reward.ID))
			}
			reward = tx
		case TransactionFee:
			if fee != nil {
				return nil, fmt.Errorf("object %d: %w", i, assertionf(tx, ReasonFeeExceeded, "block already has fee %s", fee.ID))
			}
			fee = tx
		}
		overlay.apply(tx)
	}

	if reward != nil {
		if total, _ := reward.OutputTotal(); total > settings.MiningReward {
			return nil, assertionf(reward, ReasonRewardExceeded, "reward %d exceeds %d", total, settings.MiningReward)
		}
	}
	if fee != nil {
		if total, _ := fee.OutputTotal(); total > regularFees {
			return nil, assertionf(fee, ReasonFeeExceeded, "fee %d exceeds collected %d", total, regularFees)
		}
	}

	return overlay.delta(), nil
}
