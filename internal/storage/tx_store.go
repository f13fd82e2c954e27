package storage

import (
	"github.com/thanhnp/coin-ledger/internal/models"
)

// TxStore maps transaction IDs to the index of the block holding them
type TxStore struct {
	db *PebbleDB
}

// NewTxStore creates a new TxStore
func NewTxStore(db *PebbleDB) *TxStore {
	return &TxStore{db: db}
}

func txKey(txid string) []byte {
	return []byte(txid)
}

// SaveBatch indexes every transaction of block in batch
func (s *TxStore) SaveBatch(batch *WriteBatch, block *models.Block) error {
	index := blockKey(block.Index)
	for _, tx := range block.Transactions() {
		if err := s.db.PutBatch(batch, CFTransactions, txKey(tx.ID), index); err != nil {
			return err
		}
	}
	return nil
}

// BlockIndex returns the index of the block containing txid. ok is false
// when the transaction is not committed.
func (s *TxStore) BlockIndex(txid string) (index int64, ok bool, err error) {
	data, err := s.db.Get(CFTransactions, txKey(txid))
	if err != nil || data == nil {
		return 0, false, err
	}
	index, err = decodeIndex(data)
	if err != nil {
		return 0, false, err
	}
	return index, true, nil
}

// Exists reports whether txid is already committed
func (s *TxStore) Exists(txid string) (bool, error) {
	_, ok, err := s.BlockIndex(txid)
	return ok, err
}
