package storage

import (
	"encoding/hex"
	"fmt"

	"github.com/thanhnp/coin-ledger/internal/encoding"
	"github.com/thanhnp/coin-ledger/internal/models"
)

// UnspentStore holds the current unspent output set and an address index
// over it. It implements models.OutputView.
type UnspentStore struct {
	db *PebbleDB
}

// NewUnspentStore creates a new UnspentStore
func NewUnspentStore(db *PebbleDB) *UnspentStore {
	return &UnspentStore{db: db}
}

// unspentKey creates a key for the unspent column family
func unspentKey(op models.OutPoint) []byte {
	return []byte(fmt.Sprintf("%s:%020d", op.TransactionID, op.Index))
}

// addressPrefix creates a prefix for all unspent outputs of an address
func addressPrefix(address []byte) []byte {
	return []byte(hex.EncodeToString(address) + ":")
}

// addressKey creates a key for the addresses column family
func addressKey(address []byte, op models.OutPoint) []byte {
	return append(addressPrefix(address), unspentKey(op)...)
}

func encodeUnspent(u models.UnspentOutput) []byte {
	w := encoding.NewWriter()
	w.WriteString(u.TransactionID)
	w.WriteInt64(u.Index)
	w.WriteBuffer(u.Address)
	w.WriteInt64(u.Amount)
	return w.Bytes()
}

func decodeUnspent(data []byte) (models.UnspentOutput, error) {
	r := encoding.NewReader(data)
	u := models.UnspentOutput{
		TransactionID: r.ReadString("unspent.transaction_id"),
		Index:         r.ReadInt64("unspent.index"),
		Address:       r.ReadBuffer("unspent.address"),
		Amount:        r.ReadInt64("unspent.amount"),
	}
	if err := r.Finish(); err != nil {
		return models.UnspentOutput{}, fmt.Errorf("failed to decode unspent output: %w", err)
	}
	return u, nil
}

// Get retrieves an unspent output. A spent or unknown output yields nil.
func (s *UnspentStore) Get(op models.OutPoint) (*models.UnspentOutput, error) {
	data, err := s.db.Get(CFUnspent, unspentKey(op))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	u, err := decodeUnspent(data)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// LookupOutput implements models.OutputView
func (s *UnspentStore) LookupOutput(op models.OutPoint) (*models.TransactionOutput, error) {
	u, err := s.Get(op)
	if err != nil || u == nil {
		return nil, err
	}
	return &models.TransactionOutput{Address: u.Address, Amount: u.Amount}, nil
}

// ApplyBatch adds the removal of spent outputs and the insertion of created
// ones to batch
func (s *UnspentStore) ApplyBatch(batch *WriteBatch, delta *models.LedgerDelta) error {
	for _, op := range delta.Spent {
		u, err := s.Get(op)
		if err != nil {
			return err
		}
		if u == nil {
			return fmt.Errorf("unspent output not found: %s", op)
		}
		if err := s.db.DeleteBatch(batch, CFUnspent, unspentKey(op)); err != nil {
			return err
		}
		if err := s.db.DeleteBatch(batch, CFAddresses, addressKey(u.Address, op)); err != nil {
			return err
		}
	}

	for op, out := range delta.Created {
		data := encodeUnspent(models.UnspentOutput{
			TransactionID: op.TransactionID,
			Index:         op.Index,
			Address:       out.Address,
			Amount:        out.Amount,
		})
		if err := s.db.PutBatch(batch, CFUnspent, unspentKey(op), data); err != nil {
			return err
		}
		if err := s.db.PutBatch(batch, CFAddresses, addressKey(out.Address, op), data); err != nil {
			return err
		}
	}
	return nil
}

// ByAddress retrieves every unspent output owned by address
func (s *UnspentStore) ByAddress(address []byte) ([]models.UnspentOutput, error) {
	iter, err := s.db.NewPrefixIterator(CFAddresses, addressPrefix(address))
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	outputs := []models.UnspentOutput{}
	for ; iter.Valid(); iter.Next() {
		u, err := decodeUnspent(iter.Value())
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, u)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// All retrieves the whole unspent output set in key order
func (s *UnspentStore) All() ([]models.UnspentOutput, error) {
	iter, err := s.db.NewIterator(CFUnspent)
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	outputs := []models.UnspentOutput{}
	for ; iter.Valid(); iter.Next() {
		u, err := decodeUnspent(iter.Value())
		if err != nil {
			return nil, err
		}
		outputs = append(outputs, u)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	return outputs, nil
}

// Balance sums the unspent outputs owned by address
func (s *UnspentStore) Balance(address []byte) (int64, error) {
	outputs, err := s.ByAddress(address)
	if err != nil {
		return 0, err
	}

	var balance int64
	for _, u := range outputs {
		balance += u.Amount
	}
	return balance, nil
}
