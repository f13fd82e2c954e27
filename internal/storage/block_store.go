package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/thanhnp/coin-ledger/internal/encoding"
	"github.com/thanhnp/coin-ledger/internal/models"
)

// BlockStore handles block storage operations
type BlockStore struct {
	db *PebbleDB
}

// NewBlockStore creates a new BlockStore
func NewBlockStore(db *PebbleDB) *BlockStore {
	return &BlockStore{db: db}
}

// blockKey encodes the index big-endian so keys sort in index order
func blockKey(index int64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(index))
	return key
}

func decodeIndex(value []byte) (int64, error) {
	if len(value) != 8 {
		return 0, fmt.Errorf("malformed block index of %d bytes", len(value))
	}
	return int64(binary.BigEndian.Uint64(value)), nil
}

// SaveBatch adds the block and its hash index to batch
func (s *BlockStore) SaveBatch(batch *WriteBatch, block *models.Block) error {
	key := blockKey(block.Index)
	if err := s.db.PutBatch(batch, CFBlocks, key, encoding.Marshal(block)); err != nil {
		return err
	}
	return s.db.PutBatch(batch, CFBlockHashes, block.Hash, key)
}

// GetByIndex retrieves a block by its index
func (s *BlockStore) GetByIndex(index int64) (*models.Block, error) {
	data, err := s.db.Get(CFBlocks, blockKey(index))
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	block, err := models.DecodeBlock(data)
	if err != nil {
		return nil, fmt.Errorf("failed to decode block %d: %w", index, err)
	}
	return block, nil
}

// GetByHash retrieves a block by its hash
func (s *BlockStore) GetByHash(hash []byte) (*models.Block, error) {
	if len(hash) == 0 {
		return nil, nil
	}
	indexData, err := s.db.Get(CFBlockHashes, hash)
	if err != nil {
		return nil, err
	}
	if indexData == nil {
		return nil, nil
	}

	index, err := decodeIndex(indexData)
	if err != nil {
		return nil, err
	}
	return s.GetByIndex(index)
}

// Iterate returns an iterator over blocks starting at index from
func (s *BlockStore) Iterate(from int64) (*BlockIterator, error) {
	if from < 0 {
		from = 0
	}
	iter, err := s.db.NewRangeIterator(CFBlocks, blockKey(from))
	if err != nil {
		return nil, err
	}
	return &BlockIterator{iter: iter}, nil
}

// BlockIterator walks stored blocks in index order over the state of the
// database when it was created.
type BlockIterator struct {
	iter    *Iterator
	started bool
	current *models.Block
	err     error
}

// Next advances to the next block. It returns false at the end of the log
// or on error.
func (it *BlockIterator) Next() bool {
	if it.err != nil {
		return false
	}
	if it.started {
		it.iter.Next()
	}
	it.started = true

	if !it.iter.Valid() {
		it.current = nil
		it.err = it.iter.Error()
		return false
	}

	block, err := models.DecodeBlock(it.iter.Value())
	if err != nil {
		it.current = nil
		it.err = fmt.Errorf("failed to decode block: %w", err)
		return false
	}
	it.current = block
	return true
}

// Block returns the block at the current position
func (it *BlockIterator) Block() *models.Block {
	return it.current
}

// Err returns the error that stopped iteration, if any
func (it *BlockIterator) Err() error {
	return it.err
}

// Close releases the iterator
func (it *BlockIterator) Close() error {
	return it.iter.Close()
}
