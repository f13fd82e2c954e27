package storage

import (
	"bytes"
	"fmt"
	"os"

	"github.com/cockroachdb/pebble"
	"github.com/cockroachdb/pebble/vfs"
)

// Key prefixes (simulating column families)
const (
	PrefixBlocks       = "blk:"
	PrefixBlockHashes  = "bhs:"
	PrefixTransactions = "txn:"
	PrefixUnspent      = "uto:"
	PrefixAddresses    = "adr:"
	PrefixMeta         = "met:"
)

// Column family names
const (
	CFBlocks       = "blocks"
	CFBlockHashes  = "block_hashes"
	CFTransactions = "transactions"
	CFUnspent      = "unspent"
	CFAddresses    = "addresses"
	CFMeta         = "meta"
)

var cfPrefixes = map[string]string{
	CFBlocks:       PrefixBlocks,
	CFBlockHashes:  PrefixBlockHashes,
	CFTransactions: PrefixTransactions,
	CFUnspent:      PrefixUnspent,
	CFAddresses:    PrefixAddresses,
	CFMeta:         PrefixMeta,
}

// PebbleDB wraps the Pebble database
type PebbleDB struct {
	db     *pebble.DB
	noSync bool
}

// WriteBatch wraps Pebble's batch for atomic writes
type WriteBatch struct {
	batch *pebble.Batch
	db    *PebbleDB
}

// Iterator wraps Pebble's iterator. It reads the database as of its
// creation; later writes are not visible through it.
type Iterator struct {
	iter     *pebble.Iterator
	cfPrefix []byte
}

// NewPebbleDB opens or creates a database under path
func NewPebbleDB(path string) (*PebbleDB, error) {
	if err := os.MkdirAll(path, 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	opts := &pebble.Options{
		Cache:        pebble.NewCache(64 << 20),
		MaxOpenFiles: 500,
	}

	db, err := pebble.Open(path, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	return &PebbleDB{db: db}, nil
}

// NewMemPebbleDB opens a database backed by memory only. Writes skip the
// fsync since there is nothing to flush.
func NewMemPebbleDB() (*PebbleDB, error) {
	db, err := pebble.Open("", &pebble.Options{FS: vfs.NewMem()})
	if err != nil {
		return nil, fmt.Errorf("failed to open in-memory database: %w", err)
	}
	return &PebbleDB{db: db, noSync: true}, nil
}

// Close closes the database
func (p *PebbleDB) Close() error {
	return p.db.Close()
}

func (p *PebbleDB) writeOptions() *pebble.WriteOptions {
	if p.noSync {
		return pebble.NoSync
	}
	return pebble.Sync
}

// prefixKey creates a prefixed key for the given column family
func (p *PebbleDB) prefixKey(cf string, key []byte) ([]byte, error) {
	prefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}
	return append([]byte(prefix), key...), nil
}

// Put stores a key-value pair in the specified column family
func (p *PebbleDB) Put(cf string, key, value []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return p.db.Set(prefixedKey, value, p.writeOptions())
}

// Get retrieves a value from the specified column family. A missing key
// yields nil, nil.
func (p *PebbleDB) Get(cf string, key []byte) ([]byte, error) {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return nil, err
	}

	value, closer, err := p.db.Get(prefixedKey)
	if err != nil {
		if err == pebble.ErrNotFound {
			return nil, nil
		}
		return nil, err
	}
	defer closer.Close()

	// Copy the value since it's only valid until closer.Close()
	result := make([]byte, len(value))
	copy(result, value)
	return result, nil
}

// NewBatch creates a new write batch
func (p *PebbleDB) NewBatch() *WriteBatch {
	return &WriteBatch{
		batch: p.db.NewBatch(),
		db:    p,
	}
}

// WriteBatch commits a batch atomically
func (p *PebbleDB) WriteBatch(batch *WriteBatch) error {
	return batch.batch.Commit(p.writeOptions())
}

// PutBatch adds a put operation to the batch
func (p *PebbleDB) PutBatch(batch *WriteBatch, cf string, key, value []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return batch.batch.Set(prefixedKey, value, nil)
}

// DeleteBatch adds a delete operation to the batch
func (p *PebbleDB) DeleteBatch(batch *WriteBatch, cf string, key []byte) error {
	prefixedKey, err := p.prefixKey(cf, key)
	if err != nil {
		return err
	}
	return batch.batch.Delete(prefixedKey, nil)
}

// Destroy closes the batch and releases resources
func (b *WriteBatch) Destroy() {
	b.batch.Close()
}

// DeleteAll removes every key of every column family in one batch
func (p *PebbleDB) DeleteAll() error {
	batch := p.db.NewBatch()
	defer batch.Close()

	for _, prefix := range cfPrefixes {
		start := []byte(prefix)
		if err := batch.DeleteRange(start, prefixUpperBound(start), nil); err != nil {
			return fmt.Errorf("failed to delete range %q: %w", prefix, err)
		}
	}
	return batch.Commit(p.writeOptions())
}

// NewIterator creates an iterator over a whole column family
func (p *PebbleDB) NewIterator(cf string) (*Iterator, error) {
	return p.NewPrefixIterator(cf, nil)
}

// NewPrefixIterator creates an iterator over the keys of a column family
// starting with prefix
func (p *PebbleDB) NewPrefixIterator(cf string, prefix []byte) (*Iterator, error) {
	cfPrefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}

	cfPrefixBytes := []byte(cfPrefix)
	fullPrefix := append(append([]byte(nil), cfPrefixBytes...), prefix...)
	return p.newIterator(cfPrefixBytes, fullPrefix, prefixUpperBound(fullPrefix))
}

// NewRangeIterator creates an iterator over a column family starting at
// the first key not less than start
func (p *PebbleDB) NewRangeIterator(cf string, start []byte) (*Iterator, error) {
	cfPrefix, ok := cfPrefixes[cf]
	if !ok {
		return nil, fmt.Errorf("column family not found: %s", cf)
	}

	cfPrefixBytes := []byte(cfPrefix)
	lower := append(append([]byte(nil), cfPrefixBytes...), start...)
	return p.newIterator(cfPrefixBytes, lower, prefixUpperBound(cfPrefixBytes))
}

func (p *PebbleDB) newIterator(cfPrefix, lower, upper []byte) (*Iterator, error) {
	iter, err := p.db.NewIter(&pebble.IterOptions{
		LowerBound: lower,
		UpperBound: upper,
	})
	if err != nil {
		return nil, err
	}

	iter.First()
	return &Iterator{iter: iter, cfPrefix: cfPrefix}, nil
}

// prefixUpperBound returns the upper bound for prefix iteration
func prefixUpperBound(prefix []byte) []byte {
	if len(prefix) == 0 {
		return nil
	}
	upper := make([]byte, len(prefix))
	copy(upper, prefix)
	for i := len(upper) - 1; i >= 0; i-- {
		if upper[i] < 0xff {
			upper[i]++
			return upper[:i+1]
		}
	}
	return nil
}

// Valid returns true if the iterator is positioned at a valid key
func (i *Iterator) Valid() bool {
	return i.iter.Valid()
}

// Next advances the iterator to the next key
func (i *Iterator) Next() bool {
	return i.iter.Next()
}

// Key returns the current key without the column family prefix
func (i *Iterator) Key() []byte {
	key := i.iter.Key()
	if bytes.HasPrefix(key, i.cfPrefix) {
		return key[len(i.cfPrefix):]
	}
	return key
}

// Value returns the current value. It is only valid until the next call to
// Next.
func (i *Iterator) Value() []byte {
	return i.iter.Value()
}

// Error returns any accumulated iteration error
func (i *Iterator) Error() error {
	return i.iter.Error()
}

// Close closes the iterator
func (i *Iterator) Close() error {
	return i.iter.Close()
}
