package storage

import (
	"fmt"

	"github.com/thanhnp/coin-ledger/pkg/semver"
)

var (
	metaTipKey    = []byte("tip")
	metaSchemaKey = []byte("schema")
)

// MetaStore handles ledger bookkeeping: the tip index and the schema
// version of the stored records
type MetaStore struct {
	db *PebbleDB
}

// NewMetaStore creates a new MetaStore
func NewMetaStore(db *PebbleDB) *MetaStore {
	return &MetaStore{db: db}
}

// TipIndex retrieves the index of the last appended block. ok is false for
// an empty log.
func (s *MetaStore) TipIndex() (index int64, ok bool, err error) {
	data, err := s.db.Get(CFMeta, metaTipKey)
	if err != nil || data == nil {
		return 0, false, err
	}
	index, err = decodeIndex(data)
	if err != nil {
		return 0, false, fmt.Errorf("failed to parse tip index: %w", err)
	}
	return index, true, nil
}

// SetTipIndexBatch records the tip index in batch
func (s *MetaStore) SetTipIndexBatch(batch *WriteBatch, index int64) error {
	return s.db.PutBatch(batch, CFMeta, metaTipKey, blockKey(index))
}

// SchemaVersion retrieves the stored schema version, or nil if none was
// written yet
func (s *MetaStore) SchemaVersion() (*semver.Version, error) {
	data, err := s.db.Get(CFMeta, metaSchemaKey)
	if err != nil || data == nil {
		return nil, err
	}
	return semver.Parse(string(data))
}

// SetSchemaVersion records the schema version
func (s *MetaStore) SetSchemaVersion(v *semver.Version) error {
	return s.db.Put(CFMeta, metaSchemaKey, []byte(v.String()))
}
