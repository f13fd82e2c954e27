package storage

import (
	"bytes"
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/thanhnp/coin-ledger/internal/hashing"
	"github.com/thanhnp/coin-ledger/internal/models"
	"github.com/thanhnp/coin-ledger/pkg/semver"
)

// SchemaVersion is the version of the record layout written by this package
var SchemaVersion = semver.MustParse("1.0.0")

// BlockRepository is the append-only block log. Appends are serialized;
// reads run concurrently with them and never see a partially written
// block.
type BlockRepository struct {
	db       *PebbleDB
	blocks   *BlockStore
	txs      *TxStore
	unspent  *UnspentStore
	meta     *MetaStore
	hp       hashing.Provider
	settings models.CoinSettings
	log      logrus.FieldLogger

	appendMu sync.Mutex

	tipMu sync.RWMutex
	tip   *models.Block
}

// Open loads the repository stored in db
func Open(db *PebbleDB, hp hashing.Provider, settings models.CoinSettings, logger logrus.FieldLogger) (*BlockRepository, error) {
	if hp == nil {
		hp = hashing.Default()
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	r := &BlockRepository{
		db:       db,
		blocks:   NewBlockStore(db),
		txs:      NewTxStore(db),
		unspent:  NewUnspentStore(db),
		meta:     NewMetaStore(db),
		hp:       hp,
		settings: settings,
		log:      logger.WithField("component", "repository"),
	}

	if err := r.checkSchema(); err != nil {
		return nil, err
	}

	index, ok, err := r.meta.TipIndex()
	if err != nil {
		return nil, fmt.Errorf("failed to load tip: %w", err)
	}
	if ok {
		tip, err := r.blocks.GetByIndex(index)
		if err != nil {
			return nil, fmt.Errorf("failed to load tip block: %w", err)
		}
		if tip == nil {
			return nil, fmt.Errorf("tip block %d is missing", index)
		}
		r.tip = tip
		r.log.WithField("index", index).Info("Loaded block log")
	} else {
		r.log.Info("Block log is empty")
	}

	return r, nil
}

func (r *BlockRepository) checkSchema() error {
	stored, err := r.meta.SchemaVersion()
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if stored == nil {
		return r.meta.SetSchemaVersion(SchemaVersion)
	}
	if !SchemaVersion.Reads(stored) {
		return fmt.Errorf("unsupported schema version %s, this build reads %s", stored, SchemaVersion)
	}
	return nil
}

// HashProvider returns the provider blocks are hashed with
func (r *BlockRepository) HashProvider() hashing.Provider {
	return r.hp
}

// Settings returns the coin settings transactions are checked against
func (r *BlockRepository) Settings() models.CoinSettings {
	return r.settings
}

// Append validates block against the current tip and the unspent output
// set and commits it. Nothing is written unless every check passes.
func (r *BlockRepository) Append(ctx context.Context, block *models.Block) error {
	if block == nil {
		return &models.ArgumentError{Argument: "block", Message: "block is required"}
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r.appendMu.Lock()
	defer r.appendMu.Unlock()

	logger := r.log.WithFields(logrus.Fields{
		"index": block.Index,
		"hash":  hex.EncodeToString(block.Hash),
	})

	if err := r.checkLinkage(block); err != nil {
		logger.WithError(err).Warn("Rejected block")
		return err
	}

	delta, err := block.Check(r.hp, r.unspent, r.settings)
	if err != nil {
		logger.WithError(err).Warn("Rejected block")
		return err
	}

	for _, tx := range block.Transactions() {
		exists, err := r.txs.Exists(tx.ID)
		if err != nil {
			return fmt.Errorf("failed to check transaction %s: %w", tx.ID, err)
		}
		if exists {
			err := &models.TransactionAssertionError{
				TransactionID: tx.ID,
				Reason:        models.ReasonDuplicateTransaction,
				Detail:        "already committed",
			}
			logger.WithError(err).Warn("Rejected block")
			return err
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	if err := r.commit(block, delta); err != nil {
		logger.WithError(err).Error("Failed to commit block")
		return err
	}

	r.tipMu.Lock()
	r.tip = block
	r.tipMu.Unlock()

	logger.WithFields(logrus.Fields{
		"objects": len(block.Objects),
		"spent":   len(delta.Spent),
		"created": len(delta.Created),
	}).Info("Appended block")
	return nil
}

func (r *BlockRepository) checkLinkage(block *models.Block) error {
	prior := r.Tip()
	if prior == nil {
		if block.Index != models.GenesisIndex {
			return &models.ChainLinkageError{
				Field:    "index",
				Expected: strconv.FormatInt(models.GenesisIndex, 10),
				Got:      strconv.FormatInt(block.Index, 10),
			}
		}
		if !bytes.Equal(block.PreviousHash, models.GenesisPreviousHash) {
			return &models.ChainLinkageError{
				Field:    "previous_hash",
				Expected: hex.EncodeToString(models.GenesisPreviousHash),
				Got:      hex.EncodeToString(block.PreviousHash),
			}
		}
		return nil
	}

	if block.Index != prior.Index+1 {
		return &models.ChainLinkageError{
			Field:    "index",
			Expected: strconv.FormatInt(prior.Index+1, 10),
			Got:      strconv.FormatInt(block.Index, 10),
		}
	}
	if !bytes.Equal(block.PreviousHash, prior.Hash) {
		return &models.ChainLinkageError{
			Field:    "previous_hash",
			Expected: hex.EncodeToString(prior.Hash),
			Got:      hex.EncodeToString(block.PreviousHash),
		}
	}
	return nil
}

func (r *BlockRepository) commit(block *models.Block, delta *models.LedgerDelta) error {
	batch := r.db.NewBatch()
	defer batch.Destroy()

	if err := r.blocks.SaveBatch(batch, block); err != nil {
		return fmt.Errorf("failed to stage block: %w", err)
	}
	if err := r.txs.SaveBatch(batch, block); err != nil {
		return fmt.Errorf("failed to stage transaction index: %w", err)
	}
	if err := r.unspent.ApplyBatch(batch, delta); err != nil {
		return fmt.Errorf("failed to stage unspent outputs: %w", err)
	}
	if err := r.meta.SetTipIndexBatch(batch, block.Index); err != nil {
		return fmt.Errorf("failed to stage tip: %w", err)
	}

	if err := r.db.WriteBatch(batch); err != nil {
		return fmt.Errorf("failed to write block %d: %w", block.Index, err)
	}
	return nil
}

// SeedGenesis appends a genesis block with the given timestamp when the
// log is empty and returns the first block of the log
func (r *BlockRepository) SeedGenesis(ctx context.Context, timestamp int64) (*models.Block, error) {
	if existing, err := r.GetByIndex(models.GenesisIndex); err != nil || existing != nil {
		return existing, err
	}

	genesis := models.NewGenesisBlock(r.hp, timestamp)
	if err := r.Append(ctx, genesis); err != nil {
		// A concurrent seed may have won
		if existing, getErr := r.GetByIndex(models.GenesisIndex); getErr == nil && existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("failed to append genesis: %w", err)
	}
	return genesis, nil
}

// Tip returns the last appended block, or nil for an empty log
func (r *BlockRepository) Tip() *models.Block {
	r.tipMu.RLock()
	defer r.tipMu.RUnlock()
	return r.tip
}

// GetTip returns the last appended block, or nil for an empty log
func (r *BlockRepository) GetTip() (*models.Block, error) {
	return r.Tip(), nil
}

// GetByIndex retrieves a block by index, or nil if absent
func (r *BlockRepository) GetByIndex(index int64) (*models.Block, error) {
	return r.blocks.GetByIndex(index)
}

// GetByHash retrieves a block by hash, or nil if absent
func (r *BlockRepository) GetByHash(hash []byte) (*models.Block, error) {
	return r.blocks.GetByHash(hash)
}

// Blocks returns an iterator over every block in index order. The
// iterator must be closed.
func (r *BlockRepository) Blocks() (*BlockIterator, error) {
	return r.blocks.Iterate(models.GenesisIndex)
}

// BlocksFrom returns an iterator over blocks starting at index
func (r *BlockRepository) BlocksFrom(index int64) (*BlockIterator, error) {
	return r.blocks.Iterate(index)
}

// GetTransaction retrieves a committed transaction and the index of the
// block containing it. tx is nil if the transaction is unknown.
func (r *BlockRepository) GetTransaction(id string) (tx *models.Transaction, blockIndex int64, err error) {
	index, ok, err := r.txs.BlockIndex(id)
	if err != nil || !ok {
		return nil, 0, err
	}

	block, err := r.blocks.GetByIndex(index)
	if err != nil {
		return nil, 0, err
	}
	if block == nil {
		return nil, 0, fmt.Errorf("block %d indexed for transaction %s is missing", index, id)
	}
	for _, t := range block.Transactions() {
		if t.ID == id {
			return t, index, nil
		}
	}
	return nil, 0, fmt.Errorf("transaction %s not found in block %d", id, index)
}

// LookupOutput implements models.OutputView over the committed state
func (r *BlockRepository) LookupOutput(op models.OutPoint) (*models.TransactionOutput, error) {
	return r.unspent.LookupOutput(op)
}

// UnspentByAddress lists the unspent outputs owned by address
func (r *BlockRepository) UnspentByAddress(address []byte) ([]models.UnspentOutput, error) {
	return r.unspent.ByAddress(address)
}

// AllUnspent lists the whole committed unspent output set
func (r *BlockRepository) AllUnspent() ([]models.UnspentOutput, error) {
	return r.unspent.All()
}

// Balance sums the unspent outputs owned by address
func (r *BlockRepository) Balance(address []byte) (int64, error) {
	return r.unspent.Balance(address)
}

// Purge irreversibly deletes every block and all derived state
func (r *BlockRepository) Purge() error {
	r.appendMu.Lock()
	defer r.appendMu.Unlock()

	if err := r.db.DeleteAll(); err != nil {
		return fmt.Errorf("failed to purge block log: %w", err)
	}
	if err := r.meta.SetSchemaVersion(SchemaVersion); err != nil {
		return err
	}

	r.tipMu.Lock()
	r.tip = nil
	r.tipMu.Unlock()

	r.log.Warn("Purged block log")
	return nil
}
