package storage

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thanhnp/coin-ledger/internal/cryptoutil"
	"github.com/thanhnp/coin-ledger/internal/hashing"
	"github.com/thanhnp/coin-ledger/internal/models"
	"github.com/thanhnp/coin-ledger/internal/txbuilder"
	"github.com/thanhnp/coin-ledger/pkg/semver"
)

var testSettings = models.CoinSettings{MinimumFee: 1, MaximumFee: 10, MiningReward: 50}

const genesisTime = 1465154705

func newTestRepo(t *testing.T) (*BlockRepository, *test.Hook) {
	t.Helper()
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	logger, hook := test.NewNullLogger()
	repo, err := Open(db, hashing.Default(), testSettings, logger)
	require.NoError(t, err)
	return repo, hook
}

type account struct {
	secret []byte
	keys   cryptoutil.KeyPair
}

func newAccount(t *testing.T, seed string) account {
	t.Helper()
	secret := cryptoutil.DeriveSecret(seed)
	kp, err := cryptoutil.KeyPairFromSecret(secret)
	require.NoError(t, err)
	return account{secret: secret, keys: kp}
}

func (a account) address() []byte {
	return []byte(a.keys.PublicKey)
}

func nextBlock(t *testing.T, repo *BlockRepository, objects ...models.BlockObject) *models.Block {
	t.Helper()
	tip := repo.Tip()
	require.NotNil(t, tip)
	if objects == nil {
		objects = []models.BlockObject{}
	}
	b := &models.Block{
		Index:        tip.Index + 1,
		PreviousHash: tip.Hash,
		Timestamp:    tip.Timestamp + 10,
		Objects:      objects,
	}
	b.Seal(repo.HashProvider())
	return b
}

func rewardTx(hp hashing.Provider, id string, to []byte, amount int64) *models.Transaction {
	tx := &models.Transaction{
		ID:   id,
		Type: models.TransactionReward,
		Data: &models.TransactionData{Outputs: []models.TransactionOutput{{Address: to, Amount: amount}}},
	}
	tx.Seal(hp)
	return tx
}

func TestSeedGenesis(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()

	tip, err := repo.GetTip()
	require.NoError(t, err)
	assert.Nil(t, tip)

	genesis, err := repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)
	assert.Equal(t, models.GenesisIndex, genesis.Index)
	assert.Equal(t, models.GenesisPreviousHash, genesis.PreviousHash)

	again, err := repo.SeedGenesis(ctx, genesisTime+1)
	require.NoError(t, err)
	assert.Equal(t, genesis.Hash, again.Hash)

	stored, err := repo.GetByHash(genesis.Hash)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, genesis.Index, stored.Index)
	assert.Equal(t, genesis.Hash, stored.ExpectedHash(repo.HashProvider()))
}

func TestAppendRejectsNonGenesisOnEmptyLog(t *testing.T) {
	repo, _ := newTestRepo(t)
	hp := repo.HashProvider()

	wrongIndex := &models.Block{Index: 2, PreviousHash: []byte{0}, Objects: []models.BlockObject{}}
	wrongIndex.Seal(hp)
	var linkErr *models.ChainLinkageError
	require.True(t, errors.As(repo.Append(context.Background(), wrongIndex), &linkErr))
	assert.Equal(t, "index", linkErr.Field)

	wrongPrev := &models.Block{Index: 1, PreviousHash: []byte{1}, Objects: []models.BlockObject{}}
	wrongPrev.Seal(hp)
	require.True(t, errors.As(repo.Append(context.Background(), wrongPrev), &linkErr))
	assert.Equal(t, "previous_hash", linkErr.Field)

	// Hashed at index 1 instead of 0
	badGenesis := &models.Block{Index: 1, PreviousHash: []byte{0}, Timestamp: genesisTime, Objects: []models.BlockObject{}}
	badGenesis.Hash = badGenesis.ComputeHash(hp)
	var mismatch *models.HashMismatchError
	assert.True(t, errors.As(repo.Append(context.Background(), badGenesis), &mismatch))

	assert.Nil(t, repo.Tip())
}

func TestAppendSpendAndQueries(t *testing.T) {
	repo, hook := newTestRepo(t)
	ctx := context.Background()
	hp := repo.HashProvider()
	alice := newAccount(t, "alice")
	bob := newAccount(t, "bob")

	_, err := repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)

	mint := rewardTx(hp, "mint", alice.address(), 50)
	require.NoError(t, repo.Append(ctx, nextBlock(t, repo, mint)))
	assert.Equal(t, "Appended block", hook.LastEntry().Message)
	assert.Equal(t, int64(2), hook.LastEntry().Data["index"])

	balance, err := repo.Balance(alice.address())
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)

	utxo, err := repo.UnspentByAddress(alice.address())
	require.NoError(t, err)
	require.Len(t, utxo, 1)

	pay, err := txbuilder.New(hp).From(utxo).To(bob.address(), 30).Fee(2).Sign(alice.secret).Build()
	require.NoError(t, err)
	pay.Seal(hp)
	require.NoError(t, repo.Append(ctx, nextBlock(t, repo, pay)))

	aliceBalance, err := repo.Balance(alice.address())
	require.NoError(t, err)
	bobBalance, err := repo.Balance(bob.address())
	require.NoError(t, err)
	assert.Equal(t, int64(18), aliceBalance)
	assert.Equal(t, int64(30), bobBalance)

	spent, err := repo.LookupOutput(models.OutPoint{TransactionID: "mint", Index: 0})
	require.NoError(t, err)
	assert.Nil(t, spent)

	all, err := repo.AllUnspent()
	require.NoError(t, err)
	require.Len(t, all, 2)
	for _, u := range all {
		assert.Equal(t, pay.ID, u.TransactionID)
	}

	got, blockIndex, err := repo.GetTransaction(pay.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, int64(3), blockIndex)
	assert.True(t, pay.Equal(got))

	missing, _, err := repo.GetTransaction("nope")
	require.NoError(t, err)
	assert.Nil(t, missing)

	empty, err := repo.UnspentByAddress([]byte("nobody"))
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestAppendRejectionsLeaveStateUnchanged(t *testing.T) {
	repo, hook := newTestRepo(t)
	ctx := context.Background()
	hp := repo.HashProvider()
	alice := newAccount(t, "alice")

	_, err := repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, nextBlock(t, repo, rewardTx(hp, "mint", alice.address(), 50))))
	tip := repo.Tip()

	t.Run("index gap", func(t *testing.T) {
		b := nextBlock(t, repo)
		b.Index++
		b.Seal(hp)
		var linkErr *models.ChainLinkageError
		require.True(t, errors.As(repo.Append(ctx, b), &linkErr))
		assert.Equal(t, "index", linkErr.Field)
	})

	t.Run("wrong previous hash", func(t *testing.T) {
		b := nextBlock(t, repo)
		b.PreviousHash = []byte{1, 2, 3}
		b.Seal(hp)
		var linkErr *models.ChainLinkageError
		require.True(t, errors.As(repo.Append(ctx, b), &linkErr))
		assert.Equal(t, "previous_hash", linkErr.Field)
	})

	t.Run("tampered hash", func(t *testing.T) {
		b := nextBlock(t, repo)
		b.Timestamp++
		var mismatch *models.HashMismatchError
		assert.True(t, errors.As(repo.Append(ctx, b), &mismatch))
		assert.Equal(t, logrus.WarnLevel, hook.LastEntry().Level)
	})

	t.Run("committed transaction replayed", func(t *testing.T) {
		var assertion *models.TransactionAssertionError
		err := repo.Append(ctx, nextBlock(t, repo, rewardTx(hp, "mint", alice.address(), 50)))
		require.True(t, errors.As(err, &assertion))
		assert.Equal(t, models.ReasonDuplicateTransaction, assertion.Reason)
	})

	t.Run("reward above limit", func(t *testing.T) {
		var assertion *models.TransactionAssertionError
		err := repo.Append(ctx, nextBlock(t, repo, rewardTx(hp, "big", alice.address(), 51)))
		require.True(t, errors.As(err, &assertion))
		assert.Equal(t, models.ReasonRewardExceeded, assertion.Reason)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		assert.ErrorIs(t, repo.Append(cancelled, nextBlock(t, repo)), context.Canceled)
	})

	assert.Equal(t, tip.Hash, repo.Tip().Hash)
	next, err := repo.GetByIndex(tip.Index + 1)
	require.NoError(t, err)
	assert.Nil(t, next)

	balance, err := repo.Balance(alice.address())
	require.NoError(t, err)
	assert.Equal(t, int64(50), balance)
}

func TestChainInvariant(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	hp := repo.HashProvider()

	_, err := repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		require.NoError(t, repo.Append(ctx, nextBlock(t, repo)))
	}

	iter, err := repo.Blocks()
	require.NoError(t, err)

	// Appends after the iterator is created are not visible through it
	require.NoError(t, repo.Append(ctx, nextBlock(t, repo)))

	var prev *models.Block
	count := 0
	for iter.Next() {
		b := iter.Block()
		assert.Equal(t, b.Hash, b.ExpectedHash(hp))
		if prev == nil {
			assert.True(t, b.IsGenesis())
		} else {
			assert.Equal(t, prev.Index+1, b.Index)
			assert.Equal(t, prev.Hash, b.PreviousHash)
		}
		prev = b
		count++
	}
	require.NoError(t, iter.Err())
	require.NoError(t, iter.Close())
	assert.Equal(t, 6, count)

	from, err := repo.BlocksFrom(4)
	require.NoError(t, err)
	defer from.Close()
	require.True(t, from.Next())
	assert.Equal(t, int64(4), from.Block().Index)
}

func TestConcurrentAppendsAtSameIndex(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	hp := repo.HashProvider()

	_, err := repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)

	a := nextBlock(t, repo, rewardTx(hp, "a", []byte("miner-a"), 50))
	b := nextBlock(t, repo, rewardTx(hp, "b", []byte("miner-b"), 50))

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, block := range []*models.Block{a, b} {
		wg.Add(1)
		go func(i int, block *models.Block) {
			defer wg.Done()
			errs[i] = repo.Append(ctx, block)
		}(i, block)
	}
	wg.Wait()

	var succeeded, linkage int
	for _, err := range errs {
		var linkErr *models.ChainLinkageError
		switch {
		case err == nil:
			succeeded++
		case errors.As(err, &linkErr):
			linkage++
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, linkage)
	assert.Equal(t, int64(2), repo.Tip().Index)
}

func TestPurge(t *testing.T) {
	repo, _ := newTestRepo(t)
	ctx := context.Background()
	alice := newAccount(t, "alice")

	_, err := repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, nextBlock(t, repo, rewardTx(repo.HashProvider(), "mint", alice.address(), 50))))

	require.NoError(t, repo.Purge())
	assert.Nil(t, repo.Tip())

	genesis, err := repo.GetByIndex(models.GenesisIndex)
	require.NoError(t, err)
	assert.Nil(t, genesis)

	balance, err := repo.Balance(alice.address())
	require.NoError(t, err)
	assert.Zero(t, balance)

	tx, _, err := repo.GetTransaction("mint")
	require.NoError(t, err)
	assert.Nil(t, tx)

	_, err = repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)
	assert.Equal(t, models.GenesisIndex, repo.Tip().Index)
}

func TestReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()
	logger, _ := test.NewNullLogger()

	db, err := NewPebbleDB(dir)
	require.NoError(t, err)
	repo, err := Open(db, hashing.Default(), testSettings, logger)
	require.NoError(t, err)
	_, err = repo.SeedGenesis(ctx, genesisTime)
	require.NoError(t, err)
	require.NoError(t, repo.Append(ctx, nextBlock(t, repo)))
	tip := repo.Tip()
	require.NoError(t, db.Close())

	db, err = NewPebbleDB(dir)
	require.NoError(t, err)
	defer db.Close()
	reopened, err := Open(db, hashing.Default(), testSettings, logger)
	require.NoError(t, err)
	require.NotNil(t, reopened.Tip())
	assert.Equal(t, tip.Hash, reopened.Tip().Hash)
	require.NoError(t, reopened.Append(ctx, nextBlock(t, reopened)))
}

func TestOpenRejectsNewerSchema(t *testing.T) {
	db, err := NewMemPebbleDB()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, NewMetaStore(db).SetSchemaVersion(semver.MustParse("2.0.0")))
	_, err = Open(db, hashing.Default(), testSettings, nil)
	assert.Error(t, err)
}
