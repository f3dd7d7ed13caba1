package aggregator

import (
	"testing"
	"time"

	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func block(height uint64, ts uint64) events.Block {
	return events.Block{Height: height, Timestamp: ts}
}

func addStakePool(s *store.EntityStore, id string, accountID string, totalValue int64) *storage.BasePool {
	pool := &storage.BasePool{
		ID:          id,
		Kind:        storage.PoolKindStakePool,
		OwnerID:     "owner-" + id,
		AccountID:   accountID,
		TotalValue:  decimal.NewFromInt(totalValue),
		TotalShares: decimal.NewFromInt(totalValue),
		SharePrice:  decimal.NewFromInt(1),
	}
	s.PutBasePool(pool)
	s.PutStakePool(&storage.StakePool{PoolID: id})
	return pool
}

func addDelegation(s *store.EntityStore, poolID string, accountID string, shares int64) *storage.Delegation {
	del := &storage.Delegation{
		ID:        storage.DelegationID(poolID, accountID),
		AccountID: accountID,
		PoolID:    poolID,
		Shares:    decimal.NewFromInt(shares),
		Value:     decimal.NewFromInt(shares),
	}
	s.PutDelegation(del)
	return del
}

func Test_AverageBlockTime(t *testing.T) {
	a := NewAggregator(nil, zap.NewNop())

	t.Run("Should only record a baseline on the first pass", func(t *testing.T) {
		s := store.NewEntityStore(zap.NewNop())
		a.PostUpdate(s, block(100, 1_000_000))
		global := s.Global()
		assert.Equal(t, int64(0), global.AverageBlockTimeMs)
		assert.Equal(t, uint64(100), global.LastRecordedBlockHeight)
	})

	t.Run("Should skip short spans", func(t *testing.T) {
		s := store.NewEntityStore(zap.NewNop())
		a.PostUpdate(s, block(100, 1_000_000))
		a.PostUpdate(s, block(150, 1_600_000))
		assert.Equal(t, int64(0), s.Global().AverageBlockTimeMs)
	})

	t.Run("Should average over the elapsed span", func(t *testing.T) {
		s := store.NewEntityStore(zap.NewNop())
		a.PostUpdate(s, block(100, 1_000_000))
		// 200 blocks, 12s each.
		a.PostUpdate(s, block(300, 1_000_000+200*12_000))
		assert.Equal(t, int64(12_000), s.Global().AverageBlockTimeMs)
	})
}

func Test_RefreshVaults(t *testing.T) {
	a := NewAggregator(nil, zap.NewNop())
	s := store.NewEntityStore(zap.NewNop())

	// A vault whose pool account delegates 80 into a stake pool and keeps 20
	// free. Stake pool rewards pushed the stake pool price to 1.5.
	pool := addStakePool(s, "1", "sp-acct", 80)
	pool.SharePrice = decimal.NewFromFloat(1.5)
	pool.TotalValue = decimal.NewFromInt(120)

	vault := &storage.BasePool{
		ID:          "2",
		Kind:        storage.PoolKindVault,
		AccountID:   "vault-acct",
		FreeValue:   decimal.NewFromInt(20),
		TotalShares: decimal.NewFromInt(100),
		SharePrice:  decimal.NewFromInt(1),
	}
	s.PutBasePool(vault)
	s.PutVault(&storage.Vault{PoolID: "2"})
	addDelegation(s, "1", "vault-acct", 80)
	addDelegation(s, "2", "carol", 100)

	a.PostUpdate(s, block(1, 12_000))

	// 20 free + 80 shares at price 1.5.
	assert.True(t, vault.TotalValue.Equal(decimal.NewFromInt(140)), vault.TotalValue.String())
	assert.True(t, vault.SharePrice.Equal(decimal.NewFromFloat(1.4)))

	carolDel, _ := s.Delegation(storage.DelegationID("2", "carol"))
	assert.True(t, carolDel.Value.Equal(decimal.NewFromInt(140)))
}

func Test_DelegatorCounts(t *testing.T) {
	a := NewAggregator(nil, zap.NewNop())
	s := store.NewEntityStore(zap.NewNop())

	addStakePool(s, "1", "sp-acct-1", 100)
	addStakePool(s, "2", "sp-acct-2", 50)
	addDelegation(s, "1", "carol", 60)
	addDelegation(s, "1", "dave", 40)
	addDelegation(s, "2", "carol", 50)
	// A fully exited delegation does not count.
	addDelegation(s, "2", "erin", 0)
	// A pool account's position does not count toward the network figure.
	addDelegation(s, "1", "sp-acct-2", 0)

	a.PostUpdate(s, block(1, 12_000))

	pool1, _ := s.BasePool("1")
	pool2, _ := s.BasePool("2")
	assert.Equal(t, 2, pool1.DelegatorCount)
	assert.Equal(t, 1, pool2.DelegatorCount)

	// carol and dave; erin holds nothing.
	assert.Equal(t, 2, s.Global().DelegatorCount)
}

func Test_GlobalAverages(t *testing.T) {
	a := NewAggregator(nil, zap.NewNop())
	s := store.NewEntityStore(zap.NewNop())

	pool1 := addStakePool(s, "1", "sp-acct-1", 100)
	pool1.AprMultiplier = decimal.NewFromFloat(0.5)
	pool2 := addStakePool(s, "2", "sp-acct-2", 300)
	pool2.AprMultiplier = decimal.NewFromFloat(0.1)

	global := s.Global()
	global.AverageBlockTimeMs = 12_000
	global.LastRecordedBlockHeight = 1
	global.LastRecordedBlockTime = time.UnixMilli(12_000).UTC()
	global.BudgetPerBlock = decimal.NewFromInt(720)
	global.TreasuryRatio = decimal.NewFromFloat(0.2)
	global.IdleWorkerShares = decimal.NewFromInt(1_000_000)

	a.PostUpdate(s, block(2, 24_000))

	// (0.5*100 + 0.1*300) / 400 = 0.2
	assert.True(t, global.AverageAprMultiplier.Equal(decimal.NewFromFloat(0.2)), global.AverageAprMultiplier.String())

	// 720 * 0.8 * 2628000 blocks/year / 1e6 idle shares.
	assert.Equal(t, "1513.728", global.BudgetPerShare.String())
	assert.Equal(t, "302.7456", global.AverageApr.String())
}

func Test_BudgetPerShareGuards(t *testing.T) {
	a := NewAggregator(nil, zap.NewNop())

	t.Run("Should stay zero without a block time sample", func(t *testing.T) {
		s := store.NewEntityStore(zap.NewNop())
		s.Global().IdleWorkerShares = decimal.NewFromInt(100)
		a.PostUpdate(s, block(1, 12_000))
		assert.True(t, s.Global().BudgetPerShare.IsZero())
	})
	t.Run("Should stay zero without idle shares", func(t *testing.T) {
		s := store.NewEntityStore(zap.NewNop())
		s.Global().AverageBlockTimeMs = 12_000
		a.PostUpdate(s, block(1, 12_000))
		assert.True(t, s.Global().BudgetPerShare.IsZero())
	})
}

func Test_RefreshAccounts(t *testing.T) {
	a := NewAggregator(nil, zap.NewNop())
	s := store.NewEntityStore(zap.NewNop())

	pool := addStakePool(s, "1", "sp-acct", 100)
	pool.AprMultiplier = decimal.NewFromFloat(0.4)
	nftID := storage.NftID(10, 1)
	del := addDelegation(s, "1", "carol", 100)
	del.DelegationNftID = &nftID
	s.Account("carol")

	a.PostUpdate(s, block(1, 12_000))

	carol := s.Account("carol")
	assert.True(t, carol.StakePoolValue.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, 1, carol.StakePoolNftCount)
	assert.True(t, carol.StakePoolAvgAprMultiplier.Equal(decimal.NewFromFloat(0.4)))
	assert.True(t, carol.VaultValue.IsZero())
}

func Test_ClearWithdrawalDust(t *testing.T) {
	cutoff := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	cfg := &Config{DustCutoff: &cutoff, DustThreshold: decimal.NewFromFloat(0.01)}

	setup := func() (*store.EntityStore, *storage.BasePool, *storage.Delegation) {
		s := store.NewEntityStore(zap.NewNop())
		pool := addStakePool(s, "1", "sp-acct", 100)
		pool.WithdrawingShares = decimal.NewFromFloat(0.005)
		del := addDelegation(s, "1", "carol", 100)
		del.WithdrawingShares = decimal.NewFromFloat(0.005)
		started := cutoff.Add(-30 * 24 * time.Hour)
		del.WithdrawalStartTime = &started
		return s, pool, del
	}

	afterCutoff := block(1, uint64(cutoff.Add(time.Hour).UnixMilli()))

	t.Run("Should clear stale dust after the cutoff", func(t *testing.T) {
		s, pool, del := setup()
		a := NewAggregator(cfg, zap.NewNop())
		a.PostUpdate(s, afterCutoff)

		assert.True(t, del.WithdrawingShares.IsZero())
		assert.Nil(t, del.WithdrawalStartTime)
		assert.True(t, del.Shares.Equal(decimal.RequireFromString("99.995")))
		assert.True(t, pool.TotalShares.Equal(decimal.RequireFromString("99.995")))
		assert.True(t, s.Global().WithdrawalDustCleared)
	})

	t.Run("Should not run before the cutoff", func(t *testing.T) {
		s, _, del := setup()
		a := NewAggregator(cfg, zap.NewNop())
		a.PostUpdate(s, block(1, uint64(cutoff.Add(-time.Hour).UnixMilli())))
		assert.True(t, del.WithdrawingShares.Equal(decimal.NewFromFloat(0.005)))
		assert.False(t, s.Global().WithdrawalDustCleared)
	})

	t.Run("Should skip withdrawals above the threshold", func(t *testing.T) {
		s, _, del := setup()
		del.WithdrawingShares = decimal.NewFromInt(5)
		a := NewAggregator(cfg, zap.NewNop())
		a.PostUpdate(s, afterCutoff)
		assert.True(t, del.WithdrawingShares.Equal(decimal.NewFromInt(5)))
		// The pass still fires and latches.
		assert.True(t, s.Global().WithdrawalDustCleared)
	})

	t.Run("Should skip withdrawals queued after the cutoff", func(t *testing.T) {
		s, _, del := setup()
		queued := cutoff.Add(time.Minute)
		del.WithdrawalStartTime = &queued
		a := NewAggregator(cfg, zap.NewNop())
		a.PostUpdate(s, afterCutoff)
		assert.True(t, del.WithdrawingShares.Equal(decimal.NewFromFloat(0.005)))
	})

	t.Run("Should fire at most once", func(t *testing.T) {
		s, _, _ := setup()
		a := NewAggregator(cfg, zap.NewNop())
		a.PostUpdate(s, afterCutoff)

		// Dust laid down after the latch stays put.
		late := addDelegation(s, "1", "dave", 10)
		late.WithdrawingShares = decimal.NewFromFloat(0.001)
		started := cutoff.Add(-time.Hour)
		late.WithdrawalStartTime = &started
		a.PostUpdate(s, block(2, afterCutoff.Timestamp+12_000))
		assert.True(t, late.WithdrawingShares.Equal(decimal.NewFromFloat(0.001)))
	})

	t.Run("Should stay disabled without a cutoff", func(t *testing.T) {
		s, _, del := setup()
		a := NewAggregator(nil, zap.NewNop())
		a.PostUpdate(s, afterCutoff)
		assert.True(t, del.WithdrawingShares.Equal(decimal.NewFromFloat(0.005)))
		assert.False(t, s.Global().WithdrawalDustCleared)
	})
}
