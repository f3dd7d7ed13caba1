package poolledger

import (
	"testing"
	"time"

	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_UpdateSharePrice(t *testing.T) {
	t.Run("Should derive price from value over shares", func(t *testing.T) {
		pool := &storage.BasePool{
			TotalShares: decimal.NewFromInt(100),
			TotalValue:  decimal.NewFromInt(150),
		}
		UpdateSharePrice(pool)
		assert.True(t, pool.SharePrice.Equal(decimal.NewFromFloat(1.5)))
	})
	t.Run("Should pin an empty pool to price 1 and zero value", func(t *testing.T) {
		pool := &storage.BasePool{
			TotalShares: decimal.Zero,
			TotalValue:  decimal.NewFromInt(42),
		}
		UpdateSharePrice(pool)
		assert.True(t, pool.SharePrice.Equal(decimal.NewFromInt(1)))
		assert.True(t, pool.TotalValue.IsZero())
	})
	t.Run("Should refresh withdrawing value at the new price", func(t *testing.T) {
		pool := &storage.BasePool{
			TotalShares:       decimal.NewFromInt(100),
			TotalValue:        decimal.NewFromInt(200),
			WithdrawingShares: decimal.NewFromInt(10),
		}
		UpdateSharePrice(pool)
		assert.True(t, pool.WithdrawingValue.Equal(decimal.NewFromInt(20)))
	})
}

func Test_UpdateStakePoolAprMultiplier(t *testing.T) {
	t.Run("Should weight idle shares by the kept commission fraction", func(t *testing.T) {
		pool := &storage.BasePool{
			TotalValue: decimal.NewFromInt(1000),
			Commission: decimal.NewFromFloat(0.1),
		}
		sp := &storage.StakePool{IdleWorkerShares: decimal.NewFromInt(500)}
		UpdateStakePoolAprMultiplier(pool, sp)
		// 500 * 0.9 / 1000
		assert.True(t, pool.AprMultiplier.Equal(decimal.NewFromFloat(0.45)), pool.AprMultiplier.String())
	})
	t.Run("Should zero out on an empty pool", func(t *testing.T) {
		pool := &storage.BasePool{TotalValue: decimal.Zero, AprMultiplier: decimal.NewFromInt(9)}
		UpdateStakePoolAprMultiplier(pool, &storage.StakePool{})
		assert.True(t, pool.AprMultiplier.IsZero())
	})
}

func Test_UpdateDelegable(t *testing.T) {
	t.Run("Should be nil without a capacity", func(t *testing.T) {
		pool := &storage.BasePool{}
		sp := &storage.StakePool{}
		UpdateDelegable(pool, sp)
		assert.Nil(t, sp.Delegable)
	})
	t.Run("Should leave headroom plus withdrawing value", func(t *testing.T) {
		capacity := decimal.NewFromInt(1000)
		pool := &storage.BasePool{
			TotalValue:       decimal.NewFromInt(600),
			WithdrawingValue: decimal.NewFromInt(50),
		}
		sp := &storage.StakePool{Capacity: &capacity}
		UpdateDelegable(pool, sp)
		assert.NotNil(t, sp.Delegable)
		assert.True(t, sp.Delegable.Equal(decimal.NewFromInt(450)))
	})
	t.Run("Should clamp to zero over capacity", func(t *testing.T) {
		capacity := decimal.NewFromInt(100)
		pool := &storage.BasePool{TotalValue: decimal.NewFromInt(150)}
		sp := &storage.StakePool{Capacity: &capacity}
		UpdateDelegable(pool, sp)
		assert.True(t, sp.Delegable.IsZero())
	})
}

func Test_CreatePool(t *testing.T) {
	now := time.Unix(1700000000, 0).UTC()
	id := PoolIdentity{Pid: "1", Cid: 10, OwnerID: "alice", PoolAccountID: "pool-acct-1"}

	t.Run("Should create a stake pool specialization", func(t *testing.T) {
		c := CreatePool(storage.PoolKindStakePool, id, now)
		assert.Equal(t, storage.PoolKindStakePool, c.BasePool.Kind)
		assert.NotNil(t, c.StakePool)
		assert.Nil(t, c.Vault)
		assert.True(t, c.BasePool.SharePrice.Equal(decimal.NewFromInt(1)))
	})
	t.Run("Should create a vault specialization with a unit checkpoint", func(t *testing.T) {
		c := CreatePool(storage.PoolKindVault, id, now)
		assert.Nil(t, c.StakePool)
		assert.NotNil(t, c.Vault)
		assert.True(t, c.Vault.LastSharePriceCheckpoint.Equal(decimal.NewFromInt(1)))
	})
}

func Test_ResetQueue(t *testing.T) {
	l := zap.NewNop()

	t.Run("Should reprice non-empty pools immediately", func(t *testing.T) {
		q := NewResetQueue()
		pool := &storage.BasePool{
			ID:          "1",
			TotalShares: decimal.NewFromInt(10),
			TotalValue:  decimal.NewFromInt(20),
		}
		q.Reprice(pool)
		assert.Equal(t, 0, q.Len())
		assert.True(t, pool.SharePrice.Equal(decimal.NewFromInt(2)))
	})

	t.Run("Should defer the reset of an emptied pool to the flush", func(t *testing.T) {
		s := store.NewEntityStore(l)
		pool := &storage.BasePool{
			ID:         "1",
			Kind:       storage.PoolKindStakePool,
			SharePrice: decimal.NewFromInt(2),
			TotalValue: decimal.NewFromInt(20),
		}
		s.PutBasePool(pool)
		s.PutStakePool(&storage.StakePool{PoolID: "1"})

		q := NewResetQueue()
		q.Reprice(pool)
		assert.Equal(t, 1, q.Len())
		// Later events in the same block still observe the pre-reset price.
		assert.True(t, pool.SharePrice.Equal(decimal.NewFromInt(2)))

		q.Flush(s)
		assert.Equal(t, 0, q.Len())
		assert.True(t, pool.SharePrice.Equal(decimal.NewFromInt(1)))
		assert.True(t, pool.TotalValue.IsZero())
	})

	t.Run("Should queue each pool once", func(t *testing.T) {
		q := NewResetQueue()
		pool := &storage.BasePool{ID: "1"}
		q.Reprice(pool)
		q.Reprice(pool)
		assert.Equal(t, 1, q.Len())
	})
}
