package poolledger

import (
	"time"

	"github.com/poolhouse-labs/stakewatch/pkg/numeric"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
)

// UpdateSharePrice recomputes sharePrice and withdrawingValue. Must run after
// any change to totalShares or totalValue. A pool with zero shares holds no
// value: price pins to exactly 1 and totalValue drops to 0 rather than
// dividing by zero.
func UpdateSharePrice(pool *storage.BasePool) {
	if pool.TotalShares.IsZero() {
		pool.SharePrice = decimal.NewFromInt(1)
		pool.TotalValue = decimal.Zero
	} else {
		pool.SharePrice = pool.TotalValue.DivRound(pool.TotalShares, numeric.BalanceScale)
	}
	pool.WithdrawingValue = numeric.RoundBalance(pool.WithdrawingShares.Mul(pool.SharePrice))
}

func UpdateStakePoolAprMultiplier(pool *storage.BasePool, stakePool *storage.StakePool) {
	if pool.TotalValue.IsZero() {
		pool.AprMultiplier = decimal.Zero
		return
	}
	oneMinusCommission := decimal.NewFromInt(1).Sub(pool.Commission)
	pool.AprMultiplier = stakePool.IdleWorkerShares.
		Mul(oneMinusCommission).
		DivRound(pool.TotalValue, numeric.BalanceScale)
}

func UpdateVaultAprMultiplier(pool *storage.BasePool, owner *storage.Account) {
	if pool.TotalValue.IsZero() {
		pool.AprMultiplier = decimal.Zero
		return
	}
	oneMinusCommission := decimal.NewFromInt(1).Sub(pool.Commission)
	pool.AprMultiplier = owner.StakePoolAvgAprMultiplier.
		Mul(owner.StakePoolValue).
		DivRound(pool.TotalValue, numeric.BalanceScale).
		Mul(oneMinusCommission).
		Round(numeric.BalanceScale)
}

// UpdateDelegable refreshes the derived delegable headroom. A pool without a
// capacity is unlimited and carries no delegable figure.
func UpdateDelegable(pool *storage.BasePool, stakePool *storage.StakePool) {
	if stakePool.Capacity == nil {
		stakePool.Delegable = nil
		return
	}
	var delegable decimal.Decimal
	if pool.TotalValue.GreaterThan(*stakePool.Capacity) {
		delegable = decimal.Zero
	} else {
		delegable = stakePool.Capacity.Sub(pool.TotalValue).Add(pool.WithdrawingValue)
	}
	stakePool.Delegable = &delegable
}

// Creation is the tagged result of CreatePool: exactly one of StakePool or
// Vault is set, matching the BasePool's kind.
type Creation struct {
	BasePool  *storage.BasePool
	StakePool *storage.StakePool
	Vault     *storage.Vault
}

type PoolIdentity struct {
	Pid           string
	Cid           uint32
	OwnerID       string
	PoolAccountID string
}

// CreatePool initializes a BasePool and its specialization with zero
// balances, sharePrice 1 and commission 0. The caller inserts the result into
// the entity store.
func CreatePool(kind storage.PoolKind, id PoolIdentity, now time.Time) Creation {
	base := &storage.BasePool{
		ID:         id.Pid,
		Kind:       kind,
		Cid:        id.Cid,
		OwnerID:    id.OwnerID,
		AccountID:  id.PoolAccountID,
		SharePrice: decimal.NewFromInt(1),
		CreatedAt:  now,
	}
	c := Creation{BasePool: base}
	switch kind {
	case storage.PoolKindStakePool:
		c.StakePool = &storage.StakePool{PoolID: id.Pid, CreatedAt: now}
	case storage.PoolKindVault:
		c.Vault = &storage.Vault{
			PoolID:                   id.Pid,
			LastSharePriceCheckpoint: decimal.NewFromInt(1),
			CreatedAt:                now,
		}
	}
	return c
}

// Insert places a creation into the entity store.
func (c Creation) Insert(s *store.EntityStore) {
	s.PutBasePool(c.BasePool)
	if c.StakePool != nil {
		s.PutStakePool(c.StakePool)
	}
	if c.Vault != nil {
		s.PutVault(c.Vault)
	}
}

// ResetQueue implements the deferred share-price reset protocol. A withdrawal
// that drives totalShares to exactly zero within a block queues the pool here
// instead of repricing it; the queue is flushed once every event for that
// block height has been dispatched. Later events in the same block therefore
// observe the pre-reset price, while subsequent blocks see a consistent
// post-reset price.
type ResetQueue struct {
	pids []string
	seen map[string]struct{}
}

func NewResetQueue() *ResetQueue {
	return &ResetQueue{seen: make(map[string]struct{})}
}

// Reprice either recomputes the share price immediately or, when totalShares
// has reached exactly zero, defers the reset to the block boundary.
func (q *ResetQueue) Reprice(pool *storage.BasePool) {
	if pool.TotalShares.IsZero() {
		q.enqueue(pool.ID)
		return
	}
	UpdateSharePrice(pool)
}

func (q *ResetQueue) enqueue(pid string) {
	if _, ok := q.seen[pid]; ok {
		return
	}
	q.seen[pid] = struct{}{}
	q.pids = append(q.pids, pid)
}

func (q *ResetQueue) Len() int {
	return len(q.pids)
}

// Flush reprices every queued pool and empties the queue. Pools that gained
// shares again before the boundary reprice normally.
func (q *ResetQueue) Flush(s *store.EntityStore) {
	for _, pid := range q.pids {
		pool, ok := s.BasePool(pid)
		if !ok {
			continue
		}
		UpdateSharePrice(pool)
		if sp, ok := s.StakePool(pid); ok {
			UpdateStakePoolAprMultiplier(pool, sp)
			UpdateDelegable(pool, sp)
		}
	}
	q.pids = nil
	q.seen = make(map[string]struct{})
}
