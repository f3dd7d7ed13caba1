package snapshots

import (
	"time"

	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"go.uber.org/zap"
)

// Scheduler materializes daily point-in-time snapshots of the projection.
// Buckets are aligned to UTC midnight; when batches are sparse and more than
// one day has elapsed, the intervening days are backfilled by cloning the
// most recent global snapshot forward one day at a time.
type Scheduler struct {
	logger *zap.Logger

	// latestGlobal is the newest global snapshot written or loaded, used as
	// the backfill template.
	latestGlobal *storage.GlobalStateSnapshot
}

func NewScheduler(latest *storage.GlobalStateSnapshot, logger *zap.Logger) *Scheduler {
	return &Scheduler{logger: logger, latestGlobal: latest}
}

func dayStart(t time.Time) time.Time {
	return t.UTC().Truncate(24 * time.Hour)
}

// Tick runs once per processed batch, after the post-update pass.
func (sch *Scheduler) Tick(s *store.EntityStore, latest events.Block) {
	global := s.Global()
	current := dayStart(latest.Time())

	if global.SnapshotUpdatedTime.IsZero() {
		sch.materialize(s, global, current)
		global.SnapshotUpdatedTime = current
		return
	}
	last := dayStart(global.SnapshotUpdatedTime)
	if !current.After(last) {
		return
	}

	for day := last.Add(24 * time.Hour); day.Before(current); day = day.Add(24 * time.Hour) {
		sch.backfill(s, day)
	}
	sch.materialize(s, global, current)
	global.SnapshotUpdatedTime = current
}

// backfill clones the latest global snapshot into an empty day. Entity-level
// snapshots are not backfilled; a day without batches has no new entity
// state worth duplicating beyond the global rollup.
func (sch *Scheduler) backfill(s *store.EntityStore, day time.Time) {
	if sch.latestGlobal == nil {
		return
	}
	clone := *sch.latestGlobal
	clone.ID = 0
	clone.Timestamp = day
	s.AppendGlobalStateSnapshot(&clone)
	sch.latestGlobal = &clone
	sch.logger.Sugar().Debugw("Backfilled global snapshot", zap.Time("day", day))
}

func (sch *Scheduler) materialize(s *store.EntityStore, global *storage.GlobalState, bucket time.Time) {
	snap := &storage.GlobalStateSnapshot{
		Timestamp:            bucket,
		Height:               global.Height,
		TotalValue:           global.TotalValue,
		AverageBlockTimeMs:   global.AverageBlockTimeMs,
		IdleWorkerShares:     global.IdleWorkerShares,
		IdleWorkerCount:      global.IdleWorkerCount,
		WorkerCount:          global.WorkerCount,
		CumulativeRewards:    global.CumulativeRewards,
		AverageAprMultiplier: global.AverageAprMultiplier,
		AverageApr:           global.AverageApr,
		BudgetPerShare:       global.BudgetPerShare,
		DelegatorCount:       global.DelegatorCount,
	}
	s.AppendGlobalStateSnapshot(snap)
	sch.latestGlobal = snap

	s.ForEachBasePool(func(pool *storage.BasePool) {
		poolSnap := &storage.BasePoolSnapshot{
			PoolID:            pool.ID,
			Timestamp:         bucket,
			Commission:        pool.Commission,
			AprMultiplier:     pool.AprMultiplier,
			TotalShares:       pool.TotalShares,
			TotalValue:        pool.TotalValue,
			SharePrice:        pool.SharePrice,
			FreeValue:         pool.FreeValue,
			ReleasingValue:    pool.ReleasingValue,
			WithdrawingValue:  pool.WithdrawingValue,
			DelegatorCount:    pool.DelegatorCount,
			CumulativeRewards: pool.CumulativeOwnerRewards,
		}
		if sp, ok := s.StakePool(pool.ID); ok {
			poolSnap.WorkerCount = sp.WorkerCount
			poolSnap.IdleWorkerShares = sp.IdleWorkerShares
		}
		s.AppendBasePoolSnapshot(poolSnap)
	})

	s.ForEachAccount(func(account *storage.Account) {
		s.AppendAccountSnapshot(&storage.AccountSnapshot{
			AccountID:      account.ID,
			Timestamp:      bucket,
			StakePoolValue: account.StakePoolValue,
			VaultValue:     account.VaultValue,
			CumulativeRewards: account.CumulativeStakePoolOwnerRewards.
				Add(account.CumulativeVaultOwnerRewards),
		})
	})

	s.ForEachDelegation(func(del *storage.Delegation) {
		s.AppendDelegationSnapshot(&storage.DelegationSnapshot{
			DelegationID: del.ID,
			Timestamp:    bucket,
			Shares:       del.Shares,
			Value:        del.Value,
			Cost:         del.Cost,
		})
	})

	// Worker snapshots only at the midnight materialization itself, never on
	// backfilled days.
	s.ForEachWorker(func(worker *storage.Worker) {
		wSnap := &storage.WorkerSnapshot{
			WorkerID:    worker.ID,
			Timestamp:   bucket,
			SessionID:   worker.SessionID,
			StakePoolID: worker.StakePoolID,
			Shares:      worker.Shares,
		}
		if worker.SessionID != nil {
			if session, ok := s.Session(*worker.SessionID); ok {
				wSnap.State = session.State
				wSnap.V = session.V
				wSnap.PInit = session.PInit
				wSnap.PInstant = session.PInstant
				wSnap.TotalReward = session.TotalReward
				wSnap.Stake = session.Stake
			}
		}
		s.AppendWorkerSnapshot(wSnap)
	})

	sch.logger.Sugar().Infow("Materialized daily snapshot", zap.Time("bucket", bucket))
}
