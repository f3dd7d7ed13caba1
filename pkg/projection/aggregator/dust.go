package aggregator

import (
	"time"

	"github.com/poolhouse-labs/stakewatch/pkg/projection/poolledger"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"go.uber.org/zap"
)

// clearWithdrawalDust runs the one-time compaction of negligible stale
// pending withdrawals. It fires at most once per projection lifetime: the
// first post-update pass whose block time has passed the configured cutoff
// clears qualifying withdrawals and sets the flag permanently. It runs before
// any value-dependent recomputation so the repriced pools feed the same
// pass's rollups.
func (a *Aggregator) clearWithdrawalDust(s *store.EntityStore, blockTime time.Time) {
	global := s.Global()
	if global.WithdrawalDustCleared {
		return
	}
	if a.cfg.DustCutoff == nil || blockTime.Before(*a.cfg.DustCutoff) {
		return
	}

	cleared := 0
	s.ForEachDelegation(func(del *storage.Delegation) {
		if !del.WithdrawingShares.IsPositive() {
			return
		}
		if del.WithdrawingShares.GreaterThan(a.cfg.DustThreshold) {
			return
		}
		if del.WithdrawalStartTime == nil || !del.WithdrawalStartTime.Before(*a.cfg.DustCutoff) {
			return
		}
		pool, ok := s.BasePool(del.PoolID)
		if !ok {
			return
		}

		dust := del.WithdrawingShares
		del.Shares = del.Shares.Sub(dust)
		del.WithdrawingShares = del.WithdrawingShares.Sub(dust)
		del.WithdrawalStartTime = nil
		del.WithdrawalNftID = nil
		pool.TotalShares = pool.TotalShares.Sub(dust)
		pool.WithdrawingShares = pool.WithdrawingShares.Sub(dust)
		poolledger.UpdateSharePrice(pool)
		if sp, ok := s.StakePool(pool.ID); ok {
			poolledger.UpdateDelegable(pool, sp)
		}
		s.MarkDelegationDirty(del.ID)
		s.MarkBasePoolDirty(pool.ID)
		cleared++
	})

	global.WithdrawalDustCleared = true
	a.logger.Sugar().Infow("Cleared withdrawal dust",
		zap.Int("delegations", cleared),
		zap.Time("cutoff", *a.cfg.DustCutoff),
	)
}
