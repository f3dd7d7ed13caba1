package aggregator

import (
	"time"

	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/numeric"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/poolledger"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// blockTimeSampleInterval spaces out average-block-time samples; short spans
// are too noisy to be worth recording.
const blockTimeSampleInterval = 100

var msPerYear = decimal.NewFromInt(365 * 24 * 3600 * 1000)

type Config struct {
	// DustCutoff gates the one-time dust compaction; nil leaves the feature
	// disabled.
	DustCutoff    *time.Time
	DustThreshold decimal.Decimal
}

// Aggregator recomputes the network-wide rollups once per processed batch,
// after all event handlers have run.
type Aggregator struct {
	logger *zap.Logger
	cfg    *Config
}

func NewAggregator(cfg *Config, logger *zap.Logger) *Aggregator {
	if cfg == nil {
		cfg = &Config{}
	}
	return &Aggregator{logger: logger, cfg: cfg}
}

// PostUpdate runs the whole post-batch pass. latest is the block tag of the
// final event in the batch.
func (a *Aggregator) PostUpdate(s *store.EntityStore, latest events.Block) {
	global := s.Global()

	a.updateAverageBlockTime(global, latest)
	a.clearWithdrawalDust(s, latest.Time())

	a.refreshStakePoolDelegations(s)
	a.refreshVaults(s)
	a.refreshDelegatorCounts(s)
	poolAccounts := a.refreshAccounts(s)
	a.refreshVaultAprMultipliers(s)
	a.refreshGlobalAverages(s, global, poolAccounts)
}

func (a *Aggregator) updateAverageBlockTime(global *storage.GlobalState, latest events.Block) {
	blockTime := latest.Time()
	if global.LastRecordedBlockTime.IsZero() {
		global.LastRecordedBlockHeight = latest.Height
		global.LastRecordedBlockTime = blockTime
		return
	}
	elapsed := latest.Height - global.LastRecordedBlockHeight
	if elapsed < blockTimeSampleInterval {
		return
	}
	global.AverageBlockTimeMs = blockTime.Sub(global.LastRecordedBlockTime).Milliseconds() / int64(elapsed)
	global.LastRecordedBlockHeight = latest.Height
	global.LastRecordedBlockTime = blockTime
}

// refreshStakePoolDelegations recomputes value and withdrawing value for
// every delegation into a stake pool.
func (a *Aggregator) refreshStakePoolDelegations(s *store.EntityStore) {
	s.ForEachDelegation(func(del *storage.Delegation) {
		pool, ok := s.BasePool(del.PoolID)
		if !ok || pool.Kind != storage.PoolKindStakePool {
			return
		}
		del.Value = numeric.RoundBalance(del.Shares.Mul(pool.SharePrice))
		del.WithdrawingValue = numeric.RoundBalance(del.WithdrawingShares.Mul(pool.SharePrice))
		s.MarkDelegationDirty(del.ID)
	})
}

// refreshVaults folds each vault's stake-pool positions back into its own
// totalValue and reprices it, then refreshes the values of delegations held
// in the vault.
func (a *Aggregator) refreshVaults(s *store.EntityStore) {
	vaultValues := make(map[string]decimal.Decimal)
	s.ForEachBasePool(func(pool *storage.BasePool) {
		if pool.Kind == storage.PoolKindVault {
			vaultValues[pool.AccountID] = pool.FreeValue
		}
	})
	if len(vaultValues) == 0 {
		return
	}
	s.ForEachDelegation(func(del *storage.Delegation) {
		if total, ok := vaultValues[del.AccountID]; ok {
			vaultValues[del.AccountID] = total.Add(del.Value)
		}
	})
	s.ForEachBasePool(func(pool *storage.BasePool) {
		if pool.Kind != storage.PoolKindVault {
			return
		}
		pool.TotalValue = vaultValues[pool.AccountID]
		poolledger.UpdateSharePrice(pool)
		s.MarkBasePoolDirty(pool.ID)
	})
	s.ForEachDelegation(func(del *storage.Delegation) {
		pool, ok := s.BasePool(del.PoolID)
		if !ok || pool.Kind != storage.PoolKindVault {
			return
		}
		del.Value = numeric.RoundBalance(del.Shares.Mul(pool.SharePrice))
		del.WithdrawingValue = numeric.RoundBalance(del.WithdrawingShares.Mul(pool.SharePrice))
		s.MarkDelegationDirty(del.ID)
	})
}

func (a *Aggregator) refreshDelegatorCounts(s *store.EntityStore) {
	counts := make(map[string]int)
	s.ForEachDelegation(func(del *storage.Delegation) {
		if del.Shares.IsPositive() {
			counts[del.PoolID]++
		}
	})
	s.ForEachBasePool(func(pool *storage.BasePool) {
		if pool.DelegatorCount != counts[pool.ID] {
			pool.DelegatorCount = counts[pool.ID]
			s.MarkBasePoolDirty(pool.ID)
		}
	})
}

type accountAggregates struct {
	stakePoolValue    decimal.Decimal
	stakePoolNftCount int
	stakePoolAprSum   decimal.Decimal
	vaultValue        decimal.Decimal
	vaultNftCount     int
	vaultAprSum       decimal.Decimal
}

// refreshAccounts recomputes per-account position aggregates and the
// value-weighted average APR multipliers. Returns the set of pool accounts,
// which the delegator count must exclude.
func (a *Aggregator) refreshAccounts(s *store.EntityStore) map[string]struct{} {
	poolAccounts := make(map[string]struct{})
	s.ForEachBasePool(func(pool *storage.BasePool) {
		poolAccounts[pool.AccountID] = struct{}{}
	})

	aggs := make(map[string]*accountAggregates)
	agg := func(id string) *accountAggregates {
		if v, ok := aggs[id]; ok {
			return v
		}
		v := &accountAggregates{}
		aggs[id] = v
		return v
	}

	s.ForEachDelegation(func(del *storage.Delegation) {
		pool, ok := s.BasePool(del.PoolID)
		if !ok {
			return
		}
		v := agg(del.AccountID)
		switch pool.Kind {
		case storage.PoolKindStakePool:
			v.stakePoolValue = v.stakePoolValue.Add(del.Value)
			v.stakePoolAprSum = v.stakePoolAprSum.Add(pool.AprMultiplier.Mul(del.Value))
			if del.DelegationNftID != nil {
				v.stakePoolNftCount++
			}
		case storage.PoolKindVault:
			v.vaultValue = v.vaultValue.Add(del.Value)
			v.vaultAprSum = v.vaultAprSum.Add(pool.AprMultiplier.Mul(del.Value))
			if del.DelegationNftID != nil {
				v.vaultNftCount++
			}
		}
	})

	s.ForEachAccount(func(account *storage.Account) {
		v, ok := aggs[account.ID]
		if !ok {
			v = &accountAggregates{}
		}
		account.StakePoolValue = v.stakePoolValue
		account.StakePoolNftCount = v.stakePoolNftCount
		account.StakePoolAvgAprMultiplier = numeric.DivSafe(v.stakePoolAprSum, v.stakePoolValue)
		account.VaultValue = v.vaultValue
		account.VaultNftCount = v.vaultNftCount
		account.VaultAvgAprMultiplier = numeric.DivSafe(v.vaultAprSum, v.vaultValue)
		s.MarkAccountDirty(account.ID)
	})

	return poolAccounts
}

func (a *Aggregator) refreshVaultAprMultipliers(s *store.EntityStore) {
	s.ForEachBasePool(func(pool *storage.BasePool) {
		if pool.Kind != storage.PoolKindVault {
			return
		}
		poolledger.UpdateVaultAprMultiplier(pool, s.Account(pool.AccountID))
		s.MarkBasePoolDirty(pool.ID)
	})
}

func (a *Aggregator) refreshGlobalAverages(s *store.EntityStore, global *storage.GlobalState, poolAccounts map[string]struct{}) {
	weighted := decimal.Zero
	totalWeight := decimal.Zero
	s.ForEachBasePool(func(pool *storage.BasePool) {
		if pool.Kind != storage.PoolKindStakePool {
			return
		}
		weighted = weighted.Add(pool.AprMultiplier.Mul(pool.TotalValue))
		totalWeight = totalWeight.Add(pool.TotalValue)
	})
	global.AverageAprMultiplier = numeric.DivSafe(weighted, totalWeight)

	global.BudgetPerShare = decimal.Zero
	if global.AverageBlockTimeMs > 0 && global.IdleWorkerShares.IsPositive() {
		blocksPerYear := msPerYear.DivRound(decimal.NewFromInt(global.AverageBlockTimeMs), numeric.BalanceScale)
		annualBudget := global.BudgetPerBlock.
			Mul(decimal.NewFromInt(1).Sub(global.TreasuryRatio)).
			Mul(blocksPerYear)
		global.BudgetPerShare = annualBudget.DivRound(global.IdleWorkerShares, numeric.BalanceScale)
	}
	global.AverageApr = numeric.RoundBalance(global.AverageAprMultiplier.Mul(global.BudgetPerShare))

	netValue := make(map[string]decimal.Decimal)
	s.ForEachDelegation(func(del *storage.Delegation) {
		netValue[del.AccountID] = netValue[del.AccountID].Add(del.Value)
	})
	count := 0
	for accountID, value := range netValue {
		if _, isPool := poolAccounts[accountID]; isPool {
			continue
		}
		if value.IsPositive() {
			count++
		}
	}
	global.DelegatorCount = count
}
