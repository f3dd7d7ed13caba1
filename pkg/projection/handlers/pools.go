package handlers

import (
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/numeric"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/poolledger"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
)

func (d *Dispatcher) handleStakePoolCreated(ev *events.Event, args *events.StakePoolCreated) error {
	d.store.Account(args.OwnerID)
	d.store.Account(args.PoolAccountID)
	creation := poolledger.CreatePool(storage.PoolKindStakePool, poolledger.PoolIdentity{
		Pid:           args.Pid,
		Cid:           args.Cid,
		OwnerID:       args.OwnerID,
		PoolAccountID: args.PoolAccountID,
	}, ev.Block.Time())
	creation.Insert(d.store)
	return nil
}

func (d *Dispatcher) handleVaultCreated(ev *events.Event, args *events.VaultCreated) error {
	d.store.Account(args.OwnerID)
	d.store.Account(args.PoolAccountID)
	creation := poolledger.CreatePool(storage.PoolKindVault, poolledger.PoolIdentity{
		Pid:           args.Pid,
		Cid:           args.Cid,
		OwnerID:       args.OwnerID,
		PoolAccountID: args.PoolAccountID,
	}, ev.Block.Time())
	creation.Insert(d.store)
	return nil
}

func (d *Dispatcher) handleStakePoolCommissionSet(args *events.StakePoolCommissionSet) error {
	pool, sp, err := d.stakePool(args.Pid)
	if err != nil {
		return err
	}
	pool.Commission = numeric.FromBits(args.Commission)
	poolledger.UpdateStakePoolAprMultiplier(pool, sp)
	return nil
}

func (d *Dispatcher) handleVaultCommissionSet(args *events.VaultCommissionSet) error {
	pool, _, err := d.vault(args.Pid)
	if err != nil {
		return err
	}
	pool.Commission = numeric.FromBits(args.Commission)
	poolAccount := d.store.Account(pool.AccountID)
	poolledger.UpdateVaultAprMultiplier(pool, poolAccount)
	return nil
}

func (d *Dispatcher) handleStakePoolCapacitySet(args *events.StakePoolCapacitySet) error {
	pool, sp, err := d.stakePool(args.Pid)
	if err != nil {
		return err
	}
	capacity := numeric.FromPlank(args.Capacity)
	sp.Capacity = &capacity
	poolledger.UpdateDelegable(pool, sp)
	return nil
}

func (d *Dispatcher) handleStakePoolWorkerAdded(args *events.StakePoolWorkerAdded) error {
	_, sp, err := d.stakePool(args.Pid)
	if err != nil {
		return err
	}
	worker, err := d.worker(args.WorkerID)
	if err != nil {
		return err
	}
	pid := args.Pid
	worker.StakePoolID = &pid
	sp.WorkerCount++
	d.store.Global().WorkerCount++
	return nil
}

func (d *Dispatcher) handleStakePoolWorkerRemoved(args *events.StakePoolWorkerRemoved) error {
	_, sp, err := d.stakePool(args.Pid)
	if err != nil {
		return err
	}
	worker, err := d.worker(args.WorkerID)
	if err != nil {
		return err
	}
	worker.StakePoolID = nil
	sp.WorkerCount--
	d.store.Global().WorkerCount--
	return nil
}

func (d *Dispatcher) handleWorkingStarted(args *events.WorkingStarted) error {
	pool, _, err := d.stakePool(args.Pid)
	if err != nil {
		return err
	}
	worker, err := d.worker(args.WorkerID)
	if err != nil {
		return err
	}
	if worker.SessionID == nil {
		return noSessionErr(args.WorkerID)
	}
	session, err := d.session(*worker.SessionID)
	if err != nil {
		return err
	}
	amount := numeric.FromPlank(args.Amount)
	pool.FreeValue = pool.FreeValue.Sub(amount)
	session.Stake = amount
	return nil
}

func (d *Dispatcher) handleContribution(ev *events.Event, args *events.Contribution) error {
	pool, err := d.basePool(args.Pid)
	if err != nil {
		return err
	}
	d.store.Account(args.AccountID)
	amount := numeric.FromPlank(args.Amount)
	shares := numeric.FromPlank(args.Shares)

	pool.FreeValue = pool.FreeValue.Add(amount)
	pool.TotalShares = pool.TotalShares.Add(shares)
	pool.TotalValue = pool.TotalValue.Add(amount)
	poolledger.UpdateSharePrice(pool)

	if viaVault(args.AsVault) {
		// Capital routed through a vault is already counted in the network
		// total; moving it into a stake pool only shifts it out of the
		// vault's free balance.
		vaultPool, err := d.basePool(*args.AsVault)
		if err != nil {
			return err
		}
		vaultPool.FreeValue = vaultPool.FreeValue.Sub(amount)
	} else {
		global := d.store.Global()
		global.TotalValue = global.TotalValue.Add(amount)
	}

	del := d.upsertDelegation(pool, args.AccountID, ev)
	del.Shares = del.Shares.Add(shares)
	del.Value = numeric.RoundBalance(del.Shares.Mul(pool.SharePrice))
	del.Cost = del.Cost.Add(amount)

	if sp, ok := d.store.StakePool(pool.ID); ok {
		poolledger.UpdateStakePoolAprMultiplier(pool, sp)
		poolledger.UpdateDelegable(pool, sp)
	}
	return nil
}

func (d *Dispatcher) handleWithdrawal(args *events.Withdrawal) error {
	pool, err := d.basePool(args.Pid)
	if err != nil {
		return err
	}
	del, err := d.delegation(args.Pid, args.AccountID)
	if err != nil {
		return err
	}

	amount := numeric.FromPlank(args.Amount)
	shares := numeric.FromPlank(args.Shares)
	removedShares := shares
	if args.BurntShares != nil {
		removedShares = removedShares.Add(numeric.FromPlank(*args.BurntShares))
	}

	pool.TotalShares = pool.TotalShares.Sub(removedShares)
	pool.TotalValue = pool.TotalValue.Sub(amount)
	pool.FreeValue = pool.FreeValue.Sub(amount)

	prevWithdrawing := del.WithdrawingShares
	newWithdrawing := prevWithdrawing.Sub(shares)
	if newWithdrawing.IsNegative() {
		newWithdrawing = decimal.Zero
	}
	pool.WithdrawingShares = pool.WithdrawingShares.Sub(prevWithdrawing.Sub(newWithdrawing))
	del.WithdrawingShares = newWithdrawing
	if newWithdrawing.IsZero() {
		del.WithdrawalStartTime = nil
		del.WithdrawalNftID = nil
	}

	del.Shares = del.Shares.Sub(removedShares)
	del.Cost = del.Cost.Sub(amount)

	// Deferred when the pool's shares hit exactly zero: the reset must not
	// be observed by later events in the same block.
	d.resets.Reprice(pool)
	del.Value = numeric.RoundBalance(del.Shares.Mul(pool.SharePrice))
	del.WithdrawingValue = numeric.RoundBalance(del.WithdrawingShares.Mul(pool.SharePrice))

	if viaVault(args.AsVault) {
		vaultPool, err := d.basePool(*args.AsVault)
		if err != nil {
			return err
		}
		vaultPool.FreeValue = vaultPool.FreeValue.Add(amount)
	} else {
		global := d.store.Global()
		global.TotalValue = global.TotalValue.Sub(amount)
	}

	if sp, ok := d.store.StakePool(pool.ID); ok {
		poolledger.UpdateStakePoolAprMultiplier(pool, sp)
		poolledger.UpdateDelegable(pool, sp)
	}
	return nil
}

func (d *Dispatcher) handleWithdrawalQueued(ev *events.Event, args *events.WithdrawalQueued) error {
	pool, err := d.basePool(args.Pid)
	if err != nil {
		return err
	}
	del, err := d.delegation(args.Pid, args.AccountID)
	if err != nil {
		return err
	}
	shares := numeric.FromPlank(args.Shares)

	// A queued withdrawal replaces any pending one; the previous shares are
	// backed out of the pool aggregate before the new figure is added.
	pool.WithdrawingShares = pool.WithdrawingShares.Sub(del.WithdrawingShares).Add(shares)
	del.WithdrawingShares = shares
	startTime := ev.Block.Time()
	del.WithdrawalStartTime = &startTime
	if args.NftID != nil {
		nftID := storage.NftID(pool.Cid, *args.NftID)
		del.WithdrawalNftID = &nftID
	}

	pool.WithdrawingValue = numeric.RoundBalance(pool.WithdrawingShares.Mul(pool.SharePrice))
	del.WithdrawingValue = numeric.RoundBalance(del.WithdrawingShares.Mul(pool.SharePrice))

	if sp, ok := d.store.StakePool(pool.ID); ok {
		poolledger.UpdateDelegable(pool, sp)
	}
	return nil
}

func (d *Dispatcher) handleRewardReceived(args *events.RewardReceived) error {
	pool, sp, err := d.stakePool(args.Pid)
	if err != nil {
		return err
	}
	toOwner := numeric.FromPlank(args.ToOwner)
	toStakers := numeric.FromPlank(args.ToStakers)

	sp.OwnerReward = sp.OwnerReward.Add(toOwner)
	pool.CumulativeOwnerRewards = pool.CumulativeOwnerRewards.Add(toOwner)
	owner := d.store.Account(pool.OwnerID)
	owner.CumulativeStakePoolOwnerRewards = owner.CumulativeStakePoolOwnerRewards.Add(toOwner)

	pool.TotalValue = pool.TotalValue.Add(toStakers)
	pool.FreeValue = pool.FreeValue.Add(toStakers)
	poolledger.UpdateSharePrice(pool)

	global := d.store.Global()
	global.TotalValue = global.TotalValue.Add(toStakers)
	global.CumulativeRewards = global.CumulativeRewards.Add(toOwner).Add(toStakers)

	poolledger.UpdateStakePoolAprMultiplier(pool, sp)
	poolledger.UpdateDelegable(pool, sp)
	return nil
}

func (d *Dispatcher) handleOwnerRewardsWithdrawn(args *events.OwnerRewardsWithdrawn) error {
	_, sp, err := d.stakePool(args.Pid)
	if err != nil {
		return err
	}
	amount := numeric.FromPlank(args.Amount)
	sp.OwnerReward = sp.OwnerReward.Sub(amount)
	if sp.OwnerReward.IsNegative() {
		sp.OwnerReward = decimal.Zero
	}
	return nil
}

func (d *Dispatcher) handlePoolWhitelistCreated(args *events.PoolWhitelistCreated) error {
	pool, err := d.basePool(args.Pid)
	if err != nil {
		return err
	}
	pool.WhitelistEnabled = true
	return nil
}

func (d *Dispatcher) handlePoolWhitelistDeleted(args *events.PoolWhitelistDeleted) error {
	pool, err := d.basePool(args.Pid)
	if err != nil {
		return err
	}
	pool.WhitelistEnabled = false
	var stale []string
	d.store.ForEachWhitelist(func(w *storage.Whitelist) {
		if w.PoolID == args.Pid {
			stale = append(stale, w.ID)
		}
	})
	for _, id := range stale {
		d.store.DeleteWhitelist(id)
	}
	return nil
}

func (d *Dispatcher) handlePoolWhitelistStakerAdded(ev *events.Event, args *events.PoolWhitelistStakerAdded) error {
	if _, err := d.basePool(args.Pid); err != nil {
		return err
	}
	d.store.Account(args.AccountID)
	d.store.PutWhitelist(&storage.Whitelist{
		ID:        storage.WhitelistID(args.Pid, args.AccountID),
		AccountID: args.AccountID,
		PoolID:    args.Pid,
		CreatedAt: ev.Block.Time(),
	})
	return nil
}

func (d *Dispatcher) handlePoolWhitelistStakerRemoved(args *events.PoolWhitelistStakerRemoved) error {
	if _, err := d.basePool(args.Pid); err != nil {
		return err
	}
	d.store.DeleteWhitelist(storage.WhitelistID(args.Pid, args.AccountID))
	return nil
}

// upsertDelegation returns the delegation for (pool, account), creating a
// zeroed one on first contribution.
func (d *Dispatcher) upsertDelegation(pool *storage.BasePool, accountID string, ev *events.Event) *storage.Delegation {
	id := storage.DelegationID(pool.ID, accountID)
	if del, ok := d.store.Delegation(id); ok {
		return del
	}
	del := &storage.Delegation{
		ID:        id,
		AccountID: accountID,
		PoolID:    pool.ID,
		CreatedAt: ev.Block.Time(),
	}
	d.store.PutDelegation(del)
	return del
}

// viaVault reports whether a contribution or withdrawal was routed through a
// vault's pool account.
func viaVault(asVault *string) bool {
	return asVault != nil && *asVault != ""
}
