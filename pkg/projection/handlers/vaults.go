package handlers

import (
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/numeric"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/poolledger"
	"github.com/shopspring/decimal"
)

func (d *Dispatcher) handleVaultOwnerSharesGained(args *events.VaultOwnerSharesGained) error {
	pool, vault, err := d.vault(args.Pid)
	if err != nil {
		return err
	}
	shares := numeric.FromPlank(args.Shares)

	// Commission shares dilute the pool: shares grow with no matching value,
	// and the checkpoint advances so the next gain measures from the new
	// price.
	vault.ClaimableOwnerShares = vault.ClaimableOwnerShares.Add(shares)
	pool.TotalShares = pool.TotalShares.Add(shares)
	poolledger.UpdateSharePrice(pool)
	vault.LastSharePriceCheckpoint = pool.SharePrice

	gained := numeric.RoundBalance(shares.Mul(pool.SharePrice))
	pool.CumulativeOwnerRewards = pool.CumulativeOwnerRewards.Add(gained)
	owner := d.store.Account(pool.OwnerID)
	owner.CumulativeVaultOwnerRewards = owner.CumulativeVaultOwnerRewards.Add(gained)
	poolledger.UpdateVaultAprMultiplier(pool, d.store.Account(pool.AccountID))
	return nil
}

func (d *Dispatcher) handleVaultOwnerSharesClaimed(ev *events.Event, args *events.VaultOwnerSharesClaimed) error {
	pool, vault, err := d.vault(args.Pid)
	if err != nil {
		return err
	}
	shares := numeric.FromPlank(args.Shares)
	vault.ClaimableOwnerShares = vault.ClaimableOwnerShares.Sub(shares)
	if vault.ClaimableOwnerShares.IsNegative() {
		vault.ClaimableOwnerShares = decimal.Zero
	}

	// Claimed shares become an ordinary delegation held by the claimant;
	// pool totals are untouched, they were counted when gained.
	d.store.Account(args.AccountID)
	del := d.upsertDelegation(pool, args.AccountID, ev)
	del.Shares = del.Shares.Add(shares)
	del.Value = numeric.RoundBalance(del.Shares.Mul(pool.SharePrice))
	return nil
}
