package handlers

import (
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
)

func (d *Dispatcher) handleNftMinted(ev *events.Event, args *events.NftMinted) error {
	d.store.Account(args.OwnerID)
	id := storage.NftID(args.Cid, args.NftID)
	d.store.PutNft(&storage.Nft{
		ID:        id,
		Cid:       args.Cid,
		NftID:     args.NftID,
		OwnerID:   args.OwnerID,
		MintTime:  ev.Block.Time(),
		CreatedAt: ev.Block.Time(),
	})

	// A mint in a pool's collection is that pool's share receipt for the
	// owner's delegation, unless a queued withdrawal already claimed the id
	// as its ticket.
	pool, ok := d.store.BasePoolByCid(args.Cid)
	if !ok {
		return nil
	}
	del, ok := d.store.Delegation(storage.DelegationID(pool.ID, args.OwnerID))
	if !ok {
		return nil
	}
	if del.WithdrawalNftID != nil && *del.WithdrawalNftID == id {
		return nil
	}
	del.DelegationNftID = &id
	return nil
}

func (d *Dispatcher) handleNftBurned(args *events.NftBurned) error {
	id := storage.NftID(args.Cid, args.NftID)
	nft, ok := d.store.Nft(id)
	if !ok {
		// Burns can reference NFTs minted before the projection's start
		// height; there is nothing to reconcile against.
		d.logger.Sugar().Debugw("Burned NFT not tracked", "nftId", id)
		return nil
	}
	nft.Burned = true

	// Drop stale delegation links to the burned receipt.
	if pool, ok := d.store.BasePoolByCid(args.Cid); ok {
		if del, ok := d.store.Delegation(storage.DelegationID(pool.ID, nft.OwnerID)); ok {
			if del.DelegationNftID != nil && *del.DelegationNftID == id {
				del.DelegationNftID = nil
			}
		}
	}
	return nil
}
