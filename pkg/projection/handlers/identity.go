package handlers

import (
	"github.com/poolhouse-labs/stakewatch/pkg/events"
)

// Identity events only queue the affected account: the display name and
// judgement level live with the identity collaborator and are merged in once
// per batch.

func (d *Dispatcher) handleIdentitySet(args *events.IdentitySet) error {
	d.store.Account(args.AccountID)
	d.identityQueue[args.AccountID] = struct{}{}
	return nil
}

func (d *Dispatcher) handleIdentityCleared(args *events.IdentityCleared) error {
	account := d.store.Account(args.AccountID)
	account.IdentityDisplay = nil
	account.IdentityLevel = nil
	delete(d.identityQueue, args.AccountID)
	return nil
}

func (d *Dispatcher) handleJudgementGiven(args *events.JudgementGiven) error {
	d.store.Account(args.AccountID)
	d.identityQueue[args.AccountID] = struct{}{}
	return nil
}
