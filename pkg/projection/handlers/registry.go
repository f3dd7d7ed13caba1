package handlers

import (
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/workers"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
)

func (d *Dispatcher) handleWorkerRegistered(ev *events.Event, args *events.WorkerRegistered) error {
	if w, ok := d.store.Worker(args.WorkerID); ok {
		w.ConfidenceLevel = args.ConfidenceLevel
		return nil
	}
	d.store.PutWorker(&storage.Worker{
		ID:              args.WorkerID,
		ConfidenceLevel: args.ConfidenceLevel,
		CreatedAt:       ev.Block.Time(),
	})
	return nil
}

func (d *Dispatcher) handleWorkerUpdated(args *events.WorkerUpdated) error {
	worker, err := d.worker(args.WorkerID)
	if err != nil {
		return err
	}
	worker.ConfidenceLevel = args.ConfidenceLevel

	// A confidence change rescales the shares of a bound, scored worker.
	if worker.SessionID == nil || worker.Shares == nil {
		return nil
	}
	session, err := d.session(*worker.SessionID)
	if err != nil {
		return err
	}
	pool, sp, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}
	old := workers.SharesOrZero(worker)
	workers.UpdateShares(worker, session, session.PInstant)
	if session.State == storage.WorkerStateWorkerIdle {
		d.adjustIdleShares(pool, sp, workers.SharesOrZero(worker).Sub(old))
	}
	return nil
}

func (d *Dispatcher) handleInitialScoreSet(args *events.InitialScoreSet) error {
	worker, err := d.worker(args.WorkerID)
	if err != nil {
		return err
	}
	score := args.InitialScore
	worker.InitialScore = &score
	return nil
}
