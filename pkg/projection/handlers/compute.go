package handlers

import (
	"github.com/pkg/errors"
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/numeric"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/poolledger"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/workers"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
)

func noSessionErr(workerID string) error {
	return errors.Errorf("worker %s has no bound session", workerID)
}

// boundWorker resolves the worker bound to a session; an unbound session on a
// lifecycle event means a missing prior SessionBound and is fatal.
func (d *Dispatcher) boundWorker(session *storage.Session) (*storage.Worker, error) {
	if session.WorkerID == nil {
		return nil, errors.Errorf("session %s has no bound worker", session.ID)
	}
	return d.worker(*session.WorkerID)
}

// sessionPool resolves the stake pool a session's worker belongs to.
func (d *Dispatcher) sessionPool(session *storage.Session, worker *storage.Worker) (*storage.BasePool, *storage.StakePool, error) {
	pid := session.StakePoolID
	if pid == nil {
		pid = worker.StakePoolID
	}
	if pid == nil {
		return nil, nil, errors.Errorf("session %s is not attached to a pool", session.ID)
	}
	return d.stakePool(*pid)
}

func (d *Dispatcher) addIdle(pool *storage.BasePool, sp *storage.StakePool, shares decimal.Decimal) {
	global := d.store.Global()
	sp.IdleWorkerShares = sp.IdleWorkerShares.Add(shares)
	sp.IdleWorkerCount++
	global.IdleWorkerShares = global.IdleWorkerShares.Add(shares)
	global.IdleWorkerCount++
	poolledger.UpdateStakePoolAprMultiplier(pool, sp)
}

func (d *Dispatcher) removeIdle(pool *storage.BasePool, sp *storage.StakePool, shares decimal.Decimal) {
	global := d.store.Global()
	sp.IdleWorkerShares = sp.IdleWorkerShares.Sub(shares)
	sp.IdleWorkerCount--
	global.IdleWorkerShares = global.IdleWorkerShares.Sub(shares)
	global.IdleWorkerCount--
	poolledger.UpdateStakePoolAprMultiplier(pool, sp)
}

// adjustIdleShares applies a share delta without touching worker counts, for
// benchmark and settlement updates of a worker that stays idle.
func (d *Dispatcher) adjustIdleShares(pool *storage.BasePool, sp *storage.StakePool, delta decimal.Decimal) {
	global := d.store.Global()
	sp.IdleWorkerShares = sp.IdleWorkerShares.Add(delta)
	global.IdleWorkerShares = global.IdleWorkerShares.Add(delta)
	poolledger.UpdateStakePoolAprMultiplier(pool, sp)
}

func (d *Dispatcher) handleSessionBound(ev *events.Event, args *events.SessionBound) error {
	worker, err := d.worker(args.WorkerID)
	if err != nil {
		return err
	}
	session, ok := d.store.Session(args.SessionID)
	if !ok {
		session = &storage.Session{
			ID:        args.SessionID,
			State:     storage.WorkerStateReady,
			CreatedAt: ev.Block.Time(),
		}
		d.store.PutSession(session)
	}
	workerID := args.WorkerID
	sessionID := args.SessionID
	session.IsBound = true
	session.WorkerID = &workerID
	session.StakePoolID = worker.StakePoolID
	worker.SessionID = &sessionID
	return nil
}

func (d *Dispatcher) handleSessionUnbound(args *events.SessionUnbound) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.worker(args.WorkerID)
	if err != nil {
		return err
	}
	session.IsBound = false
	session.WorkerID = nil
	worker.SessionID = nil
	worker.Shares = nil
	return nil
}

func (d *Dispatcher) handleWorkerStarted(args *events.WorkerStarted) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.boundWorker(session)
	if err != nil {
		return err
	}
	pool, sp, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}

	session.State = storage.WorkerStateWorkerIdle
	session.V = numeric.FromBits(args.InitV)
	session.Ve = session.V
	session.PInit = args.InitP
	session.PInstant = args.InitP

	// Start path scores with pInit.
	workers.UpdateShares(worker, session, session.PInit)
	d.addIdle(pool, sp, workers.SharesOrZero(worker))
	return nil
}

func (d *Dispatcher) handleBenchmarkUpdated(args *events.BenchmarkUpdated) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.boundWorker(session)
	if err != nil {
		return err
	}
	pool, sp, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}

	session.PInstant = args.PInstant
	old := workers.SharesOrZero(worker)
	workers.UpdateShares(worker, session, session.PInstant)
	if session.State == storage.WorkerStateWorkerIdle {
		d.adjustIdleShares(pool, sp, workers.SharesOrZero(worker).Sub(old))
	}
	return nil
}

func (d *Dispatcher) handleSessionSettled(args *events.SessionSettled) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.boundWorker(session)
	if err != nil {
		return err
	}
	pool, sp, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}

	session.TotalReward = session.TotalReward.Add(numeric.FromPlank(args.Payout))
	session.V = numeric.FromBits(args.VBits)
	old := workers.SharesOrZero(worker)
	// Settlement path scores with pInstant.
	workers.UpdateShares(worker, session, session.PInstant)
	if session.State == storage.WorkerStateWorkerIdle {
		d.adjustIdleShares(pool, sp, workers.SharesOrZero(worker).Sub(old))
	}
	return nil
}

func (d *Dispatcher) handleWorkerEnterUnresponsive(args *events.WorkerEnterUnresponsive) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.boundWorker(session)
	if err != nil {
		return err
	}
	pool, sp, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}
	if session.State != storage.WorkerStateWorkerIdle {
		return nil
	}
	session.State = storage.WorkerStateWorkerUnresponsive
	d.removeIdle(pool, sp, workers.SharesOrZero(worker))
	return nil
}

func (d *Dispatcher) handleWorkerExitUnresponsive(args *events.WorkerExitUnresponsive) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.boundWorker(session)
	if err != nil {
		return err
	}
	pool, sp, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}
	if session.State != storage.WorkerStateWorkerUnresponsive {
		return nil
	}
	session.State = storage.WorkerStateWorkerIdle
	d.addIdle(pool, sp, workers.SharesOrZero(worker))
	return nil
}

func (d *Dispatcher) handleWorkerStopped(ev *events.Event, args *events.WorkerStopped) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.boundWorker(session)
	if err != nil {
		return err
	}
	pool, sp, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}

	wasIdle := session.State == storage.WorkerStateWorkerIdle
	session.State = storage.WorkerStateWorkerCoolingDown
	coolingDownStart := ev.Block.Time()
	session.CoolingDownStartTime = &coolingDownStart
	pool.ReleasingValue = pool.ReleasingValue.Add(session.Stake)
	if wasIdle {
		d.removeIdle(pool, sp, workers.SharesOrZero(worker))
	}
	return nil
}

func (d *Dispatcher) handleWorkerReclaimed(args *events.WorkerReclaimed) error {
	session, err := d.session(args.SessionID)
	if err != nil {
		return err
	}
	worker, err := d.boundWorker(session)
	if err != nil {
		return err
	}
	pool, _, err := d.sessionPool(session, worker)
	if err != nil {
		return err
	}

	session.State = storage.WorkerStateReady
	pool.ReleasingValue = pool.ReleasingValue.Sub(session.Stake)
	pool.FreeValue = pool.FreeValue.Add(session.Stake)
	session.CoolingDownStartTime = nil
	session.Stake = decimal.Zero
	return nil
}

func (d *Dispatcher) handleTokenomicParametersChanged(ev *events.Event) error {
	params, err := d.tokenomics.TokenomicParameters()
	if err != nil {
		return errors.Wrap(err, "failed to read tokenomic parameters")
	}
	global := d.store.Global()
	global.BudgetPerBlock = params.BudgetPerBlock
	global.TreasuryRatio = params.TreasuryRatio
	global.VMax = params.VMax
	global.Re = params.Re
	global.K = params.K
	global.PhaRate = params.PhaRate
	global.TokenomicUpdatedTime = ev.Block.Time()
	return nil
}
