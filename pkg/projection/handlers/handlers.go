package handlers

import (
	"sort"

	"github.com/pkg/errors"
	"github.com/poolhouse-labs/stakewatch/pkg/chain"
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/poolledger"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"go.uber.org/zap"
)

// Dispatcher routes one event at a time into the entity graph. It owns the
// intra-block share-price reset queue and the per-batch identity refresh
// queue. A missing referenced entity is fatal: it means out-of-order input or
// a dropped prior event, and the batch must not be committed.
type Dispatcher struct {
	logger     *zap.Logger
	store      *store.EntityStore
	resets     *poolledger.ResetQueue
	tokenomics chain.TokenomicReader

	currentHeight   uint64
	committedHeight uint64
	identityQueue   map[string]struct{}
}

func NewDispatcher(s *store.EntityStore, tokenomics chain.TokenomicReader, logger *zap.Logger) *Dispatcher {
	committed := s.CommittedHeight()
	return &Dispatcher{
		logger:          logger,
		store:           s,
		resets:          poolledger.NewResetQueue(),
		tokenomics:      tokenomics,
		currentHeight:   committed,
		committedHeight: committed,
		identityQueue:   make(map[string]struct{}),
	}
}

// StartFrom skips every event below height h, for dumps that begin before
// the intended start. Hydration already positions the dispatcher past the
// committed height; StartFrom only ever moves it forward.
func (d *Dispatcher) StartFrom(h uint64) {
	if h == 0 {
		return
	}
	if h-1 > d.committedHeight {
		d.committedHeight = h - 1
		d.currentHeight = h - 1
	}
}

// Handle dispatches a single event. Events must arrive in nondecreasing
// block-height order; crossing a height boundary flushes the deferred
// share-price resets of the finished block. Events at or below the committed
// height were applied by an earlier run and are skipped, so replaying a dump
// over an existing projection cannot double count.
func (d *Dispatcher) Handle(ev *events.Event) error {
	if ev.Block.Height <= d.committedHeight {
		d.logger.Sugar().Debugw("Skipping already committed event",
			zap.String("name", string(ev.Name)),
			zap.Uint64("blockHeight", ev.Block.Height),
			zap.Uint64("committedHeight", d.committedHeight),
		)
		return nil
	}
	if ev.Block.Height < d.currentHeight {
		return errors.Errorf("event %s at height %d arrived after height %d", ev.Name, ev.Block.Height, d.currentHeight)
	}
	if ev.Block.Height > d.currentHeight {
		d.resets.Flush(d.store)
		d.currentHeight = ev.Block.Height
	}

	global := d.store.Global()
	global.Height = ev.Block.Height

	d.logger.Sugar().Debugw("Handling event",
		zap.String("name", string(ev.Name)),
		zap.Uint64("blockHeight", ev.Block.Height),
	)

	switch args := ev.Args.(type) {
	case *events.StakePoolCreated:
		return d.handleStakePoolCreated(ev, args)
	case *events.VaultCreated:
		return d.handleVaultCreated(ev, args)
	case *events.StakePoolCommissionSet:
		return d.handleStakePoolCommissionSet(args)
	case *events.VaultCommissionSet:
		return d.handleVaultCommissionSet(args)
	case *events.StakePoolCapacitySet:
		return d.handleStakePoolCapacitySet(args)
	case *events.StakePoolWorkerAdded:
		return d.handleStakePoolWorkerAdded(args)
	case *events.StakePoolWorkerRemoved:
		return d.handleStakePoolWorkerRemoved(args)
	case *events.WorkingStarted:
		return d.handleWorkingStarted(args)
	case *events.Contribution:
		return d.handleContribution(ev, args)
	case *events.Withdrawal:
		return d.handleWithdrawal(args)
	case *events.WithdrawalQueued:
		return d.handleWithdrawalQueued(ev, args)
	case *events.RewardReceived:
		return d.handleRewardReceived(args)
	case *events.OwnerRewardsWithdrawn:
		return d.handleOwnerRewardsWithdrawn(args)
	case *events.PoolWhitelistCreated:
		return d.handlePoolWhitelistCreated(args)
	case *events.PoolWhitelistDeleted:
		return d.handlePoolWhitelistDeleted(args)
	case *events.PoolWhitelistStakerAdded:
		return d.handlePoolWhitelistStakerAdded(ev, args)
	case *events.PoolWhitelistStakerRemoved:
		return d.handlePoolWhitelistStakerRemoved(args)
	case *events.VaultOwnerSharesGained:
		return d.handleVaultOwnerSharesGained(args)
	case *events.VaultOwnerSharesClaimed:
		return d.handleVaultOwnerSharesClaimed(ev, args)
	case *events.SessionBound:
		return d.handleSessionBound(ev, args)
	case *events.SessionUnbound:
		return d.handleSessionUnbound(args)
	case *events.WorkerStarted:
		return d.handleWorkerStarted(args)
	case *events.WorkerStopped:
		return d.handleWorkerStopped(ev, args)
	case *events.WorkerReclaimed:
		return d.handleWorkerReclaimed(args)
	case *events.WorkerEnterUnresponsive:
		return d.handleWorkerEnterUnresponsive(args)
	case *events.WorkerExitUnresponsive:
		return d.handleWorkerExitUnresponsive(args)
	case *events.SessionSettled:
		return d.handleSessionSettled(args)
	case *events.BenchmarkUpdated:
		return d.handleBenchmarkUpdated(args)
	case *events.TokenomicParametersChanged:
		return d.handleTokenomicParametersChanged(ev)
	case *events.WorkerRegistered:
		return d.handleWorkerRegistered(ev, args)
	case *events.WorkerUpdated:
		return d.handleWorkerUpdated(args)
	case *events.InitialScoreSet:
		return d.handleInitialScoreSet(args)
	case *events.NftMinted:
		return d.handleNftMinted(ev, args)
	case *events.NftBurned:
		return d.handleNftBurned(args)
	case *events.IdentitySet:
		return d.handleIdentitySet(args)
	case *events.IdentityCleared:
		return d.handleIdentityCleared(args)
	case *events.JudgementGiven:
		return d.handleJudgementGiven(args)
	default:
		return errors.Errorf("no handler for event %s", ev.Name)
	}
}

// EndBatch flushes the reset queue for the final block of the batch.
func (d *Dispatcher) EndBatch() {
	d.resets.Flush(d.store)
}

// DrainIdentityQueue returns and clears the account ids whose identity must
// be refreshed through the identity collaborator. Cleared identities need no
// refresh; their handler nils the account fields directly.
func (d *Dispatcher) DrainIdentityQueue() []string {
	refresh := make([]string, 0, len(d.identityQueue))
	for id := range d.identityQueue {
		refresh = append(refresh, id)
	}
	sort.Strings(refresh)
	d.identityQueue = make(map[string]struct{})
	return refresh
}

// Lookup helpers; absence is fatal per the error-handling design.

func (d *Dispatcher) basePool(pid string) (*storage.BasePool, error) {
	pool, ok := d.store.BasePool(pid)
	if !ok {
		return nil, errors.Errorf("base pool %s not found", pid)
	}
	return pool, nil
}

func (d *Dispatcher) stakePool(pid string) (*storage.BasePool, *storage.StakePool, error) {
	pool, err := d.basePool(pid)
	if err != nil {
		return nil, nil, err
	}
	sp, ok := d.store.StakePool(pid)
	if !ok {
		return nil, nil, errors.Errorf("stake pool %s not found", pid)
	}
	return pool, sp, nil
}

func (d *Dispatcher) vault(pid string) (*storage.BasePool, *storage.Vault, error) {
	pool, err := d.basePool(pid)
	if err != nil {
		return nil, nil, err
	}
	v, ok := d.store.Vault(pid)
	if !ok {
		return nil, nil, errors.Errorf("vault %s not found", pid)
	}
	return pool, v, nil
}

func (d *Dispatcher) worker(id string) (*storage.Worker, error) {
	w, ok := d.store.Worker(id)
	if !ok {
		return nil, errors.Errorf("worker %s not found", id)
	}
	return w, nil
}

func (d *Dispatcher) session(id string) (*storage.Session, error) {
	s, ok := d.store.Session(id)
	if !ok {
		return nil, errors.Errorf("session %s not found", id)
	}
	return s, nil
}

func (d *Dispatcher) delegation(pid string, accountID string) (*storage.Delegation, error) {
	del, ok := d.store.Delegation(storage.DelegationID(pid, accountID))
	if !ok {
		return nil, errors.Errorf("delegation %s not found", storage.DelegationID(pid, accountID))
	}
	return del, nil
}
