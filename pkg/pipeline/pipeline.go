package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/poolhouse-labs/stakewatch/internal/metrics"
	"github.com/poolhouse-labs/stakewatch/internal/metrics/metricsTypes"
	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/identity"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/aggregator"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/handlers"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/snapshots"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/stateroot"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"go.uber.org/zap"
)

const defaultBatchSize = 5000

// Pipeline drives the projection: pull one batch of events, fold them into
// the entity graph, run the post-update pass, then commit the dirty set
// atomically. A failed batch commits nothing; on restart the projection
// resumes from the last committed height.
type Pipeline struct {
	logger      *zap.Logger
	source      events.Source
	store       *store.EntityStore
	dispatcher  *handlers.Dispatcher
	aggregator  *aggregator.Aggregator
	snapshots   *snapshots.Scheduler
	identities  identity.Client
	persistence storage.Persistence
	metricsSink *metrics.MetricsSink
	batchSize   int
}

func NewPipeline(
	source events.Source,
	s *store.EntityStore,
	dispatcher *handlers.Dispatcher,
	agg *aggregator.Aggregator,
	snaps *snapshots.Scheduler,
	identities identity.Client,
	persistence storage.Persistence,
	sink *metrics.MetricsSink,
	batchSize int,
	l *zap.Logger,
) *Pipeline {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &Pipeline{
		logger:      l,
		source:      source,
		store:       s,
		dispatcher:  dispatcher,
		aggregator:  agg,
		snapshots:   snaps,
		identities:  identities,
		persistence: persistence,
		metricsSink: sink,
		batchSize:   batchSize,
	}
}

// Run processes batches until the source is drained or the context is
// cancelled.
func (p *Pipeline) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.logger.Sugar().Infow("Pipeline stopping", zap.Error(ctx.Err()))
			return ctx.Err()
		default:
		}

		done, err := p.RunBatch(ctx)
		if err != nil {
			return err
		}
		if done {
			p.logger.Sugar().Infow("Event source drained")
			return nil
		}
	}
}

// RunBatch processes exactly one batch. done is true once the source reports
// EOF with no buffered events left.
func (p *Pipeline) RunBatch(ctx context.Context) (bool, error) {
	batchStart := time.Now()

	evs, err := p.source.NextBatch(p.batchSize)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return true, nil
		}
		return false, errors.Wrap(err, "failed to read event batch")
	}
	if len(evs) == 0 {
		return true, nil
	}

	for _, ev := range evs {
		if err := p.dispatcher.Handle(ev); err != nil {
			p.logger.Sugar().Errorw("Failed to handle event",
				zap.String("name", string(ev.Name)),
				zap.Uint64("blockHeight", ev.Block.Height),
				zap.Error(err),
			)
			return false, err
		}
		_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_EventProcessed, nil, 1)
	}
	p.dispatcher.EndBatch()

	latest := evs[len(evs)-1].Block
	p.aggregator.PostUpdate(p.store, latest)
	p.snapshots.Tick(p.store, latest)

	refresh := p.dispatcher.DrainIdentityQueue()
	if len(refresh) > 0 {
		records, err := p.identities.FetchIdentities(ctx, refresh)
		if err != nil {
			return false, errors.Wrap(err, "failed to fetch identities")
		}
		identity.Merge(p.store, records, p.logger)
	}

	global := p.store.Global()
	height := global.Height
	totalValue, _ := global.TotalValue.Float64()
	delegatorCount := global.DelegatorCount

	cs := p.store.BuildChangeSet()
	if !cs.IsEmpty() {
		root, err := stateroot.Generate(latest.Height, cs)
		if err != nil {
			return false, err
		}
		cs.StateRoot = &storage.StateRoot{
			Height:    latest.Height,
			StateRoot: root,
		}
	}

	commitStart := time.Now()
	if err := p.persistence.CommitBatch(cs); err != nil {
		return false, errors.Wrap(err, "failed to commit batch")
	}
	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_CommitDuration, time.Since(commitStart), nil)

	_ = p.metricsSink.Incr(metricsTypes.Metric_Incr_BatchProcessed, nil, 1)
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_CurrentBlockHeight, float64(height), nil)
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_TotalValue, totalValue, nil)
	_ = p.metricsSink.Gauge(metricsTypes.Metric_Gauge_DelegatorCount, float64(delegatorCount), nil)
	_ = p.metricsSink.Timing(metricsTypes.Metric_Timing_BatchProcessDuration, time.Since(batchStart), nil)

	p.logger.Sugar().Debugw("Processed batch",
		zap.Int("events", len(evs)),
		zap.Uint64("blockHeight", latest.Height),
		zap.Int64("runTime", time.Since(batchStart).Milliseconds()),
	)
	return false, nil
}
