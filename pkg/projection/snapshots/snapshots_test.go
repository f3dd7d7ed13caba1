package snapshots

import (
	"testing"
	"time"

	"github.com/poolhouse-labs/stakewatch/pkg/events"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func blockAt(height uint64, at time.Time) events.Block {
	return events.Block{Height: height, Timestamp: uint64(at.UnixMilli())}
}

func Test_FirstTick(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	global := s.Global()
	global.Height = 100
	global.TotalValue = decimal.NewFromInt(500)

	s.PutBasePool(&storage.BasePool{ID: "1", Kind: storage.PoolKindStakePool, SharePrice: decimal.NewFromInt(1)})
	s.PutStakePool(&storage.StakePool{PoolID: "1", WorkerCount: 2})

	sch := NewScheduler(nil, zap.NewNop())
	at := time.Date(2023, 5, 10, 14, 30, 0, 0, time.UTC)
	sch.Tick(s, blockAt(100, at))

	cs := s.BuildChangeSet()
	assert.Len(t, cs.GlobalStateSnapshots, 1)
	snap := cs.GlobalStateSnapshots[0]
	assert.Equal(t, time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC), snap.Timestamp)
	assert.Equal(t, uint64(100), snap.Height)
	assert.True(t, snap.TotalValue.Equal(decimal.NewFromInt(500)))

	assert.Len(t, cs.BasePoolSnapshots, 1)
	assert.Equal(t, 2, cs.BasePoolSnapshots[0].WorkerCount)

	assert.Equal(t, time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC), global.SnapshotUpdatedTime)
}

func Test_SameDayIsNoop(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	sch := NewScheduler(nil, zap.NewNop())

	morning := time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)
	evening := time.Date(2023, 5, 10, 22, 0, 0, 0, time.UTC)
	sch.Tick(s, blockAt(100, morning))
	s.BuildChangeSet()

	sch.Tick(s, blockAt(200, evening))
	cs := s.BuildChangeSet()
	assert.Empty(t, cs.GlobalStateSnapshots)
}

func Test_NextDayMaterializes(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	sch := NewScheduler(nil, zap.NewNop())

	sch.Tick(s, blockAt(100, time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)))
	s.BuildChangeSet()

	sch.Tick(s, blockAt(200, time.Date(2023, 5, 11, 1, 0, 0, 0, time.UTC)))
	cs := s.BuildChangeSet()
	assert.Len(t, cs.GlobalStateSnapshots, 1)
	assert.Equal(t, time.Date(2023, 5, 11, 0, 0, 0, 0, time.UTC), cs.GlobalStateSnapshots[0].Timestamp)
}

func Test_GapBackfill(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	global := s.Global()
	global.Height = 100
	global.TotalValue = decimal.NewFromInt(500)
	s.PutWorker(&storage.Worker{ID: "w1"})

	sch := NewScheduler(nil, zap.NewNop())
	sch.Tick(s, blockAt(100, time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)))
	first := s.BuildChangeSet()
	assert.Len(t, first.GlobalStateSnapshots, 1)
	assert.Len(t, first.WorkerSnapshots, 1)

	// Three days later: the 11th and 12th are backfilled clones, the 13th is
	// a real materialization.
	global.Height = 400
	sch.Tick(s, blockAt(400, time.Date(2023, 5, 13, 3, 0, 0, 0, time.UTC)))
	cs := s.BuildChangeSet()
	assert.Len(t, cs.GlobalStateSnapshots, 3)

	assert.Equal(t, time.Date(2023, 5, 11, 0, 0, 0, 0, time.UTC), cs.GlobalStateSnapshots[0].Timestamp)
	assert.Equal(t, time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC), cs.GlobalStateSnapshots[1].Timestamp)
	assert.Equal(t, time.Date(2023, 5, 13, 0, 0, 0, 0, time.UTC), cs.GlobalStateSnapshots[2].Timestamp)

	// Clones carry the old figures forward; the real one sees the new height.
	assert.Equal(t, uint64(100), cs.GlobalStateSnapshots[0].Height)
	assert.Equal(t, uint64(400), cs.GlobalStateSnapshots[2].Height)

	// Entity snapshots only on the real materialization.
	assert.Len(t, cs.WorkerSnapshots, 1)
	assert.Equal(t, time.Date(2023, 5, 13, 0, 0, 0, 0, time.UTC), cs.WorkerSnapshots[0].Timestamp)
}

func Test_ResumeFromLoadedSnapshot(t *testing.T) {
	// A restart hydrates the scheduler with the last persisted global
	// snapshot so gaps spanning the restart still backfill.
	s := store.NewEntityStore(zap.NewNop())
	s.Hydrate(&storage.Dataset{
		GlobalState: &storage.GlobalState{
			ID:                  storage.GlobalStateID,
			Height:              100,
			SnapshotUpdatedTime: time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC),
		},
	})
	loaded := &storage.GlobalStateSnapshot{
		Height:     100,
		Timestamp:  time.Date(2023, 5, 10, 0, 0, 0, 0, time.UTC),
		TotalValue: decimal.NewFromInt(500),
	}

	sch := NewScheduler(loaded, zap.NewNop())
	sch.Tick(s, blockAt(300, time.Date(2023, 5, 12, 6, 0, 0, 0, time.UTC)))

	cs := s.BuildChangeSet()
	assert.Len(t, cs.GlobalStateSnapshots, 2)
	assert.Equal(t, time.Date(2023, 5, 11, 0, 0, 0, 0, time.UTC), cs.GlobalStateSnapshots[0].Timestamp)
	assert.True(t, cs.GlobalStateSnapshots[0].TotalValue.Equal(decimal.NewFromInt(500)))
	assert.Equal(t, time.Date(2023, 5, 12, 0, 0, 0, 0, time.UTC), cs.GlobalStateSnapshots[1].Timestamp)
}

func Test_WorkerSnapshotCarriesSessionState(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	sessionID := "s1"
	shares := decimal.NewFromInt(40)
	s.PutWorker(&storage.Worker{ID: "w1", SessionID: &sessionID, Shares: &shares})
	s.PutSession(&storage.Session{
		ID:       sessionID,
		State:    storage.WorkerStateWorkerIdle,
		V:        decimal.NewFromInt(30),
		PInit:    350,
		PInstant: 400,
		Stake:    decimal.NewFromInt(20),
	})

	sch := NewScheduler(nil, zap.NewNop())
	sch.Tick(s, blockAt(100, time.Date(2023, 5, 10, 8, 0, 0, 0, time.UTC)))

	cs := s.BuildChangeSet()
	assert.Len(t, cs.WorkerSnapshots, 1)
	snap := cs.WorkerSnapshots[0]
	assert.Equal(t, storage.WorkerStateWorkerIdle, snap.State)
	assert.True(t, snap.V.Equal(decimal.NewFromInt(30)))
	assert.Equal(t, int64(400), snap.PInstant)
	assert.True(t, snap.Stake.Equal(decimal.NewFromInt(20)))
	assert.NotNil(t, snap.Shares)
	assert.True(t, snap.Shares.Equal(shares))
}
