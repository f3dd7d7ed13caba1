package store

import (
	"testing"

	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_HydrateDoesNotDirty(t *testing.T) {
	s := NewEntityStore(zap.NewNop())
	s.Hydrate(&storage.Dataset{
		GlobalState: &storage.GlobalState{ID: storage.GlobalStateID, Height: 10},
		Accounts:    []*storage.Account{{ID: "alice"}},
		BasePools:   []*storage.BasePool{{ID: "1"}},
	})

	cs := s.BuildChangeSet()
	assert.True(t, cs.IsEmpty())
}

func Test_DirtyTracking(t *testing.T) {
	t.Run("Should track lazily created accounts", func(t *testing.T) {
		s := NewEntityStore(zap.NewNop())
		s.Account("alice")
		cs := s.BuildChangeSet()
		assert.Len(t, cs.Accounts, 1)
		assert.Equal(t, "alice", cs.Accounts[0].ID)
	})

	t.Run("Should mark read entities dirty", func(t *testing.T) {
		s := NewEntityStore(zap.NewNop())
		s.Hydrate(&storage.Dataset{
			GlobalState: &storage.GlobalState{ID: storage.GlobalStateID},
			BasePools:   []*storage.BasePool{{ID: "1"}, {ID: "2"}},
		})

		pool, ok := s.BasePool("1")
		assert.True(t, ok)
		pool.TotalValue = decimal.NewFromInt(5)

		cs := s.BuildChangeSet()
		assert.Len(t, cs.BasePools, 1)
		assert.Equal(t, "1", cs.BasePools[0].ID)
	})

	t.Run("Should reset dirty state after building a change set", func(t *testing.T) {
		s := NewEntityStore(zap.NewNop())
		s.Account("alice")
		first := s.BuildChangeSet()
		assert.False(t, first.IsEmpty())

		second := s.BuildChangeSet()
		assert.True(t, second.IsEmpty())
	})

	t.Run("Should order change set entries by id", func(t *testing.T) {
		s := NewEntityStore(zap.NewNop())
		s.Account("zoe")
		s.Account("alice")
		s.Account("bob")
		cs := s.BuildChangeSet()
		assert.Equal(t, []string{"alice", "bob", "zoe"}, []string{cs.Accounts[0].ID, cs.Accounts[1].ID, cs.Accounts[2].ID})
	})
}

func Test_WhitelistDeletes(t *testing.T) {
	t.Run("Should record an explicit delete", func(t *testing.T) {
		s := NewEntityStore(zap.NewNop())
		s.PutWhitelist(&storage.Whitelist{ID: "1-alice", AccountID: "alice", PoolID: "1"})
		s.DeleteWhitelist("1-alice")

		_, ok := s.Whitelist("1-alice")
		assert.False(t, ok)

		cs := s.BuildChangeSet()
		assert.Empty(t, cs.Whitelists)
		assert.Equal(t, []string{"1-alice"}, cs.WhitelistDeletes)
	})

	t.Run("Should not delete an entry re-added in the same batch", func(t *testing.T) {
		s := NewEntityStore(zap.NewNop())
		s.PutWhitelist(&storage.Whitelist{ID: "1-carol", AccountID: "carol", PoolID: "1"})
		s.DeleteWhitelist("1-carol")
		s.PutWhitelist(&storage.Whitelist{ID: "1-carol", AccountID: "carol", PoolID: "1"})

		_, ok := s.Whitelist("1-carol")
		assert.True(t, ok)

		cs := s.BuildChangeSet()
		assert.Len(t, cs.Whitelists, 1)
		assert.Empty(t, cs.WhitelistDeletes)
	})

	t.Run("Should keep a delete queued after re-add and delete again", func(t *testing.T) {
		s := NewEntityStore(zap.NewNop())
		s.PutWhitelist(&storage.Whitelist{ID: "1-carol", AccountID: "carol", PoolID: "1"})
		s.DeleteWhitelist("1-carol")
		s.PutWhitelist(&storage.Whitelist{ID: "1-carol", AccountID: "carol", PoolID: "1"})
		s.DeleteWhitelist("1-carol")

		cs := s.BuildChangeSet()
		assert.Empty(t, cs.Whitelists)
		assert.Equal(t, []string{"1-carol"}, cs.WhitelistDeletes)
	})
}

func Test_IterationOrder(t *testing.T) {
	s := NewEntityStore(zap.NewNop())
	s.PutBasePool(&storage.BasePool{ID: "3"})
	s.PutBasePool(&storage.BasePool{ID: "1"})
	s.PutBasePool(&storage.BasePool{ID: "2"})

	order := make([]string, 0, 3)
	s.ForEachBasePool(func(p *storage.BasePool) {
		order = append(order, p.ID)
	})
	assert.Equal(t, []string{"3", "1", "2"}, order)
}

func Test_BasePoolByCid(t *testing.T) {
	s := NewEntityStore(zap.NewNop())
	s.PutBasePool(&storage.BasePool{ID: "1", Cid: 10})
	s.PutBasePool(&storage.BasePool{ID: "2", Cid: 20})

	pool, ok := s.BasePoolByCid(20)
	assert.True(t, ok)
	assert.Equal(t, "2", pool.ID)

	_, ok = s.BasePoolByCid(99)
	assert.False(t, ok)
}

func Test_SnapshotAppends(t *testing.T) {
	s := NewEntityStore(zap.NewNop())
	s.AppendGlobalStateSnapshot(&storage.GlobalStateSnapshot{Height: 5})
	s.AppendWorkerSnapshot(&storage.WorkerSnapshot{WorkerID: "w1"})

	cs := s.BuildChangeSet()
	assert.Len(t, cs.GlobalStateSnapshots, 1)
	assert.Len(t, cs.WorkerSnapshots, 1)

	cs = s.BuildChangeSet()
	assert.Empty(t, cs.GlobalStateSnapshots)
	assert.Empty(t, cs.WorkerSnapshots)
}
