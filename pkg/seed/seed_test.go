package seed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func sampleDump() *Dump {
	pid := "1"
	sessionID := "s1"
	capacity := decimal.NewFromInt(1000)
	return &Dump{
		Timestamp: 1700000000000,
		Height:    500,
		BasePools: []*PoolDump{
			{
				Pid:         "1",
				Kind:        storage.PoolKindStakePool,
				Cid:         10,
				OwnerID:     "alice",
				AccountID:   "pool-1",
				Commission:  decimal.NewFromFloat(0.1),
				Capacity:    &capacity,
				FreeValue:   decimal.NewFromInt(80),
				TotalShares: decimal.NewFromInt(100),
				TotalValue:  decimal.NewFromInt(150),
				Whitelist:   []string{"carol"},
				Delegations: []*DelegationDump{
					{AccountID: "carol", Shares: decimal.NewFromInt(100), Cost: decimal.NewFromInt(100)},
				},
			},
			{
				Pid:                  "2",
				Kind:                 storage.PoolKindVault,
				Cid:                  20,
				OwnerID:              "bob",
				AccountID:            "pool-2",
				TotalShares:          decimal.NewFromInt(50),
				TotalValue:           decimal.NewFromInt(50),
				ClaimableOwnerShares: decimal.NewFromInt(5),
			},
		},
		Sessions: []*SessionDump{
			{ID: sessionID, State: storage.WorkerStateWorkerIdle, V: decimal.NewFromInt(30), Ve: decimal.NewFromInt(30), PInit: 350, PInstant: 350, Stake: decimal.NewFromInt(20)},
		},
		Workers: []*WorkerDump{
			{ID: "w1", ConfidenceLevel: 1, StakePoolID: &pid, SessionID: &sessionID},
		},
		Identities: []*IdentityDump{
			{AccountID: "alice", Display: strPtr("Alice")},
		},
		Nfts: []*NftDump{
			{Cid: 10, NftID: 1, OwnerID: "carol", MintTime: 1699990000000},
		},
	}
}

func strPtr(s string) *string { return &s }

func Test_Apply(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	err := Apply(s, sampleDump(), zap.NewNop())
	assert.Nil(t, err)

	t.Run("Should set the starting height", func(t *testing.T) {
		assert.Equal(t, uint64(500), s.Global().Height)
	})

	t.Run("Should materialize pools with derived prices", func(t *testing.T) {
		pool, ok := s.BasePool("1")
		assert.True(t, ok)
		assert.True(t, pool.SharePrice.Equal(decimal.NewFromFloat(1.5)))

		sp, ok := s.StakePool("1")
		assert.True(t, ok)
		assert.NotNil(t, sp.Capacity)
		assert.NotNil(t, sp.Delegable)
		// 1000 capacity minus 150 value.
		assert.True(t, sp.Delegable.Equal(decimal.NewFromInt(850)))

		vault, ok := s.Vault("2")
		assert.True(t, ok)
		assert.True(t, vault.ClaimableOwnerShares.Equal(decimal.NewFromInt(5)))
	})

	t.Run("Should value delegations at the seeded price", func(t *testing.T) {
		del, ok := s.Delegation(storage.DelegationID("1", "carol"))
		assert.True(t, ok)
		assert.True(t, del.Value.Equal(decimal.NewFromInt(150)))
	})

	t.Run("Should bind workers and fold idle shares", func(t *testing.T) {
		worker, ok := s.Worker("w1")
		assert.True(t, ok)
		assert.NotNil(t, worker.Shares)
		// v=30, p=350, cs=1 scores to 40.
		assert.True(t, worker.Shares.Equal(decimal.NewFromInt(40)))

		session, _ := s.Session("s1")
		assert.True(t, session.IsBound)
		assert.Equal(t, "w1", *session.WorkerID)

		sp, _ := s.StakePool("1")
		assert.True(t, sp.IdleWorkerShares.Equal(decimal.NewFromInt(40)))
		assert.Equal(t, 1, sp.IdleWorkerCount)
		assert.Equal(t, 1, sp.WorkerCount)

		global := s.Global()
		assert.True(t, global.IdleWorkerShares.Equal(decimal.NewFromInt(40)))
		assert.Equal(t, 1, global.WorkerCount)
	})

	t.Run("Should seed whitelist entries", func(t *testing.T) {
		_, ok := s.Whitelist(storage.WhitelistID("1", "carol"))
		assert.True(t, ok)
	})

	t.Run("Should seed identities", func(t *testing.T) {
		alice := s.Account("alice")
		assert.NotNil(t, alice.IdentityDisplay)
		assert.Equal(t, "Alice", *alice.IdentityDisplay)
	})

	t.Run("Should seed nfts", func(t *testing.T) {
		nft, ok := s.Nft(storage.NftID(10, 1))
		assert.True(t, ok)
		assert.Equal(t, "carol", nft.OwnerID)
	})
}

func Test_ApplyRefusesLiveState(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	s.Hydrate(&storage.Dataset{GlobalState: &storage.GlobalState{ID: storage.GlobalStateID, Height: 10}})

	err := Apply(s, sampleDump(), zap.NewNop())
	assert.NotNil(t, err)
}

func Test_Load(t *testing.T) {
	t.Run("Should decode a dump file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "seed.json")
		payload := `{"timestamp":1700000000000,"height":500,"basePools":[{"pid":"1","kind":"StakePool","cid":10,"owner":"alice","account":"pool-1","commission":"0","freeValue":"0","releasingValue":"0","totalShares":"0","totalValue":"0","claimableOwnerShares":"0"}]}`
		assert.Nil(t, os.WriteFile(path, []byte(payload), 0o644))

		dump, err := Load(path)
		assert.Nil(t, err)
		assert.Equal(t, uint64(500), dump.Height)
		assert.Len(t, dump.BasePools, 1)
		assert.Equal(t, storage.PoolKindStakePool, dump.BasePools[0].Kind)
	})

	t.Run("Should fail on a missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
		assert.NotNil(t, err)
	})
}
