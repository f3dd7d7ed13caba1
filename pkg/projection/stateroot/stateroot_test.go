package stateroot

import (
	"strings"
	"testing"

	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func sampleChangeSet() *storage.ChangeSet {
	return &storage.ChangeSet{
		GlobalState: &storage.GlobalState{
			ID:         storage.GlobalStateID,
			Height:     100,
			TotalValue: decimal.NewFromInt(500),
		},
		Accounts: []*storage.Account{
			{ID: "alice"},
			{ID: "bob"},
		},
		BasePools: []*storage.BasePool{
			{ID: "1", Kind: storage.PoolKindStakePool, SharePrice: decimal.NewFromInt(1)},
		},
	}
}

func Test_Generate(t *testing.T) {
	t.Run("Should produce a hex encoded root", func(t *testing.T) {
		root, err := Generate(100, sampleChangeSet())
		assert.Nil(t, err)
		assert.True(t, strings.HasPrefix(root, "0x"))
		assert.Equal(t, 66, len(root))
	})

	t.Run("Should be deterministic", func(t *testing.T) {
		a, err := Generate(100, sampleChangeSet())
		assert.Nil(t, err)
		b, err := Generate(100, sampleChangeSet())
		assert.Nil(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("Should change with the height", func(t *testing.T) {
		a, err := Generate(100, sampleChangeSet())
		assert.Nil(t, err)
		b, err := Generate(101, sampleChangeSet())
		assert.Nil(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should change with the data", func(t *testing.T) {
		a, err := Generate(100, sampleChangeSet())
		assert.Nil(t, err)

		mutated := sampleChangeSet()
		mutated.GlobalState.TotalValue = decimal.NewFromInt(501)
		b, err := Generate(100, mutated)
		assert.Nil(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should commit to whitelist deletes", func(t *testing.T) {
		a, err := Generate(100, sampleChangeSet())
		assert.Nil(t, err)

		withDelete := sampleChangeSet()
		withDelete.WhitelistDeletes = []string{"1-alice"}
		b, err := Generate(100, withDelete)
		assert.Nil(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("Should handle an empty change set", func(t *testing.T) {
		root, err := Generate(100, &storage.ChangeSet{})
		assert.Nil(t, err)
		assert.True(t, strings.HasPrefix(root, "0x"))
	})
}
