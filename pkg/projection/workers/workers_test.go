package workers

import (
	"testing"

	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func Test_ConfidenceScore(t *testing.T) {
	t.Run("Should map known levels", func(t *testing.T) {
		for _, level := range []uint32{1, 2, 3} {
			cs, ok := ConfidenceScore(level)
			assert.True(t, ok)
			assert.True(t, cs.Equal(decimal.NewFromInt(1)))
		}
		cs, ok := ConfidenceScore(4)
		assert.True(t, ok)
		assert.True(t, cs.Equal(decimal.NewFromFloat(0.8)))

		cs, ok = ConfidenceScore(5)
		assert.True(t, ok)
		assert.True(t, cs.Equal(decimal.NewFromFloat(0.7)))
	})
	t.Run("Should have no score outside 1..5", func(t *testing.T) {
		_, ok := ConfidenceScore(0)
		assert.False(t, ok)
		_, ok = ConfidenceScore(6)
		assert.False(t, ok)
	})
}

func Test_Score(t *testing.T) {
	t.Run("Should compute sqrt of v squared plus performance term", func(t *testing.T) {
		// v=30, p=350, cs=1: sqrt(900 + 700) = sqrt(1600) = 40
		score, ok := Score(decimal.NewFromInt(30), 350, 1)
		assert.True(t, ok)
		assert.True(t, score.Equal(decimal.NewFromInt(40)), score.String())
	})
	t.Run("Should weight by squared confidence score", func(t *testing.T) {
		// v=0, p=800, cs=0.8: sqrt(2*800*0.64) = sqrt(1024) = 32
		score, ok := Score(decimal.Zero, 800, 4)
		assert.True(t, ok)
		assert.True(t, score.Equal(decimal.NewFromInt(32)), score.String())
	})
	t.Run("Should refuse unknown confidence levels", func(t *testing.T) {
		_, ok := Score(decimal.NewFromInt(30), 350, 0)
		assert.False(t, ok)
	})
}

func Test_UpdateShares(t *testing.T) {
	t.Run("Should set shares for a scoreable worker", func(t *testing.T) {
		worker := &storage.Worker{ID: "w1", ConfidenceLevel: 1}
		session := &storage.Session{ID: "s1", V: decimal.NewFromInt(30)}
		UpdateShares(worker, session, 350)
		assert.NotNil(t, worker.Shares)
		assert.True(t, worker.Shares.Equal(decimal.NewFromInt(40)))
	})
	t.Run("Should leave shares untouched without a confidence score", func(t *testing.T) {
		worker := &storage.Worker{ID: "w1", ConfidenceLevel: 0}
		session := &storage.Session{ID: "s1", V: decimal.NewFromInt(30)}
		UpdateShares(worker, session, 350)
		assert.Nil(t, worker.Shares)
	})
}

func Test_SharesOrZero(t *testing.T) {
	worker := &storage.Worker{ID: "w1"}
	assert.True(t, SharesOrZero(worker).IsZero())

	shares := decimal.NewFromInt(40)
	worker.Shares = &shares
	assert.True(t, SharesOrZero(worker).Equal(shares))
}
