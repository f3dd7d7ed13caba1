package identity

import (
	"testing"

	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func Test_Merge(t *testing.T) {
	s := store.NewEntityStore(zap.NewNop())
	display := "Carol"
	judgement := storage.IdentityJudgementReasonable

	Merge(s, []*Record{
		{AccountID: "carol", Display: &display, Judgement: &judgement},
		{AccountID: "dave"},
	}, zap.NewNop())

	carol := s.Account("carol")
	assert.Equal(t, "Carol", *carol.IdentityDisplay)
	assert.Equal(t, storage.IdentityJudgementReasonable, *carol.IdentityLevel)

	// A record with no resolved identity clears the fields.
	dave := s.Account("dave")
	assert.Nil(t, dave.IdentityDisplay)
	assert.Nil(t, dave.IdentityLevel)
}
