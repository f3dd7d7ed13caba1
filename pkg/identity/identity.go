package identity

import (
	"context"

	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"go.uber.org/zap"
)

// Record is one resolved on-chain identity.
type Record struct {
	AccountID string                     `json:"account"`
	Display   *string                    `json:"display"`
	Judgement *storage.IdentityJudgement `json:"judgement"`
}

// Client resolves identities for the accounts an event batch touched. The
// projection only learns WHICH accounts changed from the event stream; the
// display name and judgement live in chain storage and are fetched through
// this collaborator.
type Client interface {
	FetchIdentities(ctx context.Context, accountIDs []string) ([]*Record, error)
}

// NoopClient is used when no identity endpoint is configured. Accounts keep
// nil identity fields.
type NoopClient struct{}

func (NoopClient) FetchIdentities(_ context.Context, _ []string) ([]*Record, error) {
	return nil, nil
}

// Merge applies fetched identity records onto their accounts.
func Merge(s *store.EntityStore, records []*Record, logger *zap.Logger) {
	for _, rec := range records {
		account := s.Account(rec.AccountID)
		account.IdentityDisplay = rec.Display
		account.IdentityLevel = rec.Judgement
	}
	if len(records) > 0 {
		logger.Sugar().Debugw("Merged identity records", zap.Int("count", len(records)))
	}
}
