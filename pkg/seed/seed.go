package seed

import (
	"encoding/json"
	"os"
	"time"

	"github.com/pkg/errors"
	"github.com/poolhouse-labs/stakewatch/pkg/numeric"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/poolledger"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/store"
	"github.com/poolhouse-labs/stakewatch/pkg/projection/workers"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Dump is a point-in-time export of chain storage, used to bootstrap the
// projection when the event stream does not start at genesis. Amounts are
// already in balance units, not plank.
type Dump struct {
	Timestamp  int64           `json:"timestamp"`
	Height     uint64          `json:"height"`
	BasePools  []*PoolDump     `json:"basePools"`
	Workers    []*WorkerDump   `json:"workers"`
	Sessions   []*SessionDump  `json:"sessions"`
	Identities []*IdentityDump `json:"identities"`
	Nfts       []*NftDump      `json:"nfts"`
}

type PoolDump struct {
	Pid                  string            `json:"pid"`
	Kind                 storage.PoolKind  `json:"kind"`
	Cid                  uint32            `json:"cid"`
	OwnerID              string            `json:"owner"`
	AccountID            string            `json:"account"`
	Commission           decimal.Decimal   `json:"commission"`
	Capacity             *decimal.Decimal  `json:"capacity"`
	FreeValue            decimal.Decimal   `json:"freeValue"`
	ReleasingValue       decimal.Decimal   `json:"releasingValue"`
	TotalShares          decimal.Decimal   `json:"totalShares"`
	TotalValue           decimal.Decimal   `json:"totalValue"`
	ClaimableOwnerShares decimal.Decimal   `json:"claimableOwnerShares"`
	WhitelistEnabled     bool              `json:"whitelistEnabled"`
	Whitelist            []string          `json:"whitelist"`
	Delegations          []*DelegationDump `json:"delegations"`
}

type DelegationDump struct {
	AccountID string          `json:"account"`
	Shares    decimal.Decimal `json:"shares"`
	Cost      decimal.Decimal `json:"cost"`
	NftID     *string         `json:"nftId"`
}

type WorkerDump struct {
	ID              string  `json:"id"`
	ConfidenceLevel uint32  `json:"confidenceLevel"`
	InitialScore    *int64  `json:"initialScore"`
	StakePoolID     *string `json:"stakePool"`
	SessionID       *string `json:"session"`
}

type SessionDump struct {
	ID       string              `json:"id"`
	WorkerID *string             `json:"worker"`
	State    storage.WorkerState `json:"state"`
	V        decimal.Decimal     `json:"v"`
	Ve       decimal.Decimal     `json:"ve"`
	PInit    int64               `json:"pInit"`
	PInstant int64               `json:"pInstant"`
	Stake    decimal.Decimal     `json:"stake"`
}

type IdentityDump struct {
	AccountID string                     `json:"account"`
	Display   *string                    `json:"display"`
	Judgement *storage.IdentityJudgement `json:"judgement"`
}

type NftDump struct {
	Cid      uint32 `json:"cid"`
	NftID    uint32 `json:"nftId"`
	OwnerID  string `json:"owner"`
	MintTime int64  `json:"mintTime"`
}

func Load(path string) (*Dump, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open seed file %s", path)
	}
	defer f.Close()

	dump := &Dump{}
	if err := json.NewDecoder(f).Decode(dump); err != nil {
		return nil, errors.Wrapf(err, "failed to decode seed file %s", path)
	}
	return dump, nil
}

// Apply folds the dump into an empty store. Call only when no global state
// exists yet; seeding over live state would corrupt the projection.
func Apply(s *store.EntityStore, dump *Dump, logger *zap.Logger) error {
	if s.HasGlobalState() {
		return errors.New("refusing to seed over existing global state")
	}

	global := s.Global()
	global.Height = dump.Height

	seedTime := time.UnixMilli(dump.Timestamp).UTC()
	for _, pd := range dump.BasePools {
		if err := applyPool(s, pd, seedTime); err != nil {
			return err
		}
	}

	for _, sd := range dump.Sessions {
		session := &storage.Session{
			ID:       sd.ID,
			IsBound:  sd.WorkerID != nil,
			WorkerID: sd.WorkerID,
			State:    sd.State,
			V:        sd.V,
			Ve:       sd.Ve,
			PInit:    sd.PInit,
			PInstant: sd.PInstant,
			Stake:    sd.Stake,
		}
		s.PutSession(session)
	}

	for _, wd := range dump.Workers {
		worker := &storage.Worker{
			ID:              wd.ID,
			ConfidenceLevel: wd.ConfidenceLevel,
			InitialScore:    wd.InitialScore,
			StakePoolID:     wd.StakePoolID,
			SessionID:       wd.SessionID,
		}
		if wd.SessionID != nil {
			if session, ok := s.Session(*wd.SessionID); ok {
				session.WorkerID = &worker.ID
				session.IsBound = true
				session.StakePoolID = wd.StakePoolID
				workers.UpdateShares(worker, session, session.PInit)
				if worker.Shares != nil && session.State == storage.WorkerStateWorkerIdle {
					if sp, ok := s.StakePool(derefOr(wd.StakePoolID)); ok {
						sp.IdleWorkerShares = sp.IdleWorkerShares.Add(*worker.Shares)
						sp.IdleWorkerCount++
						global.IdleWorkerShares = global.IdleWorkerShares.Add(*worker.Shares)
						global.IdleWorkerCount++
					}
				}
			}
		}
		if wd.StakePoolID != nil {
			if sp, ok := s.StakePool(*wd.StakePoolID); ok {
				sp.WorkerCount++
				global.WorkerCount++
			}
		}
		s.PutWorker(worker)
	}

	for _, id := range dump.Identities {
		account := s.Account(id.AccountID)
		account.IdentityDisplay = id.Display
		account.IdentityLevel = id.Judgement
	}

	for _, nd := range dump.Nfts {
		s.PutNft(&storage.Nft{
			ID:       storage.NftID(nd.Cid, nd.NftID),
			Cid:      nd.Cid,
			NftID:    nd.NftID,
			OwnerID:  nd.OwnerID,
			MintTime: time.UnixMilli(nd.MintTime).UTC(),
		})
	}

	logger.Sugar().Infow("Applied seed dump",
		zap.Uint64("height", dump.Height),
		zap.Int("pools", len(dump.BasePools)),
		zap.Int("workers", len(dump.Workers)),
		zap.Int("sessions", len(dump.Sessions)),
	)
	return nil
}

func applyPool(s *store.EntityStore, pd *PoolDump, now time.Time) error {
	creation := poolledger.CreatePool(pd.Kind, poolledger.PoolIdentity{
		Pid:           pd.Pid,
		Cid:           pd.Cid,
		OwnerID:       pd.OwnerID,
		PoolAccountID: pd.AccountID,
	}, now)
	pool := creation.BasePool
	pool.Commission = pd.Commission
	pool.FreeValue = pd.FreeValue
	pool.ReleasingValue = pd.ReleasingValue
	pool.TotalShares = pd.TotalShares
	pool.TotalValue = pd.TotalValue
	pool.WhitelistEnabled = pd.WhitelistEnabled
	poolledger.UpdateSharePrice(pool)

	switch pd.Kind {
	case storage.PoolKindStakePool:
		creation.StakePool.Capacity = pd.Capacity
	case storage.PoolKindVault:
		creation.Vault.ClaimableOwnerShares = pd.ClaimableOwnerShares
	default:
		return errors.Errorf("unknown pool kind %s in seed dump", pd.Kind)
	}

	s.Account(pd.OwnerID)
	s.Account(pd.AccountID)
	creation.Insert(s)

	if creation.StakePool != nil {
		poolledger.UpdateDelegable(pool, creation.StakePool)
	}

	for _, dd := range pd.Delegations {
		s.Account(dd.AccountID)
		del := &storage.Delegation{
			ID:              storage.DelegationID(pd.Pid, dd.AccountID),
			AccountID:       dd.AccountID,
			PoolID:          pd.Pid,
			Shares:          dd.Shares,
			Value:           numeric.RoundBalance(dd.Shares.Mul(pool.SharePrice)),
			Cost:            dd.Cost,
			DelegationNftID: dd.NftID,
		}
		s.PutDelegation(del)
	}

	for _, accountID := range pd.Whitelist {
		s.PutWhitelist(&storage.Whitelist{
			ID:        storage.WhitelistID(pd.Pid, accountID),
			AccountID: accountID,
			PoolID:    pd.Pid,
		})
	}
	return nil
}

func derefOr(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
