package postgres

import (
	"errors"
	"fmt"

	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const insertBatchSize = 1000

// PostgresPersistence stores the projection in postgres through gorm. Every
// batch commits in one transaction so a crash can never leave a half-applied
// batch behind.
type PostgresPersistence struct {
	Db     *gorm.DB
	Logger *zap.Logger
}

func NewPostgresPersistence(db *gorm.DB, l *zap.Logger) *PostgresPersistence {
	return &PostgresPersistence{
		Db:     db,
		Logger: l,
	}
}

func (p *PostgresPersistence) LoadDataset() (*storage.Dataset, error) {
	ds := &storage.Dataset{}

	var global storage.GlobalState
	res := p.Db.First(&global, "id = ?", storage.GlobalStateID)
	if res.Error != nil {
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load global state: %w", res.Error)
		}
		// No global state row means a fresh projection; entity tables are
		// empty too.
		return ds, nil
	}
	ds.GlobalState = &global

	if res := p.Db.Order("id asc").Find(&ds.Accounts); res.Error != nil {
		return nil, fmt.Errorf("failed to load accounts: %w", res.Error)
	}
	if res := p.Db.Order("id asc").Find(&ds.BasePools); res.Error != nil {
		return nil, fmt.Errorf("failed to load base pools: %w", res.Error)
	}
	if res := p.Db.Order("pool_id asc").Find(&ds.StakePools); res.Error != nil {
		return nil, fmt.Errorf("failed to load stake pools: %w", res.Error)
	}
	if res := p.Db.Order("pool_id asc").Find(&ds.Vaults); res.Error != nil {
		return nil, fmt.Errorf("failed to load vaults: %w", res.Error)
	}
	if res := p.Db.Order("id asc").Find(&ds.Delegations); res.Error != nil {
		return nil, fmt.Errorf("failed to load delegations: %w", res.Error)
	}
	if res := p.Db.Order("id asc").Find(&ds.Workers); res.Error != nil {
		return nil, fmt.Errorf("failed to load workers: %w", res.Error)
	}
	if res := p.Db.Order("id asc").Find(&ds.Sessions); res.Error != nil {
		return nil, fmt.Errorf("failed to load sessions: %w", res.Error)
	}
	if res := p.Db.Order("id asc").Find(&ds.Nfts); res.Error != nil {
		return nil, fmt.Errorf("failed to load nfts: %w", res.Error)
	}
	if res := p.Db.Order("id asc").Find(&ds.Whitelists); res.Error != nil {
		return nil, fmt.Errorf("failed to load whitelists: %w", res.Error)
	}

	var latestSnap storage.GlobalStateSnapshot
	res = p.Db.Order("timestamp desc").First(&latestSnap)
	if res.Error != nil {
		if !errors.Is(res.Error, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("failed to load latest global snapshot: %w", res.Error)
		}
	} else {
		ds.LatestGlobalStateSnapshot = &latestSnap
	}

	return ds, nil
}

func upsertAll(tx *gorm.DB) *gorm.DB {
	return tx.Clauses(clause.OnConflict{UpdateAll: true})
}

func (p *PostgresPersistence) CommitBatch(cs *storage.ChangeSet) error {
	return p.Db.Transaction(func(tx *gorm.DB) error {
		if cs.GlobalState != nil {
			if res := upsertAll(tx).Create(cs.GlobalState); res.Error != nil {
				return fmt.Errorf("failed to upsert global state: %w", res.Error)
			}
		}
		if len(cs.Accounts) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.Accounts, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert accounts: %w", res.Error)
			}
		}
		if len(cs.BasePools) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.BasePools, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert base pools: %w", res.Error)
			}
		}
		if len(cs.StakePools) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.StakePools, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert stake pools: %w", res.Error)
			}
		}
		if len(cs.Vaults) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.Vaults, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert vaults: %w", res.Error)
			}
		}
		if len(cs.Delegations) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.Delegations, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert delegations: %w", res.Error)
			}
		}
		if len(cs.Workers) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.Workers, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert workers: %w", res.Error)
			}
		}
		if len(cs.Sessions) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.Sessions, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert sessions: %w", res.Error)
			}
		}
		if len(cs.Nfts) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.Nfts, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert nfts: %w", res.Error)
			}
		}
		if len(cs.Whitelists) > 0 {
			if res := upsertAll(tx).CreateInBatches(cs.Whitelists, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to upsert whitelists: %w", res.Error)
			}
		}
		if len(cs.WhitelistDeletes) > 0 {
			if res := tx.Delete(&storage.Whitelist{}, "id IN ?", cs.WhitelistDeletes); res.Error != nil {
				return fmt.Errorf("failed to delete whitelists: %w", res.Error)
			}
		}

		if len(cs.GlobalStateSnapshots) > 0 {
			if res := tx.CreateInBatches(cs.GlobalStateSnapshots, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to insert global state snapshots: %w", res.Error)
			}
		}
		if len(cs.BasePoolSnapshots) > 0 {
			if res := tx.CreateInBatches(cs.BasePoolSnapshots, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to insert base pool snapshots: %w", res.Error)
			}
		}
		if len(cs.AccountSnapshots) > 0 {
			if res := tx.CreateInBatches(cs.AccountSnapshots, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to insert account snapshots: %w", res.Error)
			}
		}
		if len(cs.DelegationSnapshots) > 0 {
			if res := tx.CreateInBatches(cs.DelegationSnapshots, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to insert delegation snapshots: %w", res.Error)
			}
		}
		if len(cs.WorkerSnapshots) > 0 {
			if res := tx.CreateInBatches(cs.WorkerSnapshots, insertBatchSize); res.Error != nil {
				return fmt.Errorf("failed to insert worker snapshots: %w", res.Error)
			}
		}

		if cs.StateRoot != nil {
			if res := upsertAll(tx).Create(cs.StateRoot); res.Error != nil {
				return fmt.Errorf("failed to upsert state root: %w", res.Error)
			}
		}
		return nil
	})
}
