package _202508011210_snapshotTables

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS global_state_snapshots (
			id serial primary key,
			timestamp timestamp with time zone not null,
			height bigint not null,
			total_value numeric not null default 0,
			average_block_time_ms bigint not null default 0,
			idle_worker_shares numeric not null default 0,
			idle_worker_count int not null default 0,
			worker_count int not null default 0,
			cumulative_rewards numeric not null default 0,
			average_apr_multiplier numeric not null default 0,
			average_apr numeric not null default 0,
			budget_per_share numeric not null default 0,
			delegator_count int not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_global_state_snapshots_timestamp ON global_state_snapshots (timestamp)`,
		`CREATE TABLE IF NOT EXISTS base_pool_snapshots (
			id serial primary key,
			pool_id varchar not null,
			timestamp timestamp with time zone not null,
			commission numeric not null default 0,
			apr_multiplier numeric not null default 0,
			total_shares numeric not null default 0,
			total_value numeric not null default 0,
			share_price numeric not null default 1,
			free_value numeric not null default 0,
			releasing_value numeric not null default 0,
			withdrawing_value numeric not null default 0,
			delegator_count int not null default 0,
			worker_count int not null default 0,
			idle_worker_shares numeric not null default 0,
			cumulative_rewards numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_base_pool_snapshots_pool_id_timestamp ON base_pool_snapshots (pool_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS account_snapshots (
			id serial primary key,
			account_id varchar not null,
			timestamp timestamp with time zone not null,
			stake_pool_value numeric not null default 0,
			vault_value numeric not null default 0,
			cumulative_rewards numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_account_snapshots_account_id_timestamp ON account_snapshots (account_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS delegation_snapshots (
			id serial primary key,
			delegation_id varchar not null,
			timestamp timestamp with time zone not null,
			shares numeric not null default 0,
			value numeric not null default 0,
			cost numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delegation_snapshots_delegation_id_timestamp ON delegation_snapshots (delegation_id, timestamp)`,
		`CREATE TABLE IF NOT EXISTS worker_snapshots (
			id serial primary key,
			worker_id varchar not null,
			timestamp timestamp with time zone not null,
			session_id varchar,
			stake_pool_id varchar,
			state varchar,
			shares numeric,
			v numeric not null default 0,
			p_init bigint not null default 0,
			p_instant bigint not null default 0,
			total_reward numeric not null default 0,
			stake numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_worker_snapshots_worker_id_timestamp ON worker_snapshots (worker_id, timestamp)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202508011210_snapshotTables"
}
