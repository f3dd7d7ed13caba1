package _202508011200_bootstrapProjection

import (
	"database/sql"

	"gorm.io/gorm"
)

type Migration struct {
}

func (m *Migration) Up(db *sql.DB, grm *gorm.DB) error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS accounts (
			id varchar primary key,
			identity_display varchar,
			identity_level varchar,
			stake_pool_value numeric not null default 0,
			stake_pool_nft_count int not null default 0,
			stake_pool_avg_apr_multiplier numeric not null default 0,
			vault_value numeric not null default 0,
			vault_nft_count int not null default 0,
			vault_avg_apr_multiplier numeric not null default 0,
			cumulative_stake_pool_owner_rewards numeric not null default 0,
			cumulative_vault_owner_rewards numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS base_pools (
			id varchar primary key,
			kind varchar not null,
			cid bigint not null,
			owner_id varchar not null,
			account_id varchar not null,
			commission numeric not null default 0,
			total_shares numeric not null default 0,
			total_value numeric not null default 0,
			share_price numeric not null default 1,
			free_value numeric not null default 0,
			releasing_value numeric not null default 0,
			withdrawing_shares numeric not null default 0,
			withdrawing_value numeric not null default 0,
			delegator_count int not null default 0,
			whitelist_enabled boolean not null default false,
			apr_multiplier numeric not null default 0,
			cumulative_owner_rewards numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_base_pools_cid ON base_pools (cid)`,
		`CREATE INDEX IF NOT EXISTS idx_base_pools_owner_id ON base_pools (owner_id)`,
		`CREATE TABLE IF NOT EXISTS stake_pools (
			pool_id varchar primary key,
			capacity numeric,
			delegable numeric,
			owner_reward numeric not null default 0,
			worker_count int not null default 0,
			idle_worker_count int not null default 0,
			idle_worker_shares numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS vaults (
			pool_id varchar primary key,
			last_share_price_checkpoint numeric not null default 1,
			claimable_owner_shares numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS delegations (
			id varchar primary key,
			account_id varchar not null,
			pool_id varchar not null,
			shares numeric not null default 0,
			value numeric not null default 0,
			withdrawing_shares numeric not null default 0,
			withdrawing_value numeric not null default 0,
			withdrawal_start_time timestamp with time zone,
			cost numeric not null default 0,
			delegation_nft_id varchar,
			withdrawal_nft_id varchar,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_delegations_account_id ON delegations (account_id)`,
		`CREATE INDEX IF NOT EXISTS idx_delegations_pool_id ON delegations (pool_id)`,
		`CREATE TABLE IF NOT EXISTS workers (
			id varchar primary key,
			confidence_level bigint not null default 0,
			initial_score bigint,
			stake_pool_id varchar,
			session_id varchar,
			shares numeric,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id varchar primary key,
			is_bound boolean not null default false,
			worker_id varchar,
			stake_pool_id varchar,
			state varchar not null,
			v numeric not null default 0,
			ve numeric not null default 0,
			p_init bigint not null default 0,
			p_instant bigint not null default 0,
			total_reward numeric not null default 0,
			cooling_down_start_time timestamp with time zone,
			stake numeric not null default 0,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS nfts (
			id varchar primary key,
			cid bigint not null,
			nft_id bigint not null,
			owner_id varchar not null,
			burned boolean not null default false,
			mint_time timestamp with time zone,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE TABLE IF NOT EXISTS whitelists (
			id varchar primary key,
			account_id varchar not null,
			pool_id varchar not null,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
		`CREATE INDEX IF NOT EXISTS idx_whitelists_pool_id ON whitelists (pool_id)`,
		`CREATE TABLE IF NOT EXISTS global_states (
			id varchar primary key,
			height bigint not null default 0,
			total_value numeric not null default 0,
			average_block_time_ms bigint not null default 0,
			last_recorded_block_height bigint not null default 0,
			last_recorded_block_time timestamp with time zone,
			idle_worker_shares numeric not null default 0,
			idle_worker_count int not null default 0,
			worker_count int not null default 0,
			cumulative_rewards numeric not null default 0,
			budget_per_block numeric not null default 0,
			treasury_ratio numeric not null default 0,
			v_max numeric not null default 0,
			re numeric not null default 0,
			k numeric not null default 0,
			pha_rate numeric not null default 0,
			tokenomic_updated_time timestamp with time zone,
			average_apr_multiplier numeric not null default 0,
			average_apr numeric not null default 0,
			budget_per_share numeric not null default 0,
			delegator_count int not null default 0,
			snapshot_updated_time timestamp with time zone,
			withdrawal_dust_cleared boolean not null default false,
			created_at timestamp with time zone DEFAULT current_timestamp,
			updated_at timestamp with time zone DEFAULT current_timestamp
		)`,
	}
	for _, query := range queries {
		if res := grm.Exec(query); res.Error != nil {
			return res.Error
		}
	}
	return nil
}

func (m *Migration) GetName() string {
	return "202508011200_bootstrapProjection"
}
