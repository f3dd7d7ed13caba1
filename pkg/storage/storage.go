package storage

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

type PoolKind string

const (
	PoolKindStakePool PoolKind = "StakePool"
	PoolKindVault     PoolKind = "Vault"
)

type WorkerState string

const (
	WorkerStateReady              WorkerState = "Ready"
	WorkerStateWorkerIdle         WorkerState = "WorkerIdle"
	WorkerStateWorkerUnresponsive WorkerState = "WorkerUnresponsive"
	WorkerStateWorkerCoolingDown  WorkerState = "WorkerCoolingDown"
)

type IdentityJudgement string

const (
	IdentityJudgementUnknown    IdentityJudgement = "Unknown"
	IdentityJudgementFeePaid    IdentityJudgement = "FeePaid"
	IdentityJudgementReasonable IdentityJudgement = "Reasonable"
	IdentityJudgementKnownGood  IdentityJudgement = "KnownGood"
	IdentityJudgementOutOfDate  IdentityJudgement = "OutOfDate"
	IdentityJudgementLowQuality IdentityJudgement = "LowQuality"
	IdentityJudgementErroneous  IdentityJudgement = "Erroneous"
)

func DelegationID(pid string, accountID string) string {
	return fmt.Sprintf("%s-%s", pid, accountID)
}

func NftID(cid uint32, nftID uint32) string {
	return fmt.Sprintf("%d-%d", cid, nftID)
}

func WhitelistID(pid string, accountID string) string {
	return fmt.Sprintf("%s-%s", pid, accountID)
}

// Tables.

type Account struct {
	ID                              string `gorm:"primaryKey"`
	IdentityDisplay                 *string
	IdentityLevel                   *IdentityJudgement
	StakePoolValue                  decimal.Decimal
	StakePoolNftCount               int
	StakePoolAvgAprMultiplier       decimal.Decimal
	VaultValue                      decimal.Decimal
	VaultNftCount                   int
	VaultAvgAprMultiplier           decimal.Decimal
	CumulativeStakePoolOwnerRewards decimal.Decimal
	CumulativeVaultOwnerRewards     decimal.Decimal
	CreatedAt                       time.Time
	UpdatedAt                       time.Time
}

type BasePool struct {
	ID                     string `gorm:"primaryKey"`
	Kind                   PoolKind
	Cid                    uint32
	OwnerID                string
	AccountID              string
	Commission             decimal.Decimal
	TotalShares            decimal.Decimal
	TotalValue             decimal.Decimal
	SharePrice             decimal.Decimal
	FreeValue              decimal.Decimal
	ReleasingValue         decimal.Decimal
	WithdrawingShares      decimal.Decimal
	WithdrawingValue       decimal.Decimal
	DelegatorCount         int
	WhitelistEnabled       bool
	AprMultiplier          decimal.Decimal
	CumulativeOwnerRewards decimal.Decimal
	CreatedAt              time.Time
	UpdatedAt              time.Time
}

type StakePool struct {
	PoolID           string `gorm:"primaryKey"`
	Capacity         *decimal.Decimal
	Delegable        *decimal.Decimal
	OwnerReward      decimal.Decimal
	WorkerCount      int
	IdleWorkerCount  int
	IdleWorkerShares decimal.Decimal
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type Vault struct {
	PoolID                   string `gorm:"primaryKey"`
	LastSharePriceCheckpoint decimal.Decimal
	ClaimableOwnerShares     decimal.Decimal
	CreatedAt                time.Time
	UpdatedAt                time.Time
}

type Delegation struct {
	ID                  string `gorm:"primaryKey"`
	AccountID           string
	PoolID              string
	Shares              decimal.Decimal
	Value               decimal.Decimal
	WithdrawingShares   decimal.Decimal
	WithdrawingValue    decimal.Decimal
	WithdrawalStartTime *time.Time
	Cost                decimal.Decimal
	DelegationNftID     *string
	WithdrawalNftID     *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

type Worker struct {
	ID              string `gorm:"primaryKey"`
	ConfidenceLevel uint32
	InitialScore    *int64
	StakePoolID     *string
	SessionID       *string
	Shares          *decimal.Decimal
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Session struct {
	ID                   string `gorm:"primaryKey"`
	IsBound              bool
	WorkerID             *string
	StakePoolID          *string
	State                WorkerState
	V                    decimal.Decimal
	Ve                   decimal.Decimal
	PInit                int64
	PInstant             int64
	TotalReward          decimal.Decimal
	CoolingDownStartTime *time.Time
	Stake                decimal.Decimal
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type Nft struct {
	ID        string `gorm:"primaryKey"`
	Cid       uint32
	NftID     uint32
	OwnerID   string
	Burned    bool
	MintTime  time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Whitelist struct {
	ID        string `gorm:"primaryKey"`
	AccountID string
	PoolID    string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// GlobalState is a singleton row keyed by GlobalStateID.
type GlobalState struct {
	ID                      string `gorm:"primaryKey"`
	Height                  uint64
	TotalValue              decimal.Decimal
	AverageBlockTimeMs      int64
	LastRecordedBlockHeight uint64
	LastRecordedBlockTime   time.Time
	IdleWorkerShares        decimal.Decimal
	IdleWorkerCount         int
	WorkerCount             int
	CumulativeRewards       decimal.Decimal
	BudgetPerBlock          decimal.Decimal
	TreasuryRatio           decimal.Decimal
	VMax                    decimal.Decimal
	Re                      decimal.Decimal
	K                       decimal.Decimal
	PhaRate                 decimal.Decimal
	TokenomicUpdatedTime    time.Time
	AverageAprMultiplier    decimal.Decimal
	AverageApr              decimal.Decimal
	BudgetPerShare          decimal.Decimal
	DelegatorCount          int
	SnapshotUpdatedTime     time.Time
	WithdrawalDustCleared   bool
	CreatedAt               time.Time
	UpdatedAt               time.Time
}

const GlobalStateID = "0"

// Snapshot tables. Append-only; never updated after insert.

type GlobalStateSnapshot struct {
	ID                   uint64 `gorm:"type:serial"`
	Timestamp            time.Time
	Height               uint64
	TotalValue           decimal.Decimal
	AverageBlockTimeMs   int64
	IdleWorkerShares     decimal.Decimal
	IdleWorkerCount      int
	WorkerCount          int
	CumulativeRewards    decimal.Decimal
	AverageAprMultiplier decimal.Decimal
	AverageApr           decimal.Decimal
	BudgetPerShare       decimal.Decimal
	DelegatorCount       int
	CreatedAt            time.Time
}

type BasePoolSnapshot struct {
	ID                uint64 `gorm:"type:serial"`
	PoolID            string
	Timestamp         time.Time
	Commission        decimal.Decimal
	AprMultiplier     decimal.Decimal
	TotalShares       decimal.Decimal
	TotalValue        decimal.Decimal
	SharePrice        decimal.Decimal
	FreeValue         decimal.Decimal
	ReleasingValue    decimal.Decimal
	WithdrawingValue  decimal.Decimal
	DelegatorCount    int
	WorkerCount       int
	IdleWorkerShares  decimal.Decimal
	CumulativeRewards decimal.Decimal
	CreatedAt         time.Time
}

type AccountSnapshot struct {
	ID                uint64 `gorm:"type:serial"`
	AccountID         string
	Timestamp         time.Time
	StakePoolValue    decimal.Decimal
	VaultValue        decimal.Decimal
	CumulativeRewards decimal.Decimal
	CreatedAt         time.Time
}

type DelegationSnapshot struct {
	ID           uint64 `gorm:"type:serial"`
	DelegationID string
	Timestamp    time.Time
	Shares       decimal.Decimal
	Value        decimal.Decimal
	Cost         decimal.Decimal
	CreatedAt    time.Time
}

type WorkerSnapshot struct {
	ID          uint64 `gorm:"type:serial"`
	WorkerID    string
	Timestamp   time.Time
	SessionID   *string
	StakePoolID *string
	State       WorkerState
	Shares      *decimal.Decimal
	V           decimal.Decimal
	PInit       int64
	PInstant    int64
	TotalReward decimal.Decimal
	Stake       decimal.Decimal
	CreatedAt   time.Time
}

// StateRoot is the merkle commitment over one committed change set.
type StateRoot struct {
	Height    uint64 `gorm:"primaryKey"`
	StateRoot string
	CreatedAt time.Time
}

// ChangeSet is the dirty set of one fully processed batch. Upserts are keyed
// by primary key; only whitelist removals delete rather than upsert.
type ChangeSet struct {
	GlobalState *GlobalState
	StateRoot   *StateRoot

	Accounts    []*Account
	BasePools   []*BasePool
	StakePools  []*StakePool
	Vaults      []*Vault
	Delegations []*Delegation
	Workers     []*Worker
	Sessions    []*Session
	Nfts        []*Nft
	Whitelists  []*Whitelist

	WhitelistDeletes []string

	GlobalStateSnapshots []*GlobalStateSnapshot
	BasePoolSnapshots    []*BasePoolSnapshot
	AccountSnapshots     []*AccountSnapshot
	DelegationSnapshots  []*DelegationSnapshot
	WorkerSnapshots      []*WorkerSnapshot
}

func (cs *ChangeSet) IsEmpty() bool {
	return cs.GlobalState == nil &&
		len(cs.Accounts) == 0 &&
		len(cs.BasePools) == 0 &&
		len(cs.StakePools) == 0 &&
		len(cs.Vaults) == 0 &&
		len(cs.Delegations) == 0 &&
		len(cs.Workers) == 0 &&
		len(cs.Sessions) == 0 &&
		len(cs.Nfts) == 0 &&
		len(cs.Whitelists) == 0 &&
		len(cs.WhitelistDeletes) == 0
}

// Dataset is the full projection as loaded from the persistence collaborator
// at startup.
type Dataset struct {
	GlobalState *GlobalState
	Accounts    []*Account
	BasePools   []*BasePool
	StakePools  []*StakePool
	Vaults      []*Vault
	Delegations []*Delegation
	Workers     []*Worker
	Sessions    []*Session
	Nfts        []*Nft
	Whitelists  []*Whitelist

	LatestGlobalStateSnapshot *GlobalStateSnapshot
}

// Persistence is the write side of the projection. Implementations must apply
// the whole ChangeSet atomically; a failed batch leaves the stored projection
// untouched.
type Persistence interface {
	LoadDataset() (*Dataset, error)
	CommitBatch(cs *ChangeSet) error
}
