package events

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// Block tags every event with its originating block.
type Block struct {
	Height    uint64 `json:"height"`
	Timestamp uint64 `json:"timestamp"`
}

func (b Block) Time() time.Time {
	return time.UnixMilli(int64(b.Timestamp)).UTC()
}

type EventKind string

const (
	KindStakePoolCreated           EventKind = "StakePoolCreated"
	KindVaultCreated               EventKind = "VaultCreated"
	KindStakePoolCommissionSet     EventKind = "StakePoolCommissionSet"
	KindVaultCommissionSet         EventKind = "VaultCommissionSet"
	KindStakePoolCapacitySet       EventKind = "StakePoolCapacitySet"
	KindStakePoolWorkerAdded       EventKind = "StakePoolWorkerAdded"
	KindStakePoolWorkerRemoved     EventKind = "StakePoolWorkerRemoved"
	KindWorkingStarted             EventKind = "WorkingStarted"
	KindContribution               EventKind = "Contribution"
	KindWithdrawal                 EventKind = "Withdrawal"
	KindWithdrawalQueued           EventKind = "WithdrawalQueued"
	KindRewardReceived             EventKind = "RewardReceived"
	KindOwnerRewardsWithdrawn      EventKind = "OwnerRewardsWithdrawn"
	KindPoolWhitelistCreated       EventKind = "PoolWhitelistCreated"
	KindPoolWhitelistDeleted       EventKind = "PoolWhitelistDeleted"
	KindPoolWhitelistStakerAdded   EventKind = "PoolWhitelistStakerAdded"
	KindPoolWhitelistStakerRemoved EventKind = "PoolWhitelistStakerRemoved"
	KindVaultOwnerSharesGained     EventKind = "VaultOwnerSharesGained"
	KindVaultOwnerSharesClaimed    EventKind = "VaultOwnerSharesClaimed"
	KindSessionBound               EventKind = "SessionBound"
	KindSessionUnbound             EventKind = "SessionUnbound"
	KindWorkerStarted              EventKind = "WorkerStarted"
	KindWorkerStopped              EventKind = "WorkerStopped"
	KindWorkerReclaimed            EventKind = "WorkerReclaimed"
	KindWorkerEnterUnresponsive    EventKind = "WorkerEnterUnresponsive"
	KindWorkerExitUnresponsive     EventKind = "WorkerExitUnresponsive"
	KindSessionSettled             EventKind = "SessionSettled"
	KindBenchmarkUpdated           EventKind = "BenchmarkUpdated"
	KindTokenomicParametersChanged EventKind = "TokenomicParametersChanged"
	KindWorkerRegistered           EventKind = "WorkerRegistered"
	KindWorkerUpdated              EventKind = "WorkerUpdated"
	KindInitialScoreSet            EventKind = "InitialScoreSet"
	KindNftMinted                  EventKind = "NftMinted"
	KindNftBurned                  EventKind = "NftBurned"
	KindIdentitySet                EventKind = "IdentitySet"
	KindIdentityCleared            EventKind = "IdentityCleared"
	KindJudgementGiven             EventKind = "JudgementGiven"
)

// Args is implemented by every event payload type.
type Args interface {
	Kind() EventKind
}

// Event is one already-decoded, version-normalized domain event. Amount
// fields are raw plank integers; score and ratio fields are U64F64 bits.
// Handlers convert on ingest.
type Event struct {
	Name  EventKind `json:"name"`
	Block Block     `json:"block"`
	Args  Args      `json:"args"`
}

type StakePoolCreated struct {
	Pid           string `json:"pid"`
	Cid           uint32 `json:"cid"`
	OwnerID       string `json:"owner"`
	PoolAccountID string `json:"poolAccount"`
}

type VaultCreated struct {
	Pid           string `json:"pid"`
	Cid           uint32 `json:"cid"`
	OwnerID       string `json:"owner"`
	PoolAccountID string `json:"poolAccount"`
}

type StakePoolCommissionSet struct {
	Pid        string          `json:"pid"`
	Commission decimal.Decimal `json:"commission"`
}

type VaultCommissionSet struct {
	Pid        string          `json:"pid"`
	Commission decimal.Decimal `json:"commission"`
}

type StakePoolCapacitySet struct {
	Pid      string          `json:"pid"`
	Capacity decimal.Decimal `json:"capacity"`
}

type StakePoolWorkerAdded struct {
	Pid      string `json:"pid"`
	WorkerID string `json:"workerId"`
}

type StakePoolWorkerRemoved struct {
	Pid      string `json:"pid"`
	WorkerID string `json:"workerId"`
}

type WorkingStarted struct {
	Pid      string          `json:"pid"`
	WorkerID string          `json:"workerId"`
	Amount   decimal.Decimal `json:"amount"`
}

type Contribution struct {
	Pid       string          `json:"pid"`
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
	Shares    decimal.Decimal `json:"shares"`
	AsVault   *string         `json:"asVault,omitempty"`
}

type Withdrawal struct {
	Pid         string           `json:"pid"`
	AccountID   string           `json:"accountId"`
	Amount      decimal.Decimal  `json:"amount"`
	Shares      decimal.Decimal  `json:"shares"`
	BurntShares *decimal.Decimal `json:"burntShares,omitempty"`
	AsVault     *string          `json:"asVault,omitempty"`
}

type WithdrawalQueued struct {
	Pid       string          `json:"pid"`
	AccountID string          `json:"accountId"`
	Shares    decimal.Decimal `json:"shares"`
	NftID     *uint32         `json:"nftId,omitempty"`
	AsVault   *string         `json:"asVault,omitempty"`
}

type RewardReceived struct {
	Pid       string          `json:"pid"`
	ToOwner   decimal.Decimal `json:"toOwner"`
	ToStakers decimal.Decimal `json:"toStakers"`
}

type OwnerRewardsWithdrawn struct {
	Pid       string          `json:"pid"`
	AccountID string          `json:"accountId"`
	Amount    decimal.Decimal `json:"amount"`
}

type PoolWhitelistCreated struct {
	Pid string `json:"pid"`
}

type PoolWhitelistDeleted struct {
	Pid string `json:"pid"`
}

type PoolWhitelistStakerAdded struct {
	Pid       string `json:"pid"`
	AccountID string `json:"accountId"`
}

type PoolWhitelistStakerRemoved struct {
	Pid       string `json:"pid"`
	AccountID string `json:"accountId"`
}

type VaultOwnerSharesGained struct {
	Pid    string          `json:"pid"`
	Shares decimal.Decimal `json:"shares"`
}

type VaultOwnerSharesClaimed struct {
	Pid       string          `json:"pid"`
	AccountID string          `json:"accountId"`
	Shares    decimal.Decimal `json:"shares"`
}

type SessionBound struct {
	SessionID string `json:"sessionId"`
	WorkerID  string `json:"workerId"`
}

type SessionUnbound struct {
	SessionID string `json:"sessionId"`
	WorkerID  string `json:"workerId"`
}

type WorkerStarted struct {
	SessionID string          `json:"sessionId"`
	InitV     decimal.Decimal `json:"initV"`
	InitP     int64           `json:"initP"`
}

type WorkerStopped struct {
	SessionID string `json:"sessionId"`
}

type WorkerReclaimed struct {
	SessionID string `json:"sessionId"`
}

type WorkerEnterUnresponsive struct {
	SessionID string `json:"sessionId"`
}

type WorkerExitUnresponsive struct {
	SessionID string `json:"sessionId"`
}

type SessionSettled struct {
	SessionID string          `json:"sessionId"`
	VBits     decimal.Decimal `json:"vBits"`
	Payout    decimal.Decimal `json:"payout"`
}

type BenchmarkUpdated struct {
	SessionID string `json:"sessionId"`
	PInstant  int64  `json:"pInstant"`
}

type TokenomicParametersChanged struct{}

type WorkerRegistered struct {
	WorkerID        string `json:"workerId"`
	ConfidenceLevel uint32 `json:"confidenceLevel"`
}

type WorkerUpdated struct {
	WorkerID        string `json:"workerId"`
	ConfidenceLevel uint32 `json:"confidenceLevel"`
}

type InitialScoreSet struct {
	WorkerID     string `json:"workerId"`
	InitialScore int64  `json:"initialScore"`
}

type NftMinted struct {
	Cid     uint32 `json:"cid"`
	NftID   uint32 `json:"nftId"`
	OwnerID string `json:"owner"`
}

type NftBurned struct {
	Cid   uint32 `json:"cid"`
	NftID uint32 `json:"nftId"`
}

type IdentitySet struct {
	AccountID string `json:"accountId"`
}

type IdentityCleared struct {
	AccountID string `json:"accountId"`
}

type JudgementGiven struct {
	AccountID string `json:"accountId"`
}

func (StakePoolCreated) Kind() EventKind           { return KindStakePoolCreated }
func (VaultCreated) Kind() EventKind               { return KindVaultCreated }
func (StakePoolCommissionSet) Kind() EventKind     { return KindStakePoolCommissionSet }
func (VaultCommissionSet) Kind() EventKind         { return KindVaultCommissionSet }
func (StakePoolCapacitySet) Kind() EventKind       { return KindStakePoolCapacitySet }
func (StakePoolWorkerAdded) Kind() EventKind       { return KindStakePoolWorkerAdded }
func (StakePoolWorkerRemoved) Kind() EventKind     { return KindStakePoolWorkerRemoved }
func (WorkingStarted) Kind() EventKind             { return KindWorkingStarted }
func (Contribution) Kind() EventKind               { return KindContribution }
func (Withdrawal) Kind() EventKind                 { return KindWithdrawal }
func (WithdrawalQueued) Kind() EventKind           { return KindWithdrawalQueued }
func (RewardReceived) Kind() EventKind             { return KindRewardReceived }
func (OwnerRewardsWithdrawn) Kind() EventKind      { return KindOwnerRewardsWithdrawn }
func (PoolWhitelistCreated) Kind() EventKind       { return KindPoolWhitelistCreated }
func (PoolWhitelistDeleted) Kind() EventKind       { return KindPoolWhitelistDeleted }
func (PoolWhitelistStakerAdded) Kind() EventKind   { return KindPoolWhitelistStakerAdded }
func (PoolWhitelistStakerRemoved) Kind() EventKind { return KindPoolWhitelistStakerRemoved }
func (VaultOwnerSharesGained) Kind() EventKind     { return KindVaultOwnerSharesGained }
func (VaultOwnerSharesClaimed) Kind() EventKind    { return KindVaultOwnerSharesClaimed }
func (SessionBound) Kind() EventKind               { return KindSessionBound }
func (SessionUnbound) Kind() EventKind             { return KindSessionUnbound }
func (WorkerStarted) Kind() EventKind              { return KindWorkerStarted }
func (WorkerStopped) Kind() EventKind              { return KindWorkerStopped }
func (WorkerReclaimed) Kind() EventKind            { return KindWorkerReclaimed }
func (WorkerEnterUnresponsive) Kind() EventKind    { return KindWorkerEnterUnresponsive }
func (WorkerExitUnresponsive) Kind() EventKind     { return KindWorkerExitUnresponsive }
func (SessionSettled) Kind() EventKind             { return KindSessionSettled }
func (BenchmarkUpdated) Kind() EventKind           { return KindBenchmarkUpdated }
func (TokenomicParametersChanged) Kind() EventKind { return KindTokenomicParametersChanged }
func (WorkerRegistered) Kind() EventKind           { return KindWorkerRegistered }
func (WorkerUpdated) Kind() EventKind              { return KindWorkerUpdated }
func (InitialScoreSet) Kind() EventKind            { return KindInitialScoreSet }
func (NftMinted) Kind() EventKind                  { return KindNftMinted }
func (NftBurned) Kind() EventKind                  { return KindNftBurned }
func (IdentitySet) Kind() EventKind                { return KindIdentitySet }
func (IdentityCleared) Kind() EventKind            { return KindIdentityCleared }
func (JudgementGiven) Kind() EventKind             { return KindJudgementGiven }

// UnmarshalJSON decodes the payload into the concrete type for the event
// name. Unknown names are an error; the upstream decoder owns schema
// versioning and must not emit kinds this engine does not know.
func (e *Event) UnmarshalJSON(data []byte) error {
	var raw struct {
		Name  EventKind       `json:"name"`
		Block Block           `json:"block"`
		Args  json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	args, err := newArgs(raw.Name)
	if err != nil {
		return err
	}
	if len(raw.Args) > 0 {
		if err := json.Unmarshal(raw.Args, args); err != nil {
			return errors.Wrapf(err, "failed to decode args for %s", raw.Name)
		}
	}

	e.Name = raw.Name
	e.Block = raw.Block
	e.Args = args
	return nil
}

func newArgs(kind EventKind) (Args, error) {
	switch kind {
	case KindStakePoolCreated:
		return &StakePoolCreated{}, nil
	case KindVaultCreated:
		return &VaultCreated{}, nil
	case KindStakePoolCommissionSet:
		return &StakePoolCommissionSet{}, nil
	case KindVaultCommissionSet:
		return &VaultCommissionSet{}, nil
	case KindStakePoolCapacitySet:
		return &StakePoolCapacitySet{}, nil
	case KindStakePoolWorkerAdded:
		return &StakePoolWorkerAdded{}, nil
	case KindStakePoolWorkerRemoved:
		return &StakePoolWorkerRemoved{}, nil
	case KindWorkingStarted:
		return &WorkingStarted{}, nil
	case KindContribution:
		return &Contribution{}, nil
	case KindWithdrawal:
		return &Withdrawal{}, nil
	case KindWithdrawalQueued:
		return &WithdrawalQueued{}, nil
	case KindRewardReceived:
		return &RewardReceived{}, nil
	case KindOwnerRewardsWithdrawn:
		return &OwnerRewardsWithdrawn{}, nil
	case KindPoolWhitelistCreated:
		return &PoolWhitelistCreated{}, nil
	case KindPoolWhitelistDeleted:
		return &PoolWhitelistDeleted{}, nil
	case KindPoolWhitelistStakerAdded:
		return &PoolWhitelistStakerAdded{}, nil
	case KindPoolWhitelistStakerRemoved:
		return &PoolWhitelistStakerRemoved{}, nil
	case KindVaultOwnerSharesGained:
		return &VaultOwnerSharesGained{}, nil
	case KindVaultOwnerSharesClaimed:
		return &VaultOwnerSharesClaimed{}, nil
	case KindSessionBound:
		return &SessionBound{}, nil
	case KindSessionUnbound:
		return &SessionUnbound{}, nil
	case KindWorkerStarted:
		return &WorkerStarted{}, nil
	case KindWorkerStopped:
		return &WorkerStopped{}, nil
	case KindWorkerReclaimed:
		return &WorkerReclaimed{}, nil
	case KindWorkerEnterUnresponsive:
		return &WorkerEnterUnresponsive{}, nil
	case KindWorkerExitUnresponsive:
		return &WorkerExitUnresponsive{}, nil
	case KindSessionSettled:
		return &SessionSettled{}, nil
	case KindBenchmarkUpdated:
		return &BenchmarkUpdated{}, nil
	case KindTokenomicParametersChanged:
		return &TokenomicParametersChanged{}, nil
	case KindWorkerRegistered:
		return &WorkerRegistered{}, nil
	case KindWorkerUpdated:
		return &WorkerUpdated{}, nil
	case KindInitialScoreSet:
		return &InitialScoreSet{}, nil
	case KindNftMinted:
		return &NftMinted{}, nil
	case KindNftBurned:
		return &NftBurned{}, nil
	case KindIdentitySet:
		return &IdentitySet{}, nil
	case KindIdentityCleared:
		return &IdentityCleared{}, nil
	case KindJudgementGiven:
		return &JudgementGiven{}, nil
	default:
		return nil, errors.Errorf("unknown event kind %q", kind)
	}
}
