package chain

import "github.com/shopspring/decimal"

// TokenomicParameters mirrors the chain's tokenomic storage item. The
// TokenomicParametersChanged event carries no payload; the current values are
// re-read through this collaborator.
type TokenomicParameters struct {
	BudgetPerBlock decimal.Decimal
	TreasuryRatio  decimal.Decimal
	VMax           decimal.Decimal
	Re             decimal.Decimal
	K              decimal.Decimal
	PhaRate        decimal.Decimal
}

type TokenomicReader interface {
	TokenomicParameters() (*TokenomicParameters, error)
}

// StaticTokenomicReader serves a fixed parameter set, used when no archive
// connection is configured and in tests.
type StaticTokenomicReader struct {
	Params TokenomicParameters
}

func (r *StaticTokenomicReader) TokenomicParameters() (*TokenomicParameters, error) {
	p := r.Params
	return &p, nil
}
