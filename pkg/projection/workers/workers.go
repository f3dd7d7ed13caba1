package workers

import (
	"github.com/poolhouse-labs/stakewatch/pkg/numeric"
	"github.com/poolhouse-labs/stakewatch/pkg/storage"
	"github.com/shopspring/decimal"
)

// ConfidenceScore maps a worker's confidence level to its scoring weight.
// Levels outside 1..5 have no score; callers skip share computation for
// those workers instead of failing.
func ConfidenceScore(level uint32) (decimal.Decimal, bool) {
	switch level {
	case 1, 2, 3:
		return decimal.NewFromInt(1), true
	case 4:
		return decimal.NewFromFloat(0.8), true
	case 5:
		return decimal.NewFromFloat(0.7), true
	default:
		return decimal.Zero, false
	}
}

// Score computes a bound worker's shares: sqrt(v² + 2·p·cs²), rounded to the
// balance scale. The p argument is pInit on the start path and pInstant on
// the benchmark/settlement path; both call sites are kept distinct upstream.
func Score(v decimal.Decimal, p int64, confidenceLevel uint32) (decimal.Decimal, bool) {
	cs, ok := ConfidenceScore(confidenceLevel)
	if !ok {
		return decimal.Zero, false
	}
	inner := v.Mul(v).
		Add(decimal.NewFromInt(2).Mul(decimal.NewFromInt(p)).Mul(cs.Mul(cs)))
	return numeric.Sqrt(inner), true
}

// UpdateShares recomputes worker.shares from the session's current v and the
// given p. Shares stay unset when the confidence level is out of range.
func UpdateShares(worker *storage.Worker, session *storage.Session, p int64) {
	shares, ok := Score(session.V, p, worker.ConfidenceLevel)
	if !ok {
		return
	}
	worker.Shares = &shares
}

// SharesOrZero reads a worker's derived shares; unbound workers hold none.
func SharesOrZero(worker *storage.Worker) decimal.Decimal {
	if worker.Shares == nil {
		return decimal.Zero
	}
	return *worker.Shares
}
