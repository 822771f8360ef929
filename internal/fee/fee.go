// Package fee computes service fees for internal money movement.
// Policies are pure values; quoting performs no I/O.
package fee

import "github.com/shopspring/decimal"

// DefaultTransferRate is the internal transfer fee rate (2%).
var DefaultTransferRate = decimal.NewFromFloat(0.02)

// Policy is a flat-rate fee schedule. Distinct policies may exist per
// transaction type.
type Policy struct {
	Rate decimal.Decimal
}

// Quote is the priced outcome for one transfer amount.
type Quote struct {
	Fee            decimal.Decimal
	TotalDeduction decimal.Decimal
}

// DefaultTransferPolicy returns the policy applied to internal
// transfers.
func DefaultTransferPolicy() Policy {
	return Policy{Rate: DefaultTransferRate}
}

// Quote prices amount under p. The fee is rounded half-up to two
// decimal places, matching minor-currency-unit granularity; this
// rounding must not drift or reconciliation against settled records
// breaks.
func (p Policy) Quote(amount decimal.Decimal) Quote {
	f := amount.Mul(p.Rate).Round(2)
	return Quote{Fee: f, TotalDeduction: amount.Add(f)}
}
