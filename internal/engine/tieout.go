package engine

import (
	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

// TieOut checks matched settlements against general ledger postings: the
// cash leg must agree with the settlement net and the fee legs with the
// settlement fees, both within tolerance.
type TieOut struct {
	tolerance    decimal.Decimal
	cashAccounts map[string]bool
	feeAccounts  map[string]bool
	byReference  map[string][]model.GLEntry
}

// NewTieOut indexes GL entries by reference ID, keeping only entries that
// reference settlements.
func NewTieOut(tolerance decimal.Decimal, cashAccounts, feeAccounts []string, entries []model.GLEntry) *TieOut {
	t := &TieOut{
		tolerance:    tolerance,
		cashAccounts: make(map[string]bool, len(cashAccounts)),
		feeAccounts:  make(map[string]bool, len(feeAccounts)),
		byReference:  make(map[string][]model.GLEntry),
	}
	for _, a := range cashAccounts {
		t.cashAccounts[a] = true
	}
	for _, a := range feeAccounts {
		t.feeAccounts[a] = true
	}
	for _, e := range entries {
		if e.ReferenceType != model.GLRefSettlement {
			continue
		}
		t.byReference[e.ReferenceID] = append(t.byReference[e.ReferenceID], e)
	}
	return t
}

// TieOutcome is the result of tying one settlement to the ledger.
type TieOutcome struct {
	MissingEntry bool            // no GL entries reference the settlement
	GLCash       decimal.Decimal // net cash movement on cash accounts
	GLFees       decimal.Decimal // net fee movement on fee accounts
	CashDiff     decimal.Decimal // settlement net - GL cash
	FeeDiff      decimal.Decimal // settlement fees - GL fees
	CashMismatch bool
	FeeMismatch  bool
}

// Check compares a settlement against its GL postings. A missing posting
// reports MissingEntry and skips the amount checks; mismatches on cash and
// fees are reported independently and never suppress one another.
func (t *TieOut) Check(settlement model.Settlement) TieOutcome {
	entries := t.byReference[settlement.ID]
	if len(entries) == 0 {
		return TieOutcome{MissingEntry: true, CashDiff: settlement.NetAmount, FeeDiff: settlement.Fees}
	}

	var cash, fees decimal.Decimal
	for _, e := range entries {
		switch {
		case t.cashAccounts[e.AccountCode]:
			cash = cash.Add(e.NetMovement())
		case t.feeAccounts[e.AccountCode]:
			fees = fees.Add(e.NetMovement())
		}
	}

	out := TieOutcome{
		GLCash:   cash,
		GLFees:   fees,
		CashDiff: settlement.NetAmount.Sub(cash),
		FeeDiff:  settlement.Fees.Sub(fees),
	}
	out.CashMismatch = out.CashDiff.Abs().GreaterThan(t.tolerance)
	out.FeeMismatch = out.FeeDiff.Abs().GreaterThan(t.tolerance)
	return out
}
