package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settlement represents a row in psp_settlements.csv: one PSP payout line
// for a single order, identified by SourceReference.
type Settlement struct {
	ID              string
	PSPReference    string
	Date            time.Time
	Timestamp       time.Time
	GrossAmount     decimal.Decimal
	Fees            decimal.Decimal
	NetAmount       decimal.Decimal
	TransactionType string
	SourceReference string // order ID this settlement pays out
}

// GLReferenceType identifies what a GL entry's ReferenceID points at.
type GLReferenceType string

const (
	GLRefSettlement GLReferenceType = "settlement"
	GLRefOrder      GLReferenceType = "order"
)

// GLEntry represents a row in gl_entries.csv.
type GLEntry struct {
	ID            string
	Date          time.Time
	Timestamp     time.Time
	AccountCode   string
	AccountName   string
	DebitAmount   decimal.Decimal
	CreditAmount  decimal.Decimal
	ReferenceID   string
	ReferenceType GLReferenceType
	Description   string
}

// NetMovement returns the signed cash movement of the entry (debit - credit).
// Under the debit-normal convention a cash receipt posts as a debit to the
// cash account, so a settlement deposit yields a positive movement.
func (e GLEntry) NetMovement() decimal.Decimal {
	return e.DebitAmount.Sub(e.CreditAmount)
}
