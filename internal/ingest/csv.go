// Package ingest loads the four input collections from CSV files. Each
// source loads atomically: one bad row fails the whole file, so the engine
// never sees a partially loaded collection.
package ingest

import (
	"encoding/csv"
	"fmt"
	"io"
	"time"

	"github.com/shopspring/decimal"

	"github.com/settled-dev/settled/internal/model"
)

const (
	dateFormat      = "2006-01-02"
	timestampFormat = "2006-01-02 15:04:05"
)

// OrdersHeader is the CSV header for orders.csv.
const OrdersHeader = "order_id,customer_id,order_date,order_timestamp,order_amount,payment_method,status"

const (
	orderFields     = 7
	colOrderID      = 0
	colCustomerID   = 1
	colOrderDate    = 2
	colOrderTS      = 3
	colOrderAmount  = 4
	colPaymentMeth  = 5
	colOrderStatus  = 6
)

// ReadOrders reads all orders from an orders.csv reader.
func ReadOrders(r io.Reader) ([]model.Order, error) {
	records, err := readAll(r, orderFields)
	if err != nil {
		return nil, fmt.Errorf("reading orders CSV: %w", err)
	}

	var orders []model.Order
	for i, rec := range records {
		o, err := unmarshalOrder(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func unmarshalOrder(record []string) (model.Order, error) {
	date, err := time.Parse(dateFormat, record[colOrderDate])
	if err != nil {
		return model.Order{}, fmt.Errorf("parsing order_date %q: %w", record[colOrderDate], err)
	}
	ts, err := parseTimestamp(record[colOrderTS])
	if err != nil {
		return model.Order{}, fmt.Errorf("parsing order_timestamp %q: %w", record[colOrderTS], err)
	}
	amount, err := decimal.NewFromString(record[colOrderAmount])
	if err != nil {
		return model.Order{}, fmt.Errorf("parsing order_amount %q: %w", record[colOrderAmount], err)
	}

	return model.Order{
		ID:            record[colOrderID],
		CustomerID:    record[colCustomerID],
		Date:          date,
		Timestamp:     ts,
		Amount:        amount,
		PaymentMethod: record[colPaymentMeth],
		Status:        model.OrderStatus(record[colOrderStatus]),
	}, nil
}

// RefundsHeader is the CSV header for refunds.csv.
const RefundsHeader = "refund_id,order_id,refund_date,refund_timestamp,refund_amount,refund_reason,status"

const (
	refundFields     = 7
	colRefundID      = 0
	colRefundOrderID = 1
	colRefundDate    = 2
	colRefundTS      = 3
	colRefundAmount  = 4
	colRefundReason  = 5
	colRefundStatus  = 6
)

// ReadRefunds reads all refunds from a refunds.csv reader.
func ReadRefunds(r io.Reader) ([]model.Refund, error) {
	records, err := readAll(r, refundFields)
	if err != nil {
		return nil, fmt.Errorf("reading refunds CSV: %w", err)
	}

	var refunds []model.Refund
	for i, rec := range records {
		rf, err := unmarshalRefund(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		refunds = append(refunds, rf)
	}
	return refunds, nil
}

func unmarshalRefund(record []string) (model.Refund, error) {
	date, err := time.Parse(dateFormat, record[colRefundDate])
	if err != nil {
		return model.Refund{}, fmt.Errorf("parsing refund_date %q: %w", record[colRefundDate], err)
	}
	ts, err := parseTimestamp(record[colRefundTS])
	if err != nil {
		return model.Refund{}, fmt.Errorf("parsing refund_timestamp %q: %w", record[colRefundTS], err)
	}
	amount, err := decimal.NewFromString(record[colRefundAmount])
	if err != nil {
		return model.Refund{}, fmt.Errorf("parsing refund_amount %q: %w", record[colRefundAmount], err)
	}

	return model.Refund{
		ID:        record[colRefundID],
		OrderID:   record[colRefundOrderID],
		Date:      date,
		Timestamp: ts,
		Amount:    amount,
		Reason:    record[colRefundReason],
		Status:    model.RefundStatus(record[colRefundStatus]),
	}, nil
}

// SettlementsHeader is the CSV header for psp_settlements.csv.
const SettlementsHeader = "settlement_id,psp_reference,settlement_date,settlement_timestamp,gross_amount,fees,net_amount,transaction_type,source_reference"

const (
	settlementFields = 9
	colSettlementID  = 0
	colPSPReference  = 1
	colSettleDate    = 2
	colSettleTS      = 3
	colGrossAmount   = 4
	colFees          = 5
	colNetAmount     = 6
	colTxnType       = 7
	colSourceRef     = 8
)

// ReadSettlements reads all settlements from a psp_settlements.csv reader.
func ReadSettlements(r io.Reader) ([]model.Settlement, error) {
	records, err := readAll(r, settlementFields)
	if err != nil {
		return nil, fmt.Errorf("reading settlements CSV: %w", err)
	}

	var settlements []model.Settlement
	for i, rec := range records {
		s, err := unmarshalSettlement(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		settlements = append(settlements, s)
	}
	return settlements, nil
}

func unmarshalSettlement(record []string) (model.Settlement, error) {
	date, err := time.Parse(dateFormat, record[colSettleDate])
	if err != nil {
		return model.Settlement{}, fmt.Errorf("parsing settlement_date %q: %w", record[colSettleDate], err)
	}
	ts, err := parseTimestamp(record[colSettleTS])
	if err != nil {
		return model.Settlement{}, fmt.Errorf("parsing settlement_timestamp %q: %w", record[colSettleTS], err)
	}
	gross, err := decimal.NewFromString(record[colGrossAmount])
	if err != nil {
		return model.Settlement{}, fmt.Errorf("parsing gross_amount %q: %w", record[colGrossAmount], err)
	}
	fees, err := decimal.NewFromString(record[colFees])
	if err != nil {
		return model.Settlement{}, fmt.Errorf("parsing fees %q: %w", record[colFees], err)
	}
	net, err := decimal.NewFromString(record[colNetAmount])
	if err != nil {
		return model.Settlement{}, fmt.Errorf("parsing net_amount %q: %w", record[colNetAmount], err)
	}

	return model.Settlement{
		ID:              record[colSettlementID],
		PSPReference:    record[colPSPReference],
		Date:            date,
		Timestamp:       ts,
		GrossAmount:     gross,
		Fees:            fees,
		NetAmount:       net,
		TransactionType: record[colTxnType],
		SourceReference: record[colSourceRef],
	}, nil
}

// GLEntriesHeader is the CSV header for gl_entries.csv.
const GLEntriesHeader = "gl_entry_id,entry_date,entry_timestamp,account_code,account_name,debit_amount,credit_amount,reference_id,reference_type,description"

const (
	glFields        = 10
	colGLEntryID    = 0
	colEntryDate    = 1
	colEntryTS      = 2
	colAccountCode  = 3
	colAccountName  = 4
	colDebitAmount  = 5
	colCreditAmount = 6
	colReferenceID  = 7
	colRefType      = 8
	colGLDesc       = 9
)

// ReadGLEntries reads all GL entries from a gl_entries.csv reader.
func ReadGLEntries(r io.Reader) ([]model.GLEntry, error) {
	records, err := readAll(r, glFields)
	if err != nil {
		return nil, fmt.Errorf("reading GL entries CSV: %w", err)
	}

	var entries []model.GLEntry
	for i, rec := range records {
		e, err := unmarshalGLEntry(rec)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

func unmarshalGLEntry(record []string) (model.GLEntry, error) {
	date, err := time.Parse(dateFormat, record[colEntryDate])
	if err != nil {
		return model.GLEntry{}, fmt.Errorf("parsing entry_date %q: %w", record[colEntryDate], err)
	}
	ts, err := parseTimestamp(record[colEntryTS])
	if err != nil {
		return model.GLEntry{}, fmt.Errorf("parsing entry_timestamp %q: %w", record[colEntryTS], err)
	}
	debit, err := decimal.NewFromString(record[colDebitAmount])
	if err != nil {
		return model.GLEntry{}, fmt.Errorf("parsing debit_amount %q: %w", record[colDebitAmount], err)
	}
	credit, err := decimal.NewFromString(record[colCreditAmount])
	if err != nil {
		return model.GLEntry{}, fmt.Errorf("parsing credit_amount %q: %w", record[colCreditAmount], err)
	}

	return model.GLEntry{
		ID:            record[colGLEntryID],
		Date:          date,
		Timestamp:     ts,
		AccountCode:   record[colAccountCode],
		AccountName:   record[colAccountName],
		DebitAmount:   debit,
		CreditAmount:  credit,
		ReferenceID:   record[colReferenceID],
		ReferenceType: model.GLReferenceType(record[colRefType]),
		Description:   record[colGLDesc],
	}, nil
}

// readAll reads every data row, skipping the header.
func readAll(r io.Reader, fields int) ([][]string, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = fields

	records, err := cr.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[1:], nil
}

// parseTimestamp accepts the standard timestamp format and falls back to a
// bare date, which some PSP exports use.
func parseTimestamp(s string) (time.Time, error) {
	if ts, err := time.Parse(timestampFormat, s); err == nil {
		return ts, nil
	}
	return time.Parse(dateFormat, s)
}
