package records

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MoveState enumerates the document states requested from the host.
type MoveState string

const (
	StateDraft  MoveState = "draft"
	StatePosted MoveState = "posted"
)

// PaymentPaid is the payment_state value of a fully settled invoice.
const PaymentPaid = "paid"

// Row is one outbound invoice as returned by search_read. Rows are read-only.
type Row struct {
	State          MoveState       `json:"state"`
	AmountTotal    decimal.Decimal `json:"amount_total"`
	AmountResidual decimal.Decimal `json:"amount_residual"`
	DueDate        Date            `json:"invoice_date_due"`
	PaymentState   string          `json:"payment_state"`
}

// IsPosted reports whether the row is a posted document.
func (r Row) IsPosted() bool { return r.State == StatePosted }

// IsDraft reports whether the row is still a draft.
func (r Row) IsDraft() bool { return r.State == StateDraft }

// IsPaid reports whether the host marked the row as paid.
func (r Row) IsPaid() bool { return r.PaymentState == PaymentPaid }

// Date is a calendar day that may be absent. The host encodes a missing
// date as the JSON literal false.
type Date struct {
	Time  time.Time
	Valid bool
}

const dateLayout = "2006-01-02"

// NewDate builds a valid Date truncated to the day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC), Valid: true}
}

// DateOf keeps only the calendar day of t.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Before reports whether d falls on an earlier calendar day than other.
func (d Date) Before(other Date) bool {
	return d.Valid && other.Valid && d.Time.Before(other.Time)
}

// DaysUntil returns the number of whole days from d to other.
func (d Date) DaysUntil(other Date) int {
	if !d.Valid || !other.Valid {
		return 0
	}
	return int(other.Time.Sub(d.Time).Hours() / 24)
}

// String formats the date as YYYY-MM-DD, empty when absent.
func (d Date) String() string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dateLayout)
}

// MarshalJSON mirrors the host encoding.
func (d Date) MarshalJSON() ([]byte, error) {
	if !d.Valid {
		return []byte("false"), nil
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD", a datetime prefix, false or null.
func (d *Date) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("false")) || bytes.Equal(data, []byte("null")) {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("records: decode date: %w", err)
	}
	if raw == "" {
		*d = Date{}
		return nil
	}
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		// An unparsable due date behaves like a missing one.
		*d = Date{}
		return nil
	}
	*d = Date{Time: t, Valid: true}
	return nil
}
