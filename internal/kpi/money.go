package kpi

import (
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

// Card is the display form of a Snapshot with money already formatted.
type Card struct {
	OverdueAmount string `json:"overdue_amount"`
	OverdueCount  int    `json:"overdue_count"`
	DraftAmount   string `json:"draft_amount"`
	DraftCount    int    `json:"draft_count"`
	UnpaidAmount  string `json:"unpaid_amount"`
	UnpaidCount   int    `json:"unpaid_count"`
	AvgPaidDays   int    `json:"avg_paid_days"`
	PostedCount   int    `json:"posted_count"`
}

// MoneyFormatter renders decimal amounts for a locale and ISO currency.
type MoneyFormatter struct {
	printer *message.Printer
	symbol  string
}

// NewMoneyFormatter builds a formatter; unknown locales fall back to es-MX
// and unknown currencies to MXN.
func NewMoneyFormatter(locale, iso string) *MoneyFormatter {
	tag, err := language.Parse(strings.ReplaceAll(locale, "_", "-"))
	if err != nil {
		tag = language.MustParse("es-MX")
	}
	unit, err := currency.ParseISO(iso)
	if err != nil {
		unit = currency.MXN
	}
	printer := message.NewPrinter(tag)
	symbol := strings.TrimSpace(printer.Sprint(currency.NarrowSymbol(unit)))
	if symbol == "" {
		symbol = unit.String()
	}
	return &MoneyFormatter{printer: printer, symbol: symbol}
}

// Format renders value with two decimals and the currency symbol.
func (f *MoneyFormatter) Format(value decimal.Decimal) string {
	amount, _ := value.Round(2).Float64()
	digits := f.printer.Sprint(number.Decimal(amount, number.Scale(2)))
	if strings.HasPrefix(digits, "-") {
		return "-" + f.symbol + strings.TrimPrefix(digits, "-")
	}
	return f.symbol + digits
}

// Card formats a snapshot for display.
func (f *MoneyFormatter) Card(s Snapshot) Card {
	return Card{
		OverdueAmount: f.Format(s.OverdueAmount),
		OverdueCount:  s.OverdueCount,
		DraftAmount:   f.Format(s.DraftAmount),
		DraftCount:    s.DraftCount,
		UnpaidAmount:  f.Format(s.UnpaidAmount),
		UnpaidCount:   s.UnpaidCount,
		AvgPaidDays:   s.AvgPaidDays,
		PostedCount:   s.PostedCount,
	}
}
