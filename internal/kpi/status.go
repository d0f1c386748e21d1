package kpi

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var (
	negatedPaidTokens = []string{"not paid", "unpaid", "no pagad", "sin pagar"}
	paidTokens        = []string{"paid", "pagad"}
	overdueTokens     = []string{"overdue", "venc"}
	draftTokens       = []string{"draft", "borrador"}
	pendingTokens     = []string{"pending", "pendiente", "abierto", "open"}
)

// NormalizeText lower-cases, strips diacritics and trims a label.
func NormalizeText(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	stripped, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		stripped = strings.ToLower(text)
	}
	return strings.TrimSpace(stripped)
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		if strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// InferFilter maps a rendered, locale-dependent status label to a filter.
// Unknown or empty labels map to FilterAll.
func InferFilter(text string) Filter {
	t := NormalizeText(text)
	switch {
	case t == "":
		return FilterAll
	case containsAny(t, negatedPaidTokens):
		return FilterPending
	case containsAny(t, paidTokens):
		return FilterPaid
	case containsAny(t, overdueTokens):
		return FilterOverdue
	case containsAny(t, draftTokens):
		return FilterDraft
	case containsAny(t, pendingTokens):
		return FilterPending
	default:
		return FilterAll
	}
}
