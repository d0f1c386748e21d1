package overlay

import (
	"strings"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/profile"
)

// haystack is the lower-cased text used to recognise the current page:
// location, breadcrumbs and document title.
func haystack(doc dom.Document, p *profile.Profile) string {
	var crumbs string
	if p.Selectors.Breadcrumbs != "" {
		if el := doc.QueryOne(p.Selectors.Breadcrumbs); el != nil {
			crumbs = el.Text()
		}
	}
	return strings.ToLower(doc.Location() + " " + crumbs + " " + doc.Title())
}

func containsAny(text string, tokens []string) bool {
	for _, token := range tokens {
		token = strings.ToLower(strings.TrimSpace(token))
		if token != "" && strings.Contains(text, token) {
			return true
		}
	}
	return false
}

// InRecordContext reports whether the page shows invoices.
func InRecordContext(doc dom.Document, p *profile.Profile) bool {
	return containsAny(haystack(doc, p), p.Context.RecordTokens)
}

// AppActive reports whether a rail app matches the current page.
func AppActive(doc dom.Document, p *profile.Profile, app profile.RailApp) bool {
	return containsAny(haystack(doc, p), app.Match)
}

// TouchLike reports whether the viewport is at or under the touch breakpoint.
func TouchLike(doc dom.Document, p *profile.Profile) bool {
	return doc.ViewportWidth() <= p.Breakpoints.TouchLikeMaxWidth
}
