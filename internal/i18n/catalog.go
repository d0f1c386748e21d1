// Package i18n resolves the overlay text catalog for the host page locale.
package i18n

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// ErrEmptyCatalog is returned when a catalog defines no locales.
var ErrEmptyCatalog = errors.New("i18n: catalog has no messages")

// Catalog is the decoded messages file.
type Catalog struct {
	DefaultLocale string                    `yaml:"default_locale"`
	Messages      map[string]map[string]any `yaml:"messages"`
}

// ParseCatalog decodes a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var c Catalog
	if err := yaml.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("i18n: decode catalog: %w", err)
	}
	if len(c.Messages) == 0 {
		return nil, ErrEmptyCatalog
	}
	if c.DefaultLocale == "" {
		c.DefaultLocale = "en"
	}
	c.DefaultLocale = normalizeLocale(c.DefaultLocale)
	normalized := make(map[string]map[string]any, len(c.Messages))
	for locale, messages := range c.Messages {
		normalized[normalizeLocale(locale)] = messages
	}
	c.Messages = normalized
	return &c, nil
}

func normalizeLocale(raw string) string {
	return strings.ToLower(strings.TrimSpace(strings.ReplaceAll(raw, "_", "-")))
}

// Translator looks up a dotted path, falling back to the default locale and
// then to the supplied text.
type Translator func(path, fallback string) string

// Locales lists the catalog locales with the default first.
func (c *Catalog) Locales() []string {
	locales := make([]string, 0, len(c.Messages))
	for locale := range c.Messages {
		if locale != c.DefaultLocale {
			locales = append(locales, locale)
		}
	}
	sort.Strings(locales)
	if _, ok := c.Messages[c.DefaultLocale]; ok {
		locales = append([]string{c.DefaultLocale}, locales...)
	}
	return locales
}

// Resolve picks the best catalog locale for the preferred one.
func (c *Catalog) Resolve(preferred string) string {
	locales := c.Locales()
	if len(locales) == 0 {
		return c.DefaultLocale
	}
	tags := make([]language.Tag, 0, len(locales))
	for _, locale := range locales {
		tags = append(tags, language.Make(locale))
	}
	want, err := language.Parse(normalizeLocale(preferred))
	if err != nil {
		return locales[0]
	}
	_, idx, confidence := language.NewMatcher(tags).Match(want)
	if confidence == language.No {
		return locales[0]
	}
	return locales[idx]
}

// Translator returns the lookup function for the preferred locale.
func (c *Catalog) Translator(preferred string) Translator {
	current := c.Messages[c.Resolve(preferred)]
	fallback := c.Messages[c.DefaultLocale]
	return func(path, fallbackText string) string {
		if v, ok := lookup(current, path); ok {
			return v
		}
		if v, ok := lookup(fallback, path); ok {
			return v
		}
		return fallbackText
	}
}

func lookup(tree map[string]any, path string) (string, bool) {
	if tree == nil || path == "" {
		return "", false
	}
	var current any = tree
	for _, key := range strings.Split(path, ".") {
		node, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = node[key]
		if !ok {
			return "", false
		}
	}
	switch v := current.(type) {
	case string:
		return v, true
	case nil:
		return "", false
	case map[string]any:
		return "", false
	default:
		return fmt.Sprint(v), true
	}
}
