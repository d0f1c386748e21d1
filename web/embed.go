package web

import "embed"

// Templates embeds the dashboard templates.
//
//go:embed templates/overlay/*.html
var Templates embed.FS

// Messages is the default text catalog.
//
//go:embed i18n/messages.yml
var Messages []byte

// Profile is the default host profile (selectors, ids, rail apps).
//
//go:embed profile/odoo.yml
var Profile []byte
