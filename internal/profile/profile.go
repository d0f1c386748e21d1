// Package profile describes the host markup conventions the overlay relies on.
package profile

import (
	"fmt"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/odyssey-erp/invoice-overlay/web"
)

// Profile holds selectors, element ids and navigation entries for one host.
type Profile struct {
	Storage struct {
		DisableKey string `yaml:"disable_key" validate:"required"`
	} `yaml:"storage"`
	Breakpoints struct {
		TouchLikeMaxWidth int `yaml:"touch_like_max_width" validate:"gte=0"`
	} `yaml:"breakpoints"`
	UI              UI         `yaml:"ui"`
	Selectors       Selectors  `yaml:"selectors"`
	GroupRowClasses []string   `yaml:"group_row_classes"`
	Context         Context    `yaml:"context"`
	Shortcuts       Shortcuts  `yaml:"shortcuts"`
	Navigation      Navigation `yaml:"navigation"`
}

// UI lists the ids and markers of injected elements.
type UI struct {
	RailID           string `yaml:"rail_id" validate:"required"`
	SwitcherButtonID string `yaml:"switcher_button_id" validate:"required"`
	SwitcherPanelID  string `yaml:"switcher_panel_id" validate:"required"`
	MountID          string `yaml:"mount_id" validate:"required"`
	RowHiddenClass   string `yaml:"row_hidden_class" validate:"required"`
	BadgeBoundFlag   string `yaml:"badge_bound_flag" validate:"required"`
	GestureBoundFlag string `yaml:"gesture_bound_flag" validate:"required"`
}

// Selectors are the CSS selectors consumed from the host page.
type Selectors struct {
	Breadcrumbs             string   `yaml:"breadcrumbs"`
	SearchInput             string   `yaml:"search_input"`
	FormView                string   `yaml:"form_view"`
	KanbanView              string   `yaml:"kanban_view"`
	ListView                string   `yaml:"list_view"`
	ListTableBody           string   `yaml:"list_table_body" validate:"required"`
	ListTableBodyFallback   string   `yaml:"list_table_body_fallback"`
	ListTableRows           string   `yaml:"list_table_rows" validate:"required"`
	ListTable               string   `yaml:"list_table"`
	StatusBadges            string   `yaml:"status_badges" validate:"required"`
	NewRecordAction         string   `yaml:"new_record_action"`
	ContentRoot             string   `yaml:"content_root" validate:"required"`
	RailLinks               string   `yaml:"rail_links"`
	SwitcherOpen            string   `yaml:"switcher_open"`
	FallbackNewRecordButton string   `yaml:"fallback_new_record_button"`
	StatusTextNode          string   `yaml:"status_text_node" validate:"required"`
	Navbar                  string   `yaml:"navbar"`
	Rail                    string   `yaml:"rail"`
	Stale                   []string `yaml:"stale"`
}

// Context lists the tokens identifying an invoice page.
type Context struct {
	RecordTokens []string `yaml:"record_tokens" validate:"min=1,dive,required"`
}

// Shortcuts maps Alt+digit keys to filter names.
type Shortcuts struct {
	FilterMap map[string]string `yaml:"filter_map" validate:"dive,keys,len=1,endkeys,oneof=all paid overdue pending draft"`
}

// Navigation describes the rail and switcher entries.
type Navigation struct {
	AppsLandingHref string    `yaml:"apps_landing_href" validate:"required"`
	RailApps        []RailApp `yaml:"rail_apps" validate:"dive"`
}

// RailApp is one navigation entry.
type RailApp struct {
	Key   string   `yaml:"key" validate:"required"`
	Label string   `yaml:"label"`
	Icon  string   `yaml:"icon"`
	Href  string   `yaml:"href" validate:"required"`
	Match []string `yaml:"match"`
}

// StaleSelectors returns the host elements removed on each pass. The host
// navbar and rail are only included with withChrome, when the overlay rail
// replaces them.
func (p *Profile) StaleSelectors(withChrome bool) []string {
	out := make([]string, 0, len(p.Selectors.Stale)+2)
	if withChrome && p.Selectors.Navbar != "" {
		out = append(out, p.Selectors.Navbar)
	}
	if withChrome && p.Selectors.Rail != "" {
		out = append(out, p.Selectors.Rail)
	}
	return append(out, p.Selectors.Stale...)
}

var iconStyles = []string{"fa-solid", "fa-regular", "fa-brands", "fa-light", "fa-thin", "fa-duotone"}

// IconClass expands a Font Awesome icon name into its class list.
func IconClass(icon string) string {
	raw := strings.TrimSpace(icon)
	if raw == "" {
		return "fa-solid fa-circle"
	}
	for _, style := range iconStyles {
		if strings.Contains(raw, style) {
			return raw
		}
	}
	if strings.Contains(raw, "fa-") {
		return "fa-solid " + raw
	}
	return "fa-solid fa-" + raw
}

var validate = validator.New()

// Parse decodes and validates a YAML profile.
func Parse(data []byte) (*Profile, error) {
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("profile: decode: %w", err)
	}
	if err := validate.Struct(&p); err != nil {
		return nil, fmt.Errorf("profile: validate: %w", err)
	}
	return &p, nil
}

// Default returns the embedded Odoo profile.
func Default() (*Profile, error) {
	return Parse(web.Profile)
}

// Load reads a profile from path, or the embedded default when path is empty.
func Load(path string) (*Profile, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("profile: read %s: %w", path, err)
	}
	return Parse(data)
}
