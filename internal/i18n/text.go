package i18n

// UiText is the resolved set of strings the overlay renders.
type UiText struct {
	HeaderTitle     string `json:"header_title"`
	HeaderSubtitle  string `json:"header_subtitle"`
	NewRecordButton string `json:"new_record_button"`

	KpiOverdueAmount       string `json:"kpi_overdue_amount"`
	KpiDraftedTotals       string `json:"kpi_drafted_totals"`
	KpiUnpaidTotals        string `json:"kpi_unpaid_totals"`
	KpiAveragePaidTime     string `json:"kpi_average_paid_time"`
	KpiRecordsSuffix       string `json:"kpi_records_suffix"`
	KpiPostedRecordsSuffix string `json:"kpi_posted_records_suffix"`
	KpiDaysSuffix          string `json:"kpi_days_suffix"`

	Filters map[string]string `json:"filters"`

	NavAppSwitcher   string            `json:"nav_app_switcher"`
	NavSearchTooltip string            `json:"nav_search_tooltip"`
	NavCollapseRail  string            `json:"nav_collapse_rail"`
	NavViewAllApps   string            `json:"nav_view_all_apps"`
	NavApps          map[string]string `json:"nav_apps"`

	ChecklistTitle  string `json:"checklist_title"`
	ChecklistSearch string `json:"checklist_search"`
	ChecklistNew    string `json:"checklist_new"`
	ChecklistList   string `json:"checklist_list"`
	ChecklistStatus string `json:"checklist_status"`

	PaletteTitle     string `json:"palette_title"`
	PaletteNewRecord string `json:"palette_new_record"`

	RuntimeFallbackTitle    string `json:"runtime_fallback_title"`
	RuntimeFallbackSubtitle string `json:"runtime_fallback_subtitle"`
	RuntimeBadgeFilterTitle string `json:"runtime_badge_filter_title"`
	RuntimeLoading          string `json:"runtime_loading"`

	TipKeyboardShortcuts string            `json:"tip_keyboard_shortcuts"`
	TipFilters           map[string]string `json:"tip_filters"`
	TipViewForm          string            `json:"tip_view_form"`
	TipViewKanban        string            `json:"tip_view_kanban"`
	TipViewList          string            `json:"tip_view_list"`
	TipViewFallback      string            `json:"tip_view_fallback"`
}

// AppKeys are the rail apps with a catalog label.
var AppKeys = []string{"conversations", "dashboards", "accounting", "apps", "settings"}

var filterNames = []string{"all", "paid", "overdue", "pending", "draft"}

var filterDefaults = map[string]string{
	"all":     "All invoices",
	"paid":    "Paid",
	"overdue": "Overdue",
	"pending": "Pending",
	"draft":   "Draft",
}

var tipDefaults = map[string]string{
	"all":     "Tip: review overdue and pending first to protect cash flow.",
	"paid":    "Tip: paid invoices help validate payment delays and customer behavior.",
	"overdue": "Tip: overdue requires immediate follow-up and payment commitment logging.",
	"pending": "Tip: pending invoices should be checked for due date and payment terms.",
	"draft":   "Tip: draft invoices need validation before posting.",
}

// BuildUiText resolves every string through t.
func BuildUiText(t Translator) UiText {
	text := UiText{
		HeaderTitle:     t("header.title", "Invoicing Workspace"),
		HeaderSubtitle:  t("header.subtitle", "Overdue, pending and draft invoices at a glance."),
		NewRecordButton: t("header.new_record", "+ New invoice"),

		KpiOverdueAmount:       t("kpis.overdue_amount", "Overdue Amount"),
		KpiDraftedTotals:       t("kpis.drafted_totals", "Drafted Totals"),
		KpiUnpaidTotals:        t("kpis.unpaid_totals", "Unpaid Totals"),
		KpiAveragePaidTime:     t("kpis.average_paid_time", "Average Aging"),
		KpiRecordsSuffix:       t("kpis.records_suffix", "invoices"),
		KpiPostedRecordsSuffix: t("kpis.posted_records_suffix", "posted invoices"),
		KpiDaysSuffix:          t("kpis.days_suffix", "days"),

		NavAppSwitcher:   t("navigation.app_switcher", "App Switcher"),
		NavSearchTooltip: t("navigation.search_tooltip", "Use Odoo Search"),
		NavCollapseRail:  t("navigation.collapse_rail", "Collapse Rail"),
		NavViewAllApps:   t("navigation.view_all_apps", "View All Apps"),

		ChecklistTitle:  t("checklist.title", "Operational checklist"),
		ChecklistSearch: t("checklist.search", "Search bar available"),
		ChecklistNew:    t("checklist.new", "New invoice action available"),
		ChecklistList:   t("checklist.list", "Invoice list visible"),
		ChecklistStatus: t("checklist.status", "Status badges detected"),

		PaletteTitle:     t("palette.title", "Command palette"),
		PaletteNewRecord: t("palette.new_record", "Create a new invoice"),

		RuntimeFallbackTitle:    t("runtime.fallback_title", "Invoicing Workspace"),
		RuntimeFallbackSubtitle: t("runtime.fallback_subtitle", "Dashboard renderer not available. Running in fallback mode."),
		RuntimeBadgeFilterTitle: t("runtime.badge_filter_title", "Click to filter by this status"),
		RuntimeLoading:          t("runtime.loading", "Refreshing figures…"),

		TipKeyboardShortcuts: t("tips.keyboard_shortcuts", "Tip: use Ctrl+Shift+I for a new invoice and / for search."),
		TipViewForm:          t("tips.view_mode.form", "Form mode: validate fiscal fields before posting."),
		TipViewKanban:        t("tips.view_mode.kanban", "Kanban mode: triage by stage, then open the invoice."),
		TipViewList:          t("tips.view_mode.list", "List mode: use status chips and native filters for fast bulk review."),
		TipViewFallback:      t("tips.view_mode.fallback", "Use the rail to keep invoicing context while navigating related modules."),
	}

	text.Filters = make(map[string]string, len(filterNames))
	text.TipFilters = make(map[string]string, len(filterNames))
	for _, name := range filterNames {
		text.Filters[name] = t("filters."+name, filterDefaults[name])
		text.TipFilters[name] = t("tips.filter."+name, tipDefaults[name])
	}
	text.NavApps = make(map[string]string, len(AppKeys))
	for _, key := range AppKeys {
		text.NavApps[key] = t("navigation.apps."+key, "")
	}
	return text
}

// TipFor returns the tip for a filter, defaulting to the "all" tip.
func (u UiText) TipFor(filter string) string {
	if tip, ok := u.TipFilters[filter]; ok && tip != "" {
		return tip
	}
	return u.TipFilters["all"]
}

// FilterLabel returns the chip label for a filter name.
func (u UiText) FilterLabel(filter string) string {
	if label, ok := u.Filters[filter]; ok {
		return label
	}
	return filter
}
