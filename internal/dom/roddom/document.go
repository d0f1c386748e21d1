// Package roddom drives a live browser tab through the Chrome DevTools
// protocol with go-rod. Host events are buffered by an injected hook and
// drained on a ticker.
package roddom

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"github.com/odyssey-erp/invoice-overlay/internal/dom"
)

// ErrNoPage is returned when no tab matches and no start URL is set.
var ErrNoPage = errors.New("roddom: no matching page")

// Options configures Attach.
type Options struct {
	// ControlURL attaches to a running browser. Empty launches one.
	ControlURL string
	Bin        string
	Headless   bool
	// PageMatch selects the first tab whose URL contains it.
	PageMatch    string
	StartURL     string
	PollInterval time.Duration
	Hook         HookConfig
	Logger       *slog.Logger
}

// Document is a dom.Document backed by a rod page.
type Document struct {
	browser  *rod.Browser
	page     *rod.Page
	launched bool
	logger   *slog.Logger
	poll     time.Duration
	events   chan dom.Event
	storage  *storage

	ctxMu sync.RWMutex
	ctx   context.Context
}

var _ dom.Document = (*Document)(nil)

// Attach connects to the browser, selects the host tab and installs the hook.
func Attach(ctx context.Context, opts Options) (*Document, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	controlURL := opts.ControlURL
	launched := false
	if controlURL == "" {
		l := launcher.New().Headless(opts.Headless)
		if opts.Bin != "" {
			l = l.Bin(opts.Bin)
		}
		u, err := l.Launch()
		if err != nil {
			return nil, fmt.Errorf("roddom: launch browser: %w", err)
		}
		controlURL = u
		launched = true
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		return nil, fmt.Errorf("roddom: connect %s: %w", controlURL, err)
	}

	page, err := selectPage(browser, opts.PageMatch, opts.StartURL)
	if err != nil {
		if launched {
			_ = browser.Close()
		}
		return nil, err
	}

	script, err := hookScript(opts.Hook)
	if err != nil {
		return nil, err
	}
	if _, err := page.EvalOnNewDocument(script); err != nil {
		return nil, fmt.Errorf("roddom: install hook: %w", err)
	}
	if _, err := page.Evaluate(&rod.EvalOptions{JS: "() => " + script, ByValue: true}); err != nil {
		logger.Warn("hook not installed on current document", slog.Any("error", err))
	}

	poll := opts.PollInterval
	if poll <= 0 {
		poll = 100 * time.Millisecond
	}
	d := &Document{
		browser:  browser,
		page:     page,
		launched: launched,
		logger:   logger,
		poll:     poll,
		events:   make(chan dom.Event, 256),
		ctx:      ctx,
	}
	d.storage = &storage{doc: d}
	return d, nil
}

func selectPage(browser *rod.Browser, match, startURL string) (*rod.Page, error) {
	pages, err := browser.Pages()
	if err != nil {
		return nil, fmt.Errorf("roddom: list pages: %w", err)
	}
	for _, p := range pages {
		info, err := p.Info()
		if err != nil {
			continue
		}
		if match == "" || strings.Contains(info.URL, match) {
			return p, nil
		}
	}
	if startURL == "" {
		return nil, ErrNoPage
	}
	page, err := browser.Page(proto.TargetCreateTarget{URL: startURL})
	if err != nil {
		return nil, fmt.Errorf("roddom: open %s: %w", startURL, err)
	}
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("roddom: load %s: %w", startURL, err)
	}
	return page, nil
}

// Run drains the hook buffer into Events until ctx is done, then closes
// the event channel.
func (d *Document) Run(ctx context.Context) error {
	d.ctxMu.Lock()
	d.ctx = ctx
	d.ctxMu.Unlock()
	defer close(d.events)

	ticker := time.NewTicker(d.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			var batch []dom.Event
			if !d.call(&batch, "drain") {
				continue
			}
			for _, ev := range batch {
				select {
				case d.events <- ev:
				case <-ctx.Done():
					return nil
				}
			}
		}
	}
}

// Close releases the browser if Attach launched it.
func (d *Document) Close() error {
	if d.launched {
		return d.browser.Close()
	}
	return nil
}

// Cookies returns the cookies of the attached page, for forwarding the
// host session to RPC calls.
func (d *Document) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	res, err := proto.NetworkGetCookies{}.Call(d.page.Context(ctx))
	if err != nil {
		return nil, fmt.Errorf("roddom: get cookies: %w", err)
	}
	out := make([]*http.Cookie, 0, len(res.Cookies))
	for _, c := range res.Cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Secure:   c.Secure,
			HttpOnly: c.HTTPOnly,
		})
	}
	return out, nil
}

func (d *Document) context() context.Context {
	d.ctxMu.RLock()
	defer d.ctxMu.RUnlock()
	return d.ctx
}

// call invokes a hook operation and decodes its result into out. It
// reports false when the page is gone or the hook is missing.
func (d *Document) call(out any, name string, args ...any) bool {
	if args == nil {
		args = []any{}
	}
	res, err := d.page.Context(d.context()).Evaluate(&rod.EvalOptions{
		JS:      `(name, args) => window.__overlay ? window.__overlay.call(name, args) : null`,
		JSArgs:  []interface{}{name, args},
		ByValue: true,
	})
	if err != nil || res == nil {
		if err != nil && !errors.Is(err, context.Canceled) {
			d.logger.Debug("hook call failed", slog.String("op", name), slog.Any("error", err))
		}
		return false
	}
	if res.Value.Nil() {
		return false
	}
	if out == nil {
		return true
	}
	raw, err := res.Value.MarshalJSON()
	if err != nil {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

func (d *Document) handle(name string, args ...any) dom.Element {
	var h int64
	if !d.call(&h, name, args...) || h == 0 {
		return nil
	}
	return &element{doc: d, h: h}
}

func (d *Document) handles(name string, args ...any) []dom.Element {
	var hs []int64
	if !d.call(&hs, name, args...) {
		return nil
	}
	out := make([]dom.Element, 0, len(hs))
	for _, h := range hs {
		if h != 0 {
			out = append(out, &element{doc: d, h: h})
		}
	}
	return out
}

func (d *Document) QueryOne(selector string) dom.Element {
	return d.handle("q", 0, selector)
}

func (d *Document) QueryAll(selector string) []dom.Element {
	return d.handles("qa", 0, selector)
}

func (d *Document) ByID(id string) dom.Element {
	if id == "" {
		return nil
	}
	return d.handle("byId", id)
}

func (d *Document) Body() dom.Element { return d.handle("body") }

func (d *Document) Create(tag string) dom.Element { return d.handle("create", tag) }

func (d *Document) Location() string {
	var s string
	d.call(&s, "location")
	return s
}

func (d *Document) Title() string {
	var s string
	d.call(&s, "title")
	return s
}

func (d *Document) ViewportWidth() int {
	var w int
	d.call(&w, "width")
	return w
}

func (d *Document) Storage() dom.Storage { return d.storage }

func (d *Document) Navigate(href string) { d.call(nil, "navigate", href) }

func (d *Document) Reload() {
	if err := d.page.Context(d.context()).Reload(); err != nil {
		d.logger.Warn("page reload failed", slog.Any("error", err))
	}
}

func (d *Document) Events() <-chan dom.Event { return d.events }

type storage struct {
	doc *Document
}

func (s *storage) Get(key string) (string, bool) {
	var v *string
	if !s.doc.call(&v, "getItem", key) || v == nil {
		return "", false
	}
	return *v, true
}

func (s *storage) Set(key, value string) {
	s.doc.call(nil, "setItem", key, value)
}
