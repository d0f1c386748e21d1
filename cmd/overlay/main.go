// Package main provides the overlay CLI entrypoint.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/invoice-overlay/cmd/overlay/cli"
	"github.com/odyssey-erp/invoice-overlay/internal/app"
	"github.com/odyssey-erp/invoice-overlay/internal/dom"
	"github.com/odyssey-erp/invoice-overlay/internal/dom/memdom"
	"github.com/odyssey-erp/invoice-overlay/internal/dom/roddom"
	"github.com/odyssey-erp/invoice-overlay/internal/i18n"
	jobmetrics "github.com/odyssey-erp/invoice-overlay/internal/jobs"
	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/observability"
	"github.com/odyssey-erp/invoice-overlay/internal/overlay"
	"github.com/odyssey-erp/invoice-overlay/internal/platform/cache"
	"github.com/odyssey-erp/invoice-overlay/internal/profile"
	"github.com/odyssey-erp/invoice-overlay/internal/records"
	"github.com/odyssey-erp/invoice-overlay/internal/state"
	"github.com/odyssey-erp/invoice-overlay/internal/view"
	"github.com/odyssey-erp/invoice-overlay/web"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "overlay",
		Short:         "Live invoice metrics and filters on top of the host web client",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	rootCmd.AddCommand(newRunCmd(), newSnapshotCmd(), newToggleCmd(), newDiagCmd())
	return rootCmd
}

// deps is what every command resolves from the environment.
type deps struct {
	cfg     *app.Config
	logger  *slog.Logger
	profile *profile.Profile
	text    i18n.UiText
	money   *kpi.MoneyFormatter
	loc     *time.Location
}

func loadDeps() (*deps, error) {
	cfg, err := app.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	logger := app.NewLogger(cfg)
	prof, err := profile.Load(cfg.ProfilePath)
	if err != nil {
		return nil, err
	}
	catalog, err := i18n.ParseCatalog(web.Messages)
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}
	return &deps{
		cfg:     cfg,
		logger:  logger,
		profile: prof,
		text:    i18n.BuildUiText(catalog.Translator(cfg.Locale)),
		money:   kpi.NewMoneyFormatter(cfg.Locale, cfg.Currency),
		loc:     loc,
	}, nil
}

// attachDocument opens the host page: a static file when OVERLAY_STATIC_PAGE
// is set, the live browser tab otherwise.
func attachDocument(ctx context.Context, d *deps, owner string) (dom.Document, func(context.Context) error, func() error, error) {
	if d.cfg.StaticPage != "" {
		markup, err := os.ReadFile(d.cfg.StaticPage)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("read static page: %w", err)
		}
		doc, err := memdom.Parse(string(markup), memdom.Options{URL: d.cfg.BrowserStartURL, Owner: owner})
		if err != nil {
			return nil, nil, nil, err
		}
		return doc, nil, func() error { return nil }, nil
	}
	doc, err := roddom.Attach(ctx, roddom.Options{
		ControlURL:   d.cfg.BrowserControlURL,
		Bin:          d.cfg.BrowserBin,
		Headless:     d.cfg.BrowserHeadless,
		PageMatch:    d.cfg.BrowserPageMatch,
		StartURL:     d.cfg.BrowserStartURL,
		PollInterval: d.cfg.DOMPollInterval,
		Hook: roddom.HookConfig{
			Owner:       owner,
			SearchInput: d.profile.Selectors.SearchInput,
		},
		Logger: d.logger,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return doc, doc.Run, doc.Close, nil
}

func newFetcher(d *deps, cookies records.CookieSource) records.Fetcher {
	if d.cfg.RequireRPC() != nil {
		return nil
	}
	return records.NewClient(records.Options{
		BaseURL: d.cfg.RPCBaseURL,
		Path:    d.cfg.RPCPath,
		Limit:   d.cfg.RPCLimit,
		Timeout: d.cfg.RPCTimeout,
		Cookies: cookies,
	})
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Attach to the host page and keep the overlay mounted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			d, err := loadDeps()
			if err != nil {
				return err
			}
			return run(ctx, d)
		},
	}
}

func run(ctx context.Context, d *deps) error {
	logger := d.logger
	owner := "overlay-" + uuid.NewString()

	redisClient, err := cache.New(ctx, d.cfg.RedisAddr)
	if err != nil {
		logger.Warn("redis unavailable, diagnostics stay local", slog.Any("error", err))
	}
	if redisClient != nil {
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Warn("redis close", slog.Any("error", err))
			}
		}()
	}

	metrics := observability.NewMetrics()
	diag := observability.NewDiagnostics(observability.DiagnosticsOptions{
		Logger:  logger,
		Metrics: metrics,
		Redis:   redisClient,
		Channel: d.cfg.DiagnosticsChannel,
	})

	doc, pump, closeDoc, err := attachDocument(ctx, d, owner)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeDoc(); err != nil {
			logger.Warn("close document", slog.Any("error", err))
		}
	}()

	var cookies records.CookieSource
	if live, ok := doc.(*roddom.Document); ok {
		cookies = live.Cookies
	}
	fetcher := newFetcher(d, cookies)
	if fetcher == nil {
		logger.Warn("RPC_BASE_URL not set, figures will not refresh")
	}

	templates, err := view.NewEngine()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}
	store := state.New(d.text, state.Options{
		Filter: kpi.Filter(d.cfg.InitialFilter),
		Card:   d.money.Card(kpi.Summarize(nil, kpi.Today(time.Now().In(d.loc)))),
	})

	engine, err := overlay.New(overlay.Options{
		Document:    doc,
		Profile:     d.profile,
		Store:       store,
		Fetcher:     fetcher,
		Formatter:   d.money,
		Presenter:   view.NewPresenter(templates, d.profile.Navigation.RailApps),
		Templates:   templates,
		Diagnostics: diag,
		Metrics:     metrics,
		Jobs:        jobmetrics.NewMetrics(metrics.Registerer()),
		Logger:      logger,
		MinRefresh:  d.cfg.RPCMinRefresh,
		Debounce:    d.cfg.BootstrapDebounce,
		MaxWait:     d.cfg.BootstrapMaxWait,
		Location:    d.loc,
	})
	if err != nil {
		return err
	}

	router := app.NewRouter(app.RouterParams{
		Logger:      logger,
		Config:      d.cfg,
		Metrics:     metrics,
		Store:       store,
		Diagnostics: diag,
		Filter:      engine,
	})
	server := &http.Server{
		Addr:         d.cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  d.cfg.AppReadTimeout,
		WriteTimeout: d.cfg.AppWriteTimeout,
	}

	group, gctx := errgroup.WithContext(ctx)
	if pump != nil {
		group.Go(func() error { return pump(gctx) })
	}
	group.Go(func() error {
		logger.Info("overlay engine started", slog.String("owner", owner), slog.String("location", doc.Location()))
		err := engine.Run(gctx)
		if errors.Is(err, overlay.ErrDocumentClosed) && gctx.Err() != nil {
			return nil
		}
		return err
	})
	group.Go(func() error {
		logger.Info("starting http server", slog.String("addr", d.cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	group.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("graceful shutdown", slog.Any("error", err))
		}
		return nil
	})
	return group.Wait()
}

func newSnapshotCmd() *cobra.Command {
	var (
		filter     string
		jsonOutput bool
		fresh      bool
	)
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Fetch the invoices once and print the KPI card",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			if err := d.cfg.RequireRPC(); err != nil {
				return err
			}
			ctx := cmd.Context()
			redisClient, err := cache.New(ctx, d.cfg.RedisAddr)
			if err != nil {
				d.logger.Warn("redis unavailable, snapshot not cached", slog.Any("error", err))
			}
			if redisClient != nil {
				defer redisClient.Close()
			}
			rows := cache.NewRowCache(redisClient, newFetcher(d, nil), cacheScope(d.cfg.RPCBaseURL), d.cfg.SnapshotCacheTTL)
			if fresh {
				if err := rows.Bump(ctx); err != nil {
					d.logger.Warn("bump snapshot cache", slog.Any("error", err))
				}
			}
			if code := cli.SnapshotCommand(ctx, cli.SnapshotOptions{
				Fetcher:    rows,
				Formatter:  d.money,
				Text:       d.text,
				Filter:     kpi.Filter(filter),
				Location:   d.loc,
				JSONOutput: jsonOutput,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			}); code != 0 {
				return fmt.Errorf("snapshot failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&filter, "filter", string(kpi.FilterAll), "active filter: all, paid, overdue, pending or draft")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print JSON instead of the card")
	cmd.Flags().BoolVar(&fresh, "fresh", false, "invalidate cached rows before fetching")
	return cmd
}

func cacheScope(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return baseURL
}

func newToggleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "toggle",
		Short: "Flip the persisted disable flag in the attached page and reload it",
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := loadDeps()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			doc, _, closeDoc, err := attachDocument(ctx, d, "overlay-toggle")
			if err != nil {
				return err
			}
			defer closeDoc()
			engine, err := overlay.New(overlay.Options{
				Document: doc,
				Profile:  d.profile,
				Store:    state.New(d.text, state.Options{}),
				Logger:   d.logger,
			})
			if err != nil {
				return err
			}
			status := "enabled"
			if engine.ToggleDisabled() {
				status = "disabled"
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "overlay %s\n", status)
			return err
		},
	}
}

func newDiagCmd() *cobra.Command {
	var (
		follow     bool
		jsonOutput bool
		addr       string
	)
	cmd := &cobra.Command{
		Use:   "diag",
		Short: "Show recent overlay failures, or follow them live",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := app.LoadConfig()
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			if addr == "" {
				addr = cfg.AppAddr
			}
			var redisClient *redis.Client
			if follow {
				redisClient, err = cache.New(ctx, cfg.RedisAddr)
				if err != nil {
					return err
				}
				if redisClient != nil {
					defer redisClient.Close()
				}
			}
			if code := cli.DiagCommand(ctx, cli.DiagOptions{
				BaseURL:    addr,
				Redis:      redisClient,
				Channel:    cfg.DiagnosticsChannel,
				Follow:     follow,
				JSONOutput: jsonOutput,
				Stdout:     cmd.OutOrStdout(),
				Stderr:     cmd.ErrOrStderr(),
			}); code != 0 {
				return fmt.Errorf("diag failed")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&follow, "follow", false, "stream failures from Redis")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "print one JSON object per failure")
	cmd.Flags().StringVar(&addr, "addr", "", "operator API address (defaults to APP_ADDR)")
	return cmd
}
