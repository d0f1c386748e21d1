package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/odyssey-erp/invoice-overlay/internal/kpi"
	"github.com/odyssey-erp/invoice-overlay/internal/observability"
	"github.com/odyssey-erp/invoice-overlay/internal/overlay"
	"github.com/odyssey-erp/invoice-overlay/internal/platform/httpx"
	"github.com/odyssey-erp/invoice-overlay/internal/state"
)

// FilterSetter switches the active filter on the running engine.
type FilterSetter interface {
	RequestFilter(ctx context.Context, f kpi.Filter) (kpi.Filter, error)
}

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger      *slog.Logger
	Config      *Config
	Metrics     *observability.Metrics
	Store       *state.Store
	Diagnostics *observability.Diagnostics
	Filter      FilterSetter
}

// NewRouter constructs the operator chi.Router.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:  params.Logger,
		Config:  params.Config,
		Metrics: params.Metrics,
	}) {
		r.Use(mw)
	}

	if params.Config == nil || !params.Config.IsProduction() {
		r.Use(chimw.Logger)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	r.Get("/state", func(w http.ResponseWriter, r *http.Request) {
		if params.Store == nil {
			httpx.RespondError(w, httpx.ErrUnavailable)
			return
		}
		httpx.JSON(w, http.StatusOK, params.Store.Snapshot())
	})

	r.Get("/diagnostics", func(w http.ResponseWriter, r *http.Request) {
		failures := params.Diagnostics.Recent()
		if failures == nil {
			failures = []observability.Failure{}
		}
		httpx.JSON(w, http.StatusOK, map[string]any{"failures": failures})
	})

	r.Post("/filter/{name}", func(w http.ResponseWriter, r *http.Request) {
		name := chi.URLParam(r, "name")
		f := kpi.Filter(name)
		if !f.Valid() {
			httpx.RespondError(w, fmt.Errorf("%w: unknown filter %q", httpx.ErrValidation, name))
			return
		}
		if params.Filter == nil {
			httpx.RespondError(w, httpx.ErrUnavailable)
			return
		}
		active, err := params.Filter.RequestFilter(r.Context(), f)
		if err != nil {
			if errors.Is(err, overlay.ErrStopped) {
				err = fmt.Errorf("%w: %v", httpx.ErrUnavailable, err)
			}
			if params.Logger != nil {
				params.Logger.Warn("set filter", slog.String("filter", name), slog.Any("error", err))
			}
			httpx.RespondError(w, err)
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"active_filter": string(active)})
	})

	return r
}
