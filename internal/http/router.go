package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/MrJamesThe3rd/spendtrack/internal/auth"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/category"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/export"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/importcsv"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/report"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/rules"
	"github.com/MrJamesThe3rd/spendtrack/internal/http/transaction"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Options struct {
	Timeout      time.Duration
	AllowOrigins []string
	Auth         *auth.Issuer
	DB           Pinger
}

type Handlers struct {
	Transactions *transaction.Handler
	Categories   *category.Handler
	Rules        *rules.Handler
	Reports      *report.Handler
	Import       *importcsv.Handler
	Export       *export.Handler
}

func New(h Handlers, opts Options) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)

	if opts.Timeout > 0 {
		router.Use(middleware.Timeout(opts.Timeout))
	}

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   opts.AllowOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	router.Get("/health", health(opts.DB))

	router.Route("/api/v1", func(r chi.Router) {
		if opts.Auth != nil {
			r.Use(opts.Auth.Middleware)
		}

		r.Route("/transactions", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Transactions.Routes(r)
		})

		r.Route("/categories", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Categories.Routes(r)
		})

		r.Route("/rules", func(r chi.Router) {
			r.Use(middleware.AllowContentType("application/json"))
			h.Rules.Routes(r)
		})

		r.Route("/reports", h.Reports.Routes)
		r.Route("/import", h.Import.Routes)
		r.Route("/export", h.Export.Routes)
	})

	return router
}

func health(db Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if db != nil {
			if err := db.PingContext(r.Context()); err != nil {
				http.Error(w, "database unavailable", http.StatusServiceUnavailable)
				return
			}
		}

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	}
}
