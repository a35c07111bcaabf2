package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/MrJamesThe3rd/spendtrack/internal/auth"
	"github.com/MrJamesThe3rd/spendtrack/internal/category"
	categoryStore "github.com/MrJamesThe3rd/spendtrack/internal/category/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/config"
	"github.com/MrJamesThe3rd/spendtrack/internal/database"
	"github.com/MrJamesThe3rd/spendtrack/internal/export"
	spendHttp "github.com/MrJamesThe3rd/spendtrack/internal/http"
	categoryHandler "github.com/MrJamesThe3rd/spendtrack/internal/http/category"
	exportHandler "github.com/MrJamesThe3rd/spendtrack/internal/http/export"
	importHandler "github.com/MrJamesThe3rd/spendtrack/internal/http/importcsv"
	reportHandler "github.com/MrJamesThe3rd/spendtrack/internal/http/report"
	rulesHandler "github.com/MrJamesThe3rd/spendtrack/internal/http/rules"
	txHandler "github.com/MrJamesThe3rd/spendtrack/internal/http/transaction"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer/cgd"
	"github.com/MrJamesThe3rd/spendtrack/internal/importer/native"
	"github.com/MrJamesThe3rd/spendtrack/internal/report"
	reportStore "github.com/MrJamesThe3rd/spendtrack/internal/report/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/rules"
	rulesStore "github.com/MrJamesThe3rd/spendtrack/internal/rules/store"
	"github.com/MrJamesThe3rd/spendtrack/internal/transaction"
	txStore "github.com/MrJamesThe3rd/spendtrack/internal/transaction/store"
)

const shutdownTimeout = 15 * time.Second

func main() {
	if err := run(); err != nil {
		slog.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	level, _ := cfg.Level()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := database.Migrate(cfg.ConnectionString()); err != nil {
		return fmt.Errorf("migrating database: %w", err)
	}

	db, err := database.New(ctx, cfg.ConnectionString(), database.PoolConfig{
		MaxOpenConns:    cfg.DB.MaxOpenConns,
		MaxIdleConns:    cfg.DB.MaxIdleConns,
		ConnMaxLifetime: cfg.DB.ConnMaxLifetime,
	})
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	var (
		transactionService = transaction.NewService(txStore.New(db))
		categoryService    = category.NewService(categoryStore.New(db))
		rulesService       = rules.NewService(rulesStore.New(db))
		reportService      = report.NewService(reportStore.New(db))
		exportService      = export.NewService(transactionService)
		importService      = importer.NewService(transactionService, categoryService, rulesService,
			native.NewParser(), cgd.NewParser())
	)

	issuer := auth.NewIssuer(cfg.Auth.JWTSecret, cfg.Auth.Issuer, cfg.Auth.TokenTTL)
	if !issuer.Enabled() {
		slog.Warn("AUTH_JWT_SECRET is empty, API authentication is disabled")
	}

	router := spendHttp.New(spendHttp.Handlers{
		Transactions: txHandler.NewHandler(transactionService),
		Categories:   categoryHandler.NewHandler(categoryService),
		Rules:        rulesHandler.NewHandler(rulesService),
		Reports:      reportHandler.NewHandler(reportService),
		Import:       importHandler.NewHandler(importService),
		Export:       exportHandler.NewHandler(exportService),
	}, spendHttp.Options{
		Timeout:      cfg.Server.Timeout,
		AllowOrigins: cfg.Server.AllowOrigins,
		Auth:         issuer,
		DB:           db,
	})

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       cfg.Server.Timeout,
		WriteTimeout:      cfg.Server.Timeout + 5*time.Second,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)

	go func() {
		slog.Info("starting server", "addr", srv.Addr, "app", cfg.App.Name)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}

		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	return srv.Shutdown(shutdownCtx)
}
