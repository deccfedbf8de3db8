package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"EpochVault/internal/api"
	"EpochVault/internal/config"
	"EpochVault/internal/custody"
	"EpochVault/internal/metrics"
	"EpochVault/internal/model"
	"EpochVault/internal/notifier"
	"EpochVault/internal/payoff"
	"EpochVault/internal/recorder"
	"EpochVault/internal/scheduler"
	"EpochVault/internal/valuation"
	"EpochVault/internal/vault"
)

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, cfg, logger); err != nil {
		logger.Error("vaultd stopped", zap.Error(err))
		return err
	}
	return nil
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("vaultd starting", zap.String("vault", cfg.Vault.Account))
	self := model.Account(cfg.Vault.Account)

	// Custody and valuation
	basePath := custodyPath(cfg.Vault.StateFile, cfg.Vault.BaseSymbol)
	base, err := custody.LoadLedger(basePath, cfg.Vault.BaseSymbol)
	if err != nil {
		return fmt.Errorf("load base custody: %w", err)
	}
	store := &daemonStore{
		vault:   vault.FileStore{Path: cfg.Vault.StateFile},
		ledgers: map[string]*custody.Ledger{basePath: base},
	}
	portfolio := &valuation.Portfolio{
		Holder:     self,
		Base:       base,
		SideSymbol: cfg.Vault.SideSymbol,
		Logger:     logger.Named("valuation"),
	}
	if cfg.Vault.SideSymbol != "" {
		sidePath := custodyPath(cfg.Vault.StateFile, cfg.Vault.SideSymbol)
		side, err := custody.LoadLedger(sidePath, cfg.Vault.SideSymbol)
		if err != nil {
			return fmt.Errorf("load side custody: %w", err)
		}
		store.ledgers[sidePath] = side
		portfolio.Side = side
		if cfg.PriceFeed.Source == "http" {
			portfolio.Feed = valuation.NewHTTPFeed(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey, cfg.Proxy)
		} else {
			portfolio.Feed = valuation.NewYahooFeed(cfg.Proxy)
		}
		logger.Info("side asset valued by feed", zap.String("symbol", cfg.Vault.SideSymbol), zap.String("feed", portfolio.Feed.Name()))
	}

	// Recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, logger.Named("recorder"))
		if err != nil {
			logger.Warn("init sqlite recorder failed, using noop", zap.Error(err))
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}
	defer rec.Close()

	// Metrics
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	// Engine
	state, err := vault.LoadState(cfg.Vault.StateFile)
	if err != nil {
		return fmt.Errorf("load vault state: %w", err)
	}
	book := payoff.NewBook()
	eng, err := vault.New(vault.Options{
		Self:       self,
		Admin:      model.Account(cfg.Vault.Admin),
		Roller:     model.Account(cfg.Vault.Roller),
		Trader:     model.Account(cfg.Vault.Trader),
		Frequency:  cfg.Vault.Frequency,
		MaxDeposit: cfg.MaxDepositAmount(),
		Oracle:     book,
		Valuer:     portfolio,
		Custodian:  base,
		Journal:    rec,
		Store:      store,
		Metrics:    m,
		Logger:     logger.Named("vault"),
	}, state)
	if err != nil {
		return fmt.Errorf("init vault: %w", err)
	}

	// Notifier and scheduler
	var note scheduler.Notifier
	var tn *notifier.TelegramNotifier
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger.Named("telegram"))
		note = tn
	}
	sched := scheduler.NewScheduler(ctx, eng, model.Account(cfg.Vault.Roller), note, rec, logger.Named("scheduler"))
	if err := sched.RegisterAll(cfg.Schedule.RollCron); err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// HTTP API and metrics
	gin.SetMode(gin.ReleaseMode)
	router := api.NewServer(eng, book, rec, logger.Named("api")).Router(map[string]http.Handler{
		"/metrics": promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	})
	srv := &http.Server{Addr: cfg.Server.ListenAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", zap.String("addr", cfg.Server.ListenAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("http server shutdown", zap.Error(err))
		}
		return nil
	})
	if tn != nil && cfg.Telegram.Polling {
		g.Go(func() error {
			logger.Info("telegram polling started")
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
	}
	if cfg.Schedule.RollOnStart {
		logger.Info("roll_on_start enabled, checking for an expired epoch now")
		g.Go(func() error {
			sched.RunRollNow()
			return nil
		})
	}

	logger.Info("vaultd running", zap.Time("epoch_ends", eng.Epoch().Current))
	err = g.Wait()
	logger.Info("vaultd stopping")
	return err
}
