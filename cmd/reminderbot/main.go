// Command reminderbot runs the Telegram reminder backend: the webhook HTTP
// server, the guarded LLM command builder, and the dispatch scheduler.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/remindbot/go-reminder-backend/internal/config"
	"github.com/remindbot/go-reminder-backend/internal/domain"
	"github.com/remindbot/go-reminder-backend/internal/guard"
	httpapi "github.com/remindbot/go-reminder-backend/internal/http"
	"github.com/remindbot/go-reminder-backend/internal/llm"
	"github.com/remindbot/go-reminder-backend/internal/observability"
	"github.com/remindbot/go-reminder-backend/internal/repo"
	"github.com/remindbot/go-reminder-backend/internal/scheduler"
	"github.com/remindbot/go-reminder-backend/internal/services"
	"github.com/remindbot/go-reminder-backend/internal/sysutil"
	"github.com/remindbot/go-reminder-backend/internal/telegram"
)

const version = "1.0.0"

func main() {
	cfg := config.MustLoad()

	sysutil.SetLogLevel(cfg.LogLevel)
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})
	}
	gin.SetMode(cfg.GinMode)

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("invalid timezone")
	}

	ctx := context.Background()
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() { _ = shutdownOTel(context.Background()) }()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("database open failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// The breaker survives restarts: restore the persisted state and save
	// every transition back.
	breaker := guard.NewBreaker("llm", cfg.LLM.CircuitFailureThreshold, cfg.LLM.CircuitOpenFor)
	if rec, err := repo.LoadCircuit(ctx, db, "llm"); err == nil {
		breaker.Restore(rec)
	} else if !errors.Is(err, repo.ErrNotFound) {
		log.Warn().Err(err).Msg("circuit state load failed, starting closed")
	}
	breaker.StateChanged = func(rec domain.CircuitStateRecord) {
		if err := repo.SaveCircuit(context.Background(), db, &rec); err != nil {
			log.Error().Err(err).Str("state", rec.State).Msg("circuit state save failed")
		}
	}

	budget := &guard.Budget{
		DB:               db,
		MonthlyBudgetUSD: cfg.LLM.MonthlyBudgetUSD,
		InputCostPer1K:   cfg.LLM.InputCostPer1K,
		OutputCostPer1K:  cfg.LLM.OutputCostPer1K,
	}

	invoker := &llm.Invoker{
		Client: &llm.OpenAIClient{
			BaseURL:     cfg.LLM.BaseURL,
			APIKey:      cfg.LLM.APIKey,
			Model:       cfg.LLM.Model,
			CallTimeout: cfg.LLM.CallTimeout,
		},
		Limiter:     guard.NewChatLimiter(cfg.LLM.ChatRateRPS, cfg.LLM.ChatRateBurst),
		Breaker:     breaker,
		Budget:      budget,
		MaxAttempts: cfg.LLM.RetryMaxAttempts,
		InitialWait: cfg.LLM.RetryInitialWait,
		Log:         log.With().Str("component", "llm").Logger(),
	}

	sender, err := telegram.NewSender(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("telegram init failed")
	}

	dispatcher := &services.Dispatcher{
		DB:        db,
		Sender:    sender,
		BatchSize: cfg.DispatchBatchSize,
		Log:       log.With().Str("component", "dispatcher").Logger(),
	}
	sched := scheduler.New(loc, db, dispatcher, log.With().Str("component", "scheduler").Logger())
	if err := sched.Start(); err != nil {
		log.Fatal().Err(err).Msg("scheduler start failed")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, db, loc, httpapi.Dependencies{
		Builder: invoker,
		Sender:  sender,
		Breaker: breaker,
		Budget:  budget,
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")
	sched.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}

	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("stopped")
}
