package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/parisxmas/OxiForms/internal/config"
	"github.com/parisxmas/OxiForms/internal/docstore/backend"
	"github.com/parisxmas/OxiForms/internal/handler"
	"github.com/parisxmas/OxiForms/internal/logging"
	"github.com/parisxmas/OxiForms/internal/repository"
	"github.com/parisxmas/OxiForms/internal/router"
	"github.com/parisxmas/OxiForms/internal/service"
)

func main() {
	cfg := config.Load()

	logger, closeLog, err := logging.New(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	defer closeLog()
	zap.ReplaceGlobals(logger)
	log := logger.Sugar()

	if err := run(cfg, log); err != nil {
		log.Errorw("server stopped", "error", err)
		closeLog()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *zap.SugaredLogger) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := backend.Open(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer store.Close()

	// Repositories
	formRepo := repository.NewFormRepo(store, log)
	subRepo := repository.NewSubmissionRepo(store, log)
	typeRepo := repository.NewQuestionTypeRepo(store, log)

	// Services
	v := service.NewRequestValidator()
	formSvc := service.NewFormService(formRepo, typeRepo, v, log)
	subSvc := service.NewSubmissionService(subRepo, formRepo, v, log)

	// Router
	r := router.New(log, cfg.CORSOrigin, router.Handlers{
		Form:       handler.NewFormHandler(formSvc),
		Submission: handler.NewSubmissionHandler(subSvc),
		Health:     handler.NewHealthHandler(store),
	})
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	// Serve immediately; indexes and the type catalog are prepared in the
	// background.
	g.Go(func() error {
		bootstrap(gctx, log, formRepo, subRepo, typeRepo)
		return nil
	})

	g.Go(func() error {
		log.Infow("OxiForms server starting", "addr", cfg.HTTPAddr, "backend", cfg.Backend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		log.Infow("shutting down", "timeout", cfg.ShutdownTimeout)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func bootstrap(ctx context.Context, log *zap.SugaredLogger, forms *repository.FormRepo, subs *repository.SubmissionRepo, types *repository.QuestionTypeRepo) {
	start := time.Now()
	log.Info("background init: starting")

	if err := forms.EnsureIndexes(ctx); err != nil {
		log.Warnw("form index creation failed", "error", err)
	}
	if err := subs.EnsureIndexes(ctx); err != nil {
		log.Warnw("submission index creation failed", "error", err)
	}
	n, err := types.Seed(ctx)
	if err != nil {
		log.Warnw("question type seeding failed", "error", err)
	}
	log.Infow("background init: done", "seeded", n, "duration", time.Since(start).Round(time.Millisecond))
}
