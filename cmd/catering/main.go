// Package main запускает HTTP-сервер сервиса заказов кейтеринга.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mmeshcher/catering-system/internal/activity"
	"github.com/mmeshcher/catering-system/internal/config"
	"github.com/mmeshcher/catering-system/internal/handler"
	"github.com/mmeshcher/catering-system/internal/middleware"
	"github.com/mmeshcher/catering-system/internal/notify"
	"github.com/mmeshcher/catering-system/internal/repository"
	"github.com/mmeshcher/catering-system/internal/service"
)

const (
	notifyTimeout   = 10 * time.Second
	activityTimeout = 5 * time.Second
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync()

	sugar := logger.Sugar()

	cfg, err := config.Parse()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	loc, err := cfg.Location()
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	policy, err := notify.ParsePolicy(cfg.NotifyStatuses)
	if err != nil {
		sugar.Fatalw("configuration error", "error", err.Error())
	}

	repo, err := repository.NewPostgresRepository(cfg.DatabaseURI)
	if err != nil {
		sugar.Fatalw("database initialization error", "error", err.Error())
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var recorder activity.Recorder = activity.NoopRecorder{}
	if cfg.MongoURI != "" {
		mongoRecorder, err := activity.NewMongoRecorder(ctx, cfg.MongoURI, cfg.MongoDatabase)
		if err != nil {
			sugar.Fatalw("activity log initialization error", "error", err.Error())
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = mongoRecorder.Close(closeCtx)
		}()
		recorder = mongoRecorder
	}

	activityLog := activity.NewAsync(recorder, logger, activityTimeout)
	defer activityLog.Wait()

	dispatchers := notify.Fanout{notify.NewLogDispatcher(logger)}
	if cfg.NATSURL != "" {
		natsDispatcher, err := notify.NewNATSDispatcher(cfg.NATSURL)
		if err != nil {
			sugar.Fatalw("nats initialization error", "error", err.Error())
		}
		defer natsDispatcher.Close()
		dispatchers = append(dispatchers, natsDispatcher)
	}
	if cfg.SESSender != "" {
		sesDispatcher, err := notify.NewSESDispatcher(ctx, cfg.SESRegion, cfg.SESSender)
		if err != nil {
			sugar.Fatalw("ses initialization error", "error", err.Error())
		}
		dispatchers = append(dispatchers, sesDispatcher)
	}

	async := notify.NewAsync(dispatchers, logger, notifyTimeout)
	defer async.Wait()

	svc := service.NewService(repo, async, activityLog, logger, service.Options{
		Location:      loc,
		Policy:        policy,
		PenaltyAmount: cfg.PenaltyAmount,
		PenaltyWindow: cfg.PenaltyWindowDays,
		SweepInterval: cfg.SweepInterval,
		HomeCity:      cfg.HomeCity,
		DeliveryFee:   cfg.DeliveryFee,
		AdminEmail:    cfg.AdminEmail,
	})
	defer svc.Close()

	authMiddleware := middleware.NewAuthMiddleware(cfg.JWTSecret).WithRoleLookup(svc)
	h := handler.NewHandler(svc, logger, authMiddleware)

	server := &http.Server{
		Addr:              cfg.RunAddress,
		Handler:           h.SetupRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	// Периодическая проверка возврата оборудования
	g.Go(func() error {
		svc.StartEquipmentSweeps(ctx)
		return nil
	})

	g.Go(func() error {
		sugar.Infow("starting catering server",
			"addr", cfg.RunAddress, "timezone", loc.String(), "notify", policy.String())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})

	// Graceful shutdown при отмене контекста (сигнал или ошибка в другой горутине)
	g.Go(func() error {
		<-ctx.Done()
		sugar.Info("shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		sugar.Info("server stopped gracefully")
		return nil
	})

	if err := g.Wait(); err != nil {
		sugar.Errorw("application terminated with error", "error", err)
	}
}
