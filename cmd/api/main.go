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

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/picklefed/court-reservation/internal/api"
	"github.com/picklefed/court-reservation/internal/api/handler"
	"github.com/picklefed/court-reservation/internal/api/middleware"
	"github.com/picklefed/court-reservation/internal/application"
	"github.com/picklefed/court-reservation/internal/config"
	"github.com/picklefed/court-reservation/internal/domain/court"
	"github.com/picklefed/court-reservation/internal/domain/pricing"
	"github.com/picklefed/court-reservation/internal/domain/reservation"
	"github.com/picklefed/court-reservation/internal/infrastructure/memory"
	"github.com/picklefed/court-reservation/internal/infrastructure/payment"
	"github.com/picklefed/court-reservation/internal/infrastructure/postgres"
	"github.com/picklefed/court-reservation/internal/infrastructure/rabbitmq"
	redisinfra "github.com/picklefed/court-reservation/internal/infrastructure/redis"
	"github.com/picklefed/court-reservation/internal/pkg/clock"
	"github.com/picklefed/court-reservation/internal/pkg/logger"
	"github.com/picklefed/court-reservation/internal/pkg/metrics"
	"github.com/picklefed/court-reservation/internal/pkg/tracing"
	"github.com/picklefed/court-reservation/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "設定読み込みエラー: %v\n", err)
		os.Exit(1)
	}
	logger.Set(logger.NewLogger(cfg.Env))
	defer logger.Sync()

	if err := run(cfg); err != nil {
		logger.Fatal("サーバー起動エラー", zap.Error(err))
	}
}

func run(cfg *config.Config) error {
	ctx := context.Background()

	shutdownTracing, err := tracing.Init(ctx, cfg.Telemetry, cfg.Env)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("トレース終了エラー", zap.Error(err))
		}
	}()

	checks := map[string]handler.Checker{}

	// ストレージ
	var (
		courts       court.Repository
		reservations reservation.Repository
	)
	if cfg.Database.Enabled {
		db, err := postgres.NewConnection(&cfg.Database)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := postgres.RunMigrations(db.DB, cfg.Database.MigrationsPath); err != nil {
			return err
		}
		courtRepo := postgres.NewCourtRepository(db)
		if cfg.Database.SeedDemoCourts {
			for _, c := range demoCourts(cfg.Booking) {
				if err := courtRepo.Save(ctx, c); err != nil {
					return fmt.Errorf("デモ用コートの登録に失敗: %w", err)
				}
			}
			logger.Info("デモ用コートを登録しました")
		}
		courts = courtRepo
		reservations = postgres.NewReservationRepository(db)
		checks["postgres"] = func(ctx context.Context) error { return postgres.Ping(ctx, db) }
		logger.Info("PostgreSQLに接続しました", zap.String("host", cfg.Database.Host))
	} else {
		courts = memory.NewCourtStore(demoCourts(cfg.Booking)...)
		reservations = memory.NewReservationStore()
		logger.Warn("インメモリストアで起動します")
	}

	// ロックと空き状況キャッシュ
	var (
		locker application.Locker = application.NewLocalLocker()
		cache  application.AvailabilityCache
	)
	if cfg.Redis.Enabled {
		rc, err := redisinfra.NewClient(&redisinfra.Config{
			Host:     cfg.Redis.Host,
			Port:     cfg.Redis.Port,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return err
		}
		defer rc.Close()
		b := cfg.Booking
		locker = redisinfra.NewCourtLocker(redisinfra.NewLockManager(rc), b.LockTTL, b.LockRetries, b.LockRetryDelay)
		cache = redisinfra.NewAvailabilityCache(rc, b.AvailabilityCacheTTL)
		checks["redis"] = func(ctx context.Context) error { return redisinfra.Ping(ctx, rc) }
	}

	gateway, err := payment.NewGateway(cfg.Payment)
	if err != nil {
		return err
	}

	m := metrics.Init()
	opts := []application.Option{
		application.WithCalculator(pricing.NewCalculator(pricing.PerGuestPerHour(cfg.Booking.GuestSurchargePerHour))),
		application.WithCancellationPolicy(reservation.TieredPolicy{
			FullRefundBefore:    cfg.Booking.FullRefundBefore,
			PartialRefundBefore: cfg.Booking.PartialRefundBefore,
			PartialPercent:      cfg.Booking.PartialRefundPercent,
		}),
		application.WithMetrics(m),
		application.WithPaymentRequired(cfg.Booking.RequirePayment),
	}
	if cache != nil {
		opts = append(opts, application.WithAvailabilityCache(cache))
	}
	if cfg.RabbitMQ.URL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, application.WithPublisher(pub))
	}

	bookingService := application.NewBookingService(courts, reservations, gateway, clock.Real{}, locker, opts...)

	sweeper := worker.NewNoShowSweeper(bookingService, cfg.Booking.NoShowSweepInterval, cfg.Booking.NoShowGrace)
	go sweeper.Start(ctx)
	defer sweeper.Stop()

	e := newServer(cfg, bookingService, checks, m)

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("サーバーを起動します", zap.String("port", cfg.Server.Port))
		if err := e.Start(fmt.Sprintf(":%s", cfg.Server.Port)); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// シグナル待機
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errCh:
		return err
	}

	logger.Info("サーバーをシャットダウンしています...")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(sctx); err != nil {
		return fmt.Errorf("サーバーシャットダウンエラー: %w", err)
	}

	logger.Info("サーバーが正常にシャットダウンしました")
	return nil
}

func newServer(cfg *config.Config, svc handler.BookingServiceInterface, checks map[string]handler.Checker, m *metrics.Metrics) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Server.ReadTimeout = cfg.Server.ReadTimeout
	e.Server.WriteTimeout = cfg.Server.WriteTimeout
	e.Validator = api.NewValidator()
	e.HTTPErrorHandler = api.CustomHTTPErrorHandler
	middleware.SetupMiddleware(e, middleware.Options{RateLimit: cfg.Server.RateLimit, Metrics: m})

	e.GET("/health", handler.NewHealthHandler(checks).Check)
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()), middleware.MetricsBasicAuth(cfg.Metrics))

	v1 := e.Group("/api/v1")
	handler.NewAvailabilityHandler(svc).Register(v1)
	handler.NewReservationHandler(svc).Register(v1)
	return e
}

// demoCourts はインメモリ起動時とシード時のコート
func demoCourts(b config.BookingConfig) []*court.Court {
	list := make([]*court.Court, 0, 2)
	for i, t := range []court.Type{court.TypeIndoor, court.TypeOutdoor} {
		list = append(list, &court.Court{
			ID:           fmt.Sprintf("court-%d", i+1),
			ClubID:       "club-1",
			Name:         fmt.Sprintf("Court %d", i+1),
			Type:         t,
			HourlyRate:   4500,
			MemberRate:   3500,
			IsAvailable:  true,
			OpenHour:     b.OpenHour,
			CloseHour:    b.CloseHour,
			SlotDuration: b.SlotDuration,
			Location:     b.Location,
		})
	}
	return list
}
