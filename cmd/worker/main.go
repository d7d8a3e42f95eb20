package main

import (
	"context"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/pakkhtun/biryani-backend/internal/auth"
	"github.com/pakkhtun/biryani-backend/internal/config"
	"github.com/pakkhtun/biryani-backend/internal/events"
	"github.com/pakkhtun/biryani-backend/internal/obs"
	"github.com/pakkhtun/biryani-backend/internal/order"
	"github.com/pakkhtun/biryani-backend/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("component", "worker").Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "biryani")
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool := mustInitDatabase(ctx, cfg, logger)
	defer pool.Close()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisConn := asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB}

	handlers := &tasks.Handlers{
		Orders:     order.NewStore(pool),
		OTPs:       auth.NewPGStore(pool),
		Events:     events.NewBus(events.NewPGStore(pool), logger),
		PendingTTL: cfg.OrderPendingTTL,
		Log:        logger,
	}

	mux := asynq.NewServeMux()
	handlers.Register(mux)

	srv := asynq.NewServer(redisConn, asynq.Config{
		Concurrency: 10,
		Queues:      map[string]int{"default": 1},
		Logger:      asynqLogger{logger},
	})

	scheduler := asynq.NewScheduler(redisConn, &asynq.SchedulerOpts{})
	if _, err := scheduler.Register("@every 10m", tasks.NewOTPPurgeTask()); err != nil {
		logger.Fatal().Err(err).Msg("register otp purge schedule")
	}
	if _, err := scheduler.Register("@every 10m", tasks.NewOrderSweepTask()); err != nil {
		logger.Fatal().Err(err).Msg("register order sweep schedule")
	}

	go func() {
		if err := scheduler.Run(); err != nil {
			logger.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	go func() {
		<-ctx.Done()
		logger.Info().Msg("shutting down worker")
		scheduler.Shutdown()
		srv.Shutdown()
	}()

	logger.Info().Msg("worker starting")
	if err := srv.Run(mux); err != nil {
		logger.Fatal().Err(err).Msg("worker stopped with error")
	}
	logger.Info().Msg("worker shutdown complete")
}

func mustInitDatabase(ctx context.Context, cfg *config.Config, logger zerolog.Logger) *pgxpool.Pool {
	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "biryani-worker"

	connectCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	pool, err := pgxpool.NewWithConfig(connectCtx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	if err := pool.Ping(connectCtx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}
	return pool
}

// asynqLogger adapts zerolog to asynq's logger interface.
type asynqLogger struct {
	log zerolog.Logger
}

func (l asynqLogger) Debug(args ...any) { l.log.Debug().Msgf("%v", args) }
func (l asynqLogger) Info(args ...any)  { l.log.Info().Msgf("%v", args) }
func (l asynqLogger) Warn(args ...any)  { l.log.Warn().Msgf("%v", args) }
func (l asynqLogger) Error(args ...any) { l.log.Error().Msgf("%v", args) }
func (l asynqLogger) Fatal(args ...any) { l.log.Fatal().Msgf("%v", args) }

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}
