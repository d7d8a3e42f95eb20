package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	validator "github.com/go-playground/validator/v10"
	"github.com/hibiken/asynq"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/pakkhtun/biryani-backend/internal/auth"
	"github.com/pakkhtun/biryani-backend/internal/common"
	"github.com/pakkhtun/biryani-backend/internal/config"
	"github.com/pakkhtun/biryani-backend/internal/coupon"
	"github.com/pakkhtun/biryani-backend/internal/events"
	"github.com/pakkhtun/biryani-backend/internal/health"
	"github.com/pakkhtun/biryani-backend/internal/menu"
	"github.com/pakkhtun/biryani-backend/internal/obs"
	"github.com/pakkhtun/biryani-backend/internal/order"
	"github.com/pakkhtun/biryani-backend/internal/payment"
	"github.com/pakkhtun/biryani-backend/internal/pricing"
	"github.com/pakkhtun/biryani-backend/internal/ratelimit"
	"github.com/pakkhtun/biryani-backend/internal/tasks"
	"github.com/pakkhtun/biryani-backend/internal/user"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "biryani")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "biryani-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			SamplingRatio: envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0),
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	if cfg.MigrateOnStart {
		if err := runMigrations(cfg); err != nil {
			logger.Fatal().Err(err).Msg("run migrations")
		}
		logger.Info().Msg("migrations applied")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse database config")
	}
	if poolConfig.ConnConfig.RuntimeParams == nil {
		poolConfig.ConnConfig.RuntimeParams = map[string]string{}
	}
	poolConfig.ConnConfig.RuntimeParams["application_name"] = "biryani-api"

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		logger.Fatal().Err(err).Msg("connect database")
	}
	defer pool.Close()
	if err := pool.Ping(ctx); err != nil {
		logger.Fatal().Err(err).Msg("ping database")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if metricsEnabled {
		if err := redisotel.InstrumentMetrics(redisClient); err != nil {
			logger.Error().Err(err).Msg("instrument redis metrics")
		}
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close redis")
		}
	}()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	asynqClient := asynq.NewClient(asynq.RedisClientOpt{Addr: redisOpts.Addr, Password: redisOpts.Password, DB: redisOpts.DB})
	defer func() {
		if err := asynqClient.Close(); err != nil {
			logger.Error().Err(err).Msg("close asynq client")
		}
	}()

	v := validator.New()

	couponStore := coupon.NewStore(pool)
	fees := pricing.FeeSchedule{
		pricing.ModeDelivery: cfg.DeliveryFee,
		pricing.ModeTakeaway: pricing.DefaultFeeSchedule()[pricing.ModeTakeaway],
	}
	engine := pricing.NewEngine(couponStore, fees)
	couponHandler := &coupon.Handler{Store: couponStore, Engine: engine, V: v}

	menuStore := menu.NewStore(pool)
	menuSvc := &menu.Service{Store: menuStore, Redis: redisClient, TTL: cfg.MenuCacheTTL}
	menuHandler := &menu.Handler{Svc: menuSvc, Store: menuStore, V: v}

	authStore := auth.NewPGStore(pool)
	authSvc, err := auth.NewService(auth.Config{
		Store:      authStore,
		Secret:     cfg.JWTSecret,
		OTPTTL:     cfg.OTPTTL,
		SessionTTL: cfg.SessionTTL,
		DemoCode:   cfg.OTPDemoCode,
		Production: cfg.Production(),
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise auth service")
	}
	otpLimiter, err := ratelimit.NewOTPLimiter(redisClient, cfg.OTPRateLimit)
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise otp limiter")
	}
	authHandler := &auth.Handler{Svc: authSvc, V: v, Limiter: otpLimiter}
	requireAuth := auth.RequireAuth(authSvc)
	requireAdmin := auth.RequireAdmin(cfg.AdminToken)

	userStore := user.NewStore(pool)
	userHandler := &user.Handler{Store: userStore, V: v}

	bus := events.NewBus(events.NewPGStore(pool), logger)

	orderStore := order.NewStore(pool)
	orderSvc := &order.Service{
		Store:      orderStore,
		Engine:     engine,
		Payments:   payment.Simulated{},
		Events:     bus,
		Tasks:      tasks.NewEnqueuer(asynqClient),
		PendingTTL: cfg.OrderPendingTTL,
		DefaultETA: cfg.OrderETAMinutes,
		Log:        logger,
	}
	orderHandler := &order.Handler{Svc: orderSvc, V: v}

	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestSize(1 << 20))
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "Idempotency-Key"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	healthHandler := &health.Handler{Checks: []health.Checker{
		health.CheckFunc{Label: "postgres", Fn: func(ctx context.Context) error { return pool.Ping(ctx) }},
		health.CheckFunc{Label: "redis", Fn: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v1 chi.Router) {
		v1.Get("/menu", menuHandler.List)
		v1.Get("/menu/categories", menuHandler.ListCategories)
		v1.Get("/coupons", couponHandler.List)
		v1.Get("/offers", couponHandler.Offers)
		v1.Post("/cart/apply-coupon", couponHandler.Apply)
		v1.Get("/track/{orderID}", orderHandler.Track)

		v1.Route("/auth/otp", func(a chi.Router) {
			a.Post("/request", authHandler.Request)
			a.Post("/verify", authHandler.Verify)
		})

		v1.Route("/me", func(me chi.Router) {
			me.Use(requireAuth)
			me.Get("/", userHandler.Me)
			me.Patch("/", userHandler.UpdateMe)
			me.Get("/addresses", userHandler.ListAddresses)
			me.Post("/addresses", userHandler.AddAddress)
			me.Get("/favorites", userHandler.ListFavorites)
			me.Post("/favorites/{itemID}", userHandler.ToggleFavorite)
		})

		v1.Group(func(g chi.Router) {
			g.Use(requireAuth)
			g.With(idem.Middleware).Post("/orders", orderHandler.Place)
			g.Get("/orders", orderHandler.History)
			g.Get("/orders/{orderID}", orderHandler.Get)
		})

		v1.Route("/admin", func(admin chi.Router) {
			admin.Use(requireAdmin)
			admin.Post("/menu", menuHandler.AdminCreate)
			admin.Put("/menu/{itemID}", menuHandler.AdminUpdate)
			admin.Delete("/menu/{itemID}", menuHandler.AdminDelete)
			admin.Post("/coupons", couponHandler.AdminCreate)
			admin.Put("/coupons/{code}", couponHandler.AdminUpdate)
			admin.Post("/orders/{orderID}/status", orderHandler.AdminSetStatus)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func runMigrations(cfg *config.Config) error {
	m, err := migrate.New("file://"+cfg.MigrationsPath, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer m.Close()
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return err
	}
	return nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		if trimmed := strings.TrimSpace(val); trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}
