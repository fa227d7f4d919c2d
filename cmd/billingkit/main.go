package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/migrate"

	billgin "github.com/open-rails/billingkit/adapters/gin"
	"github.com/open-rails/billingkit/adapters/ginutil"
	billhttp "github.com/open-rails/billingkit/adapters/http"
	core "github.com/open-rails/billingkit/core"
	"github.com/open-rails/billingkit/entitlements"
	"github.com/open-rails/billingkit/events"
	migrations "github.com/open-rails/billingkit/migrations/postgres"
	amqpnotify "github.com/open-rails/billingkit/notify/amqp"
	memorylimiter "github.com/open-rails/billingkit/ratelimit/memory"
	redislimiter "github.com/open-rails/billingkit/ratelimit/redis"
	redisstore "github.com/open-rails/billingkit/storage/redis"
	"github.com/open-rails/billingkit/sweeper"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		log.Fatal("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		log.WithError(err).Fatal("postgres connect failed")
	}
	defer pool.Close()

	if err := runMigrations(ctx, pool); err != nil {
		log.WithError(err).Fatal("migrations failed")
	}

	schema := envOr("PG_SCHEMA", "billing")
	eventStore := events.NewStore(pool, schema)
	entStore := entitlements.NewStore(pool, schema)

	cfg := core.Config{
		WebhookSecret: os.Getenv("WEBHOOK_SECRET"),
		SweepAge:      envDuration("SWEEP_AGE", 10*time.Minute),
		SweepLimit:    envInt("SWEEP_LIMIT", 100),
	}
	svc := core.NewService(cfg, eventStore, entStore).WithLogger(log)

	var rl ginutil.RateLimiter = memorylimiter.New(nil)
	var cache billgin.EntitlementCache
	var rdb *redis.Client
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb = redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		rl = redislimiter.New(rdb, nil)
		c := redisstore.NewEntitlementCache(rdb, "", envDuration("CACHE_TTL", 5*time.Minute))
		cache = c
		svc.WithCache(c)
	}

	if url := os.Getenv("AMQP_URL"); url != "" {
		pub, err := amqpnotify.New(url, envOr("AMQP_EXCHANGE", "billing.events"), log)
		if err != nil {
			log.WithError(err).Fatal("amqp connect failed")
		}
		defer pub.Close()
		svc.WithNotifier(pub)
	}

	sw := sweeper.New(svc, log)
	if err := sw.Start(envOr("SWEEP_SCHEDULE", "*/5 * * * *")); err != nil {
		log.WithError(err).Fatal("sweeper schedule invalid")
	}
	defer sw.Stop()

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	billgin.RegisterAPI(r, svc, billgin.Options{
		JWTSecret: os.Getenv("JWT_SECRET"),
		Reader:    entStore,
		Cache:     cache,
		Limiter:   rl,
	})
	r.GET("/healthz", gin.WrapH(billhttp.HealthHandler(pool, redisPinger(rdb))))

	srv := &http.Server{
		Addr:              ":" + envOr("PORT", "8080"),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.WithField("addr", srv.Addr).Info("billingkit listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("shutdown was not clean")
	}
}

// runMigrations drives the embedded bun migrations over the shared pgx pool.
func runMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	sqldb := stdlib.OpenDBFromPool(pool)
	db := bun.NewDB(sqldb, pgdialect.New())
	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	_, err := migrator.Migrate(ctx)
	return err
}

func redisPinger(rdb *redis.Client) billhttp.Pinger {
	if rdb == nil {
		return nil
	}
	return billhttp.PingerFunc(func(ctx context.Context) error {
		return rdb.Ping(ctx).Err()
	})
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
