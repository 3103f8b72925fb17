package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	redisclient "github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	mongoadapter "github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/mongo"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/pg"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/rabbit"
	redisadapter "github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/redis"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/booking"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/config"
	httphandler "github.com/sakib-101-git/Sport-Zen-sub001/internal/http"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/idempotency"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/outbox"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/rateLimit"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/refund"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/settlement"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdown, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdown()

	logger := observability.NewLogger()

	if err := pg.Migrate(cfg.PostgresDSN); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	// Without the range-exclusion constraint the overlap invariant silently
	// degrades to best effort. Refuse to start.
	if err := repo.VerifyExclusionConstraint(context.Background()); err != nil {
		log.Fatalf("overlap constraint check failed: %v", err)
	}

	mongoClient, err := mongo.Connect(context.Background(), options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer mongoClient.Disconnect(context.Background())
	mongoDB := mongoClient.Database("sportzen")
	catalog := mongoadapter.NewCatalogRepository(mongoDB, logger)
	audit := mongoadapter.NewAuditLogger(mongoDB, logger)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	locks := redisadapter.NewSlotLock(redisClient, logger)
	idemp := idempotency.New(redisadapter.NewIdempotency(redisClient), cfg.IdempotencyTTL)
	rl := rateLimit.NewRateLimiter(redisadapter.NewCounters(redisClient))

	rabbitConn, err := amqp.Dial(cfg.RabbitURL)
	if err != nil {
		log.Fatalf("failed to connect to rabbitmq: %v", err)
	}
	defer rabbitConn.Close()
	rabbitPub, err := rabbit.NewPublisher(rabbitConn)
	if err != nil {
		log.Fatalf("failed to create publisher: %v", err)
	}

	refundPolicy := refund.Policy{Fee: cfg.CancelFee}
	bookings := booking.NewService(repo, locks, catalog, audit, refundPolicy, cfg.HoldWindow, logger)
	settlements := settlement.NewService(repo, locks, idemp, audit, cfg.SettleGrace, logger)

	// The API also drains the outbox so a single-binary deployment works;
	// cmd/outbox-publisher runs the same loop standalone.
	outboxPub := outbox.NewPublisher(repo, rabbitPub, logger)
	outboxCtx, outboxCancel := context.WithCancel(context.Background())
	defer outboxCancel()
	go outboxPub.Run(outboxCtx, 5*time.Second, 50)

	handlers := httphandler.NewHandlers(bookings, settlements, idemp, repo)
	r := httphandler.SetupRouter(handlers, logger, rl, cfg.RateLimitMax, cfg.RateLimitWindow)

	srv := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutdown Server ...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server Shutdown:", err)
	}
	logger.Info("Server exiting")
}
