package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	redisclient "github.com/redis/go-redis/v9"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/pg"
	redisadapter "github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/redis"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/config"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
)

// The sweeper is capacity hygiene, not correctness: expiry is also checked
// lazily at settlement and in availability, with the same predicate. Flipping
// stale HOLD rows just frees the range for future availability queries.
func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	shutdownOtel, err := observability.SetupOTel(context.Background(), cfg)
	if err != nil {
		log.Fatalf("failed to setup otel: %v", err)
	}
	defer shutdownOtel()

	logger := observability.NewLogger()

	pool, err := pgxpool.New(context.Background(), cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	repo := pg.NewRepository(pool)

	redisClient := redisclient.NewClient(&redisclient.Options{Addr: cfg.RedisAddr})
	locks := redisadapter.NewSlotLock(redisClient, logger)

	sweeper := NewSweeper(repo, locks, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go sweeper.Run(ctx, time.Minute)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	logger.Info("Shutdown expiry sweeper")
}

type Sweeper struct {
	repo   *pg.Repository
	locks  *redisadapter.SlotLock
	logger observability.Logger
}

func NewSweeper(repo *pg.Repository, locks *redisadapter.SlotLock, logger observability.Logger) *Sweeper {
	return &Sweeper{repo: repo, locks: locks, logger: logger}
}

func (s *Sweeper) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if err := s.sweep(ctx, now); err != nil {
				s.logger.Error("sweep failed", err)
			}
		}
	}
}

func (s *Sweeper) sweep(ctx context.Context, now time.Time) error {
	expired, err := s.repo.ExpireStaleHolds(ctx, now)
	if err != nil {
		return err
	}
	for _, b := range expired {
		s.releaseAndAnnounce(ctx, b)
	}
	if len(expired) > 0 {
		s.logger.WithField("count", len(expired)).Info("expired stale holds")
	}
	return nil
}

func (s *Sweeper) releaseAndAnnounce(ctx context.Context, b domain.Booking) {
	s.locks.Release(ctx, b.ResourceGroupID.String(), b.StartAt, b.EndAt, b.ID.String())

	err := s.repo.PublishEvent(ctx, "booking", b.ID, "booking.expired", map[string]interface{}{
		"booking_id":        b.ID,
		"resource_group_id": b.ResourceGroupID,
		"start_at":          b.StartAt,
	})
	if err != nil {
		s.logger.WithField("booking_id", b.ID.String()).Error("queue expired event failed", err)
	}
}
