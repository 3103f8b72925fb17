package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/pg"
	redisadapter "github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/redis"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/booking"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	httpapi "github.com/sakib-101-git/Sport-Zen-sub001/internal/http"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/idempotency"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/rateLimit"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/refund"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/settlement"
)

// staticCatalog stands in for the facility service: one profile, no blocks.
type staticCatalog struct {
	profile domain.Profile
}

func (c *staticCatalog) GetProfile(context.Context, uuid.UUID) (*domain.Profile, error) {
	p := c.profile
	return &p, nil
}

func (c *staticCatalog) GetProfileByGroup(context.Context, uuid.UUID) (*domain.Profile, error) {
	p := c.profile
	return &p, nil
}

func (c *staticCatalog) GetBlocks(context.Context, uuid.UUID, time.Time, time.Time) ([]domain.Block, error) {
	return nil, nil
}

type nopAudit struct{}

func (nopAudit) LogCancellation(context.Context, domain.RefundRecord, string) {}
func (nopAudit) LogSettlement(context.Context, domain.PaymentEvent, string)   {}

func startPostgres(t *testing.T, ctx context.Context) string {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "postgres:16-alpine",
			ExposedPorts: []string{"5432/tcp"},
			Env: map[string]string{
				"POSTGRES_USER":     "sportzen",
				"POSTGRES_PASSWORD": "sportzen",
				"POSTGRES_DB":       "sportzen",
			},
			WaitingFor: wait.ForLog("database system is ready to accept connections").WithOccurrence(2),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("postgres://sportzen:sportzen@%s:%s/sportzen?sslmode=disable", host, port.Port())
}

func startRedis(t *testing.T, ctx context.Context) string {
	t.Helper()
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor:   wait.ForLog("Ready to accept connections"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { container.Terminate(ctx) })

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatal(err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatal(err)
	}
	return fmt.Sprintf("%s:%s", host, port.Port())
}

func TestBookingFlow(t *testing.T) {
	ctx := context.Background()
	logger := observability.NewLogger()

	dsn := startPostgres(t, ctx)
	if err := pg.Migrate(dsn); err != nil {
		t.Fatal(err)
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)
	repo := pg.NewRepository(pool)

	redisClient := goredis.NewClient(&goredis.Options{Addr: startRedis(t, ctx)})
	t.Cleanup(func() { redisClient.Close() })

	profile := domain.Profile{
		ID:               uuid.New(),
		ResourceGroupID:  uuid.New(),
		OpenAt:           8 * time.Hour,
		CloseAt:          22 * time.Hour,
		SlotInterval:     time.Hour,
		Buffer:           15 * time.Minute,
		MinLeadTime:      time.Hour,
		MaxAdvanceDays:   30,
		AdvancePercent:   0.5,
		AllowedDurations: []time.Duration{time.Hour},
		DurationPrices:   map[time.Duration]float64{time.Hour: 1000},
	}
	catalog := &staticCatalog{profile: profile}

	locks := redisadapter.NewSlotLock(redisClient, logger)
	idemp := idempotency.New(redisadapter.NewIdempotency(redisClient), time.Hour)
	audit := nopAudit{}

	bookings := booking.NewService(repo, locks, catalog, audit, refund.Policy{Fee: 50}, 10*time.Minute, logger)
	settlements := settlement.NewService(repo, locks, idemp, audit, 0, logger)

	handlers := httpapi.NewHandlers(bookings, settlements, idemp, repo)
	rl := rateLimit.NewRateLimiter(redisadapter.NewCounters(redisClient))
	server := httptest.NewServer(httpapi.SetupRouter(handlers, logger, rl, 100, time.Minute))
	t.Cleanup(server.Close)

	startAt := time.Now().UTC().Add(48 * time.Hour).Truncate(time.Hour)

	holdBody := map[string]interface{}{
		"profile_id":       profile.ID,
		"resource_id":      uuid.New(),
		"start_at":         startAt.Format(time.RFC3339),
		"duration_minutes": 60,
		"customer_name":    "sam",
		"customer_phone":   "+8801700000000",
	}

	// Create the hold.
	var hold struct {
		BookingID     uuid.UUID `json:"booking_id"`
		HoldExpiresAt time.Time `json:"hold_expires_at"`
	}
	resp := postJSON(t, server.URL+"/v1/holds", holdBody, &hold)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create hold: status %d", resp.StatusCode)
	}
	if hold.BookingID == uuid.Nil {
		t.Fatal("no booking id returned")
	}

	// The same range is taken.
	resp = postJSON(t, server.URL+"/v1/holds", holdBody, nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("duplicate hold: status %d, want 409", resp.StatusCode)
	}

	// Gateway settles the advance payment.
	webhook := map[string]interface{}{
		"gateway":        "sslcommerz",
		"transaction_id": "txn-001",
		"booking_id":     hold.BookingID,
		"status":         "SUCCESS",
		"amount":         500,
	}
	var settled struct {
		Status       string `json:"status"`
		CheckInToken string `json:"check_in_token"`
	}
	resp = postJSON(t, server.URL+"/v1/payments/webhook", webhook, &settled)
	if resp.StatusCode != http.StatusOK || settled.Status != "CONFIRMED" {
		t.Fatalf("webhook: status %d result %+v", resp.StatusCode, settled)
	}
	if settled.CheckInToken == "" {
		t.Fatal("no check-in token issued")
	}

	// Redelivery returns the recorded result, token included.
	var replay struct {
		Status       string `json:"status"`
		CheckInToken string `json:"check_in_token"`
	}
	resp = postJSON(t, server.URL+"/v1/payments/webhook", webhook, &replay)
	if resp.StatusCode != http.StatusOK || replay.CheckInToken != settled.CheckInToken {
		t.Fatalf("webhook replay: status %d result %+v", resp.StatusCode, replay)
	}

	// Booking detail reflects the transition.
	var detail struct {
		Status string `json:"status"`
	}
	resp = getJSON(t, server.URL+"/v1/bookings/"+hold.BookingID.String(), &detail)
	if resp.StatusCode != http.StatusOK || detail.Status != "CONFIRMED" {
		t.Fatalf("get booking: status %d detail %+v", resp.StatusCode, detail)
	}

	// Cancel 48h out: full tier, advance minus fee.
	var canceled struct {
		Tier         string  `json:"refund_tier"`
		RefundAmount float64 `json:"refund_amount"`
	}
	resp = postJSON(t, server.URL+"/v1/bookings/"+hold.BookingID.String()+"/cancel", map[string]string{"actor": "customer"}, &canceled)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("cancel: status %d", resp.StatusCode)
	}
	if canceled.Tier != string(domain.RefundTierFull) || canceled.RefundAmount != 450 {
		t.Fatalf("cancel result %+v", canceled)
	}

	// The canceled range is bookable again.
	resp = postJSON(t, server.URL+"/v1/holds", holdBody, nil)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("rebook after cancel: status %d", resp.StatusCode)
	}

	// Readiness includes the constraint check.
	resp = getJSON(t, server.URL+"/v1/readyz", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("readyz: status %d", resp.StatusCode)
	}
}

func postJSON(t *testing.T, url string, body interface{}, out interface{}) *http.Response {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode < 300 {
			t.Fatal(err)
		}
	}
	return resp
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && resp.StatusCode < 300 {
			t.Fatal(err)
		}
	}
	return resp
}
