package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/booking"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/idempotency"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/settlement"
)

// Health is what readyz probes: the store must confirm the overlap
// constraint is in place before we accept traffic.
type Health interface {
	VerifyExclusionConstraint(ctx context.Context) error
}

type Handlers struct {
	bookings    *booking.Service
	settlements *settlement.Service
	idemp       *idempotency.Idempotency
	health      Health
}

func NewHandlers(bookings *booking.Service, settlements *settlement.Service, idemp *idempotency.Idempotency, health Health) *Handlers {
	return &Handlers{
		bookings:    bookings,
		settlements: settlements,
		idemp:       idemp,
		health:      health,
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrSlotUnavailable):
		// Safe to retry after re-fetching availability.
		http.Error(w, "slot unavailable", http.StatusConflict)
	case errors.Is(err, domain.ErrCannotCancel):
		http.Error(w, "cannot cancel", http.StatusConflict)
	case errors.Is(err, domain.ErrNotFound):
		http.Error(w, "not found", http.StatusNotFound)
	case errors.Is(err, domain.ErrInvalidInput):
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}

func (h *Handlers) CreateHold(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProfileID       uuid.UUID `json:"profile_id"`
		ResourceID      uuid.UUID `json:"resource_id"`
		StartAt         time.Time `json:"start_at"`
		DurationMinutes int       `json:"duration_minutes"`
		CustomerName    string    `json:"customer_name"`
		CustomerPhone   string    `json:"customer_phone"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	holdReq := booking.HoldRequest{
		ProfileID:     req.ProfileID,
		ResourceID:    req.ResourceID,
		StartAt:       req.StartAt,
		Duration:      time.Duration(req.DurationMinutes) * time.Minute,
		CustomerName:  req.CustomerName,
		CustomerPhone: req.CustomerPhone,
		OwnerID:       req.CustomerPhone,
	}

	// An Idempotency-Key makes client retries of the same hold request safe;
	// failures are not cached, so a rejected hold can be retried directly.
	if key := r.Header.Get("Idempotency-Key"); key != "" {
		result, replayed, err := idempotency.DoJSON(r.Context(), h.idemp, "hold:"+key, func(ctx context.Context) (*booking.HoldResult, error) {
			return h.bookings.CreateHold(ctx, holdReq)
		})
		if err != nil {
			writeError(w, err)
			return
		}
		status := http.StatusCreated
		if replayed {
			status = http.StatusOK
		}
		writeJSON(w, status, result)
		return
	}

	result, err := h.bookings.CreateHold(r.Context(), holdReq)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handlers) GetAvailability(w http.ResponseWriter, r *http.Request) {
	groupID, err := uuid.Parse(r.URL.Query().Get("group"))
	if err != nil {
		http.Error(w, "invalid group", http.StatusBadRequest)
		return
	}
	date, err := time.Parse("2006-01-02", r.URL.Query().Get("date"))
	if err != nil {
		http.Error(w, "invalid date", http.StatusBadRequest)
		return
	}

	grid, err := h.bookings.Availability(r.Context(), groupID, date)
	if err != nil {
		writeError(w, err)
		return
	}

	// Keyed by whole minutes for the wire.
	resp := make(map[string]interface{}, len(grid))
	for duration, slots := range grid {
		resp[strconv.Itoa(int(duration.Minutes()))] = slots
	}
	writeJSON(w, http.StatusOK, resp)
}

// PaymentWebhook receives the gateway's verified settlement event. Signature
// verification happens upstream; duplicates are resolved by the idempotency
// cache, so this endpoint is safe under at-least-once delivery.
func (h *Handlers) PaymentWebhook(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Gateway       string    `json:"gateway"`
		TransactionID string    `json:"transaction_id"`
		BookingID     uuid.UUID `json:"booking_id"`
		Status        string    `json:"status"`
		Amount        float64   `json:"amount"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := h.settlements.Settle(r.Context(), domain.PaymentEvent{
		Gateway:       req.Gateway,
		TransactionID: req.TransactionID,
		BookingID:     req.BookingID,
		Status:        domain.PaymentIntentStatus(req.Status),
		Amount:        req.Amount,
	})
	if err != nil {
		// Failed deliveries get redelivered by the gateway; log enough to
		// correlate the retry.
		LoggerFrom(r.Context()).WithField("transaction_id", req.TransactionID).Error("settlement failed: ", err)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) CancelBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	var req struct {
		Actor string `json:"actor"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Actor == "" {
		req.Actor = "customer"
	}

	result, err := h.bookings.Cancel(r.Context(), id, req.Actor)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handlers) GetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}

	b, err := h.bookings.Get(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"booking_id":      b.ID,
		"status":          b.Status,
		"start_at":        b.StartAt,
		"end_at":          b.EndAt,
		"hold_expires_at": b.HoldExpiresAt,
		"total_amount":    b.TotalAmount,
		"advance_amount":  b.AdvanceAmount,
	})
}

func (h *Handlers) Healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// Readyz fails when the overlap constraint is missing: without it,
// correctness silently degrades to best effort, so the instance must not
// serve.
func (h *Handlers) Readyz(w http.ResponseWriter, r *http.Request) {
	if err := h.health.VerifyExclusionConstraint(r.Context()); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}
