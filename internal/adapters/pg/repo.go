package pg

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
)

// exclusionViolationCode is raised by the bookings_no_overlap constraint.
// It is the expected "slot taken" signal, not an infrastructure error.
const exclusionViolationCode = "23P01"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	defer func() {
		observability.DBTxDuration.Observe(time.Since(start).Seconds())
	}()

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if err := fn(tx); err != nil {
		return mapPgErr(err)
	}

	return tx.Commit(ctx)
}

func mapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == exclusionViolationCode {
		return domain.ErrSlotUnavailable
	}
	return err
}

const bookingColumns = `id, resource_group_id, resource_id, profile_id, customer_name, customer_phone,
	start_at, end_at, blocked_end_at, status, hold_expires_at,
	total_amount, advance_amount, payment_stage, check_in_token, created_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.ResourceGroupID, &b.ResourceID, &b.ProfileID, &b.CustomerName, &b.CustomerPhone,
		&b.StartAt, &b.EndAt, &b.BlockedEndAt, &b.Status, &b.HoldExpiresAt,
		&b.TotalAmount, &b.AdvanceAmount, &b.PaymentStage, &b.CheckInToken, &b.CreatedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

// CreateHold inserts a HOLD row. The bookings_no_overlap exclusion constraint
// is the authoritative overlap guard: a conflicting range is rejected
// atomically and surfaces as domain.ErrSlotUnavailable.
func (r *Repository) CreateHold(ctx context.Context, b domain.Booking) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO bookings (`+bookingColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, b.ID, b.ResourceGroupID, b.ResourceID, b.ProfileID, b.CustomerName, b.CustomerPhone,
		b.StartAt, b.EndAt, b.BlockedEndAt, b.Status, b.HoldExpiresAt,
		b.TotalAmount, b.AdvanceAmount, b.PaymentStage, b.CheckInToken, b.CreatedAt)
	return mapPgErr(err)
}

func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings WHERE id = $1
	`, id))
}

// FindOverlapping returns a booking other than excludeID currently occupying
// any part of [startAt, blockedEndAt) on the resource group, or ErrNotFound.
// A HOLD counts only while unexpired, with the same now >= hold_expires_at
// predicate used everywhere else.
func (r *Repository) FindOverlapping(ctx context.Context, groupID uuid.UUID, startAt, blockedEndAt time.Time, excludeID uuid.UUID, now time.Time) (*domain.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE resource_group_id = $1
		  AND id != $2
		  AND start_at < $4 AND blocked_end_at > $3
		  AND (status = 'CONFIRMED' OR (status = 'HOLD' AND hold_expires_at > $5))
		LIMIT 1
	`, groupID, excludeID, startAt, blockedEndAt, now))
}

// BookingsForRange returns HOLD and CONFIRMED bookings overlapping [from, to)
// for the availability projection, which applies the expiry predicate itself.
func (r *Repository) BookingsForRange(ctx context.Context, groupID uuid.UUID, from, to time.Time) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+bookingColumns+` FROM bookings
		WHERE resource_group_id = $1
		  AND start_at < $3 AND blocked_end_at > $2
		  AND status IN ('HOLD', 'CONFIRMED')
	`, groupID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// ConfirmHold flips a HOLD (or a swept EXPIRED row on the late-success grace
// path) to CONFIRMED, stores the check-in token, upserts the successful
// payment intent, and queues the confirmed event, all in one transaction.
// Re-entering the exclusion constraint from EXPIRED can itself conflict,
// which surfaces as ErrSlotUnavailable; zero rows updated means another
// transition already won and surfaces as ErrNotFound.
func (r *Repository) ConfirmHold(ctx context.Context, bookingID uuid.UUID, checkInToken string, intent domain.PaymentIntent) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'CONFIRMED', check_in_token = $2
			WHERE id = $1 AND status IN ('HOLD', 'EXPIRED')
		`, bookingID, checkInToken)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrNotFound
		}
		if err := upsertIntent(ctx, tx, intent); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, "booking", bookingID, "booking.confirmed", map[string]interface{}{
			"booking_id":     bookingID,
			"check_in_token": checkInToken,
		})
	})
}

// RecordLateConflict settles a success webhook that lost the race: the
// booking stays EXPIRED, the intent is marked LATE_SUCCESS_CONFLICT, and the
// payer is refunded in full. Every statement here is a no-op on
// re-application, so duplicate deliveries racing past the idempotency cache
// still produce exactly one refund and one refund.created event.
func (r *Repository) RecordLateConflict(ctx context.Context, bookingID uuid.UUID, intent domain.PaymentIntent, refund domain.RefundRecord) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		_, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'EXPIRED' WHERE id = $1 AND status = 'HOLD'
		`, bookingID)
		if err != nil {
			return err
		}
		if err := upsertIntent(ctx, tx, intent); err != nil {
			return err
		}
		inserted, err := insertRefund(ctx, tx, refund)
		if err != nil {
			return err
		}
		if !inserted {
			return nil
		}
		return insertOutbox(ctx, tx, "refund", refund.ID, "refund.created", map[string]interface{}{
			"booking_id":    bookingID,
			"refund_id":     refund.ID,
			"refund_amount": refund.RefundAmount,
			"tier":          refund.Tier,
		})
	})
}

// RecordIntent upserts a payment intent without touching the booking, for
// FAILED and EXPIRED gateway outcomes.
func (r *Repository) RecordIntent(ctx context.Context, intent domain.PaymentIntent) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		return upsertIntent(ctx, tx, intent)
	})
}

// CancelConfirmed flips CONFIRMED to CANCELED and records the computed
// refund. Zero rows updated means the booking is not cancelable.
func (r *Repository) CancelConfirmed(ctx context.Context, bookingID uuid.UUID, refund domain.RefundRecord) error {
	return r.WithTx(ctx, func(tx pgx.Tx) error {
		result, err := tx.Exec(ctx, `
			UPDATE bookings SET status = 'CANCELED' WHERE id = $1 AND status = 'CONFIRMED'
		`, bookingID)
		if err != nil {
			return err
		}
		if result.RowsAffected() == 0 {
			return domain.ErrCannotCancel
		}
		if _, err := insertRefund(ctx, tx, refund); err != nil {
			return err
		}
		return insertOutbox(ctx, tx, "booking", bookingID, "booking.canceled", map[string]interface{}{
			"booking_id":    bookingID,
			"tier":          refund.Tier,
			"refund_amount": refund.RefundAmount,
		})
	})
}

// ExpireStaleHolds flips every HOLD past its deadline to EXPIRED and returns
// the flipped rows so the caller can release slot locks and publish events.
// The predicate is hold_expires_at <= now, the one definition of expired.
func (r *Repository) ExpireStaleHolds(ctx context.Context, now time.Time) ([]domain.Booking, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE bookings SET status = 'EXPIRED'
		WHERE status = 'HOLD' AND hold_expires_at <= $1
		RETURNING `+bookingColumns+`
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var expired []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		expired = append(expired, *b)
	}
	return expired, rows.Err()
}

func upsertIntent(ctx context.Context, tx pgx.Tx, intent domain.PaymentIntent) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO payment_intents (id, booking_id, gateway, transaction_id, amount, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		ON CONFLICT (gateway, transaction_id)
		DO UPDATE SET status = EXCLUDED.status, updated_at = now()
	`, intent.ID, intent.BookingID, intent.Gateway, intent.TransactionID, intent.Amount, intent.Status)
	return err
}

// insertRefund reports whether a row was actually written. A conflict refund
// carries a payment_ref and is deduplicated on it, so concurrent redeliveries
// of the same payment event insert at most one row between them.
func insertRefund(ctx context.Context, tx pgx.Tx, refund domain.RefundRecord) (bool, error) {
	tag, err := tx.Exec(ctx, `
		INSERT INTO refunds (id, booking_id, tier, refund_amount, fee_retained, status, reason, payment_ref, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), now())
		ON CONFLICT (payment_ref) DO NOTHING
	`, refund.ID, refund.BookingID, refund.Tier, refund.RefundAmount, refund.FeeRetained, refund.Status, refund.Reason, refund.PaymentRef)
	if err != nil {
		return false, err
	}
	inserted := tag.RowsAffected() > 0
	if inserted {
		observability.RefundsIssued.Inc()
	}
	return inserted, nil
}

// VerifyExclusionConstraint checks that the range-exclusion constraint is in
// place. Without it overlap prevention silently degrades to best effort, so
// a missing constraint is fatal at startup.
func (r *Repository) VerifyExclusionConstraint(ctx context.Context) error {
	var exists bool
	err := r.pool.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_constraint
			WHERE conname = 'bookings_no_overlap' AND contype = 'x'
		)
	`).Scan(&exists)
	if err != nil {
		return err
	}
	if !exists {
		return errors.New("bookings_no_overlap exclusion constraint missing")
	}
	return nil
}
