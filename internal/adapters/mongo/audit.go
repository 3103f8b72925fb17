package mongo

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/domain"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
)

// AuditLogger appends settlement and cancellation outcomes to an audit
// collection. Append failures are logged, never propagated: the ledger of
// record is Postgres, this trail is for operators.
type AuditLogger struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewAuditLogger(db *mongo.Database, logger observability.Logger) *AuditLogger {
	return &AuditLogger{
		coll:   db.Collection("audit_logs"),
		logger: logger,
	}
}

type auditLog struct {
	ID        uuid.UUID `bson:"_id"`
	Action    string    `bson:"action"`
	BookingID uuid.UUID `bson:"booking_id"`
	Timestamp time.Time `bson:"timestamp"`
	Data      bson.M    `bson:"data"`
}

func (a *AuditLogger) LogEvent(ctx context.Context, action string, bookingID uuid.UUID, data map[string]interface{}) {
	entry := auditLog{
		ID:        uuid.New(),
		Action:    action,
		BookingID: bookingID,
		Timestamp: time.Now(),
		Data:      bson.M(data),
	}
	if _, err := a.coll.InsertOne(ctx, entry); err != nil {
		a.logger.Error("failed to insert audit log", err)
	}
}

func (a *AuditLogger) LogSettlement(ctx context.Context, ev domain.PaymentEvent, outcome string) {
	a.LogEvent(ctx, "payment.settled", ev.BookingID, map[string]interface{}{
		"gateway":        ev.Gateway,
		"transaction_id": ev.TransactionID,
		"status":         ev.Status,
		"amount":         ev.Amount,
		"outcome":        outcome,
	})
}

func (a *AuditLogger) LogCancellation(ctx context.Context, refund domain.RefundRecord, actor string) {
	a.LogEvent(ctx, "booking.canceled", refund.BookingID, map[string]interface{}{
		"actor":         actor,
		"tier":          refund.Tier,
		"refund_amount": refund.RefundAmount,
		"fee_retained":  refund.FeeRetained,
	})
}
