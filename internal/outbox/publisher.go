package outbox

import (
	"context"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/pg"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/adapters/rabbit"
	"github.com/sakib-101-git/Sport-Zen-sub001/internal/observability"
)

// Publisher drains the outbox table into RabbitMQ. Records are marked
// published only after a successful publish; a crash in between means a
// redelivery, which consumers dedupe on the dedupe key.
type Publisher struct {
	repo      *pg.Repository
	rabbitPub *rabbit.Publisher
	logger    observability.Logger
}

func NewPublisher(repo *pg.Repository, rabbitPub *rabbit.Publisher, logger observability.Logger) *Publisher {
	return &Publisher{repo: repo, rabbitPub: rabbitPub, logger: logger}
}

func (p *Publisher) Run(ctx context.Context, interval time.Duration, batch int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.drain(ctx, batch); err != nil {
				p.logger.Error("outbox drain failed", err)
			}
		}
	}
}

func (p *Publisher) drain(ctx context.Context, batch int) error {
	records, err := p.repo.GetUnpublishedOutbox(ctx, batch)
	if err != nil {
		return err
	}
	for _, rec := range records {
		msg := amqp.Publishing{
			MessageId:   rec.DedupeKey,
			ContentType: "application/json",
			Body:        rec.Payload,
		}
		if err := p.rabbitPub.Publish(ctx, rec.EventType, msg); err != nil {
			p.logger.WithField("event_type", rec.EventType).Error("publish failed", err)
			continue
		}
		if err := p.repo.MarkPublished(ctx, rec.ID, time.Now()); err != nil {
			p.logger.Error("mark published failed", err)
		}
	}
	return nil
}
