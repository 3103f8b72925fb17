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

// CatalogRepository reads venue configuration owned by the facility service:
// pricing profiles, peak rules, and owner-defined blocks. Read-only here.
type CatalogRepository struct {
	profiles *mongo.Collection
	blocks   *mongo.Collection
	logger   observability.Logger
}

func NewCatalogRepository(db *mongo.Database, logger observability.Logger) *CatalogRepository {
	return &CatalogRepository{
		profiles: db.Collection("profiles"),
		blocks:   db.Collection("blocks"),
		logger:   logger,
	}
}

type profileDoc struct {
	ID              uuid.UUID     `bson:"_id"`
	ResourceGroupID uuid.UUID     `bson:"resource_group_id"`
	OpenMinutes     int           `bson:"open_minutes"`
	CloseMinutes    int           `bson:"close_minutes"`
	SlotMinutes     int           `bson:"slot_minutes"`
	BufferMinutes   int           `bson:"buffer_minutes"`
	MinLeadMinutes  int           `bson:"min_lead_minutes"`
	MaxAdvanceDays  int           `bson:"max_advance_days"`
	AdvancePercent  float64       `bson:"advance_percent"`
	Durations       []durationDoc `bson:"durations"`
	PeakRules       []peakDoc     `bson:"peak_rules"`
}

type durationDoc struct {
	Minutes   int     `bson:"minutes"`
	Price     float64 `bson:"price"`
	PeakPrice float64 `bson:"peak_price"`
}

type peakDoc struct {
	Weekday     int `bson:"weekday"`
	FromMinutes int `bson:"from_minutes"`
	ToMinutes   int `bson:"to_minutes"`
}

type blockDoc struct {
	ID              uuid.UUID `bson:"_id"`
	ResourceGroupID uuid.UUID `bson:"resource_group_id"`
	StartAt         time.Time `bson:"start_at"`
	EndAt           time.Time `bson:"end_at"`
	Reason          string    `bson:"reason"`
}

func (c *CatalogRepository) GetProfile(ctx context.Context, id uuid.UUID) (*domain.Profile, error) {
	var doc profileDoc
	err := c.profiles.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get profile", err)
		return nil, err
	}
	return doc.toDomain(), nil
}

// GetProfileByGroup resolves the profile governing a resource group, for
// availability queries keyed by group rather than profile.
func (c *CatalogRepository) GetProfileByGroup(ctx context.Context, groupID uuid.UUID) (*domain.Profile, error) {
	var doc profileDoc
	err := c.profiles.FindOne(ctx, bson.M{"resource_group_id": groupID}).Decode(&doc)
	if err == mongo.ErrNoDocuments {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		c.logger.Error("failed to get profile by group", err)
		return nil, err
	}
	return doc.toDomain(), nil
}

func (doc profileDoc) toDomain() *domain.Profile {
	p := &domain.Profile{
		ID:                 doc.ID,
		ResourceGroupID:    doc.ResourceGroupID,
		OpenAt:             time.Duration(doc.OpenMinutes) * time.Minute,
		CloseAt:            time.Duration(doc.CloseMinutes) * time.Minute,
		SlotInterval:       time.Duration(doc.SlotMinutes) * time.Minute,
		Buffer:             time.Duration(doc.BufferMinutes) * time.Minute,
		MinLeadTime:        time.Duration(doc.MinLeadMinutes) * time.Minute,
		MaxAdvanceDays:     doc.MaxAdvanceDays,
		AdvancePercent:     doc.AdvancePercent,
		DurationPrices:     make(map[time.Duration]float64, len(doc.Durations)),
		PeakDurationPrices: make(map[time.Duration]float64, len(doc.Durations)),
	}
	for _, d := range doc.Durations {
		dur := time.Duration(d.Minutes) * time.Minute
		p.AllowedDurations = append(p.AllowedDurations, dur)
		p.DurationPrices[dur] = d.Price
		p.PeakDurationPrices[dur] = d.PeakPrice
	}
	for _, rule := range doc.PeakRules {
		p.PeakRules = append(p.PeakRules, domain.PeakRule{
			Weekday: time.Weekday(rule.Weekday),
			From:    time.Duration(rule.FromMinutes) * time.Minute,
			To:      time.Duration(rule.ToMinutes) * time.Minute,
		})
	}
	return p
}

func (c *CatalogRepository) GetBlocks(ctx context.Context, groupID uuid.UUID, from, to time.Time) ([]domain.Block, error) {
	cursor, err := c.blocks.Find(ctx, bson.M{
		"resource_group_id": groupID,
		"start_at":          bson.M{"$lt": to},
		"end_at":            bson.M{"$gt": from},
	})
	if err != nil {
		c.logger.Error("failed to list blocks", err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var blocks []domain.Block
	for cursor.Next(ctx) {
		var doc blockDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		blocks = append(blocks, domain.Block{
			ID:              doc.ID,
			ResourceGroupID: doc.ResourceGroupID,
			StartAt:         doc.StartAt,
			EndAt:           doc.EndAt,
			Reason:          doc.Reason,
		})
	}
	return blocks, cursor.Err()
}
