package mongo

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"staybook/internal/infra/inbox"
	"staybook/internal/infra/outbox"
)

// EnsureIndexes creates every index the stores rely on. It is idempotent.
func EnsureIndexes(ctx context.Context, db *mongo.Database, idempotencyTTL time.Duration) error {
	plan := map[string][]mongo.IndexModel{
		bookingsCollection:    bookingIndexes(),
		propertiesCollection:  propertyIndexes(),
		idempotencyCollection: idempotencyIndexes(idempotencyTTL),
		usersCollection:       userIndexes(),
		sessionsCollection:    sessionIndexes(),
		outbox.CollectionName: outbox.Indexes(),
		inbox.CollectionName:  inbox.Indexes(),
	}
	for name, models := range plan {
		if len(models) == 0 {
			continue
		}
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", name, err)
		}
	}
	return nil
}
