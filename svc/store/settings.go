package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/jackira01/scort-web-site-sub002/pkg/mongo"
	"github.com/jackira01/scort-web-site-sub002/pkg/settings"
)

var _ settings.Source = (*SettingsSource)(nil)

type parameter struct {
	Key       string    `bson:"key"`
	Value     any       `bson:"value"`
	IsActive  bool      `bson:"is_active"`
	UpdatedAt time.Time `bson:"updated_at"`
}

// SettingsSource reads key/value documents from config_parameters. Inactive
// parameters are reported as missing.
type SettingsSource struct {
	col *mongo.Collection
}

// NewSettingsSource creates a SettingsSource over db.
func NewSettingsSource(db *mongo.Database) *SettingsSource {
	return &SettingsSource{col: db.Collection(ColConfigParameters)}
}

func (s *SettingsSource) Lookup(ctx context.Context, key string) (any, bool, error) {
	var p parameter
	if err := s.col.FindOne(ctx, bson.M{"key": key, "is_active": true}).Decode(&p); err != nil {
		if mongox.IsNoDocuments(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("store: lookup parameter: %w", err)
	}
	return p.Value, true, nil
}

// Set upserts an active parameter.
func (s *SettingsSource) Set(ctx context.Context, key string, value any) error {
	p := parameter{Key: key, Value: value, IsActive: true, UpdatedAt: time.Now().UTC()}
	if _, err := s.col.ReplaceOne(ctx, bson.M{"key": key}, p, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("store: set parameter: %w", err)
	}
	return nil
}
