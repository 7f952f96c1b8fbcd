package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

// Collection names.
const (
	ColProfiles         = "profiles"
	ColInvoices         = "invoices"
	ColCoupons          = "coupons"
	ColPlans            = "plan_definitions"
	ColUpgrades         = "upgrade_definitions"
	ColConfigParameters = "config_parameters"
	ColUsers            = "users"
)

// Stores bundles the MongoDB implementation of every store contract over one database.
type Stores struct {
	db *mongo.Database

	Catalog  *CatalogStore
	Profiles *ProfileStore
	Invoices *InvoiceStore
	Coupons  *CouponStore
	Settings *SettingsSource
	Users    *UserDirectory
}

// New wires every store over db. Panics if db is nil.
func New(db *mongo.Database) *Stores {
	if db == nil {
		panic("store: mongo Database is required")
	}
	return &Stores{
		db:       db,
		Catalog:  NewCatalogStore(db),
		Profiles: NewProfileStore(db),
		Invoices: NewInvoiceStore(db),
		Coupons:  NewCouponStore(db),
		Settings: NewSettingsSource(db),
		Users:    NewUserDirectory(db),
	}
}

// EnsureIndexes creates the indexes every collection relies on. It is safe to
// run on every start.
func (s *Stores) EnsureIndexes(ctx context.Context) error {
	for col, models := range indexes() {
		if _, err := s.db.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("store: ensure %s indexes: %w", col, err)
		}
	}
	return nil
}

func indexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		ColPlans: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColUpgrades: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColCoupons: {
			{Keys: bson.D{{Key: "code", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColConfigParameters: {
			{Keys: bson.D{{Key: "key", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		ColProfiles: {
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "is_deleted", Value: 1}}},
			{Keys: bson.D{{Key: "visible", Value: 1}, {Key: "is_active", Value: 1}, {Key: "plan_assignment.expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "upgrades.end_at", Value: 1}}},
		},
		ColInvoices: {
			{Keys: bson.D{{Key: "profile_id", Value: 1}, {Key: "status", Value: 1}, {Key: "created_at", Value: -1}}},
			{Keys: bson.D{{Key: "status", Value: 1}, {Key: "expires_at", Value: 1}}},
			{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}}},
		},
	}
}

// exists reports whether a document matches filter.
func exists(ctx context.Context, col *mongo.Collection, filter any) (bool, error) {
	n, err := col.CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
