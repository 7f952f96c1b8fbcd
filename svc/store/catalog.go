package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jackira01/scort-web-site-sub002/pkg/catalog"
	mongox "github.com/jackira01/scort-web-site-sub002/pkg/mongo"
)

var _ catalog.Store = (*CatalogStore)(nil)

// CatalogStore keeps plan and upgrade definitions in two collections.
type CatalogStore struct {
	plans    *mongo.Collection
	upgrades *mongo.Collection
}

// NewCatalogStore creates a CatalogStore over db.
func NewCatalogStore(db *mongo.Database) *CatalogStore {
	return &CatalogStore{
		plans:    db.Collection(ColPlans),
		upgrades: db.Collection(ColUpgrades),
	}
}

func (s *CatalogStore) ListPlans(ctx context.Context) ([]catalog.PlanDefinition, error) {
	var out []catalog.PlanDefinition
	if err := findAll(ctx, s.plans, bson.M{}, &out); err != nil {
		return nil, fmt.Errorf("store: list plans: %w", err)
	}
	return out, nil
}

func (s *CatalogStore) GetPlan(ctx context.Context, code string) (*catalog.PlanDefinition, error) {
	var p catalog.PlanDefinition
	if err := s.plans.FindOne(ctx, bson.M{"code": code}).Decode(&p); err != nil {
		if mongox.IsNoDocuments(err) {
			return nil, catalog.ErrPlanNotFound
		}
		return nil, fmt.Errorf("store: get plan: %w", err)
	}
	return &p, nil
}

func (s *CatalogStore) SavePlan(ctx context.Context, p *catalog.PlanDefinition) error {
	_, err := s.plans.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true))
	if err != nil {
		if mongox.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", catalog.ErrDuplicateCode, p.Code)
		}
		return fmt.Errorf("store: save plan: %w", err)
	}
	return nil
}

func (s *CatalogStore) ListUpgrades(ctx context.Context) ([]catalog.UpgradeDefinition, error) {
	var out []catalog.UpgradeDefinition
	if err := findAll(ctx, s.upgrades, bson.M{}, &out); err != nil {
		return nil, fmt.Errorf("store: list upgrades: %w", err)
	}
	return out, nil
}

func (s *CatalogStore) GetUpgrade(ctx context.Context, code string) (*catalog.UpgradeDefinition, error) {
	var u catalog.UpgradeDefinition
	if err := s.upgrades.FindOne(ctx, bson.M{"code": code}).Decode(&u); err != nil {
		if mongox.IsNoDocuments(err) {
			return nil, catalog.ErrUpgradeNotFound
		}
		return nil, fmt.Errorf("store: get upgrade: %w", err)
	}
	return &u, nil
}

func (s *CatalogStore) SaveUpgrade(ctx context.Context, u *catalog.UpgradeDefinition) error {
	_, err := s.upgrades.ReplaceOne(ctx, bson.M{"_id": u.ID}, u, options.Replace().SetUpsert(true))
	if err != nil {
		if mongox.IsDuplicateKey(err) {
			return fmt.Errorf("%w: %s", catalog.ErrDuplicateCode, u.Code)
		}
		return fmt.Errorf("store: save upgrade: %w", err)
	}
	return nil
}

func findAll[T any](ctx context.Context, col *mongo.Collection, filter any, out *[]T, opts ...options.Lister[options.FindOptions]) error {
	cur, err := col.Find(ctx, filter, opts...)
	if err != nil {
		return err
	}
	return cur.All(ctx, out)
}
