package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	mongox "github.com/jackira01/scort-web-site-sub002/pkg/mongo"
	"github.com/jackira01/scort-web-site-sub002/pkg/profile"
)

var _ profile.Store = (*ProfileStore)(nil)

// ProfileStore keeps profiles with their plan assignment and upgrade grants
// embedded. Sweep writes are conditional single-document updates.
type ProfileStore struct {
	col *mongo.Collection
}

// NewProfileStore creates a ProfileStore over db.
func NewProfileStore(db *mongo.Database) *ProfileStore {
	return &ProfileStore{col: db.Collection(ColProfiles)}
}

func (s *ProfileStore) Get(ctx context.Context, id string) (*profile.Profile, error) {
	var p profile.Profile
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if mongox.IsNoDocuments(err) {
			return nil, profile.ErrProfileNotFound
		}
		return nil, fmt.Errorf("store: get profile: %w", err)
	}
	return &p, nil
}

func (s *ProfileStore) Save(ctx context.Context, p *profile.Profile) error {
	if _, err := s.col.ReplaceOne(ctx, bson.M{"_id": p.ID}, p, options.Replace().SetUpsert(true)); err != nil {
		return fmt.Errorf("store: save profile: %w", err)
	}
	return nil
}

func (s *ProfileStore) Count(ctx context.Context, q profile.Query) (int, error) {
	n, err := s.col.CountDocuments(ctx, profileFilter(q))
	if err != nil {
		return 0, fmt.Errorf("store: count profiles: %w", err)
	}
	return int(n), nil
}

func (s *ProfileStore) List(ctx context.Context, q profile.Query) ([]profile.Profile, error) {
	opts := options.Find().SetSort(bson.D{{Key: "_id", Value: 1}})
	if q.Limit > 0 {
		opts.SetLimit(int64(q.Limit))
	}
	var out []profile.Profile
	if err := findAll(ctx, s.col, profileFilter(q), &out, opts); err != nil {
		return nil, fmt.Errorf("store: list profiles: %w", err)
	}
	return out, nil
}

func (s *ProfileStore) ExpiredVisibleIDs(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.ids(ctx, expiredVisibleFilter(now))
	if err != nil {
		return nil, fmt.Errorf("store: list expired visible profiles: %w", err)
	}
	return ids, nil
}

func (s *ProfileStore) HideExpired(ctx context.Context, id string, now time.Time) (bool, error) {
	filter := expiredVisibleFilter(now)
	filter["_id"] = id
	res, err := s.col.UpdateOne(ctx, filter, bson.M{"$set": bson.M{"visible": false, "updated_at": now}})
	if err != nil {
		return false, fmt.Errorf("store: hide profile: %w", err)
	}
	return res.ModifiedCount == 1, nil
}

func (s *ProfileStore) ExpiredUpgradeIDs(ctx context.Context, now time.Time) ([]string, error) {
	ids, err := s.ids(ctx, bson.M{"upgrades.end_at": bson.M{"$lte": now}})
	if err != nil {
		return nil, fmt.Errorf("store: list profiles with expired upgrades: %w", err)
	}
	return ids, nil
}

// ArchiveExpiredUpgrades moves expired grants in one pipeline update, so a
// concurrent run cannot archive the same grant twice.
func (s *ProfileStore) ArchiveExpiredUpgrades(ctx context.Context, id string, now time.Time) (int, error) {
	filter := bson.M{"_id": id, "upgrades.end_at": bson.M{"$lte": now}}
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.Before).
		SetProjection(bson.M{"upgrades": 1})

	var before profile.Profile
	err := s.col.FindOneAndUpdate(ctx, filter, archivePipeline(now), opts).Decode(&before)
	if err != nil {
		if mongox.IsNoDocuments(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("store: archive upgrades: %w", err)
	}

	n := 0
	for _, g := range before.Upgrades {
		if !g.EndAt.After(now) {
			n++
		}
	}
	return n, nil
}

func (s *ProfileStore) ids(ctx context.Context, filter bson.M) ([]string, error) {
	opts := options.Find().
		SetProjection(bson.M{"_id": 1}).
		SetSort(bson.D{{Key: "_id", Value: 1}})

	var docs []struct {
		ID string `bson:"_id"`
	}
	if err := findAll(ctx, s.col, filter, &docs, opts); err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids, nil
}

func profileFilter(q profile.Query) bson.M {
	f := bson.M{"is_deleted": bson.M{"$ne": true}}
	if q.UserID != "" {
		f["user_id"] = q.UserID
	}
	if q.ExcludeID != "" {
		f["_id"] = bson.M{"$ne": q.ExcludeID}
	}
	if q.VisibleOnly {
		f["visible"] = true
	}
	if q.ActiveOnly {
		f["is_active"] = true
	}
	if !q.PlanActiveAt.IsZero() {
		f["plan_assignment.expires_at"] = bson.M{"$gt": q.PlanActiveAt}
	}
	code := bson.M{}
	if len(q.PlanCodes) > 0 {
		code["$in"] = q.PlanCodes
	}
	if len(q.NotPlanCodes) > 0 {
		code["$nin"] = q.NotPlanCodes
	}
	if len(code) > 0 {
		f["plan_assignment.plan_code"] = code
	}
	return f
}

func expiredVisibleFilter(now time.Time) bson.M {
	return bson.M{
		"visible":                    true,
		"is_active":                  true,
		"plan_assignment.expires_at": bson.M{"$lte": now},
	}
}

// archivePipeline is evaluated against the pre-update document, so both
// fields see the same grant list.
func archivePipeline(now time.Time) bson.A {
	grants := bson.M{"$ifNull": bson.A{"$upgrades", bson.A{}}}
	expired := bson.M{"$filter": bson.M{
		"input": grants,
		"cond":  bson.M{"$lte": bson.A{"$$this.end_at", now}},
	}}
	live := bson.M{"$filter": bson.M{
		"input": grants,
		"cond":  bson.M{"$gt": bson.A{"$$this.end_at", now}},
	}}
	stamped := bson.M{"$map": bson.M{
		"input": expired,
		"in":    bson.M{"$mergeObjects": bson.A{"$$this", bson.M{"expired_at": now}}},
	}}
	return bson.A{
		bson.M{"$set": bson.M{
			"upgrade_history": bson.M{"$concatArrays": bson.A{
				bson.M{"$ifNull": bson.A{"$upgrade_history", bson.A{}}},
				stamped,
			}},
			"upgrades":   live,
			"updated_at": now,
		}},
	}
}
