package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
	mongox "github.com/jackira01/scort-web-site-sub002/pkg/mongo"
)

var _ coupon.Store = (*CouponStore)(nil)

// CouponStore keeps coupons keyed by their unique code.
type CouponStore struct {
	col *mongo.Collection
}

// NewCouponStore creates a CouponStore over db.
func NewCouponStore(db *mongo.Database) *CouponStore {
	return &CouponStore{col: db.Collection(ColCoupons)}
}

func (s *CouponStore) GetByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	var c coupon.Coupon
	if err := s.col.FindOne(ctx, bson.M{"code": code}).Decode(&c); err != nil {
		if mongox.IsNoDocuments(err) {
			return nil, coupon.ErrCouponNotFound
		}
		return nil, fmt.Errorf("store: get coupon: %w", err)
	}
	return &c, nil
}

// IncrementUses adds a use only while current_uses is below max_uses, or
// max_uses is unlimited, in a single conditional update.
func (s *CouponStore) IncrementUses(ctx context.Context, code string) (bool, error) {
	filter := bson.M{
		"code": code,
		"$or": bson.A{
			bson.M{"max_uses": coupon.Unlimited},
			bson.M{"$expr": bson.M{"$lt": bson.A{"$current_uses", "$max_uses"}}},
		},
	}
	res, err := s.col.UpdateOne(ctx, filter, bson.M{"$inc": bson.M{"current_uses": 1}})
	if err != nil {
		return false, fmt.Errorf("store: increment coupon uses: %w", err)
	}
	if res.ModifiedCount == 1 {
		return true, nil
	}
	ok, err := exists(ctx, s.col, bson.M{"code": code})
	if err != nil {
		return false, fmt.Errorf("store: increment coupon uses: %w", err)
	}
	if !ok {
		return false, coupon.ErrCouponNotFound
	}
	return false, nil
}

// Save upserts c by code.
func (s *CouponStore) Save(ctx context.Context, c *coupon.Coupon) error {
	_, err := s.col.ReplaceOne(ctx, bson.M{"code": c.Code}, c, options.Replace().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("store: save coupon: %w", err)
	}
	return nil
}
