package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jackira01/scort-web-site-sub002/pkg/entitlement"
	mongox "github.com/jackira01/scort-web-site-sub002/pkg/mongo"
)

var _ entitlement.UserDirectory = (*UserDirectory)(nil)

// UserDirectory reads account type and agency conversion status from users.
type UserDirectory struct {
	col *mongo.Collection
}

// NewUserDirectory creates a UserDirectory over db.
func NewUserDirectory(db *mongo.Database) *UserDirectory {
	return &UserDirectory{col: db.Collection(ColUsers)}
}

func (d *UserDirectory) Account(ctx context.Context, userID string) (entitlement.Account, error) {
	opts := options.FindOne().SetProjection(bson.M{"account_type": 1, "conversion_status": 1})

	var a entitlement.Account
	if err := d.col.FindOne(ctx, bson.M{"_id": userID}, opts).Decode(&a); err != nil {
		if mongox.IsNoDocuments(err) {
			return entitlement.Account{}, entitlement.ErrUserNotFound
		}
		return entitlement.Account{}, fmt.Errorf("store: get account: %w", err)
	}
	if a.Type == "" {
		a.Type = entitlement.AccountCommon
	}
	return a, nil
}
