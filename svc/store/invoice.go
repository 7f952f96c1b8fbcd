package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/jackira01/scort-web-site-sub002/pkg/invoice"
	mongox "github.com/jackira01/scort-web-site-sub002/pkg/mongo"
)

var _ invoice.Store = (*InvoiceStore)(nil)

// InvoiceStore keeps invoices. Status changes filter on the stored status so
// two writers cannot both move the same invoice.
type InvoiceStore struct {
	col *mongo.Collection
}

// NewInvoiceStore creates an InvoiceStore over db.
func NewInvoiceStore(db *mongo.Database) *InvoiceStore {
	return &InvoiceStore{col: db.Collection(ColInvoices)}
}

func (s *InvoiceStore) Create(ctx context.Context, inv *invoice.Invoice) error {
	if _, err := s.col.InsertOne(ctx, inv); err != nil {
		return fmt.Errorf("store: create invoice: %w", err)
	}
	return nil
}

func (s *InvoiceStore) Get(ctx context.Context, id string) (*invoice.Invoice, error) {
	var inv invoice.Invoice
	if err := s.col.FindOne(ctx, bson.M{"_id": id}).Decode(&inv); err != nil {
		if mongox.IsNoDocuments(err) {
			return nil, invoice.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("store: get invoice: %w", err)
	}
	return &inv, nil
}

func (s *InvoiceStore) List(ctx context.Context, f invoice.Filter) ([]invoice.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if f.Limit > 0 {
		opts.SetLimit(int64(f.Limit))
	}
	var out []invoice.Invoice
	if err := findAll(ctx, s.col, invoiceFilter(f), &out, opts); err != nil {
		return nil, fmt.Errorf("store: list invoices: %w", err)
	}
	return out, nil
}

func (s *InvoiceStore) ChangeStatus(ctx context.Context, id string, c invoice.StatusChange) (bool, error) {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "status": c.From},
		bson.M{"$set": statusSet(c)},
	)
	if err != nil {
		return false, fmt.Errorf("store: change invoice status: %w", err)
	}
	if res.MatchedCount == 1 {
		return true, nil
	}
	ok, err := exists(ctx, s.col, bson.M{"_id": id})
	if err != nil {
		return false, fmt.Errorf("store: change invoice status: %w", err)
	}
	if !ok {
		return false, invoice.ErrInvoiceNotFound
	}
	return false, nil
}

func (s *InvoiceStore) ExpireOverdue(ctx context.Context, now time.Time) (int, error) {
	res, err := s.col.UpdateMany(ctx,
		bson.M{"status": invoice.StatusPending, "expires_at": bson.M{"$lte": now}},
		bson.M{"$set": statusSet(invoice.StatusChange{From: invoice.StatusPending, To: invoice.StatusExpired, At: now})},
	)
	if err != nil {
		return 0, fmt.Errorf("store: expire invoices: %w", err)
	}
	return int(res.ModifiedCount), nil
}

func (s *InvoiceStore) PaidUnapplied(ctx context.Context) ([]invoice.Invoice, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	var out []invoice.Invoice
	if err := findAll(ctx, s.col, bson.M{"status": invoice.StatusPaid, "applied_at": nil}, &out, opts); err != nil {
		return nil, fmt.Errorf("store: list unapplied invoices: %w", err)
	}
	return out, nil
}

func (s *InvoiceStore) MarkApplied(ctx context.Context, id string, at time.Time) error {
	res, err := s.col.UpdateOne(ctx,
		bson.M{"_id": id, "applied_at": nil},
		bson.M{"$set": bson.M{"applied_at": at, "updated_at": at}},
	)
	if err != nil {
		return fmt.Errorf("store: mark invoice applied: %w", err)
	}
	if res.MatchedCount == 1 {
		return nil
	}
	ok, err := exists(ctx, s.col, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("store: mark invoice applied: %w", err)
	}
	if !ok {
		return invoice.ErrInvoiceNotFound
	}
	return nil
}

func invoiceFilter(f invoice.Filter) bson.M {
	m := bson.M{}
	if f.ProfileID != "" {
		m["profile_id"] = f.ProfileID
	}
	if f.UserID != "" {
		m["user_id"] = f.UserID
	}
	if f.Status != "" {
		m["status"] = f.Status
	}
	return m
}

func statusSet(c invoice.StatusChange) bson.M {
	set := bson.M{"status": c.To, "updated_at": c.At}
	switch c.To {
	case invoice.StatusPaid:
		set["paid_at"] = c.At
		if c.PaymentData != nil {
			set["payment_data"] = c.PaymentData
		}
	case invoice.StatusCancelled:
		set["cancelled_at"] = c.At
		set["cancel_reason"] = c.CancelReason
	}
	return set
}
