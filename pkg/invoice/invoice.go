package invoice

import (
	"time"

	"github.com/jackira01/scort-web-site-sub002/pkg/coupon"
)

// ItemType tells what an invoice line buys.
type ItemType string

const (
	ItemPlan    ItemType = "plan"
	ItemUpgrade ItemType = "upgrade"
)

// Item is one invoice line.
type Item struct {
	Type     ItemType `bson:"type" json:"type"`
	Code     string   `bson:"code" json:"code"`
	Name     string   `bson:"name" json:"name"`
	Days     int      `bson:"days,omitempty" json:"days,omitempty"`
	Hours    int      `bson:"hours,omitempty" json:"hours,omitempty"`
	Price    int64    `bson:"price" json:"price"`
	Quantity int      `bson:"quantity" json:"quantity"`
	// Renewal extends the held plan instead of replacing it.
	Renewal bool `bson:"renewal,omitempty" json:"renewal,omitempty"`
}

// Amount is Price times Quantity.
func (i Item) Amount() int64 {
	return i.Price * int64(i.Quantity)
}

// Invoice is a bill for plan and upgrade purchases of one profile.
type Invoice struct {
	ID           string           `bson:"_id" json:"id"`
	ProfileID    string           `bson:"profile_id" json:"profileId"`
	UserID       string           `bson:"user_id" json:"userId"`
	OrderID      string           `bson:"order_id,omitempty" json:"orderId,omitempty"`
	Items        []Item           `bson:"items" json:"items"`
	Subtotal     int64            `bson:"subtotal" json:"subtotal"`
	TotalAmount  int64            `bson:"total_amount" json:"totalAmount"`
	Status       Status           `bson:"status" json:"status"`
	Coupon       *coupon.Snapshot `bson:"coupon,omitempty" json:"coupon,omitempty"`
	CreatedAt    time.Time        `bson:"created_at" json:"createdAt"`
	ExpiresAt    time.Time        `bson:"expires_at" json:"expiresAt"`
	PaidAt       *time.Time       `bson:"paid_at,omitempty" json:"paidAt,omitempty"`
	CancelledAt  *time.Time       `bson:"cancelled_at,omitempty" json:"cancelledAt,omitempty"`
	CancelReason string           `bson:"cancel_reason,omitempty" json:"cancelReason,omitempty"`
	PaymentData  map[string]any   `bson:"payment_data,omitempty" json:"paymentData,omitempty"`
	// AppliedAt is set once the paid invoice has been applied to the profile.
	AppliedAt *time.Time `bson:"applied_at,omitempty" json:"appliedAt,omitempty"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updatedAt"`
}

// Recompute derives Subtotal and TotalAmount from the items and the coupon snapshot.
func (inv *Invoice) Recompute() {
	var subtotal int64
	for _, it := range inv.Items {
		subtotal += it.Amount()
	}
	inv.Subtotal = subtotal
	total := subtotal
	if inv.Coupon != nil {
		total -= inv.Coupon.DiscountAmount
	}
	inv.TotalAmount = max(0, total)
}

// PlanItem returns the plan line, if any.
func (inv *Invoice) PlanItem() (Item, bool) {
	for _, it := range inv.Items {
		if it.Type == ItemPlan {
			return it, true
		}
	}
	return Item{}, false
}

// UpgradeItems returns the upgrade lines in order.
func (inv *Invoice) UpgradeItems() []Item {
	var out []Item
	for _, it := range inv.Items {
		if it.Type == ItemUpgrade {
			out = append(out, it)
		}
	}
	return out
}

// IsOverdue reports whether a pending invoice passed its expiry at now.
func (inv *Invoice) IsOverdue(now time.Time) bool {
	return inv.Status == StatusPending && !inv.ExpiresAt.After(now)
}

// Filter selects invoices. Empty fields match everything.
type Filter struct {
	ProfileID string
	UserID    string
	Status    Status
	Limit     int
}

// Matches reports whether inv satisfies f.
func (f Filter) Matches(inv *Invoice) bool {
	return (f.ProfileID == "" || inv.ProfileID == f.ProfileID) &&
		(f.UserID == "" || inv.UserID == f.UserID) &&
		(f.Status == "" || inv.Status == f.Status)
}
