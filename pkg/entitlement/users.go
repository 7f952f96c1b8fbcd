package entitlement

import (
	"context"
	"sync"
)

// AccountType decides which limit set applies to a user.
type AccountType string

const (
	AccountAgency AccountType = "agency"
	AccountCommon AccountType = "common"
)

// ConversionApproved is the conversion status an agency needs before it can
// hold profiles.
const ConversionApproved = "approved"

// Account is the part of a user record the engine reads.
type Account struct {
	ID               string      `bson:"_id" json:"id"`
	Type             AccountType `bson:"account_type" json:"accountType"`
	ConversionStatus string      `bson:"conversion_status" json:"conversionStatus"`
}

// UserDirectory looks up accounts. Account returns ErrUserNotFound for unknown ids.
type UserDirectory interface {
	Account(ctx context.Context, userID string) (Account, error)
}

// MemoryDirectory is an in-memory UserDirectory.
type MemoryDirectory struct {
	mu       sync.RWMutex
	accounts map[string]Account
}

// NewMemoryDirectory creates a directory holding accounts.
func NewMemoryDirectory(accounts ...Account) *MemoryDirectory {
	d := &MemoryDirectory{accounts: make(map[string]Account, len(accounts))}
	for _, a := range accounts {
		d.accounts[a.ID] = a
	}
	return d
}

// Put adds or replaces an account.
func (d *MemoryDirectory) Put(a Account) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.accounts[a.ID] = a
}

func (d *MemoryDirectory) Account(_ context.Context, userID string) (Account, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	a, ok := d.accounts[userID]
	if !ok {
		return Account{}, ErrUserNotFound
	}
	return a, nil
}
