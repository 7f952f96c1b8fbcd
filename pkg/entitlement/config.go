package entitlement

import "time"

// Config holds engine defaults. Limit fields are fallbacks for the
// limits.<type>.<kind> settings; a negative cap disables the check.
type Config struct {
	DefaultPlanCode string        `env:"DEFAULT_PLAN_CODE" envDefault:"AMATISTA"`
	DefaultPlanTTL  time.Duration `env:"DEFAULT_PLAN_CACHE_TTL" envDefault:"5m"`
	LockTTL         time.Duration `env:"ORDER_LOCK_TTL" envDefault:"30s"`

	AgencyFreeLimit    int `env:"LIMITS_AGENCY_FREE" envDefault:"10"`
	AgencyPaidLimit    int `env:"LIMITS_AGENCY_PAID" envDefault:"50"`
	AgencyVisibleLimit int `env:"LIMITS_AGENCY_VISIBLE" envDefault:"50"`
	CommonFreeLimit    int `env:"LIMITS_COMMON_FREE" envDefault:"1"`
	CommonPaidLimit    int `env:"LIMITS_COMMON_PAID" envDefault:"3"`
	CommonVisibleLimit int `env:"LIMITS_COMMON_VISIBLE" envDefault:"3"`
}

// DefaultConfig returns the same values as the env defaults.
func DefaultConfig() Config {
	return Config{
		DefaultPlanCode:    "AMATISTA",
		DefaultPlanTTL:     5 * time.Minute,
		LockTTL:            30 * time.Second,
		AgencyFreeLimit:    10,
		AgencyPaidLimit:    50,
		AgencyVisibleLimit: 50,
		CommonFreeLimit:    1,
		CommonPaidLimit:    3,
		CommonVisibleLimit: 3,
	}
}

// caps is the limit triple of one account type.
type caps struct {
	free, paid, visible int
}

func (c Config) capsFor(t AccountType) caps {
	if t == AccountAgency {
		return caps{free: c.AgencyFreeLimit, paid: c.AgencyPaidLimit, visible: c.AgencyVisibleLimit}
	}
	return caps{free: c.CommonFreeLimit, paid: c.CommonPaidLimit, visible: c.CommonVisibleLimit}
}
