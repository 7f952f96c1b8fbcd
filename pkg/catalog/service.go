package catalog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Store persists catalog definitions.
type Store interface {
	// ListPlans returns every plan definition, active or not.
	ListPlans(ctx context.Context) ([]PlanDefinition, error)
	// GetPlan returns ErrPlanNotFound when no plan has the code.
	GetPlan(ctx context.Context, code string) (*PlanDefinition, error)
	// SavePlan upserts by ID. A code clash with another ID must return ErrDuplicateCode.
	SavePlan(ctx context.Context, p *PlanDefinition) error

	ListUpgrades(ctx context.Context) ([]UpgradeDefinition, error)
	// GetUpgrade returns ErrUpgradeNotFound when no upgrade has the code.
	GetUpgrade(ctx context.Context, code string) (*UpgradeDefinition, error)
	// SaveUpgrade upserts by ID. A code clash with another ID must return ErrDuplicateCode.
	SaveUpgrade(ctx context.Context, u *UpgradeDefinition) error
}

// Reader is the read side of the catalog used by every other component.
type Reader interface {
	Plan(ctx context.Context, code string) (PlanDefinition, error)
	Plans(ctx context.Context) ([]PlanDefinition, error)
	Upgrade(ctx context.Context, code string) (UpgradeDefinition, error)
	Upgrades(ctx context.Context) ([]UpgradeDefinition, error)
}

var codePattern = regexp.MustCompile(`^[A-Z][A-Z0-9_]*$`)

// NormalizeCode upper-cases and trims a catalog code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// Service validates and persists catalog definitions.
type Service struct {
	store    Store
	validate *validator.Validate
	now      func() time.Time
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates a catalog service. Panics if store is nil.
func NewService(store Store, opts ...ServiceOption) *Service {
	if store == nil {
		panic("catalog: Store is required")
	}
	s := &Service{
		store:    store,
		validate: newValidator(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("catalogcode", func(fl validator.FieldLevel) bool {
		return codePattern.MatchString(fl.Field().String())
	})
	return v
}

// Plan returns the plan with the given code.
func (s *Service) Plan(ctx context.Context, code string) (PlanDefinition, error) {
	p, err := s.store.GetPlan(ctx, NormalizeCode(code))
	if err != nil {
		return PlanDefinition{}, err
	}
	return *p, nil
}

// Plans returns all plans ordered by level, best first.
func (s *Service) Plans(ctx context.Context) ([]PlanDefinition, error) {
	plans, err := s.store.ListPlans(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(plans, func(a, b PlanDefinition) int {
		if a.Level != b.Level {
			return a.Level - b.Level
		}
		return strings.Compare(a.Code, b.Code)
	})
	return plans, nil
}

// Upgrade returns the upgrade with the given code.
func (s *Service) Upgrade(ctx context.Context, code string) (UpgradeDefinition, error) {
	u, err := s.store.GetUpgrade(ctx, NormalizeCode(code))
	if err != nil {
		return UpgradeDefinition{}, err
	}
	return *u, nil
}

// Upgrades returns all upgrades ordered by code.
func (s *Service) Upgrades(ctx context.Context) ([]UpgradeDefinition, error) {
	upgrades, err := s.store.ListUpgrades(ctx)
	if err != nil {
		return nil, err
	}
	slices.SortFunc(upgrades, func(a, b UpgradeDefinition) int { return strings.Compare(a.Code, b.Code) })
	return upgrades, nil
}

// SavePlan creates or updates a plan. A plan without ID is created.
func (s *Service) SavePlan(ctx context.Context, p PlanDefinition) (*PlanDefinition, error) {
	p.Code = NormalizeCode(p.Code)
	p.IncludedUpgrades = slices.Clone(p.IncludedUpgrades)
	p.Variants = slices.Clone(p.Variants)
	for i, code := range p.IncludedUpgrades {
		p.IncludedUpgrades[i] = NormalizeCode(code)
	}
	if err := s.validateStruct(p); err != nil {
		return nil, err
	}

	if err := s.checkPlanCode(ctx, p); err != nil {
		return nil, err
	}

	for _, code := range p.IncludedUpgrades {
		if _, err := s.store.GetUpgrade(ctx, code); err != nil {
			if errors.Is(err, ErrUpgradeNotFound) {
				return nil, fmt.Errorf("%w: %s", ErrUnknownIncludedGrant, code)
			}
			return nil, err
		}
	}

	now := s.now().UTC()
	if p.ID == "" {
		p.ID = uuid.NewString()
		p.CreatedAt = now
	}
	p.UpdatedAt = now

	if err := s.store.SavePlan(ctx, &p); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "plan saved", slog.String("plan_code", p.Code), slog.Int("level", p.Level))
	return &p, nil
}

// SaveUpgrade creates or updates an upgrade after rejecting dependency cycles.
func (s *Service) SaveUpgrade(ctx context.Context, u UpgradeDefinition) (*UpgradeDefinition, error) {
	u.Code = NormalizeCode(u.Code)
	u.Requires = slices.Clone(u.Requires)
	for i, code := range u.Requires {
		u.Requires[i] = NormalizeCode(code)
	}
	if err := s.validateStruct(u); err != nil {
		return nil, err
	}
	if _, err := u.ResolveEffect(); err != nil {
		return nil, err
	}

	if err := s.checkUpgradeCode(ctx, u); err != nil {
		return nil, err
	}

	existing, err := s.store.ListUpgrades(ctx)
	if err != nil {
		return nil, err
	}
	if err := ValidateDependencies(existing, u); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if u.ID == "" {
		u.ID = uuid.NewString()
		u.CreatedAt = now
	}
	u.UpdatedAt = now

	if err := s.store.SaveUpgrade(ctx, &u); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "upgrade saved", slog.String("upgrade_code", u.Code))
	return &u, nil
}

// checkPlanCode rejects a code already used by another plan. The store's unique
// index catches writers racing past this check.
func (s *Service) checkPlanCode(ctx context.Context, p PlanDefinition) error {
	found, err := s.store.GetPlan(ctx, p.Code)
	switch {
	case errors.Is(err, ErrPlanNotFound):
		return nil
	case err != nil:
		return err
	case found.ID != p.ID:
		return fmt.Errorf("%w: plan %s", ErrDuplicateCode, p.Code)
	}
	return nil
}

func (s *Service) checkUpgradeCode(ctx context.Context, u UpgradeDefinition) error {
	found, err := s.store.GetUpgrade(ctx, u.Code)
	switch {
	case errors.Is(err, ErrUpgradeNotFound):
		return nil
	case err != nil:
		return err
	case found.ID != u.ID:
		return fmt.Errorf("%w: upgrade %s", ErrDuplicateCode, u.Code)
	}
	return nil
}

func (s *Service) validateStruct(v any) error {
	if err := s.validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s(%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("%w: %s", ErrInvalidDefinition, strings.Join(fields, ", "))
		}
		return errors.Join(ErrInvalidDefinition, err)
	}
	return nil
}
