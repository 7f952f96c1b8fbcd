package errs_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jackira01/scort-web-site-sub002/pkg/errs"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	errDuplicate := errs.BusinessRule("duplicate_order", "duplicate order")

	t.Run("wrapped sentinel keeps identity and kind", func(t *testing.T) {
		t.Parallel()
		err := fmt.Errorf("%w: order-1", errDuplicate)

		assert.ErrorIs(t, err, errDuplicate)
		assert.Equal(t, errs.KindBusinessRule, errs.KindOf(err))
		assert.Equal(t, "duplicate_order", errs.CodeOf(err))
		assert.True(t, errs.IsBusinessRule(err))
	})

	t.Run("joined infrastructure error is internal", func(t *testing.T) {
		t.Parallel()
		err := errors.Join(errors.New("store failed"), errors.New("timeout"))

		assert.Equal(t, errs.KindInternal, errs.KindOf(err))
		assert.Equal(t, "internal", errs.CodeOf(err))
	})

	t.Run("each constructor sets its kind", func(t *testing.T) {
		t.Parallel()
		assert.True(t, errs.IsValidation(errs.Validation("bad", "bad")))
		assert.True(t, errs.IsNotFound(errs.NotFound("missing", "missing")))
		assert.True(t, errs.IsIntegrity(errs.Integrity("cycle", "cycle")))
		assert.True(t, errs.IsForbidden(errs.Forbidden("not_owner", "not owner")))
	})
}
