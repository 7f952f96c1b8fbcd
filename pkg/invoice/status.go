package invoice

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackira01/scort-web-site-sub002/pkg/statemachine"
)

// Status is the payment state of an invoice.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
)

// Event moves an invoice between statuses.
type Event string

const (
	EventPay    Event = "pay"
	EventCancel Event = "cancel"
	EventExpire Event = "expire"
)

// Lifecycle allows only pending -> paid | cancelled | expired.
var Lifecycle = statemachine.MustNew(
	statemachine.WithTransition[Status, Event](StatusPending, StatusPaid, EventPay, nil),
	statemachine.WithTransition[Status, Event](StatusPending, StatusCancelled, EventCancel, nil),
	statemachine.WithTransition[Status, Event](StatusPending, StatusExpired, EventExpire, nil),
	statemachine.WithTerminal[Status, Event](StatusPaid, StatusCancelled, StatusExpired),
)

// next returns the status event leads to from current.
func next(ctx context.Context, current Status, event Event) (Status, error) {
	to, err := Lifecycle.Fire(ctx, current, event, nil)
	if err != nil {
		if event == EventCancel && current == StatusPaid {
			return current, ErrCannotCancelPaid
		}
		if statemachine.IsNoTransitionAvailableError(err) {
			return current, fmt.Errorf("%w: cannot %s a %s invoice", ErrInvalidStatus, event, current)
		}
		return current, errors.Join(ErrInvalidStatus, err)
	}
	return to, nil
}
