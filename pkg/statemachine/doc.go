// Package statemachine provides a small generic finite state machine for
// documents whose current state is persisted elsewhere.
//
// A Table holds the allowed transitions and is immutable after construction.
// Callers pass the current state on every Fire and persist the returned state
// themselves, typically with a conditional write on the previous state:
//
//	type Status string
//	type Event string
//
//	table := statemachine.MustNew(
//		statemachine.WithTransition[Status, Event]("pending", "paid", "pay", nil),
//		statemachine.WithTransition[Status, Event]("pending", "cancelled", "cancel", nil),
//		statemachine.WithTerminal[Status, Event]("paid", "cancelled"),
//	)
//
//	next, err := table.Fire(ctx, inv.Status, "pay", nil)
//	if statemachine.IsNoTransitionAvailableError(err) {
//		// event not allowed in the current state
//	}
//
// Guards select between transitions that share a from/event pair; actions run
// before the new state is returned and abort the transition on error.
package statemachine
