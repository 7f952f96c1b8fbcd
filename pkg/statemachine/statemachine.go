package statemachine

import (
	"context"
	"fmt"
)

// Guard evaluates whether a transition should be allowed based on runtime conditions.
type Guard[S, E ~string] func(ctx context.Context, from S, event E, data any) bool

// Action executes side effects during a transition. Returning an error prevents the transition.
type Action[S, E ~string] func(ctx context.Context, from, to S, event E, data any) error

// Transition defines a state change triggered by an event, with optional guards and actions.
type Transition[S, E ~string] struct {
	From    S
	To      S
	Event   E
	Guards  []Guard[S, E]  // all must pass
	Actions []Action[S, E] // executed in order before the new state is returned
}

// Table is an immutable transition table. The current state is owned by the caller
// (usually a persisted document), so a single Table is safe to share between goroutines.
type Table[S, E ~string] struct {
	transitions map[S]map[E][]Transition[S, E]
	terminal    map[S]bool
}

// Option configures a Table during construction.
type Option[S, E ~string] func(*Table[S, E]) error

// New builds a transition table from the given options.
func New[S, E ~string](opts ...Option[S, E]) (*Table[S, E], error) {
	t := &Table[S, E]{
		transitions: make(map[S]map[E][]Transition[S, E]),
		terminal:    make(map[S]bool),
	}
	for _, opt := range opts {
		if err := opt(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// MustNew works like New but panics on invalid configuration.
func MustNew[S, E ~string](opts ...Option[S, E]) *Table[S, E] {
	t, err := New(opts...)
	if err != nil {
		panic(fmt.Sprintf("statemachine: %v", err))
	}
	return t
}

// WithTransition registers from --event--> to. Several transitions may share
// the same from/event pair; the first one whose guards pass wins.
func WithTransition[S, E ~string](from, to S, event E, guards []Guard[S, E], actions ...Action[S, E]) Option[S, E] {
	return func(t *Table[S, E]) error {
		if from == "" || to == "" || event == "" {
			return ErrInvalidTransition
		}
		if t.terminal[from] {
			return fmt.Errorf("%w: state %q is terminal", ErrInvalidTransition, from)
		}
		if _, ok := t.transitions[from]; !ok {
			t.transitions[from] = make(map[E][]Transition[S, E])
		}
		t.transitions[from][event] = append(t.transitions[from][event], Transition[S, E]{
			From:    from,
			To:      to,
			Event:   event,
			Guards:  guards,
			Actions: actions,
		})
		return nil
	}
}

// WithTerminal marks states that accept no further events.
func WithTerminal[S, E ~string](states ...S) Option[S, E] {
	return func(t *Table[S, E]) error {
		for _, s := range states {
			if len(t.transitions[s]) > 0 {
				return fmt.Errorf("%w: state %q has outgoing transitions", ErrInvalidTransition, s)
			}
			t.terminal[s] = true
		}
		return nil
	}
}

// Fire evaluates event against the current state and returns the resulting state.
func (t *Table[S, E]) Fire(ctx context.Context, current S, event E, data any) (S, error) {
	if event == "" {
		return current, ErrInvalidEvent
	}

	tr, err := t.match(ctx, current, event, data)
	if err != nil {
		return current, err
	}

	for _, action := range tr.Actions {
		if action == nil {
			continue
		}
		if err := action(ctx, current, tr.To, event, data); err != nil {
			return current, fmt.Errorf("action failed: %w", err)
		}
	}

	return tr.To, nil
}

// CanFire reports whether event would be accepted from the current state.
func (t *Table[S, E]) CanFire(ctx context.Context, current S, event E, data any) bool {
	_, err := t.match(ctx, current, event, data)
	return err == nil
}

// IsTerminal reports whether s was registered as terminal.
func (t *Table[S, E]) IsTerminal(s S) bool {
	return t.terminal[s]
}

func (t *Table[S, E]) match(ctx context.Context, current S, event E, data any) (*Transition[S, E], error) {
	byEvent, ok := t.transitions[current]
	if !ok {
		return nil, NewErrNoTransitionAvailable(string(current), string(event))
	}
	candidates := byEvent[event]
	if len(candidates) == 0 {
		return nil, NewErrNoTransitionAvailable(string(current), string(event))
	}

	for i := range candidates {
		passed := true
		for _, guard := range candidates[i].Guards {
			if guard != nil && !guard(ctx, current, event, data) {
				passed = false
				break
			}
		}
		if passed {
			return &candidates[i], nil
		}
	}

	return nil, NewErrTransitionRejected(string(current), string(event))
}
