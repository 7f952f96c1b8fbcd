// Package errs defines the error taxonomy shared by the entitlement core.
//
// Every business failure is an *Error carrying a Kind (how callers should react),
// a machine-readable Code and a human message. Packages declare their failures as
// package-level sentinels and wrap details with fmt.Errorf("%w: ...") so that
// errors.Is keeps working against the sentinel:
//
//	var ErrDuplicateOrder = errs.BusinessRule("duplicate_order", "duplicate order")
//
//	return fmt.Errorf("%w: %s", ErrDuplicateOrder, orderID)
//
// Infrastructure failures (store, network) are not *Error values; KindOf reports
// them as KindInternal.
package errs

import "errors"

// Kind classifies an error by the reaction expected from the caller.
type Kind string

const (
	KindValidation   Kind = "validation"    // bad input shape, caller's fault
	KindNotFound     Kind = "not_found"     // referenced entity missing
	KindForbidden    Kind = "forbidden"     // caller may not act on the entity
	KindBusinessRule Kind = "business_rule" // limit, duplicate, dependency or state conflict
	KindIntegrity    Kind = "integrity"     // catalog write that would break an invariant
	KindInternal     Kind = "internal"
)

// Error is a classified, recoverable failure.
type Error struct {
	Kind    Kind
	Code    string
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

func Validation(code, msg string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: msg}
}

func NotFound(code, msg string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: msg}
}

func Forbidden(code, msg string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: msg}
}

func BusinessRule(code, msg string) *Error {
	return &Error{Kind: KindBusinessRule, Code: code, Message: msg}
}

func Integrity(code, msg string) *Error {
	return &Error{Kind: KindIntegrity, Code: code, Message: msg}
}

// As extracts the first *Error in the chain.
func As(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// KindOf returns the Kind of the first classified error in the chain,
// or KindInternal when there is none.
func KindOf(err error) Kind {
	if e, ok := As(err); ok {
		return e.Kind
	}
	return KindInternal
}

// CodeOf returns the machine-readable code of err, "internal" for unclassified errors.
func CodeOf(err error) string {
	if e, ok := As(err); ok {
		return e.Code
	}
	return string(KindInternal)
}

func IsValidation(err error) bool   { return KindOf(err) == KindValidation }
func IsNotFound(err error) bool     { return KindOf(err) == KindNotFound }
func IsForbidden(err error) bool    { return KindOf(err) == KindForbidden }
func IsBusinessRule(err error) bool { return KindOf(err) == KindBusinessRule }
func IsIntegrity(err error) bool    { return KindOf(err) == KindIntegrity }
