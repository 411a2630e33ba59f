package domain

import (
	"errors"
	"fmt"
)

type Kind int

const (
	KindValidation Kind = iota + 1
	KindConflict
	KindNotFound
	KindInsufficientStock
	KindRouteNotFound
	KindDuplicate
	KindStore
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindInsufficientStock:
		return "insufficient_stock"
	case KindRouteNotFound:
		return "route_not_found"
	case KindDuplicate:
		return "duplicate"
	case KindStore:
		return "store"
	default:
		return "unknown"
	}
}

// Error is the error type returned by the rules and the service. Message is
// safe to show to clients for every kind except KindStore.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound)
// holds whatever the message.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation        = &Error{Kind: KindValidation, Message: "validation error"}
	ErrConflict          = &Error{Kind: KindConflict, Message: "conflict"}
	ErrNotFound          = &Error{Kind: KindNotFound, Message: "not found"}
	ErrInsufficientStock = &Error{Kind: KindInsufficientStock, Message: "insufficient stock"}
	ErrRouteNotFound     = &Error{Kind: KindRouteNotFound, Message: "Route not found"}
	ErrDuplicate         = &Error{Kind: KindDuplicate, Message: "Duplicate request"}
	ErrStore             = &Error{Kind: KindStore, Message: "store error"}
)

func NewValidationError(message string) error {
	return &Error{Kind: KindValidation, Message: message}
}

func NewConflictError(message string) error {
	return &Error{Kind: KindConflict, Message: message}
}

func NewNotFoundError(message string) error {
	return &Error{Kind: KindNotFound, Message: message}
}

func NewInsufficientStockError() error {
	return &Error{Kind: KindInsufficientStock, Message: "Insufficient stock. Stock cannot go below zero."}
}

func NewDuplicateError() error {
	return &Error{Kind: KindDuplicate, Message: "Duplicate request"}
}

// NewStoreError wraps a persistence failure. op names the failed operation
// for logs; it never reaches clients.
func NewStoreError(op string, err error) error {
	return &Error{Kind: KindStore, Message: op, Err: err}
}

// KindOf reports the kind of err, or 0 when err is not a *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}
