package core

import (
	"errors"
	"fmt"
)

// Kind classifies a ledger failure. Kinds are a closed set shared by every
// provider so callers always get the same machine-readable taxonomy no matter
// which backend served the operation.
type Kind string

const (
	KindInvalidDate           Kind = "InvalidDate"
	KindInvalidDateRange      Kind = "InvalidDateRange"
	KindInvalidAgent          Kind = "InvalidAgent"
	KindInvalidCategory       Kind = "InvalidCategory"
	KindInvalidVendor         Kind = "InvalidVendor"
	KindInvalidDescription    Kind = "InvalidDescription"
	KindInvalidAmount         Kind = "InvalidAmount"
	KindUnsupportedCurrency   Kind = "UnsupportedCurrency"
	KindInvalidProvider       Kind = "InvalidProvider"
	KindProviderNotConfigured Kind = "ProviderNotConfigured"
	KindProviderUnavailable   Kind = "ProviderUnavailable"
	KindNotImplemented        Kind = "NotImplemented"
	KindInternalError         Kind = "InternalError"
)

// Error is the structured {kind, message} failure every operation reports.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

// E builds a typed Error with a formatted message.
func E(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf extracts the Kind from err, defaulting to KindInternalError for
// anything outside the taxonomy.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return KindInternalError
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// WrapProvider converts an infrastructure error into ProviderUnavailable,
// keeping the underlying message for diagnostics. Errors already in the
// taxonomy pass through unchanged.
func WrapProvider(err error) error {
	if err == nil {
		return nil
	}
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	return E(KindProviderUnavailable, "backend failure: %v", err)
}
