package pricing

import (
	"fmt"
	"strings"
)

// Code is a machine-readable pricing error code.
type Code string

const (
	// Selection errors
	CodeTypeMismatch           Code = "TYPE_MISMATCH"
	CodeInvalidQuantity        Code = "INVALID_QUANTITY"
	CodeUnknownSelectableValue Code = "UNKNOWN_SELECTABLE_VALUE"
	CodeUnknownOption          Code = "UNKNOWN_OPTION"
	CodeDuplicateSelection     Code = "DUPLICATE_SELECTION"
	CodeMissingRequiredOption  Code = "MISSING_REQUIRED_OPTION"

	// Override errors
	CodeUnknownOverrideTarget Code = "UNKNOWN_OVERRIDE_TARGET"
	CodeInvalidOverride       Code = "INVALID_OVERRIDE"
)

// OptionError reports one rejected selection or override.  Errors match
// each other by code, so errors.Is(err, ErrTypeMismatch) works through a
// ValidationErrors batch.
type OptionError struct {
	Code     Code
	OptionID string
	Message  string
}

func (e *OptionError) Error() string {
	if e.OptionID == "" {
		return e.Message
	}
	return fmt.Sprintf("option %q: %s", e.OptionID, e.Message)
}

// Is reports whether target is an *OptionError with the same code.
func (e *OptionError) Is(target error) bool {
	if t, ok := target.(*OptionError); ok {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrTypeMismatch           = &OptionError{Code: CodeTypeMismatch, Message: "selection type does not match option type"}
	ErrInvalidQuantity        = &OptionError{Code: CodeInvalidQuantity, Message: "selected quantity must be positive"}
	ErrUnknownSelectableValue = &OptionError{Code: CodeUnknownSelectableValue, Message: "unknown selectable value"}
	ErrUnknownOption          = &OptionError{Code: CodeUnknownOption, Message: "unknown option"}
	ErrDuplicateSelection     = &OptionError{Code: CodeDuplicateSelection, Message: "option selected more than once"}
	ErrMissingRequiredOption  = &OptionError{Code: CodeMissingRequiredOption, Message: "required option not selected"}
	ErrUnknownOverrideTarget  = &OptionError{Code: CodeUnknownOverrideTarget, Message: "override targets an option not on the partnership"}
	ErrInvalidOverride        = &OptionError{Code: CodeInvalidOverride, Message: "price override must not be negative"}
)

func newOptionError(code Code, optionID, format string, args ...any) *OptionError {
	return &OptionError{Code: code, OptionID: optionID, Message: fmt.Sprintf(format, args...)}
}

// ValidationErrors is every problem found in one batch, in input order.
type ValidationErrors []*OptionError

func (v ValidationErrors) Error() string {
	parts := make([]string, len(v))
	for i, e := range v {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Unwrap exposes the individual errors to errors.Is and errors.As.
func (v ValidationErrors) Unwrap() []error {
	out := make([]error, len(v))
	for i, e := range v {
		out[i] = e
	}
	return out
}

// OptionIDs returns the offending option ids in order.
func (v ValidationErrors) OptionIDs() []string {
	out := make([]string, len(v))
	for i, e := range v {
		out[i] = e.OptionID
	}
	return out
}

func (v ValidationErrors) orNil() error {
	if len(v) == 0 {
		return nil
	}
	return v
}
