package engine

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/roach88/varsel/internal/catalog"
)

// ResolveError represents an error detected while resolving a selection.
//
// Resolve errors include:
//   - Invalid target: a change names an attribute, value or unit the index does not know
//   - Inconsistent index: a change has no qualified variation, or repair did not converge
//
// A selection that merely has no unique match is not an error; it triggers repair.
type ResolveError struct {
	// Code identifies the error category.
	Code ResolveErrorCode

	// Message is a human-readable description.
	Message string

	// Change is the selection change that failed.
	Change Change

	// Details contains additional context.
	Details map[string]string
}

// ResolveErrorCode categorizes resolve errors.
type ResolveErrorCode string

const (
	// ErrCodeInvalidTarget indicates a change referenced something outside the index.
	ErrCodeInvalidTarget ResolveErrorCode = "INVALID_TARGET"

	// ErrCodeInconsistentIndex indicates the index violates its own invariants.
	ErrCodeInconsistentIndex ResolveErrorCode = "INCONSISTENT_INDEX"
)

// Error implements the error interface.
func (e *ResolveError) Error() string {
	if e.Change.Kind != 0 {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Change)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsInvalidTarget returns true if the error is an invalid-target error.
// Uses errors.As to handle wrapped errors.
func IsInvalidTarget(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInvalidTarget
	}
	return false
}

// IsInconsistentIndex returns true if the error is an inconsistent-index error.
// Uses errors.As to handle wrapped errors.
func IsInconsistentIndex(err error) bool {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code == ErrCodeInconsistentIndex
	}
	return false
}

// ErrorCode extracts the code of a ResolveError, or "" for other errors.
func ErrorCode(err error) ResolveErrorCode {
	var re *ResolveError
	if errors.As(err, &re) {
		return re.Code
	}
	return ""
}

// NewInvalidAttributeError creates a ResolveError for an unknown attribute or value.
func NewInvalidAttributeError(attr catalog.AttributeID, value catalog.ValueID, known bool) *ResolveError {
	msg := fmt.Sprintf("attribute %d is not part of the index", attr)
	if known {
		msg = fmt.Sprintf("value %d is not a value of attribute %d", value, attr)
	}
	return &ResolveError{
		Code:    ErrCodeInvalidTarget,
		Message: msg,
		Change:  AttributeChange(attr, value),
	}
}

// NewInvalidUnitError creates a ResolveError for an unknown unit.
func NewInvalidUnitError(unit catalog.UnitID) *ResolveError {
	return &ResolveError{
		Code:    ErrCodeInvalidTarget,
		Message: fmt.Sprintf("unit %d is not part of the index", unit),
		Change:  UnitChange(unit),
	}
}

// NewUnknownVariationError creates a ResolveError for an unknown initial variation.
func NewUnknownVariationError(id catalog.VariationID) *ResolveError {
	return &ResolveError{
		Code:    ErrCodeInvalidTarget,
		Message: fmt.Sprintf("variation %d is not part of the index", id),
		Details: map[string]string{"variation_id": strconv.FormatInt(int64(id), 10)},
	}
}

// NewEmptyQualifiedSetError creates a ResolveError for a change no variation supports.
func NewEmptyQualifiedSetError(change Change) *ResolveError {
	return &ResolveError{
		Code:    ErrCodeInconsistentIndex,
		Message: "no variation is consistent with the changed field",
		Change:  change,
	}
}

// NewUnresolvedRepairError creates a ResolveError for a repair that did not
// lead to a unique variation.
func NewUnresolvedRepairError(change Change, closest catalog.VariationID, matches int) *ResolveError {
	return &ResolveError{
		Code:    ErrCodeInconsistentIndex,
		Message: fmt.Sprintf("repaired selection matches %d variations, expected exactly one", matches),
		Change:  change,
		Details: map[string]string{
			"closest_variation_id": strconv.FormatInt(int64(closest), 10),
			"matches":              strconv.Itoa(matches),
		},
	}
}
