package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidSchema signals an invalid application schema definition.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrSchemaNotFound signals an unknown application or model at processing time.
	ErrSchemaNotFound = errors.New("schema not found")
	// ErrChannelNotFound signals a subscription channel that cannot exist for the application.
	ErrChannelNotFound = errors.New("channel not found")
	// ErrDeviceNotConnected signals a device that is not a member of the channel.
	ErrDeviceNotConnected = errors.New("device not connected")
	// ErrInvalidFilterQuery signals a filter expression rejected by the schema.
	ErrInvalidFilterQuery = errors.New("invalid filter query")
	// ErrInvalidPatch signals a patch operation rejected by the schema.
	ErrInvalidPatch = errors.New("invalid patch")
	// ErrInvalidEvent signals a malformed mutation event.
	ErrInvalidEvent = errors.New("invalid event")
	// ErrInvalidSubscription signals a subscribe or unsubscribe request missing its device or channel.
	ErrInvalidSubscription = errors.New("invalid subscription")
)

// FilterReason classifies why a filter expression was rejected.
type FilterReason string

// Filter rejection reasons.
const (
	FilterMalformed         FilterReason = "malformed"
	FilterEmptyGroup        FilterReason = "empty_group"
	FilterUnknownField      FilterReason = "unknown_field"
	FilterNotLeaf           FilterReason = "not_leaf"
	FilterNotFilterable     FilterReason = "not_filterable"
	FilterUnknownOperator   FilterReason = "unknown_operator"
	FilterMultipleOperators FilterReason = "multiple_operators"
	FilterOperatorType      FilterReason = "operator_type"
	FilterTypeMismatch      FilterReason = "type_mismatch"
)

// FilterError is the structured form of ErrInvalidFilterQuery.
type FilterError struct {
	Reason FilterReason
	Path   string
	Detail string
}

func (e *FilterError) Error() string {
	return describe(ErrInvalidFilterQuery, string(e.Reason), e.Path, e.Detail)
}

func (e *FilterError) Unwrap() error { return ErrInvalidFilterQuery }

// NewFilterError creates a FilterError.
func NewFilterError(reason FilterReason, path, detail string) error {
	return &FilterError{Reason: reason, Path: path, Detail: detail}
}

// PatchReason classifies why a patch operation was rejected.
type PatchReason string

// Patch rejection reasons.
const (
	PatchLengthMismatch  PatchReason = "length_mismatch"
	PatchMetadata        PatchReason = "metadata"
	PatchUnknownModel    PatchReason = "unknown_model"
	PatchUnsupportedOp   PatchReason = "unsupported_op"
	PatchUnknownPath     PatchReason = "unknown_path"
	PatchTypeMismatch    PatchReason = "type_mismatch"
	PatchUnknownProperty PatchReason = "unknown_property"
	PatchRequired        PatchReason = "required"
)

// PatchError is the structured form of ErrInvalidPatch.
type PatchError struct {
	Reason PatchReason
	Path   string
	Detail string
}

func (e *PatchError) Error() string {
	return describe(ErrInvalidPatch, string(e.Reason), e.Path, e.Detail)
}

func (e *PatchError) Unwrap() error { return ErrInvalidPatch }

// NewPatchError creates a PatchError.
func NewPatchError(reason PatchReason, path, detail string) error {
	return &PatchError{Reason: reason, Path: path, Detail: detail}
}

func describe(sentinel error, reason, path, detail string) string {
	var b strings.Builder
	b.WriteString(sentinel.Error())
	b.WriteString(": ")
	b.WriteString(reason)
	if path != "" {
		fmt.Fprintf(&b, " at %q", path)
	}
	if detail != "" {
		b.WriteString(": ")
		b.WriteString(detail)
	}
	return b.String()
}
