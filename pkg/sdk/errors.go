package nxx

import "github.com/nxx-sync/nxx/internal/domain"

// Sentinel errors re-exported from the domain layer.
// Use errors.Is() to check.
var (
	ErrInvalidSchema       = domain.ErrInvalidSchema
	ErrSchemaNotFound      = domain.ErrSchemaNotFound
	ErrChannelNotFound     = domain.ErrChannelNotFound
	ErrDeviceNotConnected  = domain.ErrDeviceNotConnected
	ErrInvalidFilterQuery  = domain.ErrInvalidFilterQuery
	ErrInvalidPatch        = domain.ErrInvalidPatch
	ErrInvalidEvent        = domain.ErrInvalidEvent
	ErrInvalidSubscription = domain.ErrInvalidSubscription
)

// FilterError describes a rejected filter expression. Use errors.As() to inspect it.
type FilterError = domain.FilterError

// PatchError describes a rejected patch operation. Use errors.As() to inspect it.
type PatchError = domain.PatchError
