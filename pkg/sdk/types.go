package nxx

import (
	"github.com/nxx-sync/nxx/internal/domain/event"
	"github.com/nxx-sync/nxx/internal/domain/patch"
	domschema "github.com/nxx-sync/nxx/internal/domain/schema"
)

// Schema types.
type (
	Application = domschema.Application
	Model       = domschema.Model
	Field       = domschema.Field
	FieldType   = domschema.Type
)

// Field types.
const (
	String  = domschema.String
	Number  = domschema.Number
	Boolean = domschema.Boolean
	Date    = domschema.Date
	Object  = domschema.Object
	Array   = domschema.Array
)

// Event is a record mutation; Data carries id, type, appId and optionally userId.
type Event = event.Mutation

// EventKind names what happened to a record.
type EventKind = event.Kind

// Event kinds.
const (
	ModelCreated = event.ModelCreated
	ModelUpdated = event.ModelUpdated
	ModelDeleted = event.ModelDeleted
)

// PatchOperation is a batch of path/value replacements against one record.
type PatchOperation = patch.Operation

// Subscription names a device and the channel it joins or leaves.
// Model, UserID and Filter are optional; a filter requires a model.
type Subscription struct {
	DeviceID string
	AppID    string
	Model    string
	UserID   string
	Filter   map[string]any
}

// Channel describes the channel a subscription resolved to.
type Channel struct {
	Name        string
	Fingerprint string
}

// DispatchResult summarizes an inline fan-out.
type DispatchResult struct {
	Channels int
	Devices  int
	Notified int
}
