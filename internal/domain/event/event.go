package event

import (
	"fmt"

	"github.com/nxx-sync/nxx/internal/domain"
)

// Kind names what happened to a record.
type Kind string

// Mutation kinds.
const (
	ModelCreated Kind = "model_created"
	ModelUpdated Kind = "model_updated"
	ModelDeleted Kind = "model_deleted"
)

// DeviceMessage is the kind of every outbound notification.
const DeviceMessage = "device_message"

// Record fields the dispatcher routes on.
const (
	FieldID     = "id"
	FieldType   = "type"
	FieldAppID  = "appId"
	FieldUserID = "userId"
)

// IsValid reports whether k is a known mutation kind.
func (k Kind) IsValid() bool {
	switch k {
	case ModelCreated, ModelUpdated, ModelDeleted:
		return true
	}
	return false
}

// Mutation is a record change consumed by the fan-out dispatcher.
// Data is the record itself: routing fields plus every model field.
type Mutation struct {
	Event Kind           `json:"event"`
	Data  map[string]any `json:"data"`
}

// Validate checks the envelope: a known kind and string routing fields.
func (m Mutation) Validate() error {
	if !m.Event.IsValid() {
		return fmt.Errorf("event kind %q: %w", m.Event, domain.ErrInvalidEvent)
	}
	for _, f := range []string{FieldID, FieldType, FieldAppID} {
		if s, ok := m.Data[f].(string); !ok || s == "" {
			return fmt.Errorf("data.%s must be a non-empty string: %w", f, domain.ErrInvalidEvent)
		}
	}
	if v, present := m.Data[FieldUserID]; present && v != nil {
		if _, ok := v.(string); !ok {
			return fmt.Errorf("data.%s must be a string: %w", FieldUserID, domain.ErrInvalidEvent)
		}
	}
	return nil
}

// AppID returns the application the record belongs to.
func (m Mutation) AppID() string { return m.str(FieldAppID) }

// Model returns the record's model.
func (m Mutation) Model() string { return m.str(FieldType) }

// RecordID returns the record id.
func (m Mutation) RecordID() string { return m.str(FieldID) }

// UserID returns the owning user, or "" when the record has none.
func (m Mutation) UserID() string { return m.str(FieldUserID) }

func (m Mutation) str(key string) string {
	s, _ := m.Data[key].(string)
	return s
}

// Notification is what one device receives for one mutation.
type Notification struct {
	Event    string   `json:"event"`
	DeviceID string   `json:"deviceId"`
	Data     Mutation `json:"data"`
}

// NewNotification wraps m for deviceID.
func NewNotification(deviceID string, m Mutation) Notification {
	return Notification{Event: DeviceMessage, DeviceID: deviceID, Data: m}
}
