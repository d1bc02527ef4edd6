package schema

import (
	"fmt"
	"regexp"
	"sort"

	"github.com/nxx-sync/nxx/internal/domain"
)

// Built-in model names present in every application.
const (
	ModelUser        = "user"
	ModelApplication = "application"
)

// UserIDField links app-defined records to their owning user.
const UserIDField = "userId"

var modelNameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

var reservedFieldNames = map[string]bool{
	"id": true, "createdAt": true, "updatedAt": true, UserIDField: true,
}

// Universal returns the fields every record carries.
func Universal() Model {
	return Model{
		"id":        {Type: String, Filterable: true},
		"createdAt": {Type: Date, Filterable: true},
		"updatedAt": {Type: Date, Filterable: true},
	}
}

// Builtin returns the complete definition of a built-in model.
// userDetails is the per-application schema exposed under "details" on user records.
func Builtin(name string, userDetails Model) (Model, bool) {
	switch name {
	case ModelUser:
		if userDetails == nil {
			userDetails = Model{}
		}
		return Merge(Universal(), Model{
			"username": {Type: String, Required: true, Filterable: true},
			"email":    {Type: String, Filterable: true},
			"details":  {Type: Object, Properties: userDetails},
		}), true
	case ModelApplication:
		return Merge(Universal(), Model{
			"name":        {Type: String, Required: true, Filterable: true},
			"description": {Type: String},
		}), true
	}
	return nil, false
}

// IsBuiltin reports whether name is one of the always-present models.
func IsBuiltin(name string) bool {
	return name == ModelUser || name == ModelApplication
}

// Application is the registered schema of one client application.
// It is immutable once registered.
type Application struct {
	Models      map[string]Model `json:"models"`
	AuthEnabled bool             `json:"authEnabled"`
	UserDetails Model            `json:"userDetails,omitempty"`
}

// Validate checks model names and every field definition.
func (a Application) Validate() error {
	for name, m := range a.Models {
		if !modelNameRegex.MatchString(name) {
			return fmt.Errorf("model name %q must be alphanumeric with underscores and hyphens: %w",
				name, domain.ErrInvalidSchema)
		}
		if IsBuiltin(name) {
			return fmt.Errorf("model name %q is reserved: %w", name, domain.ErrInvalidSchema)
		}
		for field := range m {
			if reservedFieldNames[field] {
				return fmt.Errorf("field %s.%s is reserved: %w", name, field, domain.ErrInvalidSchema)
			}
		}
		if err := m.validate(name + "."); err != nil {
			return err
		}
	}
	if err := a.UserDetails.validate("details."); err != nil {
		return err
	}
	return nil
}

// Model returns the merged definition of a model: universal fields, the model's own
// fields and, for app-defined models, the optional owner field.
func (a Application) Model(name string) (Model, bool) {
	if IsBuiltin(name) {
		return Builtin(name, a.UserDetails)
	}
	m, ok := a.Models[name]
	if !ok {
		return nil, false
	}
	return Merge(Universal(), Model{UserIDField: {Type: String, Filterable: true}}, m), true
}

// ModelNames lists built-in and app-defined model names, sorted.
func (a Application) ModelNames() []string {
	names := []string{ModelApplication, ModelUser}
	for name := range a.Models {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
