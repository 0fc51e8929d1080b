// Package schema defines modality-specific digest schemas: which columns a
// long-format digest file must carry, their value domains, and the status
// legend shown by dashboard consumers. Schemas are loaded once at startup and
// are read-only afterwards.
package schema

import (
	"fmt"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

// Column data types.
const (
	TypeText    = "text"
	TypeNumeric = "numeric"
	TypeBool    = "bool"
	TypeEnum    = "enum"
)

// Column roles. Every schema needs exactly one subject column, one session
// column, one status column, and at least one variable column; everything
// else is an attribute carried through unchanged.
const (
	RoleSubject   = "subject"
	RoleSession   = "session"
	RoleVariable  = "variable"
	RoleStatus    = "status"
	RoleAttribute = "attribute"
)

// Column describes one column of a digest file.
type Column struct {
	Name     string   `yaml:"name" json:"name"`
	Required bool     `yaml:"required" json:"required"`
	DType    string   `yaml:"dtype" json:"dtype"`
	Role     string   `yaml:"role" json:"role"`
	Domain   []string `yaml:"domain" json:"domain,omitempty"`
}

// Validate validates a single column definition.
func (c *Column) Validate() error {
	if c.Role == "" {
		c.Role = RoleAttribute
	}
	if c.DType == "" {
		c.DType = TypeText
	}
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Name, validation.Required),
		validation.Field(&c.DType, validation.In(TypeText, TypeNumeric, TypeBool, TypeEnum)),
		validation.Field(&c.Role, validation.In(RoleSubject, RoleSession, RoleVariable, RoleStatus, RoleAttribute)),
	); err != nil {
		return fmt.Errorf("column %q: %w", c.Name, err)
	}
	if c.DType == TypeEnum && len(c.Domain) == 0 {
		return fmt.Errorf("column %q: enum column needs a non-empty domain", c.Name)
	}
	if c.DType != TypeEnum && len(c.Domain) > 0 {
		return fmt.Errorf("column %q: domain is only valid for enum columns", c.Name)
	}
	return nil
}

// InDomain reports whether value belongs to the enum domain, matching
// case-insensitively, and returns the declared spelling on success.
func (c *Column) InDomain(value string) (string, bool) {
	for _, d := range c.Domain {
		if strings.EqualFold(d, value) {
			return d, true
		}
	}
	return "", false
}

// Schema is a named, immutable digest schema for one data modality.
type Schema struct {
	Name        string   `yaml:"name" json:"name"`
	Version     string   `yaml:"version" json:"version"`
	Description string   `yaml:"description" json:"description,omitempty"`
	Columns     []Column `yaml:"columns" json:"columns"`
	// Statuses maps each status value to a short human-readable description
	// (the dashboard's status legend).
	Statuses map[string]string `yaml:"statuses" json:"statuses,omitempty"`
}

// Validate checks structural consistency of the schema definition.
func (s *Schema) Validate() error {
	if err := validation.ValidateStruct(s,
		validation.Field(&s.Name, validation.Required),
		validation.Field(&s.Version, validation.Required),
		validation.Field(&s.Columns, validation.Required),
	); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(s.Columns))
	roles := make(map[string]int)
	for i := range s.Columns {
		col := &s.Columns[i]
		if err := col.Validate(); err != nil {
			return fmt.Errorf("schema %q: %w", s.Name, err)
		}
		if _, dup := seen[col.Name]; dup {
			return fmt.Errorf("schema %q: duplicate column %q", s.Name, col.Name)
		}
		seen[col.Name] = struct{}{}
		roles[col.Role]++
		// Identity columns cannot be optional.
		if col.Role != RoleAttribute && !col.Required {
			return fmt.Errorf("schema %q: column %q with role %s must be required", s.Name, col.Name, col.Role)
		}
	}

	if roles[RoleSubject] != 1 {
		return fmt.Errorf("schema %q: exactly one subject column required, got %d", s.Name, roles[RoleSubject])
	}
	if roles[RoleSession] != 1 {
		return fmt.Errorf("schema %q: exactly one session column required, got %d", s.Name, roles[RoleSession])
	}
	if roles[RoleStatus] != 1 {
		return fmt.Errorf("schema %q: exactly one status column required, got %d", s.Name, roles[RoleStatus])
	}
	if roles[RoleVariable] == 0 {
		return fmt.Errorf("schema %q: at least one variable column required", s.Name)
	}
	return nil
}

// Column returns the definition for the named column.
func (s *Schema) Column(name string) (*Column, bool) {
	for i := range s.Columns {
		if s.Columns[i].Name == name {
			return &s.Columns[i], true
		}
	}
	return nil, false
}

// columnByRole returns the name of the first column with the given role.
func (s *Schema) columnByRole(role string) string {
	for i := range s.Columns {
		if s.Columns[i].Role == role {
			return s.Columns[i].Name
		}
	}
	return ""
}

// SubjectColumn returns the name of the subject identity column.
func (s *Schema) SubjectColumn() string { return s.columnByRole(RoleSubject) }

// SessionColumn returns the name of the session identity column.
func (s *Schema) SessionColumn() string { return s.columnByRole(RoleSession) }

// StatusColumn returns the name of the availability status column.
func (s *Schema) StatusColumn() string { return s.columnByRole(RoleStatus) }

// VariableColumns returns the names of all variable identity columns in
// declaration order.
func (s *Schema) VariableColumns() []string {
	var out []string
	for i := range s.Columns {
		if s.Columns[i].Role == RoleVariable {
			out = append(out, s.Columns[i].Name)
		}
	}
	return out
}

// VariableKey joins variable column values into one variable identity.
// With the imaging schema this yields "pipeline_name-pipeline_version",
// matching how the dashboard labels pipeline columns.
func (s *Schema) VariableKey(values []string) string {
	return strings.Join(values, "-")
}

// RequiredColumns returns the names of all required columns.
func (s *Schema) RequiredColumns() []string {
	var out []string
	for i := range s.Columns {
		if s.Columns[i].Required {
			out = append(out, s.Columns[i].Name)
		}
	}
	return out
}
