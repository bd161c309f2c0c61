package application

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/spf13/afero"
	"vn.io.arda/rolesync/internal/domain"
	"vn.io.arda/rolesync/internal/messages"
)

// FieldError is a validation failure on one mapping row.
type FieldError struct {
	Row     int    `json:"row"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError collects every FieldError found in a mapping list.
type ValidationError struct {
	Errors []FieldError `json:"errors"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		parts = append(parts, fmt.Sprintf("mappings[%d].%s: %s", fe.Row, fe.Field, fe.Message))
	}
	return "invalid mappings: " + strings.Join(parts, "; ")
}

// MappingValidator checks admin-submitted mappings before they are saved.
type MappingValidator struct {
	fs       afero.Fs
	reserved mapset.Set[string]
}

// NewMappingValidator creates a validator. Roles in reserved can never be mapped.
func NewMappingValidator(fsys afero.Fs, reserved []string) *MappingValidator {
	return &MappingValidator{fs: fsys, reserved: mapset.NewThreadUnsafeSet(reserved...)}
}

// Validate returns a *ValidationError when a row has a path without roles or
// roles without a path, names a file that cannot be read, or selects a role
// that is reserved or not in knownRoles. Rows with neither path nor roles are
// ignored; they are dropped on save. A nil knownRoles skips the existence check.
func (v *MappingValidator) Validate(mappings []domain.Mapping, knownRoles []string) error {
	var known mapset.Set[string]
	if knownRoles != nil {
		known = mapset.NewThreadUnsafeSet(knownRoles...)
	}

	var errs []FieldError
	add := func(row int, field, msg string) {
		errs = append(errs, FieldError{Row: row, Field: field, Message: msg})
	}

	for i, m := range mappings {
		path := strings.TrimSpace(m.FilePath)
		roles := nonBlank(m.Roles)
		hasPath, hasRoles := path != "", len(roles) > 0

		if hasPath != hasRoles {
			add(i, "file_path", messages.PathAndRolesRequired)
		}

		if hasPath {
			info, err := v.fs.Stat(path)
			switch {
			case err != nil:
				add(i, "file_path", messages.FileNotFound(path))
			case info.IsDir():
				add(i, "file_path", messages.PathIsDirectory(path))
			default:
				if f, err := v.fs.Open(path); err != nil {
					add(i, "file_path", messages.FileNotFound(path))
				} else {
					f.Close()
				}
			}
		}

		for _, r := range roles {
			switch {
			case v.reserved.Contains(r):
				add(i, "roles", messages.ReservedRole(r))
			case known != nil && !known.Contains(r):
				add(i, "roles", messages.UnknownRole(r))
			}
		}
	}

	if len(errs) > 0 {
		return &ValidationError{Errors: errs}
	}
	return nil
}

func nonBlank(roles []string) []string {
	out := make([]string, 0, len(roles))
	for _, r := range roles {
		if r = strings.TrimSpace(r); r != "" {
			out = append(out, r)
		}
	}
	return out
}
