package domain

import "errors"

// SettingsName is the name under which the mapping settings object is persisted.
const SettingsName = "permissions_from_file.settings"

// Mapping binds a usernames file to the roles granted to users listed in it.
type Mapping struct {
	FilePath string   `json:"file_path" yaml:"file_path"`
	Roles    []string `json:"roles" yaml:"roles"`
}

// Settings is the persisted settings object. It is always read and written whole.
type Settings struct {
	Mappings []Mapping `json:"mappings" yaml:"mappings"`
	// Unmapped caches every known role that no mapping references.
	// Roles in this list are never revoked by reconciliation.
	Unmapped []string `json:"unmapped" yaml:"unmapped"`
}

// Membership is the outcome of looking a user up in a usernames file.
type Membership int

const (
	// MembershipUnknown means the file could not be checked (no path, missing, unreadable).
	MembershipUnknown Membership = iota
	MembershipFalse
	MembershipTrue
)

func (m Membership) String() string {
	switch m {
	case MembershipTrue:
		return "true"
	case MembershipFalse:
		return "false"
	default:
		return "unknown"
	}
}

// Delta is the role change computed for one user.
type Delta struct {
	ToAdd    []string `json:"to_add"`
	ToRemove []string `json:"to_remove"`
}

// Empty reports whether applying the delta would change nothing.
func (d Delta) Empty() bool {
	return len(d.ToAdd) == 0 && len(d.ToRemove) == 0
}

// User identifies the account being reconciled.
// ID is the identity-store key used for role mutations, Username is what
// appears in the usernames files.
type User struct {
	ID       string
	Username string
}

var (
	ErrSettingsNotFound = errors.New("settings not found")
	ErrUserNotFound     = errors.New("user not found")
	ErrRoleNotFound     = errors.New("role not found")
)
