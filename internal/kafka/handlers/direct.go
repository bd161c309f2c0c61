package handlers

import (
	"encoding/json"

	"vn.io.arda/rolesync/internal/domain"
)

func init() {
	RegisterDirect(TopicCommands, handleDirectCommand)
}

// handleDirectCommand accepts operator-issued commands, e.g. a forced resync
// of one user or a refresh of the unmapped-role cache.
func handleDirectCommand(data []byte) *domain.Command {
	var cmd struct {
		CommandID string    `json:"commandId"`
		TenantKey string    `json:"tenantKey"`
		Command   string    `json:"command"`
		UserID    string    `json:"userId"`
		Username  string    `json:"username"`
		Roles     *[]string `json:"roles"`
		RoleName  string    `json:"roleName"`
	}

	if err := json.Unmarshal(data, &cmd); err != nil {
		return nil
	}

	out := &domain.Command{
		Kind:          domain.CommandKind(cmd.Command),
		Realm:         cmd.TenantKey,
		RoleID:        cmd.RoleName,
		SourceEventID: cmd.CommandID,
	}

	switch out.Kind {
	case domain.CommandSyncUser:
		if cmd.UserID == "" || cmd.Username == "" {
			return nil
		}
		out.User = domain.User{ID: cmd.UserID, Username: cmd.Username}
		if cmd.Roles != nil {
			out.CurrentRoles = append([]string{}, *cmd.Roles...)
		}
	case domain.CommandRoleDeleted:
		if cmd.RoleName == "" {
			return nil
		}
	case domain.CommandRoleCreated:
	default:
		return nil
	}
	return out
}
