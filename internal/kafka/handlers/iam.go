package handlers

import (
	"encoding/json"

	"vn.io.arda/rolesync/internal/domain"
)

func init() {
	Register(TopicIAMEvents, "USER_LOGIN", handleUserLogin)
	Register(TopicIAMEvents, "ROLE_DELETED", handleRoleDeleted)
	Register(TopicIAMEvents, "ROLE_CREATED", handleRoleCreated)
}

type iamEnv struct {
	EventType string `json:"eventType"`
	EventID   string `json:"eventId"`
	TenantKey string `json:"tenantKey"`
	Payload   struct {
		UserID   string `json:"userId"`
		Username string `json:"username"`
		// Roles is optional; absent means "look the roles up".
		Roles    *[]string `json:"roles"`
		RoleName string    `json:"roleName"`
	} `json:"payload"`
}

func parseIAMEnv(data []byte) (*iamEnv, bool) {
	var env iamEnv
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, false
	}
	return &env, true
}

func handleUserLogin(data []byte) *domain.Command {
	env, ok := parseIAMEnv(data)
	if !ok || env.Payload.UserID == "" || env.Payload.Username == "" {
		return nil
	}
	var current []string
	if env.Payload.Roles != nil {
		current = append([]string{}, *env.Payload.Roles...)
	}
	return &domain.Command{
		Kind:          domain.CommandSyncUser,
		Realm:         env.TenantKey,
		User:          domain.User{ID: env.Payload.UserID, Username: env.Payload.Username},
		CurrentRoles:  current,
		SourceEventID: env.EventID,
	}
}

func handleRoleDeleted(data []byte) *domain.Command {
	env, ok := parseIAMEnv(data)
	if !ok || env.Payload.RoleName == "" {
		return nil
	}
	return &domain.Command{
		Kind:          domain.CommandRoleDeleted,
		Realm:         env.TenantKey,
		RoleID:        env.Payload.RoleName,
		SourceEventID: env.EventID,
	}
}

func handleRoleCreated(data []byte) *domain.Command {
	env, ok := parseIAMEnv(data)
	if !ok {
		return nil
	}
	return &domain.Command{
		Kind:          domain.CommandRoleCreated,
		Realm:         env.TenantKey,
		RoleID:        env.Payload.RoleName,
		SourceEventID: env.EventID,
	}
}
