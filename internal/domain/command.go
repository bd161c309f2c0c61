package domain

// CommandKind identifies what an incoming IAM event asks the service to do.
type CommandKind string

const (
	// CommandSyncUser reconciles one user's roles (login trigger).
	CommandSyncUser CommandKind = "SYNC_USER"
	// CommandRoleDeleted purges a deleted role from every mapping.
	CommandRoleDeleted CommandKind = "ROLE_DELETED"
	// CommandRoleCreated refreshes the unmapped-role cache.
	CommandRoleCreated CommandKind = "ROLE_CREATED"
)

// Command is the DTO produced by Kafka handlers and executed by the application Service.
type Command struct {
	Kind CommandKind
	// Realm is the identity realm the event originated from.
	Realm string
	User  User
	// CurrentRoles is the role set carried by the event, nil when the event
	// did not include one and it must be fetched from the identity store.
	CurrentRoles []string
	// RoleID is set for role lifecycle commands.
	RoleID        string
	SourceEventID string
}
