package application

import "vn.io.arda/rolesync/internal/domain"

// Command is the DTO used by Kafka handlers to drive the Service.
// This is a type alias for domain.Command for convenience.
type Command = domain.Command
