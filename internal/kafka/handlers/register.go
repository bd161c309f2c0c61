package handlers

import (
	"vn.io.arda/rolesync/internal/kafka/registry"
)

// Topic names consumed by this service.
const (
	TopicIAMEvents = "iam-events"
	TopicCommands  = "rolesync-commands"
)

// Register is a convenience alias so each domain file calls Register(...)
// instead of registry.Register(...), keeping imports minimal.
func Register(topic, eventType string, h registry.EventHandler) {
	registry.Register(topic, eventType, h)
}

// RegisterDirect registers a handler for topics that don't use eventType routing.
func RegisterDirect(topic string, h registry.EventHandler) {
	registry.Register(topic, "", h)
}
