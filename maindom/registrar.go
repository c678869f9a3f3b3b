package maindom

import (
	"fmt"
	"strings"
)

// ServerRole is the role of this server in a load-balanced deployment.
type ServerRole int

const (
	RoleUnknown ServerRole = iota
	RoleSingle
	RoleSchedulingPublisher
	RoleSubscriber
)

func (r ServerRole) String() string {
	switch r {
	case RoleSingle:
		return "single"
	case RoleSchedulingPublisher:
		return "publisher"
	case RoleSubscriber:
		return "subscriber"
	default:
		return "unknown"
	}
}

// ParseRole parses the configured role name. An empty name is RoleSingle.
func ParseRole(name string) (ServerRole, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "single":
		return RoleSingle, nil
	case "publisher", "schedulingpublisher":
		return RoleSchedulingPublisher, nil
	case "subscriber":
		return RoleSubscriber, nil
	case "unknown":
		return RoleUnknown, nil
	default:
		return RoleUnknown, fmt.Errorf("%w: %s", ErrUnknownRole, name)
	}
}

// ServerRegistrar reports the role of this server.
type ServerRegistrar interface {
	Role() ServerRole
}

// StaticRegistrar is a ServerRegistrar with a fixed role.
type StaticRegistrar ServerRole

// Role returns the fixed role.
func (s StaticRegistrar) Role() ServerRole { return ServerRole(s) }
