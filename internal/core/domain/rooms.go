package domain

import (
	"strings"

	"github.com/google/uuid"
)

// Room name prefixes. The format is part of the wire contract with the
// frontends and must not change:
//
//	identity-<identityId>
//	role-<lowercased-role>
//
// Any other name is an ad-hoc channel.
const (
	identityRoomPrefix = "identity-"
	roleRoomPrefix     = "role-"
)

// IdentityRoom returns the implicit room every session of an identity joins.
func IdentityRoom(identityID uuid.UUID) string {
	return identityRoomPrefix + identityID.String()
}

// RoleRoom returns the implicit room every session of a role joins.
func RoleRoom(role Role) string {
	return roleRoomPrefix + strings.ToLower(string(role))
}
