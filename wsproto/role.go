// File: wsproto/role.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto

// Role identifies which side of a connection an Endpoint plays, which in
// turn determines masking direction (RFC 6455 Section 5.3): a client
// masks every frame it sends, a server never does.
type Role int

const (
	RoleClient Role = iota
	RoleServer
)

func (r Role) String() string {
	if r == RoleServer {
		return "server"
	}
	return "client"
}
