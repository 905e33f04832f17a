// common/types.go - Shared domain types used across packages
package common

import (
	"fmt"
	"strings"
)

// Supported port protocols.
const (
	ProtoTCP = "tcp"
	ProtoUDP = "udp"
)

// PortObservation is a single raw open-port record produced by a collector.
// Internal means the port is only exposed inside a container network
// namespace and has no host binding.
type PortObservation struct {
	HostIP      string `json:"host_ip"`
	HostPort    int    `json:"host_port"`
	Protocol    string `json:"protocol"`
	Owner       string `json:"owner,omitempty"`
	PID         int    `json:"pid,omitempty"` // 0 = unknown
	ContainerID string `json:"container_id,omitempty"`
	Internal    bool   `json:"internal"`
}

// Identity is the composite key that distinguishes one tracked port
// instance from another. ContainerID is part of the key so the same host
// port exposed by two containers stays distinct for annotations.
type Identity struct {
	ServerID    string `json:"server_id"`
	HostIP      string `json:"host_ip"`
	HostPort    int    `json:"host_port"`
	Protocol    string `json:"protocol"`
	ContainerID string `json:"container_id,omitempty"` // "" when absent
	Internal    bool   `json:"internal"`
}

// Normalize canonicalizes an identity so that lookups succeed regardless of
// how the caller omitted optional fields: protocol lowercased, fields
// trimmed, and JSON-ish null spellings of container_id collapsed to "".
func (id Identity) Normalize() Identity {
	id.ServerID = strings.TrimSpace(id.ServerID)
	id.HostIP = strings.TrimSpace(id.HostIP)
	id.Protocol = strings.ToLower(strings.TrimSpace(id.Protocol))
	id.ContainerID = strings.TrimSpace(id.ContainerID)
	switch strings.ToLower(id.ContainerID) {
	case "null", "undefined", "none":
		id.ContainerID = ""
	}
	return id
}

// Key renders the identity as a stable string usable both as an in-memory
// map key and for logging. Pure concatenation, no hashing; "|" cannot occur
// in any component so the encoding is injective.
func (id Identity) Key() string {
	return fmt.Sprintf("%s|%s|%d|%s|%s|%t",
		id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal)
}

// Validate checks the identity before it touches storage. Errors are
// field-tagged ValidationErrors and are never retried.
func (id Identity) Validate() error {
	if id.ServerID == "" {
		return &ValidationError{Field: "server_id", Msg: "server_id is required"}
	}
	if id.HostIP == "" {
		return &ValidationError{Field: "host_ip", Msg: "host_ip is required"}
	}
	if id.HostPort < 1 || id.HostPort > 65535 {
		return &ValidationError{Field: "host_port", Msg: fmt.Sprintf("invalid port number %d", id.HostPort)}
	}
	if id.Protocol != ProtoTCP && id.Protocol != ProtoUDP {
		return &ValidationError{Field: "protocol", Msg: fmt.Sprintf("unsupported protocol %q", id.Protocol)}
	}
	return nil
}

// WildcardSibling returns the 0.0.0.0 <-> :: mirror of this identity.
// IPv4-any and IPv6-any bindings are the same logical port for annotation
// purposes, so wildcard custom-name writes are mirrored across both. The
// mirror only applies to host-level, non-container identities.
func (id Identity) WildcardSibling() (Identity, bool) {
	if id.ContainerID != "" || id.Internal {
		return Identity{}, false
	}
	sib := id
	switch id.HostIP {
	case "0.0.0.0":
		sib.HostIP = "::"
	case "::":
		sib.HostIP = "0.0.0.0"
	default:
		return Identity{}, false
	}
	return sib, true
}

// ValidationError tags a bad request field so the HTTP layer can surface
// a 400 with the offending field name.
type ValidationError struct {
	Field string
	Msg   string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// Server is one entry of the configured server inventory.
type Server struct {
	ID    string `json:"id" yaml:"id"`
	Name  string `json:"name" yaml:"name"`
	URL   string `json:"url,omitempty" yaml:"url,omitempty"`
	Local bool   `json:"local" yaml:"local"`
}
