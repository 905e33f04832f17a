package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseIdentity() Identity {
	return Identity{ServerID: "local", HostIP: "0.0.0.0", HostPort: 8080, Protocol: ProtoTCP}
}

func TestIdentity_Normalize(t *testing.T) {
	id := Identity{
		ServerID:    "  local ",
		HostIP:      " 0.0.0.0 ",
		HostPort:    80,
		Protocol:    " TCP ",
		ContainerID: " abc123 ",
	}

	n := id.Normalize()
	assert.Equal(t, "local", n.ServerID)
	assert.Equal(t, "0.0.0.0", n.HostIP)
	assert.Equal(t, "tcp", n.Protocol)
	assert.Equal(t, "abc123", n.ContainerID)
}

func TestIdentity_NormalizeNullContainerSpellings(t *testing.T) {
	for _, spelling := range []string{"null", "NULL", "undefined", "None", " null "} {
		id := baseIdentity()
		id.ContainerID = spelling
		assert.Equal(t, "", id.Normalize().ContainerID, "spelling %q", spelling)
	}
}

func TestIdentity_KeyDistinguishesComponents(t *testing.T) {
	a := baseIdentity()

	b := a
	b.ContainerID = "abc123"
	c := a
	c.Internal = true
	d := a
	d.Protocol = ProtoUDP

	keys := map[string]bool{a.Key(): true, b.Key(): true, c.Key(): true, d.Key(): true}
	assert.Len(t, keys, 4)

	// stable across calls
	assert.Equal(t, a.Key(), a.Key())
}

func TestIdentity_Validate(t *testing.T) {
	assert.NoError(t, baseIdentity().Validate())

	tests := []struct {
		name      string
		mutate    func(*Identity)
		wantField string
	}{
		{"missing server", func(id *Identity) { id.ServerID = "" }, "server_id"},
		{"missing ip", func(id *Identity) { id.HostIP = "" }, "host_ip"},
		{"port zero", func(id *Identity) { id.HostPort = 0 }, "host_port"},
		{"port too high", func(id *Identity) { id.HostPort = 70000 }, "host_port"},
		{"bad protocol", func(id *Identity) { id.Protocol = "icmp" }, "protocol"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id := baseIdentity()
			tt.mutate(&id)
			err := id.Validate()
			require.Error(t, err)

			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tt.wantField, verr.Field)
		})
	}
}

func TestIdentity_WildcardSibling(t *testing.T) {
	id := baseIdentity()
	sib, ok := id.WildcardSibling()
	require.True(t, ok)
	assert.Equal(t, "::", sib.HostIP)

	back, ok := sib.WildcardSibling()
	require.True(t, ok)
	assert.Equal(t, id, back)
}

func TestIdentity_WildcardSiblingExclusions(t *testing.T) {
	specific := baseIdentity()
	specific.HostIP = "192.168.1.5"
	_, ok := specific.WildcardSibling()
	assert.False(t, ok)

	containerBound := baseIdentity()
	containerBound.ContainerID = "abc123"
	_, ok = containerBound.WildcardSibling()
	assert.False(t, ok)

	internal := baseIdentity()
	internal.Internal = true
	_, ok = internal.WildcardSibling()
	assert.False(t, ok)
}
