package database

// Validation happens before any pool access, so these tests run without a
// database. Storage round-trips need a live Postgres and are covered by the
// integration environment, not here.

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portscope/common"
)

func validIdentity() common.Identity {
	return common.Identity{ServerID: "local", HostIP: "10.0.0.1", HostPort: 443, Protocol: "tcp"}
}

func assertValidationField(t *testing.T, err error, field string) {
	t.Helper()
	require.Error(t, err)
	var verr *common.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, field, verr.Field)
}

func TestUpsertNote_RejectsBadIdentity(t *testing.T) {
	ctx := context.Background()

	id := validIdentity()
	id.HostPort = 0
	assertValidationField(t, UpsertNote(ctx, id, "note text"), "host_port")

	id = validIdentity()
	id.ServerID = ""
	assertValidationField(t, UpsertNote(ctx, id, "note text"), "server_id")
}

func TestGetNote_RejectsBadIdentity(t *testing.T) {
	id := validIdentity()
	id.Protocol = "sctp"
	_, err := GetNote(context.Background(), id)
	assertValidationField(t, err, "protocol")
}

func TestSetIgnore_RejectsBadIdentity(t *testing.T) {
	id := validIdentity()
	id.HostIP = ""
	assertValidationField(t, SetIgnore(context.Background(), id, true), "host_ip")
	assertValidationField(t, SetIgnore(context.Background(), id, false), "host_ip")
}

func TestUpsertCustomName_RejectsEmptyName(t *testing.T) {
	err := UpsertCustomName(context.Background(), validIdentity(), "   ", "nginx")
	assertValidationField(t, err, "custom_name")
}

func TestUpsertCustomName_NormalizesBeforeValidation(t *testing.T) {
	id := validIdentity()
	id.Protocol = " TCP "
	id.HostPort = -1
	assertValidationField(t, UpsertCustomName(context.Background(), id, "gateway", ""), "host_port")
}

func TestDeleteCustomName_RejectsBadIdentity(t *testing.T) {
	id := validIdentity()
	id.HostPort = 100000
	assertValidationField(t, DeleteCustomName(context.Background(), id), "host_port")
}
