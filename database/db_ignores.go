// database/db_ignores.go - ignored-port markers
package database

import (
	"context"
	"fmt"
	"time"

	"portscope/common"
)

type IgnoreRow struct {
	common.Identity
	CreatedAt time.Time `json:"created_at"`
}

// SetIgnore marks or unmarks an identity as ignored. Both directions are
// idempotent: marking twice keeps one row, unmarking an absent row is a
// no-op.
func SetIgnore(ctx context.Context, id common.Identity, ignored bool) error {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return err
	}

	if ignored {
		_, err := common.DB.Exec(ctx, `
			INSERT INTO ignores (server_id, host_ip, host_port, protocol, container_id, internal)
			VALUES ($1,$2,$3,$4,$5,$6)
			ON CONFLICT (server_id, host_ip, host_port, protocol, container_id, internal) DO NOTHING
		`, id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal)
		if err != nil {
			return fmt.Errorf("set ignore: %w", err)
		}
		return nil
	}

	_, err := common.DB.Exec(ctx, `
		DELETE FROM ignores
		WHERE server_id=$1 AND host_ip=$2 AND host_port=$3 AND protocol=$4
		  AND container_id=$5 AND internal=$6
	`, id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal)
	if err != nil {
		return fmt.Errorf("clear ignore: %w", err)
	}
	return nil
}

// ListIgnores returns all ignored identities for a server.
func ListIgnores(ctx context.Context, serverID string) ([]IgnoreRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT server_id, host_ip, host_port, protocol, container_id, internal, created_at
		FROM ignores WHERE server_id=$1
		ORDER BY host_ip, host_port, protocol
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list ignores: %w", err)
	}
	defer rows.Close()

	out := []IgnoreRow{}
	for rows.Next() {
		var ig IgnoreRow
		if err := rows.Scan(&ig.ServerID, &ig.HostIP, &ig.HostPort, &ig.Protocol,
			&ig.ContainerID, &ig.Internal, &ig.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ignore: %w", err)
		}
		out = append(out, ig)
	}
	return out, rows.Err()
}
