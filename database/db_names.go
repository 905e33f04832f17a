// database/db_names.go - custom service names with wildcard mirroring
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portscope/common"
)

type CustomNameRow struct {
	common.Identity
	CustomName   string    `json:"custom_name"`
	OriginalName string    `json:"original_name,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// UpsertCustomName sets the display name for an identity. Writes targeting
// a wildcard bind (0.0.0.0 or ::) with no container are mirrored onto the
// sibling wildcard so the rename shows up on both address families. The
// mirror is best-effort: its failure is logged and swallowed, the primary
// write's is not.
func UpsertCustomName(ctx context.Context, id common.Identity, customName, originalName string) error {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return err
	}
	customName = strings.TrimSpace(customName)
	if customName == "" {
		return &common.ValidationError{Field: "custom_name", Msg: "custom_name is required"}
	}

	if err := upsertCustomNameRow(ctx, id, customName, originalName); err != nil {
		return err
	}

	if sib, ok := id.WildcardSibling(); ok {
		if err := upsertCustomNameRow(ctx, sib, customName, originalName); err != nil {
			common.WarnLog("custom name mirror write failed for %s: %v", sib.Key(), err)
		}
	}
	return nil
}

func upsertCustomNameRow(ctx context.Context, id common.Identity, customName, originalName string) error {
	_, err := common.DB.Exec(ctx, `
		INSERT INTO custom_service_names
		  (server_id, host_ip, host_port, protocol, container_id, internal, custom_name, original_name)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (server_id, host_ip, host_port, protocol, container_id, internal) DO UPDATE
		  SET custom_name   = EXCLUDED.custom_name,
		      original_name = COALESCE(NULLIF(EXCLUDED.original_name,''), custom_service_names.original_name),
		      updated_at    = now()
	`, id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal,
		customName, originalName)
	if err != nil {
		return fmt.Errorf("upsert custom name: %w", err)
	}
	return nil
}

// DeleteCustomName removes the display name for an identity. When the
// targeted row does not exist and a container_id was given, it retries
// against the legacy row written before container_id joined the key. The
// wildcard mirror row is removed best-effort afterwards.
func DeleteCustomName(ctx context.Context, id common.Identity) error {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return err
	}

	affected, err := deleteCustomNameRow(ctx, id)
	if err != nil {
		return err
	}
	if affected == 0 && id.ContainerID != "" {
		legacy := id
		legacy.ContainerID = ""
		if _, err := deleteCustomNameRow(ctx, legacy); err != nil {
			return err
		}
	}

	if sib, ok := id.WildcardSibling(); ok {
		if _, err := deleteCustomNameRow(ctx, sib); err != nil {
			common.WarnLog("custom name mirror delete failed for %s: %v", sib.Key(), err)
		}
	}
	return nil
}

func deleteCustomNameRow(ctx context.Context, id common.Identity) (int64, error) {
	cmd, err := common.DB.Exec(ctx, `
		DELETE FROM custom_service_names
		WHERE server_id=$1 AND host_ip=$2 AND host_port=$3 AND protocol=$4
		  AND container_id=$5 AND internal=$6
	`, id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal)
	if err != nil {
		return 0, fmt.Errorf("delete custom name: %w", err)
	}
	return cmd.RowsAffected(), nil
}

// ListCustomNames returns all custom names for a server.
func ListCustomNames(ctx context.Context, serverID string) ([]CustomNameRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT server_id, host_ip, host_port, protocol, container_id, internal,
		       custom_name, original_name, created_at, updated_at
		FROM custom_service_names WHERE server_id=$1
		ORDER BY host_ip, host_port, protocol
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list custom names: %w", err)
	}
	defer rows.Close()

	out := []CustomNameRow{}
	for rows.Next() {
		var cn CustomNameRow
		if err := rows.Scan(&cn.ServerID, &cn.HostIP, &cn.HostPort, &cn.Protocol,
			&cn.ContainerID, &cn.Internal, &cn.CustomName, &cn.OriginalName,
			&cn.CreatedAt, &cn.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan custom name: %w", err)
		}
		out = append(out, cn)
	}
	return out, rows.Err()
}
