// database/db_notes.go - note annotations keyed by port identity
package database

import (
	"context"
	"fmt"
	"strings"
	"time"

	"portscope/common"
)

type NoteRow struct {
	common.Identity
	Note      string    `json:"note"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// UpsertNote writes or clears the note for an identity. An empty (after
// trimming) note deletes the row; a non-empty note inserts or updates it.
func UpsertNote(ctx context.Context, id common.Identity, text string) error {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		// Clearing an absent note is a no-op.
		_, err := common.DB.Exec(ctx, `
			DELETE FROM notes
			WHERE server_id=$1 AND host_ip=$2 AND host_port=$3 AND protocol=$4
			  AND container_id=$5 AND internal=$6
		`, id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal)
		if err != nil {
			return fmt.Errorf("delete note: %w", err)
		}
		return nil
	}

	_, err := common.DB.Exec(ctx, `
		INSERT INTO notes (server_id, host_ip, host_port, protocol, container_id, internal, note)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (server_id, host_ip, host_port, protocol, container_id, internal) DO UPDATE
		  SET note = EXCLUDED.note,
		      updated_at = now()
	`, id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal, text)
	if err != nil {
		return fmt.Errorf("upsert note: %w", err)
	}
	return nil
}

// GetNote returns the note for an identity, or nil when none exists.
func GetNote(ctx context.Context, id common.Identity) (*NoteRow, error) {
	id = id.Normalize()
	if err := id.Validate(); err != nil {
		return nil, err
	}

	row := NoteRow{Identity: id}
	err := common.DB.QueryRow(ctx, `
		SELECT note, created_at, updated_at FROM notes
		WHERE server_id=$1 AND host_ip=$2 AND host_port=$3 AND protocol=$4
		  AND container_id=$5 AND internal=$6
	`, id.ServerID, id.HostIP, id.HostPort, id.Protocol, id.ContainerID, id.Internal).
		Scan(&row.Note, &row.CreatedAt, &row.UpdatedAt)
	if err != nil {
		if isNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get note: %w", err)
	}
	return &row, nil
}

// ListNotes returns all notes for a server.
func ListNotes(ctx context.Context, serverID string) ([]NoteRow, error) {
	rows, err := common.DB.Query(ctx, `
		SELECT server_id, host_ip, host_port, protocol, container_id, internal,
		       note, created_at, updated_at
		FROM notes WHERE server_id=$1
		ORDER BY host_ip, host_port, protocol
	`, serverID)
	if err != nil {
		return nil, fmt.Errorf("list notes: %w", err)
	}
	defer rows.Close()

	out := []NoteRow{}
	for rows.Next() {
		var n NoteRow
		if err := rows.Scan(&n.ServerID, &n.HostIP, &n.HostPort, &n.Protocol,
			&n.ContainerID, &n.Internal, &n.Note, &n.CreatedAt, &n.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		out = append(out, n)
	}
	return out, rows.Err()
}
