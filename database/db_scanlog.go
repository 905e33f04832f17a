// database/db_scanlog.go - collection pass audit log
package database

import (
	"context"
	"encoding/json"
	"time"

	"portscope/common"
)

type ScanLogRow struct {
	ID        int64          `json:"id"`
	ServerID  string         `json:"server_id"`
	Level     string         `json:"level"`
	Message   string         `json:"message"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
}

// ScanLog records a collection event for a server. Logging must never
// break the scan, so failures are only logged.
func ScanLog(ctx context.Context, serverID, level, msg string, data map[string]any) {
	if common.DB == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	b, _ := json.Marshal(data)
	if _, err := common.DB.Exec(ctx,
		`INSERT INTO scan_logs (server_id, level, message, data) VALUES ($1,$2,$3,$4::jsonb)`,
		serverID, level, msg, string(b)); err != nil {
		common.ErrorLog("scanlog insert failed: %v (msg=%s)", err, msg)
	}
}

// RecentScanLogs returns the newest entries for a server, newest first.
func RecentScanLogs(ctx context.Context, serverID string, limit int) ([]ScanLogRow, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	rows, err := common.DB.Query(ctx, `
		SELECT id, server_id, level, message, data, created_at
		FROM scan_logs WHERE server_id=$1
		ORDER BY id DESC LIMIT $2
	`, serverID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ScanLogRow{}
	for rows.Next() {
		var sl ScanLogRow
		var b []byte
		if err := rows.Scan(&sl.ID, &sl.ServerID, &sl.Level, &sl.Message, &b, &sl.CreatedAt); err != nil {
			return nil, err
		}
		_ = json.Unmarshal(b, &sl.Data)
		out = append(out, sl)
	}
	return out, rows.Err()
}
