package database

import (
	"context"
	"errors"

	"portscope/common"

	"github.com/jackc/pgx/v5"
)

// AnnotationStats summarizes stored annotation volume per server.
type AnnotationStats struct {
	Notes       int `json:"notes"`
	Ignores     int `json:"ignores"`
	CustomNames int `json:"custom_names"`
}

// GetAnnotationStats counts annotation rows for a server.
func GetAnnotationStats(ctx context.Context, serverID string) (AnnotationStats, error) {
	var s AnnotationStats
	err := common.DB.QueryRow(ctx, `
		SELECT
		  (SELECT COUNT(*) FROM notes WHERE server_id=$1),
		  (SELECT COUNT(*) FROM ignores WHERE server_id=$1),
		  (SELECT COUNT(*) FROM custom_service_names WHERE server_id=$1)
	`, serverID).Scan(&s.Notes, &s.Ignores, &s.CustomNames)
	return s, err
}

// isNoRows reports whether err is the pgx no-rows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
