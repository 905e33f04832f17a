// handlers/servers.go - server inventory, stats and scan log endpoints
package handlers

import (
	"net/http"

	"portscope/database"
	"portscope/services"

	"github.com/go-chi/chi/v5"
)

// SetupServerRoutes configures server inventory and diagnostics endpoints
func SetupServerRoutes(router chi.Router, deps *Deps) {
	router.Get("/servers", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"servers": services.Servers()})
	})

	router.Get("/stats", func(w http.ResponseWriter, r *http.Request) {
		stats, err := database.GetAnnotationStats(r.Context(), serverIDParam(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	})

	router.Get("/scan-logs", func(w http.ResponseWriter, r *http.Request) {
		limit := parseIntDefault(r.URL.Query().Get("limit"), 100)
		logs, err := database.RecentScanLogs(r.Context(), serverIDParam(r), limit)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"logs": logs})
	})

	router.Get("/scan-logs/stream", handleScanLogStream)

	router.Get("/ws/ports", func(w http.ResponseWriter, r *http.Request) {
		handlePortsStream(w, r, deps)
	})
}
