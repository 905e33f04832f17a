package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"portscope/common"
	"portscope/services"

	"github.com/go-chi/chi/v5"
)

// Deps carries the shared components the handlers operate on. The TTL
// cache and collector are injected rather than ambient so tests can build
// isolated instances.
type Deps struct {
	Cache     *common.TTLCache
	Collector services.Collector
	Prober    *services.Prober
	CacheTTL  time.Duration
}

// SetupAllRoutes sets up all the handler routes
// This function is called from web.go to register all handler routes
func SetupAllRoutes(router chi.Router, deps *Deps) {
	SetupPortRoutes(router, deps)
	SetupAnnotationRoutes(router, deps)
	SetupServerRoutes(router, deps)
}

// Helper functions
func parseIntDefault(s string, def int) int {
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	encoder := json.NewEncoder(w)
	encoder.SetEscapeHTML(false)
	encoder.Encode(data)
}

// writeError maps core errors onto the API error shape: validation errors
// become field-tagged 400s, anything else a generic 500 with the
// underlying message preserved.
func writeError(w http.ResponseWriter, err error) {
	var verr *common.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": verr.Msg,
			"field":   verr.Field,
		})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]any{
		"error":   "operation failed",
		"details": err.Error(),
	})
}

// serverIDParam resolves the server_id query param, defaulting to the
// local server.
func serverIDParam(r *http.Request) string {
	if s := r.URL.Query().Get("server_id"); s != "" {
		return s
	}
	return services.LocalServerID
}
