// handlers/ports.go - port listing and reachability ping endpoints
package handlers

import (
	"net/http"
	"strings"
	"time"

	"portscope/common"
	"portscope/database"
	"portscope/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// portsResponse is the cached shape of GET /api/ports.
type portsResponse struct {
	ServerID    string                     `json:"server_id"`
	Ports       []*services.AggregatedPort `json:"ports"`
	Apps        []services.AppInfo         `json:"apps"`
	VMs         []services.VMInfo          `json:"vms"`
	Platform    string                     `json:"platform"`
	GeneratedAt time.Time                  `json:"generated_at"`
}

// SetupPortRoutes configures the port discovery and ping endpoints
func SetupPortRoutes(router chi.Router, deps *Deps) {
	router.Get("/ports", func(w http.ResponseWriter, r *http.Request) {
		handlePortsList(w, r, deps)
	})
	router.Get("/ping", func(w http.ResponseWriter, r *http.Request) {
		handlePing(w, r, deps)
	})
}

// handlePortsList runs the collectors and aggregates their output, with a
// short TTL cache in front so UI polls don't re-scan every time.
func handlePortsList(w http.ResponseWriter, r *http.Request, deps *Deps) {
	serverID := serverIDParam(r)
	if !services.KnownServer(serverID) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":   "validation failed",
			"details": "unknown server_id " + serverID,
			"field":   "server_id",
		})
		return
	}
	if !services.IsLocalServer(serverID) {
		// Peer proxying is handled by the front proxy, not here.
		writeJSON(w, http.StatusBadGateway, map[string]any{
			"error":   "peer unavailable",
			"details": "server " + serverID + " is not local to this instance",
		})
		return
	}

	cacheKey := common.PortsCacheKey(serverID)
	if cached, ok := deps.Cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	scanID := uuid.NewString()
	started := time.Now()
	snap, err := deps.Collector.Collect(r.Context())
	if err != nil {
		database.ScanLog(r.Context(), serverID, "error", "collection failed",
			map[string]any{"scan_id": scanID, "error": err.Error()})
		writeError(w, err)
		return
	}

	resp := portsResponse{
		ServerID:    serverID,
		Ports:       services.Aggregate(snap.Ports),
		Apps:        snap.Apps,
		VMs:         snap.VMs,
		Platform:    snap.Platform,
		GeneratedAt: time.Now().UTC(),
	}
	database.ScanLog(r.Context(), serverID, "info", "collection complete", map[string]any{
		"scan_id":  scanID,
		"raw":      len(snap.Ports),
		"merged":   len(resp.Ports),
		"duration": time.Since(started).String(),
	})

	deps.Cache.Set(cacheKey, resp, deps.CacheTTL)
	writeJSON(w, http.StatusOK, resp)
}

// handlePing classifies one port and probes its reachability. Internal
// container ports cannot be reached from the host network, so those
// short-circuit to the container's state/health instead.
func handlePing(w http.ResponseWriter, r *http.Request, deps *Deps) {
	q := r.URL.Query()
	hostIP := strings.TrimSpace(q.Get("host_ip"))
	port := parseIntDefault(q.Get("host_port"), 0)
	owner := q.Get("owner")
	internal := q.Get("internal") == "true" || q.Get("internal") == "1"
	containerID := strings.TrimSpace(q.Get("container_id"))

	if hostIP == "" {
		writeError(w, &common.ValidationError{Field: "host_ip", Msg: "host_ip is required"})
		return
	}
	if port < 1 || port > 65535 {
		writeError(w, &common.ValidationError{Field: "host_port", Msg: "host_port must be 1-65535"})
		return
	}

	desc := services.Classify(port, owner)

	if internal && containerID != "" {
		handleContainerPing(w, r, desc, containerID)
		return
	}

	var httpsRes, httpRes services.ProbeResult
	if desc.Type != services.ServiceTypeSystem {
		// System ports are never probed; the resolver ignores probe input
		// for them anyway.
		httpsRes = deps.Prober.Probe(r.Context(), "https", hostIP, port)
		httpRes = deps.Prober.Probe(r.Context(), "http", hostIP, port)
	}
	status := services.ResolveStatus(desc, httpsRes, httpRes)

	writeJSON(w, http.StatusOK, map[string]any{
		"service": desc,
		"status":  status,
		"https":   httpsRes,
		"http":    httpRes,
	})
}

func handleContainerPing(w http.ResponseWriter, r *http.Request, desc services.ServiceDescriptor, containerID string) {
	state, health, err := services.ContainerHealth(r.Context(), containerID)
	if err != nil {
		writeError(w, err)
		return
	}

	var status services.StatusResult
	switch {
	case state == "running" && (health == "" || health == "healthy"):
		status = services.StatusResult{
			Status: services.StatusAccessible, Color: services.ColorGreen,
			Title: "Running", Description: "Container is running",
		}
	case state == "running" && health == "starting":
		status = services.StatusResult{
			Status: services.StatusListening, Color: services.ColorYellow,
			Title: "Starting", Description: "Container health check is starting",
		}
	case state == "running":
		status = services.StatusResult{
			Status: services.StatusError, Color: services.ColorRed,
			Title: "Unhealthy", Description: "Container health check is failing",
		}
	default:
		status = services.StatusResult{
			Status: services.StatusUnreachable, Color: services.ColorRed,
			Title: "Not Running", Description: "Container is " + state,
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"service": desc,
		"status":  status,
		"container": map[string]string{
			"id":     containerID,
			"state":  state,
			"health": health,
		},
	})
}
