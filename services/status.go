// services/status.go - probe result + descriptor -> final port status
package services

import "net/http"

// Final port statuses.
const (
	StatusSystem      = "system"
	StatusAccessible  = "accessible"
	StatusListening   = "listening"
	StatusUnreachable = "unreachable"
	StatusError       = "error"
)

// Status colors used by the UI.
const (
	ColorGray   = "gray"
	ColorGreen  = "green"
	ColorYellow = "yellow"
	ColorRed    = "red"
)

// StatusResult is the resolved state of one port.
type StatusResult struct {
	Status      string `json:"status"`
	Color       string `json:"color"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Protocol    string `json:"protocol,omitempty"`
}

// ResolveStatus combines the classifier descriptor with the HTTPS and HTTP
// probe results into a single status. Pure decision table, no I/O.
func ResolveStatus(desc ServiceDescriptor, httpsRes, httpRes ProbeResult) StatusResult {
	// System services are never probed over HTTP; their state is not ours
	// to judge.
	if desc.Type == ServiceTypeSystem {
		return StatusResult{
			Status:      StatusSystem,
			Color:       ColorGray,
			Title:       "System Service",
			Description: desc.Description,
		}
	}

	working, ok := pickWorkingResponse(httpsRes, httpRes)
	if !ok {
		return StatusResult{
			Status:      StatusUnreachable,
			Color:       ColorRed,
			Title:       "Unreachable",
			Description: "No response on HTTP or HTTPS",
		}
	}

	switch desc.Type {
	case ServiceTypeWeb:
		return resolveWeb(working)
	default: // database, service
		return resolveNonWeb(working)
	}
}

// pickWorkingResponse chooses which probe result drives the final status:
// an HTTPS 2xx beats an HTTP 2xx beats any reachable HTTPS beats any
// reachable HTTP.
func pickWorkingResponse(httpsRes, httpRes ProbeResult) (ProbeResult, bool) {
	if httpsRes.Reachable && is2xx(httpsRes.StatusCode) {
		return httpsRes, true
	}
	if httpRes.Reachable && is2xx(httpRes.StatusCode) {
		return httpRes, true
	}
	if httpsRes.Reachable {
		return httpsRes, true
	}
	if httpRes.Reachable {
		return httpRes, true
	}
	return ProbeResult{}, false
}

func is2xx(code int) bool { return code >= 200 && code < 300 }

func resolveWeb(r ProbeResult) StatusResult {
	code := r.StatusCode
	switch {
	case is2xx(code), code >= 300 && code < 400:
		return accessible(r, "Web service is responding")
	case code == http.StatusUnauthorized:
		// Auth-gated still counts as a working service.
		return accessible(r, "Web service is up (authentication required)")
	case code == http.StatusForbidden:
		return listening(r, "Web service answered but access is forbidden")
	case code == http.StatusMethodNotAllowed && r.Method == http.MethodHead:
		// Rejected HEAD but clearly alive.
		return accessible(r, "Web service is up (HEAD not allowed)")
	case code == http.StatusNotFound:
		if r.IsSPA {
			return accessible(r, "Single-page app detected")
		}
		return listening(r, "Port is open but serves no web UI")
	case code >= 400 && code < 500:
		return accessible(r, "Web service is responding")
	case code >= 500:
		return StatusResult{
			Status:      StatusError,
			Color:       ColorRed,
			Title:       "Server Error",
			Description: "Web service is returning server errors",
			Protocol:    r.Protocol,
		}
	}
	return listening(r, "Port is open")
}

func resolveNonWeb(r ProbeResult) StatusResult {
	code := r.StatusCode
	switch {
	case code == http.StatusUnauthorized:
		return accessible(r, "Service is up (authentication required)")
	case code == http.StatusForbidden:
		return listening(r, "Service answered but access is forbidden")
	case code < 500:
		return accessible(r, "Service is responding")
	default:
		// Many database ports answer an HTTP probe with garbage that
		// surfaces as a 5xx-ish failure; the port itself is alive.
		return listening(r, "Port is open but does not speak HTTP")
	}
}

func accessible(r ProbeResult, desc string) StatusResult {
	return StatusResult{
		Status:      StatusAccessible,
		Color:       ColorGreen,
		Title:       "Accessible",
		Description: desc,
		Protocol:    r.Protocol,
	}
}

func listening(r ProbeResult, desc string) StatusResult {
	return StatusResult{
		Status:      StatusListening,
		Color:       ColorYellow,
		Title:       "Listening",
		Description: desc,
		Protocol:    r.Protocol,
	}
}
