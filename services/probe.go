// services/probe.go - HTTP/HTTPS reachability probing with fallback cascade
package services

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portscope/common"
)

const (
	probeUserAgent   = "portscope-probe/1.0"
	spaBodyReadLimit = 512 * 1024 // plenty for an index.html shell
)

// ProbeResult is the outcome of probing one scheme against one port.
type ProbeResult struct {
	Reachable      bool   `json:"reachable"`
	StatusCode     int    `json:"status_code,omitempty"`
	Protocol       string `json:"protocol"` // "http" or "https"
	Method         string `json:"method,omitempty"`
	ResponseTimeMS int64  `json:"response_time_ms"`
	IsSPA          bool   `json:"is_spa,omitempty"`
	// InsecureTLS marks that reachability was only established via the
	// certificate-verification-disabled fallback, so callers can audit it.
	InsecureTLS bool   `json:"insecure_tls,omitempty"`
	Error       string `json:"error,omitempty"`
}

// Prober issues liveness probes against discovered ports. Many self-hosted
// services reject HEAD, sit behind self-signed certificates, or answer SPA
// router 404s that are actually a working app, so a plain request is a poor
// liveness signal. The cascade is HEAD, then GET without redirect following,
// then (https only) a GET with certificate verification disabled. Each stage
// is bounded by its own timeout; a stage timing out never hangs the caller
// and never aborts the stages after it.
type Prober struct {
	StageTimeout time.Duration
	Path         string
}

// NewProber returns a prober with the default 2s per-stage timeout.
func NewProber() *Prober {
	return &Prober{StageTimeout: envDur("PORTSCOPE_PROBE_TIMEOUT", 2*time.Second), Path: "/"}
}

func envDur(key string, def time.Duration) time.Duration {
	if d, err := time.ParseDuration(common.Env(key, "")); err == nil && d > 0 {
		return d
	}
	return def
}

// Probe checks whether scheme://host:port answers like a live HTTP service.
// It never returns an error: every failure mode folds into a ProbeResult
// with Reachable=false.
func (p *Prober) Probe(ctx context.Context, scheme, host string, port int) ProbeResult {
	start := time.Now()
	res := ProbeResult{Protocol: scheme}

	target := scheme + "://" + net.JoinHostPort(host, strconv.Itoa(port)) + p.Path

	// Stage 1: HEAD. Cheap, but some servers 404 or 405 it even when alive,
	// so only a clean-ish answer short-circuits here.
	status, err := p.request(ctx, http.MethodHead, target, false, nil)
	if err == nil && status < 500 && status != http.StatusNotFound {
		res.Reachable = true
		res.StatusCode = status
		res.Method = http.MethodHead
		res.ResponseTimeMS = time.Since(start).Milliseconds()
		return res
	}

	// Stage 2: GET, redirects not followed (a 3xx is itself proof of life).
	var spa bool
	status, err = p.request(ctx, http.MethodGet, target, false, &spa)
	if err == nil && status < 500 {
		res.Reachable = true
		res.StatusCode = status
		res.Method = http.MethodGet
		res.IsSPA = spa
		res.ResponseTimeMS = time.Since(start).Milliseconds()
		return res
	}
	if err == nil {
		// The server answered with a 5xx; report it rather than retrying.
		res.StatusCode = status
		res.Method = http.MethodGet
		res.Error = "server error " + strconv.Itoa(status)
		res.ResponseTimeMS = time.Since(start).Milliseconds()
		return res
	}

	// Stage 3: transport-level failure on https is very often a self-signed
	// certificate. Retry once with verification disabled.
	if scheme == "https" {
		status, ierr := p.request(ctx, http.MethodGet, target, true, &spa)
		if ierr == nil && status < 500 {
			res.Reachable = true
			res.StatusCode = status
			res.Method = http.MethodGet
			res.IsSPA = spa
			res.InsecureTLS = true
			res.ResponseTimeMS = time.Since(start).Milliseconds()
			return res
		}
	}

	res.Error = err.Error()
	res.ResponseTimeMS = time.Since(start).Milliseconds()
	return res
}

// request performs one probe stage under its own timeout. When spa is
// non-nil and the response is a 404, the body is sniffed for single-page-app
// signatures; that is the only path that reads the body.
func (p *Prober) request(ctx context.Context, method, target string, insecure bool, spa *bool) (int, error) {
	sctx, cancel := context.WithTimeout(ctx, p.StageTimeout)
	defer cancel()

	transport := &http.Transport{DisableKeepAlives: true}
	if insecure {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}
	client := &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	defer client.CloseIdleConnections()

	req, err := http.NewRequestWithContext(sctx, method, target, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", probeUserAgent)

	resp, err := client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if spa != nil && resp.StatusCode == http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, spaBodyReadLimit))
		*spa = looksLikeSPA(resp.Header.Get("Content-Type"), body)
	}
	return resp.StatusCode, nil
}

// looksLikeSPA decides whether a 404 HTML page is really a client-side
// routed app shell rather than a genuine not-found.
func looksLikeSPA(contentType string, body []byte) bool {
	if len(body) <= 100 {
		return false
	}
	if !strings.Contains(strings.ToLower(contentType), "text/html") {
		return false
	}
	lower := strings.ToLower(string(body))
	if !strings.Contains(lower, "<!doctype") && !strings.Contains(lower, "<html") {
		return false
	}
	if !strings.Contains(lower, "<script") {
		return false
	}
	hasMountPoint := strings.Contains(lower, `id="root"`) || strings.Contains(lower, `id='root'`) ||
		strings.Contains(lower, `id="app"`) || strings.Contains(lower, `id='app'`)
	return hasMountPoint || strings.Contains(lower, "<meta")
}
