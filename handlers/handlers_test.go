package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"portscope/common"
	"portscope/services"
)

// fakeCollector returns a fixed snapshot and counts invocations so tests
// can observe cache hits.
type fakeCollector struct {
	snap  *services.Snapshot
	err   error
	calls int
}

func (f *fakeCollector) Ports(ctx context.Context) ([]common.PortObservation, error) {
	snap, err := f.Collect(ctx)
	if err != nil {
		return nil, err
	}
	return snap.Ports, nil
}

func (f *fakeCollector) Collect(ctx context.Context) (*services.Snapshot, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.snap, nil
}

func testDeps(t *testing.T, col services.Collector) *Deps {
	t.Helper()
	t.Setenv("PORTSCOPE_SERVERS_FILE", "")
	require.NoError(t, services.InitServers())
	return &Deps{
		Cache:     common.NewTTLCache(),
		Collector: col,
		Prober:    &services.Prober{StageTimeout: time.Second, Path: "/"},
		CacheTTL:  time.Minute,
	}
}

func testRouter(deps *Deps) chi.Router {
	r := chi.NewRouter()
	SetupAllRoutes(r, deps)
	return r
}

func doJSON(t *testing.T, router chi.Router, method, target, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]any
	if rec.Body.Len() > 0 && strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &parsed))
	}
	return rec, parsed
}

func TestPortsList_UnknownServer(t *testing.T) {
	deps := testDeps(t, &fakeCollector{snap: &services.Snapshot{}})
	rec, body := doJSON(t, testRouter(deps), http.MethodGet, "/ports?server_id=nosuch", "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, "server_id", body["field"])
}

func TestPortsList_CollectAndCache(t *testing.T) {
	col := &fakeCollector{snap: &services.Snapshot{
		Platform: "host",
		Ports: []common.PortObservation{
			{HostIP: "0.0.0.0", HostPort: 80, Protocol: "tcp", Owner: "nginx"},
			{HostIP: "0.0.0.0", HostPort: 80, Protocol: "tcp", Owner: "caddy"},
		},
	}}
	deps := testDeps(t, col)
	router := testRouter(deps)

	rec, body := doJSON(t, router, http.MethodGet, "/ports", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, services.LocalServerID, body["server_id"])

	ports, ok := body["ports"].([]any)
	require.True(t, ok)
	require.Len(t, ports, 1)
	first := ports[0].(map[string]any)
	assert.Equal(t, "nginx, caddy", first["owner"])

	// second poll inside the TTL is served from cache
	rec, _ = doJSON(t, router, http.MethodGet, "/ports", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, col.calls)
}

func TestPortsList_CollectorFailure(t *testing.T) {
	col := &fakeCollector{err: context.DeadlineExceeded}
	deps := testDeps(t, col)

	rec, body := doJSON(t, testRouter(deps), http.MethodGet, "/ports", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "operation failed", body["error"])
}

func TestPing_ParamValidation(t *testing.T) {
	deps := testDeps(t, &fakeCollector{snap: &services.Snapshot{}})
	router := testRouter(deps)

	rec, body := doJSON(t, router, http.MethodGet, "/ping?host_port=80", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "host_ip", body["field"])

	rec, body = doJSON(t, router, http.MethodGet, "/ping?host_ip=10.0.0.1&host_port=0", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "host_port", body["field"])

	rec, body = doJSON(t, router, http.MethodGet, "/ping?host_ip=10.0.0.1&host_port=99999", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "host_port", body["field"])
}

func TestPing_SystemPortSkipsProbe(t *testing.T) {
	deps := testDeps(t, &fakeCollector{snap: &services.Snapshot{}})
	// an unroutable address would hang a real probe; system ports never probe
	deps.Prober = &services.Prober{StageTimeout: 50 * time.Millisecond, Path: "/"}

	start := time.Now()
	rec, body := doJSON(t, testRouter(deps), http.MethodGet, "/ping?host_ip=203.0.113.1&host_port=22", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Less(t, time.Since(start), time.Second)

	status := body["status"].(map[string]any)
	assert.Equal(t, services.StatusSystem, status["status"])
	assert.Equal(t, services.ColorGray, status["color"])

	svc := body["service"].(map[string]any)
	assert.Equal(t, services.ServiceTypeSystem, svc["type"])
}

func TestPing_LiveHTTPService(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer ts.Close()

	u := strings.TrimPrefix(ts.URL, "http://")
	host, portStr, found := strings.Cut(u, ":")
	require.True(t, found)

	deps := testDeps(t, &fakeCollector{snap: &services.Snapshot{}})
	deps.Prober = &services.Prober{StageTimeout: 2 * time.Second, Path: "/"}

	rec, body := doJSON(t, testRouter(deps), http.MethodGet,
		"/ping?host_ip="+host+"&host_port="+portStr+"&owner=nginx", "")
	require.Equal(t, http.StatusOK, rec.Code)

	status := body["status"].(map[string]any)
	assert.Equal(t, services.StatusAccessible, status["status"])
	assert.Equal(t, services.ColorGreen, status["color"])

	httpRes := body["http"].(map[string]any)
	assert.Equal(t, true, httpRes["reachable"])
}

func TestNoteUpsert_ValidationBubblesAs400(t *testing.T) {
	deps := testDeps(t, &fakeCollector{snap: &services.Snapshot{}})
	router := testRouter(deps)

	rec, body := doJSON(t, router, http.MethodPost, "/notes/",
		`{"host_ip":"10.0.0.1","host_port":0,"note":"hello"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "validation failed", body["error"])
	assert.Equal(t, "host_port", body["field"])

	rec, _ = doJSON(t, router, http.MethodPost, "/notes/", `{not json`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestNamesBatch_PerItemFailures(t *testing.T) {
	deps := testDeps(t, &fakeCollector{snap: &services.Snapshot{}})
	router := testRouter(deps)

	rec, body := doJSON(t, router, http.MethodPost, "/custom-service-names/batch", `{
		"server_id": "local",
		"operations": [
			{"host_ip":"10.0.0.1","host_port":0,"action":"set","custom_name":"x"},
			{"host_ip":"10.0.0.1","host_port":80,"action":"frobnicate"}
		]
	}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, body["batch_id"])

	results := body["results"].([]any)
	require.Len(t, results, 2)
	for _, raw := range results {
		item := raw.(map[string]any)
		assert.Equal(t, false, item["ok"])
		assert.NotEmpty(t, item["err"])
	}
}

func TestIgnoreSet_ValidationBubblesAs400(t *testing.T) {
	deps := testDeps(t, &fakeCollector{snap: &services.Snapshot{}})

	rec, body := doJSON(t, testRouter(deps), http.MethodPost, "/ignores/",
		`{"host_ip":"","host_port":80}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "host_ip", body["field"])
}
