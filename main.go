package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"portscope/common"
	"portscope/database"
	"portscope/handlers"
	"portscope/services"
)

var startedAt = time.Now()

func main() {
	addr := common.Env("PORTSCOPE_BIND", ":8443")

	currentLevel := strings.ToLower(common.Env("PORTSCOPE_LOG_LEVEL", "info"))
	infoLog("portscope starting with log level: %s", currentLevel)
	debugLog("Debug logging is enabled")

	sessionManager, err := InitAuthFromEnv()
	if err != nil {
		fatalLog("auth setup failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := database.InitDBFromEnv(ctx); err != nil {
		fatalLog("DB init failed: %v", err)
	}
	if err := services.InitServers(); err != nil {
		fatalLog("server inventory init failed: %v", err)
	}

	deps := &handlers.Deps{
		Cache:     common.NewTTLCache(),
		Collector: services.DefaultCollector(),
		Prober:    services.NewProber(),
		CacheTTL:  envDur("PORTSCOPE_PORTS_CACHE_TTL", "3s"),
	}

	// kick off background collection so scan logs stay warm
	startScanLoop(ctx, deps)

	r := makeRouter(deps)

	// Wrap router with session middleware
	var handler http.Handler = r
	if sessionManager != nil {
		handler = sessionManager.LoadAndSave(r)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	enableTLS := isTrueish(common.Env("PORTSCOPE_TLS_ENABLE", "true"))
	if !enableTLS {
		infoLog("http: listening on %s (TLS disabled)", addr)
		fatalLog("HTTP server error: %v", srv.ListenAndServe())
		return
	}

	certFile := strings.TrimSpace(common.Env("PORTSCOPE_TLS_CERT_FILE", ""))
	keyFile := strings.TrimSpace(common.Env("PORTSCOPE_TLS_KEY_FILE", ""))

	if certFile != "" && keyFile != "" {
		infoLog("https: listening on %s (cert=%s)", addr, certFile)
		fatalLog("HTTPS server error: %v", srv.ListenAndServeTLS(certFile, keyFile))
		return
	}

	if !isTrueish(common.Env("PORTSCOPE_TLS_SELF_SIGNED", "true")) {
		fatalLog("https: TLS enabled but no cert files and self-signed disabled")
	}

	// Ephemeral self-signed (in-memory)
	certPEM, keyPEM, err := generateSelfSigned("portscope.local")
	if err != nil {
		fatalLog("Failed to generate self-signed certificate: %v", err)
	}
	tlsCert, err := tls.X509KeyPair(certPEM, keyPEM)
	if err != nil {
		fatalLog("Failed to load certificate key pair: %v", err)
	}
	srv.TLSConfig = &tls.Config{
		Certificates: []tls.Certificate{tlsCert},
		MinVersion:   tls.VersionTLS12,
	}
	infoLog("https: listening on %s (self-signed)", addr)
	fatalLog("HTTPS server error: %v", srv.ListenAndServeTLS("", ""))
}

/* -------- env helpers -------- */

func envDur(key, def string) time.Duration {
	if d, err := time.ParseDuration(common.Env(key, def)); err == nil {
		return d
	}
	out, _ := time.ParseDuration(def)
	return out
}

func envInt(key string, def int) int {
	if s := common.Env(key, ""); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// Use common logging functions (aliases for backward compatibility)
var (
	debugLog = common.DebugLog
	infoLog  = common.InfoLog
	warnLog  = common.WarnLog
	errorLog = common.ErrorLog
	fatalLog = common.FatalLog
)

/* -------- background scan loop -------- */

// startScanLoop runs a periodic collection pass so the scan log reflects
// current state even when no client is polling. Request-driven collection
// stays behind the TTL cache; this loop's cadence is independent.
func startScanLoop(ctx context.Context, deps *handlers.Deps) {
	if !common.EnvBool("PORTSCOPE_SCAN_AUTO", "true") {
		infoLog("scan: auto disabled (PORTSCOPE_SCAN_AUTO=false)")
		return
	}
	interval := envDur("PORTSCOPE_SCAN_INTERVAL", "30s")
	timeout := envDur("PORTSCOPE_SCAN_TIMEOUT", "20s")
	infoLog("scan: auto enabled interval=%s timeout=%s", interval, timeout)

	scanOnce := func() {
		sctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		snap, err := deps.Collector.Collect(sctx)
		if err != nil {
			errorLog("scan: collection failed: %v", err)
			database.ScanLog(sctx, services.LocalServerID, "error", "background collection failed",
				map[string]any{"error": err.Error()})
			return
		}
		merged := services.Aggregate(snap.Ports)
		debugLog("scan: complete raw=%d merged=%d apps=%d", len(snap.Ports), len(merged), len(snap.Apps))
		database.ScanLog(sctx, services.LocalServerID, "info", "background collection complete",
			map[string]any{"raw": len(snap.Ports), "merged": len(merged), "apps": len(snap.Apps)})
	}

	// boot scan
	if common.EnvBool("PORTSCOPE_SCAN_ON_START", "true") {
		go scanOnce()
	}

	t := time.NewTicker(interval)
	go func() {
		defer t.Stop()
		for {
			select {
			case <-t.C:
				scanOnce()
			case <-ctx.Done():
				infoLog("scan: auto scanner stopping: %v", ctx.Err())
				return
			}
		}
	}()
}

/* -------- TLS self-signed helper -------- */

func generateSelfSigned(cn string) ([]byte, []byte, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, nil, err
	}

	serial, _ := rand.Int(rand.Reader, big.NewInt(1<<62))
	tpl := x509.Certificate{
		SerialNumber: serial,
		Subject:      pkix.Name{CommonName: cn},
		NotBefore:    time.Now().Add(-1 * time.Hour),
		NotAfter:     time.Now().Add(365 * 24 * time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{cn, "localhost"},
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
	}

	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &key.PublicKey, key)
	if err != nil {
		return nil, nil, err
	}
	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(key)})
	return certPEM, keyPEM, nil
}
