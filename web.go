// web.go - router assembly
package main

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"portscope/common"
	"portscope/handlers"
	"portscope/middleware"
)

type Health struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

func makeRouter(deps *handlers.Deps) http.Handler {
	r := chi.NewRouter()

	// CORS – locked down for credentials
	uiOrigin := strings.TrimSpace(common.Env("PORTSCOPE_UI_ORIGIN", ""))
	allowedOrigins := []string{}
	if uiOrigin != "" {
		allowedOrigins = append(allowedOrigins, uiOrigin)
	}
	// dev helpers
	allowedOrigins = append(allowedOrigins,
		"http://localhost:5173",
		"http://127.0.0.1:5173",
	)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins, // no "*"
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type"},
		AllowCredentials: true,
		MaxAge:           600,
	}))

	// -------- API
	r.Route("/api", func(api chi.Router) {
		api.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			common.RespondJSON(w, Health{Status: "ok", StartedAt: startedAt})
		})

		// Session probe MUST remain public
		api.Get("/session", SessionHandler)

		// Everything below requires auth
		api.Group(func(priv chi.Router) {
			priv.Use(middleware.RequireAuth)
			handlers.SetupAllRoutes(priv, deps)
		})
	})

	// Legacy alias
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		common.RespondJSON(w, Health{Status: "ok", StartedAt: startedAt})
	})

	// -------- Auth endpoints (must come BEFORE SPA fallback)
	r.Post("/login", LoginHandler)
	r.Post("/auth/login", LoginHandler) // alias
	r.Post("/logout", LogoutHandler)
	r.Post("/auth/logout", LogoutHandler) // alias

	// -------- Static SPA (Vite)
	uiRoot := common.Env("PORTSCOPE_UI_DIR", "/app/ui/dist")
	fs := http.FileServer(http.Dir(uiRoot))

	// Serve built assets directly
	r.Get("/assets/*", func(w http.ResponseWriter, req *http.Request) {
		fs.ServeHTTP(w, req)
	})

	// SPA fallback (last)
	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		if strings.HasPrefix(req.URL.Path, "/api") || strings.HasPrefix(req.URL.Path, "/auth") {
			http.NotFound(w, req)
			return
		}
		path := filepath.Join(uiRoot, filepath.Clean(strings.TrimPrefix(req.URL.Path, "/")))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			http.ServeFile(w, req, path)
			return
		}
		http.ServeFile(w, req, filepath.Join(uiRoot, "index.html"))
	})

	return r
}

func isTrueish(s string) bool {
	if s == "" {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	}
	return false
}
