// utils/sse.go
package utils

import (
	"net/http"
	"strings"

	"portscope/common"

	"github.com/gorilla/websocket"
)

// WriteSSEHeader sets the necessary headers for Server-Sent Events and returns a flusher
func WriteSSEHeader(w http.ResponseWriter) (http.Flusher, bool) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-store")
	w.Header().Set("Connection", "keep-alive")
	// Disable proxy buffering (nginx)
	w.Header().Set("X-Accel-Buffering", "no")
	fl, ok := w.(http.Flusher)
	return fl, ok
}

// WSUpgrader provides a configured websocket upgrader
var WSUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		// allow same-origin and configured UI origin
		origin := strings.TrimSpace(r.Header.Get("Origin"))
		ui := strings.TrimSpace(common.Env("PORTSCOPE_UI_ORIGIN", ""))
		if origin == "" || origin == ui {
			return true
		}
		// dev helpers
		if strings.HasPrefix(origin, "http://localhost:") || strings.HasPrefix(origin, "http://127.0.0.1:") {
			return true
		}
		return false
	},
}
