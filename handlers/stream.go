// handlers/stream.go - live port snapshot stream over websocket
package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"portscope/common"
	"portscope/database"
	"portscope/services"
	"portscope/utils"

	"github.com/gorilla/websocket"
)

// handlePortsStream pushes a fresh aggregated snapshot to the client on an
// interval until the client goes away. Collection still flows through the
// shared TTL cache, so several stream clients don't multiply scans.
func handlePortsStream(w http.ResponseWriter, r *http.Request, deps *Deps) {
	conn, err := utils.WSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		common.DebugLog("stream: websocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	interval := deps.CacheTTL
	if interval < time.Second {
		interval = time.Second
	}

	// read pump: we ignore client messages but need reads to notice close
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	cacheKey := common.PortsCacheKey(services.LocalServerID)
	send := func() bool {
		if cached, ok := deps.Cache.Get(cacheKey); ok {
			return conn.WriteJSON(cached) == nil
		}
		snap, err := deps.Collector.Collect(r.Context())
		if err != nil {
			_ = conn.WriteJSON(map[string]any{"error": err.Error()})
			return true
		}
		payload := portsResponse{
			ServerID:    services.LocalServerID,
			Ports:       services.Aggregate(snap.Ports),
			Apps:        snap.Apps,
			VMs:         snap.VMs,
			Platform:    snap.Platform,
			GeneratedAt: time.Now().UTC(),
		}
		deps.Cache.Set(cacheKey, payload, deps.CacheTTL)
		if err := conn.WriteJSON(payload); err != nil {
			return false
		}
		return true
	}

	if !send() {
		return
	}

	tick := time.NewTicker(interval)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if !send() {
				return
			}
		case <-done:
			return
		case <-r.Context().Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, ""), time.Now().Add(time.Second))
			return
		}
	}
}

// handleScanLogStream tails the scan log as server-sent events. Each poll
// emits only entries newer than the last one sent.
func handleScanLogStream(w http.ResponseWriter, r *http.Request) {
	fl, ok := utils.WriteSSEHeader(w)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	serverID := serverIDParam(r)

	var lastID int64
	emit := func() bool {
		logs, err := database.RecentScanLogs(r.Context(), serverID, 100)
		if err != nil {
			common.DebugLog("stream: scan log poll failed: %v", err)
			return false
		}
		// newest first in logs; emit oldest-to-newest of the unseen tail
		for i := len(logs) - 1; i >= 0; i-- {
			if logs[i].ID <= lastID {
				continue
			}
			b, _ := json.Marshal(logs[i])
			if _, err := fmt.Fprintf(w, "data: %s\n\n", b); err != nil {
				return false
			}
			lastID = logs[i].ID
		}
		fl.Flush()
		return true
	}

	if !emit() {
		return
	}
	tick := time.NewTicker(3 * time.Second)
	defer tick.Stop()
	for {
		select {
		case <-tick.C:
			if !emit() {
				return
			}
		case <-r.Context().Done():
			return
		}
	}
}
