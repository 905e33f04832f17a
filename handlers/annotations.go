// handlers/annotations.go - notes, ignores and custom service names
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"portscope/common"
	"portscope/database"
	"portscope/services"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
)

// identityRequest is the identity portion shared by all annotation bodies.
type identityRequest struct {
	ServerID    string `json:"server_id"`
	HostIP      string `json:"host_ip"`
	HostPort    int    `json:"host_port"`
	Protocol    string `json:"protocol"`
	ContainerID string `json:"container_id"`
	Internal    bool   `json:"internal"`
}

func (ir identityRequest) identity() common.Identity {
	id := common.Identity{
		ServerID:    ir.ServerID,
		HostIP:      ir.HostIP,
		HostPort:    ir.HostPort,
		Protocol:    ir.Protocol,
		ContainerID: ir.ContainerID,
		Internal:    ir.Internal,
	}
	if id.ServerID == "" {
		id.ServerID = services.LocalServerID
	}
	if id.Protocol == "" {
		id.Protocol = common.ProtoTCP
	}
	return id.Normalize()
}

// batchItemResult is the per-operation outcome of a batch call. Failures
// never abort the batch; prior items stay committed.
type batchItemResult struct {
	Index int    `json:"index"`
	Ok    bool   `json:"ok"`
	Err   string `json:"err,omitempty"`
}

// SetupAnnotationRoutes configures note/ignore/custom-name CRUD and batch
// endpoints.
func SetupAnnotationRoutes(router chi.Router, deps *Deps) {
	router.Route("/notes", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { handleNotesList(w, r) })
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { handleNoteUpsert(w, r, deps) })
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) { handleNoteDelete(w, r, deps) })
		r.Post("/batch", func(w http.ResponseWriter, r *http.Request) { handleNotesBatch(w, r, deps) })
	})

	router.Route("/ignores", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { handleIgnoresList(w, r) })
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { handleIgnoreSet(w, r, deps) })
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) { handleIgnoreClear(w, r, deps) })
	})

	router.Route("/custom-service-names", func(r chi.Router) {
		r.Get("/", func(w http.ResponseWriter, r *http.Request) { handleNamesList(w, r) })
		r.Post("/", func(w http.ResponseWriter, r *http.Request) { handleNameUpsert(w, r, deps) })
		r.Delete("/", func(w http.ResponseWriter, r *http.Request) { handleNameDelete(w, r, deps) })
		r.Post("/batch", func(w http.ResponseWriter, r *http.Request) { handleNamesBatch(w, r, deps) })
	})
}

// invalidatePorts drops the cached ports response after a successful
// mutation so the next poll re-joins fresh annotations.
func invalidatePorts(deps *Deps, serverID string) {
	deps.Cache.Delete(common.PortsCacheKey(serverID))
}

/* -------- notes -------- */

func handleNotesList(w http.ResponseWriter, r *http.Request) {
	notes, err := database.ListNotes(r.Context(), serverIDParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"notes": notes})
}

func handleNoteUpsert(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body struct {
		identityRequest
		Note string `json:"note"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	id := body.identity()
	if err := database.UpsertNote(r.Context(), id, body.Note); err != nil {
		writeError(w, err)
		return
	}
	invalidatePorts(deps, id.ServerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "deleted": strings.TrimSpace(body.Note) == ""})
}

func handleNoteDelete(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body identityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	id := body.identity()
	// An empty note write is the delete operation.
	if err := database.UpsertNote(r.Context(), id, ""); err != nil {
		writeError(w, err)
		return
	}
	invalidatePorts(deps, id.ServerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handleNotesBatch(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body struct {
		ServerID   string `json:"server_id"`
		Operations []struct {
			identityRequest
			Action string `json:"action"` // "set" | "delete"
			Note   string `json:"note"`
		} `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	batchID := uuid.NewString()
	results := make([]batchItemResult, 0, len(body.Operations))
	touched := map[string]bool{}

	for i, op := range body.Operations {
		if op.ServerID == "" {
			op.ServerID = body.ServerID
		}
		id := op.identity()

		text := op.Note
		if strings.EqualFold(op.Action, "delete") {
			text = ""
		}
		if err := database.UpsertNote(r.Context(), id, text); err != nil {
			results = append(results, batchItemResult{Index: i, Ok: false, Err: err.Error()})
			continue
		}
		touched[id.ServerID] = true
		results = append(results, batchItemResult{Index: i, Ok: true})
	}

	for serverID := range touched {
		invalidatePorts(deps, serverID)
	}
	common.DebugLog("notes batch %s: %d operations", batchID, len(body.Operations))
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "results": results})
}

/* -------- ignores -------- */

func handleIgnoresList(w http.ResponseWriter, r *http.Request) {
	ignores, err := database.ListIgnores(r.Context(), serverIDParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ignores": ignores})
}

func handleIgnoreSet(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body struct {
		identityRequest
		Ignored *bool `json:"ignored"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	ignored := true
	if body.Ignored != nil {
		ignored = *body.Ignored
	}
	id := body.identity()
	if err := database.SetIgnore(r.Context(), id, ignored); err != nil {
		writeError(w, err)
		return
	}
	invalidatePorts(deps, id.ServerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "ignored": ignored})
}

func handleIgnoreClear(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body identityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	id := body.identity()
	if err := database.SetIgnore(r.Context(), id, false); err != nil {
		writeError(w, err)
		return
	}
	invalidatePorts(deps, id.ServerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

/* -------- custom service names -------- */

func handleNamesList(w http.ResponseWriter, r *http.Request) {
	names, err := database.ListCustomNames(r.Context(), serverIDParam(r))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"custom_names": names})
}

func handleNameUpsert(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body struct {
		identityRequest
		CustomName   string `json:"custom_name"`
		OriginalName string `json:"original_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	id := body.identity()
	if err := database.UpsertCustomName(r.Context(), id, body.CustomName, body.OriginalName); err != nil {
		writeError(w, err)
		return
	}
	invalidatePorts(deps, id.ServerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handleNameDelete(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body identityRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	id := body.identity()
	if err := database.DeleteCustomName(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	invalidatePorts(deps, id.ServerID)
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func handleNamesBatch(w http.ResponseWriter, r *http.Request, deps *Deps) {
	var body struct {
		ServerID   string `json:"server_id"`
		Operations []struct {
			identityRequest
			Action       string `json:"action"` // "set" | "delete"
			CustomName   string `json:"custom_name"`
			OriginalName string `json:"original_name"`
		} `json:"operations"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}

	batchID := uuid.NewString()
	results := make([]batchItemResult, 0, len(body.Operations))
	touched := map[string]bool{}

	for i, op := range body.Operations {
		if op.ServerID == "" {
			op.ServerID = body.ServerID
		}
		id := op.identity()

		var err error
		switch strings.ToLower(op.Action) {
		case "delete":
			err = database.DeleteCustomName(r.Context(), id)
		case "set", "":
			err = database.UpsertCustomName(r.Context(), id, op.CustomName, op.OriginalName)
		default:
			err = &common.ValidationError{Field: "action", Msg: "unsupported action " + op.Action}
		}
		if err != nil {
			results = append(results, batchItemResult{Index: i, Ok: false, Err: err.Error()})
			continue
		}
		touched[id.ServerID] = true
		results = append(results, batchItemResult{Index: i, Ok: true})
	}

	for serverID := range touched {
		invalidatePorts(deps, serverID)
	}
	common.DebugLog("custom names batch %s: %d operations", batchID, len(body.Operations))
	writeJSON(w, http.StatusOK, map[string]any{"batch_id": batchID, "results": results})
}
