package editor

import (
	"encoding/json"
	"net/http"

	"github.com/scribehq/scribe/internal/config"
	"github.com/scribehq/scribe/internal/model"
	"github.com/scribehq/scribe/internal/sse"
)

// Handler exposes the editing-session API: the seams through which the
// browser-side editing surface feeds live state into the autosave engine and
// learns about drafts, status and recovery prompts.
type Handler struct {
	manager *Manager
	clients *sse.Clients
}

func NewHandler(manager *Manager, clients *sse.Clients) *Handler {
	return &Handler{
		manager: manager,
		clients: clients,
	}
}

type openSessionRequest struct {
	// Slug of the post being edited; empty means a brand-new post.
	Slug string `json:"slug"`
}

type sessionResponse struct {
	SessionID string        `json:"session_id"`
	Context   Context       `json:"context"`
	State     State         `json:"state"`
	Recovery  RecoveryState `json:"recovery"`
	Restored  bool          `json:"restored"`

	// The draft offered by a pending recovery prompt.
	PendingSnapshot *Snapshot `json:"pending_snapshot,omitempty"`
}

func (h *Handler) sessionResponse(session *Session) sessionResponse {
	resp := sessionResponse{
		SessionID: session.ID,
		Context:   session.Context,
		State:     session.Scheduler.State(),
		Recovery:  session.RecoveryState(),
		Restored:  session.Restored(),
	}
	if snap, ok := session.PendingSnapshot(); ok {
		resp.PendingSnapshot = &snap
	}
	return resp
}

// HandleOpenSession mounts an editing session and starts its autosave timers.
func (h *Handler) HandleOpenSession(w http.ResponseWriter, r *http.Request) {
	var req openSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	ctx := ContextForNewPost()
	if req.Slug != "" {
		ctx = ContextForPost(model.Slug(req.Slug))
	}

	session := h.manager.Open(ctx, func(state State) {
		payload, err := json.Marshal(state)
		if err != nil {
			return
		}
		h.clients.Broadcast(ctx.Key(), string(payload))
	}, nil)

	writeJSON(w, http.StatusCreated, h.sessionResponse(session))
}

// HandleReportState receives the editing surface's current logical state.
func (h *Handler) HandleReportState(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var fields Fields
	if err := json.NewDecoder(r.Body).Decode(&fields); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	session.ReportFields(fields)
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetSession reports scheduler and recovery state.
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, h.sessionResponse(session))
}

// HandleSaveDraft runs a manual save-if-dirty pass, e.g. before navigation.
func (h *Handler) HandleSaveDraft(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	session.Scheduler.SaveDraft()
	writeJSON(w, http.StatusOK, h.sessionResponse(session))
}

// HandleRemoteLoaded marks the remote document as fully loaded, releasing the
// recovery gate for edit contexts. The response tells the surface whether a
// restored draft must win over the freshly loaded remote content.
func (h *Handler) HandleRemoteLoaded(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	restored := session.SignalRemoteLoaded()
	writeJSON(w, http.StatusOK, struct {
		Restored bool          `json:"restored"`
		Recovery RecoveryState `json:"recovery"`
	}{
		Restored: restored,
		Recovery: session.RecoveryState(),
	})
}

type resolveRecoveryRequest struct {
	Action string `json:"action"` // "restore" or "discard"
}

// HandleResolveRecovery settles a pending restore-or-discard prompt. On
// restore the response carries the recovered fields for the surface to apply.
func (h *Handler) HandleResolveRecovery(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}

	var req resolveRecoveryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Action != "restore" && req.Action != "discard" {
		http.Error(w, "action must be restore or discard", http.StatusBadRequest)
		return
	}

	if err := session.ResolveRecovery(req.Action == "restore"); err != nil {
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}

	resp := struct {
		sessionResponse
		Fields *Fields `json:"fields,omitempty"`
	}{sessionResponse: h.sessionResponse(session)}

	if req.Action == "restore" {
		if fields, ok := session.CurrentFields(); ok {
			resp.Fields = &fields
		}
	}

	writeJSON(w, http.StatusOK, resp)
}

// HandleCloseSession tears the session down; its timers never fire again.
func (h *Handler) HandleCloseSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.manager.Close(id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) session(w http.ResponseWriter, r *http.Request) (*Session, bool) {
	session, ok := h.manager.Get(r.PathValue("id"))
	if !ok {
		http.Error(w, "session not found", http.StatusNotFound)
		return nil, false
	}
	return session, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set(config.HCType, config.CTypeJSON)
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		editorLogger.Error().Err(err).Msg("Error encoding response")
	}
}
