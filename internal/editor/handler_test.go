package editor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/scribehq/scribe/internal/sse"
)

func newTestHandler(store Store) (*Handler, *Manager) {
	if store == nil {
		store = NewMemoryStore()
	}
	manager := NewManager(store, SchedulerConfig{
		DirtyCheckInterval: time.Hour,
		PersistInterval:    time.Hour,
	})
	return NewHandler(manager, sse.NewClients()), manager
}

func newTestMux(h *Handler) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/editor/sessions", h.HandleOpenSession)
	mux.HandleFunc("GET /api/editor/sessions/{id}", h.HandleGetSession)
	mux.HandleFunc("DELETE /api/editor/sessions/{id}", h.HandleCloseSession)
	mux.HandleFunc("PUT /api/editor/sessions/{id}/state", h.HandleReportState)
	mux.HandleFunc("POST /api/editor/sessions/{id}/save", h.HandleSaveDraft)
	mux.HandleFunc("POST /api/editor/sessions/{id}/remote-loaded", h.HandleRemoteLoaded)
	mux.HandleFunc("POST /api/editor/sessions/{id}/recovery", h.HandleResolveRecovery)
	return mux
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHandleOpenSession(t *testing.T) {
	h, manager := newTestHandler(nil)
	mux := newTestMux(h)

	rec := doJSON(t, mux, "POST", "/api/editor/sessions", `{"slug":""}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("Expected 201, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		SessionID string        `json:"session_id"`
		Context   string        `json:"context"`
		Recovery  RecoveryState `json:"recovery"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("Error decoding response: %v", err)
	}

	if resp.Context != "new" {
		t.Errorf("Expected new-post context, got %q", resp.Context)
	}
	if resp.Recovery != RecoveryResolved {
		t.Errorf("Expected resolved recovery with an empty store, got %s", resp.Recovery)
	}
	if _, ok := manager.Get(resp.SessionID); !ok {
		t.Error("Expected the session registered under the returned id")
	}
	defer manager.Close(resp.SessionID)

	t.Run("Slug selects the post context", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", "/api/editor/sessions", `{"slug":"my-post"}`)
		if rec.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", rec.Code)
		}
		var resp struct {
			SessionID string `json:"session_id"`
			Context   string `json:"context"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Context != "post:my-post" {
			t.Errorf("Expected post context, got %q", resp.Context)
		}
		manager.Close(resp.SessionID)
	})
}

func TestHandleReportStateAndSave(t *testing.T) {
	h, manager := newTestHandler(nil)
	mux := newTestMux(h)

	session := manager.Open(ContextForNewPost(), nil, nil)
	defer manager.Close(session.ID)

	base := "/api/editor/sessions/" + session.ID

	rec := doJSON(t, mux, "PUT", base+"/state", `{"title":"Hi","content":"v1"}`)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	// Establish the baseline, then change the content so the save has work.
	session.Scheduler.RunDirtyCheck()
	doJSON(t, mux, "PUT", base+"/state", `{"title":"Hi","content":"v2"}`)

	rec = doJSON(t, mux, "POST", base+"/save", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var resp struct {
		State State `json:"state"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.State.Status != StatusSaved || !resp.State.HasDraft {
		t.Errorf("Expected a saved draft in the response, got %+v", resp.State)
	}

	snap, ok := manager.Store().Load(ContextForNewPost())
	if !ok || snap.Content != "v2" {
		t.Errorf("Expected the latest content persisted, got %+v ok=%v", snap.Fields, ok)
	}
}

func TestHandleResolveRecovery(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Save(ContextForNewPost(), Fields{Title: "Recovered", Content: "body"}); err != nil {
		t.Fatal(err)
	}

	h, manager := newTestHandler(store)
	mux := newTestMux(h)

	session := manager.Open(ContextForNewPost(), nil, nil)
	defer manager.Close(session.ID)
	base := "/api/editor/sessions/" + session.ID

	t.Run("Pending snapshot is exposed", func(t *testing.T) {
		rec := doJSON(t, mux, "GET", base, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rec.Code)
		}
		var resp struct {
			Recovery        RecoveryState `json:"recovery"`
			PendingSnapshot *Snapshot     `json:"pending_snapshot"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Recovery != RecoveryPromptPending {
			t.Fatalf("Expected prompt-pending, got %s", resp.Recovery)
		}
		if resp.PendingSnapshot == nil || resp.PendingSnapshot.Title != "Recovered" {
			t.Errorf("Expected the pending snapshot in the response, got %+v", resp.PendingSnapshot)
		}
	})

	t.Run("Invalid action is rejected", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", base+"/recovery", `{"action":"maybe"}`)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rec.Code)
		}
	})

	t.Run("Restore returns the recovered fields", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", base+"/recovery", `{"action":"restore"}`)
		if rec.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var resp struct {
			Recovery RecoveryState `json:"recovery"`
			Fields   *Fields       `json:"fields"`
		}
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatal(err)
		}
		if resp.Recovery != RecoveryResolved {
			t.Errorf("Expected resolved, got %s", resp.Recovery)
		}
		if resp.Fields == nil || resp.Fields.Content != "body" {
			t.Errorf("Expected the restored fields in the response, got %+v", resp.Fields)
		}
	})

	t.Run("Second resolve conflicts", func(t *testing.T) {
		rec := doJSON(t, mux, "POST", base+"/recovery", `{"action":"discard"}`)
		if rec.Code != http.StatusConflict {
			t.Errorf("Expected 409, got %d", rec.Code)
		}
	})
}

func TestHandleRemoteLoaded(t *testing.T) {
	store := NewMemoryStore()
	ctx := ContextForPost("my-post")
	if _, err := store.Save(ctx, Fields{Title: "Draft"}); err != nil {
		t.Fatal(err)
	}

	h, manager := newTestHandler(store)
	mux := newTestMux(h)

	session := manager.Open(ctx, nil, nil)
	defer manager.Close(session.ID)
	base := "/api/editor/sessions/" + session.ID

	rec := doJSON(t, mux, "POST", base+"/remote-loaded", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}
	var resp struct {
		Restored bool          `json:"restored"`
		Recovery RecoveryState `json:"recovery"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Restored {
		t.Error("Expected no restore before the prompt is resolved")
	}
	if resp.Recovery != RecoveryPromptPending {
		t.Errorf("Expected the prompt released by the load signal, got %s", resp.Recovery)
	}
}

func TestHandleCloseSession(t *testing.T) {
	h, manager := newTestHandler(nil)
	mux := newTestMux(h)

	session := manager.Open(ContextForNewPost(), nil, nil)
	base := "/api/editor/sessions/" + session.ID

	rec := doJSON(t, mux, "DELETE", base, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d", rec.Code)
	}

	rec = doJSON(t, mux, "GET", base, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 after close, got %d", rec.Code)
	}

	rec = doJSON(t, mux, "DELETE", base, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404 on double close, got %d", rec.Code)
	}
}

func TestHandleOpenSessionBadBody(t *testing.T) {
	h, _ := newTestHandler(nil)
	mux := newTestMux(h)

	rec := doJSON(t, mux, "POST", "/api/editor/sessions", "{not json")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", rec.Code)
	}
}
