package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/ferrite-ai/ferrite/internal/engine"
	"github.com/ferrite-ai/ferrite/internal/turn"
)

func postSeal(t *testing.T, ts *testServer, id string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/sessions/"+id+"/seal", nil)
	ts.srv.Handler().ServeHTTP(w, r)
	return w
}

func TestSealIdleSession(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	w := postSeal(t, ts, uuid.NewString())
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res sealResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Preserved {
		t.Fatal("sealing an idle session must not report preserved")
	}
	if res.Reason != "session_not_found" {
		t.Fatalf("reason = %q, want session_not_found", res.Reason)
	}
}

func TestSealStreamingSession(t *testing.T) {
	gate := make(chan struct{})
	eng := &fakeEngine{}
	eng.runFn = func(ctx context.Context, _, _ string, emit func(engine.Event)) error {
		emit(engine.TextFragment{Text: "Hello "})
		select {
		case <-gate:
		case <-ctx.Done():
		}
		emit(engine.TurnComplete{})
		return nil
	}
	ts := newTestServer(t, eng)
	sid := uuid.NewString()

	stream, err := ts.registry.StartTurn(context.Background(), sid, "question")
	if err != nil {
		t.Fatalf("StartTurn: %v", err)
	}
	// Consume the first chunk so the partial buffer is populated.
	if _, ok := stream.Next(context.Background()); !ok {
		t.Fatal("expected a first event")
	}

	// Release the engine once the seal is underway so its bounded wait
	// succeeds quickly.
	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for time.Now().Before(deadline) {
			if ts.registry.State(sid) == turn.StateSealing {
				close(gate)
				return
			}
			time.Sleep(5 * time.Millisecond)
		}
	}()

	w := postSeal(t, ts, sid)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res sealResponse
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res.Preserved {
		t.Fatalf("seal not preserved: %+v", res)
	}

	eng.mu.Lock()
	defer eng.mu.Unlock()
	if len(eng.reconciled) != 1 {
		t.Fatalf("reconciles = %d, want 1", len(eng.reconciled))
	}
	if eng.reconciled[0] != "Hello "+turn.InterruptionMarker {
		t.Fatalf("reconciled text = %q", eng.reconciled[0])
	}
}

func TestSealInvalidID(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	w := postSeal(t, ts, "not-a-uuid")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})
	sid := uuid.NewString()

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/"+sid, nil)
	ts.srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var res map[string]bool
	if err := json.Unmarshal(w.Body.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !res["deleted"] {
		t.Fatal("deleted = false, want true")
	}

	ts.eng.mu.Lock()
	defer ts.eng.mu.Unlock()
	if len(ts.eng.deleted) != 1 || ts.eng.deleted[0] != sid {
		t.Fatalf("engine deletes = %v, want [%s]", ts.eng.deleted, sid)
	}
}

func TestDeleteSession_InvalidID(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodDelete, "/api/v1/sessions/zzz", nil)
	ts.srv.Handler().ServeHTTP(w, r)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}
