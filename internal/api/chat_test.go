package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/ferrite-ai/ferrite/internal/engine"
)

func postChat(t *testing.T, ts *testServer, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	ts.srv.Handler().ServeHTTP(w, r)
	return w
}

func getStream(t *testing.T, ts *testServer, message, sessionID string) *httptest.ResponseRecorder {
	t.Helper()
	q := url.Values{}
	q.Set("message", message)
	if sessionID != "" {
		q.Set("session_id", sessionID)
	}
	w := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/v1/chat/stream?"+q.Encode(), nil)
	ts.srv.Handler().ServeHTTP(w, r)
	return w
}

func TestChatSend(t *testing.T) {
	eng := &fakeEngine{}
	eng.runFn = func(_ context.Context, _, _ string, emit func(engine.Event)) error {
		emit(engine.TextFragment{Text: "Hello"})
		emit(engine.TextFragment{Text: " world"})
		emit(engine.TurnComplete{})
		return nil
	}
	ts := newTestServer(t, eng)

	w := postChat(t, ts, `{"message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Response != "Hello world" {
		t.Fatalf("response = %q, want %q", resp.Response, "Hello world")
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Fatalf("session_id %q is not a UUID: %v", resp.SessionID, err)
	}
	if got := w.Header().Get("X-Session-Id"); got != resp.SessionID {
		t.Fatalf("X-Session-Id = %q, want %q", got, resp.SessionID)
	}
}

func TestChatSend_KeepsProvidedSession(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})
	sid := uuid.NewString()

	w := postChat(t, ts, `{"session_id":"`+sid+`","message":"hi"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	var resp chatResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != sid {
		t.Fatalf("session_id = %q, want %q", resp.SessionID, sid)
	}
}

func TestChatSend_InvalidBody(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	w := postChat(t, ts, `{not json`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChatSend_InvalidSessionID(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	w := postChat(t, ts, `{"session_id":"../../etc/passwd","message":"hi"}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChatSend_EmptyMessage(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	w := postChat(t, ts, `{"message":"   "}`)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChatSend_EngineFault(t *testing.T) {
	eng := &fakeEngine{}
	eng.runFn = func(_ context.Context, _, _ string, emit func(engine.Event)) error {
		emit(engine.TextFragment{Text: "partial"})
		return errors.New("model exploded")
	}
	ts := newTestServer(t, eng)

	w := postChat(t, ts, `{"message":"hi"}`)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusInternalServerError)
	}
	if !strings.Contains(w.Body.String(), "execution_failed") {
		t.Fatalf("body = %s, want execution_failed code", w.Body.String())
	}
}

func TestChatStream(t *testing.T) {
	eng := &fakeEngine{}
	eng.runFn = func(_ context.Context, _, _ string, emit func(engine.Event)) error {
		emit(engine.TextFragment{Text: "Hello"})
		emit(engine.TurnComplete{})
		return nil
	}
	ts := newTestServer(t, eng)

	w := getStream(t, ts, "hi", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	if got := w.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("Content-Type = %q", got)
	}
	if _, err := uuid.Parse(w.Header().Get("X-Session-Id")); err != nil {
		t.Fatalf("X-Session-Id: %v", err)
	}

	frames := decodeFrames(t, w.Body.String())
	if len(frames) != 2 {
		t.Fatalf("frames = %d, want 2: %v", len(frames), frames)
	}
	if frames[0]["type"] != "text" || frames[0]["chunk"] != "Hello" || frames[0]["done"] != false {
		t.Fatalf("frame 0 = %v", frames[0])
	}
	if frames[1]["type"] != "text" || frames[1]["chunk"] != "" || frames[1]["done"] != true {
		t.Fatalf("frame 1 = %v", frames[1])
	}
}

func TestChatStream_MissingMessage(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})

	w := getStream(t, ts, "", "")
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
	if got := w.Header().Get("Content-Type"); got == "text/event-stream" {
		t.Fatal("error response must not switch to SSE")
	}
}

func TestChatStream_EchoesSessionID(t *testing.T) {
	ts := newTestServer(t, &fakeEngine{})
	sid := uuid.NewString()

	w := getStream(t, ts, "hi", sid)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if got := w.Header().Get("X-Session-Id"); got != sid {
		t.Fatalf("X-Session-Id = %q, want %q", got, sid)
	}
}

func TestChatStream_EngineFault(t *testing.T) {
	eng := &fakeEngine{}
	eng.runFn = func(_ context.Context, _, _ string, emit func(engine.Event)) error {
		emit(engine.TextFragment{Text: "partial"})
		return errors.New("model exploded")
	}
	ts := newTestServer(t, eng)

	w := getStream(t, ts, "hi", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d (SSE already committed)", w.Code)
	}

	frames := decodeFrames(t, w.Body.String())
	last := frames[len(frames)-1]
	if last["type"] != "error" {
		t.Fatalf("last frame = %v, want error", last)
	}
	if !strings.Contains(last["text"].(string), "model exploded") {
		t.Fatalf("error text = %v", last["text"])
	}
}
