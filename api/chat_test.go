package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/koopa0/assistant/internal/chunk"
	"github.com/koopa0/assistant/internal/thread"
)

// sseEvents parses a recorded SSE body into (event, data) pairs.
// Multi-line data is joined back with newlines.
func sseEvents(t *testing.T, body string) []struct{ Event, Data string } {
	t.Helper()
	var events []struct{ Event, Data string }
	for _, block := range strings.Split(strings.TrimRight(body, "\n"), "\n\n") {
		var ev struct{ Event, Data string }
		var data []string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				ev.Event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				data = append(data, strings.TrimPrefix(line, "data: "))
			}
		}
		ev.Data = strings.Join(data, "\n")
		events = append(events, ev)
	}
	return events
}

func streamRequest(id uuid.UUID, body string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/api/threads/"+id.String()+"/chat/stream", strings.NewReader(body))
	r.Header.Set("X-User-ID", "alice")
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestChatStream(t *testing.T) {
	srv, svc, store := newTestServer(t, nil)
	created, err := svc.Create(context.Background(), "alice", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, streamRequest(created.ID, `{"message":"hi"}`))

	if w.Code != http.StatusOK {
		t.Fatalf("stream status = %d, want %d: %s", w.Code, http.StatusOK, w.Body)
	}
	if ct := w.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q, want %q", ct, "text/event-stream")
	}

	events := sseEvents(t, w.Body.String())
	if len(events) < 2 {
		t.Fatalf("stream produced %d events, want at least 2", len(events))
	}
	if last := events[len(events)-1]; last.Event != "done" {
		t.Errorf("last event = %q, want %q", last.Event, "done")
	}

	var sawText bool
	for _, ev := range events[:len(events)-1] {
		if ev.Event != "chunk" {
			t.Errorf("event = %q, want %q", ev.Event, "chunk")
			continue
		}
		var c chunk.Chunk
		if err := json.Unmarshal([]byte(ev.Data), &c); err != nil {
			t.Fatalf("chunk event is not JSON: %v\n%s", err, ev.Data)
		}
		if c.Type == chunk.TypeText && c.Payload == "hello from the model" {
			sawText = true
		}
	}
	if !sawText {
		t.Error("stream never delivered the text chunk")
	}

	saved, err := store.Get(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("Get after stream: %v", err)
	}
	if len(saved.Messages) != 2 {
		t.Fatalf("saved messages = %d, want 2", len(saved.Messages))
	}
	if saved.Messages[1].Role != thread.RoleAssistant {
		t.Errorf("second message role = %q, want %q", saved.Messages[1].Role, thread.RoleAssistant)
	}
	if saved.Status != thread.StatusActive {
		t.Errorf("thread status = %q, want %q", saved.Status, thread.StatusActive)
	}
}

func TestChatStream_FilesBecomeBlocks(t *testing.T) {
	var gotFiles []thread.Block
	run := func(_ context.Context, turn *thread.Turn, _ func(chunk.Chunk) error) (chunk.Statistics, error) {
		gotFiles = turn.Files
		return chunk.Statistics{}, nil
	}
	srv, svc, _ := newTestServer(t, run)
	created, err := svc.Create(context.Background(), "alice", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	body := `{"message":"what is in these?","files":[
		{"name":"report.pdf","media_type":"application/pdf","data":"JVBERi0="},
		{"name":"photo.png","media_type":"image/png","url":"https://example.com/photo.png"}]}`
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, streamRequest(created.ID, body))

	if w.Code != http.StatusOK {
		t.Fatalf("stream status = %d, want %d: %s", w.Code, http.StatusOK, w.Body)
	}
	if len(gotFiles) != 2 {
		t.Fatalf("turn files = %d, want 2", len(gotFiles))
	}
	if gotFiles[0].Type != thread.BlockFile || gotFiles[0].Name != "report.pdf" {
		t.Errorf("first file = %+v, want file block report.pdf", gotFiles[0])
	}
	if gotFiles[1].Type != thread.BlockImage || gotFiles[1].URL != "https://example.com/photo.png" {
		t.Errorf("second file = %+v, want image block with URL", gotFiles[1])
	}
}

func TestChatStream_EmptyMessage(t *testing.T) {
	srv, svc, _ := newTestServer(t, nil)
	created, err := svc.Create(context.Background(), "alice", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, streamRequest(created.ID, `{"message":"  "}`))

	if w.Code != http.StatusBadRequest {
		t.Fatalf("empty message status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestChatStream_UnknownThread(t *testing.T) {
	srv, _, _ := newTestServer(t, nil)

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, streamRequest(uuid.New(), `{"message":"hi"}`))

	if w.Code != http.StatusNotFound {
		t.Fatalf("unknown thread status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestChatStream_TurnInProgress(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	run := func(ctx context.Context, _ *thread.Turn, _ func(chunk.Chunk) error) (chunk.Statistics, error) {
		close(started)
		select {
		case <-release:
		case <-ctx.Done():
		}
		return chunk.Statistics{}, nil
	}
	srv, svc, _ := newTestServer(t, run)
	created, err := svc.Create(context.Background(), "alice", "", nil)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}

	chunks, err := svc.RunTurn(context.Background(), created, thread.TurnRequest{Message: thread.UserMessage("hi")})
	if err != nil {
		t.Fatalf("RunTurn: %v", err)
	}
	select {
	case <-started:
	case <-time.After(time.Second):
		t.Fatal("first turn never started")
	}

	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, streamRequest(created.ID, `{"message":"hi again"}`))
	if w.Code != http.StatusConflict {
		t.Fatalf("second turn status = %d, want %d", w.Code, http.StatusConflict)
	}

	close(release)
	for range chunks {
	}
}
