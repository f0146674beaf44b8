package host

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ashureev/textbook-tutor/internal/backend"
	"github.com/ashureev/textbook-tutor/internal/domain"
	"github.com/ashureev/textbook-tutor/internal/identity"
	"github.com/ashureev/textbook-tutor/internal/pagectx"
	"github.com/ashureev/textbook-tutor/internal/profile"
	"github.com/ashureev/textbook-tutor/internal/render"
	"github.com/ashureev/textbook-tutor/internal/session"
	"github.com/ashureev/textbook-tutor/internal/store"
	"github.com/ashureev/textbook-tutor/internal/widget"
	"github.com/coder/websocket"
)

type stubBackend struct{}

func (stubBackend) Chat(_ context.Context, message, _ string, _ *domain.UserProfile) (backend.ChatResponse, error) {
	return backend.ChatResponse{Reply: "**re:** " + message}, nil
}

func (stubBackend) Translate(_ context.Context, _ string) (backend.ContentResponse, error) {
	return backend.ContentResponse{Content: "translated"}, nil
}

func (stubBackend) Personalize(_ context.Context, _ string, _ domain.UserProfile) (backend.ContentResponse, error) {
	return backend.ContentResponse{Content: "personalized"}, nil
}

func newTestSession(t *testing.T) *widgetSession {
	t.Helper()
	doc := pagectx.NewDocument()
	ctl := widget.New(context.Background(), stubBackend{}, profile.NewStore(store.NewMemory(), nil), pagectx.NewExtractor(doc), widget.Options{})
	t.Cleanup(ctl.Close)
	return &widgetSession{ctl: ctl, doc: doc, renderer: render.New(), logger: discardLogger()}
}

func lastState(t *testing.T, frames []serverMessage) *stateView {
	t.Helper()
	if len(frames) == 0 || frames[len(frames)-1].Type != outState {
		t.Fatalf("Expected trailing state frame, got %+v", frames)
	}
	return frames[len(frames)-1].State
}

func TestDispatch_Ping(t *testing.T) {
	s := newTestSession(t)
	frames := s.dispatch(clientMessage{Type: msgPing})
	if len(frames) != 1 || frames[0].Type != outPong {
		t.Errorf("Expected single pong, got %+v", frames)
	}
}

func TestDispatch_UnknownType(t *testing.T) {
	s := newTestSession(t)
	frames := s.dispatch(clientMessage{Type: "bogus"})
	if len(frames) != 1 || frames[0].Type != outError {
		t.Errorf("Expected error frame, got %+v", frames)
	}

	frames = s.dispatch(clientMessage{Type: msgAction, Action: "summarize"})
	if len(frames) != 1 || frames[0].Type != outError {
		t.Errorf("Expected error frame for unknown action, got %+v", frames)
	}
}

func TestDispatch_ProfileFlow(t *testing.T) {
	s := newTestSession(t)

	state := lastState(t, s.dispatch(clientMessage{Type: msgToggle}))
	if !state.Open || !state.ProfileFormVisible {
		t.Fatalf("Expected open profile form, got %+v", state.Snapshot)
	}

	frames := s.dispatch(clientMessage{Type: msgSaveProfile})
	if frames[0].Type != outNotice || frames[0].Text != session.NameRequiredText {
		t.Errorf("Expected name notice, got %+v", frames[0])
	}

	s.dispatch(clientMessage{Type: msgProfileField, Field: string(session.FieldName), Value: "Ana"})
	state = lastState(t, s.dispatch(clientMessage{Type: msgSaveProfile}))
	if state.ProfileFormVisible {
		t.Error("Expected form hidden after save")
	}
	last := state.Transcript[len(state.Transcript)-1]
	if last.Content != session.ProfileSavedText {
		t.Errorf("Expected saved text, got %q", last.Content)
	}
	if state.Title != "AI Tutor • Ana" {
		t.Errorf("Unexpected title %q", state.Title)
	}
}

func TestDispatch_ChatRendersMarkup(t *testing.T) {
	s := newTestSession(t)
	s.dispatch(clientMessage{Type: msgProfileField, Field: string(session.FieldName), Value: "Ana"})
	s.dispatch(clientMessage{Type: msgSaveProfile})
	s.dispatch(clientMessage{Type: msgInput, Text: "hi"})
	s.dispatch(clientMessage{Type: msgSend})
	s.ctl.Wait()

	state := s.state().State
	last := state.Transcript[len(state.Transcript)-1]
	if last.Role != domain.RoleAssistant || last.Content != "**re:** hi" {
		t.Fatalf("Unexpected reply %+v", last.Message)
	}
	if !strings.Contains(last.HTML, "<strong>re:</strong>") {
		t.Errorf("Expected rendered markup, got %q", last.HTML)
	}
}

func TestDispatch_ShortContentNotice(t *testing.T) {
	s := newTestSession(t)
	s.dispatch(clientMessage{Type: msgPage, HTML: "<main><p>tiny</p></main>"})

	frames := s.dispatch(clientMessage{Type: msgAction, Action: string(session.KindTranslate)})
	if frames[0].Type != outNotice || frames[0].Text != session.ContentTooShortText {
		t.Errorf("Expected short content notice, got %+v", frames[0])
	}
}

func TestDispatch_SelectionPlaceholder(t *testing.T) {
	s := newTestSession(t)
	state := lastState(t, s.dispatch(clientMessage{Type: msgSelection, Text: "ROS 2 nodes"}))
	if state.Placeholder != "Ask about selected text..." {
		t.Errorf("Unexpected placeholder %q", state.Placeholder)
	}
}

func TestDispatch_ClearConfirm(t *testing.T) {
	s := newTestSession(t)
	frames := s.dispatch(clientMessage{Type: msgClear})
	if frames[0].Type != outConfirm || frames[0].Text != session.ClearConfirmText {
		t.Fatalf("Expected confirm frame, got %+v", frames[0])
	}

	state := lastState(t, s.dispatch(clientMessage{Type: msgConfirmClear, Confirmed: true}))
	if len(state.Transcript) != 1 || state.Transcript[0].Content != session.ClearedText {
		t.Errorf("Expected cleared transcript, got %+v", state.Transcript)
	}
}

func TestDispatch_ScrollBottom(t *testing.T) {
	s := newTestSession(t)
	state := lastState(t, s.dispatch(clientMessage{Type: msgScroll, ScrollMetrics: session.ScrollMetrics{ScrollHeight: 1000, ScrollTop: 0, ClientHeight: 400}}))
	if !state.ScrollAffordanceVisible {
		t.Error("Expected scroll affordance")
	}

	frames := s.dispatch(clientMessage{Type: msgScrollBottom})
	if frames[0].Type != outScrollBottom {
		t.Errorf("Expected scroll_bottom frame, got %+v", frames[0])
	}
	if lastState(t, frames).ScrollAffordanceVisible {
		t.Error("Expected scroll affordance hidden")
	}
}

type testFrame struct {
	Type  string `json:"type"`
	Text  string `json:"text"`
	State *struct {
		ProfileFormVisible bool `json:"profile_form_visible"`
		Transcript         []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
			HTML    string `json:"html"`
		} `json:"transcript"`
	} `json:"state"`
}

func readUntil(ctx context.Context, t *testing.T, c *websocket.Conn, match func(testFrame) bool) testFrame {
	t.Helper()
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			t.Fatalf("Read failed: %v", err)
		}
		var f testFrame
		if err := json.Unmarshal(data, &f); err != nil {
			t.Fatalf("Bad frame %s: %v", data, err)
		}
		if match(f) {
			return f
		}
	}
}

func writeMsg(ctx context.Context, t *testing.T, c *websocket.Conn, msg map[string]any) {
	t.Helper()
	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal(err)
	}
	if err := c.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
}

func TestWebSocketHandler_EndToEnd(t *testing.T) {
	kv := store.NewMemory()
	sm := NewSessionManager()
	h := NewWebSocketHandler(kv, sm, stubBackend{}, nil, "*", true, discardLogger())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), "anon_test", "tab-1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}

	first := readUntil(ctx, t, c, func(f testFrame) bool { return f.Type == outState })
	if !first.State.ProfileFormVisible || first.State.Transcript[0].Content != session.GreetingText {
		t.Fatalf("Unexpected initial state %+v", first.State)
	}

	writeMsg(ctx, t, c, map[string]any{"type": msgProfileField, "field": "name", "value": "Ana"})
	writeMsg(ctx, t, c, map[string]any{"type": msgSaveProfile})
	readUntil(ctx, t, c, func(f testFrame) bool { return f.Type == outState && !f.State.ProfileFormVisible })

	p, ok := profile.NewStore(store.Scoped(kv, "anon_test"), nil).Load(ctx)
	if !ok || p.Name != "Ana" {
		t.Errorf("Expected persisted profile for device, got %+v", p)
	}

	writeMsg(ctx, t, c, map[string]any{"type": msgInput, "text": "hi"})
	writeMsg(ctx, t, c, map[string]any{"type": msgSend})
	reply := readUntil(ctx, t, c, func(f testFrame) bool {
		if f.Type != outState || len(f.State.Transcript) == 0 {
			return false
		}
		last := f.State.Transcript[len(f.State.Transcript)-1]
		return last.Role == string(domain.RoleAssistant) && last.Content == "**re:** hi"
	})
	last := reply.State.Transcript[len(reply.State.Transcript)-1]
	if !strings.Contains(last.HTML, "<strong>") {
		t.Errorf("Expected rendered html, got %q", last.HTML)
	}

	writeMsg(ctx, t, c, map[string]any{"type": msgPing})
	readUntil(ctx, t, c, func(f testFrame) bool { return f.Type == outPong })

	if sm.Count() != 1 {
		t.Errorf("Expected 1 active session, got %d", sm.Count())
	}

	if err := c.Close(websocket.StatusNormalClosure, ""); err != nil {
		t.Logf("close: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for sm.Count() != 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if sm.Count() != 0 {
		t.Errorf("Expected session unregistered, got %d", sm.Count())
	}
}

func TestWebSocketHandler_RejectsOrigin(t *testing.T) {
	h := NewWebSocketHandler(store.NewMemory(), NewSessionManager(), stubBackend{}, nil, "https://book.example", false, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/ws/widget", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", rec.Code)
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSessionManager_CloseAll(t *testing.T) {
	sm := NewSessionManager()
	h := NewWebSocketHandler(store.NewMemory(), sm, stubBackend{}, nil, "*", true, discardLogger())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h.ServeHTTP(w, r.WithContext(identity.WithIdentity(r.Context(), "anon_close", "tab-1")))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	c, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	defer func() { _ = c.CloseNow() }()
	readUntil(ctx, t, c, func(f testFrame) bool { return f.Type == outState })

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := c.Read(ctx); err != nil {
				if got := websocket.CloseStatus(err); got != websocket.StatusGoingAway {
					t.Errorf("Expected going away, got %v (%v)", got, err)
				}
				return
			}
		}
	}()

	sm.CloseAll()
	<-done
	if sm.Count() != 0 {
		t.Errorf("Expected no sessions, got %d", sm.Count())
	}
}

func newCaptureWriter() (*frameWriter, *[]serverMessage) {
	var frames []serverMessage
	fw := &frameWriter{
		write: func(_ context.Context, data []byte) error {
			var msg serverMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				return err
			}
			frames = append(frames, msg)
			return nil
		},
		ctx:    context.Background(),
		logger: discardLogger(),
	}
	return fw, &frames
}

func TestFrameWriter_DropsStaleState(t *testing.T) {
	s := newTestSession(t)
	s.dispatch(clientMessage{Type: msgProfileField, Field: string(session.FieldName), Value: "Ana"})
	s.dispatch(clientMessage{Type: msgSaveProfile})

	older := s.state()
	s.dispatch(clientMessage{Type: msgSend, Text: "hi"})
	s.ctl.Wait()
	newer := s.state()

	fw, frames := newCaptureWriter()
	fw.send(newer)
	fw.send(older, serverMessage{Type: outPong})

	if len(*frames) != 2 {
		t.Fatalf("Expected newer state and pong, got %+v", *frames)
	}
	if got := (*frames)[0].State; got == nil || got.Version != newer.State.Version {
		t.Errorf("Expected version %d first, got %+v", newer.State.Version, got)
	}
	if (*frames)[1].Type != outPong {
		t.Errorf("Expected pong to pass through, got %q", (*frames)[1].Type)
	}
}

func TestDispatch_SendCarriesText(t *testing.T) {
	s := newTestSession(t)
	s.dispatch(clientMessage{Type: msgProfileField, Field: string(session.FieldName), Value: "Ana"})
	s.dispatch(clientMessage{Type: msgSaveProfile})

	s.dispatch(clientMessage{Type: msgSend, Text: "what is a URDF file?"})
	s.ctl.Wait()

	state := s.state().State
	if state.Input != "" {
		t.Errorf("Expected input cleared, got %q", state.Input)
	}
	last := state.Transcript[len(state.Transcript)-1]
	if last.Content != "**re:** what is a URDF file?" {
		t.Errorf("Unexpected reply %q", last.Content)
	}
}
