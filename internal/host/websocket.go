package host

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/ashureev/textbook-tutor/internal/identity"
	"github.com/ashureev/textbook-tutor/internal/pagectx"
	"github.com/ashureev/textbook-tutor/internal/profile"
	"github.com/ashureev/textbook-tutor/internal/render"
	"github.com/ashureev/textbook-tutor/internal/session"
	"github.com/ashureev/textbook-tutor/internal/store"
	"github.com/ashureev/textbook-tutor/internal/widget"
	"github.com/coder/websocket"
)

// WebSocketHandler hosts one widget session per WebSocket connection.
type WebSocketHandler struct {
	kv            store.KeyValue
	sm            *SessionManager
	backend       widget.Backend
	renderer      *render.Renderer
	allowedOrigin string
	isDev         bool
	logger        *slog.Logger
}

// NewWebSocketHandler creates a new WebSocket handler. Profiles are kept in kv
// under a namespace per anonymous user.
func NewWebSocketHandler(kv store.KeyValue, sm *SessionManager, b widget.Backend, renderer *render.Renderer, allowedOrigin string, isDev bool, logger *slog.Logger) *WebSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if renderer == nil {
		renderer = render.New()
	}
	return &WebSocketHandler{
		kv:            kv,
		sm:            sm,
		backend:       b,
		renderer:      renderer,
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		logger:        logger,
	}
}

// frameWriter serializes server frames onto the connection. A state frame
// older than the last one sent is dropped, so a slow change notification
// cannot overwrite a newer state in the browser.
type frameWriter struct {
	mu          sync.Mutex
	write       func(ctx context.Context, data []byte) error
	ctx         context.Context
	logger      *slog.Logger
	lastVersion uint64
}

func newFrameWriter(ctx context.Context, ws *websocket.Conn, logger *slog.Logger) *frameWriter {
	return &frameWriter{
		write: func(ctx context.Context, data []byte) error {
			return ws.Write(ctx, websocket.MessageText, data)
		},
		ctx:    ctx,
		logger: logger,
	}
}

func (f *frameWriter) send(msgs ...serverMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, msg := range msgs {
		if f.ctx.Err() != nil {
			return
		}
		if msg.State != nil {
			if msg.State.Version <= f.lastVersion {
				f.logger.Debug("Dropping stale state frame", "version", msg.State.Version, "last", f.lastVersion)
				continue
			}
			f.lastVersion = msg.State.Version
		}
		data, err := json.Marshal(msg)
		if err != nil {
			f.logger.Error("Failed to encode frame", "type", msg.Type, "error", err)
			continue
		}
		if err := f.write(f.ctx, data); err != nil {
			if f.ctx.Err() == nil {
				f.logger.Debug("WebSocket write error", "error", err)
			}
			return
		}
	}
}

// ServeHTTP implements http.Handler for WebSocket upgrade.
func (h *WebSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := identity.UserIDFromContext(r.Context())
	sessionID := identity.SessionIDFromContext(r.Context())
	h.logger.Info("WebSocket connection request", "user_id", userID, "session_id", sessionID, "ip", r.RemoteAddr)

	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.logger.Error("Failed to accept WebSocket", "error", err, "user_id", userID)
		return
	}
	defer func() {
		if closeErr := ws.Close(websocket.StatusNormalClosure, "session ended"); closeErr != nil {
			h.logger.Debug("Failed to close websocket", "error", closeErr, "user_id", userID)
		}
	}()

	h.sm.Register(userID, sessionID, ws)
	defer h.sm.Unregister(userID, sessionID, ws)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	logger := h.logger.With("user_id", userID, "session_id", sessionID)
	out := newFrameWriter(ctx, ws, logger)

	doc := pagectx.NewDocument()
	profiles := profile.NewStore(store.Scoped(h.kv, userID), logger)
	ctl := widget.New(ctx, h.backend, profiles, pagectx.NewExtractor(doc), widget.Options{
		Logger: logger,
		OnChange: func(snap session.Snapshot) {
			out.send(serverMessage{Type: outState, State: newStateView(snap, h.renderer)})
		},
	})
	defer ctl.Close()

	sess := &widgetSession{ctl: ctl, doc: doc, renderer: h.renderer, logger: logger}
	out.send(sess.state())

	h.inputLoop(ctx, ws, sess, out)
	logger.Info("Widget session ended")
}

func (h *WebSocketHandler) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" || h.allowedOrigin == "" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	h.logger.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}

func (h *WebSocketHandler) inputLoop(ctx context.Context, ws *websocket.Conn, sess *widgetSession, out *frameWriter) {
	for {
		_, data, err := ws.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				sess.logger.Debug("WebSocket closed by client")
			} else if ctx.Err() == nil {
				sess.logger.Warn("WebSocket read error", "error", err)
			}
			return
		}

		var msg clientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			out.send(serverMessage{Type: outError, Text: "malformed message"})
			continue
		}
		out.send(sess.dispatch(msg)...)
	}
}

// widgetSession maps protocol messages onto one controller.
type widgetSession struct {
	ctl      *widget.Controller
	doc      *pagectx.Document
	renderer *render.Renderer
	logger   *slog.Logger
}

func (s *widgetSession) state() serverMessage {
	return serverMessage{Type: outState, State: newStateView(s.ctl.Snapshot(), s.renderer)}
}

// dispatch applies msg and returns the frames to send back: the effects the
// presenter must show followed by the resulting state.
//
//nolint:gocyclo // One case per message type.
func (s *widgetSession) dispatch(msg clientMessage) []serverMessage {
	var effects []session.Effect
	switch msg.Type {
	case msgPing:
		return []serverMessage{{Type: outPong}}
	case msgToggle:
		s.ctl.Toggle()
	case msgInput:
		s.ctl.SetInput(msg.Text)
	case msgSend:
		// The script sends the typed text with the message instead of
		// streaming every keystroke.
		if msg.Text != "" {
			s.ctl.SetInput(msg.Text)
		}
		effects = s.ctl.Send()
	case msgSuggestion:
		effects = s.ctl.ClickSuggestion(msg.Index)
	case msgAction:
		switch kind := session.RequestKind(msg.Action); kind {
		case session.KindTranslate, session.KindPersonalize:
			effects = s.ctl.ContentAction(kind)
		default:
			return []serverMessage{{Type: outError, Text: "unknown action: " + msg.Action}}
		}
	case msgProfileField:
		s.ctl.SetFormField(session.FormField(msg.Field), msg.Value)
	case msgSaveProfile:
		effects = s.ctl.SaveProfile()
	case msgEditProfile:
		s.ctl.EditProfile()
	case msgCancelEdit:
		s.ctl.CancelEdit()
	case msgClear:
		effects = s.ctl.RequestClear()
	case msgConfirmClear:
		s.ctl.ConfirmClear(msg.Confirmed)
	case msgScroll:
		s.ctl.Scroll(msg.ScrollMetrics)
	case msgScrollBottom:
		effects = s.ctl.ScrollToBottom()
	case msgSelection:
		s.doc.SetSelection(msg.Text)
	case msgPage:
		if err := s.doc.SetHTML(msg.HTML); err != nil {
			s.logger.Warn("Failed to parse page", "error", err)
			return []serverMessage{{Type: outError, Text: "page could not be parsed"}}
		}
	case msgCancel:
		effects = s.ctl.Cancel()
	default:
		return []serverMessage{{Type: outError, Text: "unknown message type: " + msg.Type}}
	}
	return append(effectMessages(effects), s.state())
}
