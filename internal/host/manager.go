// Package host binds widget controllers to browser pages over WebSocket.
package host

import (
	"log/slog"
	"sync"

	"github.com/coder/websocket"
)

// SessionManager tracks the live widget connection of each device tab.
type SessionManager struct {
	mu     sync.RWMutex
	active map[string]map[string]*websocket.Conn
}

// NewSessionManager creates a new session manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{
		active: make(map[string]map[string]*websocket.Conn),
	}
}

// GetActive returns the active connection for a device and tab.
func (m *SessionManager) GetActive(userID, sessionID string) *websocket.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if sessions, ok := m.active[userID]; ok {
		return sessions[sessionID]
	}
	return nil
}

// Register adds a connection, closing any connection it replaces for the same tab.
func (m *SessionManager) Register(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.active[userID]; !exists {
		m.active[userID] = make(map[string]*websocket.Conn)
	}

	if existing, exists := m.active[userID][sessionID]; exists && existing != conn {
		_ = existing.Close(websocket.StatusNormalClosure, "session replaced")
	}

	m.active[userID][sessionID] = conn
	slog.Info("Widget session registered", "user_id", userID, "session_id", sessionID)
}

// Unregister removes a connection if it is still the current one for its tab.
func (m *SessionManager) Unregister(userID, sessionID string, conn *websocket.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if sessions, ok := m.active[userID]; ok {
		if current, exists := sessions[sessionID]; exists && current == conn {
			delete(sessions, sessionID)
			if len(sessions) == 0 {
				delete(m.active, userID)
			}
			slog.Info("Widget session unregistered", "user_id", userID, "session_id", sessionID)
		}
	}
}

// Count returns the number of live widget sessions.
func (m *SessionManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, sessions := range m.active {
		n += len(sessions)
	}
	return n
}

// CloseAll terminates every live session, e.g. on shutdown.
func (m *SessionManager) CloseAll() {
	m.mu.Lock()
	active := m.active
	m.active = make(map[string]map[string]*websocket.Conn)
	m.mu.Unlock()

	var wg sync.WaitGroup
	for userID, sessions := range active {
		for sid, conn := range sessions {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
				slog.Info("Widget session closed", "user_id", userID, "session_id", sid)
			}()
		}
	}
	wg.Wait()
}
