package websocket

import (
	"bytes"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeWait = 10 * time.Second

// ServerMessage is every JSON frame the server sends.
type ServerMessage struct {
	Type            string `json:"type"`
	Message         string `json:"message,omitempty"`
	Size            int    `json:"size,omitempty"`
	TargetLanguage  string `json:"targetLanguage,omitempty"`
	SourceLanguage  string `json:"sourceLanguage,omitempty"`
	ChunksCollected *int   `json:"chunksCollected,omitempty"`
	TotalBytes      *int   `json:"totalBytes,omitempty"`
	Received        string `json:"received,omitempty"`
	Timestamp       int64  `json:"timestamp,omitempty"`
}

// ClientMessage is a JSON control frame from the browser.
type ClientMessage struct {
	Type           string `json:"type"`
	SourceLanguage string `json:"sourceLanguage"`
	TargetLanguage string `json:"targetLanguage"`
}

// Client is one authenticated socket. Recording state is only touched by
// the connection's read loop.
type Client struct {
	UserID string
	conn   *websocket.Conn

	// conn.WriteJSON is not safe for concurrent use
	writeMu sync.Mutex

	sourceLanguage string
	targetLanguage string
	audio          bytes.Buffer
	chunks         int
}

func newClient(userID string, conn *websocket.Conn, sourceLanguage, targetLanguage string) *Client {
	return &Client{
		UserID:         userID,
		conn:           conn,
		sourceLanguage: sourceLanguage,
		targetLanguage: targetLanguage,
	}
}

func (c *Client) Send(msg ServerMessage) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

// Close sends a close frame with code and reason, then drops the connection.
func (c *Client) Close(code int, reason string) {
	_ = c.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason), time.Now().Add(writeWait))
	c.conn.Close()
}

func (c *Client) resetAudio() {
	c.audio.Reset()
	c.chunks = 0
}

// ConnectionManager tracks live sockets per user so revoked sessions can be
// cut off immediately.
type ConnectionManager struct {
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]map[*Client]struct{}),
	}
}

func (cm *ConnectionManager) Add(c *Client) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	set, ok := cm.clients[c.UserID]
	if !ok {
		set = make(map[*Client]struct{})
		cm.clients[c.UserID] = set
	}
	set[c] = struct{}{}
}

// Remove reports whether c was still registered. A client already taken out
// by DisconnectUser is not removed twice.
func (cm *ConnectionManager) Remove(c *Client) bool {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	set, ok := cm.clients[c.UserID]
	if !ok {
		return false
	}
	if _, ok := set[c]; !ok {
		return false
	}
	delete(set, c)
	if len(set) == 0 {
		delete(cm.clients, c.UserID)
	}
	return true
}

func (cm *ConnectionManager) Count(userID string) int {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	return len(cm.clients[userID])
}

// DisconnectUser tells every socket of the user why, then closes them. It
// returns how many were closed.
func (cm *ConnectionManager) DisconnectUser(userID, reason string) int {
	cm.mu.Lock()
	set := cm.clients[userID]
	delete(cm.clients, userID)
	cm.mu.Unlock()

	for c := range set {
		// best effort, the socket may already be dead
		_ = c.Send(ServerMessage{Type: "force_disconnect", Message: reason})
		c.Close(websocket.ClosePolicyViolation, reason)
	}
	return len(set)
}
