package gateway

import (
	"sync"

	"github.com/gorilla/websocket"
)

// Client is one registered websocket connection. Writes are serialized
// through writeMu because delivery and command replies come from different
// goroutines.
type Client struct {
	UserID      string
	AccountName string

	conn    *websocket.Conn
	writeMu sync.Mutex

	// persistenceJobID is the id of the running order-book persistence job
	// started from this connection, empty when none. It has its own lock so
	// job bookkeeping never waits on an in-flight websocket write.
	jobMu            sync.Mutex
	persistenceJobID string
}

// Send writes one JSON message to the client.
func (c *Client) Send(v interface{}) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteJSON(v)
}

// ConnRegistry maps connected user ids to their websocket clients. A user id
// holds at most one connection; re-registering replaces the previous entry.
type ConnRegistry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewConnRegistry creates an empty ConnRegistry
func NewConnRegistry() *ConnRegistry {
	return &ConnRegistry{clients: make(map[string]*Client)}
}

// Register adds a client, replacing any existing connection for the user.
// The replaced client is returned so the caller can close it.
func (r *ConnRegistry) Register(client *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()
	old := r.clients[client.UserID]
	r.clients[client.UserID] = client
	return old
}

// Unregister removes the client if it is still the registered connection
// for its user.
func (r *ConnRegistry) Unregister(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.clients[client.UserID] == client {
		delete(r.clients, client.UserID)
	}
}

// Get returns the client for a user id, or nil when the user is not
// connected here.
func (r *ConnRegistry) Get(userID string) *Client {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.clients[userID]
}

// Count reports the number of connected clients.
func (r *ConnRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}

// SetPersistenceJob stores the running persistence job id on the client and
// returns the previous one, empty when none was running.
func (c *Client) SetPersistenceJob(jobID string) string {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	prev := c.persistenceJobID
	c.persistenceJobID = jobID
	return prev
}

// PersistenceJob returns the running persistence job id, empty when none.
func (c *Client) PersistenceJob() string {
	c.jobMu.Lock()
	defer c.jobMu.Unlock()
	return c.persistenceJobID
}
