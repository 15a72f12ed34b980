package observer

import (
	"context"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const streamWriteTimeout = 5 * time.Second

type streamClient struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// StreamObserver fans progress events out to connected WebSocket clients
type StreamObserver struct {
	mu      sync.RWMutex
	clients map[*streamClient]struct{}
}

// NewStreamObserver creates an observer with no clients
func NewStreamObserver() *StreamObserver {
	return &StreamObserver{clients: make(map[*streamClient]struct{})}
}

// Register adds a connection and returns a function removing it again
func (s *StreamObserver) Register(conn *websocket.Conn) func() {
	client := &streamClient{conn: conn}

	s.mu.Lock()
	s.clients[client] = struct{}{}
	s.mu.Unlock()

	return func() { s.remove(client) }
}

// ClientCount reports the number of connected clients
func (s *StreamObserver) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// OnEvent writes the event to every client; clients that fail are dropped
func (s *StreamObserver) OnEvent(ctx context.Context, event AlertEvent) {
	s.mu.RLock()
	clients := make([]*streamClient, 0, len(s.clients))
	for c := range s.clients {
		clients = append(clients, c)
	}
	s.mu.RUnlock()

	for _, c := range clients {
		if err := c.write(event); err != nil {
			logrus.WithError(err).WithField("remote", c.conn.RemoteAddr().String()).
				Warn("Dropping alert stream client")
			s.remove(c)
		}
	}
}

// GetObserverName returns the observer name
func (s *StreamObserver) GetObserverName() string {
	return "stream_observer"
}

func (s *StreamObserver) remove(c *streamClient) {
	s.mu.Lock()
	_, ok := s.clients[c]
	delete(s.clients, c)
	s.mu.Unlock()

	if ok {
		c.conn.Close()
	}
}

func (c *streamClient) write(event AlertEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(streamWriteTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}
