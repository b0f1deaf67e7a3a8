package report

import (
	"context"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/taintgraph/taintgraph/pkg/logging"
	"github.com/taintgraph/taintgraph/pkg/metrics"
	"github.com/taintgraph/taintgraph/pkg/search"
)

var upgrader = websocket.Upgrader{
	CheckOrigin:     func(r *http.Request) bool { return true },
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
}

// Server broadcasts findings to connected WebSocket clients and exposes
// prometheus metrics, grounded on AleutianLocal's gin + gorilla/websocket
// handler idiom (upgrade once per connection, write-only loop to the
// client) and exposing pkg/metrics.Registry over /metrics the way that
// repo's services expose their own registries.
type Server struct {
	logger *logging.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

// NewServer creates a Server ready to broadcast findings.
func NewServer() *Server {
	return &Server{
		logger:  logging.Default(),
		clients: make(map[*websocket.Conn]bool),
	}
}

// Engine builds the gin engine with the /findings WebSocket endpoint and
// the /metrics Prometheus endpoint.
func (s *Server) Engine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.GET("/findings", s.handleWebSocket)
	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})))
	return r
}

func (s *Server) handleWebSocket(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.Warnf("serve: websocket upgrade failed: %v", err)
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.clients, conn)
		s.mu.Unlock()
		conn.Close()
	}()

	// The client is a passive subscriber; block on reads only to detect
	// disconnects, discarding whatever (if anything) it sends.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// Broadcast sends finding f to every currently connected client, dropping
// it for any client whose write fails (the read loop will clean it up).
func (s *Server) Broadcast(f search.Finding) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		if err := conn.WriteJSON(f); err != nil {
			s.logger.Debugf("serve: dropping slow/closed client: %v", err)
		}
	}
}

// Run starts the HTTP server on addr and blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Engine()}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		return srv.Shutdown(context.Background())
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
