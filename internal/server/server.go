// Package server serves an exported preview bundle over HTTP and
// pushes reload events to connected browsers over WebSocket after each
// re-export. It is a development convenience around the export
// pipeline, not a production web server.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/playpack/internal/logging"
)

// PreviewServer serves one output root and broadcasts reload events.
type PreviewServer struct {
	host string
	port int
	root string
	log  logging.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}

	httpServer *http.Server
}

// New creates a preview server for the given output root on the host
// file system.
func New(host string, port int, outputRoot string, log logging.Logger) *PreviewServer {
	if log == nil {
		log = logging.NopLogger{}
	}

	return &PreviewServer{
		host:    host,
		port:    port,
		root:    outputRoot,
		log:     log.WithComponent("server"),
		clients: make(map[*websocket.Conn]struct{}),
	}
}

// URL returns the address the preview is browsable at.
func (s *PreviewServer) URL() string {
	return fmt.Sprintf("http://%s/", net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)))
}

// Start serves until the context is canceled.
func (s *PreviewServer) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/reload", s.handleReload)
	mux.Handle("/", s.withLiveReload(http.FileServer(http.Dir(s.root))))

	s.httpServer = &http.Server{
		Addr:              net.JoinHostPort(s.host, fmt.Sprintf("%d", s.port)),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = s.httpServer.Shutdown(shutdownCtx)
	}()

	s.log.Info(ctx, "preview server listening", "url", s.URL())

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}

	return err
}

// handleReload upgrades the connection and parks it until the client
// goes away; reload events are pushed from NotifyReload.
func (s *PreviewServer) handleReload(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // local development server
	})
	if err != nil {
		s.log.Warn(r.Context(), err, "websocket accept failed")

		return
	}

	s.mu.Lock()
	s.clients[conn] = struct{}{}
	s.mu.Unlock()

	// CloseRead keeps the connection alive and returns a context that
	// ends when the client disconnects.
	readCtx := conn.CloseRead(r.Context())
	<-readCtx.Done()

	s.mu.Lock()
	delete(s.clients, conn)
	s.mu.Unlock()
	_ = conn.Close(websocket.StatusNormalClosure, "")
}

// NotifyReload tells every connected browser to reload the preview.
func (s *PreviewServer) NotifyReload(ctx context.Context) {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for conn := range s.clients {
		conns = append(conns, conn)
	}
	s.mu.Unlock()

	for _, conn := range conns {
		writeCtx, cancel := context.WithTimeout(ctx, time.Second)
		if err := conn.Write(writeCtx, websocket.MessageText, []byte("reload")); err != nil {
			s.log.Debug(ctx, "reload push failed, dropping client")
		}
		cancel()
	}

	s.log.Debug(ctx, "reload notified", "clients", len(conns))
}

// ClientCount returns the number of connected reload clients.
func (s *PreviewServer) ClientCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.clients)
}

const reloadScript = `<script>
(function () {
  var proto = location.protocol === "https:" ? "wss://" : "ws://";
  var ws = new WebSocket(proto + location.host + "/reload");
  ws.onmessage = function (ev) { if (ev.data === "reload") location.reload(); };
})();
</script>`

// withLiveReload injects the reload client into served HTML documents.
func (s *PreviewServer) withLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/") && !strings.HasSuffix(r.URL.Path, ".html") {
			next.ServeHTTP(w, r)

			return
		}

		rec := &bufferingWriter{header: make(http.Header)}
		next.ServeHTTP(rec, r)

		body := rec.body
		if strings.Contains(rec.header.Get("Content-Type"), "text/html") {
			body = []byte(strings.Replace(string(body), "</body>", reloadScript+"</body>", 1))
		}

		for k, vs := range rec.header {
			if k == "Content-Length" {
				continue
			}
			for _, v := range vs {
				w.Header().Add(k, v)
			}
		}
		if rec.status != 0 {
			w.WriteHeader(rec.status)
		}
		_, _ = w.Write(body)
	})
}

type bufferingWriter struct {
	header http.Header
	body   []byte
	status int
}

func (b *bufferingWriter) Header() http.Header { return b.header }

func (b *bufferingWriter) Write(p []byte) (int, error) {
	b.body = append(b.body, p...)

	return len(p), nil
}

func (b *bufferingWriter) WriteHeader(status int) { b.status = status }
