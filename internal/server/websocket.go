package server

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/conneroisu/brandkit/internal/orchestrator"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 54 * time.Second
)

// handleEvents streams orchestrator stage events as JSON text messages.
// The optional buildId and partnerId query parameters filter the stream.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	bus := s.builds.Events()
	if bus == nil {
		http.Error(w, "Event stream disabled", http.StatusServiceUnavailable)
		return
	}
	if !s.checkOrigin(r) {
		http.Error(w, "Origin not allowed", http.StatusForbidden)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: s.allowedOrigins(),
	})
	if err != nil {
		s.logger.Warn(r.Context(), err, "WebSocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	events, cancel := bus.Subscribe()
	defer cancel()

	buildID := r.URL.Query().Get("buildId")
	partnerID := r.URL.Query().Get("partnerId")

	// Clients only listen; CloseRead handles control frames and reports the
	// peer going away through ctx.
	ctx := conn.CloseRead(r.Context())
	s.logger.Debug(ctx, "Event stream client connected", "subscribers", bus.Subscribers())

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return

		case event, ok := <-events:
			if !ok {
				conn.Close(websocket.StatusGoingAway, "event stream closed")
				return
			}
			if !matches(event, buildID, partnerID) {
				continue
			}
			if err := s.write(ctx, conn, event); err != nil {
				s.logger.Debug(ctx, "Event stream write failed", "error", err.Error())
				return
			}

		case <-ticker.C:
			pingCtx, cancelPing := context.WithTimeout(ctx, writeWait)
			err := conn.Ping(pingCtx)
			cancelPing()
			if err != nil {
				return
			}
		}
	}
}

func (s *Server) write(ctx context.Context, conn *websocket.Conn, event orchestrator.Event) error {
	writeCtx, cancel := context.WithTimeout(ctx, writeWait)
	defer cancel()
	return wsjson.Write(writeCtx, conn, event)
}

func matches(event orchestrator.Event, buildID, partnerID string) bool {
	if buildID != "" && event.BuildID != buildID {
		return false
	}
	if partnerID != "" && event.PartnerID != partnerID {
		return false
	}
	return true
}

// allowedOrigins lists the host[:port] values accepted as Origin: the
// configured origins plus the server's own address.
func (s *Server) allowedOrigins() []string {
	port := s.config.Server.Port
	origins := []string{
		fmt.Sprintf("%s:%d", s.config.Server.Host, port),
		fmt.Sprintf("localhost:%d", port),
		fmt.Sprintf("127.0.0.1:%d", port),
	}
	return append(origins, s.config.Server.AllowedOrigins...)
}

// checkOrigin validates the request origin. Connections without an Origin
// header are rejected.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return false
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if originURL.Scheme != "http" && originURL.Scheme != "https" {
		return false
	}

	for _, allowed := range s.allowedOrigins() {
		if originURL.Host == allowed {
			return true
		}
	}
	return false
}
