package handler

import (
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/syncer"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
	// wsBacklog is how many events may queue for one client before it is
	// dropped as too slow.
	wsBacklog = 32
)

// feedSnapshot is the kind of the first frame sent on a new connection.
const feedSnapshot = "snapshot"

// feedMessage is one frame of the live feed. Document is set on the first
// frame and on every document event.
type feedMessage struct {
	Kind     string           `json:"kind"`
	Origin   domain.Origin    `json:"origin,omitempty"`
	State    syncer.State     `json:"state"`
	Document *domain.Document `json:"document,omitempty"`
}

// serveWS handles GET /ws: a one-way JSON feed of controller events so the
// dashboard can re-render when another device edits the document.
func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already answered the request.
		s.log.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	events := make(chan syncer.Event, wsBacklog)
	overflow := make(chan struct{})
	var once sync.Once
	cancel := s.sync.Watch(func(ev syncer.Event) {
		select {
		case events <- ev:
		default:
			once.Do(func() { close(overflow) })
		}
	})
	defer cancel()

	gone := make(chan struct{})
	go func() {
		defer close(gone)
		s.readFeed(conn)
	}()

	doc := s.sync.Snapshot()
	if err := writeFrame(conn, feedMessage{Kind: feedSnapshot, State: s.sync.State(), Document: &doc}); err != nil {
		return
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-overflow:
			s.log.WarnContext(r.Context(), "live feed client too slow, closing", "remote_addr", r.RemoteAddr)
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
				time.Now().Add(wsWriteWait))
			return
		case ev := <-events:
			msg := feedMessage{Kind: string(ev.Kind), Origin: ev.Origin, State: ev.State}
			if ev.Kind == syncer.EventDocument {
				doc := s.sync.Snapshot()
				msg.Document = &doc
			}
			if err := writeFrame(conn, msg); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

// readFeed discards client frames and returns when the peer goes away or
// stops answering pings.
func (s *Server) readFeed(conn *websocket.Conn) {
	conn.SetReadLimit(512)
	_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})
	for {
		if _, _, err := conn.NextReader(); err != nil {
			return
		}
	}
}

func writeFrame(conn *websocket.Conn, msg feedMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(msg)
}

// originChecker accepts requests without an Origin header, from one of the
// allowed origins, or from the API's own host.
func originChecker(allowed []string) func(*http.Request) bool {
	set := make(map[string]struct{}, len(allowed))
	for _, o := range allowed {
		set[strings.TrimRight(o, "/")] = struct{}{}
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		if _, ok := set[origin]; ok {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && strings.EqualFold(u.Host, r.Host)
	}
}
