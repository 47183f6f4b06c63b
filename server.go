package main

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"i4.energy/across/cncline/smoothie"
)

const (
	maxDecodeBody = 1 << 20
	pingInterval  = 30 * time.Second
	writeTimeout  = 10 * time.Second
)

// EventSource streams decoded controller events.
type EventSource interface {
	Subscribe(kinds ...smoothie.Kind) (events <-chan smoothie.Event, cancel func())
}

// Envelope is the wire form of a decoded event.
type Envelope struct {
	Kind  smoothie.Kind  `json:"kind"`
	Event smoothie.Event `json:"event"`
}

func envelope(ev smoothie.Event) Envelope {
	return Envelope{Kind: ev.Kind(), Event: ev}
}

// Server handles incoming HTTP requests for decoding controller output
// and following the connected controller
type Server struct {
	Logger *slog.Logger
	// Parser decodes request bodies. Nil uses the default parser.
	Parser *smoothie.Parser
	// Events feeds /events. Nil disables streaming.
	Events EventSource

	mu     sync.Mutex
	status *smoothie.Status
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /decode", s.handleDecode)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.ServeHTTP(w, r)
}

// Observe records the latest status report. It is meant to be registered
// as a controller handler for status events.
func (s *Server) Observe(ev smoothie.Event) {
	st, ok := ev.(smoothie.Status)
	if !ok {
		return
	}
	s.mu.Lock()
	s.status = &st
	s.mu.Unlock()
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		Message string `json:"message"`
	}
	resp := ErrorResponse{Message: message}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) sendJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Error("Failed to encode response", "error", err)
	}
}

// handleDecode decodes every non-empty line of the request body
func (s *Server) handleDecode(w http.ResponseWriter, r *http.Request) {
	parse := smoothie.Parse
	if s.Parser != nil {
		parse = s.Parser.Parse
	}

	scanner := bufio.NewScanner(http.MaxBytesReader(w, r.Body, maxDecodeBody))
	scanner.Split(smoothie.Splitter)

	events := []Envelope{}
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		events = append(events, envelope(parse(line)))
	}
	if err := scanner.Err(); err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}

	s.Logger.Debug("Decoded lines", "count", len(events))
	s.sendJSON(w, events)
}

// handleStatus returns the most recent status report
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	st := s.status
	s.mu.Unlock()

	if st == nil {
		s.sendError(w, "no status report received yet", http.StatusNotFound)
		return
	}
	s.sendJSON(w, envelope(*st))
}

// handleEvents streams events of the requested kinds over a websocket
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	if s.Events == nil {
		s.sendError(w, "no controller connected", http.StatusServiceUnavailable)
		return
	}

	var kinds []smoothie.Kind
	for _, name := range r.URL.Query()["kind"] {
		k, err := smoothie.ParseKind(name)
		if err != nil {
			s.sendError(w, err.Error(), http.StatusBadRequest)
			return
		}
		kinds = append(kinds, k)
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("Websocket upgrade failed", "error", err)
		return
	}

	events, cancel := s.Events.Subscribe(kinds...)
	defer cancel()

	s.Logger.Info("Websocket client connected", "remote", r.RemoteAddr, "kinds", kinds)
	defer s.Logger.Info("Websocket client disconnected", "remote", r.RemoteAddr)

	done := make(chan struct{})
	go readPump(conn, done)
	s.writePump(conn, events, done)
}

// readPump discards client messages and closes done once the client goes
// away.
func readPump(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)

	conn.SetReadLimit(512)
	conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	})
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump forwards events to the connection until the source or the
// client ends.
func (s *Server) writePump(conn *websocket.Conn, events <-chan smoothie.Event, done <-chan struct{}) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case ev, ok := <-events:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "controller disconnected"))
				return
			}
			if err := conn.WriteJSON(envelope(ev)); err != nil {
				s.Logger.Warn("Websocket write failed", "error", err)
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}

		case <-done:
			return
		}
	}
}
