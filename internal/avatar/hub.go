// Package avatar streams render frames to connected avatar front ends.
package avatar

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/jwlin/voicetalk/internal/bus"
)

// frameInterval paces the render feed at roughly 30 fps.
const frameInterval = 33 * time.Millisecond

// Frame is one websocket message to the renderer.
type Frame struct {
	Type       string  `json:"type"` // frame, transcript, toast
	Expression string  `json:"expression,omitempty"`
	Amplitude  float32 `json:"amplitude,omitempty"`
	Text       string  `json:"text,omitempty"`
	Message    string  `json:"message,omitempty"`
	Severity   string  `json:"severity,omitempty"`
	DurationMS int64   `json:"duration_ms,omitempty"`
}

// AmplitudeFunc reports the current mouth-open value.
type AmplitudeFunc func() float32

// Hub fans out expression and lip-sync frames to websocket clients. It
// listens on the bus for transcript and toast events and runs its own
// ticker for the per-frame amplitude feed.
type Hub struct {
	addr      string
	amplitude AmplitudeFunc
	upgrader  websocket.Upgrader

	mu         sync.Mutex
	clients    map[*websocket.Conn]bool
	expression string
	writeMu    sync.Mutex // serializes writes across frame loop and bus handlers

	server   *http.Server
	done     chan struct{}
	eventBus *bus.EventBus
	logger   zerolog.Logger
}

// NewHub creates a Hub serving websocket clients at addr.
func NewHub(logger zerolog.Logger, eventBus *bus.EventBus, addr string, amplitude AmplitudeFunc) *Hub {
	return &Hub{
		addr:      addr,
		amplitude: amplitude,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
		clients:    make(map[*websocket.Conn]bool),
		expression: "neutral",
		done:       make(chan struct{}),
		eventBus:   eventBus,
		logger:     logger.With().Str("component", "avatar-hub").Logger(),
	}
}

// Start subscribes to pipeline events and begins serving.
func (h *Hub) Start() {
	h.eventBus.Subscribe(bus.EventTypePlaybackStarted, func(e bus.Event) {
		if expr, ok := e.Data["expression"].(string); ok && expr != "" {
			h.mu.Lock()
			h.expression = expr
			h.mu.Unlock()
		}
		if text, ok := e.Data["text"].(string); ok {
			h.broadcast(Frame{Type: "transcript", Text: text})
		}
	})
	h.eventBus.Subscribe(bus.EventTypeExpressionSet, func(e bus.Event) {
		if expr, ok := e.Data["expression"].(string); ok && expr != "" {
			h.mu.Lock()
			h.expression = expr
			h.mu.Unlock()
		}
	})
	h.eventBus.Subscribe(bus.EventTypeToast, func(e bus.Event) {
		frame := Frame{Type: "toast"}
		if msg, ok := e.Data["message"].(string); ok {
			frame.Message = msg
		}
		if sev, ok := e.Data["severity"].(string); ok {
			frame.Severity = sev
		}
		if dur, ok := e.Data["duration"].(time.Duration); ok {
			frame.DurationMS = dur.Milliseconds()
		}
		h.broadcast(frame)
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", h.serveWS)
	h.server = &http.Server{Addr: h.addr, Handler: mux}

	go h.frameLoop()
	go func() {
		h.logger.Info().Str("addr", h.addr).Msg("Avatar hub listening")
		if err := h.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			h.logger.Error().Err(err).Msg("Avatar hub server failed")
		}
	}()
}

// Close stops the frame loop and disconnects all clients.
func (h *Hub) Close() error {
	close(h.done)

	h.mu.Lock()
	for conn := range h.clients {
		conn.Close()
	}
	h.clients = make(map[*websocket.Conn]bool)
	h.mu.Unlock()

	if h.server == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return h.server.Shutdown(ctx)
}

func (h *Hub) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("Websocket upgrade failed")
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Info().Str("remote", conn.RemoteAddr().String()).Int("clients", n).Msg("Avatar client connected")

	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				h.drop(conn)
				return
			}
		}
	}()
}

func (h *Hub) frameLoop() {
	ticker := time.NewTicker(frameInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.mu.Lock()
			expr := h.expression
			h.mu.Unlock()

			var amp float32
			if h.amplitude != nil {
				amp = h.amplitude()
			}
			h.broadcast(Frame{Type: "frame", Expression: expr, Amplitude: amp})

		case <-h.done:
			return
		}
	}
}

func (h *Hub) broadcast(frame Frame) {
	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for c := range h.clients {
		conns = append(conns, c)
	}
	h.mu.Unlock()

	h.writeMu.Lock()
	defer h.writeMu.Unlock()
	for _, conn := range conns {
		if err := conn.WriteJSON(frame); err != nil {
			h.drop(conn)
		}
	}
}

func (h *Hub) drop(conn *websocket.Conn) {
	h.mu.Lock()
	if _, ok := h.clients[conn]; ok {
		delete(h.clients, conn)
		conn.Close()
	}
	h.mu.Unlock()
}
