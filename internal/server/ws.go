package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/fingerbrush/internal/feedback"
	"github.com/ayusman/fingerbrush/internal/stroke"
	"github.com/gorilla/websocket"
)

const writeWait = 2 * time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// PointerSink receives pointer events and publishes feedback overlays.
type PointerSink interface {
	Pointer(ev stroke.PointerEvent) error
	Subscribe() (<-chan feedback.Overlay, func())
}

// overlayMessage is pushed to websocket clients after each overlay change.
type overlayMessage struct {
	Type      string            `json:"type"`
	Markers   []feedback.Marker `json:"markers"`
	Timestamp int64             `json:"timestamp"`
}

// PointerHandler carries touch input from a browser canvas over a
// websocket and pushes the gesture feedback overlay back.
type PointerHandler struct {
	sink   PointerSink
	logger *slog.Logger
}

// NewPointerHandler creates a new PointerHandler.
func NewPointerHandler(sink PointerSink, logger *slog.Logger) *PointerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PointerHandler{sink: sink, logger: logger}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *PointerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade", "error", err)
		return
	}
	defer conn.Close()

	overlays, cancel := h.sink.Subscribe()
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeOverlays(conn, overlays)
	}()

	h.readPointers(conn)

	// A client that goes away mid-stroke must not leave it open.
	if err := h.sink.Pointer(stroke.PointerEvent{Type: stroke.PointerCancel}); err != nil {
		h.logger.Debug("cancel pointer", "error", err)
	}
	cancel()
	<-writerDone
}

func (h *PointerHandler) readPointers(conn *websocket.Conn) {
	for {
		var ev stroke.PointerEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Debug("pointer connection closed", "error", err)
			}
			return
		}
		if err := h.sink.Pointer(ev); err != nil {
			h.logger.Debug("pointer event rejected", "type", ev.Type, "error", err)
		}
	}
}

func (h *PointerHandler) writeOverlays(conn *websocket.Conn, overlays <-chan feedback.Overlay) {
	for o := range overlays {
		msg := overlayMessage{
			Type:      "overlay",
			Markers:   o.Markers,
			Timestamp: time.Now().UnixMilli(),
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteJSON(msg); err != nil {
			h.logger.Debug("overlay write", "error", err)
			// Unblocks the reader, which cancels the subscription.
			conn.Close()
			return
		}
	}
}
