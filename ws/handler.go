package ws

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/datafed/cloudnode/coordinator"
	"github.com/datafed/cloudnode/pkg/protocol"
)

// defMaxFrameSize bounds a single inbound frame. Frames carry model tensors
// inline, so the bound is generous, but a connection exceeding it is closed
// rather than buffered.
const defMaxFrameSize = 64 * 1024 * 1024

type Handler struct {
	svc          coordinator.Service
	logger       *slog.Logger
	maxFrameSize int64
	upgrader     websocket.Upgrader
}

// NewHandler returns the WebSocket entry point. maxFrameSize caps inbound
// frames in bytes; zero or negative selects the default.
func NewHandler(svc coordinator.Service, logger *slog.Logger, maxFrameSize int64) *Handler {
	if maxFrameSize <= 0 {
		maxFrameSize = defMaxFrameSize
	}

	return &Handler{
		svc:          svc,
		logger:       logger,
		maxFrameSize: maxFrameSize,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4096,
			WriteBufferSize: 4096,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	sock, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", slog.Any("error", err))

		return
	}

	conn := NewConn(sock)
	h.logger.Info("connection opened", slog.String("connection_id", conn.ID()))

	sock.SetReadLimit(h.maxFrameSize)
	if err := sock.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		conn.Close()

		return
	}
	sock.SetPongHandler(func(string) error {
		return sock.SetReadDeadline(time.Now().Add(pongWait))
	})

	h.readLoop(r, conn, sock)
}

func (h *Handler) readLoop(r *http.Request, conn *Conn, sock *websocket.Conn) {
	defer func() {
		for _, res := range h.svc.Disconnect(r.Context(), conn) {
			h.execute(conn, res)
		}
		conn.Close()
		h.logger.Info("connection closed", slog.String("connection_id", conn.ID()))
	}()

	for {
		_, payload, err := sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				h.logger.Warn("read failed",
					slog.String("connection_id", conn.ID()),
					slog.Any("error", err),
				)
			}

			return
		}

		res := h.svc.HandleMessage(r.Context(), conn, payload)
		h.execute(conn, res)
	}
}

// execute applies the one network effect a dispatch produced.
func (h *Handler) execute(sender protocol.Connection, res protocol.Result) {
	switch res.Action {
	case protocol.ActionNone:
	case protocol.ActionUnicast:
		if err := sender.Send(res.Message); err != nil {
			h.logger.Warn("unicast failed",
				slog.String("connection_id", sender.ID()),
				slog.Any("error", err),
			)
		}
	case protocol.ActionBroadcast:
		for _, rc := range res.Recipients {
			if err := rc.Send(res.Message); err != nil {
				h.logger.Warn("broadcast delivery failed",
					slog.String("connection_id", rc.ID()),
					slog.Any("error", err),
				)
			}
		}
	}
}
