package sockets

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
	"github.com/lumenchat/lumen/internal/infrastructure/configs"
	"github.com/lumenchat/lumen/internal/infrastructure/identity"
	"github.com/lumenchat/lumen/internal/infrastructure/json"
	"github.com/lumenchat/lumen/internal/infrastructure/logging"
	"github.com/lumenchat/lumen/internal/infrastructure/ws"
)

type Handler struct {
	hub      *ws.Hub
	verifier identity.Verifier
	upgrader websocket.Upgrader
	cfg      configs.WSConfig
	logger   logging.Logger
}

func NewHandler(hub *ws.Hub, verifier identity.Verifier, cfg configs.WSConfig, logger logging.Logger) *Handler {
	return &Handler{
		hub:      hub,
		verifier: verifier,
		cfg:      cfg,
		logger:   logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  cfg.ReadBufferSize,
			WriteBufferSize: cfg.WriteBufferSize,
			CheckOrigin: func(r *http.Request) bool {
				return true // origin policy is enforced by the edge proxy
			},
		},
	}
}

// ConnectHandler verifies the client's identity, upgrades the connection
// and registers it with the hub, which auto-joins the private user room.
func (h *Handler) ConnectHandler(w http.ResponseWriter, r *http.Request) {
	token := extractToken(r)
	if token == "" {
		json.WriteError(w, http.StatusUnauthorized, errors.New("missing token"), "Authentication required")
		return
	}

	userID, err := h.verifier.Verify(r.Context(), token)
	if err != nil {
		if errors.Is(err, identity.ErrUnauthorized) {
			json.WriteError(w, http.StatusUnauthorized, err, "Invalid token")
			return
		}
		h.logger.Error(logging.WebSocket, logging.Connection, "identity verification failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		json.WriteInternalError(w, err)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn(logging.WebSocket, logging.Connection, "ws upgrade failed", map[logging.ExtraKey]any{
			logging.ErrorMessage: err.Error(),
		})
		return
	}

	client := ws.NewClient(conn, userID, h.cfg.SendBuffer, h.cfg.PongTimeout, h.logger)
	h.hub.Register(client)

	go client.WritePump()
	go client.ReadPump(h.hub)
}

func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
		return strings.TrimPrefix(auth, "Bearer ")
	}
	return r.URL.Query().Get("token")
}
