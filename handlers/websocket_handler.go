package handlers

import (
	"log/slog"
	"net/http"

	"github.com/frisbee-cz/evidence/middleware"
	"github.com/frisbee-cz/evidence/notifications"
	"github.com/frisbee-cz/evidence/repositories"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	hub    *notifications.Hub
	auth   *middleware.Authenticator
	agents repositories.AgentRepository
	logger *slog.Logger
}

func NewWebSocketHandler(hub *notifications.Hub, auth *middleware.Authenticator, agents repositories.AgentRepository, logger *slog.Logger) *WebSocketHandler {
	return &WebSocketHandler{hub: hub, auth: auth, agents: agents, logger: logger}
}

// ServeWs upgrades the connection and subscribes the caller to a club's
// notification stream. Browsers cannot set headers on websocket requests,
// so the token arrives as a query parameter.
func (h *WebSocketHandler) ServeWs(w http.ResponseWriter, r *http.Request) {
	clubID, err := getIDFromURL(r, "clubID")
	if err != nil {
		badRequestResponse(w, r, err)
		return
	}

	caller, err := h.auth.ParseToken(r.URL.Query().Get("token"))
	if err != nil {
		unauthorizedResponse(w, r, err.Error())
		return
	}

	if !caller.IsAdmin {
		ok, err := h.agents.HasActiveAffiliation(r.Context(), caller.AgentID, clubID)
		if err != nil {
			serverErrorResponse(w, r, err)
			return
		}
		if !ok {
			forbiddenResponse(w, r, "no active affiliation with this club")
			return
		}
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client on failure.
		h.logger.Warn("websocket upgrade failed",
			slog.Int("club_id", clubID),
			slog.Any("error", err),
		)
		return
	}

	client := notifications.NewClient(h.hub, conn, clubID)
	h.hub.Register <- client

	go client.WritePump()
	go client.ReadPump(h.logger)
}
