package handler

import (
	"net/http"
	"yoloview/internal/dto"
	"yoloview/internal/logger"
	"yoloview/internal/service/websocket"

	gorilla "github.com/gorilla/websocket"
)

// Upgrader upgrades HTTP connections to WebSocket; CheckOrigin allows all origins.
var Upgrader = gorilla.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// SessionSource reports the camera session state.
type SessionSource interface {
	Session() dto.SessionState
}

// ViewWebsocketHandler handles viewer connections over WebSocket and
// registers them in the HubService to receive rendered frames and state changes.
func ViewWebsocketHandler(hub *websocket.HubService, session SessionSource, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		connection, err := Upgrader.Upgrade(w, r, nil)
		if err != nil {
			logger.Error("WebSocket upgrade error: %v", err)
			return
		}

		hub.Register(connection)
		defer hub.Unregister(connection)

		// Nowy widz od razu dostaje aktualny stan sesji
		hub.PublishState(session.Session())
		logger.Info("Viewer connected")

		for {
			_, _, err := connection.ReadMessage()
			if err != nil {
				if gorilla.IsCloseError(err, gorilla.CloseNormalClosure, gorilla.CloseGoingAway) {
					logger.Info("Viewer disconnected normally")
				} else {
					logger.Error("Viewer disconnected with error: %v", err)
				}
				break
			}
		}
	}
}
