package websocket

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"
	"yoloview/internal/dto"
	"yoloview/internal/logger"

	"github.com/gorilla/websocket"
)

const (
	// broadcastBuffer is how many messages may wait for the hub loop before new ones are dropped.
	broadcastBuffer = 8
	writeWait       = 5 * time.Second
)

// HubService fans rendered frames and state changes out to every connected viewer.
type HubService struct {
	clients    map[*websocket.Conn]bool
	broadcast  chan []byte
	state      chan []byte
	register   chan *websocket.Conn
	unregister chan *websocket.Conn
	done       chan struct{}
	mutex      sync.RWMutex
	logger     *logger.Logger
}

func NewHubService(logger *logger.Logger) *HubService {
	return &HubService{
		clients:    make(map[*websocket.Conn]bool),
		broadcast:  make(chan []byte, broadcastBuffer),
		state:      make(chan []byte, 1),
		register:   make(chan *websocket.Conn),
		unregister: make(chan *websocket.Conn),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run serves register/unregister/broadcast until ctx is done, then closes every client.
func (h *HubService) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mutex.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mutex.Unlock()
			return

		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer connected. Total: %d", count)

		case client := <-h.unregister:
			h.mutex.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.Close()
			}
			count := len(h.clients)
			h.mutex.Unlock()
			h.logger.Info("Viewer disconnected. Total: %d", count)

		case message := <-h.broadcast:
			h.send(message)

		case message := <-h.state:
			h.send(message)
		}
	}
}

func (h *HubService) send(message []byte) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		client.SetWriteDeadline(time.Now().Add(writeWait))
		if err := client.WriteMessage(websocket.TextMessage, message); err != nil {
			h.logger.Error("Error sending message: %v", err)
			delete(h.clients, client)
			client.Close()
		}
	}
}

// Register adds a viewer. After Run has returned the connection is closed instead.
func (h *HubService) Register(client *websocket.Conn) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Close()
	}
}

func (h *HubService) Unregister(client *websocket.Conn) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Broadcast queues a raw message. When viewers are slower than the frame loop
// the message is dropped instead of blocking the caller.
func (h *HubService) Broadcast(message []byte) bool {
	select {
	case h.broadcast <- message:
		return true
	default:
		return false
	}
}

// PublishFrame sends an encoded frame to the viewers.
func (h *HubService) PublishFrame(jpeg []byte) {
	h.publish(dto.ViewerMessage{
		Type:  "frame",
		Image: base64.StdEncoding.EncodeToString(jpeg),
	})
}

// PublishState sends the camera session state to the viewers. State messages
// bypass the frame queue; a newer state replaces one the loop has not sent yet,
// so the latest state always reaches the viewers.
func (h *HubService) PublishState(state dto.SessionState) {
	data, err := json.Marshal(dto.ViewerMessage{Type: "state", State: &state})
	if err != nil {
		h.logger.Error("Error encoding viewer message: %v", err)
		return
	}
	for {
		select {
		case h.state <- data:
			return
		default:
		}
		select {
		case <-h.state:
		default:
		}
	}
}

func (h *HubService) publish(msg dto.ViewerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error encoding viewer message: %v", err)
		return
	}
	if !h.Broadcast(data) {
		h.logger.Warning("Viewer queue full - dropping %s message", msg.Type)
	}
}

func (h *HubService) GetClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}
