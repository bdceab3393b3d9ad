package dto

// ViewerMessage is what the hub sends to websocket viewers.
type ViewerMessage struct {
	Type  string        `json:"type"` // "frame" albo "state"
	Image string        `json:"image,omitempty"`
	State *SessionState `json:"state,omitempty"`
}
