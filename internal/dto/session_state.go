package dto

// SessionState is the camera session as shown to the user.
type SessionState struct {
	CameraAvailable bool   `json:"cameraAvailable"`
	Streaming       bool   `json:"streaming"`
	Processing      bool   `json:"processing"`
	State           string `json:"state"`
}

// StreamStats counts what the frame loop has done since it was created.
type StreamStats struct {
	Iterations int64  `json:"iterations"`
	Rendered   int64  `json:"rendered"`
	Failures   int64  `json:"failures"`
	Dropped    int64  `json:"dropped"`
	LastError  string `json:"lastError,omitempty"`
}

// CameraStatus is the payload of GET /api/camera.
type CameraStatus struct {
	Session SessionState `json:"session"`
	Stats   StreamStats  `json:"stats"`
	Viewers int          `json:"viewers"`
}
