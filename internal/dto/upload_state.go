package dto

import "time"

// UploadState is the static upload flow as shown to the user.
type UploadState struct {
	SelectedFile string           `json:"selectedFile,omitempty"`
	Loading      bool             `json:"loading"`
	Error        string           `json:"error,omitempty"`
	Result       *ProcessedResult `json:"result,omitempty"`
	ImageURL     string           `json:"imageUrl,omitempty"`  // Adnotowany obraz
	ReportURL    string           `json:"reportUrl,omitempty"` // Raport PDF
}

// UploadRecord is one processed upload of the session, as listed by GET /api/upload/history.
type UploadRecord struct {
	RequestID string    `json:"requestId"`
	Filename  string    `json:"filename"`
	CreatedAt time.Time `json:"createdAt"`
	Cleaned   bool      `json:"cleaned"`
	ImageURL  string    `json:"imageUrl,omitempty"`
	ReportURL string    `json:"reportUrl,omitempty"`
}
