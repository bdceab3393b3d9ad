package model

import "time"

// Request is one processed upload whose artifacts live on the backend.
type Request struct {
	ID                int64     `json:"id"`
	RequestID         string    `json:"request_id"`
	SessionID         string    `json:"session_id"`
	Filename          string    `json:"filename"`
	AnnotatedFilename string    `json:"annotated_filename"`
	PDFFilename       string    `json:"pdf_filename"`
	CreatedAt         time.Time `json:"created_at"`
	Cleaned           bool      `json:"cleaned"`
}
