package repository

import (
	"yoloview/internal/model"
)

// RequestRepository defines the interface for the processed-request ledger.
type RequestRepository interface {
	// Create operations
	Insert(req *model.Request) (int64, error)

	// Read operations
	GetByRequestID(requestID string) (*model.Request, error)
	ListBySession(sessionID string) ([]model.Request, error)
	ListPending() ([]model.Request, error)

	// Update operations
	MarkCleaned(requestID string) error
}
