package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"yoloview/internal/model"
)

// RequestRepository implements repository.RequestRepository for SQLite.
type RequestRepository struct {
	db *DB
}

// NewRequestRepository creates a new SQLite request repository.
func NewRequestRepository(db *DB) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `id, request_id, session_id, filename, annotated_filename, pdf_filename, created_at, cleaned`

// Insert records a processed request. CreatedAt defaults to now.
func (r *RequestRepository) Insert(req *model.Request) (int64, error) {
	r.db.Lock()
	defer r.db.Unlock()

	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now()
	}

	result, err := r.db.Conn().Exec(`
		INSERT INTO requests (request_id, session_id, filename, annotated_filename, pdf_filename, created_at, cleaned)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, req.RequestID, req.SessionID, req.Filename, req.AnnotatedFilename, req.PDFFilename, req.CreatedAt, req.Cleaned)
	if err != nil {
		return 0, fmt.Errorf("failed to insert request: %w", err)
	}

	return result.LastInsertId()
}

// GetByRequestID retrieves a request by its backend id. It returns nil, nil when missing.
func (r *RequestRepository) GetByRequestID(requestID string) (*model.Request, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	row := r.db.Conn().QueryRow(`SELECT `+requestColumns+` FROM requests WHERE request_id = ?`, requestID)
	req, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get request: %w", err)
	}
	return req, nil
}

// ListBySession returns the requests of one browser session, newest first.
func (r *RequestRepository) ListBySession(sessionID string) ([]model.Request, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.list(`SELECT `+requestColumns+` FROM requests WHERE session_id = ? ORDER BY created_at DESC, id DESC`, sessionID)
}

// ListPending returns the requests whose artifacts have not been cleaned yet, oldest first.
func (r *RequestRepository) ListPending() ([]model.Request, error) {
	r.db.RLock()
	defer r.db.RUnlock()

	return r.list(`SELECT ` + requestColumns + ` FROM requests WHERE cleaned = 0 ORDER BY created_at, id`)
}

// MarkCleaned flags the artifacts of a request as deleted on the backend.
func (r *RequestRepository) MarkCleaned(requestID string) error {
	r.db.Lock()
	defer r.db.Unlock()

	if _, err := r.db.Conn().Exec(`UPDATE requests SET cleaned = 1 WHERE request_id = ?`, requestID); err != nil {
		return fmt.Errorf("failed to mark request cleaned: %w", err)
	}
	return nil
}

func (r *RequestRepository) list(query string, args ...interface{}) ([]model.Request, error) {
	rows, err := r.db.Conn().Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", err)
	}
	defer rows.Close()

	var requests []model.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan request: %w", err)
		}
		requests = append(requests, *req)
	}
	return requests, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRequest(s scanner) (*model.Request, error) {
	var req model.Request
	err := s.Scan(&req.ID, &req.RequestID, &req.SessionID, &req.Filename,
		&req.AnnotatedFilename, &req.PDFFilename, &req.CreatedAt, &req.Cleaned)
	if err != nil {
		return nil, err
	}
	return &req, nil
}
