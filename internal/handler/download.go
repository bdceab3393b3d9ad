package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"yoloview/internal/backend"
	"yoloview/internal/logger"
	"yoloview/internal/middleware"
	"yoloview/internal/model"
)

// Downloader fetches artifacts from the backend.
type Downloader interface {
	Download(ctx context.Context, requestID, filename string) (io.ReadCloser, string, error)
}

// Releaser schedules the cleanup of a request's artifacts.
type Releaser interface {
	Release(requestID string)
}

// RequestLedger looks up the requests processed for browser sessions.
type RequestLedger interface {
	GetByRequestID(requestID string) (*model.Request, error)
	ListBySession(sessionID string) ([]model.Request, error)
}

// ownedRequest resolves {request_id} and checks that it belongs to the caller's
// session. Requests of other sessions look exactly like missing ones.
func ownedRequest(w http.ResponseWriter, r *http.Request, ledger RequestLedger, logger *logger.Logger) (*model.Request, bool) {
	requestID := r.PathValue("request_id")
	if requestID == "" {
		writeError(w, http.StatusBadRequest, "Request id is required")
		return nil, false
	}

	req, err := ledger.GetByRequestID(requestID)
	if err != nil {
		logger.Error("Error looking up request %s: %v", requestID, err)
		writeError(w, http.StatusInternalServerError, "Internal Server Error")
		return nil, false
	}
	if req == nil || req.SessionID != middleware.SessionID(r.Context()) {
		writeError(w, http.StatusNotFound, "Request not found")
		return nil, false
	}
	return req, true
}

// DownloadHandler proxies GET /api/download/{request_id}/{filename} to the backend.
func DownloadHandler(downloader Downloader, ledger RequestLedger, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filename := r.PathValue("filename")
		if filename == "" {
			writeError(w, http.StatusBadRequest, "Request id and filename are required")
			return
		}
		req, ok := ownedRequest(w, r, ledger, logger)
		if !ok {
			return
		}
		requestID := req.RequestID

		body, contentType, err := downloader.Download(r.Context(), requestID, filename)
		if err != nil {
			var serverErr *backend.ServerError
			if errors.As(err, &serverErr) && serverErr.StatusCode == http.StatusNotFound {
				writeError(w, http.StatusNotFound, "File not found")
				return
			}
			logger.Error("Error downloading %s/%s: %v", requestID, filename, err)
			writeError(w, http.StatusBadGateway, "Backend unavailable")
			return
		}
		defer body.Close()

		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.Header().Set("Cache-Control", "no-cache")
		if _, err := io.Copy(w, body); err != nil {
			logger.Warning("Error streaming %s/%s: %v", requestID, filename, err)
		}
	}
}

// CleanupHandler asks the backend to delete the artifacts of one of the
// caller's requests without waiting for it.
func CleanupHandler(releaser Releaser, ledger RequestLedger, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		req, ok := ownedRequest(w, r, ledger, logger)
		if !ok {
			return
		}
		if !req.Cleaned {
			releaser.Release(req.RequestID)
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
