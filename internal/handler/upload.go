package handler

import (
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"yoloview/internal/config"
	"yoloview/internal/dto"
	"yoloview/internal/logger"
	"yoloview/internal/middleware"
	"yoloview/internal/upload"
)

// SelectUploadHandler stores the multipart "file" field as the session's selected image.
func SelectUploadHandler(registry *upload.Registry, cfg *config.Config, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > cfg.MaxUploadSize {
			writeError(w, http.StatusRequestEntityTooLarge, "File too large")
			return
		}
		r.Body = http.MaxBytesReader(w, r.Body, cfg.MaxUploadSize)

		file, header, err := r.FormFile("file")
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				writeError(w, http.StatusRequestEntityTooLarge, "File too large")
				return
			}
			writeError(w, http.StatusBadRequest, "File field is required")
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			logger.Error("Error reading uploaded file: %v", err)
			writeError(w, http.StatusBadRequest, "Could not read file")
			return
		}

		flow := registry.Flow(middleware.SessionID(r.Context()))
		flow.Select(filepath.Base(header.Filename), data)
		writeJSON(w, http.StatusOK, flow.State())
	}
}

// ProcessUploadHandler sends the selected image to the backend and returns the new upload state.
func ProcessUploadHandler(registry *upload.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		flow := registry.Flow(middleware.SessionID(r.Context()))

		_, err := flow.Process(r.Context())
		switch {
		case err == nil:
			writeJSON(w, http.StatusOK, flow.State())
		case errors.Is(err, upload.ErrNoFile):
			writeError(w, http.StatusBadRequest, "Please select a file first")
		case errors.Is(err, upload.ErrBusy):
			writeError(w, http.StatusConflict, err.Error())
		default:
			// Szczegóły są w logach, użytkownik dostaje ogólny komunikat
			writeJSON(w, http.StatusBadGateway, flow.State())
		}
	}
}

// GetUploadHandler returns the upload state of the caller's session.
func GetUploadHandler(registry *upload.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, registry.Flow(middleware.SessionID(r.Context())).State())
	}
}

// UploadHistoryHandler lists the uploads processed for the caller's session, newest first.
func UploadHistoryHandler(ledger RequestLedger, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requests, err := ledger.ListBySession(middleware.SessionID(r.Context()))
		if err != nil {
			logger.Error("Error listing uploads: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}

		records := make([]dto.UploadRecord, 0, len(requests))
		for _, req := range requests {
			record := dto.UploadRecord{
				RequestID: req.RequestID,
				Filename:  req.Filename,
				CreatedAt: req.CreatedAt,
				Cleaned:   req.Cleaned,
			}
			if !req.Cleaned {
				record.ImageURL = upload.DownloadPath(req.RequestID, req.AnnotatedFilename)
				record.ReportURL = upload.DownloadPath(req.RequestID, req.PDFFilename)
			}
			records = append(records, record)
		}
		writeJSON(w, http.StatusOK, records)
	}
}
