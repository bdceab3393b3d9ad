package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"yoloview/internal/logger"
)

// ShowLogsHandler serves one of the level log files as text/plain.
func ShowLogsHandler(logger *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveLogFile(w, r, logger.Dir(), filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	if logDir == "" {
		http.Error(w, "File logging is disabled", http.StatusNotFound)
		return
	}
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates one of the level log files via the logger utility.
func ClearLogsHandler(logger *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := logger.CleanLogs(filename); err != nil {
			logger.Error("Error clearing %s: %v", filename, err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
