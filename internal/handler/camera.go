package handler

import (
	"context"
	"errors"
	"net/http"
	"yoloview/internal/camera"
	"yoloview/internal/dto"
	"yoloview/internal/logger"
	"yoloview/internal/stream"
)

// CameraController is the part of the frame loop the HTTP API drives.
type CameraController interface {
	Start(ctx context.Context) error
	Stop() error
	Session() dto.SessionState
	Stats() dto.StreamStats
}

// ViewerCounter reports how many live viewers are connected.
type ViewerCounter interface {
	GetClientCount() int
}

// GetCameraHandler returns the session state, loop counters and viewer count.
func GetCameraHandler(controller CameraController, viewers ViewerCounter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dto.CameraStatus{
			Session: controller.Session(),
			Stats:   controller.Stats(),
			Viewers: viewers.GetClientCount(),
		})
	}
}

// StartCameraHandler opens the camera and starts streaming frames to the backend.
func StartCameraHandler(controller CameraController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := controller.Start(r.Context())
		switch {
		case err == nil:
			logger.Info("Camera started")
			writeJSON(w, http.StatusOK, controller.Session())
		case errors.Is(err, stream.ErrAlreadyRunning):
			writeError(w, http.StatusConflict, err.Error())
		case errors.Is(err, stream.ErrStartCancelled):
			logger.Info("Camera start cancelled by stop")
			writeError(w, http.StatusConflict, "Camera was stopped while starting")
		case errors.Is(err, camera.ErrDeviceUnavailable):
			logger.Warning("Camera start refused: %v", err)
			writeError(w, http.StatusServiceUnavailable, "Camera is not available")
		default:
			logger.Error("Error starting camera: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
		}
	}
}

// StopCameraHandler stops streaming and releases the camera.
func StopCameraHandler(controller CameraController, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := controller.Stop(); err != nil {
			logger.Error("Error stopping camera: %v", err)
			writeError(w, http.StatusInternalServerError, "Internal Server Error")
			return
		}
		logger.Info("Camera stopped")
		writeJSON(w, http.StatusOK, controller.Session())
	}
}
