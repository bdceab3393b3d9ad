package routes

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"yoloview/internal/config"
	"yoloview/internal/handler"
	"yoloview/internal/logger"
	"yoloview/internal/middleware"
	"yoloview/internal/service/websocket"
	"yoloview/internal/upload"
)

// Services are the long-lived components the HTTP API exposes.
type Services struct {
	Camera     handler.CameraController
	Hub        *websocket.HubService
	Uploads    *upload.Registry
	Janitor    handler.Releaser
	Downloader handler.Downloader
	Requests   handler.RequestLedger
}

// dynamicHTMLHandler serves /path as <staticDir>/path.html if the file exists; otherwise 404.
func dynamicHTMLHandler(staticDir string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path

		if path == "/" {
			path = "/index"
		}
		if strings.Contains(path, "..") {
			http.NotFound(w, r)
			return
		}

		filePath := filepath.Join(staticDir, path+".html")

		if _, err := os.Stat(filePath); os.IsNotExist(err) {
			http.NotFound(w, r)
			return
		}

		http.ServeFile(w, r, filePath)
	}
}

// SetupRoutes registers HTTP routes, static file serving and API endpoints,
// and wraps the mux with the session and CORS middleware.
func SetupRoutes(services Services, cfg *config.Config, logger *logger.Logger) http.Handler {
	mux := http.NewServeMux()

	// Static files
	mux.Handle("GET /static/", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.StaticDir))))

	// Camera
	mux.HandleFunc("GET /api/camera", handler.GetCameraHandler(services.Camera, services.Hub))
	mux.HandleFunc("POST /api/camera/start", handler.StartCameraHandler(services.Camera, logger))
	mux.HandleFunc("POST /api/camera/stop", handler.StopCameraHandler(services.Camera, logger))
	mux.HandleFunc("GET /api/view", handler.ViewWebsocketHandler(services.Hub, services.Camera, logger))

	// Static upload flow
	mux.HandleFunc("GET /api/upload", handler.GetUploadHandler(services.Uploads))
	mux.HandleFunc("POST /api/upload/select", handler.SelectUploadHandler(services.Uploads, cfg, logger))
	mux.HandleFunc("POST /api/upload/process", handler.ProcessUploadHandler(services.Uploads))
	mux.HandleFunc("GET /api/upload/history", handler.UploadHistoryHandler(services.Requests, logger))
	mux.HandleFunc("GET /api/download/{request_id}/{filename}", handler.DownloadHandler(services.Downloader, services.Requests, logger))
	mux.HandleFunc("DELETE /api/cleanup/{request_id}", handler.CleanupHandler(services.Janitor, services.Requests, logger))

	// Log endpoints
	for _, level := range []string{"info", "warning", "error"} {
		filename := level + ".log"
		mux.HandleFunc("GET /logs/"+level, handler.ShowLogsHandler(logger, filename))
		mux.HandleFunc("POST /logs/"+level+"/clear", handler.ClearLogsHandler(logger, filename))
	}

	// Automatic HTML handler mapping for example: /upload -> static/upload.html
	mux.HandleFunc("GET /", dynamicHTMLHandler(cfg.StaticDir))

	// Apply middleware
	return middleware.CORSMiddleware(cfg.CORSOrigins, middleware.SessionMiddleware(mux))
}
