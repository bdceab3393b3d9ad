package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
	"yoloview/internal/backend"
	"yoloview/internal/camera/opencv"
	"yoloview/internal/config"
	"yoloview/internal/logger"
	"yoloview/internal/repository/sqlite"
	"yoloview/internal/routes"
	"yoloview/internal/service/websocket"
	"yoloview/internal/stream"
	"yoloview/internal/upload"

	"go.uber.org/multierr"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 15 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	ledger     *sqlite.DB
	hubService *websocket.HubService
	controller *stream.Controller
	janitor    *upload.Janitor
	uploads    *upload.Registry
	server     *http.Server
}

func NewApp() (*App, error) {
	cfg := config.Load()
	log := logger.NewLogger(cfg)

	ledger, err := sqlite.OpenTemp()
	if err != nil {
		return nil, fmt.Errorf("opening request ledger: %w", err)
	}
	requests := sqlite.NewRequestRepository(ledger)
	log.Info("Request ledger at %s", ledger.Dir())

	client := backend.NewClient(cfg, log)
	hub := websocket.NewHubService(log)

	if found := opencv.ScanDevices(); len(found) > 0 {
		log.Info("Cameras found at indexes %v, using %d", found, cfg.CameraDevice)
	}
	controller := stream.NewController(cfg, opencv.NewDevice(cfg.CameraDevice), client, hub, log)

	janitor := upload.NewJanitor(client, requests, log)
	registry := upload.NewRegistry(client, requests, janitor, log)

	router := routes.SetupRoutes(routes.Services{
		Camera:     controller,
		Hub:        hub,
		Uploads:    registry,
		Janitor:    janitor,
		Downloader: client,
		Requests:   requests,
	}, cfg, log)

	return &App{
		config:     cfg,
		logger:     log,
		ledger:     ledger,
		hubService: hub,
		controller: controller,
		janitor:    janitor,
		uploads:    registry,
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Port),
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run serves HTTP until ctx is cancelled or the server fails, then shuts everything down.
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.hubService.Run(ctx)
		return nil
	})

	g.Go(func() error {
		a.uploads.Run(ctx, max(a.config.SessionIdle/4, time.Minute/4), a.config.SessionIdle)
		return nil
	})

	g.Go(func() error {
		a.logger.Info("YOLO viewer listening on http://localhost:%d", a.config.Port)
		a.logger.Info("Inference backend: %s", a.config.BackendURL)
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return a.shutdown(shutdownCtx)
	})

	return g.Wait()
}

// shutdown stops accepting requests, releases the camera and deletes every
// artifact this process left on the backend.
func (a *App) shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down")

	err := a.server.Shutdown(ctx)
	err = multierr.Append(err, a.controller.Close())
	err = multierr.Append(err, a.janitor.Shutdown(ctx))
	err = multierr.Append(err, a.ledger.Close())
	if err != nil {
		a.logger.Error("Shutdown finished with errors: %v", err)
	}
	return multierr.Append(err, a.logger.Close())
}
