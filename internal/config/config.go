package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	// MinFrameInterval is the smallest allowed delay between two frame sends.
	MinFrameInterval = 200 * time.Millisecond
	// MinErrorBackoff is the smallest allowed delay before retrying after a failed frame.
	MinErrorBackoff = 1000 * time.Millisecond
)

type Config struct {
	Port          int
	BackendURL    string
	CameraDevice  int
	FrameWidth    int
	FrameHeight   int
	CaptureFPS    int
	FrameInterval time.Duration // Pauza po udanej klatce
	ErrorBackoff  time.Duration // Pauza po błędzie backendu
	StreamTimeout time.Duration
	UploadTimeout time.Duration
	JPEGQuality   int
	MaxUploadSize int64 // w bajtach
	SessionIdle   time.Duration // Po tym czasie nieużywana sesja uploadu jest usuwana
	LogDirectory  string
	StaticDir     string
	CORSOrigins   []string
}

// Load reads an optional .env file and builds the configuration from the environment.
func Load() *Config {
	// Brak pliku .env nie jest błędem
	_ = godotenv.Load()

	cfg := &Config{
		Port:          getEnvAsInt("PORT", 8080),
		BackendURL:    strings.TrimRight(getEnv("BACKEND_URL", "http://localhost:8000"), "/"),
		CameraDevice:  getEnvAsInt("CAMERA_DEVICE", 0),
		FrameWidth:    getEnvAsInt("FRAME_WIDTH", 640),
		FrameHeight:   getEnvAsInt("FRAME_HEIGHT", 480),
		CaptureFPS:    getEnvAsInt("CAPTURE_FPS", 10),
		FrameInterval: getEnvAsMillis("FRAME_INTERVAL_MS", 200),
		ErrorBackoff:  getEnvAsMillis("ERROR_BACKOFF_MS", 1000),
		StreamTimeout: getEnvAsMillis("STREAM_TIMEOUT_MS", 10000),
		UploadTimeout: getEnvAsMillis("UPLOAD_TIMEOUT_MS", 60000),
		JPEGQuality:   getEnvAsInt("JPEG_QUALITY", 80),
		MaxUploadSize: getEnvAsInt64("MAX_UPLOAD_MB", 20) << 20,
		SessionIdle:   time.Duration(getEnvAsInt("SESSION_IDLE_MINUTES", 30)) * time.Minute,
		LogDirectory:  getEnv("LOG_DIR", filepath.Join(".", "logs")),
		StaticDir:     getEnv("STATIC_DIR", filepath.Join(".", "static")),
		CORSOrigins:   getEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}),
	}
	cfg.clamp()
	return cfg
}

// clamp keeps pacing and quality values inside the ranges the frame loop relies on.
func (c *Config) clamp() {
	if c.FrameInterval < MinFrameInterval {
		c.FrameInterval = MinFrameInterval
	}
	if c.ErrorBackoff < MinErrorBackoff {
		c.ErrorBackoff = MinErrorBackoff
	}
	if c.JPEGQuality < 1 || c.JPEGQuality > 100 {
		c.JPEGQuality = 80
	}
	if c.StreamTimeout <= 0 {
		c.StreamTimeout = 10 * time.Second
	}
	if c.SessionIdle < time.Minute {
		c.SessionIdle = time.Minute
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsMillis(key string, defaultValue int) time.Duration {
	return time.Duration(getEnvAsInt(key, defaultValue)) * time.Millisecond
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}
