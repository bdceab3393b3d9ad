package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoad_Defaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "http://localhost:8000", cfg.BackendURL)
	assert.Equal(t, 200*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, time.Second, cfg.ErrorBackoff)
	assert.Equal(t, 10*time.Second, cfg.StreamTimeout)
	assert.Equal(t, 80, cfg.JPEGQuality)
	assert.Equal(t, int64(20<<20), cfg.MaxUploadSize)
	assert.Equal(t, 30*time.Minute, cfg.SessionIdle)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.CORSOrigins)
}

func TestLoad_FromEnvironment(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("BACKEND_URL", "http://detector:8000/")
	t.Setenv("FRAME_INTERVAL_MS", "500")
	t.Setenv("CORS_ORIGINS", "http://a.example, http://b.example,")

	cfg := Load()

	assert.Equal(t, 9090, cfg.Port)
	assert.Equal(t, "http://detector:8000", cfg.BackendURL)
	assert.Equal(t, 500*time.Millisecond, cfg.FrameInterval)
	assert.Equal(t, []string{"http://a.example", "http://b.example"}, cfg.CORSOrigins)
}

func TestLoad_ClampsPacing(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "frame interval below minimum",
			env:  map[string]string{"FRAME_INTERVAL_MS": "10"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, MinFrameInterval, cfg.FrameInterval)
			},
		},
		{
			name: "backoff below minimum",
			env:  map[string]string{"ERROR_BACKOFF_MS": "100"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, MinErrorBackoff, cfg.ErrorBackoff)
			},
		},
		{
			name: "session idle below a minute",
			env:  map[string]string{"SESSION_IDLE_MINUTES": "0"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, time.Minute, cfg.SessionIdle)
			},
		},
		{
			name: "quality out of range",
			env:  map[string]string{"JPEG_QUALITY": "250"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 80, cfg.JPEGQuality)
			},
		},
		{
			name: "garbage falls back to default",
			env:  map[string]string{"PORT": "abc"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 8080, cfg.Port)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			tt.check(t, Load())
		})
	}
}
