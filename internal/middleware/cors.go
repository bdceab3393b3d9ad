package middleware

import (
	"net/http"

	"github.com/rs/cors"
)

// CORSMiddleware lets a separately hosted frontend call the API with its session cookie.
func CORSMiddleware(origins []string, next http.Handler) http.Handler {
	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodDelete},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}).Handler(next)
}
