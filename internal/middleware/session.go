package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// SessionCookie holds the id that ties a browser to its upload flow.
const SessionCookie = "sid"

type sessionKey struct{}

// SessionMiddleware makes sure every API request carries a session id,
// issuing a new cookie when the browser has none.
func SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Strony statyczne i logi nie potrzebują sesji
		if !strings.HasPrefix(r.URL.Path, "/api/") {
			next.ServeHTTP(w, r)
			return
		}

		id := ""
		if cookie, err := r.Cookie(SessionCookie); err == nil {
			if parsed, err := uuid.Parse(cookie.Value); err == nil {
				id = parsed.String()
			}
		}
		if id == "" {
			id = uuid.NewString()
			http.SetCookie(w, &http.Cookie{
				Name:     SessionCookie,
				Value:    id,
				Path:     "/",
				HttpOnly: true,
				SameSite: http.SameSiteLaxMode,
			})
		}

		next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), id)))
	})
}

// WithSessionID stores a session id in ctx.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionKey{}, id)
}

// SessionID returns the session id set by SessionMiddleware, or "".
func SessionID(ctx context.Context) string {
	id, _ := ctx.Value(sessionKey{}).(string)
	return id
}
