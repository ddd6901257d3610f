package session

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/rs/xid"
)

// CookieName is the cookie that carries the signed session token.
const CookieName = "playground_session"

// contextKey is unexported so no other package can read or shadow the
// session ID stored in a request context.
type contextKey string

const sessionIDKey contextKey = "sessionID"

// Ensure is a middleware that guarantees every request has a session.
//
// A valid playground_session cookie is trusted as-is. A missing, expired or
// tampered one is replaced: a new session ID is minted and the cookie is set
// on the response before the handler runs. Either way the handler can read
// the ID with IDFromContext.
//
// The cookie is HttpOnly so snippet output rendered in the page can never
// read it. secure should be true when the site is served over HTTPS.
func Ensure(tokens *TokenService, secure bool, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, err := fromCookie(r, tokens)
			if err != nil {
				id = xid.New().String()
				token, err := tokens.Generate(id)
				if err != nil {
					logger.Error("failed to issue session token", slog.String("error", err.Error()))
					http.Error(w, `{"error":"internal","message":"an unexpected error occurred"}`, http.StatusInternalServerError)
					return
				}
				http.SetCookie(w, &http.Cookie{
					Name:     CookieName,
					Value:    token,
					Path:     "/",
					MaxAge:   int(tokens.TTL().Seconds()),
					HttpOnly: true,
					Secure:   secure,
					SameSite: http.SameSiteLaxMode,
				})
				logger.Debug("session started", slog.String("session_id", id))
			}

			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

// WithID returns a copy of ctx carrying the session ID.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// IDFromContext retrieves the session ID set by Ensure.
//
// Returns ("", false) when the request did not pass through Ensure.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(sessionIDKey).(string)
	return id, ok && id != ""
}

func fromCookie(r *http.Request, tokens *TokenService) (string, error) {
	cookie, err := r.Cookie(CookieName)
	if err != nil {
		return "", err
	}
	return tokens.Validate(cookie.Value)
}
