package httpserver

import (
	"context"
	"errors"
	"net/http"
	"runtime/debug"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/gardenshare/internal/auth"
	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/models"
)

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

var accessLog = hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
	hlog.FromRequest(r).Info().
		Str("req_id", chimw.GetReqID(r.Context())).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", status).
		Int("size", size).
		Dur("duration", d).
		Msg("request")
})

// recoverer turns a panic into a logged JSON 500.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}
			hlog.FromRequest(r).Error().
				Interface("panic", rec).
				Bytes("stack", debug.Stack()).
				Msg("recovered panic")
			writeError(w, http.StatusInternalServerError, "Internal server error")
		}()
		next.ServeHTTP(w, r)
	})
}

// timeout bounds handler time. A handler that runs out of time without
// answering gets a JSON 504; one that answers keeps its own response.
func timeout(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))
			if errors.Is(ctx.Err(), context.DeadlineExceeded) && ww.Status() == 0 {
				writeError(w, http.StatusGatewayTimeout, msgTimedOut)
			}
		})
	}
}

// ------------------------------ AUTH ---------------------------------------

type ctxUserKey struct{}

// currentUser returns the account loaded by requireAuth.
func currentUser(r *http.Request) *models.User {
	u, _ := r.Context().Value(ctxUserKey{}).(*models.User)
	return u
}

// tokenMessage maps header and token failures to their client messages.
func tokenMessage(err error) string {
	switch {
	case errors.Is(err, auth.ErrMissingHeader):
		return "No authorization header provided"
	case errors.Is(err, auth.ErrBadScheme):
		return "Invalid authorization format. Use: Bearer <token>"
	case errors.Is(err, auth.ErrMissingToken):
		return "No token provided"
	case errors.Is(err, auth.ErrTokenExpired):
		return "Token expired"
	}
	return "Invalid token"
}

// requireAuth enforces a valid bearer token whose user still exists and
// attaches that user to the request context.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tok, err := auth.BearerToken(r)
		if err != nil {
			writeError(w, http.StatusUnauthorized, tokenMessage(err))
			return
		}
		id, err := s.tokens.Verify(tok)
		if err != nil {
			writeError(w, http.StatusUnauthorized, tokenMessage(err))
			return
		}

		res := datastore.From[models.User](s.db, models.TableUsers).Eq("id", id.ID).Single(r.Context())
		if res.NotFound() {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		u, err := res.Unwrap()
		if err != nil {
			serverError(w, r, err, "auth: load user")
			return
		}

		hlog.FromRequest(r).UpdateContext(func(c zerolog.Context) zerolog.Context {
			return c.Str("user_id", u.ID)
		})
		ctx := context.WithValue(r.Context(), ctxUserKey{}, &u)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --------------------------- RATE LIMITING ---------------------------------

// rateLimit answers 429 once a client IP exceeds perMinute requests in a
// sliding one-minute window. perMinute <= 0 disables limiting.
func rateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusTooManyRequests, "Too many requests, please try again later")
		}),
	)
}
