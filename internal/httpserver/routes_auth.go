// internal/httpserver/routes_auth.go
//
// Account endpoints under /api/auth:
//   POST /register         -> create account, return {user, token}
//   POST /login            -> verify credentials, return {user, token}
//   GET  /me               -> current user (requires auth)
//   PUT  /change-password  -> verify current password, store new hash (requires auth)
//   POST /logout           -> acknowledgement; tokens are stateless (requires auth)
//
// register and login sit behind the per-IP rate limiter.

package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/gardenshare/internal/auth"
	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/models"
)

type registerReq struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Name     string `json:"name" validate:"required,max=120"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
}

func (q *registerReq) normalize() {
	q.Email = normalizeEmail(q.Email)
	q.Name = strings.TrimSpace(q.Name)
	q.Phone = strings.TrimSpace(q.Phone)
}

type loginReq struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

func (q *loginReq) normalize() { q.Email = normalizeEmail(q.Email) }

type changePasswordReq struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6,max=72"`
}

type authRes struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

func normalizeEmail(e string) string { return strings.ToLower(strings.TrimSpace(e)) }

func (s *Server) users() datastore.Table[models.User] {
	return datastore.From[models.User](s.db, models.TableUsers)
}

func (s *Server) mountAuth(r chi.Router) {
	limited := r.With(rateLimit(s.opts.AuthRatePerMinute))
	limited.Post("/register", s.handleRegister)
	limited.Post("/login", s.handleLogin)

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Get("/me", s.handleMe)
		r.Put("/change-password", s.handleChangePassword)
		r.Post("/logout", s.handleLogout)
	})
}

// handleRegister creates an account. Duplicate emails are rejected up front
// and again by the unique index if two registrations race.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerReq
	if !s.bind(w, r, &req) {
		return
	}

	exists := s.users().Eq("email", req.Email).Count(r.Context())
	if err := exists.Err(); err != nil {
		serverError(w, r, err, "register: lookup email")
		return
	}
	if n, _ := exists.Unwrap(); n > 0 {
		writeError(w, http.StatusBadRequest, "User already exists with this email")
		return
	}

	hash, err := s.passwords.Hash(req.Password)
	if err != nil {
		serverError(w, r, err, "register: hash password")
		return
	}

	res := s.users().Insert(r.Context(), &models.User{
		Email:        req.Email,
		PasswordHash: hash,
		Name:         req.Name,
		Phone:        req.Phone,
	})
	if res.Conflict() {
		writeError(w, http.StatusBadRequest, "User already exists with this email")
		return
	}
	u, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "register: insert user")
		return
	}

	tok, err := s.tokens.Issue(identityOf(u))
	if err != nil {
		serverError(w, r, err, "register: issue token")
		return
	}
	hlog.FromRequest(r).Info().Str("user_id", u.ID).Msg("user registered")
	writeOK(w, http.StatusCreated, "User registered successfully", authRes{User: u, Token: tok})
}

// handleLogin answers the same 401 for unknown emails and wrong passwords.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginReq
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	req.normalize()
	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Please provide email and password")
		return
	}

	res := s.users().Eq("email", req.Email).Single(r.Context())
	if res.NotFound() {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	u, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "login: load user")
		return
	}
	if !s.passwords.Check(u.PasswordHash, req.Password) {
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tok, err := s.tokens.Issue(identityOf(u))
	if err != nil {
		serverError(w, r, err, "login: issue token")
		return
	}
	writeOK(w, http.StatusOK, "Login successful", authRes{User: u, Token: tok})
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "", map[string]any{"user": currentUser(r)})
}

func (s *Server) handleChangePassword(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	var req changePasswordReq
	if !s.bind(w, r, &req) {
		return
	}
	if !s.passwords.Check(me.PasswordHash, req.CurrentPassword) {
		writeError(w, http.StatusUnauthorized, "Current password is incorrect")
		return
	}

	hash, err := s.passwords.Hash(req.NewPassword)
	if err != nil {
		serverError(w, r, err, "change password: hash")
		return
	}
	res := s.users().Eq("id", me.ID).Update(r.Context(), map[string]any{"password_hash": hash})
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err := res.Err(); err != nil {
		serverError(w, r, err, "change password: update")
		return
	}
	writeOK(w, http.StatusOK, "Password updated successfully", nil)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	writeOK(w, http.StatusOK, "Logged out successfully", nil)
}

func identityOf(u models.User) auth.Identity {
	return auth.Identity{ID: u.ID, Email: u.Email, Name: u.Name}
}
