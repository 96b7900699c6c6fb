package httpserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/gardenshare/internal/auth"
	"github.com/robalobadob/gardenshare/internal/models"
)

func TestRegister(t *testing.T) {
	h := newHarness(t)
	rp := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "  Alice@Example.com ", "password": "secret123", "name": " Alice ", "phone": "555-0100",
	})
	require.Equal(t, http.StatusCreated, rp.Code, rp.Error)
	assert.True(t, rp.Success)
	assert.Equal(t, "User registered successfully", rp.Message)
	assert.NotContains(t, string(rp.Data), "password")

	var out authRes
	rp.into(t, &out)
	assert.NotEmpty(t, out.Token)
	assert.NotEmpty(t, out.User.ID)
	assert.Equal(t, "alice@example.com", out.User.Email)
	assert.Equal(t, "Alice", out.User.Name)
	assert.Equal(t, "555-0100", out.User.Phone)

	id, err := h.srv.tokens.Verify(out.Token)
	require.NoError(t, err)
	assert.Equal(t, out.User.ID, id.ID)

	stored, err := h.srv.users().Eq("id", out.User.ID).Single(testCtx()).Unwrap()
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", stored.PasswordHash)
	assert.True(t, h.srv.passwords.Check(stored.PasswordHash, "secret123"))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h := newHarness(t)
	h.register("bob@example.com", "Bob")

	rp := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": "BOB@example.com", "password": "another1", "name": "Bobby",
	})
	assert.Equal(t, http.StatusBadRequest, rp.Code)
	assert.False(t, rp.Success)
	assert.Equal(t, "User already exists with this email", rp.Error)

	n, err := h.srv.users().Eq("email", "bob@example.com").Count(testCtx()).Unwrap()
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	cases := []struct {
		name string
		body any
		want string
	}{
		{"short password", map[string]string{"email": "c@example.com", "password": "12345", "name": "C"}, "password must be at least 6 characters"},
		{"bad email", map[string]string{"email": "not-an-email", "password": "123456", "name": "C"}, "Please provide a valid email"},
		{"missing name", map[string]string{"email": "c@example.com", "password": "123456"}, "name is required"},
		{"blank name", map[string]string{"email": "c@example.com", "password": "123456", "name": "   "}, "name is required"},
		{"bad json", "{nope", "Invalid JSON body"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rp := h.do(http.MethodPost, "/api/auth/register", "", tc.body)
			assert.Equal(t, http.StatusBadRequest, rp.Code)
			assert.Contains(t, rp.Error, tc.want)
		})
	}

	n, err := h.srv.users().Count(testCtx()).Unwrap()
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestLogin(t *testing.T) {
	h := newHarness(t)
	_, u := h.register("carol@example.com", "Carol")

	rp := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "Carol@Example.com", "password": "secret123",
	})
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	var out authRes
	rp.into(t, &out)
	assert.Equal(t, u.ID, out.User.ID)

	id, err := auth.NewTokens(testSecret, 0).Verify(out.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.Identity{ID: u.ID, Email: "carol@example.com", Name: "Carol"}, id)

	rp = h.do(http.MethodGet, "/api/auth/me", out.Token, nil)
	assert.Equal(t, http.StatusOK, rp.Code)
}

func TestLoginFailuresLookTheSame(t *testing.T) {
	h := newHarness(t)
	h.register("dave@example.com", "Dave")

	wrongPassword := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "dave@example.com", "password": "wrong-one",
	})
	unknownEmail := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "nobody@example.com", "password": "secret123",
	})
	for _, rp := range []reply{wrongPassword, unknownEmail} {
		assert.Equal(t, http.StatusUnauthorized, rp.Code)
		assert.Equal(t, "Invalid credentials", rp.Error)
		assert.Empty(t, rp.Data)
	}

	rp := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "dave@example.com"})
	assert.Equal(t, http.StatusBadRequest, rp.Code)
	assert.Equal(t, "Please provide email and password", rp.Error)
}

func TestMe(t *testing.T) {
	h := newHarness(t)
	tok, u := h.register("erin@example.com", "Erin")

	rp := h.do(http.MethodGet, "/api/auth/me", tok, nil)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	var out struct {
		User models.User `json:"user"`
	}
	rp.into(t, &out)
	assert.Equal(t, u.ID, out.User.ID)
	assert.Equal(t, "erin@example.com", out.User.Email)
	assert.NotContains(t, string(rp.Data), "password_hash")
}

func TestTokenFailures(t *testing.T) {
	h := newHarness(t)
	_, u := h.register("frank@example.com", "Frank")

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &auth.Claims{
		ID: u.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)

	forged, err := auth.NewTokens("someone-else", 0).Issue(auth.Identity{ID: u.ID})
	require.NoError(t, err)

	cases := []struct {
		name   string
		header string
		want   string
	}{
		{"missing header", "", "No authorization header provided"},
		{"wrong scheme", "Basic abc", "Invalid authorization format. Use: Bearer <token>"},
		{"empty token", "Bearer ", "No token provided"},
		{"garbage", "Bearer not.a.token", "Invalid token"},
		{"wrong secret", "Bearer " + forged, "Invalid token"},
		{"expired", "Bearer " + expired, "Token expired"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			for _, path := range []string{"/api/auth/me", "/api/gardens", "/api/profile"} {
				req := requestWithHeader(http.MethodGet, path, tc.header)
				rp := h.serve(req)
				assert.Equal(t, http.StatusUnauthorized, rp.Code, path)
				assert.Equal(t, tc.want, rp.Error, path)
			}
		})
	}
}

func TestDeletedUserTokenIsNotFoundEverywhere(t *testing.T) {
	h := newHarness(t)
	tok, u := h.register("gina@example.com", "Gina")

	n, err := h.srv.users().Eq("id", u.ID).Delete(testCtx()).Unwrap()
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	for _, path := range []string{"/api/auth/me", "/api/gardens", "/api/crops", "/api/profile"} {
		rp := h.do(http.MethodGet, path, tok, nil)
		assert.Equal(t, http.StatusNotFound, rp.Code, path)
		assert.Equal(t, "User not found", rp.Error, path)
	}
}

func TestChangePassword(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.register("hank@example.com", "Hank")

	rp := h.do(http.MethodPut, "/api/auth/change-password", tok, map[string]string{
		"current_password": "wrong-one", "new_password": "brandnew1",
	})
	assert.Equal(t, http.StatusUnauthorized, rp.Code)
	assert.Equal(t, "Current password is incorrect", rp.Error)

	rp = h.do(http.MethodPut, "/api/auth/change-password", tok, map[string]string{
		"current_password": "secret123", "new_password": "short",
	})
	assert.Equal(t, http.StatusBadRequest, rp.Code)
	assert.Contains(t, rp.Error, "new_password must be at least 6 characters")

	rp = h.do(http.MethodPut, "/api/auth/change-password", tok, map[string]string{
		"current_password": "secret123", "new_password": "brandnew1",
	})
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)

	old := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "hank@example.com", "password": "secret123"})
	assert.Equal(t, http.StatusUnauthorized, old.Code)
	fresh := h.do(http.MethodPost, "/api/auth/login", "", map[string]string{"email": "hank@example.com", "password": "brandnew1"})
	assert.Equal(t, http.StatusOK, fresh.Code)
}

func TestLogout(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.register("ivy@example.com", "Ivy")

	rp := h.do(http.MethodPost, "/api/auth/logout", tok, nil)
	assert.Equal(t, http.StatusOK, rp.Code)
	assert.Equal(t, "Logged out successfully", rp.Message)

	rp = h.do(http.MethodPost, "/api/auth/logout", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rp.Code)
}

func TestAuthRateLimit(t *testing.T) {
	h := newHarnessWith(t, Options{AuthRatePerMinute: 2})
	body := map[string]string{"email": "nobody@example.com", "password": "whatever"}

	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/auth/login", "", body).Code)
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodPost, "/api/auth/login", "", body).Code)

	rp := h.do(http.MethodPost, "/api/auth/login", "", body)
	assert.Equal(t, http.StatusTooManyRequests, rp.Code)
	assert.True(t, strings.HasPrefix(rp.Error, "Too many requests"))
}

func requestWithHeader(method, path, authz string) *http.Request {
	req := httptest.NewRequest(method, path, nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	return req
}
