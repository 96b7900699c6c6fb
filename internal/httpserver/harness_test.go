package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/robalobadob/gardenshare/internal/auth"
	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/datastore/datastoretest"
	"github.com/robalobadob/gardenshare/internal/media"
	"github.com/robalobadob/gardenshare/internal/models"
)

const testSecret = "test-secret"

// pngBytes is enough of a PNG for content sniffing.
var pngBytes = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x06\x00\x00\x00")

type harness struct {
	t     *testing.T
	srv   *Server
	db    *datastore.Client
	media *media.Memory
}

func newHarness(t *testing.T) *harness {
	return newHarnessWith(t, Options{})
}

func newHarnessWith(t *testing.T, opts Options) *harness {
	t.Helper()
	db := datastoretest.Open(t)
	m := media.NewMemoryStore("")
	srv := New(Deps{
		Store:     db,
		Tokens:    auth.NewTokens(testSecret, 0),
		Passwords: auth.NewPasswords(bcrypt.MinCost),
		Media:     m,
		Log:       zerolog.Nop(),
	}, opts)
	return &harness{t: t, srv: srv, db: db, media: m}
}

// reply is a decoded response envelope.
type reply struct {
	Code    int
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func (rp reply) into(t *testing.T, v any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rp.Data, v), string(rp.Data))
}

func (h *harness) serve(req *http.Request) reply {
	h.t.Helper()
	rec := httptest.NewRecorder()
	h.srv.Router().ServeHTTP(rec, req)

	rp := reply{Code: rec.Code}
	body := rec.Body.Bytes()
	if len(body) > 0 {
		require.NoError(h.t, json.Unmarshal(body, &rp), string(body))
	}
	return rp
}

func (h *harness) do(method, path, token string, body any) reply {
	h.t.Helper()
	var rd io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rd = bytes.NewBufferString(b)
	default:
		buf, err := json.Marshal(b)
		require.NoError(h.t, err)
		rd = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, rd)
	if rd != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return h.serve(req)
}

func (h *harness) upload(path, token, field string, data []byte) reply {
	h.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, "upload.bin")
	require.NoError(h.t, err)
	_, err = fw.Write(data)
	require.NoError(h.t, err)
	require.NoError(h.t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	return h.serve(req)
}

// register creates an account and returns its token and row.
func (h *harness) register(email, name string) (string, models.User) {
	h.t.Helper()
	rp := h.do(http.MethodPost, "/api/auth/register", "", map[string]string{
		"email": email, "password": "secret123", "name": name,
	})
	require.Equal(h.t, http.StatusCreated, rp.Code, rp.Error)
	var out struct {
		User  models.User `json:"user"`
		Token string      `json:"token"`
	}
	rp.into(h.t, &out)
	return out.Token, out.User
}

func (h *harness) createGarden(token, name string) models.Garden {
	h.t.Helper()
	rp := h.do(http.MethodPost, "/api/gardens", token, map[string]any{"name": name, "location": "Backyard"})
	require.Equal(h.t, http.StatusCreated, rp.Code, rp.Error)
	var g models.Garden
	rp.into(h.t, &g)
	return g
}

func (h *harness) createCrop(token, gardenID string, fields map[string]any) models.Crop {
	h.t.Helper()
	body := map[string]any{"garden_id": gardenID, "name": "Tomato"}
	for k, v := range fields {
		body[k] = v
	}
	rp := h.do(http.MethodPost, "/api/crops", token, body)
	require.Equal(h.t, http.StatusCreated, rp.Code, rp.Error)
	var c models.Crop
	rp.into(h.t, &c)
	return c
}

// crop reads a crop straight from the store, bypassing ownership checks.
func (h *harness) crop(id string) (models.Crop, error) {
	return cropsOf(h.db).Eq("id", id).Single(testCtx()).Unwrap()
}

func (h *harness) garden(id string) (models.Garden, error) {
	return gardensOf(h.db).Eq("id", id).Single(testCtx()).Unwrap()
}

func testCtx() context.Context { return context.Background() }
