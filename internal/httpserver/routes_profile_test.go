package httpserver

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/media"
	"github.com/robalobadob/gardenshare/internal/models"
)

func TestProfileWithStats(t *testing.T) {
	h := newHarness(t)
	h.srv.now = func() time.Time { return time.Date(2026, 6, 1, 10, 0, 0, 0, time.UTC) }
	tok, u := h.register("ann@example.com", "Ann")
	g := h.createGarden(tok, "Plot")
	h.createGarden(tok, "Balcony")
	h.createCrop(tok, g.ID, map[string]any{"category": "vegetable", "progress": 40, "shared": true, "harvest_date": "2026-06-10"})
	h.createCrop(tok, g.ID, map[string]any{"category": "herb", "progress": 100, "status": "harvested", "harvest_date": "2026-06-05"})
	h.createCrop(tok, g.ID, map[string]any{"progress": 10, "harvest_date": "2026-09-01"})

	rp := h.do(http.MethodGet, "/api/profile", tok, nil)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	var out struct {
		User  models.User      `json:"user"`
		Stats models.CropStats `json:"stats"`
	}
	rp.into(t, &out)
	assert.Equal(t, u.ID, out.User.ID)
	assert.Equal(t, 2, out.Stats.TotalGardens)
	assert.Equal(t, 3, out.Stats.TotalCrops)
	assert.Equal(t, 1, out.Stats.SharedCrops)
	assert.Equal(t, 1, out.Stats.HarvestedCrops)
	assert.Equal(t, 50, out.Stats.AverageProgress)
	assert.Equal(t, 1, out.Stats.UpcomingHarvests, "only unharvested crops inside the window count")
	assert.Equal(t, 1, out.Stats.CropsByCategory["herb"])
	assert.Equal(t, 1, out.Stats.CropsByCategory["uncategorized"])

	rp = h.do(http.MethodGet, "/api/profile/stats", tok, nil)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	var st models.CropStats
	rp.into(t, &st)
	assert.Equal(t, out.Stats, st)
}

func TestUpdateProfile(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.register("bob@example.com", "Bob")

	rp := h.do(http.MethodPut, "/api/profile", tok, map[string]any{
		"bio": "Grows chillies", "garden_name": "Hot Patch", "email": "hijack@example.com",
	})
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	var u models.User
	rp.into(t, &u)
	assert.Equal(t, "Grows chillies", u.Bio)
	assert.Equal(t, "Hot Patch", u.GardenName)
	assert.Equal(t, "Bob", u.Name)
	assert.Equal(t, "bob@example.com", u.Email, "email is not editable here")

	rp = h.do(http.MethodPut, "/api/profile", tok, map[string]any{"name": "", "bio": "Now peppers too"})
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	rp.into(t, &u)
	assert.Equal(t, "Bob", u.Name)
	assert.Equal(t, "Now peppers too", u.Bio)
}

func TestProfileImageLifecycle(t *testing.T) {
	h := newHarness(t)
	tok, me := h.register("cat@example.com", "Cat")

	rp := h.upload("/api/profile/image", tok, "image", pngBytes)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	var u models.User
	rp.into(t, &u)
	stored, err := h.srv.users().Eq("id", me.ID).Single(testCtx()).Unwrap()
	require.NoError(t, err)
	firstID := stored.ProfileImageID
	assert.Contains(t, firstID, "garden-app/profiles/")
	assert.Contains(t, u.ProfileImage, firstID)
	assert.True(t, h.media.Has(firstID))

	rp = h.upload("/api/profile/image", tok, "image", pngBytes)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	rp.into(t, &u)
	assert.False(t, h.media.Has(firstID), "replaced image is destroyed")
	assert.Equal(t, 1, h.media.Len())

	rp = h.do(http.MethodDelete, "/api/profile/image", tok, nil)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	rp.into(t, &u)
	assert.Empty(t, u.ProfileImage)
	assert.Zero(t, h.media.Len())

	rp = h.do(http.MethodDelete, "/api/profile/image", tok, nil)
	assert.Equal(t, http.StatusBadRequest, rp.Code)
	assert.Equal(t, "No profile image to delete", rp.Error)
}

func TestDeleteProfileImageToleratesRemoteFailure(t *testing.T) {
	h := newHarness(t)
	tok, _ := h.register("dan@example.com", "Dan")
	rp := h.upload("/api/profile/image", tok, "image", pngBytes)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)

	h.media.FailDeletes(errors.New("remote down"))
	rp = h.do(http.MethodDelete, "/api/profile/image", tok, nil)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)

	var u models.User
	rp.into(t, &u)
	assert.Empty(t, u.ProfileImage, "url is cleared even when the remote delete fails")
}

// watchedStore runs onDestroy before each Destroy reaches the wrapped store.
type watchedStore struct {
	*media.Memory
	onDestroy func(publicID string)
}

func (s watchedStore) Destroy(ctx context.Context, publicID string) error {
	s.onDestroy(publicID)
	return s.Memory.Destroy(ctx, publicID)
}

func TestDeleteProfileImageClearsRowBeforeRemoteDelete(t *testing.T) {
	h := newHarness(t)
	tok, u := h.register("ida@example.com", "Ida")
	rp := h.upload("/api/profile/image", tok, "image", pngBytes)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)

	var seen []models.User
	h.srv.media = watchedStore{Memory: h.media, onDestroy: func(string) {
		row, err := h.srv.users().Eq("id", u.ID).Single(testCtx()).Unwrap()
		require.NoError(t, err)
		seen = append(seen, row)
	}}

	rp = h.do(http.MethodDelete, "/api/profile/image", tok, nil)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	require.Len(t, seen, 1)
	assert.Empty(t, seen[0].ProfileImage)
	assert.Empty(t, seen[0].ProfileImageID)
	assert.Zero(t, h.media.Len())
}

func TestProfileImageRejections(t *testing.T) {
	h := newHarnessWith(t, Options{MaxUploadBytes: 1 << 20})
	tok, _ := h.register("eve@example.com", "Eve")

	rp := h.upload("/api/profile/image", tok, "image", []byte("plain text, not a picture"))
	assert.Equal(t, http.StatusBadRequest, rp.Code)
	assert.Equal(t, "Only image files are allowed (jpeg, png, gif, webp)", rp.Error)

	rp = h.upload("/api/profile/image", tok, "photo", pngBytes)
	assert.Equal(t, http.StatusBadRequest, rp.Code)
	assert.Equal(t, "No image file provided", rp.Error)

	big := append(append([]byte{}, pngBytes...), bytes.Repeat([]byte{0}, 1<<20)...)
	rp = h.upload("/api/profile/image", tok, "image", big)
	assert.Equal(t, http.StatusRequestEntityTooLarge, rp.Code)
	assert.Equal(t, "File too large. Maximum size is 1MB", rp.Error)

	rp = h.do(http.MethodPost, "/api/profile/image", tok, map[string]string{"image": "nope"})
	assert.Equal(t, http.StatusBadRequest, rp.Code)

	assert.Zero(t, h.media.Len())
}

func TestDeleteAccountCascades(t *testing.T) {
	h := newHarness(t)
	tok, u := h.register("fay@example.com", "Fay")
	other, _ := h.register("gus@example.com", "Gus")
	g := h.createGarden(tok, "Plot")
	c := h.createCrop(tok, g.ID, nil)
	og := h.createGarden(other, "Gus's")
	oc := h.createCrop(other, og.ID, nil)

	rp := h.upload("/api/crops/"+c.ID+"/image", tok, "image", pngBytes)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	rp = h.upload("/api/profile/image", tok, "image", pngBytes)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)
	require.Equal(t, 2, h.media.Len())

	rp = h.do(http.MethodDelete, "/api/profile", tok, nil)
	require.Equal(t, http.StatusOK, rp.Code, rp.Error)

	_, err := h.srv.users().Eq("id", u.ID).Single(testCtx()).Unwrap()
	assert.ErrorIs(t, err, datastore.ErrNotFound)
	_, err = h.garden(g.ID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)
	_, err = h.crop(c.ID)
	assert.ErrorIs(t, err, datastore.ErrNotFound)
	assert.Zero(t, h.media.Len(), "stored images are cleaned up")

	_, err = h.garden(og.ID)
	assert.NoError(t, err, "other accounts are untouched")
	_, err = h.crop(oc.ID)
	assert.NoError(t, err)

	rp = h.do(http.MethodGet, "/api/profile", tok, nil)
	assert.Equal(t, http.StatusNotFound, rp.Code)
	assert.Equal(t, "User not found", rp.Error)
}
