// internal/httpserver/routes_profile.go
//
// Profile endpoints under /api/profile (all require auth):
//   GET    /       -> {user, stats}
//   GET    /stats  -> stats only
//   PUT    /       -> partial update of the descriptive fields
//   POST   /image  -> upload a new profile image, drop the old one
//   DELETE /image  -> drop the profile image
//   DELETE /       -> delete the account with its gardens and crops

package httpserver

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/models"
)

type profilePatchReq struct {
	Name       *string `json:"name" validate:"omitempty,max=120"`
	Phone      *string `json:"phone" validate:"omitempty,max=40"`
	Bio        *string `json:"bio" validate:"omitempty,max=1000"`
	Location   *string `json:"location" validate:"omitempty,max=255"`
	GardenName *string `json:"garden_name" validate:"omitempty,max=255"`
	GardenSize *string `json:"garden_size" validate:"omitempty,max=100"`
}

func (q profilePatchReq) patch() patch {
	p := patch{}
	p.str("name", q.Name)
	p.str("phone", q.Phone)
	p.str("bio", q.Bio)
	p.str("location", q.Location)
	p.str("garden_name", q.GardenName)
	p.str("garden_size", q.GardenSize)
	return p
}

type profileRes struct {
	User  *models.User     `json:"user"`
	Stats models.CropStats `json:"stats"`
}

func (s *Server) mountProfile(r chi.Router) {
	r.Get("/", s.handleGetProfile)
	r.Put("/", s.handleUpdateProfile)
	r.Delete("/", s.handleDeleteAccount)
	r.Get("/stats", s.handleProfileStats)
	r.Post("/image", s.handleProfileImage)
	r.Delete("/image", s.handleDeleteProfileImage)
}

// stats aggregates the user's crops in process.
func (s *Server) stats(ctx context.Context, userID string) (models.CropStats, error) {
	gardens, err := gardensOf(s.db).Eq("user_id", userID).Count(ctx).Unwrap()
	if err != nil {
		return models.CropStats{}, err
	}
	crops, err := cropsOf(s.db).Eq("user_id", userID).Select(ctx).Unwrap()
	if err != nil {
		return models.CropStats{}, err
	}
	return models.ComputeCropStats(int(gardens), crops, s.now()), nil
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	st, err := s.stats(r.Context(), me.ID)
	if err != nil {
		serverError(w, r, err, "profile stats")
		return
	}
	writeOK(w, http.StatusOK, "", profileRes{User: me, Stats: st})
}

func (s *Server) handleProfileStats(w http.ResponseWriter, r *http.Request) {
	st, err := s.stats(r.Context(), currentUser(r).ID)
	if err != nil {
		serverError(w, r, err, "profile stats")
		return
	}
	writeOK(w, http.StatusOK, "", st)
}

func (s *Server) handleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	var req profilePatchReq
	if !s.bind(w, r, &req) {
		return
	}

	res := s.users().Eq("id", me.ID).Update(r.Context(), req.patch())
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	u, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "update profile")
		return
	}
	writeOK(w, http.StatusOK, "Profile updated successfully", u)
}

func (s *Server) handleProfileImage(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	up, ok := s.uploadImage(w, r, s.opts.MediaFolder+"/profiles")
	if !ok {
		return
	}

	res := s.users().Eq("id", me.ID).Update(r.Context(), map[string]any{
		"profile_image":    up.URL,
		"profile_image_id": up.PublicID,
	})
	u, err := res.Unwrap()
	if err != nil {
		s.destroyQuietly(r, up.PublicID)
		if res.NotFound() {
			writeError(w, http.StatusNotFound, "User not found")
			return
		}
		serverError(w, r, err, "profile image: update")
		return
	}
	s.destroyQuietly(r, me.ProfileImageID)
	writeOK(w, http.StatusOK, "Profile image uploaded successfully", u)
}

func (s *Server) handleDeleteProfileImage(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	if me.ProfileImage == "" {
		writeError(w, http.StatusBadRequest, "No profile image to delete")
		return
	}

	res := s.users().Eq("id", me.ID).Update(r.Context(), map[string]any{"profile_image": "", "profile_image_id": ""})
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	u, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "profile image: clear")
		return
	}
	s.destroyQuietly(r, me.ProfileImageID)
	writeOK(w, http.StatusOK, "Profile image deleted successfully", u)
}

// handleDeleteAccount removes the user, gardens and crops in one
// transaction, then makes a best-effort pass over the stored images.
func (s *Server) handleDeleteAccount(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	ctx := r.Context()

	var images []string
	err := s.db.Tx(ctx, func(tx *datastore.Client) error {
		crops, err := cropsOf(tx).Eq("user_id", me.ID).Select(ctx).Unwrap()
		if err != nil {
			return err
		}
		for _, c := range crops {
			if c.ImageID != "" {
				images = append(images, c.ImageID)
			}
		}
		if err := cropsOf(tx).Eq("user_id", me.ID).Delete(ctx).Err(); err != nil {
			return err
		}
		if err := gardensOf(tx).Eq("user_id", me.ID).Delete(ctx).Err(); err != nil {
			return err
		}
		n, err := datastore.From[models.User](tx, models.TableUsers).Eq("id", me.ID).Delete(ctx).Unwrap()
		if err != nil {
			return err
		}
		if n == 0 {
			return datastore.ErrNotFound
		}
		return nil
	})
	if errors.Is(err, datastore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	if err != nil {
		serverError(w, r, err, "delete account")
		return
	}

	s.destroyQuietly(r, me.ProfileImageID)
	for _, id := range images {
		s.destroyQuietly(r, id)
	}
	hlog.FromRequest(r).Info().Str("user_id", me.ID).Msg("account deleted")
	writeOK(w, http.StatusOK, "Account deleted successfully", nil)
}
