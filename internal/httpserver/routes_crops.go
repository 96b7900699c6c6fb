// internal/httpserver/routes_crops.go
//
// Crop endpoints under /api/crops (all require auth):
//   GET    /               -> caller's crops; filters: garden_id, status, category, shared
//   GET    /shared         -> crops any user has shared, with the owner's name
//   GET    /{id}           -> one crop
//   POST   /               -> create in one of the caller's gardens
//   PUT    /{id}           -> partial update (moving gardens re-checks ownership)
//   PATCH  /{id}/progress  -> progress (and optionally status) only
//   DELETE /{id}           -> delete
//   POST   /{id}/image     -> upload a photo for the crop

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/models"
)

// sharedFeedLimit caps GET /api/crops/shared.
const sharedFeedLimit = 100

var errGardenNotFound = errors.New("garden not found")

type cropReq struct {
	GardenID     string  `json:"garden_id" validate:"required"`
	Name         string  `json:"name" validate:"required,max=255"`
	Category     string  `json:"category" validate:"max=100"`
	Variety      string  `json:"variety" validate:"max=100"`
	PlantingDate string  `json:"planting_date" validate:"isodate"`
	HarvestDate  string  `json:"harvest_date" validate:"isodate"`
	Status       string  `json:"status" validate:"cropstatus"`
	Progress     int     `json:"progress" validate:"min=0,max=100"`
	Notes        string  `json:"notes" validate:"max=5000"`
	ImageURL     string  `json:"image_url" validate:"omitempty,url,max=1024"`
	Shared       bool    `json:"shared"`
	Quantity     float64 `json:"quantity" validate:"min=0"`
	Unit         string  `json:"unit" validate:"max=50"`
}

func (q *cropReq) normalize() {
	for _, f := range []*string{&q.GardenID, &q.Name, &q.Category, &q.Variety, &q.PlantingDate,
		&q.HarvestDate, &q.Status, &q.Notes, &q.ImageURL, &q.Unit} {
		*f = strings.TrimSpace(*f)
	}
}

type cropPatchReq struct {
	GardenID     *string  `json:"garden_id"`
	Name         *string  `json:"name" validate:"omitempty,max=255"`
	Category     *string  `json:"category" validate:"omitempty,max=100"`
	Variety      *string  `json:"variety" validate:"omitempty,max=100"`
	PlantingDate *string  `json:"planting_date" validate:"omitempty,isodate"`
	HarvestDate  *string  `json:"harvest_date" validate:"omitempty,isodate"`
	Status       *string  `json:"status" validate:"omitempty,cropstatus"`
	Progress     *int     `json:"progress" validate:"omitempty,min=0,max=100"`
	Notes        *string  `json:"notes" validate:"omitempty,max=5000"`
	ImageURL     *string  `json:"image_url" validate:"omitempty,url,max=1024"`
	Shared       *bool    `json:"shared"`
	Quantity     *float64 `json:"quantity" validate:"omitempty,min=0"`
	Unit         *string  `json:"unit" validate:"omitempty,max=50"`
}

func (q cropPatchReq) patch() patch {
	p := patch{}
	p.str("garden_id", q.GardenID)
	p.str("name", q.Name)
	p.str("category", q.Category)
	p.str("variety", q.Variety)
	p.str("planting_date", q.PlantingDate)
	p.str("harvest_date", q.HarvestDate)
	p.str("status", q.Status)
	setValue(p, "progress", q.Progress)
	p.str("notes", q.Notes)
	p.str("image_url", q.ImageURL)
	setValue(p, "shared", q.Shared)
	setValue(p, "quantity", q.Quantity)
	p.str("unit", q.Unit)
	return p
}

type progressReq struct {
	Progress *int    `json:"progress" validate:"required,min=0,max=100"`
	Status   *string `json:"status" validate:"omitempty,cropstatus"`
}

type sharedCrop struct {
	models.Crop
	OwnerName string `json:"owner_name"`
}

func (s *Server) mountCrops(r chi.Router) {
	r.Get("/", s.handleListCrops)
	r.Post("/", s.handleCreateCrop)
	r.Get("/shared", s.handleSharedCrops)
	r.Get("/{id}", s.handleGetCrop)
	r.Put("/{id}", s.handleUpdateCrop)
	r.Patch("/{id}/progress", s.handleCropProgress)
	r.Delete("/{id}", s.handleDeleteCrop)
	r.Post("/{id}/image", s.handleCropImage)
}

func (s *Server) handleListCrops(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	q := cropsOf(s.db).Eq("user_id", me.ID)

	params := r.URL.Query()
	if v := strings.TrimSpace(params.Get("garden_id")); v != "" {
		q = q.Eq("garden_id", v)
	}
	if v := strings.TrimSpace(params.Get("status")); v != "" {
		if !isCropStatus(v) {
			writeError(w, http.StatusBadRequest, "status must be one of: "+strings.Join(models.CropStatuses, ", "))
			return
		}
		q = q.Eq("status", v)
	}
	if v := strings.TrimSpace(params.Get("category")); v != "" {
		q = q.Eq("category", v)
	}
	if v := strings.TrimSpace(params.Get("shared")); v != "" {
		shared, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "shared must be true or false")
			return
		}
		q = q.Eq("shared", shared)
	}

	crops, err := q.Order("created_at", true).Select(r.Context()).Unwrap()
	if err != nil {
		serverError(w, r, err, "list crops")
		return
	}
	writeOK(w, http.StatusOK, "", crops)
}

func (s *Server) handleSharedCrops(w http.ResponseWriter, r *http.Request) {
	crops, err := cropsOf(s.db).Eq("shared", true).Order("created_at", true).Limit(sharedFeedLimit).Select(r.Context()).Unwrap()
	if err != nil {
		serverError(w, r, err, "shared crops")
		return
	}

	ownerIDs := make([]any, 0, len(crops))
	seen := make(map[string]bool)
	for _, c := range crops {
		if !seen[c.UserID] {
			seen[c.UserID] = true
			ownerIDs = append(ownerIDs, c.UserID)
		}
	}
	names := make(map[string]string, len(ownerIDs))
	if len(ownerIDs) > 0 {
		owners, err := s.users().In("id", ownerIDs...).Select(r.Context()).Unwrap()
		if err != nil {
			serverError(w, r, err, "shared crops: owners")
			return
		}
		for _, u := range owners {
			names[u.ID] = u.Name
		}
	}

	out := make([]sharedCrop, 0, len(crops))
	for _, c := range crops {
		out = append(out, sharedCrop{Crop: c, OwnerName: names[c.UserID]})
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleGetCrop(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	res := cropsOf(s.db).Eq("id", chi.URLParam(r, "id")).Eq("user_id", me.ID).Single(r.Context())
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "Crop not found")
		return
	}
	c, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "get crop")
		return
	}
	writeOK(w, http.StatusOK, "", c)
}

func (s *Server) handleCreateCrop(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	var req cropReq
	if !s.bind(w, r, &req) {
		return
	}

	row := &models.Crop{
		GardenID:     req.GardenID,
		UserID:       me.ID,
		Name:         req.Name,
		Category:     req.Category,
		Variety:      req.Variety,
		PlantingDate: req.PlantingDate,
		HarvestDate:  req.HarvestDate,
		Status:       req.Status,
		Progress:     req.Progress,
		Notes:        req.Notes,
		ImageURL:     req.ImageURL,
		Shared:       req.Shared,
		Quantity:     req.Quantity,
		Unit:         req.Unit,
	}

	var created models.Crop
	err := s.db.Tx(r.Context(), func(tx *datastore.Client) error {
		if err := ownGarden(r.Context(), tx, me.ID, req.GardenID); err != nil {
			return err
		}
		var err error
		created, err = cropsOf(tx).Insert(r.Context(), row).Unwrap()
		return err
	})
	if errors.Is(err, errGardenNotFound) {
		writeError(w, http.StatusNotFound, "Garden not found")
		return
	}
	if err != nil {
		serverError(w, r, err, "create crop")
		return
	}
	writeOK(w, http.StatusCreated, "Crop created successfully", created)
}

func (s *Server) handleUpdateCrop(w http.ResponseWriter, r *http.Request) {
	var req cropPatchReq
	if !s.bind(w, r, &req) {
		return
	}
	s.updateCrop(w, r, req.patch(), "Crop updated successfully")
}

func (s *Server) handleCropProgress(w http.ResponseWriter, r *http.Request) {
	var req progressReq
	if !s.bind(w, r, &req) {
		return
	}
	p := patch{}
	setValue(p, "progress", req.Progress)
	p.str("status", req.Status)
	s.updateCrop(w, r, p, "Crop progress updated successfully")
}

// updateCrop applies p to the caller's crop {id}. When p moves the crop to
// another garden, that garden's ownership is checked in the same transaction.
// A client-supplied image_url replaces any uploaded image, which is then
// destroyed; the client's URL itself is never passed to the media store.
func (s *Server) updateCrop(w http.ResponseWriter, r *http.Request, p patch, msg string) {
	me := currentUser(r)
	ctx := r.Context()

	id := chi.URLParam(r, "id")

	var updated models.Crop
	var detached string
	err := s.db.Tx(ctx, func(tx *datastore.Client) error {
		if gid, ok := p["garden_id"].(string); ok {
			if err := ownGarden(ctx, tx, me.ID, gid); err != nil {
				return err
			}
		}
		if url, ok := p["image_url"].(string); ok {
			cur, err := cropsOf(tx).Eq("id", id).Eq("user_id", me.ID).Single(ctx).Unwrap()
			if err != nil {
				return err
			}
			if url != cur.ImageURL {
				p["image_public_id"] = ""
				detached = cur.ImageID
			}
		}
		var err error
		updated, err = cropsOf(tx).Eq("id", id).Eq("user_id", me.ID).Update(ctx, p).Unwrap()
		return err
	})
	switch {
	case errors.Is(err, errGardenNotFound):
		writeError(w, http.StatusNotFound, "Garden not found")
	case errors.Is(err, datastore.ErrNotFound):
		writeError(w, http.StatusNotFound, "Crop not found")
	case err != nil:
		serverError(w, r, err, "update crop")
	default:
		s.destroyQuietly(r, detached)
		writeOK(w, http.StatusOK, msg, updated)
	}
}

func (s *Server) handleDeleteCrop(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	res := cropsOf(s.db).Eq("id", id).Eq("user_id", me.ID).Single(ctx)
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "Crop not found")
		return
	}
	c, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "delete crop: load")
		return
	}

	n, err := cropsOf(s.db).Eq("id", id).Eq("user_id", me.ID).Delete(ctx).Unwrap()
	if err != nil {
		serverError(w, r, err, "delete crop")
		return
	}
	if n == 0 {
		writeError(w, http.StatusNotFound, "Crop not found")
		return
	}
	s.destroyQuietly(r, c.ImageID)
	writeOK(w, http.StatusOK, "Crop deleted successfully", nil)
}

// handleCropImage stores a new photo for the crop and drops the old one.
func (s *Server) handleCropImage(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	res := cropsOf(s.db).Eq("id", id).Eq("user_id", me.ID).Single(ctx)
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "Crop not found")
		return
	}
	c, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "crop image: load")
		return
	}

	up, ok := s.uploadImage(w, r, s.opts.MediaFolder+"/crops")
	if !ok {
		return
	}
	upd := cropsOf(s.db).Eq("id", id).Eq("user_id", me.ID).Update(ctx, map[string]any{
		"image_url":       up.URL,
		"image_public_id": up.PublicID,
	})
	if err := upd.Err(); err != nil {
		s.destroyQuietly(r, up.PublicID)
		if upd.NotFound() {
			writeError(w, http.StatusNotFound, "Crop not found")
			return
		}
		serverError(w, r, err, "crop image: update")
		return
	}
	s.destroyQuietly(r, c.ImageID)

	updated, _ := upd.Unwrap()
	writeOK(w, http.StatusOK, "Crop image uploaded successfully", updated)
}

// ownGarden returns errGardenNotFound unless gardenID belongs to userID.
func ownGarden(ctx context.Context, c *datastore.Client, userID, gardenID string) error {
	res := gardensOf(c).Eq("id", gardenID).Eq("user_id", userID).Single(ctx)
	if res.NotFound() {
		return errGardenNotFound
	}
	return res.Err()
}

func isCropStatus(s string) bool {
	for _, st := range models.CropStatuses {
		if s == st {
			return true
		}
	}
	return false
}
