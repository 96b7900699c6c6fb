// internal/httpserver/routes_gardens.go
//
// Garden endpoints under /api/gardens (all require auth, all owner scoped):
//   GET    /      -> caller's gardens, newest first, with crop_count
//   GET    /{id}  -> one garden with its crops
//   POST   /      -> create
//   PUT    /{id}  -> partial update
//   DELETE /{id}  -> delete garden and its crops
//
// A garden owned by someone else is indistinguishable from a missing one.

package httpserver

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/robalobadob/gardenshare/internal/datastore"
	"github.com/robalobadob/gardenshare/internal/models"
)

type gardenReq struct {
	Name        string `json:"name" validate:"required,max=255"`
	Location    string `json:"location" validate:"max=255"`
	Type        string `json:"type" validate:"max=100"`
	Size        string `json:"size" validate:"max=100"`
	Description string `json:"description" validate:"max=2000"`
}

func (q *gardenReq) normalize() {
	q.Name = strings.TrimSpace(q.Name)
	q.Location = strings.TrimSpace(q.Location)
	q.Type = strings.TrimSpace(q.Type)
	q.Size = strings.TrimSpace(q.Size)
	q.Description = strings.TrimSpace(q.Description)
}

type gardenPatchReq struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Location    *string `json:"location" validate:"omitempty,max=255"`
	Type        *string `json:"type" validate:"omitempty,max=100"`
	Size        *string `json:"size" validate:"omitempty,max=100"`
	Description *string `json:"description" validate:"omitempty,max=2000"`
}

func (q gardenPatchReq) patch() patch {
	p := patch{}
	p.str("name", q.Name)
	p.str("location", q.Location)
	p.str("type", q.Type)
	p.str("size", q.Size)
	p.str("description", q.Description)
	return p
}

type gardenSummary struct {
	models.Garden
	CropCount int `json:"crop_count"`
}

type gardenDetail struct {
	models.Garden
	Crops []models.Crop `json:"crops"`
}

func gardensOf(c *datastore.Client) datastore.Table[models.Garden] {
	return datastore.From[models.Garden](c, models.TableGardens)
}

func cropsOf(c *datastore.Client) datastore.Table[models.Crop] {
	return datastore.From[models.Crop](c, models.TableCrops)
}

func (s *Server) mountGardens(r chi.Router) {
	r.Get("/", s.handleListGardens)
	r.Post("/", s.handleCreateGarden)
	r.Get("/{id}", s.handleGetGarden)
	r.Put("/{id}", s.handleUpdateGarden)
	r.Delete("/{id}", s.handleDeleteGarden)
}

func (s *Server) handleListGardens(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	gardens, err := gardensOf(s.db).Eq("user_id", me.ID).Order("created_at", true).Select(r.Context()).Unwrap()
	if err != nil {
		serverError(w, r, err, "list gardens")
		return
	}
	crops, err := cropsOf(s.db).Eq("user_id", me.ID).Select(r.Context()).Unwrap()
	if err != nil {
		serverError(w, r, err, "list gardens: crops")
		return
	}

	counts := make(map[string]int, len(gardens))
	for _, c := range crops {
		counts[c.GardenID]++
	}
	out := make([]gardenSummary, 0, len(gardens))
	for _, g := range gardens {
		out = append(out, gardenSummary{Garden: g, CropCount: counts[g.ID]})
	}
	writeOK(w, http.StatusOK, "", out)
}

func (s *Server) handleGetGarden(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	res := gardensOf(s.db).Eq("id", chi.URLParam(r, "id")).Eq("user_id", me.ID).Single(r.Context())
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "Garden not found")
		return
	}
	g, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "get garden")
		return
	}

	crops, err := cropsOf(s.db).Eq("garden_id", g.ID).Eq("user_id", me.ID).Order("created_at", true).Select(r.Context()).Unwrap()
	if err != nil {
		serverError(w, r, err, "get garden: crops")
		return
	}
	writeOK(w, http.StatusOK, "", gardenDetail{Garden: g, Crops: crops})
}

func (s *Server) handleCreateGarden(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	var req gardenReq
	if !s.bind(w, r, &req) {
		return
	}

	g, err := gardensOf(s.db).Insert(r.Context(), &models.Garden{
		UserID:      me.ID,
		Name:        req.Name,
		Location:    req.Location,
		Type:        req.Type,
		Size:        req.Size,
		Description: req.Description,
	}).Unwrap()
	if err != nil {
		serverError(w, r, err, "create garden")
		return
	}
	writeOK(w, http.StatusCreated, "Garden created successfully", g)
}

// handleUpdateGarden writes only when the row matches both id and owner, so
// the ownership check and the write cannot be separated by another request.
func (s *Server) handleUpdateGarden(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	var req gardenPatchReq
	if !s.bind(w, r, &req) {
		return
	}

	res := gardensOf(s.db).Eq("id", chi.URLParam(r, "id")).Eq("user_id", me.ID).Update(r.Context(), req.patch())
	if res.NotFound() {
		writeError(w, http.StatusNotFound, "Garden not found")
		return
	}
	g, err := res.Unwrap()
	if err != nil {
		serverError(w, r, err, "update garden")
		return
	}
	writeOK(w, http.StatusOK, "Garden updated successfully", g)
}

func (s *Server) handleDeleteGarden(w http.ResponseWriter, r *http.Request) {
	me := currentUser(r)
	err := s.deleteGarden(r.Context(), me.ID, chi.URLParam(r, "id"))
	if errors.Is(err, datastore.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Garden not found")
		return
	}
	if err != nil {
		serverError(w, r, err, "delete garden")
		return
	}
	writeOK(w, http.StatusOK, "Garden deleted successfully", nil)
}

// deleteGarden removes the garden and its crops together or not at all.
func (s *Server) deleteGarden(ctx context.Context, userID, gardenID string) error {
	return s.db.Tx(ctx, func(tx *datastore.Client) error {
		if err := cropsOf(tx).Eq("garden_id", gardenID).Eq("user_id", userID).Delete(ctx).Err(); err != nil {
			return err
		}
		n, err := gardensOf(tx).Eq("id", gardenID).Eq("user_id", userID).Delete(ctx).Unwrap()
		if err != nil {
			return err
		}
		if n == 0 {
			return datastore.ErrNotFound
		}
		return nil
	})
}
