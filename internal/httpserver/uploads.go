package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"github.com/robalobadob/gardenshare/internal/media"
)

// multipartSlack covers boundaries and part headers on top of the file itself.
const multipartSlack = 64 << 10

// uploadImage reads the multipart field "image", checks it, and sends it to
// the media store under folder. On failure it has already answered.
func (s *Server) uploadImage(w http.ResponseWriter, r *http.Request, folder string) (media.Upload, bool) {
	limit := s.opts.MaxUploadBytes
	tooLarge := fmt.Sprintf("File too large. Maximum size is %dMB", limit>>20)

	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)
	if err := r.ParseMultipartForm(limit); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
			return media.Upload{}, false
		}
		writeError(w, http.StatusBadRequest, "No image file provided")
		return media.Upload{}, false
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	f, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "No image file provided")
		return media.Upload{}, false
	}
	defer f.Close()

	img, err := media.ReadImage(f, limit)
	switch {
	case errors.Is(err, media.ErrTooLarge):
		writeError(w, http.StatusRequestEntityTooLarge, tooLarge)
		return media.Upload{}, false
	case errors.Is(err, media.ErrEmptyFile):
		writeError(w, http.StatusBadRequest, "No image file provided")
		return media.Upload{}, false
	case errors.Is(err, media.ErrNotAnImage):
		writeError(w, http.StatusBadRequest, "Only image files are allowed (jpeg, png, gif, webp)")
		return media.Upload{}, false
	case err != nil:
		serverError(w, r, err, "read upload")
		return media.Upload{}, false
	}

	up, err := s.media.Upload(r.Context(), img.Reader(), folder)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("folder", folder).Msg("media upload")
		writeError(w, http.StatusInternalServerError, "Failed to upload image")
		return media.Upload{}, false
	}
	hlog.FromRequest(r).Debug().Str("public_id", up.PublicID).Str("mime", img.MIMEType).Msg("image uploaded")
	return up, true
}

// destroyQuietly removes an image this server uploaded, identified by the
// public id stored next to its URL. Failures are logged and otherwise
// ignored; the database write that dropped the image stands.
func (s *Server) destroyQuietly(r *http.Request, publicID string) {
	if publicID == "" {
		return
	}
	if err := s.media.Destroy(r.Context(), publicID); err != nil {
		hlog.FromRequest(r).Warn().Err(err).Str("public_id", publicID).Msg("media destroy failed")
	}
}
