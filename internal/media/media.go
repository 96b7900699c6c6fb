// internal/media/media.go
//
// Media upload adapter.
// Responsibilities:
//   - Store: the upload/destroy contract the HTTP layer depends on.
//   - ReadImage: size-capped read + content sniffing of an uploaded file.
//
// Implementations: Cloudinary (cloudinary.go) and an in-memory store
// (memory.go) for development without credentials and for tests.

package media

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/gabriel-vasile/mimetype"
)

// Upload is the outcome of a successful upload.
type Upload struct {
	URL      string `json:"url"`
	PublicID string `json:"public_id"`
}

// Store uploads files to and deletes files from a remote image store.
type Store interface {
	// Upload stores the bytes read from r under folder and returns a public
	// URL together with the id Destroy expects.
	Upload(ctx context.Context, r io.Reader, folder string) (Upload, error)

	// Destroy removes the file with the given public id.
	Destroy(ctx context.Context, publicID string) error
}

// Accepted image types.
var allowedImageTypes = []string{"image/jpeg", "image/png", "image/gif", "image/webp"}

var (
	ErrTooLarge   = errors.New("file too large")
	ErrNotAnImage = errors.New("only jpeg, png, gif and webp images are allowed")
	ErrEmptyFile  = errors.New("file is empty")
)

// Image is a sniffed, fully buffered upload.
type Image struct {
	Data     []byte
	MIMEType string
}

// Reader returns a fresh reader over the image bytes.
func (i Image) Reader() io.Reader { return bytes.NewReader(i.Data) }

// ReadImage buffers up to maxBytes from r and checks the content is an
// accepted image type. Type detection looks at the bytes, not the filename.
func ReadImage(r io.Reader, maxBytes int64) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return Image{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > maxBytes {
		return Image{}, ErrTooLarge
	}
	if len(data) == 0 {
		return Image{}, ErrEmptyFile
	}
	mt := mimetype.Detect(data)
	for _, allowed := range allowedImageTypes {
		if mt.Is(allowed) {
			return Image{Data: data, MIMEType: allowed}, nil
		}
	}
	return Image{}, ErrNotAnImage
}
