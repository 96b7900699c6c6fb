// internal/media/memory.go
//
// In-memory implementation of Store.
// Used when no Cloudinary credentials are configured (local development)
// and in tests.
//
// Characteristics:
//   - Keeps uploaded bytes in a map keyed by public id.
//   - URLs mimic Cloudinary delivery URLs.
//   - Concurrency-safe via RWMutex.
//   - State is lost when the process restarts.
//   - Optional failure injection for Destroy (tests of best-effort paths).

package media

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
)

// ErrNotFound is returned by Memory.Destroy for unknown ids.
var ErrNotFound = errors.New("media not found")

// Memory is a map-backed Store.
type Memory struct {
	mu         sync.RWMutex
	files      map[string][]byte // keyed by public id
	baseURL    string
	failDelete error
}

// NewMemoryStore constructs an empty in-memory Store whose URLs start with baseURL.
func NewMemoryStore(baseURL string) *Memory {
	if baseURL == "" {
		baseURL = "http://localhost/media"
	}
	return &Memory{files: make(map[string][]byte), baseURL: baseURL}
}

// Upload keeps the bytes and returns a Cloudinary-shaped URL.
func (m *Memory) Upload(ctx context.Context, r io.Reader, folder string) (Upload, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Upload{}, err
	}
	id := randomID()
	if folder != "" {
		id = folder + "/" + id
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[id] = data
	return Upload{URL: fmt.Sprintf("%s/image/upload/v1/%s", m.baseURL, id), PublicID: id}, nil
}

// Destroy forgets the file.
func (m *Memory) Destroy(ctx context.Context, publicID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failDelete != nil {
		return m.failDelete
	}
	if _, ok := m.files[publicID]; !ok {
		return ErrNotFound
	}
	delete(m.files, publicID)
	return nil
}

// Has reports whether publicID is stored.
func (m *Memory) Has(publicID string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.files[publicID]
	return ok
}

// Len is the number of stored files.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.files)
}

// FailDeletes makes every Destroy return err (nil restores normal behaviour).
func (m *Memory) FailDeletes(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failDelete = err
}

// randomID is a compact hex identifier.
func randomID() string {
	var b [10]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}
