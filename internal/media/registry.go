package media

import (
	"sync"

	"github.com/oklog/ulid/v2"
)

// RefPrefix marks a temporary media reference.
const RefPrefix = "blob:novatube/"

// Blob is a locally held media file.
type Blob struct {
	Ref         string
	Name        string
	ContentType string
	Data        []byte
}

// Size returns the blob length in bytes.
func (b Blob) Size() int64 { return int64(len(b.Data)) }

// Registry hands out temporary references to locally held media. A reference and
// its bytes live until Release is called.
type Registry struct {
	mu    sync.Mutex
	blobs map[string]Blob
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{blobs: make(map[string]Blob)}
}

// Acquire stores data and returns a new reference to it.
func (r *Registry) Acquire(name, contentType string, data []byte) Blob {
	b := Blob{
		Ref:         RefPrefix + ulid.Make().String(),
		Name:        name,
		ContentType: contentType,
		Data:        data,
	}
	r.mu.Lock()
	r.blobs[b.Ref] = b
	r.mu.Unlock()
	return b
}

// Get returns the blob for ref.
func (r *Registry) Get(ref string) (Blob, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	b, ok := r.blobs[ref]
	return b, ok
}

// Release drops ref. Releasing an unknown or empty ref is a no-op.
func (r *Registry) Release(ref string) {
	if ref == "" {
		return
	}
	r.mu.Lock()
	delete(r.blobs, ref)
	r.mu.Unlock()
}

// Outstanding counts live references.
func (r *Registry) Outstanding() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.blobs)
}
