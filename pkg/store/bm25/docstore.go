package bm25

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/graphfuse/graphfuse/pkg/domain"
)

// DocStore is the chunk-body side of the BM25 index: bleve ranks, the
// docstore returns the full chunk. It persists as a single JSON file.
type DocStore struct {
	mu     sync.RWMutex
	chunks map[string]domain.Chunk
	dir    string
}

func NewDocStore(dir string) *DocStore {
	return &DocStore{
		chunks: make(map[string]domain.Chunk),
		dir:    dir,
	}
}

func (d *DocStore) path() string {
	return filepath.Join(d.dir, "docstore.json")
}

func (d *DocStore) Add(chunks []domain.Chunk) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, c := range chunks {
		c.Vector = nil
		d.chunks[c.ID] = c
	}
}

func (d *DocStore) Get(id string) (domain.Chunk, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	c, ok := d.chunks[id]
	return c, ok
}

func (d *DocStore) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.chunks)
}

// All returns the chunks sorted by document and position, for rebuilds.
func (d *DocStore) All() []domain.Chunk {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]domain.Chunk, 0, len(d.chunks))
	for _, c := range d.chunks {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DocumentID != out[j].DocumentID {
			return out[i].DocumentID < out[j].DocumentID
		}
		return out[i].Position < out[j].Position
	})
	return out
}

func (d *DocStore) Clear() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.chunks = make(map[string]domain.Chunk)
	if d.dir != "" {
		_ = os.Remove(d.path())
	}
}

// Persist writes the store to disk. A no-op without a directory.
func (d *DocStore) Persist() error {
	if d.dir == "" {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()

	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	data, err := json.Marshal(d.chunks)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	if err := os.WriteFile(d.path(), data, 0o644); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}
	return nil
}

// Load restores a persisted store. Missing files are an empty store.
func (d *DocStore) Load() error {
	if d.dir == "" {
		return nil
	}
	data, err := os.ReadFile(d.path())
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrBackendIO, err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	chunks := make(map[string]domain.Chunk)
	if err := json.Unmarshal(data, &chunks); err != nil {
		return fmt.Errorf("%w: corrupt docstore: %v", domain.ErrBackendIO, err)
	}
	d.chunks = chunks
	return nil
}
