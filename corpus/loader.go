package corpus

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/mohammad-safakhou/confscout/models"
)

// Load reads a corpus snapshot from path. Plain JSON and zstd-compressed
// JSON (.zst suffix) are supported; the snapshot is a JSON array of items.
// Load validates that ids are unique and that every embedding shares one
// dimension; either violation fails the load.
func Load(path string) (*Index, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: open snapshot: %v", ErrIndexUnavailable, err)
	}
	defer f.Close()

	var r io.Reader = f
	if strings.HasSuffix(path, ".zst") {
		dec, err := zstd.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("%w: zstd reader: %v", ErrIndexUnavailable, err)
		}
		defer dec.Close()
		r = dec
	}

	var items []models.CorpusItem
	if err := json.NewDecoder(r).Decode(&items); err != nil {
		return nil, fmt.Errorf("%w: decode snapshot: %v", ErrIndexUnavailable, err)
	}
	return NewIndex(items)
}

// NewIndex builds an index over items, preserving their order for stable
// tie-breaks.
func NewIndex(items []models.CorpusItem) (*Index, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: empty snapshot", ErrIndexUnavailable)
	}
	dim := len(items[0].Embedding)
	if dim == 0 {
		return nil, fmt.Errorf("item %s has no embedding", items[0].ID)
	}
	seen := make(map[string]struct{}, len(items))
	for i := range items {
		it := &items[i]
		if it.ID == "" {
			return nil, fmt.Errorf("item %d has empty id", i)
		}
		if _, dup := seen[it.ID]; dup {
			return nil, fmt.Errorf("duplicate item id %s", it.ID)
		}
		seen[it.ID] = struct{}{}
		if len(it.Embedding) != dim {
			return nil, fmt.Errorf("item %s: embedding dimension %d, want %d", it.ID, len(it.Embedding), dim)
		}
	}
	return &Index{items: items, dimension: dim}, nil
}
