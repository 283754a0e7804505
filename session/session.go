// Package session holds the Deep-Dive session cache: a keyed store of
// provider file handles that keeps repeated conversation turns from
// re-uploading the same paper.
package session

import (
	"context"
	"time"

	"github.com/mohammad-safakhou/confscout/provider"
)

// AnonymousIdentity is the fallback session identity used when the caller
// presents no credentials. In multi-tenant deployments this merges all
// anonymous callers into one cache scope; see DESIGN.md.
const AnonymousIdentity = "anonymous"

// Key addresses one cached handle: (session identity, provider, paper).
type Key struct {
	Identity string
	Provider provider.Client
	PaperID  string
}

// String renders the key in its storage form.
func (k Key) String() string {
	return k.Identity + ":" + string(k.Provider) + ":" + k.PaperID
}

// Clock abstracts time for deterministic expiry tests.
type Clock func() time.Time

// Cache maps keys to provider file handles. Implementations must treat an
// expired entry as a miss. The in-memory backend is process-local; losing
// it on restart costs one re-upload per paper (cold start), nothing more.
type Cache interface {
	// Get returns the handle for key when present and unexpired.
	Get(ctx context.Context, key Key) (provider.FileHandle, bool, error)
	// Put stores a handle until its expiry.
	Put(ctx context.Context, key Key, handle provider.FileHandle) error
	// ClearSession drops every entry for one (identity, provider) pair.
	ClearSession(ctx context.Context, identity string, client provider.Client) error
}
