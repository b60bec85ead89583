// Package plugin defines the storage backend interface for bucketlens.
package plugin

import (
	"context"
	"sort"
	"sync"

	"github.com/yairfalse/bucketlens/pkg/report"
)

// Backend is the read-only interface all storage providers must implement.
// Every method is a blocking network call and must honor ctx.
type Backend interface {
	// Name returns the backend identifier (e.g., "aws")
	Name() string

	// CallerIdentity verifies the active credentials.
	CallerIdentity(ctx context.Context) (report.Identity, error)

	// ListResources returns all bucket names in listing order.
	ListResources(ctx context.Context) ([]string, error)

	// ListObjects pages through every object in bucket, calling fn per object.
	ListObjects(ctx context.Context, bucket string, fn func(report.Object) error) error

	// LifecycleRules returns the bucket lifecycle rules.
	// configured is false when the bucket has no lifecycle configuration.
	LifecycleRules(ctx context.Context, bucket string) (rules []report.LifecycleRule, configured bool, err error)

	// Policy returns the bucket policy document, or "" with found=false when none is set.
	Policy(ctx context.Context, bucket string) (policy string, found bool, err error)

	// PublicAccessBlock returns nil when no block is configured.
	PublicAccessBlock(ctx context.Context, bucket string) (*report.PublicAccessBlock, error)

	// Versioning returns the bucket versioning state.
	Versioning(ctx context.Context, bucket string) (report.Versioning, error)

	// Encryption returns nil when no default encryption is configured.
	Encryption(ctx context.Context, bucket string) (*report.Encryption, error)
}

// Registry holds registered backends.
var (
	registry = make(map[string]Backend)
	mu       sync.RWMutex
)

// Register adds a backend to the registry.
func Register(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	registry[b.Name()] = b
}

// Get returns a backend by name.
func Get(name string) (Backend, bool) {
	mu.RLock()
	defer mu.RUnlock()
	b, ok := registry[name]
	return b, ok
}

// Names returns all registered backend names, sorted.
func Names() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Clear removes all backends from the registry. Used for testing.
func Clear() {
	mu.Lock()
	defer mu.Unlock()
	registry = make(map[string]Backend)
}
