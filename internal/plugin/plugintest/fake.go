// Package plugintest provides an in-memory plugin.Backend for tests.
package plugintest

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	apperrors "github.com/yairfalse/bucketlens/internal/errors"
	"github.com/yairfalse/bucketlens/pkg/report"
)

// Bucket is the fixture for one fake bucket.
type Bucket struct {
	Name              string
	Objects           []report.Object
	Lifecycle         []report.LifecycleRule // nil means not configured
	Policy            string
	PublicAccessBlock *report.PublicAccessBlock
	Versioning        report.Versioning
	Encryption        *report.Encryption
}

// Backend is a fake storage backend. Err* fields inject failures per call.
type Backend struct {
	BackendName string

	mu      sync.Mutex
	buckets []Bucket

	IdentityErr   error
	ListErr       error
	ObjectsErr    error
	LifecycleErr  error
	PolicyErr     error
	PABErr        error
	VersioningErr error
	EncryptionErr error

	// Gate, when set, blocks ListObjects until closed.
	Gate chan struct{}

	IdentityCalls atomic.Int32
	ListCalls     atomic.Int32
	ObjectsCalls  atomic.Int32
	MetaCalls     atomic.Int32
}

// New creates a fake backend holding buckets in listing order.
func New(buckets ...Bucket) *Backend {
	return &Backend{BackendName: "fake", buckets: buckets}
}

// Sized builds a bucket with one STANDARD object per size.
func Sized(name string, sizes ...int64) Bucket {
	b := Bucket{Name: name}
	for _, s := range sizes {
		b.Objects = append(b.Objects, report.Object{Key: name + "-obj", Size: s, StorageClass: report.DefaultStorageClass})
	}
	return b
}

// Calls returns the total number of provider calls made.
func (b *Backend) Calls() int32 {
	return b.IdentityCalls.Load() + b.ListCalls.Load() + b.ObjectsCalls.Load() + b.MetaCalls.Load()
}

// SetBuckets replaces the fixture.
func (b *Backend) SetBuckets(buckets ...Bucket) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.buckets = buckets
}

func (b *Backend) find(name string) (Bucket, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, bk := range b.buckets {
		if bk.Name == name {
			return bk, nil
		}
	}
	return Bucket{}, apperrors.NotFound("list objects", name, errors.New("NoSuchBucket"))
}

func (b *Backend) Name() string {
	if b.BackendName == "" {
		return "fake"
	}
	return b.BackendName
}

func (b *Backend) CallerIdentity(_ context.Context) (report.Identity, error) {
	b.IdentityCalls.Add(1)
	if b.IdentityErr != nil {
		return report.Identity{}, b.IdentityErr
	}
	return report.Identity{Account: "123456789012", ARN: "arn:aws:iam::123456789012:user/test"}, nil
}

func (b *Backend) ListResources(_ context.Context) ([]string, error) {
	b.ListCalls.Add(1)
	if b.ListErr != nil {
		return nil, b.ListErr
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	names := make([]string, 0, len(b.buckets))
	for _, bk := range b.buckets {
		names = append(names, bk.Name)
	}
	return names, nil
}

func (b *Backend) ListObjects(ctx context.Context, bucket string, fn func(report.Object) error) error {
	b.ObjectsCalls.Add(1)
	if b.Gate != nil {
		select {
		case <-b.Gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if b.ObjectsErr != nil {
		return b.ObjectsErr
	}
	bk, err := b.find(bucket)
	if err != nil {
		return err
	}
	for _, obj := range bk.Objects {
		if err := fn(obj); err != nil {
			return err
		}
	}
	return nil
}

func (b *Backend) LifecycleRules(_ context.Context, bucket string) ([]report.LifecycleRule, bool, error) {
	b.MetaCalls.Add(1)
	if b.LifecycleErr != nil {
		return nil, false, b.LifecycleErr
	}
	bk, err := b.find(bucket)
	if err != nil {
		return nil, false, err
	}
	if bk.Lifecycle == nil {
		return nil, false, nil
	}
	return bk.Lifecycle, true, nil
}

func (b *Backend) Policy(_ context.Context, bucket string) (string, bool, error) {
	b.MetaCalls.Add(1)
	if b.PolicyErr != nil {
		return "", false, b.PolicyErr
	}
	bk, err := b.find(bucket)
	if err != nil {
		return "", false, err
	}
	return bk.Policy, bk.Policy != "", nil
}

func (b *Backend) PublicAccessBlock(_ context.Context, bucket string) (*report.PublicAccessBlock, error) {
	b.MetaCalls.Add(1)
	if b.PABErr != nil {
		return nil, b.PABErr
	}
	bk, err := b.find(bucket)
	if err != nil {
		return nil, err
	}
	return bk.PublicAccessBlock, nil
}

func (b *Backend) Versioning(_ context.Context, bucket string) (report.Versioning, error) {
	b.MetaCalls.Add(1)
	if b.VersioningErr != nil {
		return report.Versioning{}, b.VersioningErr
	}
	bk, err := b.find(bucket)
	if err != nil {
		return report.Versioning{}, err
	}
	return bk.Versioning, nil
}

func (b *Backend) Encryption(_ context.Context, bucket string) (*report.Encryption, error) {
	b.MetaCalls.Add(1)
	if b.EncryptionErr != nil {
		return nil, b.EncryptionErr
	}
	bk, err := b.find(bucket)
	if err != nil {
		return nil, err
	}
	return bk.Encryption, nil
}
