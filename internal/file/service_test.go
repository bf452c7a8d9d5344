package file

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

// --- Mocks ---

type mockRegistry struct {
	findFn    func(ctx context.Context, shortID string) (*Record, error)
	createFn  func(ctx context.Context, rec *Record) error
	findCalls int
}

func (m *mockRegistry) Find(ctx context.Context, shortID string) (*Record, error) {
	m.findCalls++
	if m.findFn != nil {
		return m.findFn(ctx, shortID)
	}
	return nil, ErrNotFound
}

func (m *mockRegistry) Create(ctx context.Context, rec *Record) error {
	if m.createFn != nil {
		return m.createFn(ctx, rec)
	}
	return nil
}

type mockStorage struct {
	uploadFn func(ctx context.Context, key string, r io.Reader, size int64, ct string) error
	deleteFn func(ctx context.Context, key string) error
	uploaded []string
	deleted  []string
}

func (m *mockStorage) Upload(ctx context.Context, key string, r io.Reader, size int64, ct string) error {
	m.uploaded = append(m.uploaded, key)
	if m.uploadFn != nil {
		return m.uploadFn(ctx, key, r, size, ct)
	}
	return nil
}

func (m *mockStorage) Delete(ctx context.Context, key string) error {
	m.deleted = append(m.deleted, key)
	if m.deleteFn != nil {
		return m.deleteFn(ctx, key)
	}
	return nil
}

func (m *mockStorage) Location(key string) string {
	return "https://blobs.test/" + key
}

func newTestService(reg *mockRegistry, store *mockStorage) *Service {
	return NewService(reg, store, NewRecordCache(16, time.Minute))
}

func textUpload(customName string) Upload {
	return Upload{
		Reader:       strings.NewReader("hello"),
		OriginalName: "notes.txt",
		ContentType:  "text/plain",
		Size:         5,
		CustomName:   customName,
	}
}

// --- Store ---

// TestService_Store_GeneratedID checks the happy path without a custom name.
func TestService_Store_GeneratedID(t *testing.T) {
	reg := &mockRegistry{}
	store := &mockStorage{}
	svc := newTestService(reg, store)

	rec, err := svc.Store(context.Background(), textUpload(""))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}

	if len(rec.ShortID) != shortIDLength {
		t.Errorf("ShortID = %q, expected %d generated characters", rec.ShortID, shortIDLength)
	}
	if rec.Kind != KindFile {
		t.Errorf("Kind = %q, expected %q", rec.Kind, KindFile)
	}
	if !strings.HasPrefix(rec.BlobKey, "files/") || !strings.HasSuffix(rec.BlobKey, ".txt") {
		t.Errorf("BlobKey = %q, expected files/<uuid>.txt", rec.BlobKey)
	}
	if rec.Location != "https://blobs.test/"+rec.BlobKey {
		t.Errorf("Location = %q, expected the store's URL for %q", rec.Location, rec.BlobKey)
	}
	if len(store.uploaded) != 1 {
		t.Errorf("store.Upload called %d times, expected 1", len(store.uploaded))
	}
	if len(store.deleted) != 0 {
		t.Errorf("store.Delete called %d times, expected 0", len(store.deleted))
	}
}

// TestService_Store_CustomName checks that a custom name is sanitized and
// used as the identifier.
func TestService_Store_CustomName(t *testing.T) {
	reg := &mockRegistry{}
	store := &mockStorage{}
	svc := newTestService(reg, store)

	rec, err := svc.Store(context.Background(), textUpload("  my summer  photos "))
	if err != nil {
		t.Fatalf("Store error: %v", err)
	}
	if rec.ShortID != "my-summer-photos" {
		t.Errorf("ShortID = %q, expected %q", rec.ShortID, "my-summer-photos")
	}
}

// TestService_Store_InvalidName checks that a name with no usable characters
// fails before anything reaches blob storage.
func TestService_Store_InvalidName(t *testing.T) {
	reg := &mockRegistry{}
	store := &mockStorage{}
	svc := newTestService(reg, store)

	_, err := svc.Store(context.Background(), textUpload("!!!///"))
	if !errors.Is(err, ErrInvalidName) {
		t.Fatalf("Store error = %v, expected ErrInvalidName", err)
	}
	if len(store.uploaded) != 0 {
		t.Errorf("store.Upload called %d times, expected 0 for an invalid name", len(store.uploaded))
	}
}

// TestService_Store_NameTakenEarly checks the advisory pre-check: a known
// identifier is rejected without writing the blob.
func TestService_Store_NameTakenEarly(t *testing.T) {
	reg := &mockRegistry{
		findFn: func(_ context.Context, shortID string) (*Record, error) {
			return testRecord(shortID), nil
		},
	}
	store := &mockStorage{}
	svc := newTestService(reg, store)

	_, err := svc.Store(context.Background(), textUpload("taken"))
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("Store error = %v, expected ErrNameTaken", err)
	}
	if len(store.uploaded) != 0 {
		t.Errorf("store.Upload called %d times, expected 0 when the name is known taken", len(store.uploaded))
	}
}

// TestService_Store_ConflictAtCommit checks the race window: the pre-check
// misses but the insert reports a duplicate. The just-written blob must be
// deleted again.
func TestService_Store_ConflictAtCommit(t *testing.T) {
	reg := &mockRegistry{
		createFn: func(_ context.Context, _ *Record) error {
			return ErrDuplicate
		},
	}
	store := &mockStorage{}
	svc := newTestService(reg, store)

	_, err := svc.Store(context.Background(), textUpload("contested"))
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("Store error = %v, expected ErrNameTaken", err)
	}
	if len(store.uploaded) != 1 {
		t.Fatalf("store.Upload called %d times, expected 1", len(store.uploaded))
	}
	if len(store.deleted) != 1 || store.deleted[0] != store.uploaded[0] {
		t.Errorf("store.Delete calls = %v, expected exactly the uploaded key %q", store.deleted, store.uploaded[0])
	}
}

// TestService_Store_CleanupFailure checks that a failing orphan delete does
// not change the client-facing outcome.
func TestService_Store_CleanupFailure(t *testing.T) {
	reg := &mockRegistry{
		createFn: func(_ context.Context, _ *Record) error {
			return ErrDuplicate
		},
	}
	store := &mockStorage{
		deleteFn: func(_ context.Context, _ string) error {
			return errors.New("bucket unreachable")
		},
	}
	svc := newTestService(reg, store)

	_, err := svc.Store(context.Background(), textUpload("contested"))
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("Store error = %v, expected ErrNameTaken despite the failed cleanup", err)
	}
}

// TestService_Store_CommitError checks that an unexpected registry failure
// also cleans up the written blob and surfaces as a wrapped error.
func TestService_Store_CommitError(t *testing.T) {
	boom := errors.New("connection reset")
	reg := &mockRegistry{
		createFn: func(_ context.Context, _ *Record) error {
			return boom
		},
	}
	store := &mockStorage{}
	svc := newTestService(reg, store)

	_, err := svc.Store(context.Background(), textUpload(""))
	if !errors.Is(err, boom) {
		t.Fatalf("Store error = %v, expected it to wrap the registry failure", err)
	}
	if len(store.deleted) != 1 {
		t.Errorf("store.Delete called %d times, expected 1", len(store.deleted))
	}
}

// TestService_Store_BlobWriteError checks that a failed blob write aborts the
// upload before any registry insert.
func TestService_Store_BlobWriteError(t *testing.T) {
	created := 0
	reg := &mockRegistry{
		createFn: func(_ context.Context, _ *Record) error {
			created++
			return nil
		},
	}
	store := &mockStorage{
		uploadFn: func(_ context.Context, _ string, _ io.Reader, _ int64, _ string) error {
			return errors.New("disk full")
		},
	}
	svc := newTestService(reg, store)

	_, err := svc.Store(context.Background(), textUpload(""))
	if err == nil {
		t.Fatal("Store succeeded, expected a blob write error")
	}
	if created != 0 {
		t.Errorf("registry.Create called %d times, expected 0 after a failed blob write", created)
	}
}

// --- Resolve ---

// TestService_Resolve_Caches checks that a resolved record is served from
// the cache on the next lookup.
func TestService_Resolve_Caches(t *testing.T) {
	reg := &mockRegistry{
		findFn: func(_ context.Context, shortID string) (*Record, error) {
			return testRecord(shortID), nil
		},
	}
	svc := newTestService(reg, &mockStorage{})

	for i := 0; i < 3; i++ {
		if _, err := svc.Resolve(context.Background(), "hot"); err != nil {
			t.Fatalf("Resolve error: %v", err)
		}
	}
	if reg.findCalls != 1 {
		t.Errorf("registry.Find called %d times, expected 1 with a warm cache", reg.findCalls)
	}
}

// TestService_Resolve_NotFound checks that misses are not cached as records.
func TestService_Resolve_NotFound(t *testing.T) {
	reg := &mockRegistry{}
	svc := newTestService(reg, &mockStorage{})

	if _, err := svc.Resolve(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Resolve error = %v, expected ErrNotFound", err)
	}
	if _, err := svc.Resolve(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second Resolve error = %v, expected ErrNotFound", err)
	}
	if reg.findCalls != 2 {
		t.Errorf("registry.Find called %d times, expected 2 (misses are not cached)", reg.findCalls)
	}
}

// --- Classification helpers ---

// TestDetectContentType covers the declared/extension/fallback ladder.
func TestDetectContentType(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		filename string
		want     string
	}{
		{"declared wins", "image/png", "photo.png", "image/png"},
		{"generic declared defers to extension", "application/octet-stream", "photo.png", "image/png"},
		{"empty declared uses extension", "", "page.html", "text/html; charset=utf-8"},
		{"no extension falls back", "", "README", "application/octet-stream"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := detectContentType(tt.declared, tt.filename); got != tt.want {
				t.Errorf("detectContentType(%q, %q) = %q, expected %q", tt.declared, tt.filename, got, tt.want)
			}
		})
	}
}

// TestKindForContentType checks kind classification and key prefixes.
func TestKindForContentType(t *testing.T) {
	tests := []struct {
		contentType string
		kind        ResourceKind
		prefix      string
	}{
		{"image/jpeg", KindImage, "images"},
		{"video/webm", KindVideo, "videos"},
		{"application/pdf", KindFile, "files"},
		{"text/plain", KindFile, "files"},
	}
	for _, tt := range tests {
		if got := KindForContentType(tt.contentType); got != tt.kind {
			t.Errorf("KindForContentType(%q) = %q, expected %q", tt.contentType, got, tt.kind)
		}
		if got := tt.kind.KeyPrefix(); got != tt.prefix {
			t.Errorf("%q.KeyPrefix() = %q, expected %q", tt.kind, got, tt.prefix)
		}
	}
}
