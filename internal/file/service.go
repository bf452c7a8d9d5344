package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"mime"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/droplink/service/internal/storage"
)

var (
	// ErrInvalidName means a custom name sanitized down to nothing.
	ErrInvalidName = errors.New("custom name contains no usable characters")
	// ErrNameTaken means the chosen identifier is already claimed.
	ErrNameTaken = errors.New("custom link name already taken")
)

var (
	uploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "droplink_uploads_total",
		Help: "Upload attempts by outcome.",
	}, []string{"status"})

	uploadBytesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "droplink_upload_bytes_total",
		Help: "Total bytes accepted into blob storage.",
	})

	orphanCleanupFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "droplink_orphan_cleanup_failures_total",
		Help: "Blob deletes that failed after a record commit failure, leaving an orphaned blob behind.",
	})
)

// Upload describes one incoming file.
type Upload struct {
	Reader       io.Reader
	OriginalName string
	ContentType  string // from the part header; may be empty or generic
	Size         int64
	CustomName   string // raw user input; empty means generate an identifier
}

// Service owns the upload and retrieval flows on top of a registry and a
// blob store.
type Service struct {
	registry Registry
	store    storage.Storage
	cache    *RecordCache
}

// NewService creates a Service.
func NewService(registry Registry, store storage.Storage, cache *RecordCache) *Service {
	return &Service{registry: registry, store: store, cache: cache}
}

// Store validates the identifier, writes the blob and commits the registry
// record, in that order. The registry insert is the authoritative uniqueness
// check; when it reports a duplicate the just-written blob is deleted again
// so no unreachable blob survives a rejected upload.
func (s *Service) Store(ctx context.Context, up Upload) (*Record, error) {
	var shortID string
	if up.CustomName != "" {
		shortID = SanitizeName(up.CustomName)
		if shortID == "" {
			uploadsTotal.WithLabelValues("invalid_name").Inc()
			return nil, ErrInvalidName
		}
		// Advisory fast-fail before the blob is written. Two racing uploads
		// can both pass this check; the Create below decides the winner.
		if _, err := s.registry.Find(ctx, shortID); err == nil {
			uploadsTotal.WithLabelValues("name_taken").Inc()
			return nil, ErrNameTaken
		} else if !errors.Is(err, ErrNotFound) {
			uploadsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("check custom name: %w", err)
		}
	} else {
		id, err := NewShortID()
		if err != nil {
			uploadsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("generate short id: %w", err)
		}
		shortID = id
	}

	contentType := detectContentType(up.ContentType, up.OriginalName)
	kind := KindForContentType(contentType)
	blobKey := fmt.Sprintf("%s/%s%s", kind.KeyPrefix(), uuid.New().String(), filepath.Ext(up.OriginalName))

	if err := s.store.Upload(ctx, blobKey, up.Reader, up.Size, contentType); err != nil {
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("write blob: %w", err)
	}

	rec := &Record{
		ShortID:      shortID,
		OriginalName: up.OriginalName,
		Location:     s.store.Location(blobKey),
		BlobKey:      blobKey,
		ContentType:  contentType,
		Kind:         kind,
		Size:         up.Size,
		CreatedAt:    time.Now().UTC(),
	}

	if err := s.registry.Create(ctx, rec); err != nil {
		s.deleteOrphan(ctx, blobKey)
		if errors.Is(err, ErrDuplicate) {
			uploadsTotal.WithLabelValues("name_taken").Inc()
			return nil, ErrNameTaken
		}
		uploadsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("commit file record: %w", err)
	}

	uploadsTotal.WithLabelValues("success").Inc()
	uploadBytesTotal.Add(float64(up.Size))
	return rec, nil
}

// Resolve returns the record for shortID, consulting the cache first.
func (s *Service) Resolve(ctx context.Context, shortID string) (*Record, error) {
	if rec, ok := s.cache.Get(shortID); ok {
		return rec, nil
	}
	rec, err := s.registry.Find(ctx, shortID)
	if err != nil {
		return nil, err
	}
	s.cache.Set(shortID, rec)
	return rec, nil
}

// deleteOrphan removes a blob whose record never committed. The failure is
// logged and counted but does not change the outcome already chosen for the
// client; the blob is merely unreachable garbage at this point.
func (s *Service) deleteOrphan(ctx context.Context, blobKey string) {
	if err := s.store.Delete(ctx, blobKey); err != nil {
		orphanCleanupFailures.Inc()
		log.Printf("orphan cleanup failed for blob %s: %v", blobKey, err)
	}
}

// detectContentType prefers the client-declared type, then the filename
// extension, then the generic binary fallback.
func detectContentType(declared, filename string) string {
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if byExt := mime.TypeByExtension(filepath.Ext(filename)); byExt != "" {
		return byExt
	}
	return "application/octet-stream"
}
