package file

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/droplink/service/internal/storage"
)

var (
	// ErrBlobMissing means the registry record exists but the blob itself is
	// gone from storage.
	ErrBlobMissing = errors.New("stored blob is missing")
	// ErrUpstreamTimeout means the remote store did not answer within the
	// proxy deadline.
	ErrUpstreamTimeout = errors.New("remote store timed out")
)

var downloadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "droplink_downloads_total",
	Help: "Download attempts by outcome.",
}, []string{"status"})

// proxiedHeaders are the upstream response headers forwarded to the client
// when proxying.
var proxiedHeaders = []string{
	"Content-Length",
	"Content-Range",
	"Accept-Ranges",
	"ETag",
	"Last-Modified",
	"Cache-Control",
}

// Deliverer sends a stored file to the client. Implementations return
// ErrBlobMissing, ErrUpstreamTimeout or another error only while the response
// is still unwritten; once headers are out, a failure is logged and the
// connection simply ends.
type Deliverer interface {
	Deliver(w http.ResponseWriter, r *http.Request, rec *Record) error
}

// LocalDeliverer streams blobs straight from the local filesystem.
type LocalDeliverer struct{}

// NewLocalDeliverer creates a LocalDeliverer.
func NewLocalDeliverer() *LocalDeliverer {
	return &LocalDeliverer{}
}

// Deliver opens the blob file at the record's location and streams it.
func (d *LocalDeliverer) Deliver(w http.ResponseWriter, r *http.Request, rec *Record) error {
	f, err := os.Open(rec.Location)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrBlobMissing
		}
		return fmt.Errorf("open blob file: %w", err)
	}
	defer f.Close()

	w.Header().Set("Content-Type", rec.ContentType)
	if info, err := f.Stat(); err == nil {
		w.Header().Set("Content-Length", strconv.FormatInt(info.Size(), 10))
	}

	if _, err := io.Copy(w, f); err != nil {
		// Headers are already sent; nothing left to tell the client.
		log.Printf("streaming %s aborted: %v", rec.ShortID, err)
		downloadsTotal.WithLabelValues("stream_error").Inc()
		return nil
	}
	downloadsTotal.WithLabelValues("success").Inc()
	return nil
}

// RedirectDeliverer answers with a redirect to the blob's own URL. With
// attachment enabled and a presigning store, the target URL carries a forced
// download disposition.
type RedirectDeliverer struct {
	store      storage.Storage
	attachment bool
}

// NewRedirectDeliverer creates a RedirectDeliverer.
func NewRedirectDeliverer(store storage.Storage, attachment bool) *RedirectDeliverer {
	return &RedirectDeliverer{store: store, attachment: attachment}
}

// Deliver redirects the client to the blob URL.
func (d *RedirectDeliverer) Deliver(w http.ResponseWriter, r *http.Request, rec *Record) error {
	target := rec.Location
	if d.attachment {
		if p, ok := d.store.(storage.Presigner); ok {
			u, err := p.AttachmentURL(r.Context(), rec.BlobKey, rec.OriginalName)
			if err != nil {
				// Fall back to the plain URL rather than failing the download.
				log.Printf("presigning %s failed, redirecting to public URL: %v", rec.ShortID, err)
			} else {
				target = u
			}
		}
	}
	http.Redirect(w, r, target, http.StatusFound)
	downloadsTotal.WithLabelValues("redirect").Inc()
	return nil
}

// ProxyDeliverer fetches the blob from its remote URL server-side and pipes
// it through, so clients never talk to the storage provider directly.
type ProxyDeliverer struct {
	client *http.Client
}

// NewProxyDeliverer creates a ProxyDeliverer whose upstream fetches are
// bounded by timeout.
func NewProxyDeliverer(timeout time.Duration) *ProxyDeliverer {
	return &ProxyDeliverer{client: &http.Client{Timeout: timeout}}
}

// Deliver fetches the blob and streams it with an attachment disposition.
func (d *ProxyDeliverer) Deliver(w http.ResponseWriter, r *http.Request, rec *Record) error {
	req, err := http.NewRequestWithContext(r.Context(), http.MethodGet, rec.Location, nil)
	if err != nil {
		return fmt.Errorf("build upstream request: %w", err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrUpstreamTimeout
		}
		return fmt.Errorf("fetch blob: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrBlobMissing
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("remote store answered %d for %s", resp.StatusCode, rec.ShortID)
	}

	w.Header().Set("Content-Type", rec.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", rec.OriginalName))
	for _, h := range proxiedHeaders {
		if v := resp.Header.Get(h); v != "" {
			w.Header().Set(h, v)
		}
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		// Headers are already sent; nothing left to tell the client.
		log.Printf("proxying %s aborted: %v", rec.ShortID, err)
		downloadsTotal.WithLabelValues("stream_error").Inc()
		return nil
	}
	downloadsTotal.WithLabelValues("success").Inc()
	return nil
}

// isTimeout reports whether err is a client timeout or a deadline expiry.
func isTimeout(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) && ue.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}
