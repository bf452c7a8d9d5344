package file

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// mockPresignStorage is a mockStorage that can also presign attachment URLs.
type mockPresignStorage struct {
	mockStorage
	presignFn func(ctx context.Context, key, filename string) (string, error)
}

func (m *mockPresignStorage) AttachmentURL(ctx context.Context, key, filename string) (string, error) {
	return m.presignFn(ctx, key, filename)
}

// failingWriter drops the body mid-stream after headers went out.
type failingWriter struct {
	*httptest.ResponseRecorder
}

func (f *failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("client went away")
}

// --- LocalDeliverer ---

// TestLocalDeliverer_Streams checks a blob on disk is streamed with its
// recorded content type.
func TestLocalDeliverer_Streams(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.txt")
	if err := os.WriteFile(path, []byte("local bytes"), 0o644); err != nil {
		t.Fatalf("writing blob: %v", err)
	}

	rec := testRecord("local")
	rec.Location = path
	rec.ContentType = "text/plain"

	rr := httptest.NewRecorder()
	d := NewLocalDeliverer()
	if err := d.Deliver(rr, httptest.NewRequest(http.MethodGet, "/file/local", nil), rec); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if rr.Body.String() != "local bytes" {
		t.Errorf("body = %q, expected %q", rr.Body.String(), "local bytes")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "text/plain" {
		t.Errorf("Content-Type = %q, expected text/plain", ct)
	}
	if cl := rr.Header().Get("Content-Length"); cl != "11" {
		t.Errorf("Content-Length = %q, expected 11", cl)
	}
}

// TestLocalDeliverer_MissingBlob checks a record pointing at a deleted file
// reports ErrBlobMissing.
func TestLocalDeliverer_MissingBlob(t *testing.T) {
	rec := testRecord("gone")
	rec.Location = filepath.Join(t.TempDir(), "never-written")

	d := NewLocalDeliverer()
	err := d.Deliver(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/file/gone", nil), rec)
	if !errors.Is(err, ErrBlobMissing) {
		t.Errorf("Deliver error = %v, expected ErrBlobMissing", err)
	}
}

// TestLocalDeliverer_MidStreamFailure checks that a write failure after
// headers went out is swallowed, not surfaced as a deliverable error.
func TestLocalDeliverer_MidStreamFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "blob.bin")
	if err := os.WriteFile(path, []byte("payload"), 0o644); err != nil {
		t.Fatalf("writing blob: %v", err)
	}

	rec := testRecord("drop")
	rec.Location = path

	d := NewLocalDeliverer()
	w := &failingWriter{httptest.NewRecorder()}
	if err := d.Deliver(w, httptest.NewRequest(http.MethodGet, "/file/drop", nil), rec); err != nil {
		t.Errorf("Deliver error = %v, expected nil once streaming has begun", err)
	}
}

// --- RedirectDeliverer ---

// TestRedirectDeliverer_PlainURL checks the 302 points at the blob URL.
func TestRedirectDeliverer_PlainURL(t *testing.T) {
	rec := testRecord("redir")
	rec.Location = "https://blobs.test/files/abc.pdf"

	rr := httptest.NewRecorder()
	d := NewRedirectDeliverer(&mockStorage{}, false)
	if err := d.Deliver(rr, httptest.NewRequest(http.MethodGet, "/file/redir", nil), rec); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if rr.Code != http.StatusFound {
		t.Errorf("status = %d, expected 302", rr.Code)
	}
	if loc := rr.Header().Get("Location"); loc != rec.Location {
		t.Errorf("Location = %q, expected %q", loc, rec.Location)
	}
}

// TestRedirectDeliverer_Attachment checks that attachment mode redirects to
// the presigned download URL instead.
func TestRedirectDeliverer_Attachment(t *testing.T) {
	store := &mockPresignStorage{
		presignFn: func(_ context.Context, key, filename string) (string, error) {
			if key != "files/abc.pdf" {
				t.Errorf("presign key = %q, expected files/abc.pdf", key)
			}
			if filename != "report.pdf" {
				t.Errorf("presign filename = %q, expected report.pdf", filename)
			}
			return "https://blobs.test/signed?disposition=attachment", nil
		},
	}

	rr := httptest.NewRecorder()
	d := NewRedirectDeliverer(store, true)
	if err := d.Deliver(rr, httptest.NewRequest(http.MethodGet, "/file/redir", nil), testRecord("redir")); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if loc := rr.Header().Get("Location"); loc != "https://blobs.test/signed?disposition=attachment" {
		t.Errorf("Location = %q, expected the presigned URL", loc)
	}
}

// TestRedirectDeliverer_PresignFallback checks that a presign failure falls
// back to the plain URL instead of failing the download.
func TestRedirectDeliverer_PresignFallback(t *testing.T) {
	store := &mockPresignStorage{
		presignFn: func(_ context.Context, _, _ string) (string, error) {
			return "", errors.New("clock skew")
		},
	}

	rec := testRecord("redir")
	rr := httptest.NewRecorder()
	d := NewRedirectDeliverer(store, true)
	if err := d.Deliver(rr, httptest.NewRequest(http.MethodGet, "/file/redir", nil), rec); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if loc := rr.Header().Get("Location"); loc != rec.Location {
		t.Errorf("Location = %q, expected fallback to %q", loc, rec.Location)
	}
}

// --- ProxyDeliverer ---

// TestProxyDeliverer_Streams checks the upstream body is piped through with
// download headers set.
func TestProxyDeliverer_Streams(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Length", "12")
		w.Header().Set("ETag", `"v1"`)
		_, _ = w.Write([]byte("remote bytes"))
	}))
	defer upstream.Close()

	rec := testRecord("proxy")
	rec.Location = upstream.URL
	rec.ContentType = "application/pdf"

	rr := httptest.NewRecorder()
	d := NewProxyDeliverer(5 * time.Second)
	if err := d.Deliver(rr, httptest.NewRequest(http.MethodGet, "/file/proxy", nil), rec); err != nil {
		t.Fatalf("Deliver error: %v", err)
	}

	if rr.Body.String() != "remote bytes" {
		t.Errorf("body = %q, expected %q", rr.Body.String(), "remote bytes")
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/pdf" {
		t.Errorf("Content-Type = %q, expected application/pdf", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); cd != `attachment; filename="report.pdf"` {
		t.Errorf("Content-Disposition = %q, expected an attachment with the original name", cd)
	}
	if et := rr.Header().Get("ETag"); et != `"v1"` {
		t.Errorf("ETag = %q, expected it forwarded from upstream", et)
	}
}

// TestProxyDeliverer_UpstreamMissing checks an upstream 404 maps to
// ErrBlobMissing before any response bytes are written.
func TestProxyDeliverer_UpstreamMissing(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer upstream.Close()

	rec := testRecord("proxy")
	rec.Location = upstream.URL

	rr := httptest.NewRecorder()
	d := NewProxyDeliverer(5 * time.Second)
	err := d.Deliver(rr, httptest.NewRequest(http.MethodGet, "/file/proxy", nil), rec)
	if !errors.Is(err, ErrBlobMissing) {
		t.Fatalf("Deliver error = %v, expected ErrBlobMissing", err)
	}
	if rr.Body.Len() != 0 {
		t.Errorf("body = %q, expected nothing written", rr.Body.String())
	}
}

// TestProxyDeliverer_UpstreamError checks a non-200 upstream answer surfaces
// as a generic error.
func TestProxyDeliverer_UpstreamError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer upstream.Close()

	rec := testRecord("proxy")
	rec.Location = upstream.URL

	d := NewProxyDeliverer(5 * time.Second)
	err := d.Deliver(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/file/proxy", nil), rec)
	if err == nil || errors.Is(err, ErrBlobMissing) || errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("Deliver error = %v, expected a generic upstream error", err)
	}
}

// TestProxyDeliverer_Timeout checks a slow upstream trips the deadline.
func TestProxyDeliverer_Timeout(t *testing.T) {
	release := make(chan struct{})
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
	}))
	defer upstream.Close()
	defer close(release)

	rec := testRecord("proxy")
	rec.Location = upstream.URL

	d := NewProxyDeliverer(100 * time.Millisecond)
	err := d.Deliver(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/file/proxy", nil), rec)
	if !errors.Is(err, ErrUpstreamTimeout) {
		t.Fatalf("Deliver error = %v, expected ErrUpstreamTimeout", err)
	}
}
