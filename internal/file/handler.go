package file

import (
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"

	"github.com/droplink/service/internal/response"
)

// Messages fixed by the public API contract.
const (
	msgNoFile      = "No file was uploaded."
	msgInvalidName = "Custom name contains invalid characters."
	msgNameTaken   = "This custom link name is already taken."
	msgStoreFailed = "Something went wrong while storing the file."
	msgTooLarge    = "The file exceeds the maximum allowed size."

	pageNotFound    = "File not found"
	pageTimeout     = "Timed out fetching the file from storage"
	pageFetchFailed = "Something went wrong while fetching this file"
)

// maxFieldBytes caps non-file form fields; custom names are short.
const maxFieldBytes = 1 << 10

var errNoFilePart = errors.New("multipart body carries no file part")

// LinkResponse is the success body of an upload.
type LinkResponse struct {
	Link string `json:"link"`
}

// Handler holds the HTTP handlers for uploading and retrieving files.
type Handler struct {
	svc       *Service
	deliverer Deliverer
	baseURL   string // empty means derive from the request
	maxBytes  int64
}

// NewHandler creates a new file Handler.
func NewHandler(svc *Service, deliverer Deliverer, baseURL string, maxBytes int64) *Handler {
	return &Handler{svc: svc, deliverer: deliverer, baseURL: baseURL, maxBytes: maxBytes}
}

// Upload godoc
//
//	@Summary		Upload a file
//	@Description	Stores the first file part of the multipart body and returns a shareable link. The optional customName field claims a custom identifier for the link.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Param			file		formData	file	true	"File to store (any field name is accepted)"
//	@Param			customName	formData	string	false	"Custom link name"
//	@Success		200	{object}	LinkResponse
//	@Failure		400	{object}	response.ErrorBody
//	@Failure		409	{object}	response.ErrorBody
//	@Failure		413	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBytes)

	up, cleanup, err := readUploadForm(r)
	defer cleanup()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			uploadsTotal.WithLabelValues("too_large").Inc()
			response.PayloadTooLarge(w, msgTooLarge)
			return
		}
		if !errors.Is(err, errNoFilePart) {
			log.Printf("reading upload form failed: %v", err)
		}
		uploadsTotal.WithLabelValues("no_file").Inc()
		response.BadRequest(w, msgNoFile)
		return
	}

	rec, err := h.svc.Store(r.Context(), *up)
	switch {
	case errors.Is(err, ErrInvalidName):
		response.BadRequest(w, msgInvalidName)
	case errors.Is(err, ErrNameTaken):
		response.Conflict(w, msgNameTaken)
	case err != nil:
		log.Printf("upload failed: %v", err)
		response.InternalError(w, msgStoreFailed)
	default:
		response.JSON(w, http.StatusOK, LinkResponse{Link: h.link(r, rec.ShortID)})
	}
}

// Serve godoc
//
//	@Summary		Retrieve a file
//	@Description	Serves the file behind a short link, either streamed directly or via a redirect to blob storage depending on the configured delivery mode.
//	@Tags			files
//	@Produce		octet-stream
//	@Param			shortID	path	string	true	"Short link identifier"
//	@Success		200
//	@Success		302
//	@Failure		404	{string}	string	"File not found"
//	@Failure		504	{string}	string	"Upstream fetch timed out"
//	@Failure		500	{string}	string	"Internal error"
//	@Router			/file/{shortID} [get]
func (h *Handler) Serve(w http.ResponseWriter, r *http.Request) {
	shortID := chi.URLParam(r, "shortID")

	rec, err := h.svc.Resolve(r.Context(), shortID)
	if errors.Is(err, ErrNotFound) {
		downloadsTotal.WithLabelValues("not_found").Inc()
		response.HTMLError(w, http.StatusNotFound, pageNotFound)
		return
	}
	if err != nil {
		log.Printf("resolving %s failed: %v", shortID, err)
		downloadsTotal.WithLabelValues("error").Inc()
		response.HTMLError(w, http.StatusInternalServerError, pageFetchFailed)
		return
	}

	switch err := h.deliverer.Deliver(w, r, rec); {
	case errors.Is(err, ErrBlobMissing):
		log.Printf("blob missing for %s (key %s)", rec.ShortID, rec.BlobKey)
		downloadsTotal.WithLabelValues("upstream_missing").Inc()
		response.HTMLError(w, http.StatusNotFound, pageNotFound)
	case errors.Is(err, ErrUpstreamTimeout):
		downloadsTotal.WithLabelValues("upstream_timeout").Inc()
		response.HTMLError(w, http.StatusGatewayTimeout, pageTimeout)
	case err != nil:
		log.Printf("delivering %s failed: %v", rec.ShortID, err)
		downloadsTotal.WithLabelValues("error").Inc()
		response.HTMLError(w, http.StatusInternalServerError, pageFetchFailed)
	}
}

// readUploadForm walks the multipart body in wire order. The first file part
// is spooled to a temp file so nothing reaches blob storage before the name
// checks have passed; later file parts are ignored. The returned cleanup
// must always be called and removes the spool.
func readUploadForm(r *http.Request) (*Upload, func(), error) {
	cleanup := func() {}

	mr, err := r.MultipartReader()
	if err != nil {
		return nil, cleanup, fmt.Errorf("read multipart body: %w", err)
	}

	var (
		up    Upload
		spool *os.File
	)
	for {
		part, err := mr.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, cleanup, fmt.Errorf("read multipart part: %w", err)
		}

		if part.FileName() == "" {
			if part.FormName() == "customName" {
				v, err := io.ReadAll(io.LimitReader(part, maxFieldBytes))
				if err != nil {
					return nil, cleanup, fmt.Errorf("read customName field: %w", err)
				}
				up.CustomName = string(v)
			}
			continue
		}

		// Only the first file part counts; NextPart drains the unread rest.
		if spool != nil {
			continue
		}

		f, err := os.CreateTemp("", "droplink-upload-*")
		if err != nil {
			return nil, cleanup, fmt.Errorf("create spool file: %w", err)
		}
		spool = f
		cleanup = func() {
			spool.Close()
			os.Remove(spool.Name())
		}

		n, err := io.Copy(spool, part)
		if err != nil {
			return nil, cleanup, fmt.Errorf("spool upload: %w", err)
		}
		up.OriginalName = part.FileName()
		up.ContentType = part.Header.Get("Content-Type")
		up.Size = n
	}

	if spool == nil {
		return nil, cleanup, errNoFilePart
	}
	if _, err := spool.Seek(0, io.SeekStart); err != nil {
		return nil, cleanup, fmt.Errorf("rewind spool: %w", err)
	}
	up.Reader = spool
	return &up, cleanup, nil
}

// link builds the shareable URL for a short identifier. The configured base
// URL wins; without one the request's own scheme and host are used.
func (h *Handler) link(r *http.Request, shortID string) string {
	base := h.baseURL
	if base == "" {
		scheme := "http"
		if r.TLS != nil {
			scheme = "https"
		}
		base = scheme + "://" + r.Host
	}
	return base + "/file/" + shortID
}
