package file

import (
	"strings"
	"time"
)

// ResourceKind classifies a stored blob. The kind decides which key prefix
// the blob lives under, which some storage providers need to build correct
// retrieval URLs.
type ResourceKind string

const (
	KindImage ResourceKind = "image"
	KindVideo ResourceKind = "video"
	KindFile  ResourceKind = "file"
)

// KeyPrefix returns the object-key directory for blobs of this kind.
func (k ResourceKind) KeyPrefix() string {
	switch k {
	case KindImage:
		return "images"
	case KindVideo:
		return "videos"
	default:
		return "files"
	}
}

// KindForContentType classifies a MIME type into a ResourceKind.
func KindForContentType(contentType string) ResourceKind {
	switch {
	case strings.HasPrefix(contentType, "image/"):
		return KindImage
	case strings.HasPrefix(contentType, "video/"):
		return KindVideo
	default:
		return KindFile
	}
}

// Record is the persisted mapping from a short identifier to a stored blob.
// Records are immutable after creation.
type Record struct {
	ShortID      string       `json:"shortId"`
	OriginalName string       `json:"originalName"`
	Location     string       `json:"-"` // remote URL or absolute local path
	BlobKey      string       `json:"-"` // provider object key, used for delete
	ContentType  string       `json:"contentType"`
	Kind         ResourceKind `json:"kind"`
	Size         int64        `json:"size"`
	CreatedAt    time.Time    `json:"createdAt"`
}
