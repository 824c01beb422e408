package domain

import (
	"context"
	"io"
	"strings"
	"time"
)

// AssetRef identifies a stored image without carrying its bytes.
// The zero value means "no asset".
type AssetRef struct {
	ID        string
	MediaType string
	Size      int64
	Filename  string
}

// IsZero reports whether the reference points at nothing.
func (r AssetRef) IsZero() bool {
	return r.ID == ""
}

// Asset is a stored image blob together with its reference data.
type Asset struct {
	AssetRef
	Content   []byte
	CreatedAt time.Time
}

// Upload is a complete, already-resident binary object handed over by the
// selection mechanism (file picker, drag and drop, multipart form).
type Upload struct {
	Filename  string
	MediaType string
	Content   io.Reader
}

// IsImageMediaType reports whether a media type names an image.
func IsImageMediaType(mediaType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(mediaType)), "image/")
}

type AssetRepository interface {
	// SaveAsset stores the asset content and its record
	SaveAsset(ctx context.Context, asset *Asset) error

	// GetAsset retrieves an asset, content included
	GetAsset(ctx context.Context, id string) (*Asset, error)

	// DeleteAsset removes an asset and its content
	DeleteAsset(ctx context.Context, id string) error
}
