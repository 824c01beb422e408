package application

import (
	"context"
	"fmt"
	"mime"

	"github.com/gabriel-vasile/mimetype"

	"github.com/dfryer1193/retrolaminate/editor/domain"
)

// Encoder turns a stored asset into the payload sent to the transformation service.
type Encoder interface {
	Encode(ctx context.Context, ref domain.AssetRef) (domain.Payload, error)
}

// AssetEncoder loads the asset bytes from a repository and checks they are
// really an image before handing them over.
type AssetEncoder struct {
	assets domain.AssetRepository
}

func NewAssetEncoder(assets domain.AssetRepository) *AssetEncoder {
	return &AssetEncoder{assets: assets}
}

// Encode returns errors wrapping domain.ErrEncoding.
func (e *AssetEncoder) Encode(ctx context.Context, ref domain.AssetRef) (domain.Payload, error) {
	if ref.IsZero() {
		return domain.Payload{}, fmt.Errorf("%w: no asset", domain.ErrEncoding)
	}

	asset, err := e.assets.GetAsset(ctx, ref.ID)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("%w: loading asset %s: %w", domain.ErrEncoding, ref.ID, err)
	}

	if len(asset.Content) == 0 {
		return domain.Payload{}, fmt.Errorf("%w: asset %s is empty", domain.ErrEncoding, ref.ID)
	}

	mediaType, err := sniffImageType(asset.Content)
	if err != nil {
		return domain.Payload{}, fmt.Errorf("%w: asset %s: %w", domain.ErrEncoding, ref.ID, err)
	}

	return domain.Payload{
		Data:      asset.Content,
		MediaType: mediaType,
	}, nil
}

// sniffImageType detects the media type from content and fails with
// domain.ErrUnsupportedMedia for anything that is not an image.
func sniffImageType(content []byte) (string, error) {
	detected := mimetype.Detect(content)
	mediaType, _, err := mime.ParseMediaType(detected.String())
	if err != nil {
		mediaType = detected.String()
	}

	if !domain.IsImageMediaType(mediaType) {
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mediaType)
	}

	return mediaType, nil
}
