package application_test

import (
	"context"
	"image/color"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dfryer1193/retrolaminate/editor/application"
	"github.com/dfryer1193/retrolaminate/editor/domain"
	"github.com/dfryer1193/retrolaminate/editor/persistence"
)

func TestAssetEncoder(t *testing.T) {
	ctx := context.Background()
	repo := persistence.NewMemoryAssetRepository()
	image := pngBytes(t, color.White)

	seed := map[string][]byte{
		"photo": image,
		"text":  []byte("just some text, not a picture"),
		"empty": {},
	}
	for id, content := range seed {
		require.NoError(t, repo.SaveAsset(ctx, &domain.Asset{
			AssetRef: domain.AssetRef{ID: id, MediaType: "application/octet-stream"},
			Content:  content,
		}))
	}

	encoder := application.NewAssetEncoder(repo)

	tests := map[string]struct {
		ref          domain.AssetRef
		expMediaType string
		expErr       error
	}{
		"An image should be encoded with its sniffed media type.": {
			ref:          domain.AssetRef{ID: "photo"},
			expMediaType: "image/png",
		},
		"A missing reference should fail to encode.": {
			ref:    domain.AssetRef{},
			expErr: domain.ErrEncoding,
		},
		"An unknown asset should fail to encode.": {
			ref:    domain.AssetRef{ID: "gone"},
			expErr: domain.ErrAssetNotFound,
		},
		"Empty content should fail to encode.": {
			ref:    domain.AssetRef{ID: "empty"},
			expErr: domain.ErrEncoding,
		},
		"Content that is not an image should fail to encode.": {
			ref:    domain.AssetRef{ID: "text"},
			expErr: domain.ErrUnsupportedMedia,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			payload, err := encoder.Encode(ctx, test.ref)

			if test.expErr != nil {
				assert.ErrorIs(t, err, test.expErr)
				assert.ErrorIs(t, err, domain.ErrEncoding)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expMediaType, payload.MediaType)
			assert.Equal(t, image, payload.Data)
		})
	}
}

func TestDownloadFilename(t *testing.T) {
	tests := map[string]struct {
		mediaType string
		exp       string
	}{
		"PNG output should use the png extension.":  {mediaType: "image/png", exp: "retrolaminated-id.png"},
		"JPEG output should use the jpg extension.": {mediaType: "image/jpeg", exp: "retrolaminated-id.jpg"},
		"An unknown type should fall back to png.":  {mediaType: "application/x-unknown", exp: "retrolaminated-id.png"},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, test.exp, application.DownloadFilename(test.mediaType))
		})
	}
}
