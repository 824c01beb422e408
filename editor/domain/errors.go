package domain

import "errors"

var (
	// ErrEncoding means the input asset could not be turned into a transport payload.
	ErrEncoding = errors.New("asset encoding failed")
	// ErrService means the transformation service rejected, errored or returned no image.
	ErrService = errors.New("transformation service failed")
	// ErrNavigationRejected means undo or redo was unavailable or the editor was busy.
	ErrNavigationRejected = errors.New("navigation rejected")

	ErrBusy             = errors.New("a transformation is already in flight")
	ErrNoAsset          = errors.New("current snapshot has no asset to process")
	ErrNoResult         = errors.New("current snapshot has no result")
	ErrUnsupportedMedia = errors.New("unsupported media type")
	ErrAssetNotFound    = errors.New("asset not found")
)
