package domain

import "context"

// Payload is an asset serialized for transport to the transformation service.
type Payload struct {
	Data      []byte
	MediaType string
}

// TransformRequest is everything the transformation service receives.
type TransformRequest struct {
	Payload     Payload
	Instruction string
}

// TransformResult is the decoded image returned by the service.
type TransformResult struct {
	Content   []byte
	MediaType string
}

// Transformer applies the stylistic transformation. Implementations wrap
// the remote image generation API and are treated as opaque.
type Transformer interface {
	Transform(ctx context.Context, req TransformRequest) (*TransformResult, error)
}
