package upload

import (
	"context"

	"uploadflow/internal/preview"
)

// Resolver issues upload slots for staged filenames. A response may omit
// filenames it could not resolve; that is not an error.
type Resolver interface {
	Presign(ctx context.Context, req *PresignRequest) ([]UploadSlot, error)
}

// Committer confirms a set of uploaded files.
type Committer interface {
	Confirm(ctx context.Context, req *ConfirmRequest) (*ConfirmResponse, error)
}

// Transport performs the binary PUT of one file. progress may be called zero
// or more times with a fraction in [0,1] before Put returns.
type Transport interface {
	Put(ctx context.Context, url string, data []byte, progress func(float64)) error
}

// Previewer renders a thumbnail for a staged image.
type Previewer interface {
	Preview(filename string, data []byte) (preview.Preview, error)
}
