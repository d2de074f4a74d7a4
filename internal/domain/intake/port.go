package intake

import (
	"context"
	"io"
)

// Repository port (interface untuk persistence)
type Repository interface {
	Save(ctx context.Context, in *Intake) error
	Get(ctx context.Context, id ID) (*Intake, error)
	Delete(ctx context.Context, id ID) error
	Paginate(ctx context.Context, page, pageSize int) ([]*Intake, int64, error)
}

// ImageStore port (interface untuk penyimpanan foto)
type ImageStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, mimeType string) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
}

// ImageKey is the object key of a photo in an ImageStore.
func ImageKey(id ID, imageID ImageID) string {
	return string(id) + "/" + string(imageID)
}
