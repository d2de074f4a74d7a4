package settings

import "context"

// Store persists Settings. Load returns ok=false when nothing was saved yet.
type Store interface {
	Load(ctx context.Context) (s Settings, ok bool, err error)
	Save(ctx context.Context, s Settings) error
}
