package events

import (
	"context"
)

// Publisher implementations notify a downstream consumer that a
// repository changed, one event per repository identifier.
type Publisher interface {
	Publish(ctx context.Context, repoID string) error
}
