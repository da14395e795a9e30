package connections

import (
	"context"
)

// Resolver takes a connection id and finds the host and credential needed
// to reach a GitLab server, or returns an error.
type Resolver interface {
	Resolve(ctx context.Context, id string) (Connection, error)
}
