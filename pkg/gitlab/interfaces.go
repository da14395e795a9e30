package gitlab

import (
	"context"
)

// CommitLister implementations fetch the commits on one branch of one
// project from a GitLab host, reporting every outcome as a CommitResult.
type CommitLister interface {
	Commits(ctx context.Context, projectID, ref, since string) CommitResult
}
