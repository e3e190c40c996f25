package registryproc

import (
	"context"
	"strings"
)

// Result is the status message a registry mutation function returns. The
// contract is a single text row prefixed SUCCESS or ERROR; anything else is
// treated as ambiguous by the caller.
type Result struct {
	Message string
}

func (r Result) Success() bool {
	return strings.HasPrefix(r.Message, "SUCCESS")
}

func (r Result) Empty() bool {
	return strings.TrimSpace(r.Message) == ""
}

// Channel is the remote execution channel for cluster registry mutations.
// Calls can fail without revealing whether the mutation committed; the
// mutation guard reconciles around every non-success outcome rather than
// trusting this return path.
type Channel interface {
	UpsertCluster(ctx context.Context, clusterID, eclExpression, description, actor, clusterType string) (Result, error)
	RenameCluster(ctx context.Context, oldID, newID, eclExpression, description, actor, clusterType string) (Result, error)
	DeleteCluster(ctx context.Context, clusterID string) (Result, error)
}
