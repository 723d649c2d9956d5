package ports

import (
	"context"

	"godfi/domain/core"
	"godfi/domain/cutoff"
)

// RunRepository persists completed cutoff runs. Get returns
// core.ErrRunNotFound (wrapped) for unknown IDs.
type RunRepository interface {
	Save(ctx context.Context, run *cutoff.Run) error
	Get(ctx context.Context, id core.RunID) (*cutoff.Run, error)
}
