package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/agrivet-pos/pkg/logger"
)

// snapshotLister lists sessions that still have a cart snapshot, dropping
// expired ones from the open-session index as a side effect.
type snapshotLister interface {
	List(ctx context.Context) ([]string, error)
}

type snapshotPruneJob struct {
	logg      *logger.Logger
	snapshots snapshotLister
}

// NewSnapshotPruneJob returns a job that clears expired carts out of the
// open-session index so a restarting till does not try to restore them.
func NewSnapshotPruneJob(logg *logger.Logger, snapshots snapshotLister) (Job, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if snapshots == nil {
		return nil, fmt.Errorf("snapshot store required")
	}
	return &snapshotPruneJob{logg: logg, snapshots: snapshots}, nil
}

func (j *snapshotPruneJob) Name() string { return "snapshot-prune" }

func (j *snapshotPruneJob) Run(ctx context.Context) error {
	open, err := j.snapshots.List(ctx)
	if err != nil {
		return fmt.Errorf("prune snapshots: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "open_sessions", len(open)), "snapshot index pruned")
	return nil
}
