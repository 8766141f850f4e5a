package assignment

import (
	"context"

	"medannotate/internal/keywords"
	"medannotate/internal/workitem"
)

// Repository is the durable store the manager schedules against.
// ClaimNext must select and lock in one atomic step. AdvanceProgress must
// only write while holder still owns an incomplete expert claim whose stored
// vector equals prev.
type Repository interface {
	ClaimNext(ctx context.Context, track workitem.Track, specialty string, regions, modalities []string, claimant string) (*workitem.WorkItem, error)
	FindActiveClaim(ctx context.Context, track workitem.Track, claimant string) (*workitem.WorkItem, error)
	GetByID(ctx context.Context, id int64) (*workitem.WorkItem, error)
	ReleaseLock(ctx context.Context, itemID int64, track workitem.Track) error
	SetProgress(ctx context.Context, itemID int64, progress keywords.Progress) error
	AdvanceProgress(ctx context.Context, itemID int64, holder string, prev, next keywords.Progress, records []workitem.Record) ([]workitem.Record, error)
	MarkCompleted(ctx context.Context, itemID int64, track workitem.Track) error
	Heartbeat(ctx context.Context, itemID int64, track workitem.Track, claimant string) error
	CountTotal(ctx context.Context) (int, error)
	CountCompleted(ctx context.Context, track workitem.Track) (int, error)
	AddRecords(ctx context.Context, records []workitem.Record) ([]workitem.Record, error)
}
