package repo

import (
	"context"

	"github.com/hamed0406/romonitor/internal/domain"
)

// Ports (interfaces) the scheduler depends on.

// InventorySource returns the current set of sites. Codes in one snapshot are
// unique; sources coalesce or reject duplicates themselves.
type InventorySource interface {
	Snapshot(ctx context.Context) ([]domain.Site, error)
}

// IncidentPublisher records one incident. It is only called from the
// scheduler goroutine.
type IncidentPublisher interface {
	Publish(ctx context.Context, in domain.Incident) error
}
