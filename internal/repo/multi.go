package repo

import (
	"context"

	"go.uber.org/multierr"

	"github.com/hamed0406/romonitor/internal/domain"
)

// MultiPublisher hands each incident to every sink. One failing sink does not
// stop the others; errors are combined.
type MultiPublisher []IncidentPublisher

func (m MultiPublisher) Publish(ctx context.Context, in domain.Incident) error {
	var err error
	for _, p := range m {
		if p == nil {
			continue
		}
		err = multierr.Append(err, p.Publish(ctx, in))
	}
	return err
}
