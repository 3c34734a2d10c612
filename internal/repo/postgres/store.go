package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/domain"
	"github.com/hamed0406/romonitor/internal/repo"
)

var _ repo.IncidentPublisher = (*Store)(nil)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS incidents (
  id             UUID PRIMARY KEY,
  site_code      TEXT NOT NULL,
  endpoint       TEXT NOT NULL,
  endpoint_class TEXT NOT NULL,
  status         TEXT NOT NULL,
  city           TEXT NOT NULL,
  state          TEXT NOT NULL,
  region         TEXT NOT NULL,
  bandwidth_mbps DOUBLE PRECISION NULL,
  cycle          BIGINT NOT NULL,
  occurred_at    TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_incidents_site_time ON incidents (site_code, occurred_at DESC);
`

type Store struct {
	pool *pgxpool.Pool
	log  *zap.Logger
}

// New connects, pings and ensures the incidents table exists.
func New(ctx context.Context, dsn string, log *zap.Logger) (*Store, error) {
	if log == nil {
		log = zap.NewNop()
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}
	ctxPing, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctxPing); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{pool: pool, log: log}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

func (s *Store) Publish(ctx context.Context, in domain.Incident) error {
	id := uuid.New()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO incidents
		   (id, site_code, endpoint, endpoint_class, status, city, state, region, bandwidth_mbps, cycle, occurred_at)
		 VALUES
		   ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		id, string(in.SiteCode), in.Endpoint, string(in.EndpointClass), string(in.Status),
		in.City, in.State, in.Region, in.BandwidthMbps, int64(in.Cycle), in.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("insert incident: %w", err)
	}
	s.log.Debug("pg_incident_inserted",
		zap.String("id", id.String()),
		zap.String("site_code", string(in.SiteCode)),
	)
	return nil
}

// Recent returns the newest incidents for a site, newest first.
func (s *Store) Recent(ctx context.Context, code domain.SiteCode, limit int) ([]domain.Incident, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx, `
SELECT site_code, endpoint, endpoint_class, status, city, state, region, bandwidth_mbps, cycle, occurred_at
  FROM incidents
 WHERE site_code = $1
 ORDER BY occurred_at DESC
 LIMIT $2`, string(code), limit)
	if err != nil {
		return nil, fmt.Errorf("recent incidents: %w", err)
	}
	defer rows.Close()

	var out []domain.Incident
	for rows.Next() {
		var (
			in          domain.Incident
			siteCode    string
			class       string
			status      string
			cycle       int64
			bandwidthDB *float64
		)
		if err := rows.Scan(&siteCode, &in.Endpoint, &class, &status, &in.City, &in.State, &in.Region,
			&bandwidthDB, &cycle, &in.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan incident: %w", err)
		}
		in.SiteCode = domain.SiteCode(siteCode)
		in.EndpointClass = domain.EndpointClass(class)
		in.Status = domain.SiteStatus(status)
		in.BandwidthMbps = bandwidthDB
		in.Cycle = uint64(cycle)
		out = append(out, in)
	}
	return out, rows.Err()
}
