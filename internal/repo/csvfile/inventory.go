// Package csvfile reads the site inventory from CSV and appends incidents to
// a CSV audit log.
package csvfile

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hamed0406/romonitor/internal/domain"
)

// inventory columns: code, primary_ip, secondary_ip, city, state, region
const inventoryFields = 6

// Inventory re-reads its file on every Snapshot so edits are picked up on the
// next cycle. Short rows and rows without a code or primary are skipped;
// a repeated code keeps its first row.
type Inventory struct {
	Path   string
	Logger *zap.Logger
}

func NewInventory(path string, logger *zap.Logger) *Inventory {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Inventory{Path: path, Logger: logger}
}

func (i *Inventory) Snapshot(ctx context.Context) ([]domain.Site, error) {
	f, err := os.Open(i.Path)
	if err != nil {
		return nil, fmt.Errorf("open inventory: %w", err)
	}
	defer f.Close()

	sites, err := ParseInventory(f, i.Logger)
	if err != nil {
		return nil, fmt.Errorf("read inventory %s: %w", i.Path, err)
	}
	return sites, nil
}

// ParseInventory decodes inventory rows from r.
func ParseInventory(r io.Reader, logger *zap.Logger) ([]domain.Site, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var sites []domain.Site
	seen := make(map[domain.SiteCode]int)
	first := true

	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if isHeader(rec) {
				continue
			}
		}
		if len(rec) < inventoryFields {
			logger.Warn("inventory_short_record",
				zap.Int("line", line),
				zap.Int("fields", len(rec)),
			)
			continue
		}

		s := domain.Site{
			Code:      domain.SiteCode(strings.TrimSpace(rec[0])),
			Primary:   domain.NewEndpoint(rec[1]),
			Secondary: domain.NewEndpoint(rec[2]),
			City:      strings.TrimSpace(rec[3]),
			State:     strings.TrimSpace(rec[4]),
			Region:    strings.TrimSpace(rec[5]),
		}
		if s.Code == "" || !s.Primary.Present() {
			logger.Warn("inventory_incomplete_record", zap.Int("line", line))
			continue
		}
		if prev, dup := seen[s.Code]; dup {
			logger.Warn("inventory_duplicate_code",
				zap.String("code", string(s.Code)),
				zap.Int("line", line),
				zap.Int("first_line", prev),
			)
			continue
		}
		seen[s.Code] = line
		sites = append(sites, s)
	}
	return sites, nil
}

func isHeader(rec []string) bool {
	if len(rec) == 0 {
		return false
	}
	switch strings.ToLower(strings.TrimSpace(rec[0])) {
	case "code", "ro code", "ro_code":
		return true
	}
	return false
}
