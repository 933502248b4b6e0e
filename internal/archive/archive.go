// Package archive persists generated reports as flat files, in JSON for
// human inspection and MessagePack for compact machine reloads.
package archive

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/fundpulse/fundpulse/internal/domain"
)

// Archive stores report snapshots under a base directory, one pair of files
// per report keyed by report ID.
type Archive struct {
	dir    string
	logger zerolog.Logger
}

// New creates an archive rooted at dir, creating it if needed.
func New(dir string) (*Archive, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}
	return &Archive{
		dir:    dir,
		logger: log.With().Str("component", "archive").Logger(),
	}, nil
}

// Save writes both snapshot formats for the report.
func (a *Archive) Save(report domain.Report) error {
	if report.ReportID == "" {
		return fmt.Errorf("report has no ID")
	}

	jsonData, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal report JSON: %w", err)
	}
	if err := os.WriteFile(a.jsonPath(report.ReportID), jsonData, 0644); err != nil {
		return fmt.Errorf("failed to write report JSON: %w", err)
	}

	packed, err := msgpack.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report msgpack: %w", err)
	}
	if err := os.WriteFile(a.packPath(report.ReportID), packed, 0644); err != nil {
		return fmt.Errorf("failed to write report msgpack: %w", err)
	}

	a.logger.Debug().Str("report_id", report.ReportID).Msg("Archived report")
	return nil
}

// Load reads one report back from its MessagePack snapshot.
func (a *Archive) Load(reportID string) (domain.Report, error) {
	data, err := os.ReadFile(a.packPath(reportID))
	if err != nil {
		return domain.Report{}, fmt.Errorf("failed to read report %s: %w", reportID, err)
	}

	var report domain.Report
	if err := msgpack.Unmarshal(data, &report); err != nil {
		return domain.Report{}, fmt.Errorf("failed to unmarshal report %s: %w", reportID, err)
	}
	return report, nil
}

// List returns the IDs of all archived reports, sorted.
func (a *Archive) List() ([]string, error) {
	entries, err := os.ReadDir(a.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read archive directory: %w", err)
	}

	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasSuffix(name, ".msgpack") {
			ids = append(ids, strings.TrimSuffix(name, ".msgpack"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (a *Archive) jsonPath(reportID string) string {
	return filepath.Join(a.dir, reportID+".json")
}

func (a *Archive) packPath(reportID string) string {
	return filepath.Join(a.dir, reportID+".msgpack")
}
