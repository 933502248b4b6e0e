package database

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/fundpulse/fundpulse/internal/domain"
)

const dateLayout = "2006-01-02"

// PriceRepository stores and loads the daily price panel.
type PriceRepository struct {
	db     *DB
	logger zerolog.Logger
}

// NewPriceRepository creates a repository over the given database.
func NewPriceRepository(db *DB) *PriceRepository {
	return &PriceRepository{
		db:     db,
		logger: log.With().Str("component", "price_repository").Logger(),
	}
}

// Upsert writes observations in one transaction. A row that already exists
// for the same (fund, date) is overwritten, so the latest load wins.
func (r *PriceRepository) Upsert(panel domain.Panel) error {
	if len(panel) == 0 {
		return nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (fund, date, open, high, low, close, volume, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, datetime('now'))
		ON CONFLICT(fund, date) DO UPDATE SET
			open = excluded.open,
			high = excluded.high,
			low = excluded.low,
			close = excluded.close,
			volume = excluded.volume,
			updated_at = excluded.updated_at
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, obs := range panel {
		if _, err := stmt.Exec(
			obs.Fund,
			obs.Date.Format(dateLayout),
			obs.Open, obs.High, obs.Low, obs.Close, obs.Volume,
		); err != nil {
			return fmt.Errorf("failed to upsert price for %s on %s: %w",
				obs.Fund, obs.Date.Format(dateLayout), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit prices: %w", err)
	}

	r.logger.Debug().Int("rows", len(panel)).Msg("Upserted daily prices")
	return nil
}

// LoadPanel reads the full price panel, ordered by fund then date.
func (r *PriceRepository) LoadPanel() (domain.Panel, error) {
	rows, err := r.db.Query(`
		SELECT fund, date, open, high, low, close, volume
		FROM daily_prices
		ORDER BY fund, date
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query prices: %w", err)
	}
	defer rows.Close()

	var panel domain.Panel
	for rows.Next() {
		var obs domain.Observation
		var date string
		if err := rows.Scan(&obs.Fund, &date, &obs.Open, &obs.High, &obs.Low, &obs.Close, &obs.Volume); err != nil {
			return nil, fmt.Errorf("failed to scan price row: %w", err)
		}
		obs.Date, err = time.Parse(dateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse date %q: %w", date, err)
		}
		panel = append(panel, obs)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating prices: %w", err)
	}
	return panel, nil
}

// ListFunds returns the distinct funds present, sorted.
func (r *PriceRepository) ListFunds() ([]string, error) {
	rows, err := r.db.Query(`SELECT DISTINCT fund FROM daily_prices ORDER BY fund`)
	if err != nil {
		return nil, fmt.Errorf("failed to query funds: %w", err)
	}
	defer rows.Close()

	var funds []string
	for rows.Next() {
		var fund string
		if err := rows.Scan(&fund); err != nil {
			return nil, fmt.Errorf("failed to scan fund: %w", err)
		}
		funds = append(funds, fund)
	}
	return funds, rows.Err()
}

// LatestDate returns the most recent observation date for the fund, or the
// zero time when none exists.
func (r *PriceRepository) LatestDate(fund string) (time.Time, error) {
	var date *string
	err := r.db.QueryRow(`SELECT MAX(date) FROM daily_prices WHERE fund = ?`, fund).Scan(&date)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to query latest date: %w", err)
	}
	if date == nil {
		return time.Time{}, nil
	}
	return time.Parse(dateLayout, *date)
}

// Count returns the total number of stored observations.
func (r *PriceRepository) Count() (int, error) {
	var count int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM daily_prices`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count prices: %w", err)
	}
	return count, nil
}
