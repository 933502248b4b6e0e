package database

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fundpulse/fundpulse/internal/domain"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, db.Migrate())
	t.Cleanup(func() { db.Close() })
	return db
}

func sampleObs(fund string, date time.Time, close float64) domain.Observation {
	return domain.Observation{
		Date: date, Fund: fund,
		Open: close, High: close * 1.01, Low: close * 0.99,
		Close: close, Volume: 1000,
	}
}

func TestUpsertAndLoad(t *testing.T) {
	repo := NewPriceRepository(testDB(t))
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	panel := domain.Panel{
		sampleObs("VTI", d, 100),
		sampleObs("VTI", d.AddDate(0, 0, 1), 101),
		sampleObs("BND", d, 80),
	}
	require.NoError(t, repo.Upsert(panel))

	loaded, err := repo.LoadPanel()
	require.NoError(t, err)
	require.Len(t, loaded, 3)

	// Ordered by fund then date.
	assert.Equal(t, "BND", loaded[0].Fund)
	assert.Equal(t, "VTI", loaded[1].Fund)
	assert.Equal(t, d, loaded[1].Date)
	assert.Equal(t, 100.0, loaded[1].Close)
}

func TestUpsertLastWriteWins(t *testing.T) {
	repo := NewPriceRepository(testDB(t))
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(domain.Panel{sampleObs("VTI", d, 100)}))
	require.NoError(t, repo.Upsert(domain.Panel{sampleObs("VTI", d, 105)}))

	loaded, err := repo.LoadPanel()
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	assert.Equal(t, 105.0, loaded[0].Close)
}

func TestListFundsAndCount(t *testing.T) {
	repo := NewPriceRepository(testDB(t))
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.Upsert(domain.Panel{
		sampleObs("VTI", d, 100),
		sampleObs("BND", d, 80),
		sampleObs("GLD", d, 180),
	}))

	funds, err := repo.ListFunds()
	require.NoError(t, err)
	assert.Equal(t, []string{"BND", "GLD", "VTI"}, funds)

	count, err := repo.Count()
	require.NoError(t, err)
	assert.Equal(t, 3, count)
}

func TestLatestDate(t *testing.T) {
	repo := NewPriceRepository(testDB(t))
	d := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	latest, err := repo.LatestDate("VTI")
	require.NoError(t, err)
	assert.True(t, latest.IsZero())

	require.NoError(t, repo.Upsert(domain.Panel{
		sampleObs("VTI", d, 100),
		sampleObs("VTI", d.AddDate(0, 0, 5), 102),
	}))

	latest, err = repo.LatestDate("VTI")
	require.NoError(t, err)
	assert.Equal(t, d.AddDate(0, 0, 5), latest)
}
