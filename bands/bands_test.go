package bands

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"coinops/database"
	"coinops/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	return db
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func createBands(t *testing.T, db *gorm.DB, machineID uint, entries map[string]string) {
	t.Helper()
	for key, pct := range entries {
		require.NoError(t, db.Create(&models.TimeBand{
			MachineID:  machineID,
			BandKey:    key,
			Percentage: dec(pct),
		}).Error)
	}
}

func at(hour, minute int) time.Time {
	return time.Date(2024, 6, 1, hour, minute, 0, 0, time.UTC)
}

func TestResolveBand(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	createBands(t, db, 7, map[string]string{
		"00:00": "25",
		"08:00": "10",
		"20:00": "30",
	})

	cases := []struct {
		name    string
		atTime  time.Time
		wantKey string
	}{
		{"before second band", at(7, 59), "00:00"},
		{"exactly on band key", at(8, 0), "08:00"},
		{"between bands", at(15, 30), "08:00"},
		{"late evening", at(23, 0), "20:00"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			band, err := svc.ResolveBand(7, tc.atTime)
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, band.BandKey)

			// Deterministic: same input, same band.
			again, err := svc.ResolveBand(7, tc.atTime)
			require.NoError(t, err)
			assert.Equal(t, band.BandKey, again.BandKey)
		})
	}
}

func TestResolveBandWrapsAround(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	createBands(t, db, 7, map[string]string{
		"06:00": "15",
		"20:00": "35",
	})

	// Before the earliest key the previous day's last band applies.
	band, err := svc.ResolveBand(7, at(3, 0))
	require.NoError(t, err)
	assert.Equal(t, "20:00", band.BandKey)
}

func TestResolveBandNoBands(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)

	_, err := svc.ResolveBand(99, at(12, 0))
	var configErr *models.ConfigurationError
	require.ErrorAs(t, err, &configErr)
}

func TestBulkApplyCyclesValues(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	createBands(t, db, 7, map[string]string{
		"00:00": "0",
		"04:00": "0",
		"08:00": "0",
		"12:00": "0",
		"16:00": "0",
	})

	require.NoError(t, svc.BulkApply(7, []decimal.Decimal{dec("11"), dec("22")}))

	var got []models.TimeBand
	require.NoError(t, db.Where("machine_id = ?", 7).Order("band_key asc").Find(&got).Error)
	require.Len(t, got, 5)

	want := []string{"11", "22", "11", "22", "11"}
	for i, band := range got {
		assert.True(t, band.Percentage.Equal(dec(want[i])),
			"band %s: want %s, got %s", band.BandKey, want[i], band.Percentage)
	}
}

func TestBulkApplyValidation(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	createBands(t, db, 7, map[string]string{"00:00": "5"})

	var validationErr *models.ValidationError
	require.ErrorAs(t, svc.BulkApply(7, nil), &validationErr)
	require.ErrorAs(t, svc.BulkApply(7, []decimal.Decimal{dec("101")}), &validationErr)
	require.ErrorAs(t, svc.BulkApply(7, []decimal.Decimal{dec("-1")}), &validationErr)
}

func TestSetPercentage(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	createBands(t, db, 7, map[string]string{"09:30": "5"})

	require.NoError(t, svc.SetPercentage(7, "09:30", dec("42.5")))

	band, err := svc.ResolveBand(7, at(10, 0))
	require.NoError(t, err)
	assert.True(t, band.Percentage.Equal(dec("42.5")))
}

func TestSetPercentageValidation(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	createBands(t, db, 7, map[string]string{"09:30": "5"})

	var validationErr *models.ValidationError
	require.ErrorAs(t, svc.SetPercentage(7, "09:30", dec("100.01")), &validationErr)
	require.ErrorAs(t, svc.SetPercentage(7, "09:30", dec("-0.01")), &validationErr)
	require.ErrorAs(t, svc.SetPercentage(7, "25:00", dec("10")), &validationErr)
	require.ErrorAs(t, svc.SetPercentage(7, "10:00", dec("10")), &validationErr) // unknown key
}

func TestEditInvalidatesCache(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)
	createBands(t, db, 7, map[string]string{"00:00": "5"})

	band, err := svc.ResolveBand(7, at(12, 0))
	require.NoError(t, err)
	assert.True(t, band.Percentage.Equal(dec("5")))

	require.NoError(t, svc.SetPercentage(7, "00:00", dec("33")))

	band, err = svc.ResolveBand(7, at(12, 0))
	require.NoError(t, err)
	assert.True(t, band.Percentage.Equal(dec("33")), "cached value survived the edit")
}

func TestResolveBandAfterLateSeeding(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)

	// Resolving a band-less machine must not poison the cache: once bands
	// are seeded the very next resolve succeeds.
	_, err := svc.ResolveBand(7, at(12, 0))
	var configErr *models.ConfigurationError
	require.ErrorAs(t, err, &configErr)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.SeedBands(tx, 7, 6*time.Hour, dec("20"))
	}))

	band, err := svc.ResolveBand(7, at(12, 0))
	require.NoError(t, err)
	assert.Equal(t, "12:00", band.BandKey)
	assert.True(t, band.Percentage.Equal(dec("20")))
}

func TestSeedBands(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)

	require.NoError(t, db.Transaction(func(tx *gorm.DB) error {
		return svc.SeedBands(tx, 7, 15*time.Minute, dec("10"))
	}))

	var count int64
	require.NoError(t, db.Model(&models.TimeBand{}).Where("machine_id = ?", 7).Count(&count).Error)
	assert.EqualValues(t, 96, count)

	var first, last models.TimeBand
	require.NoError(t, db.Where("machine_id = ?", 7).Order("band_key asc").First(&first).Error)
	require.NoError(t, db.Where("machine_id = ?", 7).Order("band_key desc").First(&last).Error)
	assert.Equal(t, "00:00", first.BandKey)
	assert.Equal(t, "23:45", last.BandKey)
}

func TestSeedBandsRejectsUnevenInterval(t *testing.T) {
	db := newTestDB(t)
	svc := New(db)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.SeedBands(tx, 7, 7*time.Minute, dec("10"))
	})
	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
}
