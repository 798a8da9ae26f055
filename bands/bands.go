package bands

import (
	"strconv"
	"time"

	"coinops/models"

	cache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var maxPercentage = decimal.NewFromInt(100)

// Service resolves and edits per-machine time-of-day deduction bands. Band
// sets change rarely and are read on every settlement, so reads go through a
// small TTL cache that every edit invalidates.
type Service struct {
	db    *gorm.DB
	cache *cache.Cache
}

func New(db *gorm.DB) *Service {
	return &Service{
		db:    db,
		cache: cache.New(5*time.Minute, 10*time.Minute),
	}
}

// ResolveBand returns the band whose key is the latest time of day at or
// before atTime. When atTime precedes the earliest key the last band of the
// previous day applies (wrap-around). Total over any non-empty band set.
func (s *Service) ResolveBand(machineID uint, atTime time.Time) (models.TimeBand, error) {
	machineBands, err := s.machineBands(machineID)
	if err != nil {
		return models.TimeBand{}, err
	}
	if len(machineBands) == 0 {
		return models.TimeBand{}, &models.ConfigurationError{
			Reason: "machine has no time bands configured",
		}
	}

	key := atTime.Format("15:04")
	chosen := machineBands[len(machineBands)-1]
	for _, band := range machineBands {
		if band.BandKey > key {
			break
		}
		chosen = band
	}
	return chosen, nil
}

// BulkApply assigns values[i % len(values)] to the i-th band in time order.
// Band order and keys are untouched.
func (s *Service) BulkApply(machineID uint, values []decimal.Decimal) error {
	if len(values) == 0 {
		return models.Validationf("at least one percentage value is required")
	}
	for _, v := range values {
		if outOfRange(v) {
			return models.Validationf("percentage %s is outside [0,100]", v.String())
		}
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var machineBands []models.TimeBand
		if err := tx.Where("machine_id = ?", machineID).
			Order("band_key asc").Find(&machineBands).Error; err != nil {
			return err
		}
		if len(machineBands) == 0 {
			return &models.ConfigurationError{Reason: "machine has no time bands configured"}
		}

		for i := range machineBands {
			pct := values[i%len(values)]
			if err := tx.Model(&machineBands[i]).Update("percentage", pct).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.invalidate(machineID)
	return nil
}

// SetPercentage edits a single band.
func (s *Service) SetPercentage(machineID uint, bandKey string, pct decimal.Decimal) error {
	if _, err := time.Parse("15:04", bandKey); err != nil {
		return models.Validationf("band key %q is not a valid HH:mm time", bandKey)
	}
	if outOfRange(pct) {
		return models.Validationf("percentage %s is outside [0,100]", pct.String())
	}

	res := s.db.Model(&models.TimeBand{}).
		Where("machine_id = ? AND band_key = ?", machineID, bandKey).
		Update("percentage", pct)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.Validationf("machine %d has no band %q", machineID, bandKey)
	}

	s.invalidate(machineID)
	return nil
}

// SeedBands creates the initial band set for a new machine: one band per
// interval across the day, all at the given percentage. Runs inside the
// machine-creation transaction.
func (s *Service) SeedBands(tx *gorm.DB, machineID uint, interval time.Duration, pct decimal.Decimal) error {
	if interval < time.Minute || 24*time.Hour%interval != 0 {
		return models.Validationf("seed interval must divide 24h evenly")
	}
	if outOfRange(pct) {
		return models.Validationf("percentage %s is outside [0,100]", pct.String())
	}

	day := time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	seeded := make([]models.TimeBand, 0, int(24*time.Hour/interval))
	for at := day; at.Day() == 1; at = at.Add(interval) {
		seeded = append(seeded, models.TimeBand{
			MachineID:  machineID,
			BandKey:    at.Format("15:04"),
			Percentage: pct,
		})
	}
	if err := tx.Create(&seeded).Error; err != nil {
		return err
	}

	s.invalidate(machineID)
	return nil
}

// ListBands returns the machine's bands in time order.
func (s *Service) ListBands(machineID uint) ([]models.TimeBand, error) {
	return s.machineBands(machineID)
}

func (s *Service) machineBands(machineID uint) ([]models.TimeBand, error) {
	key := cacheKey(machineID)
	if v, ok := s.cache.Get(key); ok {
		return v.([]models.TimeBand), nil
	}

	var machineBands []models.TimeBand
	if err := s.db.Where("machine_id = ?", machineID).
		Order("band_key asc").Find(&machineBands).Error; err != nil {
		return nil, err
	}
	// An empty set is never cached: the machine may get its bands seeded at
	// any moment and must resolve them immediately after.
	if len(machineBands) > 0 {
		s.cache.Set(key, machineBands, cache.DefaultExpiration)
	}
	return machineBands, nil
}

func (s *Service) invalidate(machineID uint) {
	s.cache.Delete(cacheKey(machineID))
}

func cacheKey(machineID uint) string {
	return strconv.FormatUint(uint64(machineID), 10)
}

func outOfRange(pct decimal.Decimal) bool {
	return pct.LessThan(decimal.Zero) || pct.GreaterThan(maxPercentage)
}
