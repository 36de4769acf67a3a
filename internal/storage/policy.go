package storage

import (
	"time"

	"blackbox/internal/config"
)

// RetentionPolicy is the immutable eviction configuration.
type RetentionPolicy struct {
	MaxBytes              int64
	RetentionAge          time.Duration
	ImportantRetentionAge time.Duration
	EmergencyDivisor      int
	FreeFloorBytes        uint64
	UsageRatio            float64
}

// PolicyFromConfig builds the policy from the storage section.
func PolicyFromConfig(cfg *config.Config) RetentionPolicy {
	day := 24 * time.Hour
	return RetentionPolicy{
		MaxBytes:              cfg.MaxBytes(),
		RetentionAge:          time.Duration(cfg.Storage.RetentionDays) * day,
		ImportantRetentionAge: time.Duration(cfg.Storage.ImportantRetentionDays) * day,
		EmergencyDivisor:      cfg.Storage.EmergencyDivisor,
		FreeFloorBytes:        uint64(cfg.Storage.FreeFloorMiB) * 1024 * 1024,
		UsageRatio:            cfg.Storage.UsageRatio,
	}
}

// emergency reports whether stats breach the usage budget or the free floor.
func (p RetentionPolicy) emergency(s Stats) bool {
	if p.MaxBytes > 0 && float64(s.UsedBytes) > p.UsageRatio*float64(p.MaxBytes) {
		return true
	}
	return s.FreeBytes < p.FreeFloorBytes
}

func (p RetentionPolicy) divisor() int {
	if p.EmergencyDivisor < 1 {
		return 3
	}
	return p.EmergencyDivisor
}
