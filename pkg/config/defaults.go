package config

import (
	"strings"
	"time"

	"github.com/skyvault/skyvault/pkg/quota"
	"github.com/skyvault/skyvault/pkg/store"
)

const gib = int64(1) << 30

// ApplyDefaults sets default values for any unspecified configuration
// fields.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Store-specific defaults are handled by store implementations
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyBlobDefaults(&cfg.Blob)
	applyMetadataDefaults(&cfg.Metadata)
	applyPlansDefaults(&cfg.Plans)
	applyTrashDefaults(&cfg.Trash)
}

func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalized to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)
}

func applyServerDefaults(cfg *ServerConfig) {
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

func applyBlobDefaults(cfg *BlobConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
}

func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
}

func applyPlansDefaults(cfg *PlansConfig) {
	if cfg.FreeLimitBytes == 0 {
		cfg.FreeLimitBytes = 5 * gib
	}
	if cfg.PremiumLimitBytes == 0 {
		cfg.PremiumLimitBytes = 50 * gib
	}
}

func applyTrashDefaults(cfg *TrashConfig) {
	if cfg.RetentionDays == 0 {
		cfg.RetentionDays = 30
	}
	if cfg.PurgeInterval == 0 {
		cfg.PurgeInterval = 24 * time.Hour
	}
}

// Catalog builds the quota plan catalog from the configured limits. The
// Business tier stays unlimited and keeps exclusive version history.
func (c *PlansConfig) Catalog() quota.Catalog {
	free := c.FreeLimitBytes
	premium := c.PremiumLimitBytes
	return quota.Catalog{
		store.PlanFree:     {StorageLimitBytes: &free},
		store.PlanPremium:  {StorageLimitBytes: &premium},
		store.PlanBusiness: {SupportsVersioning: true},
	}
}
