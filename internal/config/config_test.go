package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func memoryDefaults() Config {
	cfg := Default()
	cfg.StorageDriver = DriverMemory
	return cfg
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := memoryDefaults()
	require.NoError(t, cfg.Validate())
	require.Equal(t, 10, cfg.MaxQuotationsPerRFQ)
	require.Equal(t, 30, cfg.RFQAutoExpireDays)
	require.True(t, cfg.AdvancePaymentRatio.Equal(decimal.RequireFromString("0.3")))
	require.True(t, cfg.QuotationValidityDays.Contains(1))
	require.True(t, cfg.QuotationValidityDays.Contains(365))
	require.False(t, cfg.QuotationValidityDays.Contains(0))
	require.True(t, cfg.KnownCategory("Textiles & Apparel"))
	require.False(t, cfg.KnownCategory("Spaceships"))
}

func TestPostgresRequiresConn(t *testing.T) {
	cfg := Default()
	require.Error(t, cfg.Validate())
	cfg.PostgresConn = "postgres://localhost/sourcing"
	require.NoError(t, cfg.Validate())
}

func TestParseYAML(t *testing.T) {
	cfg := memoryDefaults()
	err := cfg.parseYAML([]byte(`
max_quotations_per_rfq: 3
advance_payment_ratio: "0.25"
quotation_validity_days_range:
  min: 7
  max: 90
expiry_sweep_interval: 30s
categories: [Electronics, Chemicals]
`))
	require.NoError(t, err)
	require.Equal(t, 3, cfg.MaxQuotationsPerRFQ)
	require.True(t, cfg.AdvancePaymentRatio.Equal(decimal.RequireFromString("0.25")))
	require.Equal(t, ValidityRange{Min: 7, Max: 90}, cfg.QuotationValidityDays)
	require.Equal(t, 30*time.Second, cfg.ExpirySweepInterval)
	require.Equal(t, []string{"Electronics", "Chemicals"}, cfg.Categories)
	// не указанные в файле поля сохраняют значения по умолчанию
	require.Equal(t, 30, cfg.RFQAutoExpireDays)
	require.NoError(t, cfg.Validate())
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"SERVER_ADDRESS":         "127.0.0.1:9000",
		"MAX_QUOTATIONS_PER_RFQ": "5",
		"ADVANCE_PAYMENT_RATIO":  "0.5",
		"EXPIRY_SWEEP_INTERVAL":  "1m",
	}
	lookup := func(k string) (string, bool) { v, ok := env[k]; return v, ok }

	cfg := memoryDefaults()
	require.NoError(t, cfg.applyEnv(lookup))
	require.Equal(t, "127.0.0.1:9000", cfg.ServerAddress)
	require.Equal(t, 5, cfg.MaxQuotationsPerRFQ)
	require.True(t, cfg.AdvancePaymentRatio.Equal(decimal.RequireFromString("0.5")))
	require.Equal(t, time.Minute, cfg.ExpirySweepInterval)

	env = map[string]string{"RFQ_AUTO_EXPIRE_DAYS": "thirty", "EXPIRY_SWEEP_INTERVAL": "often"}
	err := cfg.applyEnv(lookup)
	require.Error(t, err)
	require.Contains(t, err.Error(), "RFQ_AUTO_EXPIRE_DAYS")
	require.Contains(t, err.Error(), "EXPIRY_SWEEP_INTERVAL")
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"driver":   func(c *Config) { c.StorageDriver = "sqlite" },
		"cap":      func(c *Config) { c.MaxQuotationsPerRFQ = 0 },
		"expiry":   func(c *Config) { c.RFQAutoExpireDays = -1 },
		"ratio":    func(c *Config) { c.AdvancePaymentRatio = decimal.RequireFromString("1.5") },
		"validity": func(c *Config) { c.QuotationValidityDays = ValidityRange{Min: 10, Max: 5} },
		"interval": func(c *Config) { c.ExpirySweepInterval = 0 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := memoryDefaults()
			mutate(&cfg)
			require.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sourcing.yaml")
	require.NoError(t, os.WriteFile(path, []byte("storage_driver: memory\nmax_quotations_per_rfq: 4\n"), 0o600))
	t.Setenv("CONFIG_FILE", path)
	t.Setenv("MAX_QUOTATIONS_PER_RFQ", "6")

	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, DriverMemory, cfg.StorageDriver)
	require.Equal(t, 6, cfg.MaxQuotationsPerRFQ)
}
