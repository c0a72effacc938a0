package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// ValidityRange - допустимый срок действия котировки в днях.
type ValidityRange struct {
	Min int `yaml:"min"`
	Max int `yaml:"max"`
}

func (r ValidityRange) Contains(days int) bool {
	return days >= r.Min && days <= r.Max
}

type Config struct {
	ServerAddress string `yaml:"server_address"`
	StorageDriver string `yaml:"storage_driver"`
	PostgresConn  string `yaml:"postgres_conn"`

	MaxQuotationsPerRFQ   int             `yaml:"max_quotations_per_rfq"`
	RFQAutoExpireDays     int             `yaml:"rfq_auto_expire_days"`
	AdvancePaymentRatio   decimal.Decimal `yaml:"advance_payment_ratio"`
	QuotationValidityDays ValidityRange   `yaml:"quotation_validity_days_range"`
	OrderDeliveryDays     int             `yaml:"order_delivery_days"`
	ExpirySweepInterval   time.Duration   `yaml:"expiry_sweep_interval"`
	Categories            []string        `yaml:"categories"`
}

// Default возвращает конфигурацию по умолчанию.
func Default() Config {
	return Config{
		ServerAddress:         "0.0.0.0:8080",
		StorageDriver:         DriverPostgres,
		MaxQuotationsPerRFQ:   10,
		RFQAutoExpireDays:     30,
		AdvancePaymentRatio:   decimal.RequireFromString("0.30"),
		QuotationValidityDays: ValidityRange{Min: 1, Max: 365},
		OrderDeliveryDays:     30,
		ExpirySweepInterval:   5 * time.Minute,
		Categories: []string{
			"Textiles & Apparel",
			"Electronics",
			"Machinery & Equipment",
			"Home & Garden",
			"Packaging & Printing",
			"Chemicals",
			"Food & Beverage",
			"Health & Beauty",
			"Automotive Parts",
			"Construction Materials",
		},
	}
}

// Load собирает конфигурацию: .env, значения по умолчанию, YAML-файл
// из CONFIG_FILE, затем переменные окружения.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg := Default()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return cfg, err
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	return c.parseYAML(data)
}

func (c *Config) parseYAML(data []byte) error {
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
		*dst = n
		return nil
	}

	str("SERVER_ADDRESS", &c.ServerAddress)
	str("STORAGE_DRIVER", &c.StorageDriver)
	str("POSTGRES_CONN", &c.PostgresConn)

	var errs []error
	errs = append(errs,
		num("MAX_QUOTATIONS_PER_RFQ", &c.MaxQuotationsPerRFQ),
		num("RFQ_AUTO_EXPIRE_DAYS", &c.RFQAutoExpireDays),
		num("QUOTATION_VALIDITY_MIN_DAYS", &c.QuotationValidityDays.Min),
		num("QUOTATION_VALIDITY_MAX_DAYS", &c.QuotationValidityDays.Max),
		num("ORDER_DELIVERY_DAYS", &c.OrderDeliveryDays),
	)
	if v, ok := lookup("ADVANCE_PAYMENT_RATIO"); ok && v != "" {
		ratio, err := decimal.NewFromString(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("ADVANCE_PAYMENT_RATIO: %w", err))
		} else {
			c.AdvancePaymentRatio = ratio
		}
	}
	if v, ok := lookup("EXPIRY_SWEEP_INTERVAL"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("EXPIRY_SWEEP_INTERVAL: %w", err))
		} else {
			c.ExpirySweepInterval = d
		}
	}
	return multierr.Combine(errs...)
}

// Validate отклоняет бессмысленные значения.
func (c Config) Validate() error {
	switch {
	case c.StorageDriver != DriverPostgres && c.StorageDriver != DriverMemory:
		return fmt.Errorf("storage_driver must be %q or %q, got %q", DriverPostgres, DriverMemory, c.StorageDriver)
	case c.StorageDriver == DriverPostgres && c.PostgresConn == "":
		return errors.New("POSTGRES_CONN is required for the postgres storage driver")
	case c.MaxQuotationsPerRFQ <= 0:
		return errors.New("max_quotations_per_rfq must be positive")
	case c.RFQAutoExpireDays <= 0:
		return errors.New("rfq_auto_expire_days must be positive")
	case c.AdvancePaymentRatio.IsNegative() || c.AdvancePaymentRatio.GreaterThan(decimal.NewFromInt(1)):
		return errors.New("advance_payment_ratio must be within [0, 1]")
	case c.QuotationValidityDays.Min <= 0 || c.QuotationValidityDays.Max < c.QuotationValidityDays.Min:
		return errors.New("quotation_validity_days_range must satisfy 0 < min <= max")
	case c.OrderDeliveryDays <= 0:
		return errors.New("order_delivery_days must be positive")
	case c.ExpirySweepInterval <= 0:
		return errors.New("expiry_sweep_interval must be positive")
	case len(c.Categories) == 0:
		return errors.New("categories must not be empty")
	}
	return nil
}

// KnownCategory сообщает, есть ли категория в справочнике.
func (c Config) KnownCategory(category string) bool {
	for _, known := range c.Categories {
		if known == category {
			return true
		}
	}
	return false
}
