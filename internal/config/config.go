package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"meterbill/internal/billing/application"
	"meterbill/internal/history/backend"
)

// EnvPrefix prefixes every environment variable, e.g. METERBILL_STORE.
const EnvPrefix = "METERBILL"

// Config holds runtime configuration.
type Config struct {
	StoreBackend string `envconfig:"STORE" default:"sqlite" yaml:"store" validate:"oneof=memory file sqlite postgres redis"`
	FilePath     string `envconfig:"FILE_PATH" default:"data/history.json" yaml:"filePath" validate:"required_if=StoreBackend file"`
	SQLitePath   string `envconfig:"SQLITE_PATH" default:"data/meterbill.db" yaml:"sqlitePath" validate:"required_if=StoreBackend sqlite"`
	DatabaseURL  string `envconfig:"DATABASE_URL" yaml:"databaseUrl" validate:"required_if=StoreBackend postgres"`
	RedisAddr    string `envconfig:"REDIS_ADDR" default:"127.0.0.1:6379" yaml:"redisAddr" validate:"required_if=StoreBackend redis"`
	RedisPrefix  string `envconfig:"REDIS_PREFIX" default:"meterbill" yaml:"redisPrefix"`
	FallbackPath string `envconfig:"FALLBACK_PATH" default:"data/history-fallback.json" yaml:"fallbackPath"`

	RatePerKWh            string   `envconfig:"RATE_PER_KWH" yaml:"ratePerKwh" validate:"omitempty,numeric"`
	StandingCharge        string   `envconfig:"STANDING_CHARGE" yaml:"standingCharge" validate:"omitempty,numeric"`
	StandingChargeSplit   string   `envconfig:"STANDING_CHARGE_SPLIT" default:"equal" yaml:"standingChargeSplit" validate:"oneof=equal usage custom"`
	CustomSplitPercentage float64  `envconfig:"CUSTOM_SPLIT_PERCENTAGE" default:"50" yaml:"customSplitPercentage" validate:"gte=0,lte=100"`
	SubMeterLabels        []string `envconfig:"SUB_METER_LABELS" yaml:"subMeterLabels"`
	RoundedValues         bool     `envconfig:"ROUNDED_VALUES" default:"true" yaml:"roundedValues"`
	RoundTo               int      `envconfig:"ROUND_TO" default:"2" yaml:"roundTo" validate:"gte=0,lte=6"`

	PropertyName    string `envconfig:"PROPERTY_NAME" yaml:"propertyName"`
	PropertyAddress string `envconfig:"PROPERTY_ADDRESS" yaml:"propertyAddress"`

	MetricsFile string `envconfig:"METRICS_FILE" yaml:"metricsFile"`
	EventsFile  string `envconfig:"EVENTS_FILE" yaml:"eventsFile"`
}

// Load reads an optional .env file, the METERBILL_* environment and then the
// YAML file at path (or METERBILL_CONFIG when path is empty). Keys present in
// the YAML file override the environment.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return Config{}, fmt.Errorf("config: environment: %w", err)
	}

	if path == "" {
		path = os.Getenv(EnvPrefix + "_CONFIG")
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("config: %s fails %q", verrs[0].Field(), verrs[0].Tag())
		}
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// Backend returns the store factory configuration.
func (c Config) Backend() backend.Config {
	return backend.Config{
		Type:         backend.Type(c.StoreBackend),
		FilePath:     c.FilePath,
		SQLitePath:   c.SQLitePath,
		DatabaseURL:  c.DatabaseURL,
		RedisAddr:    c.RedisAddr,
		RedisPrefix:  c.RedisPrefix,
		FallbackPath: c.FallbackPath,
	}
}

// Defaults returns the settings used until a user saves their own.
func (c Config) Defaults() application.Defaults {
	return application.Defaults{
		RatePerKWh:            c.RatePerKWh,
		StandingCharge:        c.StandingCharge,
		StandingChargeSplit:   c.StandingChargeSplit,
		CustomSplitPercentage: strconv.FormatFloat(c.CustomSplitPercentage, 'f', -1, 64),
		SubMeterLabels:        append([]string(nil), c.SubMeterLabels...),
		RoundedValues:         c.RoundedValues,
		RoundTo:               c.RoundTo,
		PropertyName:          c.PropertyName,
		PropertyAddress:       c.PropertyAddress,
	}
}
