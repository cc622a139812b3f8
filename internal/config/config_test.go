package config

import (
	"os"
	"path/filepath"
	"testing"

	"meterbill/internal/history/backend"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"METERBILL_STORE", "METERBILL_FILE_PATH", "METERBILL_SQLITE_PATH", "METERBILL_DATABASE_URL",
		"METERBILL_REDIS_ADDR", "METERBILL_RATE_PER_KWH", "METERBILL_STANDING_CHARGE",
		"METERBILL_STANDING_CHARGE_SPLIT", "METERBILL_SUB_METER_LABELS", "METERBILL_ROUND_TO",
		"METERBILL_CONFIG", "METERBILL_ROUNDED_VALUES", "STORE", "DATABASE_URL", "REDIS_ADDR",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != "sqlite" || cfg.SQLitePath != "data/meterbill.db" {
		t.Fatalf("unexpected store defaults: %+v", cfg)
	}
	if cfg.StandingChargeSplit != "equal" || cfg.CustomSplitPercentage != 50 || !cfg.RoundedValues || cfg.RoundTo != 2 {
		t.Fatalf("unexpected billing defaults: %+v", cfg)
	}
}

func TestLoadFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("METERBILL_STORE", "redis")
	t.Setenv("METERBILL_REDIS_ADDR", "cache:6379")
	t.Setenv("METERBILL_RATE_PER_KWH", "27.5")
	t.Setenv("METERBILL_SUB_METER_LABELS", "Shop,Flat")
	t.Setenv("METERBILL_ROUNDED_VALUES", "false")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bc := cfg.Backend()
	if bc.Type != backend.RedisBackend || bc.RedisAddr != "cache:6379" {
		t.Fatalf("unexpected backend config: %+v", bc)
	}
	d := cfg.Defaults()
	if d.RatePerKWh != "27.5" || len(d.SubMeterLabels) != 2 || d.SubMeterLabels[1] != "Flat" || d.RoundedValues {
		t.Fatalf("unexpected defaults: %+v", d)
	}
	if d.CustomSplitPercentage != "50" {
		t.Fatalf("expected percentage 50, got %q", d.CustomSplitPercentage)
	}
}

func TestLoadYAMLOverridesEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("METERBILL_STORE", "sqlite")
	path := filepath.Join(t.TempDir(), "meterbill.yaml")
	body := "store: file\nfilePath: /tmp/history.json\nstandingChargeSplit: custom\ncustomSplitPercentage: 70\npropertyName: Old Mill\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.StoreBackend != "file" || cfg.FilePath != "/tmp/history.json" {
		t.Fatalf("yaml store not applied: %+v", cfg)
	}
	if cfg.StandingChargeSplit != "custom" || cfg.CustomSplitPercentage != 70 || cfg.PropertyName != "Old Mill" {
		t.Fatalf("yaml billing not applied: %+v", cfg)
	}

	t.Setenv("METERBILL_CONFIG", path)
	cfg, err = Load("")
	if err != nil || cfg.StoreBackend != "file" {
		t.Fatalf("expected METERBILL_CONFIG to be read, got %+v %v", cfg, err)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown store":     {"METERBILL_STORE": "mongo"},
		"postgres no dsn":   {"METERBILL_STORE": "postgres"},
		"bad split":         {"METERBILL_STANDING_CHARGE_SPLIT": "area"},
		"rate not numeric":  {"METERBILL_RATE_PER_KWH": "cheap"},
		"round too precise": {"METERBILL_ROUND_TO": "9"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			for k, v := range env {
				t.Setenv(k, v)
			}
			if _, err := Load(""); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	clearEnv(t)
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatalf("expected error for missing config file")
	}
}
