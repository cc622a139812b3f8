package application

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	billing "meterbill/internal/billing/domain"
)

// Setting keys.
const (
	SettingRatePerKWh            = "ratePerKwh"
	SettingStandingCharge        = "standingCharge"
	SettingStandingChargeSplit   = "standingChargeSplit"
	SettingCustomSplitPercentage = "customSplitPercentage"
	SettingSubMeterLabels        = "subMeterLabels"
	SettingRoundedValues         = "roundedValues"
	SettingRoundTo               = "roundTo"
	SettingPropertyName          = "propertyName"
	SettingPropertyAddress       = "propertyAddress"
)

// MaxRoundTo is the most decimal places a roundTo setting may ask for.
const MaxRoundTo = 6

// Defaults are used for settings that were never saved.
type Defaults struct {
	RatePerKWh            string
	StandingCharge        string
	StandingChargeSplit   string
	CustomSplitPercentage string
	SubMeterLabels        []string
	RoundedValues         bool
	RoundTo               int
	PropertyName          string
	PropertyAddress       string
}

func (d Defaults) values() map[string]string {
	return map[string]string{
		SettingRatePerKWh:            d.RatePerKWh,
		SettingStandingCharge:        d.StandingCharge,
		SettingStandingChargeSplit:   d.StandingChargeSplit,
		SettingCustomSplitPercentage: d.CustomSplitPercentage,
		SettingSubMeterLabels:        strings.Join(d.SubMeterLabels, ","),
		SettingRoundedValues:         strconv.FormatBool(d.RoundedValues),
		SettingRoundTo:               strconv.Itoa(d.RoundTo),
		SettingPropertyName:          d.PropertyName,
		SettingPropertyAddress:       d.PropertyAddress,
	}
}

// SettingKeys lists every managed key in a stable order.
func SettingKeys() []string {
	keys := make([]string, 0, 9)
	for k := range (Defaults{}).values() {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Settings returns every managed setting, stored values over defaults.
func (s *Service) Settings(ctx context.Context) (map[string]string, error) {
	values := s.defaults.values()
	for key, fallback := range values {
		v, err := s.store.GetSetting(ctx, key, fallback)
		if err != nil {
			return nil, fmt.Errorf("load setting %s: %w", key, err)
		}
		values[key] = v
	}
	return values, nil
}

// Setting returns one managed setting.
func (s *Service) Setting(ctx context.Context, key string) (string, error) {
	fallback, ok := s.defaults.values()[key]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return s.store.GetSetting(ctx, key, fallback)
}

// SaveSetting checks value against key and stores it.
func (s *Service) SaveSetting(ctx context.Context, key, value string) error {
	if _, ok := s.defaults.values()[key]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	value = strings.TrimSpace(value)
	if err := checkSetting(key, value); err != nil {
		return err
	}
	if err := s.store.SaveSetting(ctx, key, value); err != nil {
		return err
	}
	s.logger.Printf("setting saved: key=%s", key)
	return nil
}

// Property returns the property name and address used in report headers.
func (s *Service) Property(ctx context.Context) (string, string, error) {
	settings, err := s.Settings(ctx)
	if err != nil {
		return "", "", err
	}
	return settings[SettingPropertyName], settings[SettingPropertyAddress], nil
}

func (s *Service) checkImportedSettings(settings map[string]string) error {
	known := s.defaults.values()
	keys := make([]string, 0, len(settings))
	for key := range settings {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if _, ok := known[key]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
		}
		if err := checkSetting(key, strings.TrimSpace(settings[key])); err != nil {
			return err
		}
	}
	return nil
}

func checkSetting(key, value string) error {
	switch key {
	case SettingRatePerKWh, SettingStandingCharge:
		check := billing.ValidateRate(billing.Figure(value), key)
		if !check.IsValid {
			return fmt.Errorf("%w: %s", ErrInvalidSetting, check.Message)
		}
	case SettingCustomSplitPercentage:
		pct, err := billing.Figure(value).Float()
		if err != nil || pct < 0 || pct > 100 {
			return fmt.Errorf("%w: %s", ErrInvalidSetting, billing.MsgCustomPercentage)
		}
	case SettingStandingChargeSplit:
		if _, known := billing.ParseSplitKind(value); !known {
			return fmt.Errorf("%w: unknown split %q", ErrInvalidSetting, value)
		}
	case SettingRoundedValues:
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("%w: %s must be true or false", ErrInvalidSetting, key)
		}
	case SettingRoundTo:
		places, err := strconv.Atoi(value)
		if err != nil || places < 0 || places > 6 {
			return fmt.Errorf("%w: %s must be between 0 and 6", ErrInvalidSetting, key)
		}
	}
	return nil
}
