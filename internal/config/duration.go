package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// YAML expresses durations as strings ("15s", "10m", "720h"). yaml.v3 has
// no native time.Duration support, so the duration-bearing structs decode
// through string shadows. Fields absent from the document keep whatever
// value the receiver already holds, which preserves defaults layering.

func setDuration(dst *time.Duration, s, field string) error {
	if s == "" {
		return nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	*dst = d
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler for the budget table.
func (t *Timeouts) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		RiskTriage           string `yaml:"risk_triage"`
		NarrativeCompression string `yaml:"narrative_compression"`
		SafetyPlanRerank     string `yaml:"safety_plan_rerank"`
		ReportFirstToken     string `yaml:"report_first_token"`
		DocumentIngestion    string `yaml:"document_ingestion"`
		Explanation          string `yaml:"explanation"`
		HealthFetch          string `yaml:"health_fetch"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	for _, f := range []struct {
		dst  *time.Duration
		src  string
		name string
	}{
		{&t.RiskTriage, raw.RiskTriage, "risk_triage"},
		{&t.NarrativeCompression, raw.NarrativeCompression, "narrative_compression"},
		{&t.SafetyPlanRerank, raw.SafetyPlanRerank, "safety_plan_rerank"},
		{&t.ReportFirstToken, raw.ReportFirstToken, "report_first_token"},
		{&t.DocumentIngestion, raw.DocumentIngestion, "document_ingestion"},
		{&t.Explanation, raw.Explanation, "explanation"},
		{&t.HealthFetch, raw.HealthFetch, "health_fetch"},
	} {
		if err := setDuration(f.dst, f.src, f.name); err != nil {
			return err
		}
	}
	return nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *StorageConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		DatabasePath    string `yaml:"database_path"`
		StalenessWindow string `yaml:"staleness_window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if raw.DatabasePath != "" {
		s.DatabasePath = raw.DatabasePath
	}
	return setDuration(&s.StalenessWindow, raw.StalenessWindow, "staleness_window")
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *CrisisConfig) UnmarshalYAML(value *yaml.Node) error {
	var raw struct {
		RecheckCountdown string `yaml:"recheck_countdown"`
		FrequencyWindow  string `yaml:"frequency_window"`
	}
	if err := value.Decode(&raw); err != nil {
		return err
	}
	if err := setDuration(&c.RecheckCountdown, raw.RecheckCountdown, "recheck_countdown"); err != nil {
		return err
	}
	return setDuration(&c.FrequencyWindow, raw.FrequencyWindow, "frequency_window")
}
