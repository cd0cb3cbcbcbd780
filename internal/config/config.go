package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Competition struct {
		Timezone             string `yaml:"timezone"`
		DailySchedule        string `yaml:"dailySchedule"` // cron spec, e.g. "0 12 * * *"
		BasePoints           int    `yaml:"basePoints"`
		DecayIntervalSeconds int    `yaml:"decayIntervalSeconds"`
		WrongPenalty         int    `yaml:"wrongPenalty"`
		AuthorBonusPerSolve  int    `yaml:"authorBonusPerSolve"`
		MaxDecayHours        int    `yaml:"maxDecayHours"`
		Window               string `yaml:"window"`
	} `yaml:"competition"`
}

// Load reads YAML config from path.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// Location resolves the configured timezone, defaulting to UTC.
func (c Config) Location() (*time.Location, error) {
	if c.Competition.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Competition.Timezone)
}

// IntOrDefault returns v unless it is zero.
func IntOrDefault(v, fallback int) int {
	if v == 0 {
		return fallback
	}
	return v
}
