package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"hubhelper/internal/hub"
)

const (
	// SectionName is the settings section preferred over the configuration root.
	SectionName = "Values"
	// EnvPrefix selects the section when reading settings from the environment.
	EnvPrefix = SectionName + "__"
	// DefaultConsumerGroup is the group every event hub is created with.
	DefaultConsumerGroup = "$Default"
)

// ErrInvalidSettings is returned when the hub settings are missing or incomplete.
var ErrInvalidSettings = errors.New("event hub settings are missing or invalid")

type settingsFile struct {
	Values       *hub.Settings `yaml:"Values"`
	hub.Settings `yaml:",inline"`
}

// LoadSettings builds the hub settings from an optional YAML or JSON file and
// the environment, with the environment taking precedence. In both sources the
// Values section is used when present and the root otherwise.
func LoadSettings(path string, environ []string) (hub.Settings, error) {
	var s hub.Settings

	if path != "" {
		fromFile, err := readSettingsFile(path)
		if err != nil {
			return hub.Settings{}, err
		}
		s = fromFile
	}

	opts := env.Options{Environment: env.ToMap(environ)}
	if hasSection(opts.Environment) {
		opts.Prefix = EnvPrefix
	}
	if err := env.ParseWithOptions(&s, opts); err != nil {
		return hub.Settings{}, fmt.Errorf("failed to parse settings from environment: %w", err)
	}

	if s.ConsumerGroup == "" {
		s.ConsumerGroup = DefaultConsumerGroup
	}

	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(s); err != nil {
		return hub.Settings{}, fmt.Errorf("%w: %w", ErrInvalidSettings, err)
	}

	return s, nil
}

func readSettingsFile(path string) (hub.Settings, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return hub.Settings{}, fmt.Errorf("failed to read settings file %s: %w", path, err)
	}

	var f settingsFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return hub.Settings{}, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	if f.Values != nil {
		return *f.Values, nil
	}

	return f.Settings, nil
}

func hasSection(environment map[string]string) bool {
	for k := range environment {
		if strings.HasPrefix(k, EnvPrefix) {
			return true
		}
	}

	return false
}
