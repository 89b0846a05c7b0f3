// Package settings implements the database-wide settings record: a
// small, versioned header written once at create time and never
// modified afterwards, persisted as YAML via gopkg.in/yaml.v2.
package settings

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v2"
)

// ExpectedVersion is the only settings_version this implementation
// understands, matching the original hashdb's
// expected_data_store_version.
const ExpectedVersion = 3

// ErrMissingSettings is returned by Open when the settings file does
// not exist.
var ErrMissingSettings = errors.New("settings: missing settings file")

// ErrUnknownVersion is returned by Open when the settings file's
// version does not match ExpectedVersion.
var ErrUnknownVersion = errors.New("settings: unknown settings version")

const fileName = "settings.yaml"

// Settings is the persistent, immutable-after-create database header.
type Settings struct {
	SettingsVersion      int    `yaml:"settings_version"`
	HashLen              int    `yaml:"hash_len"`
	SectorSize           uint64 `yaml:"sector_size"`
	BlockSize            uint64 `yaml:"block_size"`
	MaxSourceOffsetPairs uint64 `yaml:"max_source_offset_pairs"`
	HashPrefixBits       int    `yaml:"hash_prefix_bits"`
	HashSuffixBytes      int    `yaml:"hash_suffix_bytes"`
	MinimumFreeGB        uint   `yaml:"minimum_free_gb"`
}

// Default returns reasonable settings for a freshly created database:
// 512-byte sectors, unbounded source references, and a 16-bit hash
// prefix index with a 4-byte suffix.
func Default(hashLen int) Settings {
	return Settings{
		SettingsVersion:      ExpectedVersion,
		HashLen:              hashLen,
		SectorSize:           512,
		BlockSize:            4096,
		MaxSourceOffsetPairs: 0,
		HashPrefixBits:       16,
		HashSuffixBytes:      4,
		MinimumFreeGB:        0,
	}
}

func path(dir string) string { return filepath.Join(dir, fileName) }

// Create writes s to dir's settings file. It refuses to overwrite an
// existing one: settings are written once and never modified.
func Create(dir string, s Settings) error {
	if _, err := os.Stat(path(dir)); err == nil {
		return fmt.Errorf("settings: %s already has a settings file", dir)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("settings: create %s: %w", dir, err)
	}
	raw, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: marshal: %w", err)
	}
	if err := os.WriteFile(path(dir), raw, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", dir, err)
	}
	return nil
}

// Open reads and validates dir's settings file.
func Open(dir string) (Settings, error) {
	raw, err := os.ReadFile(path(dir))
	if err != nil {
		if os.IsNotExist(err) {
			return Settings{}, ErrMissingSettings
		}
		return Settings{}, fmt.Errorf("settings: read %s: %w", dir, err)
	}
	var s Settings
	if err := yaml.Unmarshal(raw, &s); err != nil {
		return Settings{}, fmt.Errorf("settings: parse %s: %w", dir, err)
	}
	if s.SettingsVersion != ExpectedVersion {
		return Settings{}, fmt.Errorf("%w: got %d, want %d", ErrUnknownVersion, s.SettingsVersion, ExpectedVersion)
	}
	return s, nil
}
