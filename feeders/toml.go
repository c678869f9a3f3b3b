package feeders

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// TomlFeeder is a feeder that reads TOML files
type TomlFeeder struct {
	Path     string
	Optional bool
}

// NewTomlFeeder creates a new TomlFeeder that reads from the specified TOML file
func NewTomlFeeder(filePath string) TomlFeeder {
	return TomlFeeder{Path: filePath}
}

// Feed decodes the whole TOML document into target
func (t TomlFeeder) Feed(target any) error {
	if err := checkTarget(target); err != nil {
		return err
	}
	data, err := readFile(t.Path, t.Optional)
	if err != nil || data == nil {
		return err
	}
	if _, err := toml.Decode(string(data), target); err != nil {
		return fmt.Errorf("failed to parse TOML file %s: %w", t.Path, err)
	}
	return nil
}

// FeedKey reads a TOML file and extracts a specific table
func (t TomlFeeder) FeedKey(key string, target any) error {
	data, err := readFile(t.Path, t.Optional)
	if err != nil || data == nil {
		return err
	}

	var allData map[string]any
	if _, err := toml.Decode(string(data), &allData); err != nil {
		return fmt.Errorf("failed to read toml: %w", err)
	}

	value, exists := allData[key]
	if !exists {
		return nil
	}
	section, ok := value.(map[string]any)
	if !ok {
		return fmt.Errorf("%w: %s", ErrFeedKeyNotSupported, key)
	}

	// Remarshal and unmarshal to handle type conversions
	valueBytes, err := toml.Marshal(section)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	if err = toml.Unmarshal(valueBytes, target); err != nil {
		return fmt.Errorf("failed to unmarshal value to target: %w", err)
	}
	return nil
}
