package livetree

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config defines Runtime configuration
type Config struct {
	// Debug runs structural assertions after every scheduler pass and
	// checks hook counts on every render.
	Debug bool `yaml:"debug" toml:"debug"`

	// AsyncLane is the lane used for updates raised outside event dispatch
	// (background tasks, timers). Default: low
	AsyncLane string `yaml:"async_lane" toml:"async_lane" validate:"oneof=immediate high medium low"`

	// InitialCapacity pre-sizes the element, mount and scope slabs.
	InitialCapacity int `yaml:"initial_capacity" toml:"initial_capacity" validate:"gte=0"`

	// MaxRendersPerPass bounds how many scopes one pass renders before
	// yielding. 0 means unlimited.
	MaxRendersPerPass int `yaml:"max_renders_per_pass" toml:"max_renders_per_pass" validate:"gte=0"`

	// FrameBudget is the render deadline used by Run for each frame.
	// Default: 16ms
	FrameBudget time.Duration `yaml:"frame_budget" toml:"frame_budget" validate:"gte=0"`

	// LogVerbosity is passed to commonlog.Configure by the binaries.
	LogVerbosity int `yaml:"log_verbosity" toml:"log_verbosity" validate:"gte=0,lte=3"`
}

// DefaultConfig returns the default runtime configuration
func DefaultConfig() *Config {
	return &Config{
		Debug:             false,
		AsyncLane:         LaneLow.String(),
		InitialCapacity:   64,
		MaxRendersPerPass: 0,
		FrameBudget:       16 * time.Millisecond,
		LogVerbosity:      0,
	}
}

var (
	configValidator     *validator.Validate
	configValidatorOnce sync.Once
)

// Validate checks field constraints and returns a MultiError on failure
func (c *Config) Validate() error {
	configValidatorOnce.Do(func() {
		configValidator = validator.New()
	})

	if err := configValidator.Struct(c); err != nil {
		if fieldErrs := ValidationToMultiError(err); len(fieldErrs) > 0 {
			return fieldErrs
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// asyncLane resolves AsyncLane, falling back to Low for an empty value
func (c *Config) asyncLane() Lane {
	if c.AsyncLane == "" {
		return LaneLow
	}
	lane, err := ParseLane(c.AsyncLane)
	if err != nil {
		return LaneLow
	}
	return lane
}

// LoadConfig reads a YAML (.yaml, .yml) or TOML (.toml) file on top of
// DefaultConfig and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case ".toml":
		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return config, nil
}
