package taskrun

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config describes a thread pool in a form suitable for yaml configuration
// files. Zero values fall back to the defaults documented per field.
type Config struct {
	// ID is the pool identifier. Defaults to a generated unique ID.
	ID string `yaml:"id"`

	// Workers is the number of worker goroutines. Defaults to 4.
	Workers int `yaml:"workers"`

	// Scheduler selects the ready-queue policy: "fifo" (default) or
	// "priority".
	Scheduler string `yaml:"scheduler"`

	// UnstableHooks switches on the lifecycle-hook capability, allowing
	// hook slots (and the dtrace bridge) to be registered on the builder.
	UnstableHooks bool `yaml:"unstable_hooks"`

	// GracefulTimeout bounds StopGraceful when the embedding application
	// drives shutdown from configuration. Defaults to 5s.
	GracefulTimeout time.Duration `yaml:"graceful_timeout"`
}

// DefaultConfig returns the configuration used when no file is supplied.
func DefaultConfig() Config {
	return Config{
		Workers:         defaultWorkers,
		Scheduler:       "fifo",
		GracefulTimeout: 5 * time.Second,
	}
}

// LoadConfig reads a yaml pool configuration, applying defaults for absent
// fields and validating the result.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading pool config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing pool config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field values without applying them.
func (c Config) Validate() error {
	if c.Workers <= 0 {
		return fmt.Errorf("pool config: workers must be positive, got %d", c.Workers)
	}
	switch c.Scheduler {
	case "", "fifo", "priority":
	default:
		return fmt.Errorf("pool config: unknown scheduler %q", c.Scheduler)
	}
	if c.GracefulTimeout < 0 {
		return fmt.Errorf("pool config: graceful_timeout must not be negative")
	}
	return nil
}

// NewBuilder returns a Builder pre-configured from c.
func (c Config) NewBuilder() *Builder {
	b := NewBuilder().Workers(c.Workers)
	if c.ID != "" {
		b.ID(c.ID)
	}
	if c.Scheduler == "priority" {
		b.PriorityScheduler()
	}
	if c.UnstableHooks {
		b.EnableUnstableHooks()
	}
	return b
}
