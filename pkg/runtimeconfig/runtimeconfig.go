package runtimeconfig

import (
	"fmt"
	"os"
	"time"

	"github.com/heathsc/gembsctl/pkg/types"
	"gopkg.in/yaml.v3"
)

const (
	DefaultWorkers      = 8
	DefaultLockPollMS   = 250
	DefaultLockTimeoutS = 300
)

// RuntimeConfig is the process's ambient tuning knobs.
type RuntimeConfig struct {
	Workers      int               `yaml:"workers"`
	LockPollMS   int               `yaml:"lock_poll_ms"`
	LockTimeoutS int               `yaml:"lock_timeout_s"`
	Tools        map[string]string `yaml:"tools"`
}

// LockPollInterval returns LockPollMS as a time.Duration.
func (c *RuntimeConfig) LockPollInterval() time.Duration {
	return time.Duration(c.LockPollMS) * time.Millisecond
}

// LockTimeout returns LockTimeoutS as a time.Duration.
func (c *RuntimeConfig) LockTimeout() time.Duration {
	return time.Duration(c.LockTimeoutS) * time.Second
}

// ToolPath returns the configured binary path for a command kind,
// falling back to the command kind's string form (resolved via PATH)
// when the operator hasn't overridden it.
func (c *RuntimeConfig) ToolPath(kind types.CommandKind) string {
	if p, ok := c.Tools[string(kind)]; ok && p != "" {
		return p
	}
	return string(kind)
}

func defaults() *RuntimeConfig {
	return &RuntimeConfig{
		Workers:      DefaultWorkers,
		LockPollMS:   DefaultLockPollMS,
		LockTimeoutS: DefaultLockTimeoutS,
		Tools:        map[string]string{},
	}
}

// Load reads path and applies defaults for any field the file leaves
// zero. An absent file yields all defaults.
func Load(path string) (*RuntimeConfig, error) {
	cfg := defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("runtimeconfig: reading %s: %w", path, err)
	}

	var parsed RuntimeConfig
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return nil, fmt.Errorf("runtimeconfig: parsing %s: %w", path, err)
	}

	if parsed.Workers > 0 {
		cfg.Workers = parsed.Workers
	}
	if parsed.LockPollMS > 0 {
		cfg.LockPollMS = parsed.LockPollMS
	}
	if parsed.LockTimeoutS > 0 {
		cfg.LockTimeoutS = parsed.LockTimeoutS
	}
	if len(parsed.Tools) > 0 {
		cfg.Tools = parsed.Tools
	}

	return cfg, nil
}
