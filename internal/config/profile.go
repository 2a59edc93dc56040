package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile is the console's configuration, read from a YAML file and
// overridden by MDCONSOLE_* environment variables and command-line flags.
type Profile struct {
	Server         string        `yaml:"server"`
	PageSize       int           `yaml:"page_size"`
	Debounce       time.Duration `yaml:"debounce"`
	NavigateDelay  time.Duration `yaml:"navigate_delay"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	Actor          string        `yaml:"actor"`
	Signature      string        `yaml:"signature"`
	HandoffDB      string        `yaml:"handoff_db"`
	LogLevel       string        `yaml:"log_level"`
	LogFormat      string        `yaml:"log_format"`
}

// DefaultProfile returns the profile used when no file is present. Actor
// and Signature are deliberately empty: mutations are refused until they
// are configured.
func DefaultProfile() Profile {
	return Profile{
		Server:         "http://localhost:8080",
		PageSize:       10,
		Debounce:       500 * time.Millisecond,
		NavigateDelay:  1500 * time.Millisecond,
		RequestTimeout: 30 * time.Second,
		HandoffDB:      filepath.Join(defaultDir(), "handoffs.db"),
		LogLevel:       "warn",
		LogFormat:      "text",
	}
}

// DefaultProfilePath returns ~/.mdconsole/config.yaml.
func DefaultProfilePath() string {
	return filepath.Join(defaultDir(), "config.yaml")
}

func defaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".mdconsole"
	}
	return filepath.Join(home, ".mdconsole")
}

// LoadProfile reads the YAML profile at path on top of DefaultProfile and
// applies environment overrides. A missing file is not an error.
func LoadProfile(path string) (Profile, error) {
	p := DefaultProfile()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return p, fmt.Errorf("read profile %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, &p); err != nil {
			return p, fmt.Errorf("parse profile %s: %w", path, err)
		}
	}
	if err := p.ApplyEnv(); err != nil {
		return p, err
	}
	return p, p.Validate()
}

// ApplyEnv overrides fields from MDCONSOLE_* environment variables.
func (p *Profile) ApplyEnv() error {
	p.Server = getEnvWithDefault("MDCONSOLE_SERVER", p.Server)
	p.Actor = getEnvWithDefault("MDCONSOLE_ACTOR", p.Actor)
	p.Signature = getEnvWithDefault("MDCONSOLE_SIGNATURE", p.Signature)
	p.HandoffDB = getEnvWithDefault("MDCONSOLE_HANDOFF_DB", p.HandoffDB)
	p.LogLevel = getEnvWithDefault("MDCONSOLE_LOG_LEVEL", p.LogLevel)
	p.LogFormat = getEnvWithDefault("MDCONSOLE_LOG_FORMAT", p.LogFormat)

	if v := os.Getenv("MDCONSOLE_PAGE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MDCONSOLE_PAGE_SIZE: %w", err)
		}
		p.PageSize = n
	}
	for key, dst := range map[string]*time.Duration{
		"MDCONSOLE_DEBOUNCE":        &p.Debounce,
		"MDCONSOLE_NAVIGATE_DELAY":  &p.NavigateDelay,
		"MDCONSOLE_REQUEST_TIMEOUT": &p.RequestTimeout,
	} {
		if v := os.Getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
	}
	return nil
}

// Validate checks ranges that would otherwise fail later and less clearly.
func (p Profile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Server) == "" {
		problems = append(problems, "server is required")
	}
	if p.PageSize < 1 || p.PageSize > 100 {
		problems = append(problems, fmt.Sprintf("page_size must be between 1 and 100, got %d", p.PageSize))
	}
	if p.Debounce < 0 {
		problems = append(problems, "debounce must not be negative")
	}
	if p.RequestTimeout < 0 {
		problems = append(problems, "request_timeout must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid profile: %s", strings.Join(problems, "; "))
	}
	return nil
}
