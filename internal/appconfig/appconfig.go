// Package appconfig loads the small options bag that drives a firelet
// run: where the table repository lives, which SSH user to connect as,
// the fleet's target hosts, and which transport mode to use.
package appconfig

import (
	"os"

	"gopkg.in/yaml.v3"

	ferrors "github.com/carriercomm/firelet/internal/errors"
)

// Mode selects the transport used to reach the fleet.
type Mode string

const (
	// ModeLive dials real SSH sessions against the fleet.
	ModeLive Mode = "live"
	// ModeMock replaces the SSH transport with file-backed stubs, per §6.
	ModeMock Mode = "mock"
)

// Config is the on-disk options file, per §6's four configuration
// options: repodir, username, targets, mode.
type Config struct {
	// RepoDir is the path to the table directory. Defaults to "firewall".
	RepoDir string `yaml:"repodir"`
	// Username is the SSH user used to reach every fleet host. Defaults
	// to "firelet".
	Username string `yaml:"username"`
	// Targets maps host name to its management addresses, most-preferred
	// first.
	Targets map[string][]string `yaml:"targets"`
	// Mode is ModeLive or ModeMock. Defaults to ModeLive.
	Mode Mode `yaml:"mode"`
	// MockDir is the directory MockDialer reads/writes when Mode is
	// ModeMock. Ignored otherwise.
	MockDir string `yaml:"mock_dir"`
}

// Load reads and validates a YAML config file, applying defaults to any
// zero-valued option the way resolveNewtLabConfig fills defaults after
// unmarshal.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindPersistence, "appconfig: read %s", path)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, ferrors.Wrapf(err, ferrors.KindParse, "appconfig: parse %s", path)
	}
	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.RepoDir == "" {
		cfg.RepoDir = "firewall"
	}
	if cfg.Username == "" {
		cfg.Username = "firelet"
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeLive
	}
}

// Validate reports a KindInvalidRule-free validation error if cfg is
// structurally unusable (unknown mode, mock mode without a directory).
func (cfg *Config) Validate() error {
	switch cfg.Mode {
	case ModeLive, ModeMock:
	default:
		return ferrors.Errorf(ferrors.KindParse, "appconfig: unknown mode %q (want %q or %q)", cfg.Mode, ModeLive, ModeMock)
	}
	if cfg.Mode == ModeMock && cfg.MockDir == "" {
		return ferrors.New(ferrors.KindParse, "appconfig: mock_dir is required when mode is mock")
	}
	return nil
}
