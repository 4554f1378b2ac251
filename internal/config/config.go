package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"runtime"
	"strconv"

	"github.com/BurntSushi/toml"
)

// DefaultPath is where Load looks for the configuration file unless
// overridden on the command line.
const DefaultPath = "/etc/blksocks/config.toml"

// WorkerThreadsEnv overrides the size of the scheduler's worker pool.
const WorkerThreadsEnv = "BLKSOCKS_WORKER_THREADS"

type Config struct {
	Network Network `toml:"network"`
	Logging Logging `toml:"logging"`
}

// Network holds the two addresses the relay cares about: where redirected
// connections arrive and where the upstream SOCKS5 proxy lives.
type Network struct {
	Listen string `toml:"listen"`
	SOCKS5 string `toml:"socks5"`

	// RedirectMode selects how the original destination of an accepted
	// connection is recovered: "tproxy" (default) or "redirect".
	RedirectMode string `toml:"redirect_mode"`
}

// Logging configures optional file logging with size-based rotation.
type Logging struct {
	Enabled         bool   `toml:"enabled"`
	Directory       string `toml:"directory"`
	FileSizeLimitMB int    `toml:"file_size_limit_mb"`
	RotateCount     int    `toml:"rotate_count"`
}

func Default() Config {
	return Config{
		Logging: Logging{
			Enabled:         true,
			Directory:       "/var/log/blksocks",
			FileSizeLimitMB: 2,
			RotateCount:     5,
		},
	}
}

// Load reads and validates the TOML configuration at path. Missing or
// malformed required fields are an error; optional logging fields fall back
// to defaults.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if err := checkHostPort(c.Network.Listen); err != nil {
		return fmt.Errorf("network.listen: %w", err)
	}
	if err := checkHostPort(c.Network.SOCKS5); err != nil {
		return fmt.Errorf("network.socks5: %w", err)
	}

	switch c.Network.RedirectMode {
	case "", "tproxy", "redirect":
	default:
		return fmt.Errorf("network.redirect_mode: unknown mode %q", c.Network.RedirectMode)
	}

	if c.Logging.FileSizeLimitMB <= 0 {
		return errors.New("logging.file_size_limit_mb: must be > 0")
	}
	if c.Logging.RotateCount <= 0 {
		return errors.New("logging.rotate_count: must be > 0")
	}
	return nil
}

func checkHostPort(addr string) error {
	if addr == "" {
		return errors.New("missing")
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		return fmt.Errorf("invalid port %q", port)
	}
	return nil
}

// WorkerThreads returns the worker pool size, honoring WorkerThreadsEnv when
// it holds a positive integer. The second return reports whether the
// environment value was used.
func WorkerThreads() (int, bool) {
	v := os.Getenv(WorkerThreadsEnv)
	if v == "" {
		return runtime.NumCPU(), false
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return runtime.NumCPU(), false
	}
	return n, true
}
