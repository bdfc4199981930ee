// Package config defines the ingest pipeline's tunables and their
// defaults. cmd/hibpstore binds these fields to urfave/cli flags
// (with EnvVars, following the teacher's klog.go flag style); this
// package owns only the defaults and validation, not flag parsing.
package config

import (
	"fmt"
	"runtime"
	"time"
)

// DefaultBaseURL is the HIBP k-anonymity range endpoint.
const DefaultBaseURL = "https://api.pwnedpasswords.com/range/"

// DefaultTmpName is the sibling temp file name used by the store's
// DownloadThenReplace publication mode.
const DefaultTmpName = "download_tmp"

// Config holds the ingest pipeline's runtime configuration.
type Config struct {
	BaseURL     string
	OutPath     string
	TmpPath     string
	Workers     int
	StartPrefix uint32
	EndPrefix   uint32
	HTTPTimeout time.Duration
	MaxRetries  uint64
	Progress    bool
}

// Default returns a Config populated with the pipeline's defaults:
// the full prefix range, a worker count scaled to available CPUs (the
// workload is I/O-bound, so the teacher's *3 rule of thumb for
// concurrent fetchers applies), and a conservative per-request
// timeout.
func Default() Config {
	return Config{
		BaseURL:     DefaultBaseURL,
		OutPath:     "hibp.store",
		Workers:     runtime.NumCPU() * 3,
		StartPrefix: 0x00000,
		EndPrefix:   0xFFFFF,
		HTTPTimeout: 30 * time.Second,
		MaxRetries:  5,
		Progress:    true,
	}
}

// Validate checks field ranges that flag parsing cannot express.
func (c Config) Validate() error {
	if c.BaseURL == "" {
		return fmt.Errorf("config: base URL must not be empty")
	}
	if c.OutPath == "" {
		return fmt.Errorf("config: output path must not be empty")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.StartPrefix > 0xFFFFF {
		return fmt.Errorf("config: start prefix %#x exceeds 0xFFFFF", c.StartPrefix)
	}
	if c.EndPrefix > 0xFFFFF {
		return fmt.Errorf("config: end prefix %#x exceeds 0xFFFFF", c.EndPrefix)
	}
	if c.StartPrefix > c.EndPrefix {
		return fmt.Errorf("config: start prefix %#x is after end prefix %#x", c.StartPrefix, c.EndPrefix)
	}
	if c.HTTPTimeout <= 0 {
		return fmt.Errorf("config: http timeout must be positive, got %s", c.HTTPTimeout)
	}
	return nil
}
