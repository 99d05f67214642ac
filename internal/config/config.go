// Package config loads runtime settings from a config file and CLI flags,
// flags winning.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Defaults applied before any file or flag is read.
const (
	DefaultDevToolsURL    = "ws://127.0.0.1:9222"
	DefaultListenAddr     = "127.0.0.1:8780"
	DefaultDatabasePath   = "streamlens.db"
	DefaultLogLevel       = "info"
	DefaultProbeTimeout   = 6 * time.Second
	DefaultProbePause     = 250 * time.Millisecond
	DefaultRecordCapacity = 150
	DefaultHARCapacity    = 300
)

// Config is the resolved runtime configuration.
type Config struct {
	DevToolsURL  string
	ListenAddr   string
	DatabasePath string

	LogLevel string
	LogFile  string

	ProbeTimeout time.Duration
	ProbePause   time.Duration

	RecordCapacity int
	HARCapacity    int

	AdvancedCapture bool

	ConfigFile string
}

// NewDefault returns a Config carrying every default.
func NewDefault() *Config {
	return &Config{
		DevToolsURL:    DefaultDevToolsURL,
		ListenAddr:     DefaultListenAddr,
		DatabasePath:   DefaultDatabasePath,
		LogLevel:       DefaultLogLevel,
		ProbeTimeout:   DefaultProbeTimeout,
		ProbePause:     DefaultProbePause,
		RecordCapacity: DefaultRecordCapacity,
		HARCapacity:    DefaultHARCapacity,
	}
}

var validLogLevels = map[string]bool{
	"trace": true, "debug": true, "info": true, "warn": true, "error": true,
}

// Validate rejects configurations that cannot produce a working process.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.DevToolsURL) == "" {
		return fmt.Errorf("devtools URL is required")
	}
	if !strings.HasPrefix(c.DevToolsURL, "ws://") && !strings.HasPrefix(c.DevToolsURL, "wss://") &&
		!strings.HasPrefix(c.DevToolsURL, "http://") && !strings.HasPrefix(c.DevToolsURL, "https://") {
		return fmt.Errorf("devtools URL must be a ws:// or http:// endpoint, got %q", c.DevToolsURL)
	}
	if strings.TrimSpace(c.ListenAddr) == "" {
		return fmt.Errorf("listen address is required")
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("invalid log level %q", c.LogLevel)
	}
	if c.ProbeTimeout <= 0 {
		return fmt.Errorf("probe timeout must be positive, got %s", c.ProbeTimeout)
	}
	if c.ProbePause < 0 {
		return fmt.Errorf("probe pause cannot be negative, got %s", c.ProbePause)
	}
	if c.RecordCapacity <= 0 {
		return fmt.Errorf("record capacity must be positive, got %d", c.RecordCapacity)
	}
	if c.HARCapacity <= 0 {
		return fmt.Errorf("har capacity must be positive, got %d", c.HARCapacity)
	}
	return nil
}
