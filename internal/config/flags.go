package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// RegisterFlags registers all CLI flags to a cobra command.
func RegisterFlags(cmd *cobra.Command) {
	configureFlags(cmd.Flags())
}

// configureFlags sets up all CLI flags on the provided flag set.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("devtools", DefaultDevToolsURL, "DevTools websocket or HTTP endpoint of the browser to attach to")
	flags.String("listen", DefaultListenAddr, "Address the command API listens on")
	flags.String("db", DefaultDatabasePath, "Path to the sqlite file holding captured streams")

	flags.String("log-level", DefaultLogLevel, "Log level: trace, debug, info, warn or error")
	flags.String("log-file", "", "Also write logs to this file (rotated)")

	flags.Duration("probe-timeout", DefaultProbeTimeout, "Per-probe timeout")
	flags.Duration("probe-pause", DefaultProbePause, "Pause between consecutive probes")

	flags.Int("max-records", DefaultRecordCapacity, "Stream records kept per session before the oldest is evicted")
	flags.Int("max-har-entries", DefaultHARCapacity, "HAR entries kept per session before the oldest is evicted")

	flags.Bool("advanced-capture", false, "Start sessions with in-page capture hooks enabled")

	flags.String("config", "", "Path to configuration file (JSON or YAML)")
}
