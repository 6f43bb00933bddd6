// Package healthcli implements the "health" CLI subcommand: it prints the
// daemon's health snapshot built from local configuration, without dialing
// a running daemon.
package healthcli

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/openpep/pepd/internal/config"
	"github.com/openpep/pepd/internal/wire"
)

// Version is reported in the snapshot. It is overridden at link time in
// release builds via -ldflags, mirroring server.Version.
var Version = "dev"

// Main parses health-mode flags and prints a health snapshot derived from
// the process's own environment-backed configuration.
func Main(args []string) error {
	fs := flag.NewFlagSet("health", flag.ContinueOnError)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.FromEnv()
	snapshot := wire.HealthStatus{
		Status:              "ok",
		Version:             Version,
		AllowedDomainsCount: len(cfg.AllowedDomains),
		MaxRequestBytes:     cfg.MaxRequestBytes,
		MaxResponseBytes:    cfg.MaxResponseBytes,
	}

	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(snapshot); err != nil {
		return fmt.Errorf("encoding health snapshot: %w", err)
	}
	return nil
}
