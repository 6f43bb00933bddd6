// Package serverd wires the connection server (C7/C8) and its dependencies
// together and runs the accept loop. It is the daemon entry point invoked
// by the "serve" CLI subcommand.
package serverd

import (
	"context"
	"flag"
	"fmt"
	"net/http"

	"github.com/openpep/pepd/internal/adminui"
	"github.com/openpep/pepd/internal/audit"
	"github.com/openpep/pepd/internal/config"
	"github.com/openpep/pepd/internal/logging"
	"github.com/openpep/pepd/internal/mediator"
	"github.com/openpep/pepd/internal/policy"
	"github.com/openpep/pepd/internal/server"
	"github.com/openpep/pepd/internal/telemetry/otel"
	"github.com/openpep/pepd/internal/transport"
)

var log = logging.New("serverd")

// Main parses serve-mode flags, constructs the policy evaluator, mediator
// and server, and blocks serving connections until the listener fails.
func Main(args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	cid := fs.Uint("cid", uint(transport.VMADDR_CID_ANY), "vsock context ID to bind (ignored on non-Linux hosts)")
	port := fs.Uint("port", 4040, "vsock or loopback TCP port to bind")
	adminAddr := fs.String("admin-addr", "", "HTTP address for the admin audit-tail UI (disabled when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg := config.FromEnv()

	evaluator, err := buildEvaluator(cfg)
	if err != nil {
		return fmt.Errorf("building policy evaluator: %w", err)
	}

	telemetryCtx := context.Background()
	provider, err := otel.Setup(telemetryCtx, otel.LoadConfigFromEnv())
	if err != nil {
		return fmt.Errorf("setting up telemetry: %w", err)
	}
	defer func() {
		if err := provider.Shutdown(telemetryCtx); err != nil {
			log.Printf("telemetry shutdown: %v", err)
		}
	}()

	auditWriter := audit.NewWriter(cfg.AuditLogPath)

	if *adminAddr != "" {
		hub := adminui.NewHub(1000)
		hub.RegisterWith(auditWriter)
		go hub.Run()
		go func() {
			log.Printf("admin UI listening on %s", *adminAddr)
			if err := http.ListenAndServe(*adminAddr, hub.Handler()); err != nil {
				log.Printf("admin UI server stopped: %v", err)
			}
		}()
	}

	m := mediator.New(cfg, evaluator, auditWriter, provider.Mediation())
	srv := server.New(cfg, m)

	listener, err := transport.Listen(transport.Config{CID: uint32(*cid), Port: uint32(*port)})
	if err != nil {
		return fmt.Errorf("binding listener: %w", err)
	}
	defer listener.Close()

	log.Printf("listening on %s", listener.Addr())
	return srv.Serve(listener)
}

// buildEvaluator chooses the policy variant at startup: a rule engine when
// a policy directory is configured, otherwise the static allowlist.
func buildEvaluator(cfg config.PepConfig) (policy.Evaluator, error) {
	if cfg.PolicyDir == "" {
		return policy.NewStaticAllowlist(cfg.AllowedDomains), nil
	}
	engine, err := policy.LoadRuleEngine(context.Background(), cfg.PolicyDir)
	if err != nil {
		return nil, err
	}
	return engine, nil
}
