// Package livegate parses livegate service flags and launches the service.
package livegate

import (
	"context"
	"errors"
	"flag"
	"log"
	"strings"
	"time"

	entrypoint "github.com/siu-labs/livegate/internal/platform/cmd"
	platformgrpc "github.com/siu-labs/livegate/internal/platform/grpc"
	server "github.com/siu-labs/livegate/internal/services/live/app"
)

const healthcheckTimeout = 5 * time.Second

// Config holds livegate command configuration.
type Config struct {
	Server      server.Config
	Healthcheck bool
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	serverCfg, err := server.LoadConfig(nil)
	if err != nil {
		return Config{}, err
	}
	cfg := Config{Server: serverCfg}
	fs.StringVar(&cfg.Server.HTTPAddr, "http-addr", cfg.Server.HTTPAddr, "HTTP listen address")
	fs.StringVar(&cfg.Server.GRPCAddr, "grpc-addr", cfg.Server.GRPCAddr, "Optional gRPC health listen address")
	fs.StringVar(&cfg.Server.DBPath, "db-path", cfg.Server.DBPath, "SQLite database path")
	fs.BoolVar(&cfg.Healthcheck, "healthcheck", false, "Probe the gRPC health endpoint and exit")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	if err := cfg.Server.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the livegate service, or probes a running one when Healthcheck
// is set.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Healthcheck {
		return healthcheck(ctx, cfg.Server.GRPCAddr)
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLivegate, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Server)
	})
}

func healthcheck(ctx context.Context, addr string) error {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return errors.New("healthcheck requires LIVEGATE_GRPC_ADDR or -grpc-addr")
	}
	ctx, cancel := context.WithTimeout(ctx, healthcheckTimeout)
	defer cancel()
	return platformgrpc.Probe(ctx, addr, log.Printf)
}
