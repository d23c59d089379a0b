// Package livejoin parses join client flags and runs the join sequence.
package livejoin

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"

	entrypoint "github.com/siu-labs/livegate/internal/platform/cmd"
	"github.com/siu-labs/livegate/internal/services/live/client"
)

// Config holds livejoin command configuration.
type Config struct {
	ServerURL      string `env:"LIVEJOIN_SERVER_URL" envDefault:"http://localhost:8090"`
	Wallet         string `env:"LIVEJOIN_WALLET"`
	LockAddress    string `env:"LIVEJOIN_LOCK_ADDRESS"`
	RoomBase       string `env:"HUDDLE_ROOM_BASE_URL" envDefault:"https://app.huddle01.com"`
	IdempotencyKey string `env:"LIVEJOIN_IDEMPOTENCY_KEY"`
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.StringVar(&cfg.ServerURL, "server", cfg.ServerURL, "livegate server URL")
	fs.StringVar(&cfg.Wallet, "wallet", cfg.Wallet, "Connected wallet address")
	fs.StringVar(&cfg.LockAddress, "lock", cfg.LockAddress, "Lock contract address")
	fs.StringVar(&cfg.RoomBase, "room-base", cfg.RoomBase, "Base URL for constructed room links")
	fs.StringVar(&cfg.IdempotencyKey, "idempotency-key", cfg.IdempotencyKey, "Optional room creation idempotency key")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run executes one join attempt and writes the room URL to out.
func Run(ctx context.Context, cfg Config, out io.Writer) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceLivejoin, func(ctx context.Context) error {
		seq := client.New(client.Config{
			ServerURL:   cfg.ServerURL,
			LockAddress: cfg.LockAddress,
			RoomBase:    cfg.RoomBase,
			OnState: func(status client.Status) {
				if status.Message != "" {
					log.Printf("state=%s message=%q", status.State, status.Message)
					return
				}
				log.Printf("state=%s", status.State)
			},
		})
		session, err := seq.Join(ctx, cfg.Wallet, cfg.IdempotencyKey)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintln(out, session.RoomURL); err != nil {
			return fmt.Errorf("write room url: %w", err)
		}
		return nil
	})
}
