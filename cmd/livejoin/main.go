// Package main runs one join attempt against a livegate server.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	livejoincmd "github.com/siu-labs/livegate/internal/cmd/livejoin"
)

func main() {
	cfg, err := livejoincmd.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		log.Fatalf("parse flags: %v", err)
	}
	log.SetPrefix("[LIVEJOIN] ")
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := livejoincmd.Run(ctx, cfg, os.Stdout); err != nil {
		log.Fatalf("join failed: %v", err)
	}
}
