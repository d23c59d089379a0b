package main

import (
	"flag"
	"os"

	"github.com/siu-labs/livegate/internal/platform/config"
	"github.com/siu-labs/livegate/internal/tools/livesecret"
)

func main() {
	cfg, err := livesecret.ParseConfig(flag.CommandLine, os.Args[1:])
	if err != nil {
		config.Exitf("parse flags: %v", err)
	}
	if err := livesecret.Run(cfg, os.Stdout, nil); err != nil {
		config.Exitf("generate secret: %v", err)
	}
}
