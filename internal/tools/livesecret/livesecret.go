// Package livesecret generates LIVE_JWT_SECRET values for livegate.
package livesecret

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
)

// EnvName is the variable livegate reads its token secret from.
const EnvName = "LIVE_JWT_SECRET"

// MinBytes is the shortest secret accepted for HS256 signing.
const MinBytes = 32

const (
	FormatHex    = "hex"
	FormatBase64 = "base64"
)

// Config holds configuration for secret generation.
type Config struct {
	Bytes  int
	Format string
}

// ParseConfig parses flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	cfg := Config{Bytes: MinBytes, Format: FormatHex}
	fs.IntVar(&cfg.Bytes, "bytes", cfg.Bytes, "number of random bytes (minimum 32)")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "output encoding: hex or base64")
	if err := fs.Parse(args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run generates a secret and writes it to out as an env assignment.
func Run(cfg Config, out io.Writer, reader io.Reader) error {
	if cfg.Bytes < MinBytes {
		return fmt.Errorf("bytes must be at least %d", MinBytes)
	}
	if out == nil {
		return errors.New("output is required")
	}
	encode, err := encoder(cfg.Format)
	if err != nil {
		return err
	}
	if reader == nil {
		reader = rand.Reader
	}

	buf := make([]byte, cfg.Bytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return fmt.Errorf("generate random bytes: %w", err)
	}
	_, err = fmt.Fprintf(out, "%s=%s\n", EnvName, encode(buf))
	return err
}

func encoder(format string) (func([]byte) string, error) {
	switch format {
	case "", FormatHex:
		return hex.EncodeToString, nil
	case FormatBase64:
		return base64.RawURLEncoding.EncodeToString, nil
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}
