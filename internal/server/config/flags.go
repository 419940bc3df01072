package config

import (
	"flag"
	"fmt"
	"io"
	"time"

	"github.com/dmitrijs2005/gideon/internal/flagx"
)

// parseFlags overlays command-line flags.
//
// Supported flags (short forms):
//
//	-a string   HTTP bind address (e.g., ":8000")
//	-g string   gRPC bind address, empty to disable
//	-d string   PostgreSQL DSN
//	-s string   session token signing key
//	-k string   base64 master key for stored API keys
//	-t int      access token validity, minutes
//	-l string   log format: json, text or zap
//
// args is filtered with flagx.FilterArgs first so flags owned by other
// components do not break parsing.
func parseFlags(cfg *Config, args []string) error {
	args = flagx.FilterArgs(args, []string{"-a", "-g", "-d", "-s", "-k", "-t", "-l"})

	fs := flag.NewFlagSet("gideon", flag.ContinueOnError)
	fs.SetOutput(io.Discard)

	fs.StringVar(&cfg.EndpointAddrHTTP, "a", cfg.EndpointAddrHTTP, "HTTP address and port")
	fs.StringVar(&cfg.EndpointAddrGRPC, "g", cfg.EndpointAddrGRPC, "gRPC address and port")
	fs.StringVar(&cfg.DatabaseDSN, "d", cfg.DatabaseDSN, "database DSN")
	fs.StringVar(&cfg.SecretKey, "s", cfg.SecretKey, "token signing key")
	fs.StringVar(&cfg.EncryptionKey, "k", cfg.EncryptionKey, "base64 master encryption key")
	fs.StringVar(&cfg.LogFormat, "l", cfg.LogFormat, "log format")

	accessTokenMinutes := fs.Int("t", int(cfg.AccessTokenValidityDuration.Minutes()), "access token validity (in minutes)")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}

	tokenFlagSet := false
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "t" {
			tokenFlagSet = true
		}
	})
	if tokenFlagSet {
		cfg.AccessTokenValidityDuration = time.Duration(*accessTokenMinutes) * time.Minute
	}

	return nil
}
