package config

import (
	"flag"
	"fmt"
	"io"

	"github.com/agita-app/agita/internal/flagx"
)

// Flags read by the config layer, short and long form. The command tree
// declares the same names so it accepts them.
var configFlags = []struct {
	short, long, usage string
}{
	{"u", "store-url", "store base URL"},
	{"k", "store-key", "store API key"},
	{"t", "token", "access token"},
	{"l", "local-db", "local preferences database"},
}

// parseFlags populates selected Config fields from command-line flags.
//
//	-u, --store-url string   store base URL
//	-k, --store-key string   store API key
//	-t, --token string       access token
//	-l, --local-db string    local preferences database path
//
// Only these flags are considered; everything else in args belongs to the
// command tree and is filtered out with flagx.FilterArgs.
func parseFlags(cfg *Config, args []string) error {
	targets := []*string{&cfg.StoreURL, &cfg.StoreKey, &cfg.AccessToken, &cfg.LocalDBPath}

	allowed := make([]string, 0, len(configFlags)*3)
	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	for i, f := range configFlags {
		allowed = append(allowed, "-"+f.short, "-"+f.long, "--"+f.long)
		fs.StringVar(targets[i], f.short, *targets[i], f.usage)
		fs.StringVar(targets[i], f.long, *targets[i], f.usage)
	}

	if err := fs.Parse(flagx.FilterArgs(args, allowed)); err != nil {
		return fmt.Errorf("parse flags: %w", err)
	}
	return nil
}
