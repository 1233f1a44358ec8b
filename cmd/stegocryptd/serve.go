package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/rbaliyan/stegocrypt/server"
)

type serveFlags struct {
	configPath        string
	listen            string
	allowedOrigins    []string
	identifierPolicy  string
	maxBodyBytes      int64
	maxPlaintextBytes int64
	logLevel          string
	logFormat         string
	requestTimeout    time.Duration
}

func newServeCmd() *cobra.Command {
	f := &serveFlags{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the REST API",
		Long: `Serve the layered pipeline and the standalone watermark and
steganography tools over HTTP. Settings come from the YAML file given with
--config, then from flags and STEGOCRYPT_* environment variables.

SIGTERM shuts the server down gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := f.config(cmd.Flags())
			if err != nil {
				return err
			}
			logger, err := cfg.NewLogger(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			s, err := server.New(cfg, server.WithLogger(logger))
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
			defer stop()
			return s.ListenAndServe(ctx)
		},
	}

	f.bind(cmd.Flags())
	return cmd
}

func (f *serveFlags) bind(fs *pflag.FlagSet) {
	defaults := server.DefaultConfig()
	fs.StringVarP(&f.configPath, "config", "c", "", "Path to a YAML config file.")
	fs.StringVarP(&f.listen, "listen", "l", defaults.Listen, "Address to listen on.")
	fs.StringSliceVar(&f.allowedOrigins, "allowed-origins", defaults.AllowedOrigins, "CORS allowed origins.")
	fs.StringVar(&f.identifierPolicy, "identifier-policy", defaults.IdentifierPolicy,
		"How to treat a sender identifier mismatch on decrypt: warn or strict.")
	fs.Int64Var(&f.maxBodyBytes, "max-body-bytes", defaults.MaxBodyBytes, "Maximum request body size.")
	fs.Int64Var(&f.maxPlaintextBytes, "max-plaintext-bytes", defaults.MaxPlaintextBytes,
		"Maximum message size accepted for encryption or hiding.")
	fs.StringVar(&f.logLevel, "log-level", defaults.LogLevel, "Log level (debug, info, warn, error).")
	fs.StringVar(&f.logFormat, "log-format", defaults.LogFormat, "Log format: text or json.")
	fs.DurationVar(&f.requestTimeout, "request-timeout", defaults.RequestTimeout, "Per-request timeout.")
}

// config loads the file and applies flags that were set explicitly.
func (f *serveFlags) config(fs *pflag.FlagSet) (server.Config, error) {
	cfg, err := server.LoadConfig(f.configPath)
	if err != nil {
		return cfg, err
	}
	overrides := map[string]func(){
		"listen":              func() { cfg.Listen = f.listen },
		"allowed-origins":     func() { cfg.AllowedOrigins = f.allowedOrigins },
		"identifier-policy":   func() { cfg.IdentifierPolicy = f.identifierPolicy },
		"max-body-bytes":      func() { cfg.MaxBodyBytes = f.maxBodyBytes },
		"max-plaintext-bytes": func() { cfg.MaxPlaintextBytes = f.maxPlaintextBytes },
		"log-level":           func() { cfg.LogLevel = f.logLevel },
		"log-format":          func() { cfg.LogFormat = f.logFormat },
		"request-timeout":     func() { cfg.RequestTimeout = f.requestTimeout },
	}
	for name, apply := range overrides {
		if fs.Changed(name) {
			apply()
		}
	}
	return cfg, cfg.Validate()
}
