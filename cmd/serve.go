package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kagaho/Nemo-Guardrails/internal/adapter"
	"github.com/kagaho/Nemo-Guardrails/internal/config"
	"github.com/kagaho/Nemo-Guardrails/internal/server"
	"github.com/kagaho/Nemo-Guardrails/internal/triton"
)

const serveUsage = `Usage:
  guardrails-adapter serve [--config <path>] [--port <port>]

Flags:
  --config string   Path to optional YAML configuration file
  --port   int      Override server port

Environment:
  TRITON_BASE    Backend base URL (default ` + config.DefaultTritonBase + `)
  TRITON_MODEL   Backend model name (default ` + config.DefaultTritonModel + `)
  PORT           Listen port (default 8000)`

func serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, serveUsage)
	}

	var cfgPath string
	var overridePort int
	fs.StringVar(&cfgPath, "config", "", "path to configuration file")
	fs.IntVar(&overridePort, "port", 0, "override server port")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return fmt.Errorf("parse serve flags: %w", err)
	}

	// A .env next to the binary is a convenience for local runs; absence is
	// not an error.
	_ = godotenv.Load()

	cfg := config.Default()
	if cfgPath != "" {
		loaded, err := config.Load(cfgPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(); err != nil {
		return err
	}

	if overridePort != 0 {
		cfg.Server.Port = overridePort
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	httpClient := &http.Client{
		Timeout: time.Duration(cfg.Triton.TimeoutSeconds) * time.Second,
	}

	backend, err := triton.New(cfg.Triton.BaseURL, cfg.Triton.Model, httpClient)
	if err != nil {
		return err
	}

	ad, err := adapter.New(backend)
	if err != nil {
		return err
	}

	srv, err := server.New(cfg, ad)
	if err != nil {
		return err
	}

	return srv.Run(ctx)
}
