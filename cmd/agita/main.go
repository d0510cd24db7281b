package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/agita-app/agita/internal/client/cli"
	"github.com/agita-app/agita/internal/client/config"
	"github.com/agita-app/agita/internal/logging"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "agita: %v\n", err)
		os.Exit(cli.ExitCode(err))
	}

	log, err := logging.New(os.Stderr, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "agita: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(cfg, log)
	if err := app.Run(ctx, os.Args[1:]); err != nil {
		stop()
		os.Exit(cli.ExitCode(err))
	}
}
