package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/kardianos/minwinsvc"

	"github.com/aprendeyjuega/asset-relay/application"
	"github.com/aprendeyjuega/asset-relay/config"
	"github.com/aprendeyjuega/asset-relay/internal/logging"
	"github.com/aprendeyjuega/asset-relay/internal/version"
	"github.com/aprendeyjuega/asset-relay/relay"
)

func main() {
	os.Exit(run())
}

func run() int {
	loggers := logging.MakeDefaultLoggers()

	opts, err := application.ReadOptions(os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 1
	}

	loggers.Infof("Starting asset-relay version %s with %s",
		application.DescribeVersion(version.Version), opts.DescribeConfigSource())

	c := config.DefaultConfig
	if opts.ConfigFile != "" {
		if err := config.LoadConfigFile(&c, opts.ConfigFile, loggers); err != nil {
			loggers.Errorf("Error loading config file: %s", err)
			return 1
		}
	}
	if opts.UseEnvironment {
		if err := config.LoadConfigFromEnvironment(&c, loggers); err != nil {
			loggers.Errorf("Configuration error: %s", err)
			return 1
		}
	}

	r, err := relay.NewRelay(c, loggers)
	if err != nil {
		loggers.Errorf("Unable to create relay: %s", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := c.Main.Port.GetOrElse(8040)
	srv, errCh := application.StartHTTPServer(c.Main, port, r, loggers)

	exitCode := 0
	select {
	case err := <-errCh:
		if err != nil {
			loggers.Errorf("Error starting HTTP listener on port %d: %s", port, err)
			exitCode = 1
		}
	case <-ctx.Done():
		loggers.Info("Shutting down")
		application.ShutdownHTTPServer(srv, application.DefaultShutdownTimeout, loggers)
	}
	_ = r.Close()
	return exitCode
}
