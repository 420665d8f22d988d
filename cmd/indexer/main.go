package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"indexer/internal/blockchain"
	"indexer/internal/config"
	"indexer/internal/logger"
	"indexer/internal/metrics"
	"indexer/internal/tracker"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

var (
	envFlag = &cli.StringFlag{
		Name:  "env",
		Usage: "dotenv file to read configuration from",
		Value: ".env",
	}
	databaseFlag = &cli.StringFlag{
		Name:  "db",
		Usage: "sqlite database path, overrides DATABASE_PATH",
	}
	eventsFlag = &cli.StringFlag{
		Name:  "events",
		Usage: "YAML event feed to replay, overrides EVENTS_FILE",
	}
	metricsFlag = &cli.StringFlag{
		Name:  "metrics",
		Usage: "address to serve prometheus metrics on, overrides METRICS_ADDR",
	}
)

func main() {
	app := &cli.App{
		Name:  "indexer",
		Usage: "staking reward indexer",
		Flags: []cli.Flag{envFlag, databaseFlag},
		Commands: []*cli.Command{
			commandRun,
			commandPools,
			commandRewards,
			commandUser,
			commandEvents,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var commandRun = &cli.Command{
	Name:   "run",
	Usage:  "apply an event feed to the database",
	Flags:  []cli.Flag{eventsFlag, metricsFlag},
	Action: run,
}

func loadConfiguration(c *cli.Context) (config.Configuration, error) {
	configuration, err := config.Load(c.String(envFlag.Name))
	if err != nil {
		return configuration, err
	}
	if c.IsSet(databaseFlag.Name) {
		configuration.DatabasePath = c.String(databaseFlag.Name)
	}
	if c.IsSet(eventsFlag.Name) {
		configuration.EventsFile = c.String(eventsFlag.Name)
	}
	if c.IsSet(metricsFlag.Name) {
		configuration.MetricsAddr = c.String(metricsFlag.Name)
	}
	return configuration, nil
}

func run(c *cli.Context) error {
	configuration, err := loadConfiguration(c)
	if err != nil {
		return err
	}

	logger.Initialize(configuration.Logger)
	defer logger.Sync()

	if configuration.EventsFile == "" {
		return errors.New("no event feed, set EVENTS_FILE or --events")
	}
	source, err := blockchain.LoadFile(configuration.EventsFile)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(c.Context)
	defer cancel()

	trackerInstance, err := tracker.NewTracker(ctx, configuration)
	if err != nil {
		return err
	}
	defer trackerInstance.Finalize()

	if configuration.MetricsAddr != "" {
		go serveMetrics(configuration.MetricsAddr)
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- trackerInstance.Run(source)
	}()

	select {
	case err := <-errCh:
		return err
	case <-waitForInterrupt():
		logger.Info("interrupt received, finishing current event")
		cancel()
		if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	}
}

func serveMetrics(address string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())

	server := &http.Server{
		Addr:              address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	logger.Info("serving metrics", zap.String("address", address))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

func waitForInterrupt() <-chan os.Signal {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	return sigCh
}
