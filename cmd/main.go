package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli"

	"portfolioexecutor/cmd/cancelopen"
	"portfolioexecutor/cmd/execute"
	"portfolioexecutor/cmd/marketoverview"
)

var Version string

func SetupLogger() {
	level, err := logrus.ParseLevel(strings.ToLower(os.Getenv("LOG_LEVEL")))
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)

	if strings.EqualFold(os.Getenv("LOG_FORMAT"), "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
		return
	}
	logrus.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})
}

func main() {
	// .env is optional
	_ = godotenv.Load()
	SetupLogger()

	app := cli.NewApp()
	app.Name = "Portfolio Executor CMD"
	app.Usage = "Portfolio rebalancing execution and market overview"
	app.Version = Version

	app.Commands = []cli.Command{
		overviewCMD,
		executeCMD,
		cancelOpenCMD,
	}

	if err := app.Run(os.Args); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var (
	overviewCMD = cli.Command{
		Name:      "overview",
		Usage:     "compute the market overview of tokens",
		Action:    overviewAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "tokens", Value: "BTC,ETH", Usage: "comma separated token list"},
		},
		Description: `Fetch candles, ticker and book for every token and print the derived overview as JSON`,
	}
	executeCMD = cli.Command{
		Name:      "execute",
		Usage:     "execute a review cycle batch",
		Action:    executeAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.StringFlag{Name: "file", Usage: "YAML batch file (defaults to BATCH_FILE)"},
		},
		Description: `Normalize and dispatch the intents of a batch file, retrying once when every order hit price divergence`,
	}
	cancelOpenCMD = cli.Command{
		Name:      "cancel-open",
		Usage:     "cancel the open orders of a workflow",
		Action:    cancelOpenAction,
		ArgsUsage: "",
		Flags: []cli.Flag{
			cli.UintFlag{Name: "workflow", Usage: "workflow id"},
			cli.UintFlag{Name: "user", Usage: "restrict to one user id"},
		},
		Description: `Cancel every open execution record of a workflow in parallel`,
	}
)

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func overviewAction(c *cli.Context) error {
	logrus.Info("Starting overview CMD")
	ctx, stop := signalContext()
	defer stop()

	cmd := &marketoverview.MarketOverview{
		Log: logrus.WithField("cmd", "overview"),
		Out: os.Stdout,
	}
	if err := cmd.Start(ctx, marketoverview.ParseTokens(c.String("tokens"))); err != nil {
		logrus.WithError(err).Error("Overview cmd failed")
		return err
	}
	return nil
}

func executeAction(c *cli.Context) error {
	logrus.Info("Starting execute CMD")
	ctx, stop := signalContext()
	defer stop()

	cmd := &execute.Execute{
		Log: logrus.WithField("cmd", "execute"),
		Out: os.Stdout,
	}
	if err := cmd.Start(ctx, c.String("file")); err != nil {
		logrus.WithError(err).Error("Execute cmd failed")
		return err
	}
	return nil
}

func cancelOpenAction(c *cli.Context) error {
	logrus.Info("Starting cancel-open CMD")
	ctx, stop := signalContext()
	defer stop()

	cmd := &cancelopen.CancelOpen{
		Log: logrus.WithField("cmd", "cancel-open"),
		Out: os.Stdout,
	}
	if err := cmd.Start(ctx, c.Uint("workflow"), c.Uint("user")); err != nil {
		logrus.WithError(err).Error("Cancel-open cmd failed")
		return err
	}
	return nil
}
