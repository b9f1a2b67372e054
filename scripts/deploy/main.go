package main

// Deploys RFPSimpleStrategy and Allo to the node at RPC_URL and prints their
// addresses. See framework.LoadConfig for the environment it reads.

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/allo-protocol/allo-deployer/deploy"
	"github.com/allo-protocol/allo-deployer/framework"
)

func main() {
	log := logrus.NewEntry(logrus.New())
	// stdout only carries the address lines
	log.Logger.SetOutput(os.Stderr)

	cfg, err := framework.LoadConfig()
	if err != nil {
		log.WithError(err).Fatal("invalid configuration")
	}

	lvl, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatalf("invalid loglevel: %s", cfg.LogLevel)
	}
	log.Logger.SetLevel(lvl)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg, os.Stdout, log)
	stop()
	if err != nil {
		log.WithError(err).Fatal("deployment failed")
	}
}

func run(ctx context.Context, cfg *framework.Config, out io.Writer, log *logrus.Entry) error {
	fr, err := framework.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer fr.Close()

	if _, err := fr.Preflight(ctx); err != nil {
		return err
	}

	var book *framework.DeploymentBook
	if cfg.DeploymentsFile != "" {
		book = framework.NewDeploymentBook(cfg.DeploymentsFile)
	}
	return deployAll(ctx, fr, fr.ChainID(), book, out, log)
}

// deployAll runs the default plan and prints one line per confirmed contract.
// A nil book skips recording.
func deployAll(ctx context.Context, resolver deploy.FactoryResolver, chainID uint64, book *framework.DeploymentBook, out io.Writer, log *logrus.Entry) error {
	driver := deploy.NewDriver(log, resolver)
	_, err := driver.Run(ctx, deploy.DefaultPlan, func(step deploy.Step, dep deploy.Deployment) {
		fmt.Fprintln(out, deploy.FormatLine(step.Label, dep.Address))

		if book == nil {
			return
		}
		if err := book.Record(chainID, dep); err != nil {
			log.WithError(err).WithField("file", book.Path()).Warn("failed to record deployment")
		}
	})
	return err
}
