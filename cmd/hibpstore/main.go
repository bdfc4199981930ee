package main

import (
	"context"
	"os"
	"os/signal"
	"sort"
	"syscall"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/rpcpool/hibp-store/internal/telemetry"
)

func main() {
	if GitCommit != "" {
		telemetry.BuildVersion = GitCommit
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGTERM, syscall.SIGINT)

		select {
		case <-interrupt:
			klog.Info("received interrupt signal")
			cancel()
		case <-ctx.Done():
		}

		signal.Stop(interrupt)
	}()

	app := &cli.App{
		Name:        "hibpstore",
		Version:     GitCommit,
		Description: "Download the Have I Been Pwned password-hash corpus and serve membership queries from a sorted on-disk store.",
		Flags:       newKlogFlagSet(),
		Commands: []*cli.Command{
			newCmdIngest(),
			newCmdQuery(),
			newCmdStats(),
			newCmdVersion(),
		},
	}

	sort.Sort(cli.FlagsByName(app.Flags))
	sort.Sort(cli.CommandsByName(app.Commands))

	if err := app.RunContext(ctx, os.Args); err != nil {
		klog.Exit(err)
	}
}
