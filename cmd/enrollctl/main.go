package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/noah-isme/enrollment-ledger/internal/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand()
	if err := root.ExecuteContext(ctx); err != nil {
		format, _ := root.PersistentFlags().GetString("format")
		if format != "json" {
			format = "text"
		}
		out := &cli.OutputFormatter{Format: format, Writer: os.Stderr}
		out.Error(err)
		stop()
		os.Exit(cli.GetExitCode(err))
	}
}
