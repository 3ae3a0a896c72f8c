package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kbukum/recpipe/worker"
)

// newWorkerCmd is the child side of process mode. Frames arrive on stdin
// and leave on stdout, so nothing else may write there; logs go to stderr
// as JSON for the parent to forward.
func newWorkerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "worker",
		Short:  "Serve pipeline queries over stdin/stdout (started by the pool)",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			level := os.Getenv(worker.EnvLogLevel)
			if level == "" {
				level = "info"
			}
			return worker.RunChild(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr(),
				worker.RegistryBuilder(newRegistry()), level)
		},
	}
}
