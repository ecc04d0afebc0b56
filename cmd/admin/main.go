package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "admin",
	Short: "Operator tooling for the liveroom backend",
	Long: `admin works directly against the durable store and, when configured,
Redis and LiveKit, so its effects reach connected clients on every instance.

Examples:
  admin purge 3f0e8a52-6a51-4d7e-9a43-0c1f7f4b2d10
  admin end 3f0e8a52-6a51-4d7e-9a43-0c1f7f4b2d10
  admin recordings 3f0e8a52-6a51-4d7e-9a43-0c1f7f4b2d10`,
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(purgeCmd)
	rootCmd.AddCommand(endCmd)
	rootCmd.AddCommand(recordingsCmd)
}
