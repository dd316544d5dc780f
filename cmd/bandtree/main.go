// Command bandtree serves and inspects banding decision trees.
package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

const (
	Version = "0.1.0"
	appName = "bandtree"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   appName,
		Short: "Banding decision tree editor",
		Long: `bandtree edits yes/no decision trees whose leaves assign bands.

Run "bandtree serve" for the HTTP editing API, or use the file commands
(validate, show, convert, bands) on exported trees.`,
		SilenceUsage: true,
	}

	cmd.AddCommand(
		serveCmd(),
		validateCmd(),
		showCmd(),
		convertCmd(),
		bandsCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print version information",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
			},
		},
	)
	return cmd
}

func setupLogging(logLevel string) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}
