package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

var (
	logDebug  bool
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "teamalert",
	Short: "Show the health of CI jobs on Hue lights",
	Long: "teamalert watches groups of Jenkins jobs and drives a light per group: " +
		"white when every job is fine, red on unclaimed failures, orange when every failure is claimed.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return setupLogging()
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("teamalert " + version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&logDebug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "json", "Log format (json|text)")
	rootCmd.AddCommand(versionCmd, runCmd, checkCmd, lightsCmd, jobsCmd, historyCmd)
}

func setupLogging() error {
	level := slog.LevelInfo
	if logDebug {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}

	var h slog.Handler
	switch logFormat {
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	default:
		return fmt.Errorf("--log-format must be json or text, got %q", logFormat)
	}
	slog.SetDefault(slog.New(h))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
