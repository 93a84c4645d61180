package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/SAP-F-2025/learning-path-service/internal/config"
	"github.com/SAP-F-2025/learning-path-service/pkg"
)

var (
	verbose    bool
	jsonOutput bool
)

var rootCmd = &cobra.Command{
	Use:   "learnctl",
	Short: "Operator tool for the learning path service",
	Long: `learnctl runs maintenance tasks against the learning path database:
recomputing module assignments, inspecting exam sessions, importing the
module catalog and managing the tier table.`,
	SilenceUsage: true,
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log at debug level")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "print results as JSON")
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openApp connects to the service database without the background tier refresh.
func openApp(ctx context.Context) (*pkg.App, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}
	noRefresh := time.Duration(0)
	return pkg.NewApp(ctx, cfg, newLogger(), pkg.AppOptions{TierRefreshInterval: &noRefresh})
}

func closeApp(app *pkg.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := app.Close(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "close:", err)
	}
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
