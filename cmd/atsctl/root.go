package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"ats-scorer-go/internal/app"
	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/logger"

	"github.com/spf13/cobra"
)

const name = "atsctl"

// Actual version can be specified in build command.
var version = "dev"

var (
	cfgFile string
	debug   bool

	rootCmd = &cobra.Command{
		Use:           name,
		Short:         "atsctl scores résumés against job descriptions from the command line",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is the first config.yaml on the search path)")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "verbose/debug output")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version: %s\n", name, version)
		},
	})
}

// loadConfig reads the configuration and sends logs to stderr so stdout
// carries only results.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Logger.Level = "debug"
	}
	if err := logger.InitWithWriter(cfg.Logger, os.Stderr); err != nil {
		return nil, err
	}
	return cfg, nil
}

// buildApp wires the pipeline without storage backends.
func buildApp(ctx context.Context) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return app.Build(ctx, cfg, nil, logger.Component(name))
}

func readDocument(path string) (ats.RawDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return ats.RawDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	base := filepath.Base(path)
	return ats.RawDocument{Name: base, Format: ats.DetectFormat(base, ""), Data: data}, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
