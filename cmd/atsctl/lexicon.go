package main

import (
	"fmt"
	"io"
	"os"

	"ats-scorer-go/internal/ats"
	"ats-scorer-go/internal/config"
	"ats-scorer-go/internal/constants"
	"ats-scorer-go/internal/corpus"
	"ats-scorer-go/internal/jobdesc"
	"ats-scorer-go/internal/logger"

	"github.com/spf13/cobra"
)

var lexiconFlags struct {
	jdFolder string
	out      string
	minFreq  int
}

var buildLexiconCmd = &cobra.Command{
	Use:   "build-lexicon",
	Short: "Extract keywords from every job description and write the keyword corpus CSV",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		folder := lexiconFlags.jdFolder
		if folder == "" {
			folder = cfg.Scoring.JDFolder
		}
		builder := corpus.NewBuilder(jobdesc.NewStore(folder), ats.DefaultTables(),
			corpus.WithMinFreq(lexiconFlags.minFreq),
			corpus.WithLogger(logger.Component("corpus")),
		)
		rows, err := builder.Build(cmd.Context())
		if err != nil {
			return err
		}

		var w io.Writer = cmd.OutOrStdout()
		if lexiconFlags.out != "-" {
			f, err := os.Create(lexiconFlags.out)
			if err != nil {
				return fmt.Errorf("create %s: %w", lexiconFlags.out, err)
			}
			defer f.Close()
			w = f
		}
		return corpus.WriteCSV(w, rows)
	},
}

var configInitCmd = &cobra.Command{
	Use:   "config-init [PATH]",
	Short: "Write a sample configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := "config.yaml"
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.CreateSampleConfig(path); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sample config written to %s\n", path)
		return nil
	},
}

func init() {
	f := buildLexiconCmd.Flags()
	f.StringVar(&lexiconFlags.jdFolder, "jd-folder", "", "folder of job descriptions (default from config)")
	f.StringVarP(&lexiconFlags.out, "out", "o", constants.DefaultLexiconFile, `output CSV path, "-" for stdout`)
	f.IntVar(&lexiconFlags.minFreq, "min-freq", 1, "minimum occurrences for a keyword")

	rootCmd.AddCommand(buildLexiconCmd, configInitCmd)
}
