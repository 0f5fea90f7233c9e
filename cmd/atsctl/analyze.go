package main

import (
	"errors"
	"fmt"
	"os"

	"ats-scorer-go/internal/parser"
	"ats-scorer-go/internal/processor"

	"github.com/spf13/cobra"
)

var analyzeFlags struct {
	jd      string
	jdFile  string
	jdText  string
	fresher string
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze RESUME",
	Short: "Score a résumé file against a job description",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in, err := analyzeInput(args[0])
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service.Analyze(cmd.Context(), in)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res)
	},
}

var preprocessCmd = &cobra.Command{
	Use:   "preprocess RESUME",
	Short: "Print the sections, skills and contact details found in a résumé",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.Service.Preprocess(cmd.Context(), doc)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), res.Result)
	},
}

var extractCmd = &cobra.Command{
	Use:   "extract RESUME",
	Short: "Print the cleaned text extracted from a résumé file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		doc, err := readDocument(args[0])
		if err != nil {
			return err
		}
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		text, err := a.Extractor.Extract(cmd.Context(), doc)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), parser.CleanText(text))
		return err
	},
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.jd, "jd", "", "job description file name in the configured JD folder")
	f.StringVar(&analyzeFlags.jdFile, "jd-file", "", "path to a job description text file")
	f.StringVar(&analyzeFlags.jdText, "jd-text", "", "job description text")
	f.StringVar(&analyzeFlags.fresher, "fresher", "", "force the fresher label (true or false)")

	rootCmd.AddCommand(analyzeCmd, preprocessCmd, extractCmd)
}

func analyzeInput(resumePath string) (processor.AnalyzeInput, error) {
	doc, err := readDocument(resumePath)
	if err != nil {
		return processor.AnalyzeInput{}, err
	}
	in := processor.AnalyzeInput{Document: doc, JDName: analyzeFlags.jd, JDText: analyzeFlags.jdText}
	if analyzeFlags.jdFile != "" {
		if in.JDText != "" {
			return in, errors.New("use either --jd-file or --jd-text")
		}
		data, err := os.ReadFile(analyzeFlags.jdFile)
		if err != nil {
			return in, fmt.Errorf("read job description: %w", err)
		}
		in.JDText = string(data)
	}
	if analyzeFlags.fresher != "" {
		fresher, err := parseFresher(analyzeFlags.fresher)
		if err != nil {
			return in, err
		}
		in.Fresher = &fresher
	}
	return in, nil
}

func parseFresher(v string) (bool, error) {
	switch v {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid --fresher value %q", v)
}
