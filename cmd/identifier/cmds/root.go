package cmds

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/testsmith/testsmith/internal/generation"
	"github.com/testsmith/testsmith/internal/identifier"
)

var (
	language  identifier.Language
	framework string
	paths     []string
)

// Report describes how tests would be generated for one source file.
type Report struct {
	Path         string `json:"path"`
	Language     string `json:"language"`
	Supported    bool   `json:"supported"`
	Framework    string `json:"framework,omitempty"`
	TestFilename string `json:"testFilename,omitempty"`
	RunCommand   string `json:"runCommand,omitempty"`
	// Only set when --language was given
	Matches *bool `json:"matches,omitempty"`
}

var rootCmd = &cobra.Command{
	Use:           "identifier",
	Short:         "Identifies the language and test framework of source files",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ok, err := run(cmd.OutOrStdout(), paths, language, framework)
		if err != nil {
			return err
		}
		if !ok {
			return ExitErrorWrap(1, nil)
		}
		return nil
	},
}

// run writes one JSON report per path and reports whether every file is
// supported and, when expected is set, of the expected language.
func run(out io.Writer, paths []string, expected identifier.Language, preferred string) (bool, error) {
	enc := json.NewEncoder(out)
	ok := true

	for _, p := range paths {
		content, err := os.ReadFile(p)
		if err != nil {
			return false, fmt.Errorf("failed to read %s: %w", p, err)
		}

		report := identify(p, content, expected, preferred)
		if !report.Supported || (report.Matches != nil && !*report.Matches) {
			ok = false
		}

		if err := enc.Encode(report); err != nil {
			return false, fmt.Errorf("failed to write report: %w", err)
		}
	}

	return ok, nil
}

func identify(p string, content []byte, expected identifier.Language, preferred string) Report {
	found := identifier.GetLanguage(p, content)
	report := Report{
		Path:      p,
		Language:  found.String(),
		Supported: found != identifier.LanguageInvalid,
	}

	if expected != identifier.LanguageInvalid {
		matches := found == expected
		report.Matches = &matches
	}

	if !report.Supported {
		return report
	}

	f := generation.ResolveFramework(found.String(), preferred)
	report.Framework = f.String()
	report.TestFilename = generation.TestFilename(p, f, found.String())
	report.RunCommand = f.RunCommand()
	return report
}

func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.Flags().Var(&language, "language", "Expected language, exit non-zero when a file differs")
	rootCmd.Flags().StringVar(&framework, "framework", "", "Preferred test framework")
	rootCmd.Flags().StringArrayVar(&paths, "path", nil, "Path to file to identify, may be repeated")
	if err := rootCmd.MarkFlagRequired("path"); err != nil {
		panic("Internal error contact a contributor [path-flag-required]")
	}
}
