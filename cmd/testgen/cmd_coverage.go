package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"testgen/internal/coverage"
	"testgen/internal/gate"
)

var (
	coverageFormat    string
	coverageReport    string
	coverageThreshold float64
	packageJSON       string
	badgeOut          string
)

var coverageCmd = &cobra.Command{
	Use:   "coverage",
	Short: "Inspect coverage reports",
}

var coverageCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Fail when a coverage report is below its threshold",
	Long: `Parses a coverage.py Cobertura XML or a jest coverage-summary.json and
compares it to the threshold at two-decimal precision.

For cobertura the threshold applies to the combined line and branch total.
For istanbul it applies to every metric; with --package-json the manifest
thresholds apply too and the stricter value wins in CI.`,
	RunE: runCoverageCheck,
}

var coverageBadgeCmd = &cobra.Command{
	Use:   "badge",
	Short: "Render an SVG coverage badge from a report",
	RunE:  runCoverageBadge,
}

func init() {
	for _, c := range []*cobra.Command{coverageCheckCmd, coverageBadgeCmd} {
		c.Flags().StringVar(&coverageFormat, "format", coverage.FormatCobertura, "Report format: cobertura or istanbul")
		c.Flags().StringVar(&coverageReport, "report", "coverage.xml", "Path to the coverage report")
	}
	coverageCheckCmd.Flags().Float64Var(&coverageThreshold, "threshold", 90, "Minimum coverage percentage")
	coverageCheckCmd.Flags().StringVar(&packageJSON, "package-json", "", "package.json with jest.coverageThreshold (istanbul only)")
	coverageBadgeCmd.Flags().StringVarP(&badgeOut, "output", "o", coverage.BadgeFile, "Badge output path")

	coverageCmd.AddCommand(coverageCheckCmd, coverageBadgeCmd)
}

func loadSummary() (*coverage.Summary, error) {
	f, err := os.Open(coverageReport)
	if err != nil {
		return nil, fmt.Errorf("open coverage report: %w", err)
	}
	defer f.Close()

	switch coverageFormat {
	case coverage.FormatCobertura:
		return coverage.ParseCobertura(f)
	case coverage.FormatIstanbul:
		return coverage.ParseIstanbul(f)
	default:
		return nil, fmt.Errorf("unknown coverage format %q", coverageFormat)
	}
}

func runCoverageCheck(cmd *cobra.Command, args []string) error {
	summary, err := loadSummary()
	if err != nil {
		return err
	}

	thresholds := coverage.Uniform(coverageThreshold, coverage.Total)
	if coverageFormat == coverage.FormatIstanbul {
		thresholds = coverage.Uniform(coverageThreshold, coverage.Metrics...)
		if packageJSON != "" {
			manifest, err := coverage.ManifestThresholds(packageJSON)
			if err != nil {
				return err
			}
			thresholds = coverage.Effective(manifest, thresholds, cfg.CIConfig.Enabled)
		}
	}

	for name, req := range thresholds {
		fmt.Fprintf(cmd.OutOrStdout(), "%-10s %6.2f%% (required %.2f%%)\n", name, summary.Percent(name), req)
	}
	if err := coverage.Check(summary, thresholds); err != nil {
		code := 1
		if coverageFormat == coverage.FormatCobertura {
			code = 2
		}
		return &gate.StageError{Gate: "coverage", Stage: "check", Kind: gate.FailureCoverageShortfall, ExitCode: code, Err: err}
	}
	return nil
}

func runCoverageBadge(cmd *cobra.Command, args []string) error {
	summary, err := loadSummary()
	if err != nil {
		return err
	}

	pct := summary.Percent(coverage.Lines)
	if coverageFormat == coverage.FormatCobertura {
		pct = summary.Percent(coverage.Total)
	}

	svg, err := coverage.Badge(pct)
	if err != nil {
		return err
	}
	if err := os.WriteFile(badgeOut, svg, 0o644); err != nil {
		return fmt.Errorf("write badge: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%.2f%%)\n", badgeOut, pct)
	return nil
}
