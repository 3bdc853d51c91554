package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	artifactsGate string
	exportDir     string
)

var artifactsCmd = &cobra.Command{
	Use:   "artifacts",
	Short: "Inspect gate artifacts stored for a commit",
}

var artifactsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List artifacts of a commit",
	RunE:  runArtifactsList,
}

var artifactsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write artifacts of a commit to <dir>/<gate>/<name>",
	RunE:  runArtifactsExport,
}

func init() {
	for _, c := range []*cobra.Command{artifactsListCmd, artifactsExportCmd} {
		c.Flags().StringVar(&shaFlag, "sha", "", "Commit SHA (default: GITHUB_SHA)")
	}
	artifactsListCmd.Flags().StringVar(&artifactsGate, "gate", "", "Only artifacts of this gate")
	artifactsExportCmd.Flags().StringVarP(&exportDir, "output", "o", "artifacts", "Output directory")

	artifactsCmd.AddCommand(artifactsListCmd, artifactsExportCmd)
}

func runArtifactsList(cmd *cobra.Command, args []string) error {
	store, err := openArtifacts()
	if err != nil {
		return err
	}
	defer store.Close()

	records, err := store.List(commitSHA(), artifactsGate)
	if err != nil {
		return err
	}
	for _, rec := range records {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d bytes\t%s\n", rec.Key(), len(rec.Data), rec.CreatedAt.Format("2006-01-02 15:04:05"))
	}
	return nil
}

func runArtifactsExport(cmd *cobra.Command, args []string) error {
	store, err := openArtifacts()
	if err != nil {
		return err
	}
	defer store.Close()

	paths, err := store.Export(commitSHA(), exportDir)
	if err != nil {
		return err
	}
	for _, p := range paths {
		fmt.Fprintln(cmd.OutOrStdout(), p)
	}
	return nil
}
