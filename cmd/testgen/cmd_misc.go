package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"testgen/internal/compose"
	"testgen/internal/health"
	"testgen/internal/ui"
)

var (
	composeOut string
	uiOut      string
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Print the docker-compose definition of the datastores",
	RunE: func(cmd *cobra.Command, args []string) error {
		project := compose.Datastores(health.Policy{
			Interval: cfg.HealthConfig.Interval,
			Timeout:  cfg.HealthConfig.Timeout,
			Retries:  cfg.HealthConfig.Retries,
		})
		data, err := compose.Render(project)
		if err != nil {
			return err
		}
		if composeOut == "" || composeOut == "-" {
			_, err = cmd.OutOrStdout().Write(data)
			return err
		}
		if err := os.WriteFile(composeOut, data, 0o644); err != nil {
			return fmt.Errorf("write compose file: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", composeOut)
		return nil
	},
}

var uiCmd = &cobra.Command{
	Use:   "ui",
	Short: "Placeholder frontend",
}

var uiBuildCmd = &cobra.Command{
	Use:   "build",
	Short: "Write the static placeholder bundle",
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := ui.Build(uiOut)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

func init() {
	composeCmd.Flags().StringVarP(&composeOut, "output", "o", "-", "Output file, - for stdout")
	uiBuildCmd.Flags().StringVarP(&uiOut, "output", "o", "build", "Output directory")
	uiCmd.AddCommand(uiBuildCmd)
}
