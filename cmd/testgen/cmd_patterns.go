package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"testgen/internal/model"
	"testgen/internal/storage"
	"testgen/internal/storage/repository"
)

var (
	patternName     string
	patternCode     string
	patternTemplate string
)

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Manage documents in the test_patterns collection",
}

var patternsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Insert a pattern; fails when pattern_name already exists",
	RunE:  runPatternsAdd,
}

var patternsListCmd = &cobra.Command{
	Use:   "list",
	Short: "Print all patterns as JSON",
	RunE:  runPatternsList,
}

func init() {
	patternsAddCmd.Flags().StringVar(&patternName, "name", "", "Unique pattern name (required)")
	patternsAddCmd.Flags().StringVar(&patternCode, "code", "", "Code pattern")
	patternsAddCmd.Flags().StringVar(&patternTemplate, "template", "", "Test template")
	_ = patternsAddCmd.MarkFlagRequired("name")

	patternsCmd.AddCommand(patternsAddCmd, patternsListCmd)
}

func withPatterns(cmd *cobra.Command, fn func(ctx context.Context, repo *repository.PatternRepository) error) error {
	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	mg, err := storage.NewMongo(cfg.MongoDBURL, log)
	if err != nil {
		return err
	}
	defer mg.Close(context.Background())

	return fn(ctx, repository.NewPatternRepository(mg.Database(model.AppDatabase), log))
}

func runPatternsAdd(cmd *cobra.Command, args []string) error {
	return withPatterns(cmd, func(ctx context.Context, repo *repository.PatternRepository) error {
		p := &model.Pattern{PatternName: patternName, CodePattern: patternCode, TestTemplate: patternTemplate}
		if err := repo.Insert(ctx, p); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "inserted %s (%s)\n", p.PatternName, p.ID.Hex())
		return nil
	})
}

func runPatternsList(cmd *cobra.Command, args []string) error {
	return withPatterns(cmd, func(ctx context.Context, repo *repository.PatternRepository) error {
		patterns, err := repo.List(ctx)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(patterns)
	})
}
