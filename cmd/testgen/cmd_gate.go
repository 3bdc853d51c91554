package main

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"testgen/internal/artifact"
	"testgen/internal/coverage"
	"testgen/internal/gate"
	"testgen/internal/pipeline"
	"testgen/internal/release"
)

var shaFlag string

var gateCmd = &cobra.Command{
	Use:       "gate <backend|frontend>",
	Short:     "Run one quality gate",
	Long:      `Runs the stages of one gate in order and stops at the first failure. The process exits with the failing tool's exit code.`,
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{gate.Backend, gate.Frontend},
	RunE:      runGate,
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run both gates in parallel and publish the release on push to main",
	RunE:  runPipeline,
}

var releaseCmd = &cobra.Command{
	Use:   "release",
	Short: "Publish the release for a commit from stored gate artifacts",
	RunE:  runRelease,
}

func init() {
	for _, c := range []*cobra.Command{gateCmd, pipelineCmd, releaseCmd} {
		c.Flags().StringVar(&shaFlag, "sha", "", "Commit SHA (default: GITHUB_SHA)")
	}
}

func commitSHA() string {
	if shaFlag != "" {
		return shaFlag
	}
	if cfg.CIConfig.SHA != "" {
		return cfg.CIConfig.SHA
	}
	return "local"
}

// frontendThresholds пороги фронтенда: манифест, а в CI более строгое из манифеста и CI
func frontendThresholds() (coverage.Thresholds, error) {
	path := filepath.Join(repoDir, cfg.CoverageConfig.PackageJSONPath)
	manifest, err := coverage.ManifestThresholds(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn("Frontend manifest not found, using default thresholds", zap.String("path", path))
		manifest = coverage.Uniform(coverage.DefaultManifestThreshold, coverage.Metrics...)
	} else if err != nil {
		return nil, err
	}

	ci := coverage.Uniform(cfg.CoverageConfig.FrontendThreshold, coverage.Metrics...)
	return coverage.Effective(manifest, ci, cfg.CIConfig.Enabled), nil
}

// gateDefinitions гейты по умолчанию с переопределениями из --workflow
func gateDefinitions() ([]gate.Definition, error) {
	thresholds, err := frontendThresholds()
	if err != nil {
		return nil, err
	}

	defs := []gate.Definition{
		gate.BackendDefinition(cfg.CoverageConfig.BackendThreshold),
		gate.FrontendDefinition(thresholds),
	}

	if workflow == "" {
		return defs, nil
	}
	wf, err := gate.LoadWorkflow(workflow)
	if err != nil {
		return nil, err
	}
	for i := range defs {
		defs[i] = wf.Resolve(defs[i])
	}
	return defs, nil
}

func openArtifacts() (*artifact.Store, error) {
	return artifact.Open(artifact.Options{
		Dir:       cfg.ArtifactConfig.Dir,
		Retention: cfg.ArtifactConfig.Retention,
	}, log)
}

func publisher() (release.Publisher, error) {
	if cfg.CIConfig.GitHubToken == "" {
		return nil, nil
	}
	if err := cfg.ValidateRelease(); err != nil {
		return nil, err
	}
	owner, repo, err := cfg.CIConfig.OwnerRepo()
	if err != nil {
		return nil, err
	}
	return release.NewGitHubPublisher(cfg.CIConfig.GitHubToken, owner, repo, log), nil
}

func runGate(cmd *cobra.Command, args []string) error {
	defs, err := gateDefinitions()
	if err != nil {
		return err
	}

	var def *gate.Definition
	for i := range defs {
		if defs[i].Name == args[0] {
			def = &defs[i]
		}
	}
	if def == nil {
		return fmt.Errorf("unknown gate %q", args[0])
	}

	store, err := openArtifacts()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	runner := gate.NewRunner(gate.NewExecExecutor(), store, prom, log, repoDir)
	result, err := runner.Run(ctx, *def, commitSHA())
	if result != nil {
		printResult(cmd.OutOrStdout(), result)
	}
	return err
}

func runPipeline(cmd *cobra.Command, args []string) error {
	defs, err := gateDefinitions()
	if err != nil {
		return err
	}

	store, err := openArtifacts()
	if err != nil {
		return err
	}
	defer store.Close()

	pub, err := publisher()
	if err != nil {
		return err
	}

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	runner := gate.NewRunner(gate.NewExecExecutor(), store, prom, log, repoDir)
	ev := pipeline.Event{Name: cfg.CIConfig.EventName, Ref: cfg.CIConfig.Ref, SHA: commitSHA()}

	out, err := pipeline.New(runner, defs, store, pub, prom, log).Run(ctx, ev)
	if out != nil {
		for _, r := range out.Results {
			if r != nil {
				printResult(cmd.OutOrStdout(), r)
			}
		}
		switch {
		case out.Released:
			fmt.Fprintf(cmd.OutOrStdout(), "released %s %s\n", release.Name(ev.SHA), out.Published.URL)
		case out.Reason != "":
			fmt.Fprintf(cmd.OutOrStdout(), "no release: %s\n", out.Reason)
		}
	}
	return err
}

func runRelease(cmd *cobra.Command, args []string) error {
	if err := cfg.ValidateRelease(); err != nil {
		return err
	}
	pub, err := publisher()
	if err != nil {
		return err
	}

	store, err := openArtifacts()
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := commandContext(cmd.Context())
	defer cancel()

	sha := commitSHA()
	rel, err := release.Build(store, sha, gate.Backend, gate.Backend, gate.Frontend)
	if err != nil {
		return err
	}
	published, err := pub.Publish(ctx, rel)
	if err != nil {
		prom.RecordRelease(false)
		return err
	}
	prom.RecordRelease(true)

	fmt.Fprintf(cmd.OutOrStdout(), "released %s %s\n", rel.Name, published.URL)
	return nil
}

func printResult(w io.Writer, r *gate.Result) {
	fmt.Fprintf(w, "%s: %s (%s)\n", r.Gate, r.Status, r.Duration.Round(1e6))
	for _, s := range r.Stages {
		line := fmt.Sprintf("  %-18s %s", s.Name, s.Status)
		if s.Err != nil {
			line += ": " + s.Err.Error()
		}
		fmt.Fprintln(w, line)
	}
}
