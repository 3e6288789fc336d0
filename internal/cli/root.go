// Package cli implements the ipanalyzer command line.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"ipanalyzer/internal/app"
	"ipanalyzer/internal/config"
	"ipanalyzer/internal/logging"
)

// Process exit codes. Per-IP enrichment failures never change the exit code.
const (
	ExitOK    = 0
	ExitFatal = 1
)

// Deps are the collaborators of the command tree, replaceable in tests.
type Deps struct {
	// LoadConfig loads configuration; envFile is empty unless --env-file was given.
	LoadConfig func(envFile string) (*config.Config, error)
	BuildApp   func(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...app.Option) (*app.App, error)
	Stdout     io.Writer
	Stderr     io.Writer
}

// DefaultDeps wires the real configuration loader and application.
func DefaultDeps() Deps {
	return Deps{
		LoadConfig: func(envFile string) (*config.Config, error) {
			if envFile == "" {
				return config.Load()
			}
			return config.LoadFrom(envFile)
		},
		BuildApp: app.New,
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
	}
}

type globalFlags struct {
	envFile  string
	logLevel string
}

type runner struct {
	deps  Deps
	flags globalFlags
}

// NewRootCommand builds the command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	r := &runner{deps: deps}

	root := &cobra.Command{
		Use:   config.ApplicationName,
		Short: "Extract IP addresses and timestamps from text and enrich them with ISP and location data",
		Long: `ipanalyzer sends a text source (txt, log, csv or docx) to a language model,
normalizes every timestamp it finds to UTC and a target zone, looks up each
public IP address and writes the results as text, CSV, JSON, XLSX or PDF.`,
		Version:       config.ApplicationVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(deps.Stdout)
	root.SetErr(deps.Stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&r.flags.envFile, "env-file", "", "credential file to load instead of ./.env")
	pf.StringVar(&r.flags.logLevel, "log-level", "", "override log.level (debug, info, warn, error)")

	root.AddCommand(newAnalyzeCommand(r), newCheckCommand(r))
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute(ctx context.Context, deps Deps, args []string) int {
	root := NewRootCommand(deps)
	root.SetArgs(args)
	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(deps.Stderr, "Error: %v\n", err)
		return ExitFatal
	}
	return ExitOK
}

// setup loads configuration and builds the logger.
func (r *runner) setup() (*config.Config, zerolog.Logger, error) {
	cfg, err := r.deps.LoadConfig(r.flags.envFile)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}
	if r.flags.logLevel != "" {
		cfg.Log.Level = r.flags.logLevel
	}
	return cfg, logging.NewWithWriter(cfg.Log, r.deps.Stderr), nil
}
