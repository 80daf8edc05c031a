package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/danieljhkim/stencil/internal/config"
	"github.com/danieljhkim/stencil/internal/ctxlog"
	"github.com/danieljhkim/stencil/internal/engine"
	"github.com/danieljhkim/stencil/internal/fsops"
	"github.com/danieljhkim/stencil/internal/hash"
	"github.com/danieljhkim/stencil/internal/packs"
)

// globalOptions holds the persistent flags shared by every command. A flag
// only overrides the config file and environment when it was set.
type globalOptions struct {
	configPath string
	specPath   string
	packsDir   string
	packs      []string
	target     string
	logLevel   string
	logFormat  string
}

func addGlobalFlags(fs *pflag.FlagSet, o *globalOptions) {
	fs.StringVar(&o.configPath, "config", "", "Config file (default: ./"+config.DefaultFile+" when present)")
	fs.StringVar(&o.specPath, "spec", "", "Spec file, YAML or JSON")
	fs.StringVar(&o.packsDir, "packs-dir", "", "Project pack directory")
	fs.StringSliceVarP(&o.packs, "pack", "p", nil, "Pack to render (repeatable; base and dependencies are added)")
	fs.StringVarP(&o.target, "target", "C", "", "Project root the output is rendered for")
	fs.StringVar(&o.logLevel, "log-level", "", "Log level: debug, info, warn or error")
	fs.StringVar(&o.logFormat, "log-format", "", "Log format: text or json")
}

// loadConfig layers the config file, the environment and the flags that
// were set on cmd.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(globals.configPath)
	if err != nil {
		return nil, err
	}
	cfg.ApplyEnv(os.Getenv)

	flags := cmd.Flags()
	if flags.Changed("spec") {
		cfg.Spec = globals.specPath
	}
	if flags.Changed("packs-dir") {
		cfg.PacksDir = globals.packsDir
	}
	if flags.Changed("pack") {
		cfg.Packs = globals.packs
	}
	if flags.Changed("target") {
		cfg.Target = globals.target
	}
	if flags.Changed("log-level") {
		cfg.Log.Level = globals.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Log.Format = globals.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newEngine creates a new engine with real implementations of all dependencies.
// Project packs shadow user-level packs of the same name.
func newEngine(cfg *config.Config) (*engine.Engine, error) {
	fs := fsops.NewRealFS()
	repos := []packs.PackRepo{packs.NewFilePackRepo(fs, cfg.PacksDir)}

	paths, err := config.DefaultPaths()
	if err != nil {
		return nil, fmt.Errorf("failed to get config paths: %w", err)
	}
	if paths.Packs != cfg.PacksDir {
		repos = append(repos, packs.NewFilePackRepo(fs, paths.Packs))
	}

	return engine.New(packs.NewMultiPackRepo(repos...), fs, hash.NewBLAKE3Hasher()), nil
}

// setup loads configuration and returns a logging context and an engine.
func setup(cmd *cobra.Command) (context.Context, *engine.Engine, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	eng, err := newEngine(cfg)
	if err != nil {
		return nil, nil, nil, err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	logger := ctxlog.New(cfg.Log.Level, cfg.Log.Format, cmd.ErrOrStderr())
	return ctxlog.WithLogger(ctx, logger), eng, cfg, nil
}

// validateRun loads config and runs Engine.Validate, the first step of
// every pipeline command.
func validateRun(cmd *cobra.Command) (context.Context, *engine.Engine, *engine.Run, error) {
	ctx, eng, cfg, err := setup(cmd)
	if err != nil {
		return nil, nil, nil, err
	}

	run, err := eng.Validate(ctx, &engine.ValidateRequest{
		Packs:    cfg.Packs,
		SpecPath: cfg.Spec,
		Target:   cfg.Target,
	})
	if err != nil {
		return nil, nil, nil, err
	}
	return ctx, eng, run, nil
}

// formatJSON formats a value as JSON.
func formatJSON(v interface{}) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// formatError formats an error for display.
func formatError(err error) string {
	return errorColor.Sprintf("Error: %v", err)
}

// outputJSON outputs a value as JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// ErrorMessage returns what main should print for an Execute error. Drift
// reported through --exit-code has already been printed.
func ErrorMessage(err error) string {
	if err == nil || errors.Is(err, engine.ErrDrift) {
		return ""
	}
	return formatError(err)
}

// ExitCode maps an Execute error to a process exit status: 1 for drift
// found with --exit-code, 2 for every other failure.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, engine.ErrDrift):
		return 1
	default:
		return 2
	}
}
