package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	opts "github.com/goliatone/go-optstore"
	"github.com/goliatone/go-optstore/internal/logger"
)

const version = "0.1.0"

type app struct {
	stdout  io.Writer
	stderr  io.Writer
	environ map[string]string

	flags    Settings
	settings Settings
	log      *logger.Logger
	ran      bool
}

// Run executes optsctl with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	return run(ctx, args, stdout, stderr, environMap(os.Environ()))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer, environ map[string]string) int {
	a := &app{stdout: stdout, stderr: stderr, environ: environ}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Close()
	}
	if err != nil {
		fmt.Fprintf(stderr, "optsctl: %v\n", err)
	}
	return exitCode(err, a.ran)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "optsctl",
		Short:         "Inspect and edit layered configuration",
		Long:          "optsctl loads the built-in defaults, merges an optional override file and environment over them, and answers questions about the result.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			settings, err := newSettingsBuilder().
				withFlags(a.flags).
				withEnv(a.environ).
				withDefaults().
				build()
			if err != nil {
				return err
			}
			a.settings = settings
			a.log = logger.New(logger.Config{
				Role:  "optsctl",
				Level: settings.LogLevel,
				File:  settings.LogFile,
			})
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.flags.Config, "config", "c", "", "override file merged over the defaults")
	pf.StringVar(&a.flags.EnvPrefix, "env-prefix", "", "read PREFIX_SECTION__KEY variables as an extra layer")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.StringVar(&a.flags.LogFile, "log-file", "", "write logs to a rotating file instead of stderr")
	pf.StringVarP(&a.flags.Format, "format", "f", "", "output format for dump (yaml, json, toml)")

	root.AddCommand(
		a.getCommand(),
		a.setCommand(),
		a.flatCommand(),
		a.sectionsCommand(),
		a.traceCommand(),
		a.evalCommand(),
		a.dumpCommand(),
		a.schemaCommand(),
	)
	return root
}

// action marks that argument parsing succeeded, so later errors are runtime
// failures.
func (a *app) action(fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a.ran = true
		return fn(cmd, args)
	}
}

func (a *app) open(ctx context.Context, extra ...opts.Option) (*opts.Options, error) {
	options := []opts.Option{opts.WithLogger(a.log.Logger)}
	if a.settings.Config != "" {
		options = append(options, opts.WithOverrideFile(a.settings.Config))
	}
	if a.settings.EnvPrefix != "" {
		options = append(options, opts.WithEnv(a.settings.EnvPrefix))
	}
	options = append(options, extra...)
	return opts.NewWithContext(ctx, options...)
}

func environMap(environ []string) map[string]string {
	out := make(map[string]string, len(environ))
	for _, entry := range environ {
		key, value, ok := strings.Cut(entry, "=")
		if ok {
			out[key] = value
		}
	}
	return out
}
