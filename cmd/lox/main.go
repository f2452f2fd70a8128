// Command lox runs Lox scripts and hosts an interactive prompt.
//
// Usage:
//
//	lox [script]                     Run a script, or start the REPL with no argument
//	lox run    <file>                Run a source file
//	lox repl                         Start interactive REPL
//	lox tokens [--json] <file>       Print tokens
//	lox parse  [--json|--repr] <file> Print the syntax tree
//
// Global flags (before the command): --config/-c PATH, --trace.
package main

import (
	"fmt"
	"log/slog"
	"lox-lang/internal/config"
	"lox-lang/internal/driver"
	"lox-lang/internal/runtime"
	"os"

	"github.com/urfave/cli/v2"
	"github.com/ztrue/tracerr"
)

// Exit statuses not produced by driver.Status.
const (
	exitUsage  = 64
	exitIO     = 74
	exitConfig = 78
)

// options is what every command needs after global flags are read.
type options struct {
	cfg    *config.Config
	logger *slog.Logger
	trace  bool
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	opts := &options{}

	return &cli.App{
		Name:      "lox",
		Usage:     "Lox tree-walking interpreter",
		ArgsUsage: "[script]",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load settings from `PATH` instead of ~/.loxrc.yaml",
			},
			&cli.BoolFlag{
				Name:  "trace",
				Usage: "log interpreter activity and error stacks to stderr",
			},
		},
		Before: func(c *cli.Context) error {
			return opts.load(c)
		},
		Action: func(c *cli.Context) error {
			switch c.Args().Len() {
			case 0:
				return cmdRepl(opts)
			case 1:
				return cmdRun(opts, c.Args().First())
			default:
				return cli.Exit("usage: lox [script]", exitUsage)
			}
		},
		Commands: []*cli.Command{
			{
				Name:      "run",
				Usage:     "run a source file",
				ArgsUsage: "<file>",
				Action: func(c *cli.Context) error {
					path, err := fileArg(c)
					if err != nil {
						return err
					}
					return cmdRun(opts, path)
				},
			},
			{
				Name:  "repl",
				Usage: "start an interactive session",
				Action: func(c *cli.Context) error {
					return cmdRepl(opts)
				},
			},
			{
				Name:      "tokens",
				Usage:     "print the token stream of a file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
				},
				Action: func(c *cli.Context) error {
					path, err := fileArg(c)
					if err != nil {
						return err
					}
					source, err := readSource(opts, path)
					if err != nil {
						return err
					}
					return cmdTokens(os.Stdout, os.Stderr, source, path, c.Bool("json"))
				},
			},
			{
				Name:      "parse",
				Usage:     "print the syntax tree of a file",
				ArgsUsage: "<file>",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "json", Usage: "print as JSON"},
					&cli.BoolFlag{Name: "repr", Usage: "print as Go values"},
				},
				Action: func(c *cli.Context) error {
					path, err := fileArg(c)
					if err != nil {
						return err
					}
					source, err := readSource(opts, path)
					if err != nil {
						return err
					}
					mode := parseText
					switch {
					case c.Bool("json") && c.Bool("repr"):
						return cli.Exit("error: --json and --repr are mutually exclusive", exitUsage)
					case c.Bool("json"):
						mode = parseJSON
					case c.Bool("repr"):
						mode = parseRepr
					}
					return cmdParse(os.Stdout, os.Stderr, source, path, mode)
				},
			},
		},
	}
}

// load reads the config file and sets up tracing.
func (o *options) load(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("error: %v", err), exitConfig)
	}
	o.cfg = cfg
	o.trace = c.Bool("trace") || cfg.Runtime.Trace

	o.logger = slog.New(slog.DiscardHandler)
	if o.trace {
		o.logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		o.logger.Debug("config loaded",
			slog.String("path", cfg.Path),
			slog.Int("max_call_depth", cfg.Runtime.MaxCallDepth))
	}
	return nil
}

func (o *options) newSession() *driver.Session {
	return driver.NewSession(os.Stdout, os.Stderr, o.logger, runtimeOptions(o)...)
}

func runtimeOptions(o *options) []runtime.Option {
	return []runtime.Option{runtime.WithMaxCallDepth(o.cfg.Runtime.MaxCallDepth)}
}

func fileArg(c *cli.Context) (string, error) {
	if c.Args().Len() != 1 {
		return "", cli.Exit(fmt.Sprintf("usage: lox %s <file>", c.Command.Name), exitUsage)
	}
	return c.Args().First(), nil
}

func readSource(opts *options, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		err = tracerr.Wrap(err)
		if opts.trace {
			return "", cli.Exit(tracerr.Sprint(err), exitIO)
		}
		return "", cli.Exit(fmt.Sprintf("error: cannot read file %s: %v", path, tracerr.Unwrap(err)), exitIO)
	}
	return string(data), nil
}

// ---- run command ----

func cmdRun(opts *options, path string) error {
	source, err := readSource(opts, path)
	if err != nil {
		return err
	}
	status := opts.newSession().Run(source, path)
	if status != driver.StatusOK {
		return cli.Exit("", status.ExitCode())
	}
	return nil
}
