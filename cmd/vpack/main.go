// vpack converts, inspects and stores VelocyPack documents.
//
// Usage:
//
//	vpack <command> [flags] [args]
//
// Run "vpack help" for the list of commands and environment variables.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/pflag"

	"github.com/holmberd/go-vpack/config"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg, err := config.Load(nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(2)
	}
	a := &app{
		cfg:    cfg,
		logger: cfg.Logger(os.Stderr),
		stdin:  os.Stdin,
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	if err := a.run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

var errUsage = errors.New("usage error")

type command struct {
	name    string
	args    string
	summary string
	run     func(a *app, ctx context.Context, fs *pflag.FlagSet, args []string) error
	flags   func(fs *pflag.FlagSet)
}

var commands []command

func init() {
	commands = []command{
		{"encode", "", "read JSON (comments allowed) from stdin and write VelocyPack", runEncode, encodeFlags},
		{"decode", "", "read VelocyPack from stdin and write JSON", runDecode, jsonFlags},
		{"get", "<path>...", "print the value at an attribute path of a VelocyPack document", runGet, jsonFlags},
		{"stats", "", "count the values of a VelocyPack document by kind", runStats, nil},
		{"convert", "", "convert a document between vpack, json, cbor and proto", runConvert, convertFlags},
		{"put", "<collection> [key]", "store a JSON document from stdin in Redis", runPut, storeFlags},
		{"fetch", "<collection> <key> [path]...", "print a stored document or one of its attributes", runFetch, fetchFlags},
	}
}

// app carries the configuration and standard streams of one invocation.
type app struct {
	cfg    *config.C
	logger *slog.Logger
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

func (a *app) run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return errUsage
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "--help" {
		a.usage()
		return nil
	}
	for _, c := range commands {
		if c.name != name {
			continue
		}
		fs := pflag.NewFlagSet(c.name, pflag.ContinueOnError)
		fs.SetOutput(a.stderr)
		fs.Usage = func() {
			fmt.Fprintf(a.stderr, "usage: vpack %s [flags] %s\n\n%s\n\nflags:\n", c.name, c.args, c.summary)
			fs.PrintDefaults()
		}
		if c.flags != nil {
			c.flags(fs)
		}
		if err := fs.Parse(args[1:]); err != nil {
			if errors.Is(err, pflag.ErrHelp) {
				return nil
			}
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		a.logger.Debug("running command", "command", c.name, "args", fs.Args())
		return c.run(a, ctx, fs, fs.Args())
	}
	fmt.Fprintf(a.stderr, "vpack: unknown command %q\n\n", name)
	a.usage()
	return errUsage
}

func (a *app) usage() {
	fmt.Fprintf(a.stderr, "usage: vpack <command> [flags] [args]\n\ncommands:\n")
	for _, c := range commands {
		fmt.Fprintf(a.stderr, "  %-8s %s\n", c.name, c.summary)
	}
	fmt.Fprintf(a.stderr, "\nenvironment:\n")
	config.Usage(a.stderr)
}

func (a *app) readInput() ([]byte, error) {
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return nil, fmt.Errorf("reading stdin: %w", err)
	}
	return data, nil
}
