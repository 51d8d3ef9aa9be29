package cli

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/vk/kiln/internal/app"
	"github.com/vk/kiln/internal/scope"
)

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

// Parse processes command-line arguments. It returns a populated Config,
// a boolean indicating if the program should exit cleanly, or an ExitError.
func Parse(args []string, output io.Writer) (*app.Config, bool, error) {
	slog.Debug("CLI parser started.")
	flagSet := flag.NewFlagSet("kiln", flag.ContinueOnError)
	flagSet.SetOutput(output)

	flagSet.Usage = func() {
		fmt.Fprint(output, `
Kiln - resolves a project's dependencies into per-scope classpaths.

Usage:
  kiln [options] [COMMAND]

Commands:
  classpath  Print the classpath of -scope, joined with the OS list separator (default).
  tree       Print the mediated dependency tree.
  fetch      Download every resolved artifact into the cache.
  serve      Serve the cache as a Maven repository on -listen.

Options:
`)
		flagSet.PrintDefaults()
	}

	configFlag := flagSet.String("config", "kiln.hcl", "Path to kiln.hcl or a directory of .hcl files.")
	cFlag := flagSet.String("c", "", "Path to the configuration (shorthand).")
	logFormatFlag := flagSet.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")
	logLevelFlag := flagSet.String("log-level", "warn", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	workersFlag := flagSet.Int("workers", 0, "Number of concurrent descriptor fetches. 0 keeps the configured value.")
	scopeFlag := flagSet.String("scope", "compile", "Classpath scope. Options: 'compile', 'provided', 'runtime', 'test', 'system', 'build'.")
	listenFlag := flagSet.String("listen", ":8080", "Listen address of the serve command.")

	if err := flagSet.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil, true, nil
		}
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}
	slog.Debug("Arguments parsed successfully.")

	if flagSet.NArg() > 1 {
		return nil, false, &ExitError{Code: 2, Message: fmt.Sprintf("expected at most one command, got %q", flagSet.Args())}
	}
	command := app.CommandClasspath
	if flagSet.NArg() == 1 {
		command = flagSet.Arg(0)
	}
	if command == "help" {
		flagSet.Usage()
		return nil, true, nil
	}

	path := *configFlag
	if *cFlag != "" {
		path = *cFlag
	}
	slog.Debug("Configuration path determined.", "path", path)

	logFormat := strings.ToLower(*logFormatFlag)
	if logFormat != "text" && logFormat != "json" {
		return nil, false, &ExitError{Code: 2, Message: "invalid log-format: must be 'text' or 'json'"}
	}

	logLevel := strings.ToLower(*logLevelFlag)
	switch logLevel {
	case "debug", "info", "warn", "error":
	default:
		return nil, false, &ExitError{Code: 2, Message: "invalid log-level: must be 'debug', 'info', 'warn', or 'error'"}
	}

	sc, err := scope.Parse(strings.ToLower(*scopeFlag))
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: "invalid scope: " + err.Error()}
	}
	slog.Debug("CLI parameter validation complete.")

	config, err := app.NewConfig(app.Config{
		Command:     command,
		ProjectPath: path,
		LogFormat:   logFormat,
		LogLevel:    logLevel,
		Workers:     *workersFlag,
		Scope:       sc,
		Listen:      *listenFlag,
	})
	if err != nil {
		return nil, false, &ExitError{Code: 2, Message: err.Error()}
	}

	slog.Debug("CLI parser finished successfully.", "config", config)
	return config, false, nil
}
