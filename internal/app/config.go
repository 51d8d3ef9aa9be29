package app

import (
	"errors"
	"fmt"
	"slices"

	"github.com/vk/kiln/internal/scope"
)

// Commands understood by Run.
const (
	CommandClasspath = "classpath"
	CommandTree      = "tree"
	CommandFetch     = "fetch"
	CommandServe     = "serve"
)

// Commands lists every command in the order they are documented.
var Commands = []string{CommandClasspath, CommandTree, CommandFetch, CommandServe}

// Config holds all the necessary configuration for an App instance to run.
type Config struct {
	Command     string
	ProjectPath string // kiln.hcl or a directory of .hcl files

	LogFormat string
	LogLevel  string

	// Workers overrides the configured number of concurrent fetches when
	// positive.
	Workers int
	Scope   scope.Scope
	Listen  string
}

func NewConfig(cfg Config) (*Config, error) {
	if cfg.ProjectPath == "" {
		return nil, errors.New("ProjectPath is a required configuration field and cannot be empty")
	}
	if cfg.Command == "" {
		cfg.Command = CommandClasspath
	}
	if !slices.Contains(Commands, cfg.Command) {
		return nil, fmt.Errorf("unknown command %q", cfg.Command)
	}
	if cfg.Scope == scope.None {
		cfg.Scope = scope.Compile
	}
	if !cfg.Scope.Valid() {
		return nil, fmt.Errorf("invalid scope %q", cfg.Scope)
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("workers must not be negative, got %d", cfg.Workers)
	}
	if cfg.Command == CommandServe && cfg.Listen == "" {
		return nil, errors.New("serve needs a listen address")
	}
	return &cfg, nil
}
