package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vk/kiln/internal/app"
	"github.com/vk/kiln/internal/scope"
)

func TestParse(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name     string
		args     []string
		expected app.Config
	}{
		{
			name: "defaults",
			args: nil,
			expected: app.Config{
				Command: app.CommandClasspath, ProjectPath: "kiln.hcl",
				LogFormat: "text", LogLevel: "warn", Scope: scope.Compile, Listen: ":8080",
			},
		},
		{
			name: "tree with shorthand config",
			args: []string{"-c", "build/kiln.hcl", "tree"},
			expected: app.Config{
				Command: app.CommandTree, ProjectPath: "build/kiln.hcl",
				LogFormat: "text", LogLevel: "warn", Scope: scope.Compile, Listen: ":8080",
			},
		},
		{
			name: "runtime classpath",
			args: []string{"-scope", "RUNTIME", "-workers", "4", "-log-level", "debug", "-log-format", "json"},
			expected: app.Config{
				Command: app.CommandClasspath, ProjectPath: "kiln.hcl",
				LogFormat: "json", LogLevel: "debug", Workers: 4, Scope: scope.Runtime, Listen: ":8080",
			},
		},
		{
			name: "serve",
			args: []string{"-config", "proj", "-listen", "127.0.0.1:9000", "serve"},
			expected: app.Config{
				Command: app.CommandServe, ProjectPath: "proj",
				LogFormat: "text", LogLevel: "warn", Scope: scope.Compile, Listen: "127.0.0.1:9000",
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			cfg, shouldExit, err := Parse(tc.args, &bytes.Buffer{})
			require.NoError(t, err)
			assert.False(t, shouldExit)
			require.NotNil(t, cfg)
			assert.Equal(t, tc.expected, *cfg)
		})
	}
}

func TestParse_Help(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{{"-h"}, {"help"}} {
		out := &bytes.Buffer{}
		cfg, shouldExit, err := Parse(args, out)
		require.NoError(t, err)
		assert.True(t, shouldExit)
		assert.Nil(t, cfg)
		assert.Contains(t, out.String(), "Usage:")
	}
}

func TestParse_Errors(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name        string
		args        []string
		expectedErr string
	}{
		{name: "unknown flag", args: []string{"-nope"}, expectedErr: "flag provided but not defined: -nope"},
		{name: "bad log format", args: []string{"-log-format", "xml"}, expectedErr: "invalid log-format"},
		{name: "bad log level", args: []string{"-log-level", "loud"}, expectedErr: "invalid log-level"},
		{name: "bad scope", args: []string{"-scope", "deploy"}, expectedErr: "invalid scope"},
		{name: "unknown command", args: []string{"publish"}, expectedErr: `unknown command "publish"`},
		{name: "two commands", args: []string{"tree", "fetch"}, expectedErr: "expected at most one command"},
		{name: "negative workers", args: []string{"-workers", "-1"}, expectedErr: "workers must not be negative"},
		{name: "empty config", args: []string{"-config", ""}, expectedErr: "ProjectPath is a required"},
		{name: "serve without address", args: []string{"-listen", "", "serve"}, expectedErr: "serve needs a listen address"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			_, _, err := Parse(tc.args, &bytes.Buffer{})
			require.Error(t, err)
			var exitErr *ExitError
			require.ErrorAs(t, err, &exitErr)
			assert.Equal(t, 2, exitErr.Code)
			assert.Contains(t, exitErr.Message, tc.expectedErr)
		})
	}
}
