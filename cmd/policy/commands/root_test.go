// ABOUTME: Tests for the policy root command, its persistent flags and their validation
// ABOUTME: Runs the real command tree against the version subcommand, which needs no data dir
package commands

import (
	"bytes"
	"strings"
	"testing"
)

func executeRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	savedFormat, savedVerbose, savedQuiet := outputFormat, verbose, quiet
	t.Cleanup(func() { outputFormat, verbose, quiet = savedFormat, savedVerbose, savedQuiet })

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_Metadata(t *testing.T) {
	root := NewRootCmd()

	if root.Use != "policy" {
		t.Errorf("Use = %q, want policy", root.Use)
	}
	if !strings.Contains(root.Long, "███") {
		t.Error("Long description should carry the banner")
	}
	if !root.SilenceUsage || !root.SilenceErrors {
		t.Error("usage and errors are printed by main, not cobra")
	}

	names := make(map[string]bool)
	for _, sub := range root.Commands() {
		names[sub.Name()] = true
	}
	for _, want := range []string{
		"chunk", "index", "ingest", "search", "ask", "summarize", "docs",
		"delete", "export", "watch", "mcp", "install-skill", "version",
	} {
		if !names[want] {
			t.Errorf("subcommand %q is not registered", want)
		}
	}
}

func TestRootCmd_PersistentFlagDefaults(t *testing.T) {
	flags := NewRootCmd().PersistentFlags()

	for name, want := range map[string]string{"verbose": "false", "quiet": "false", "format": "auto"} {
		f := flags.Lookup(name)
		if f == nil {
			t.Fatalf("--%s not defined", name)
		}
		if f.DefValue != want {
			t.Errorf("--%s default = %q, want %q", name, f.DefValue, want)
		}
	}
	if flags.ShorthandLookup("v") == nil || flags.ShorthandLookup("q") == nil {
		t.Error("-v and -q shorthands should exist")
	}
}

func TestRootCmd_FlagValidation(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr string
	}{
		{"verbose", []string{"-v", "version"}, ""},
		{"quiet", []string{"-q", "version"}, ""},
		{"text format", []string{"--format", "text", "version"}, ""},
		{"yaml format", []string{"--format", "yaml", "version"}, ""},
		{"verbose and quiet", []string{"-v", "-q", "version"}, "mutually exclusive"},
		{"unknown format", []string{"--format", "xml", "version"}, `unknown --format "xml"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := executeRoot(t, tt.args...)
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestRootCmd_Help(t *testing.T) {
	out, _ := executeRoot(t, "--help")

	for _, want := range []string{"Usage:", "Available Commands:", "Flags:", "ask", "ingest"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output should contain %q", want)
		}
	}
}
