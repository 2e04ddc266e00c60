// ABOUTME: Tests for install-skill command
// ABOUTME: Verifies skill installation into a temporary home directory

package commands

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func runInstallSkill(t *testing.T, args ...string) (string, string) {
	t.Helper()
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cmd := NewInstallSkillCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetArgs(args)

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Command execution failed: %v", err)
	}
	return tmpHome, output.String()
}

func TestNewInstallSkillCmd(t *testing.T) {
	cmd := NewInstallSkillCmd()

	if cmd.Use != "install-skill" {
		t.Errorf("Use = %q, want %q", cmd.Use, "install-skill")
	}
	if cmd.Short == "" || cmd.Long == "" {
		t.Error("descriptions should not be empty")
	}

	flag := cmd.Flags().Lookup("yes")
	if flag == nil {
		t.Fatal("--yes flag not found")
	}
	if flag.Shorthand != "y" {
		t.Errorf("--yes shorthand = %q, want %q", flag.Shorthand, "y")
	}
}

func TestInstallSkill_SuccessfulInstallation(t *testing.T) {
	tmpHome, output := runInstallSkill(t, "--yes")

	skillPath := filepath.Join(tmpHome, ".claude", "skills", "policy", "SKILL.md")
	content, err := os.ReadFile(skillPath)
	if err != nil {
		t.Fatalf("SKILL.md was not created at %s: %v", skillPath, err)
	}

	for _, expected := range []string{
		"name: policy",
		"mcp__policy__ask_policy",
		"mcp__policy__search_policy",
		"mcp__policy__summarize_policy",
		"mcp__policy__list_documents",
	} {
		if !strings.Contains(string(content), expected) {
			t.Errorf("SKILL.md should contain %q", expected)
		}
	}

	if !strings.Contains(output, "Installed policy skill successfully") {
		t.Errorf("Output should contain success message, got: %s", output)
	}
	if !strings.Contains(output, skillPath) {
		t.Errorf("Output should contain destination path, got: %s", output)
	}
}

func TestInstallSkill_Cancelled(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	cmd := NewInstallSkillCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetErr(&output)
	cmd.SetIn(strings.NewReader("n\n"))
	cmd.SetArgs([]string{})

	if err := cmd.Execute(); err != nil {
		t.Fatalf("Command execution failed: %v", err)
	}
	if !strings.Contains(output.String(), "Installation cancelled") {
		t.Errorf("expected cancellation message, got: %s", output.String())
	}
	if _, err := os.Stat(filepath.Join(tmpHome, ".claude", "skills", "policy", "SKILL.md")); !os.IsNotExist(err) {
		t.Error("skill should not be installed after cancelling")
	}
}

func TestInstallSkill_OverwriteScenario(t *testing.T) {
	tmpHome := t.TempDir()
	t.Setenv("HOME", tmpHome)

	skillDir := filepath.Join(tmpHome, ".claude", "skills", "policy")
	if err := os.MkdirAll(skillDir, 0755); err != nil {
		t.Fatal(err)
	}
	skillPath := filepath.Join(skillDir, "SKILL.md")
	if err := os.WriteFile(skillPath, []byte("old"), 0644); err != nil {
		t.Fatal(err)
	}

	cmd := NewInstallSkillCmd()
	var output bytes.Buffer
	cmd.SetOut(&output)
	cmd.SetArgs([]string{"-y"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Command execution failed: %v", err)
	}

	if !strings.Contains(output.String(), "already exists") {
		t.Error("Output should warn about overwriting")
	}
	content, err := os.ReadFile(skillPath)
	if err != nil {
		t.Fatal(err)
	}
	if string(content) == "old" {
		t.Error("skill file should be overwritten")
	}
}

func TestSkillFS_EmbeddedFileReadable(t *testing.T) {
	content, err := skillFS.ReadFile("skill/SKILL.md")
	if err != nil {
		t.Fatalf("Failed to read embedded skill file: %v", err)
	}
	if !strings.Contains(string(content), "name: policy") {
		t.Error("Embedded skill file should contain 'name: policy'")
	}
}
