// ABOUTME: Version command printing build metadata plus the active model configuration
// ABOUTME: Honors --format so scripts can read the version as JSON or YAML
package commands

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/harper/policy-rag/internal/llm"
)

var versionInfo = VersionInfo{Version: "dev", Commit: "none", Date: "unknown"}

// VersionInfo is the build metadata stamped in by goreleaser
type VersionInfo struct {
	Version string `json:"version" yaml:"version"`
	Commit  string `json:"commit" yaml:"commit"`
	Date    string `json:"date" yaml:"date"`
}

// SetVersion records build metadata (called from main)
func SetVersion(version, commit, date string) {
	versionInfo = VersionInfo{Version: version, Commit: commit, Date: date}
}

type versionOutput struct {
	VersionInfo    `yaml:",inline"`
	GoVersion      string `json:"go_version" yaml:"go_version"`
	ChatModel      string `json:"default_chat_model" yaml:"default_chat_model"`
	EmbeddingModel string `json:"default_embedding_model" yaml:"default_embedding_model"`
}

// NewVersionCmd creates the version command
func NewVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Long: `Display the policy CLI version, commit, build date and the default models.

Examples:
  policy version
  policy --format json version`,
		Args: cobra.NoArgs,
		RunE: runVersion,
	}
}

func runVersion(cmd *cobra.Command, args []string) error {
	out := versionOutput{
		VersionInfo:    versionInfo,
		GoVersion:      runtime.Version(),
		ChatModel:      llm.DefaultChatModel,
		EmbeddingModel: llm.DefaultEmbeddingModel,
	}
	if format := structuredFormat(); format != "" {
		return writeStructured(cmd.OutOrStdout(), format, out)
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "policy %s\n", out.Version)
	fmt.Fprintf(w, "Commit: %s\n", out.Commit)
	fmt.Fprintf(w, "Built:  %s\n", out.Date)
	if verbose {
		fmt.Fprintf(w, "Go:     %s\n", out.GoVersion)
		fmt.Fprintf(w, "Models: %s / %s\n", out.ChatModel, out.EmbeddingModel)
	}
	return nil
}
