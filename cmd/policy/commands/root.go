// ABOUTME: Root command and global flags for the policy CLI
// ABOUTME: Registers every subcommand and validates verbosity and output format
package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	verbose      bool
	quiet        bool
	outputFormat string
)

const banner = `
██████╗  ██████╗ ██╗     ██╗ ██████╗██╗   ██╗
██╔══██╗██╔═══██╗██║     ██║██╔════╝╚██╗ ██╔╝
██████╔╝██║   ██║██║     ██║██║      ╚████╔╝
██╔═══╝ ██║   ██║██║     ██║██║       ╚██╔╝
██║     ╚██████╔╝███████╗██║╚██████╗   ██║
╚═╝      ╚═════╝ ╚══════╝╚═╝ ╚═════╝   ╚═╝
`

// NewRootCmd creates the root command with all subcommands attached
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "policy",
		Short: "Evidence-gated question answering over policy documents",
		Long: banner + `
Ask questions about policy documents and get structured answers whose
every claim cites a verbatim quote from the retrieved pages.

Retrieval is checked by an evidence gate before any model is called:
when the closest chunks are too far, too few or not discriminative,
the answer is a refusal with suggestions instead of a guess.

Pipeline:
  pages.jsonl -> chunk -> embed -> index -> retrieve -> gate -> answer -> verify quotes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if verbose && quiet {
				return fmt.Errorf("--verbose and --quiet are mutually exclusive")
			}
			switch outputFormat {
			case "auto", "text", "json", "yaml":
				return nil
			}
			return fmt.Errorf("unknown --format %q (want auto, text, json or yaml)", outputFormat)
		},
	}

	cmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Show debug logging")
	cmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "Only show errors")
	cmd.PersistentFlags().StringVar(&outputFormat, "format", "auto", "Output format: auto, text, json or yaml")

	cmd.AddCommand(
		NewChunkCmd(),
		NewIndexCmd(),
		NewIngestCmd(),
		NewSearchCmd(),
		NewAskCmd(),
		NewSummarizeCmd(),
		NewDocsCmd(),
		NewDeleteCmd(),
		NewExportCmd(),
		NewWatchCmd(),
		NewMCPCmd(),
		NewInstallSkillCmd(),
		NewVersionCmd(),
	)

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}
