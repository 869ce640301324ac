// Package cmd wires the generation core into a minimal CLI: gencore show
// and gencore run, demonstrating loader.Load and engine.Generate end to
// end against a model file on disk.
package cmd

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/FiditeNemini/chatllm.cpp/envconfig"
	_ "github.com/FiditeNemini/chatllm.cpp/families/internlm"
	_ "github.com/FiditeNemini/chatllm.cpp/families/llama2"
	"github.com/FiditeNemini/chatllm.cpp/logutil"
)

// NewCLI builds the gencore root command with its show and run subcommands.
func NewCLI() *cobra.Command {
	cobra.EnableCommandSorting = false

	slog.SetDefault(logutil.NewLogger(os.Stderr, envconfig.LogLevel()))

	rootCmd := &cobra.Command{
		Use:           "gencore",
		Short:         "Inference-time generation core for GGML-style model files",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(newShowCmd(), newRunCmd())
	return rootCmd
}
