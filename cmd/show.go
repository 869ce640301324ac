package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/FiditeNemini/chatllm.cpp/loader"
)

func newShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show MODEL_FILE",
		Short: "Show the config and dispatch info for a model file",
		Args:  cobra.ExactArgs(1),
		RunE:  showHandler,
	}
}

func showHandler(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	result, err := loader.Load(f)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	return showInfo(result, cmd.OutOrStdout())
}

func showInfo(result *loader.Result, w io.Writer) error {
	tableRender := func(header string, rows [][]string) {
		fmt.Fprintln(w, " ", header)
		table := tablewriter.NewWriter(w)
		table.SetAlignment(tablewriter.ALIGN_LEFT)
		table.SetBorder(false)
		table.SetNoWhiteSpace(true)
		table.SetTablePadding("    ")
		table.AppendBulk(rows)
		table.Render()
		fmt.Fprintln(w)
	}

	tableRender("Model", [][]string{
		{"", "model_type", result.ModelType.String()},
		{"", "purpose", result.ModelType.Purpose().String()},
		{"", "vocab_size", fmt.Sprint(result.Config.VocabSize)},
		{"", "hidden_size", fmt.Sprint(result.Config.HiddenSize)},
		{"", "num_hidden_layers", fmt.Sprint(result.Config.NumHiddenLayers)},
		{"", "num_attn_heads", fmt.Sprint(result.Config.NumAttnHeads)},
		{"", "max_length", fmt.Sprint(result.Config.MaxLength)},
		{"", "parameters", fmt.Sprint(result.Transformer.GetParamNum(false))},
	})

	tableRender("Offsets", [][]string{
		{"", "config", fmt.Sprint(result.OffsetConfig)},
		{"", "tokenizer", fmt.Sprint(result.OffsetTokenizer)},
		{"", "tensors", fmt.Sprint(result.OffsetTensors)},
	})

	return nil
}
