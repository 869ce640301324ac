package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/FiditeNemini/chatllm.cpp/api"
	"github.com/FiditeNemini/chatllm.cpp/engine"
	"github.com/FiditeNemini/chatllm.cpp/envconfig"
	"github.com/FiditeNemini/chatllm.cpp/history"
	"github.com/FiditeNemini/chatllm.cpp/loader"
	"github.com/FiditeNemini/chatllm.cpp/store"
)

const (
	defaultMemSize     = 512 * 1024 * 1024
	defaultScratchSize = 64 * 1024 * 1024
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run MODEL_FILE PROMPT",
		Short: "Load a model and generate a completion for PROMPT",
		Args:  cobra.ExactArgs(2),
		RunE:  runHandler,
	}
	cmd.Flags().Float32("top-p", 0, "nucleus sampling threshold (0 disables)")
	cmd.Flags().Float32("temperature", 1.0, "sampling temperature")
	cmd.Flags().Int("max-length", 0, "override the model's max context length")
	cmd.Flags().String("system", "", "system prompt prepended through the model family's history encoder")
	cmd.Flags().String("session", "", "session id; when set, n_past is persisted and resumed across runs")
	cmd.Flags().String("session-db", "", "path to the session database (default: <models-dir>/sessions.db)")
	return cmd
}

// stdoutStreamer writes each token's decoded text to stdout as it arrives.
type stdoutStreamer struct {
	w   *bufio.Writer
	tok api.Tokenizer
}

func (s *stdoutStreamer) Put(tokenID int32) error {
	fmt.Fprint(s.w, s.tok.Decode([]int32{tokenID}))
	return s.w.Flush()
}

func (s *stdoutStreamer) End() error {
	fmt.Fprintln(s.w)
	return s.w.Flush()
}

func runHandler(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open model file: %w", err)
	}
	defer f.Close()

	var opts []loader.Option
	if maxLength, _ := cmd.Flags().GetInt("max-length"); maxLength > 0 {
		opts = append(opts, loader.WithMaxLength(maxLength))
	}

	result, err := loader.Load(f, opts...)
	if err != nil {
		return fmt.Errorf("load model: %w", err)
	}

	m := engine.New(result, defaultMemSize, defaultScratchSize)

	topP, _ := cmd.Flags().GetFloat32("top-p")
	temperature, _ := cmd.Flags().GetFloat32("temperature")

	genCfg := api.DefaultGenerationConfig(result.Config.MaxLength)
	genCfg.Temperature = temperature
	genCfg.NumThreads = envconfig.NumThreads()
	if topP > 0 {
		genCfg.DoSample = true
		genCfg.Sampling = api.SamplingTopP
		genCfg.TopP = topP
	}

	familyName, ok := result.ModelType.HistoryFamily()
	if !ok {
		return fmt.Errorf("run: %s has no registered chat-history encoder", result.ModelType)
	}
	enc, ok := history.New(familyName, result.Tokenizer.Encode, result.Tokenizer.BosTokenID(), result.Tokenizer.EosTokenID())
	if !ok {
		return fmt.Errorf("run: no history encoder registered under family %q", familyName)
	}

	sessionID, _ := cmd.Flags().GetString("session")
	var sessStore *store.Store
	var priorSession store.Session
	haveSession := false
	if sessionID != "" {
		dbPath, _ := cmd.Flags().GetString("session-db")
		if dbPath == "" {
			dbPath = filepath.Join(envconfig.ModelsDir(), "sessions.db")
		}
		sessStore, err = store.Open(dbPath)
		if err != nil {
			return fmt.Errorf("open session store: %w", err)
		}
		defer sessStore.Close()

		priorSession, err = sessStore.Load(sessionID)
		switch {
		case err == nil:
			haveSession = true
		case errors.Is(err, store.ErrNotFound):
			// First use of this session id; proceed as a fresh conversation.
		default:
			return fmt.Errorf("load session %q: %w", sessionID, err)
		}
	}

	sysPrompt, _ := cmd.Flags().GetString("system")
	var inputIDs []int32
	if haveSession {
		// Position the new turn after the priorSession.NPast tokens of an
		// earlier run; only the new turn is forwarded. The store keeps the
		// counters, not the KV cache, so the freshly loaded transformer does
		// not hold those earlier tokens.
		m.SetPastOffset(priorSession.NPast)
		inputIDs = enc.AppendUser(1, args[1], inputIDs)
	} else {
		inputIDs = enc.AppendSysPrompt(sysPrompt, inputIDs)
		inputIDs = enc.AppendUser(0, args[1], inputIDs)
	}
	inputIDs = enc.AppendAIOpening(0, inputIDs)

	streamer := &stdoutStreamer{w: bufio.NewWriter(cmd.OutOrStdout()), tok: result.Tokenizer}
	outputIDs, _, err := m.Generate(context.Background(), inputIDs, genCfg, haveSession, streamer)
	if err != nil {
		return fmt.Errorf("generate: %w", err)
	}

	if sessStore != nil {
		sess := store.Session{
			ID:        sessionID,
			NPast:     priorSession.NPast + m.NPast(),
			OutputIDs: outputIDs,
		}
		if err := sessStore.Save(sess); err != nil {
			return fmt.Errorf("save session %q: %w", sessionID, err)
		}
	}
	return nil
}
