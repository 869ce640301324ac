// Package engine drives the autoregressive decode loop: forward pass,
// sample, extend the KV cache, stream, and terminate. It also exposes the
// fixed-size embedding and scalar reranker modes that reuse the forward
// pass but skip sampling entirely.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dlclark/regexp2"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/FiditeNemini/chatllm.cpp/api"
	"github.com/FiditeNemini/chatllm.cpp/compute"
	"github.com/FiditeNemini/chatllm.cpp/loader"
	"github.com/FiditeNemini/chatllm.cpp/sampler"
)

// blasPromptThreshold is the input length at or above which the BLAS
// single-thread override kicks in.
const blasPromptThreshold = 32

// Model wraps a loaded tokenizer and transformer with the accounting the
// generation loop needs: n_past/n_past_offset, the resolved thread-hint
// policy, and an optional multi-token terminator pattern.
type Model struct {
	tokenizer   api.Tokenizer
	transformer compute.Transformer
	cfg         api.BaseConfig

	memSize, scratchSize int

	nPast       int
	nPastOffset int

	seed uint64

	hasBLAS, hasGPUBLAS bool

	sem *semaphore.Weighted

	terminatorPattern *regexp2.Regexp

	logger *slog.Logger
}

// Option configures a Model at construction time.
type Option func(*Model)

// WithSeed fixes the sampler seed used for every Generate call.
func WithSeed(seed uint64) Option {
	return func(m *Model) { m.seed = seed }
}

// WithLogger overrides the default slog.Default() logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Model) { m.logger = logger }
}

// WithThreadLimit bounds the number of concurrent Generate calls allowed to
// occupy the compute-thread budget at once. n <= 0 disables the bound.
func WithThreadLimit(n int64) Option {
	return func(m *Model) {
		if n > 0 {
			m.sem = semaphore.NewWeighted(n)
		}
	}
}

// WithBLASInfo records whether the (external) tensor backend is BLAS- or
// GPU-BLAS-accelerated, driving the thread-hint override rule.
func WithBLASInfo(hasBLAS, hasGPUBLAS bool) Option {
	return func(m *Model) { m.hasBLAS, m.hasGPUBLAS = hasBLAS, hasGPUBLAS }
}

// WithTerminatorPattern compiles a family-specific multi-token terminator
// pattern, matched against the decoded tail of output_ids in addition to
// the single-id eos/terminate checks.
func WithTerminatorPattern(pattern string) Option {
	return func(m *Model) {
		m.terminatorPattern = regexp2.MustCompile(pattern, regexp2.None)
	}
}

// New wraps a loader.Result's tokenizer and transformer into a Model ready
// to Generate. memSize/scratchSize bound the per-forward-pass arena.
func New(result *loader.Result, memSize, scratchSize int, opts ...Option) *Model {
	m := &Model{
		tokenizer:   result.Tokenizer,
		transformer: result.Transformer,
		cfg:         result.Config,
		memSize:     memSize,
		scratchSize: scratchSize,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// resolveThreadHint applies the BLAS override rule: a long prompt on a
// BLAS-but-not-GPU-BLAS backend forces a single thread, since BLAS already
// parallelizes internally.
func (m *Model) resolveThreadHint(requested, inputLen int) int {
	if inputLen >= blasPromptThreshold && m.hasBLAS && !m.hasGPUBLAS {
		return 1
	}
	return requested
}

// Generate drives the autoregressive decode loop over inputIDs. If
// continuous is false, n_past resets to 0 (fresh conversation); otherwise
// the previous call's n_past is retained (prompt reuse). Streamed tokens
// exclude the prompt and any popped terminal token.
func (m *Model) Generate(ctx context.Context, inputIDs []int32, cfg api.GenerationConfig, continuous bool, streamer Streamer) ([]int32, bool, error) {
	if cfg.MaxLength > m.cfg.MaxLength {
		return nil, false, fmt.Errorf("engine: gen_config.max_length %d exceeds model max_length %d", cfg.MaxLength, m.cfg.MaxLength)
	}

	requestID := uuid.NewString()
	logger := m.logger.With("request_id", requestID)

	if m.sem != nil {
		if err := m.sem.Acquire(ctx, 1); err != nil {
			return nil, false, fmt.Errorf("engine: acquiring thread budget: %w", err)
		}
		defer m.sem.Release(1)
	}

	samp := sampler.New(cfg)
	samp.Seed(m.seed)
	samp.Reset()

	if !continuous {
		m.nPast = 0
	}

	outputIDs := append([]int32(nil), inputIDs...)
	currInputIDs := append([]int32(nil), inputIDs...)
	nextOutputIdx := len(inputIDs)

	numThreads := m.resolveThreadHint(cfg.NumThreads, len(inputIDs))

	var aborted, completed bool
	for !aborted && !completed && m.nPast+len(currInputIDs) < cfg.MaxLength {
		select {
		case <-ctx.Done():
			aborted = true
			continue
		default:
		}

		logits, err := m.forward(currInputIDs, cfg.Incremental, numThreads)
		if err != nil {
			if streamer != nil {
				_ = streamer.End()
			}
			return nil, false, fmt.Errorf("engine: forward pass: %w", err)
		}

		if m.cfg.LogitScale >= 0 {
			for i := range logits {
				logits[i] *= m.cfg.LogitScale
			}
		}

		nextID := samp.Sampling(logits, m.cfg.VocabSize)
		if nextID == api.Abort {
			aborted = true
			break
		}

		m.nPast += len(currInputIDs)
		currInputIDs = []int32{nextID}
		outputIDs = append(outputIDs, nextID)

		done, keepIdx, popOutput := m.isOutputTerminated(outputIDs)
		if done {
			completed = true
			if popOutput > 0 {
				outputIDs = outputIDs[:len(outputIDs)-popOutput]
			}
			keepIdx = len(outputIDs)
		}

		if streamer != nil {
			for i := nextOutputIdx; i < keepIdx && i < len(outputIDs); i++ {
				if err := streamer.Put(outputIDs[i]); err != nil {
					_ = streamer.End()
					return nil, false, fmt.Errorf("engine: streaming token: %w", err)
				}
			}
		}
		nextOutputIdx = keepIdx
	}

	if aborted && !completed {
		completed = true
	}

	if streamer != nil {
		if err := streamer.End(); err != nil {
			return nil, false, fmt.Errorf("engine: ending stream: %w", err)
		}
	}

	logger.Debug("generate finished", "n_past", m.nPast, "output_len", len(outputIDs), "completed", completed)
	return outputIDs, completed, nil
}

// forward runs one or more forward passes to produce the last position's
// logits, in either the default batched substrategy (a single forward over
// the whole residual input) or the incremental one (one token at a time,
// used by families that cannot prefill multiple tokens per call).
func (m *Model) forward(ids []int32, incremental bool, numThreads int) ([]float32, error) {
	ctx := compute.NewContext(m.memSize, m.scratchSize, numThreads)
	defer ctx.Release()

	absPast := m.nPast + m.nPastOffset

	if !incremental {
		out, err := m.transformer.Forward(ctx, ids, absPast)
		if err != nil {
			return nil, err
		}
		return out.Values(), nil
	}

	var out compute.Tensor
	for i, id := range ids {
		var err error
		out, err = m.transformer.Forward(ctx, []int32{id}, absPast+i)
		if err != nil {
			return nil, err
		}
	}
	return out.Values(), nil
}

// SetPastOffset sets the external base offset added to n_past when
// computing the absolute position handed to Transformer.Forward, used
// when a persisted session resumes the position count of a prior process.
// It does not restore any KV-cache contents into the transformer.
func (m *Model) SetPastOffset(n int) {
	m.nPastOffset = n
}

// NPast reports the number of tokens currently folded into the KV cache,
// for callers persisting session state between calls.
func (m *Model) NPast() int {
	return m.nPast
}

// isOutputTerminated inspects the tail of outputIDs and reports whether
// generation is complete, how many trailing output tokens are safe to
// stream (keepIdx), and how many trailing tokens to pop before returning
// (popOutput) when the terminator itself must not appear in the output.
func (m *Model) isOutputTerminated(outputIDs []int32) (completed bool, keepIdx int, popOutput int) {
	if len(outputIDs) == 0 {
		return false, 0, 0
	}

	last := outputIDs[len(outputIDs)-1]
	if last == m.tokenizer.EosTokenID() {
		return true, len(outputIDs) - 1, 1
	}
	if terminate := m.tokenizer.TerminateTokenID(); terminate >= 0 && last == terminate {
		return true, len(outputIDs) - 1, 1
	}
	if m.terminatorPattern != nil && m.matchOutputSequence(outputIDs) {
		return true, len(outputIDs), 0
	}
	return false, len(outputIDs), 0
}

// matchOutputSequence decodes the trailing window of outputIDs and tests
// it against the family's multi-token terminator pattern, for families
// whose end-of-turn marker is a token sequence rather than a single id.
func (m *Model) matchOutputSequence(outputIDs []int32) bool {
	window := outputIDs
	const maxWindow = 32
	if len(window) > maxWindow {
		window = window[len(window)-maxWindow:]
	}
	text := m.tokenizer.Decode(window)
	matched, err := m.terminatorPattern.MatchString(text)
	return err == nil && matched
}

// ShiftMemory discards the oldest n_past-keep tokens from the KV cache so
// only the most recent keep tokens remain, preserving contiguous cache
// alignment with n_past.
func (m *Model) ShiftMemory(keep int32) error {
	if int(keep) >= m.nPast {
		return nil
	}
	shift := m.nPast - int(keep)
	if err := m.transformer.ShiftCache(shift, m.nPast); err != nil {
		return fmt.Errorf("engine: shifting memory: %w", err)
	}
	m.nPast = int(keep)
	return nil
}
