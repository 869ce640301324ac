// Package api defines the data model shared across the generation core:
// model type identity, base transformer configuration, and the tunables a
// caller passes into a generation call.
package api

import "fmt"

// ModelType identifies a model family/variant pair, dense over a 32-bit
// space partitioned by family. Types below 0x00010100 are chat models;
// 0x00010100 through 0x000101FF are embedding variants and 0x00010200 and
// up are ranker variants (see Purpose).
type ModelType int32

const (
	ModelInternLM  ModelType = 0x0100
	ModelInternLM2 ModelType = 0x0101

	ModelLlama2     ModelType = 0x0150
	ModelCodeLlama2 ModelType = 0x0151

	ModelQWen  ModelType = 0x0170
	ModelQWen2 ModelType = 0x0171

	ModelBGEEmbedding ModelType = 0x00010100
	ModelBGEReranker  ModelType = 0x00010200
)

// names holds the display name and optional native-script name per type.
var names = map[ModelType][2]string{
	ModelInternLM:     {"InternLM", "书生·浦语"},
	ModelInternLM2:    {"InternLM2", "书生·浦语2"},
	ModelLlama2:       {"LLaMA2", ""},
	ModelCodeLlama2:   {"CodeLLaMA2", ""},
	ModelQWen:         {"QWen", "通义千问"},
	ModelQWen2:        {"QWen2", "通义千问2"},
	ModelBGEEmbedding: {"BGE-Embedding", ""},
	ModelBGEReranker:  {"BGE-Reranker", ""},
}

// String returns the display name, or a hex fallback for unregistered types.
func (t ModelType) String() string {
	if n, ok := names[t]; ok {
		return n[0]
	}
	return fmt.Sprintf("ModelType(0x%x)", int32(t))
}

// NativeName returns the native-script display name, empty if none is set.
func (t ModelType) NativeName() string {
	return names[t][1]
}

// historyFamilies maps a chat ModelType to the name a history.Encoder is
// registered under. Families that share a turn format (e.g. QWen reuses
// InternLM's ChatML framing) share an entry.
var historyFamilies = map[ModelType]string{
	ModelInternLM:   "chatml",
	ModelInternLM2:  "chatml",
	ModelQWen:       "chatml",
	ModelQWen2:      "chatml",
	ModelLlama2:     "llama2",
	ModelCodeLlama2: "llama2",
}

// HistoryFamily returns the history.Encoder registration name for t, and
// false if t has no known chat-history turn format (e.g. embedding/ranker
// types, which never go through the encoder).
func (t ModelType) HistoryFamily() (string, bool) {
	name, ok := historyFamilies[t]
	return name, ok
}

// ModelPurpose is derived once from ModelType at load time and never changes
// afterward.
type ModelPurpose int

const (
	PurposeChat ModelPurpose = iota
	PurposeTextEmbedding
	PurposeRanker
)

func (p ModelPurpose) String() string {
	switch p {
	case PurposeChat:
		return "chat"
	case PurposeTextEmbedding:
		return "text_embedding"
	case PurposeRanker:
		return "ranker"
	default:
		return "unknown"
	}
}

// Purpose derives the ModelPurpose for a ModelType. Unknown types default to
// PurposeChat; embedding/ranker ranges are carved out explicitly.
func (t ModelType) Purpose() ModelPurpose {
	switch {
	case t >= ModelBGEReranker:
		return PurposeRanker
	case t >= ModelBGEEmbedding:
		return PurposeTextEmbedding
	default:
		return PurposeChat
	}
}

// BaseConfig holds the fields every family's on-disk config record carries,
// regardless of family-specific extensions layered on top by the concrete
// Transformer implementation.
type BaseConfig struct {
	VocabSize       int
	HiddenSize      int
	NumHiddenLayers int
	NumAttnHeads    int
	MaxLength       int

	// LogitScale, when >= 0, is applied to logits before sampling.
	// Negative disables it.
	LogitScale float32
}

// ClampMaxLength applies a caller override, which may only reduce MaxLength,
// never raise it past the file's own value.
func (c *BaseConfig) ClampMaxLength(override int) {
	if override > 0 && override < c.MaxLength {
		c.MaxLength = override
	}
}

// Sampling selects which Sampler variant a GenerationConfig requests.
type Sampling string

const (
	SamplingGreedy Sampling = "greedy"
	SamplingTopP   Sampling = "top_p"
	SamplingTFS    Sampling = "tfs"
)

// GenerationConfig carries every tunable recognized by the sampler and
// engine for a single generate() call.
type GenerationConfig struct {
	MaxLength int

	DoSample bool
	Sampling Sampling

	Temperature     float32
	PresencePenalty float32

	TopK int
	TopP float32
	TFSZ float32

	NumThreads int

	// Incremental selects per-token prefill instead of a single batched
	// forward pass over the whole residual input.
	Incremental bool
}

// DefaultGenerationConfig returns the conservative defaults: sampling
// disabled (greedy), no penalties, no truncation.
func DefaultGenerationConfig(maxLength int) GenerationConfig {
	return GenerationConfig{
		MaxLength:       maxLength,
		DoSample:        false,
		Sampling:        SamplingGreedy,
		Temperature:     1.0,
		PresencePenalty: 1.0,
		TopK:            0,
		TopP:            0,
		TFSZ:            0,
		NumThreads:      0,
	}
}

// TemperatureEnabled reports whether temperature scaling should be applied;
// values within 1e-5 of 1.0 disable it.
func (g GenerationConfig) TemperatureEnabled() bool {
	d := g.Temperature - 1.0
	return d > 1e-5 || d < -1e-5
}

// PresencePenaltyEnabled reports whether presence-penalty scaling should be
// applied; values within 1e-5 of 1.0 disable it.
func (g GenerationConfig) PresencePenaltyEnabled() bool {
	d := g.PresencePenalty - 1.0
	return d > 1e-5 || d < -1e-5
}

// TopPEnabled reports whether nucleus sampling is active: 0 < TopP < 1.
func (g GenerationConfig) TopPEnabled() bool {
	return g.TopP > 0 && g.TopP < 1
}

// TokenIdScore pairs a token id with a score, ordered by Score with ties
// broken by the original id order.
type TokenIdScore struct {
	ID    int32
	Score float32
}

// Abort is the sentinel a Sampler returns when no candidate remains after
// filtering.
const Abort int32 = -1
