// Package history implements the chat-history encoder contract: turning
// structured turns into token ids in a model-family-specific way while
// preserving a uniform interface to the generation engine.
package history

import orderedmap "github.com/wk8/go-ordered-map/v2"

// Encoder is implemented once per model family. Every method appends to the
// caller-provided token-id buffer and returns the extended slice.
//
// Invariant: repeated rounds produce a token sequence the
// same model could have generated, byte-for-byte, had it been trained on
// this format — the encoder defines the training-format contract.
type Encoder interface {
	// AppendSysPrompt appends an optional BOS and system-message framing.
	AppendSysPrompt(sysPrompt string, ids []int32) []int32
	// AppendUser prefixes/suffixes the user turn with family-specific
	// delimiters. roundIdx is 0 for the first round.
	AppendUser(roundIdx int, user string, ids []int32) []int32
	// AppendAIOpening emits the prefix that cues the model to begin
	// generating (e.g. "Assistant: "), called by the engine driver
	// before handing off to Generate so the first sampled token is the
	// AI's first content token.
	AppendAIOpening(roundIdx int, ids []int32) []int32
	// AppendAI appends AppendAIOpening followed by the encoded AI text
	// and an end-of-turn token; used when replaying prior AI turns.
	AppendAI(roundIdx int, ai string, ids []int32) []int32
}

// registry maps a family name to its Encoder constructor, preserving
// registration order so diagnostics can list families in a stable order.
var registry = orderedmap.New[string, func(encode func(string) []int32, bos, eos int32) Encoder]()

// Register associates a family name with a constructor. Panics on a
// duplicate name, mirroring the loader's model-registry convention.
func Register(name string, ctor func(encode func(string) []int32, bos, eos int32) Encoder) {
	if _, ok := registry.Get(name); ok {
		panic("history: encoder already registered: " + name)
	}
	registry.Set(name, ctor)
}

// New constructs the named family's encoder. encode tokenizes free text
// (the sub-word tokenizer is an external collaborator); bos/eos are the
// family's begin/end-of-sequence token ids.
func New(name string, encode func(string) []int32, bos, eos int32) (Encoder, bool) {
	ctor, ok := registry.Get(name)
	if !ok {
		return nil, false
	}
	return ctor(encode, bos, eos), true
}

// Names returns every registered family name in registration order.
func Names() []string {
	var out []string
	for pair := registry.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
