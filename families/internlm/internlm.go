// Package internlm provides a reference InternLM Transformer and tokenizer,
// registered with the loader dispatch table; api.ModelType.HistoryFamily
// pairs this model type with the chatml history encoder.
// The forward pass is a small deterministic function of position and input
// id, not real attention/MLP math — the tensor backend that would provide
// that is an external collaborator this repo does not implement.
package internlm

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/FiditeNemini/chatllm.cpp/api"
	"github.com/FiditeNemini/chatllm.cpp/compute"
	"github.com/FiditeNemini/chatllm.cpp/kvcache"
	"github.com/FiditeNemini/chatllm.cpp/loader"
)

// configLayout is the fixed-size config blob this family writes: five
// little-endian int32 fields followed by a 2-byte fp16 logit-scale field.
const configLayout = 4*5 + 2

func decodeConfig(r io.ReaderAt, offset int64) (api.BaseConfig, int64, error) {
	buf := make([]byte, configLayout)
	if _, err := r.ReadAt(buf, offset); err != nil {
		return api.BaseConfig{}, 0, fmt.Errorf("internlm: read config blob: %w", err)
	}

	cfg := api.BaseConfig{
		VocabSize:       int(int32(binary.LittleEndian.Uint32(buf[0:4]))),
		HiddenSize:      int(int32(binary.LittleEndian.Uint32(buf[4:8]))),
		NumHiddenLayers: int(int32(binary.LittleEndian.Uint32(buf[8:12]))),
		NumAttnHeads:    int(int32(binary.LittleEndian.Uint32(buf[12:16]))),
		MaxLength:       int(int32(binary.LittleEndian.Uint32(buf[16:20]))),
		LogitScale:      loader.DecodeFP16Field(buf[20:22]),
	}
	return cfg, configLayout, nil
}

// tokenizer is a whitespace-delimited reference tokenizer: its vocabulary
// is the piece list written into the tokenizer blob, byte-value fallback
// for anything not in it. Real sub-word tokenization is out of scope.
type tokenizer struct {
	pieces    []string
	toID      map[string]int32
	bos, eos  int32
	terminate int32
}

func newTokenizer(r io.ReaderAt, offset int64, vocabSize int) (api.Tokenizer, int64, error) {
	countBuf := make([]byte, 4)
	if _, err := r.ReadAt(countBuf, offset); err != nil {
		return nil, 0, fmt.Errorf("internlm: read tokenizer piece count: %w", err)
	}
	count := int(binary.LittleEndian.Uint32(countBuf))
	consumed := int64(4)

	pieces := make([]string, 0, count)
	toID := make(map[string]int32, count)
	pos := offset + 4
	for i := 0; i < count; i++ {
		lenBuf := make([]byte, 4)
		if _, err := r.ReadAt(lenBuf, pos); err != nil {
			return nil, 0, fmt.Errorf("internlm: read piece %d length: %w", i, err)
		}
		pieceLen := int(binary.LittleEndian.Uint32(lenBuf))
		pos += 4
		consumed += 4

		pieceBuf := make([]byte, pieceLen)
		if pieceLen > 0 {
			if _, err := r.ReadAt(pieceBuf, pos); err != nil {
				return nil, 0, fmt.Errorf("internlm: read piece %d body: %w", i, err)
			}
		}
		pos += int64(pieceLen)
		consumed += int64(pieceLen)

		piece := string(pieceBuf)
		toID[piece] = int32(i)
		pieces = append(pieces, piece)
	}

	return &tokenizer{pieces: pieces, toID: toID, bos: 1, eos: 2, terminate: -1}, consumed, nil
}

func (t *tokenizer) Encode(text string) []int32 {
	var ids []int32
	for _, word := range splitWords(text) {
		if id, ok := t.toID[word]; ok {
			ids = append(ids, id)
			continue
		}
		sum := 0
		for _, b := range []byte(word) {
			sum += int(b)
		}
		ids = append(ids, int32(sum%max(len(t.pieces), 1)))
	}
	return ids
}

func (t *tokenizer) Decode(ids []int32) string {
	out := ""
	for i, id := range ids {
		if i > 0 {
			out += " "
		}
		if int(id) >= 0 && int(id) < len(t.pieces) {
			out += t.pieces[id]
		} else {
			out += "<unk>"
		}
	}
	return out
}

func (t *tokenizer) BosTokenID() int32       { return t.bos }
func (t *tokenizer) EosTokenID() int32       { return t.eos }
func (t *tokenizer) TerminateTokenID() int32 { return t.terminate }

func splitWords(text string) []string {
	var words []string
	start := -1
	for i, r := range text {
		if r == ' ' || r == '\n' || r == '\t' {
			if start >= 0 {
				words = append(words, text[start:i])
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		words = append(words, text[start:])
	}
	return words
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// transformer is a deterministic stand-in for InternLM's neural block
// stack: its logits are a function of position and the last input id, not
// real attention or MLP compute.
//
// InternLM's reference tokenizer/attention carry no relative positional
// scheme, so cache is built with a nil ShiftFn: a shift_memory() call that
// keeps some but not all tokens (0 < keep < n_past) surfaces
// kvcache.ErrNotSupported instead of silently corrupting positions; keep=0
// simply empties the cache.
type transformer struct {
	cfg        api.BaseConfig
	nCtx       int
	paramCount int64
	cache      *kvcache.Causal
}

func newTransformer(cfg api.BaseConfig) compute.Transformer {
	return &transformer{
		cfg:        cfg,
		paramCount: int64(cfg.HiddenSize) * int64(cfg.NumHiddenLayers) * 12,
		cache:      kvcache.NewCausal(nil),
	}
}

func (t *transformer) Forward(ctx *compute.Context, inputIDs []int32, nPast int) (compute.Tensor, error) {
	if len(inputIDs) == 0 {
		return nil, fmt.Errorf("internlm: forward called with no input ids")
	}
	last := inputIDs[len(inputIDs)-1]
	logits := make([]float32, t.cfg.VocabSize)
	for i := range logits {
		logits[i] = float32(((nPast+1)*31 + int(last)*17 + i*7) % 97)
	}
	t.cache.Add(int32(len(inputIDs)))
	return toyTensor{shape: []int{t.cfg.VocabSize}, values: logits}, nil
}

func (t *transformer) ShiftCache(shift, total int) error {
	return t.cache.Shift(int32(shift), int32(total))
}
func (t *transformer) SetCtx(nCtx int) { t.nCtx = nCtx }
func (t *transformer) GetParamNum(effectiveOnly bool) int64 { return t.paramCount }
func (t *transformer) Load(r io.ReaderAt, tensorOffset int64) error { return nil }

type toyTensor struct {
	shape  []int
	values []float32
}

func (t toyTensor) Shape() []int      { return t.shape }
func (t toyTensor) Values() []float32 { return t.values }

func init() {
	loader.Register(api.ModelInternLM, loader.Entry{
		Version:        1,
		DecodeConfig:   decodeConfig,
		NewTokenizer:   newTokenizer,
		NewTransformer: newTransformer,
	})
}
