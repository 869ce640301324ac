package history

import "fmt"

// Llama2 implements the `[INST] ... [/INST]` turn format with a
// once-per-conversation `<<SYS>>` block folded into the first user turn,
// grounded on original_source/models.cpp's Llama2 chat-history
// construction.
type Llama2 struct {
	encode func(string) []int32
	bos    int32
	eos    int32

	pendingSysPrompt string
}

func NewLlama2(encode func(string) []int32, bos, eos int32) Encoder {
	return &Llama2{encode: encode, bos: bos, eos: eos}
}

func (l *Llama2) AppendSysPrompt(sysPrompt string, ids []int32) []int32 {
	// Llama2 has no standalone system-turn framing: the system prompt is
	// folded into the first user turn's <<SYS>> block instead.
	l.pendingSysPrompt = sysPrompt
	return ids
}

func (l *Llama2) AppendUser(roundIdx int, user string, ids []int32) []int32 {
	ids = append(ids, l.bos)
	var text string
	if roundIdx == 0 && l.pendingSysPrompt != "" {
		text = fmt.Sprintf("[INST] <<SYS>>\n%s\n<</SYS>>\n\n%s [/INST]", l.pendingSysPrompt, user)
	} else {
		text = fmt.Sprintf("[INST] %s [/INST]", user)
	}
	return append(ids, l.encode(text)...)
}

func (l *Llama2) AppendAIOpening(roundIdx int, ids []int32) []int32 {
	return append(ids, l.encode(" ")...)
}

func (l *Llama2) AppendAI(roundIdx int, ai string, ids []int32) []int32 {
	ids = l.AppendAIOpening(roundIdx, ids)
	ids = append(ids, l.encode(ai)...)
	ids = append(ids, l.eos)
	return ids
}

func init() {
	Register("llama2", NewLlama2)
}
