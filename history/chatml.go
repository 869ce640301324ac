package history

import "fmt"

// ChatML implements the InternLM-style turn format: `<|role|>text<|end|>`
// framing, grounded on original_source/models.cpp's InternLM chat-history
// construction (system prompt once, then alternating user/assistant turns
// each closed by an end-of-turn marker).
type ChatML struct {
	encode func(string) []int32
	bos    int32
	eos    int32
}

func NewChatML(encode func(string) []int32, bos, eos int32) Encoder {
	return &ChatML{encode: encode, bos: bos, eos: eos}
}

func (c *ChatML) AppendSysPrompt(sysPrompt string, ids []int32) []int32 {
	ids = append(ids, c.bos)
	if sysPrompt == "" {
		return ids
	}
	ids = append(ids, c.encode(fmt.Sprintf("<|system|>\n%s", sysPrompt))...)
	ids = append(ids, c.eos)
	return ids
}

func (c *ChatML) AppendUser(roundIdx int, user string, ids []int32) []int32 {
	ids = append(ids, c.encode(fmt.Sprintf("<|user|>\n%s", user))...)
	ids = append(ids, c.eos)
	return ids
}

func (c *ChatML) AppendAIOpening(roundIdx int, ids []int32) []int32 {
	return append(ids, c.encode("<|assistant|>\n")...)
}

func (c *ChatML) AppendAI(roundIdx int, ai string, ids []int32) []int32 {
	ids = c.AppendAIOpening(roundIdx, ids)
	ids = append(ids, c.encode(ai)...)
	ids = append(ids, c.eos)
	return ids
}

func init() {
	Register("chatml", NewChatML)
}
