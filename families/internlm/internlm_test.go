package internlm

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/FiditeNemini/chatllm.cpp/api"
	"github.com/FiditeNemini/chatllm.cpp/loader"
)

func buildModelFile(t *testing.T, vocabSize int32, pieces []string) []byte {
	t.Helper()
	var buf bytes.Buffer
	buf.WriteString("ggml")
	binary.Write(&buf, binary.LittleEndian, int32(api.ModelInternLM))
	binary.Write(&buf, binary.LittleEndian, int32(1))

	binary.Write(&buf, binary.LittleEndian, vocabSize)
	binary.Write(&buf, binary.LittleEndian, int32(8))  // hidden_size
	binary.Write(&buf, binary.LittleEndian, int32(2))  // num_hidden_layers
	binary.Write(&buf, binary.LittleEndian, int32(4))  // num_attn_heads
	binary.Write(&buf, binary.LittleEndian, int32(64)) // max_length
	buf.Write([]byte{0x00, 0x3c})                       // fp16 1.0

	binary.Write(&buf, binary.LittleEndian, int32(len(pieces)))
	for _, p := range pieces {
		binary.Write(&buf, binary.LittleEndian, int32(len(p)))
		buf.WriteString(p)
	}
	return buf.Bytes()
}

func TestLoadBuildsRunnableModel(t *testing.T) {
	data := buildModelFile(t, 16, []string{"hello", "world"})
	r := bytes.NewReader(data)

	result, err := loader.Load(r)
	if err != nil {
		t.Fatalf("loader.Load() error = %v", err)
	}
	if result.Config.VocabSize != 16 {
		t.Errorf("VocabSize = %d, want 16", result.Config.VocabSize)
	}
	if result.Config.MaxLength != 64 {
		t.Errorf("MaxLength = %d, want 64", result.Config.MaxLength)
	}

	if got := result.Tokenizer.Encode("hello world")[0]; got != 0 {
		t.Errorf("Encode(hello)[0] = %d, want 0", got)
	}
	if got := result.Tokenizer.Decode([]int32{0, 1}); got != "hello world" {
		t.Errorf("Decode([0,1]) = %q, want %q", got, "hello world")
	}

	out, err := result.Transformer.Forward(nil, []int32{0}, 0)
	if err != nil {
		t.Fatalf("Forward() error = %v", err)
	}
	if len(out.Values()) != 16 {
		t.Errorf("Forward() produced %d logits, want 16", len(out.Values()))
	}
}

func TestDecodeConfigAppliesFP16LogitScale(t *testing.T) {
	data := buildModelFile(t, 4, nil)
	cfg, consumed, err := decodeConfig(bytes.NewReader(data), 12)
	if err != nil {
		t.Fatalf("decodeConfig() error = %v", err)
	}
	if consumed != configLayout {
		t.Errorf("consumed = %d, want %d", consumed, configLayout)
	}
	if cfg.LogitScale < 0.99 || cfg.LogitScale > 1.01 {
		t.Errorf("LogitScale = %f, want ~1.0", cfg.LogitScale)
	}
}
