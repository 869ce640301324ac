package history

import "testing"

func toyEncode(vocab map[string]int32) func(string) []int32 {
	return func(s string) []int32 {
		if id, ok := vocab[s]; ok {
			return []int32{id}
		}
		ids := make([]int32, len(s))
		for i, r := range s {
			ids[i] = int32(r)
		}
		return ids
	}
}

func TestRegistryLookup(t *testing.T) {
	if _, ok := New("no-such-family", toyEncode(nil), 1, 2); ok {
		t.Error("New() should fail for an unregistered family")
	}

	enc, ok := New("chatml", toyEncode(nil), 1, 2)
	if !ok || enc == nil {
		t.Fatal("New(\"chatml\") should succeed")
	}
}

func TestNamesIncludesBuiltins(t *testing.T) {
	names := Names()
	want := map[string]bool{"chatml": true, "llama2": true}
	for _, n := range names {
		delete(want, n)
	}
	if len(want) != 0 {
		t.Errorf("Names() missing: %v", want)
	}
}

func TestChatMLRoundProducesNonEmptySequence(t *testing.T) {
	enc, _ := New("chatml", toyEncode(nil), 1, 2)

	var ids []int32
	ids = enc.AppendSysPrompt("You are helpful.", ids)
	ids = enc.AppendUser(0, "hi", ids)
	ids = enc.AppendAIOpening(0, ids)

	if len(ids) == 0 {
		t.Fatal("expected non-empty token sequence")
	}
	if ids[0] != 1 {
		t.Errorf("first token = %d, want BOS (1)", ids[0])
	}
}

func TestLlama2FoldsSystemPromptIntoFirstTurn(t *testing.T) {
	enc, _ := New("llama2", toyEncode(nil), 1, 2)

	var ids []int32
	ids = enc.AppendSysPrompt("be nice", ids)
	if len(ids) != 0 {
		t.Errorf("Llama2.AppendSysPrompt should not append directly, got %d ids", len(ids))
	}

	ids = enc.AppendUser(0, "hello", ids)
	if len(ids) == 0 {
		t.Fatal("AppendUser should have appended tokens")
	}
	if ids[0] != 1 {
		t.Errorf("first token = %d, want BOS (1)", ids[0])
	}
}
