package api

import "testing"

func TestHistoryFamilyKnownChatTypes(t *testing.T) {
	cases := map[ModelType]string{
		ModelInternLM:   "chatml",
		ModelInternLM2:  "chatml",
		ModelQWen:       "chatml",
		ModelQWen2:      "chatml",
		ModelLlama2:     "llama2",
		ModelCodeLlama2: "llama2",
	}
	for modelType, want := range cases {
		got, ok := modelType.HistoryFamily()
		if !ok {
			t.Errorf("HistoryFamily(%s) reported unknown, want %q", modelType, want)
			continue
		}
		if got != want {
			t.Errorf("HistoryFamily(%s) = %q, want %q", modelType, got, want)
		}
	}
}

func TestHistoryFamilyUnknownForEmbeddingTypes(t *testing.T) {
	for _, modelType := range []ModelType{ModelBGEEmbedding, ModelBGEReranker} {
		if _, ok := modelType.HistoryFamily(); ok {
			t.Errorf("HistoryFamily(%s) should be unknown for a non-chat purpose", modelType)
		}
	}
}
