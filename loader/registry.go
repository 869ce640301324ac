package loader

import (
	"fmt"
	"io"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/FiditeNemini/chatllm.cpp/api"
	"github.com/FiditeNemini/chatllm.cpp/compute"
)

// DecodeConfigFunc reads a family's fixed-layout config blob starting at
// offset and returns the decoded config plus the number of bytes consumed,
// so the loader can position the tokenizer blob immediately after it.
type DecodeConfigFunc func(r io.ReaderAt, offset int64) (api.BaseConfig, int64, error)

// NewTokenizerFunc constructs a tokenizer from the tokenizer blob at
// offset, consuming at most vocabSize-dependent bytes, and reports how many
// bytes it consumed so the loader can position the tensor blob.
type NewTokenizerFunc func(r io.ReaderAt, offset int64, vocabSize int) (api.Tokenizer, int64, error)

// NewTransformerFunc constructs an unloaded Transformer for cfg. Callers
// load its parameter tensors separately via Transformer.Load.
type NewTransformerFunc func(cfg api.BaseConfig) compute.Transformer

// Entry is a dispatch-table row: everything the loader needs to construct
// a (Config, Tokenizer, Transformer) triple for one ModelType.
type Entry struct {
	Version        int32
	DecodeConfig   DecodeConfigFunc
	NewTokenizer   NewTokenizerFunc
	NewTransformer NewTransformerFunc
}

var registry = orderedmap.New[api.ModelType, Entry]()

// Register associates a model type with its dispatch entry. Panics on a
// duplicate registration, mirroring the history package's registry.
func Register(t api.ModelType, e Entry) {
	if _, ok := registry.Get(t); ok {
		panic(fmt.Sprintf("loader: model type already registered: %s", t))
	}
	registry.Set(t, e)
}

// lookup returns the entry for t, or false if unregistered.
func lookup(t api.ModelType) (Entry, bool) {
	return registry.Get(t)
}

// unregister removes a model type's dispatch entry. Test-only: production
// dispatch tables are populated once via family init() functions and never
// shrink.
func unregister(t api.ModelType) {
	registry.Delete(t)
}

// RegisteredTypes returns every registered ModelType in registration order,
// used to list known types when an unknown one is rejected.
func RegisteredTypes() []api.ModelType {
	var out []api.ModelType
	for pair := registry.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
