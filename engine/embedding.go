package engine

import (
	"fmt"

	"github.com/FiditeNemini/chatllm.cpp/api"
	"github.com/FiditeNemini/chatllm.cpp/compute"
)

// TextEmbedding runs the transformer once over inputIDs and returns its
// output as a fixed-size embedding vector. Neither the sampler, the KV
// cache shift, nor streaming is invoked.
func (m *Model) TextEmbedding(cfg api.GenerationConfig, inputIDs []int32) ([]float32, error) {
	ctx := compute.NewContext(m.memSize, m.scratchSize, m.resolveThreadHint(cfg.NumThreads, len(inputIDs)))
	defer ctx.Release()

	out, err := m.transformer.Forward(ctx, inputIDs, m.nPast+m.nPastOffset)
	if err != nil {
		return nil, fmt.Errorf("engine: text embedding forward pass: %w", err)
	}

	values := out.Values()
	if len(values) == 0 {
		return nil, fmt.Errorf("engine: text embedding produced an empty output")
	}
	shape := out.Shape()
	n := shape[len(shape)-1]
	if n <= 0 || n > len(values) {
		n = len(values)
	}
	return values[:n], nil
}

// QARank runs one forward pass and returns its scalar output as a
// relevance score. The output must be one-dimensional with length 1;
// anything else is a caller/model mismatch.
func (m *Model) QARank(cfg api.GenerationConfig, inputIDs []int32) (float32, error) {
	ctx := compute.NewContext(m.memSize, m.scratchSize, m.resolveThreadHint(cfg.NumThreads, len(inputIDs)))
	defer ctx.Release()

	out, err := m.transformer.Forward(ctx, inputIDs, m.nPast+m.nPastOffset)
	if err != nil {
		return 0, fmt.Errorf("engine: rank forward pass: %w", err)
	}

	values := out.Values()
	if len(values) != 1 {
		return 0, fmt.Errorf("engine: rank output has %d values, want a single scalar", len(values))
	}
	return values[0], nil
}
