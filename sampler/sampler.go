// Package sampler implements the greedy, top-p (nucleus) and tail-free
// sampling strategies the generation engine draws the next token id from.
// A fresh Sampler is constructed for every generate() call and discarded
// at return.
package sampler

import (
	"math"
	"sort"

	"github.com/emirpasic/gods/v2/sets/hashset"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/FiditeNemini/chatllm.cpp/api"
)

// Sampler is implemented by every variant: Greedy, TopP, TailFree.
type Sampler interface {
	// Seed fixes the RNG used by any variant that draws randomly;
	// Greedy ignores it.
	Seed(seed uint64)
	// Reset clears per-generation state (the emitted-id set). Called
	// once per generate() call before the first sampling step.
	Reset()
	// Sampling returns the next token id given the full logit vector, or
	// api.Abort if no candidate remains after filtering.
	Sampling(logits []float32, vocabSize int) int32
}

// New constructs the Sampler variant requested by cfg. do_sample=false
// always forces Greedy regardless of cfg.Sampling.
func New(cfg api.GenerationConfig) Sampler {
	if !cfg.DoSample {
		return &Greedy{}
	}

	base := newNonGreedy(cfg)
	switch cfg.Sampling {
	case api.SamplingGreedy:
		return &Greedy{}
	case api.SamplingTFS:
		return &TailFree{NonGreedy: base, z: cfg.TFSZ}
	case api.SamplingTopP:
		fallthrough
	default:
		return &TopP{NonGreedy: base, topP: cfg.TopP}
	}
}

// Greedy always returns the argmax logit. It carries no state.
type Greedy struct{}

func (g *Greedy) Seed(uint64) {}
func (g *Greedy) Reset()      {}

func (g *Greedy) Sampling(logits []float32, vocabSize int) int32 {
	if vocabSize == 0 || len(logits) == 0 {
		return api.Abort
	}
	best := 0
	bestScore := logits[0]
	for i := 1; i < vocabSize && i < len(logits); i++ {
		if logits[i] > bestScore {
			bestScore = logits[i]
			best = i
		}
	}
	return int32(best)
}

// NonGreedy is the shared base for TopP and TailFree: temperature scaling,
// presence penalty, top-k pre-filter, and the final weighted draw over the
// variant-produced probability distribution.
type NonGreedy struct {
	invTemp            float32
	temperatureEnabled bool

	presencePenalty        float32
	invPresencePenalty     float32
	presencePenaltyEnabled bool

	topK int

	rng *rand.Rand

	tokenScores []api.TokenIdScore
	emitted     *hashset.Set[int32]
}

func newNonGreedy(cfg api.GenerationConfig) NonGreedy {
	n := NonGreedy{
		topK:                   cfg.TopK,
		temperatureEnabled:     cfg.TemperatureEnabled(),
		presencePenaltyEnabled: cfg.PresencePenaltyEnabled(),
		emitted:                hashset.New[int32](),
		rng:                    rand.New(rand.NewSource(1)),
	}
	if n.temperatureEnabled {
		n.invTemp = 1.0 / cfg.Temperature
	}
	if n.presencePenaltyEnabled {
		n.presencePenalty = cfg.PresencePenalty
		n.invPresencePenalty = 1.0 / cfg.PresencePenalty
	}
	return n
}

func (n *NonGreedy) Seed(seed uint64) {
	n.rng = rand.New(rand.NewSource(seed))
}

func (n *NonGreedy) Reset() {
	n.emitted = hashset.New[int32]()
}

// prepare applies temperature scaling, presence penalty, and the top-k
// pre-filter, leaving n.tokenScores holding the surviving candidates.
func (n *NonGreedy) prepare(logits []float32, vocabSize int) {
	n.tokenScores = n.tokenScores[:0]
	for i := 0; i < vocabSize && i < len(logits); i++ {
		score := logits[i]

		if n.temperatureEnabled {
			score *= n.invTemp
		}

		if n.presencePenaltyEnabled && n.emitted.Contains(int32(i)) {
			// Keep the sign-correct direction regardless of logit
			// polarity: a positive logit is divided
			// down, a non-positive logit is multiplied more negative.
			if score > 0 {
				score *= n.invPresencePenalty
			} else {
				score *= n.presencePenalty
			}
		}

		n.tokenScores = append(n.tokenScores, api.TokenIdScore{ID: int32(i), Score: score})
	}

	if n.topK > 0 && n.topK < len(n.tokenScores) {
		n.tokenScores = topKSelect(n.tokenScores, n.topK)
	}
}

// draw performs a weighted random pick over probs (aligned by index with
// n.tokenScores), inserts the chosen id into the emitted set, and returns
// it. Returns api.Abort if probs is empty.
func (n *NonGreedy) draw(probs []float64) int32 {
	if len(probs) == 0 {
		return api.Abort
	}

	cat := distuv.NewCategorical(probs, n.rng)
	idx := int(cat.Rand())
	if idx < 0 || idx >= len(n.tokenScores) {
		idx = len(n.tokenScores) - 1
	}

	id := n.tokenScores[idx].ID
	n.emitted.Add(id)
	return id
}

// softmaxInplace computes exp(s - max(s)) normalized by the sum, the
// numerically stable softmax formulation.
func softmaxInplace(scores []float32) {
	if len(scores) == 0 {
		return
	}
	f := make([]float64, len(scores))
	for i, s := range scores {
		f[i] = float64(s)
	}
	max := floats.Max(f)
	for i := range f {
		f[i] = math.Exp(f[i] - max)
	}
	sum := floats.Sum(f)
	for i := range scores {
		scores[i] = float32(f[i] / sum)
	}
}

// topKSelect returns the top-k highest-scoring entries, unordered within
// the top-k.
// Implemented with a bounded min-heap so the filter is O(n log k).
func topKSelect(scores []api.TokenIdScore, k int) []api.TokenIdScore {
	h := newBoundedMaxHeap(k)
	for _, ts := range scores {
		h.offer(ts)
	}
	return h.drain()
}

// sortDescending sorts scores by Score descending, ties broken by the
// original id order.
func sortDescending(scores []api.TokenIdScore) {
	sort.SliceStable(scores, func(i, j int) bool {
		if scores[i].Score != scores[j].Score {
			return scores[i].Score > scores[j].Score
		}
		return scores[i].ID < scores[j].ID
	})
}
