package sampler

import "github.com/FiditeNemini/chatllm.cpp/api"

// TopP implements nucleus sampling: after top-k, sort descending, softmax
// with max-subtraction, walk the cumulative sum, truncate at the first
// index where cumsum >= top_p, then softmax again on the truncated set.
type TopP struct {
	NonGreedy
	topP float32
}

func (t *TopP) Sampling(logits []float32, vocabSize int) int32 {
	t.prepare(logits, vocabSize)
	if len(t.tokenScores) == 0 {
		return api.Abort
	}

	sortDescending(t.tokenScores)

	scores := make([]float32, len(t.tokenScores))
	for i, ts := range t.tokenScores {
		scores[i] = ts.Score
	}
	softmaxInplace(scores)

	cutoff := len(scores)
	if t.topP > 0 && t.topP < 1 {
		var cumsum float32
		for i, p := range scores {
			cumsum += p
			if cumsum >= t.topP {
				cutoff = i + 1
				break
			}
		}
	}

	t.tokenScores = t.tokenScores[:cutoff]
	scores = scores[:cutoff]
	softmaxInplace(scores)

	probs := make([]float64, len(scores))
	for i, s := range scores {
		probs[i] = float64(s)
	}

	return t.draw(probs)
}
