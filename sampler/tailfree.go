package sampler

import "github.com/FiditeNemini/chatllm.cpp/api"

// TailFree implements tail-free sampling: softmax, sort descending, compute
// absolute second differences, normalize to a distribution (with a 1e-6
// floor added to the sum), and truncate at the first CDF >= z. Requires at
// least 3 candidates; otherwise it is a no-op pass-through over whatever
// top-k/penalty-filtered set prepare() produced.
type TailFree struct {
	NonGreedy
	z float32
}

func (t *TailFree) Sampling(logits []float32, vocabSize int) int32 {
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

	if len(scores) < 3 {
		probs := make([]float64, len(scores))
		for i, s := range scores {
			probs[i] = float64(s)
		}
		return t.draw(probs)
	}

	d2 := make([]float32, len(scores)-2)
	var sum float32
	for i := range d2 {
		v := scores[i] + scores[i+2] - 2*scores[i+1]
		if v < 0 {
			v = -v
		}
		d2[i] = v
		sum += v
	}
	sum += 1e-6

	cutoff := len(d2)
	var cumsum float32
	for i, v := range d2 {
		cumsum += v / sum
		if cumsum >= t.z {
			cutoff = i + 1
			break
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
