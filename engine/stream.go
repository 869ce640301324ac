package engine

// Streamer receives sampled tokens as they are produced, in sampling
// order. Put is never called for prompt tokens or for a popped terminal
// token. End is called exactly once, after the loop exits, whether it
// completed, aborted, or errored.
type Streamer interface {
	Put(tokenID int32) error
	End() error
}

// CollectStreamer accumulates every streamed token into a slice. Useful
// for callers that want the full output and don't need incremental
// delivery.
type CollectStreamer struct {
	Tokens []int32
}

func (s *CollectStreamer) Put(tokenID int32) error {
	s.Tokens = append(s.Tokens, tokenID)
	return nil
}

func (s *CollectStreamer) End() error { return nil }
