package audio

import (
	"context"
	"math/rand/v2"
	"sync"
)

// Scorer analyzes a completed recording.
type Scorer interface {
	Score(ctx context.Context, rec Recording) (PronunciationScore, error)
}

// RandomScorer produces a synthetic score. It does not listen to the recording:
// a base value in [60,100] becomes the overall score and each sub-metric is the
// base plus its own perturbation in [-10,10], clamped to [0,100].
type RandomScorer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomScorer creates a randomly seeded scorer
func NewRandomScorer() *RandomScorer {
	return NewSeededRandomScorer(rand.Uint64())
}

// NewSeededRandomScorer creates a scorer with a deterministic sequence
func NewSeededRandomScorer(seed uint64) *RandomScorer {
	return &RandomScorer{rnd: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Score implements Scorer
func (s *RandomScorer) Score(ctx context.Context, rec Recording) (PronunciationScore, error) {
	if err := ctx.Err(); err != nil {
		return PronunciationScore{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	base := 60 + s.rnd.IntN(41)
	score := PronunciationScore{
		Accuracy:     base + s.perturbation(),
		Fluency:      base + s.perturbation(),
		Completeness: base + s.perturbation(),
		Overall:      base,
	}
	return score.clamped(), nil
}

func (s *RandomScorer) perturbation() int {
	return s.rnd.IntN(21) - 10
}
