package alg

import (
	"math"

	"github.com/emirpasic/gods/trees/binaryheap"
)

// compareCandidates orders by delay, then keeps the current host among
// equally fast servers, then prefers more headroom, then the lower id.
func compareCandidates(a, b interface{}) int {
	candidateA := a.(*Candidate)
	candidateB := b.(*Candidate)

	if math.Abs(candidateA.Delay-candidateB.Delay) > DELAY_TOLERANCE {
		if candidateA.Delay < candidateB.Delay {
			return -1
		}
		return 1
	}

	if candidateA.Current != candidateB.Current {
		if candidateA.Current {
			return -1
		}
		return 1
	}

	if math.Abs(candidateA.Headroom-candidateB.Headroom) > HEADROOM_TOLERANCE {
		if candidateA.Headroom > candidateB.Headroom {
			return -1
		}
		return 1
	}

	switch {
	case candidateA.Server.Id < candidateB.Server.Id:
		return -1
	case candidateA.Server.Id > candidateB.Server.Id:
		return 1
	}

	return 0
}

const (
	DELAY_TOLERANCE    float64 = 1e-9
	HEADROOM_TOLERANCE float64 = 1e-9
)

// SelectPlacement picks the best candidate, nil for an empty set.
func SelectPlacement(candidates []*Candidate) *Candidate {
	ordererCandidates := binaryheap.NewWith(compareCandidates)
	for _, candidate := range candidates {
		ordererCandidates.Push(candidate)
	}

	best, ok := ordererCandidates.Pop()
	if !ok {
		return nil
	}

	return best.(*Candidate)
}

// RankCandidates returns the candidates from best to worst.
func RankCandidates(candidates []*Candidate) []*Candidate {
	ordererCandidates := binaryheap.NewWith(compareCandidates)
	for _, candidate := range candidates {
		ordererCandidates.Push(candidate)
	}

	ranked := make([]*Candidate, 0, len(candidates))
	for !ordererCandidates.Empty() {
		candidate, _ := ordererCandidates.Pop()
		ranked = append(ranked, candidate.(*Candidate))
	}

	return ranked
}
