package acoustic

import (
	"fmt"

	"github.com/ieee0824/sphinx-go/logmath"
)

// StateSegment is the span of one emitting HMM state in an alignment.
type StateSegment struct {
	State int     // emitting state index, 1..NumEmittingStates
	Start int     // inclusive
	End   int     // exclusive
	Score float64 // acoustic log likelihood including transitions
}

// PhoneSegment is the span of one phone in an alignment.
type PhoneSegment struct {
	Phone  Phone
	Start  int // inclusive
	End    int // exclusive
	Score  float64
	States []StateSegment
}

// ForcedAlign performs Viterbi forced alignment of a feature sequence
// against a known phone sequence. Every phone occupies at least one frame
// per emitting state it visits and the phones appear in order.
func ForcedAlign(am *Model, phones []Phone, features [][]float64) ([]PhoneSegment, error) {
	T := len(features)
	N := len(phones)
	if N == 0 {
		return nil, fmt.Errorf("empty phone sequence")
	}
	if T < N*NumEmittingStates {
		return nil, fmt.Errorf("too few frames (%d) for %d phones", T, N)
	}

	hmms := make([]*PhoneHMM, N)
	for i, ph := range phones {
		h, ok := am.Phones[ph]
		if !ok {
			return nil, fmt.Errorf("phone %q not in acoustic model", ph)
		}
		if h.States[1] == nil {
			return nil, fmt.Errorf("phone %q has no emitting states", ph)
		}
		hmms[i] = h
	}

	S := N * NumEmittingStates

	// emit[t][j], filled state-outer so each GMM stays hot across frames.
	emit := newMat(T, S)
	col := make([]float64, T)
	for p := 0; p < N; p++ {
		for s := 1; s <= NumEmittingStates; s++ {
			j := p*NumEmittingStates + (s - 1)
			hmms[p].States[s].GMM.LogProbBatch(features, col)
			for t := 0; t < T; t++ {
				emit[t][j] = col[t]
			}
		}
	}

	exitTrans := make([]float64, N)
	for p := range hmms {
		exitTrans[p] = hmms[p].ExitLog()
	}

	// trans returns the log probability of moving from composite state i to j.
	trans := func(i, j int) float64 {
		p, s := j/NumEmittingStates, j%NumEmittingStates+1
		switch {
		case i == j:
			return hmms[p].TransLog[s][s]
		case i == j-1 && s >= 2:
			return hmms[p].TransLog[s-1][s]
		case i == j-1 && s == 1:
			return exitTrans[p-1]
		}
		return logmath.LogZero
	}

	prev := make([]float64, S)
	curr := make([]float64, S)
	for j := range prev {
		prev[j] = logmath.LogZero
	}
	bp := make([][]int32, T)
	for t := range bp {
		bp[t] = make([]int32, S)
	}

	prev[0] = hmms[0].TransLog[0][1] + emit[0][0]
	for t := 1; t < T; t++ {
		for j := 0; j < S; j++ {
			best := prev[j] + trans(j, j)
			bestPrev := int32(j)
			if j > 0 {
				if score := prev[j-1] + trans(j-1, j); score > best {
					best = score
					bestPrev = int32(j - 1)
				}
			}
			curr[j] = logmath.LogZero
			if best > logmath.LogZero+1 {
				curr[j] = best + emit[t][j]
			}
			bp[t][j] = bestPrev
		}
		prev, curr = curr, prev
	}

	// The path must end in the last emitting state of the last phone.
	last := S - 1
	if prev[last] <= logmath.LogZero+1 {
		return nil, fmt.Errorf("forced alignment failed: no valid path")
	}

	path := make([]int, T)
	path[T-1] = last
	for t := T - 1; t > 0; t-- {
		path[t-1] = int(bp[t][path[t]])
	}

	// Per-frame score increments along the path.
	inc := make([]float64, T)
	inc[0] = hmms[0].TransLog[0][1] + emit[0][0]
	for t := 1; t < T; t++ {
		inc[t] = trans(path[t-1], path[t]) + emit[t][path[t]]
	}

	var result []PhoneSegment
	for t := 0; t < T; t++ {
		p, s := path[t]/NumEmittingStates, path[t]%NumEmittingStates+1
		if t == 0 || path[t-1]/NumEmittingStates != p {
			result = append(result, PhoneSegment{Phone: phones[p], Start: t})
		}
		ps := &result[len(result)-1]
		ps.End = t + 1
		ps.Score += inc[t]
		if n := len(ps.States); n == 0 || ps.States[n-1].State != s {
			ps.States = append(ps.States, StateSegment{State: s, Start: t})
		}
		ss := &ps.States[len(ps.States)-1]
		ss.End = t + 1
		ss.Score += inc[t]
	}
	return result, nil
}
