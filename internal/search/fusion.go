package search

import "sort"

// DefaultRRFK is the rank constant of reciprocal rank fusion.
const DefaultRRFK = 60

// Fused is one fused result. Ranks holds the 1-based rank in each input
// list, or 0 when the chunk was absent from that list.
type Fused struct {
	ChunkID string
	Score   float64
	Ranks   []int
}

// FuseRRF merges ranked lists of chunk ids with reciprocal rank fusion:
// score(d) = sum over lists of 1/(k + rank(d)). Results are ordered by score
// descending, then by chunk id ascending. Duplicates within a list count once,
// at their best rank.
func FuseRRF(k int, lists ...[]string) []Fused {
	if k <= 0 {
		k = DefaultRRFK
	}

	byID := make(map[string]*Fused)
	for li, list := range lists {
		for i, id := range list {
			f, ok := byID[id]
			if !ok {
				f = &Fused{ChunkID: id, Ranks: make([]int, len(lists))}
				byID[id] = f
			}
			if f.Ranks[li] != 0 {
				continue
			}
			rank := i + 1
			f.Ranks[li] = rank
			f.Score += 1.0 / float64(k+rank)
		}
	}

	out := make([]Fused, 0, len(byID))
	for _, f := range byID {
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ChunkID < out[j].ChunkID
	})
	return out
}
