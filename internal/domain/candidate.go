package domain

// Candidate is a per-query retrieval result. It is never persisted.
type Candidate struct {
	Chunk Chunk
	Video Video

	DenseRank    int // 1-based, 0 when absent from the dense list
	DenseScore   float64
	LexicalRank  int // 1-based, 0 when absent from the lexical list
	LexicalScore float64
	FusedScore   float64
	RerankScore  *float64
	FinalRank    int
}

// Score returns the most refined relevance score available.
func (c Candidate) Score() float64 {
	if c.RerankScore != nil {
		return *c.RerankScore
	}
	return c.FusedScore
}
