package types

// SearchResult is a single fused search result.
type SearchResult struct {
	ID   string
	Rank int // position in the result set, 1-based

	// Scoring. Score is the weighted fusion of VectorScore and
	// LexicalScore; VectorScore is 1/(1+distance), LexicalScore is the
	// BM25 score normalized against the best candidate for the query.
	Score        float64
	VectorScore  float64
	LexicalScore float64

	Content string
	Meta    Metadata
}

// Validate checks if the search result is well-formed.
func (sr *SearchResult) Validate() error {
	if sr.ID == "" {
		return ErrInvalidSymbolID
	}

	if sr.Rank < 1 {
		return ErrInvalidRank
	}

	if sr.Score < 0 || sr.Score > 1 {
		return ErrInvalidScore
	}

	if sr.Content == "" {
		return ErrEmptyContent
	}

	return nil
}
