package db

// KNNQuery asks for the K items nearest to Vector.
type KNNQuery struct {
	Index  string
	Vector []float32
	K      int
}

// TextQuery asks for the K best BM25 matches of Terms; any term may match.
type TextQuery struct {
	Index string
	Terms []string
	K     int
}

// Hit is one matching item, best first. Dense scores are cosine
// similarities, text scores are raw BM25.
type Hit struct {
	Key   string
	Path  string
	Score float64
}
