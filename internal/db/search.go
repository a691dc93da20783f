package db

// KNNQuery is the input for vector similarity search.
type KNNQuery struct {
	IndexName   string
	VectorField string // defaults to "embedding"
	Vector      []float32
	K           int
	// Distance is the metric the field was indexed with; it selects how raw
	// scores become similarities. Empty means COSINE.
	Distance DistanceMetric
	// EFRuntime widens the HNSW candidate list for this query. 0 keeps the index default.
	EFRuntime    int
	ReturnFields []string
}

// SearchResult is the output of a search operation.
type SearchResult struct {
	Total   int
	Entries []SearchEntry
}

// SearchEntry is a single hash hit from a search.
type SearchEntry struct {
	Key    string
	Score  float64 // similarity in [0,1]
	Fields map[string]string
}

// Similarity converts a distance reported by FT.SEARCH into a similarity in [0,1].
// Vectors are assumed unit length: L2 reports the squared distance (2 - 2cos) and
// IP reports 1 - dot.
func (m DistanceMetric) Similarity(d float64) float64 {
	s := 1 - d
	if m == DistanceL2 {
		s = 1 - d/2
	}
	return min(1, max(0, s))
}
