package domain

// KeyPrefix namespaces every key the service writes.
const KeyPrefix = "gamesub:"

// VectorConfig holds internal vectorization settings, not exposed to clients.
type VectorConfig struct {
	Model               string
	Dimensions          int
	DistanceMetric      string
	Algorithm           string
	DocumentInstruction string
	QueryInstruction    string

	// HNSW graph parameters; 0 keeps the server defaults.
	HNSWM              int
	HNSWEFConstruction int
	HNSWEFRuntime      int
}

// DefaultVectorConfig returns the defaults for all-MiniLM-L6-v2 served behind an OpenAI-compatible API.
func DefaultVectorConfig() VectorConfig {
	return VectorConfig{
		Model:          "sentence-transformers/all-MiniLM-L6-v2",
		Dimensions:     384,
		DistanceMetric: "cosine",
		Algorithm:      "hnsw",
	}
}
