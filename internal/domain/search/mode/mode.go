package mode

// Mode is the search strategy.
type Mode string

// Search mode constants.
const (
	// Semantic ranks by embedding similarity only.
	Semantic Mode = "semantic"
	// Hybrid reserves most of the quota for semantic hits and fills the rest lexically.
	Hybrid Mode = "hybrid"
	// Adaptive re-scores semantic hits by intent tags.
	Adaptive Mode = "adaptive"
	// Lexical matches name/description substrings, ranked by rating.
	Lexical Mode = "lexical"
)

// IsValid checks if the mode is one of the supported values.
func (m Mode) IsValid() bool {
	return m == Semantic || m == Hybrid || m == Adaptive || m == Lexical
}

// NeedsModel reports whether the mode embeds the query.
func (m Mode) NeedsModel() bool {
	return m != Lexical
}
