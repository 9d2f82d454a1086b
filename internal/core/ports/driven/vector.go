package driven

// VectorIndex provides nearest-neighbour search over chunk embeddings.
// Positions are the chunk insertion order, starting at 0.
type VectorIndex interface {
	// Add appends a vector and returns its position.
	Add(embedding []float32) (int, error)

	// Search finds the k most similar vectors to the query.
	// Hits are ordered by descending similarity, ties by ascending position.
	Search(query []float32, k int) ([]VectorHit, error)

	// Len returns the number of stored vectors.
	Len() int

	// Dimensions returns the fixed vector size.
	Dimensions() int
}

// VectorHit represents a similarity search result.
type VectorHit struct {
	// Position is the matched vector's insertion position.
	Position int

	// Similarity is the cosine similarity score (-1 to 1).
	Similarity float64
}
