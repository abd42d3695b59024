package models

// Identity is an enrolled person as served by the backend roster endpoint.
// The terminal holds a read-only cached copy; stale entries are tolerated
// until the next refresh.
type Identity struct {
	ID         int64       `json:"id"`
	Name       string      `json:"name"`
	Embeddings [][]float32 `json:"embeddings"`
}
