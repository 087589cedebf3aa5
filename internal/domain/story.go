package domain

import "time"

// Story represents an ingested user story with its embedding, stored in pgvector.
// Stories are immutable after ingestion; deletion is an administrative operation
// outside this service.
type Story struct {
	StoryID     string    `json:"story_id"    db:"story_id"`
	ProjectID   string    `json:"project_id"  db:"project_id"`
	Description string    `json:"story_description" db:"story_description"`
	DocText     string    `json:"-"           db:"doc_content_text"`
	Filename    string    `json:"filename"    db:"filename"`
	Source      string    `json:"source"      db:"source"`
	Vector      []float32 `json:"-"           db:"vector"`
	EmbeddedAt  time.Time `json:"embedding_timestamp" db:"embedding_timestamp"`
}

// StoryHit is returned by semantic search, including the cosine distance
// to the query vector (lower is closer).
type StoryHit struct {
	Story
	Distance float64 `json:"distance"`
}

// HasVector reports whether the story carries a usable embedding.
func (s *Story) HasVector() bool {
	return len(s.Vector) > 0
}
