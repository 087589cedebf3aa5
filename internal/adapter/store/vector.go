package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
)

// VectorStore handles pgvector-specific operations for story embeddings.
type VectorStore struct {
	store     *PostgresStore
	dimension int
}

// NewVectorStore creates a vector store backed by the given Postgres store.
func NewVectorStore(store *PostgresStore, dimension int) *VectorStore {
	return &VectorStore{store: store, dimension: dimension}
}

const storyColumns = `story_id, project_id, COALESCE(story_description, ''),
	COALESCE(doc_content_text, ''), COALESCE(filename, ''), source, COALESCE(vector::text, ''), embedding_timestamp`

// AddStories persists stories with their vectors in one transaction.
func (v *VectorStore) AddStories(ctx context.Context, stories []domain.Story) error {
	if len(stories) == 0 {
		return nil
	}

	tx, err := v.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin tx: %v", port.ErrDatabase, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO stories (story_id, project_id, story_description, doc_content_text, filename, source, vector)
		VALUES ($1, $2, $3, $4, $5, $6, $7::vector)`)
	if err != nil {
		return fmt.Errorf("%w: prepare: %v", port.ErrDatabase, err)
	}
	defer stmt.Close()

	for _, s := range stories {
		if _, err := stmt.ExecContext(ctx,
			s.StoryID, s.ProjectID, s.Description, s.DocText, s.Filename, s.Source, vectorToString(s.Vector),
		); err != nil {
			return fmt.Errorf("%w: insert story %s: %v", port.ErrDatabase, s.StoryID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit stories: %v", port.ErrDatabase, err)
	}
	return nil
}

// GetStory returns one story by id, or port.ErrStoryNotFound.
func (v *VectorStore) GetStory(ctx context.Context, storyID string) (*domain.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE story_id = $1`
	return v.scanStory(v.store.db.QueryRowContext(ctx, query, storyID), storyID)
}

// GetStoryInProject returns one story by id scoped to a project, or
// port.ErrStoryNotFound when the story does not exist within that project.
func (v *VectorStore) GetStoryInProject(ctx context.Context, storyID, projectID string) (*domain.Story, error) {
	query := `SELECT ` + storyColumns + ` FROM stories WHERE story_id = $1 AND project_id = $2`
	return v.scanStory(v.store.db.QueryRowContext(ctx, query, storyID, projectID), storyID)
}

func (v *VectorStore) scanStory(row *sql.Row, storyID string) (*domain.Story, error) {
	var (
		s      domain.Story
		vector string
	)
	err := row.Scan(&s.StoryID, &s.ProjectID, &s.Description, &s.DocText, &s.Filename, &s.Source, &vector, &s.EmbeddedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", port.ErrStoryNotFound, storyID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get story %s: %v", port.ErrDatabase, storyID, err)
	}
	s.Vector, err = vectorFromString(vector)
	if err != nil {
		return nil, fmt.Errorf("%w: story %s: %v", port.ErrDatabase, storyID, err)
	}
	return &s, nil
}

// SearchSimilar returns up to limit stories ranked by ascending cosine
// distance to the query vector. An empty projectID searches all projects.
// Equal-distance ordering is whatever Postgres returns.
func (v *VectorStore) SearchSimilar(ctx context.Context, queryVector []float32, limit int, projectID string) ([]domain.StoryHit, error) {
	vectorStr := vectorToString(queryVector)

	query := `SELECT story_id, project_id, COALESCE(story_description, ''),
	                 COALESCE(doc_content_text, ''), COALESCE(filename, ''), source, embedding_timestamp,
	                 vector <=> $1::vector AS distance
	          FROM stories`
	args := []interface{}{vectorStr}
	if projectID != "" {
		query += ` WHERE project_id = $2`
		args = append(args, projectID)
	}
	query += fmt.Sprintf(` ORDER BY distance LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := v.store.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search similar: %v", port.ErrDatabase, err)
	}
	defer rows.Close()

	var results []domain.StoryHit
	for rows.Next() {
		var hit domain.StoryHit
		if err := rows.Scan(
			&hit.StoryID, &hit.ProjectID, &hit.Description,
			&hit.DocText, &hit.Filename, &hit.Source, &hit.EmbeddedAt, &hit.Distance,
		); err != nil {
			return nil, fmt.Errorf("%w: scan hit: %v", port.ErrDatabase, err)
		}
		results = append(results, hit)
	}
	return results, rows.Err()
}

// ListStories scans all stories, vectors included.
func (v *VectorStore) ListStories(ctx context.Context) ([]domain.Story, error) {
	query := `SELECT story_id, project_id, COALESCE(story_description, ''),
	                 COALESCE(doc_content_text, ''), COALESCE(filename, ''), source,
	                 COALESCE(vector::text, ''), embedding_timestamp
	          FROM stories ORDER BY embedding_timestamp`

	rows, err := v.store.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%w: list stories: %v", port.ErrDatabase, err)
	}
	defer rows.Close()

	var stories []domain.Story
	for rows.Next() {
		var (
			s      domain.Story
			vector string
		)
		if err := rows.Scan(&s.StoryID, &s.ProjectID, &s.Description, &s.DocText, &s.Filename, &s.Source, &vector, &s.EmbeddedAt); err != nil {
			return nil, fmt.Errorf("%w: scan story: %v", port.ErrDatabase, err)
		}
		if s.Vector, err = vectorFromString(vector); err != nil {
			return nil, fmt.Errorf("%w: story %s: %v", port.ErrDatabase, s.StoryID, err)
		}
		stories = append(stories, s)
	}
	return stories, rows.Err()
}

// vectorToString converts a float32 slice to pgvector string format: [0.1,0.2,0.3].
func vectorToString(v []float32) string {
	parts := make([]string, len(v))
	for i, val := range v {
		parts[i] = fmt.Sprintf("%g", val)
	}
	return "[" + strings.Join(parts, ",") + "]"
}

// vectorFromString parses the pgvector text format back into a float32 slice.
func vectorFromString(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	s = strings.TrimPrefix(s, "[")
	s = strings.TrimSuffix(s, "]")
	if s == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("parse vector component %d: %w", i, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
