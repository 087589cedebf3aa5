package store

import (
	"context"
	"fmt"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
)

// schema creates all tables and indexes if they do not exist. The vector
// dimension placeholder is filled in at bootstrap from configuration.
const schema = `
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS stories (
	story_id TEXT PRIMARY KEY,
	project_id TEXT NOT NULL,
	story_description TEXT,
	doc_content_text TEXT,
	filename TEXT,
	source TEXT DEFAULT 'backend',
	vector vector(%d),
	embedding_timestamp TIMESTAMP WITHOUT TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_stories_project ON stories(project_id);

CREATE TABLE IF NOT EXISTS test_case_runs (
	project_id TEXT,
	run_id UUID PRIMARY KEY,
	story_id TEXT NOT NULL,
	story_description TEXT,
	created_on TIMESTAMP WITHOUT TIME ZONE,
	test_case_json JSONB,
	total_test_cases INTEGER,
	test_case_generated BOOLEAN,
	impacted_test_case_generated BOOLEAN DEFAULT FALSE,
	source TEXT DEFAULT 'backend',
	has_impacts BOOLEAN DEFAULT FALSE,
	latest_impact_id UUID,
	CONSTRAINT unique_story_id UNIQUE(story_id)
);

CREATE INDEX IF NOT EXISTS idx_test_case_runs_story_id ON test_case_runs(story_id);
CREATE INDEX IF NOT EXISTS idx_test_case_runs_source ON test_case_runs(source);
CREATE INDEX IF NOT EXISTS idx_test_case_runs_impacted
	ON test_case_runs(impacted_test_case_generated)
	WHERE impacted_test_case_generated = TRUE;

CREATE TABLE IF NOT EXISTS test_case_impacts (
	impact_id UUID PRIMARY KEY,
	project_id TEXT NOT NULL,
	new_story_id TEXT NOT NULL,
	original_story_id TEXT NOT NULL,
	original_test_case_id TEXT NOT NULL,
	modified_test_case_id TEXT NOT NULL,
	original_run_id UUID NOT NULL,
	impact_created_on TIMESTAMP WITHOUT TIME ZONE DEFAULT CURRENT_TIMESTAMP,
	source TEXT DEFAULT 'backend',
	similarity_score FLOAT,
	impact_analysis_json JSONB NOT NULL,
	previous_impact_id UUID,
	impact_version INT DEFAULT 1,
	CONSTRAINT fk_original_story
		FOREIGN KEY(original_story_id)
		REFERENCES test_case_runs(story_id)
		ON DELETE CASCADE,
	CONSTRAINT fk_original_run
		FOREIGN KEY(original_run_id)
		REFERENCES test_case_runs(run_id)
		ON DELETE CASCADE,
	CONSTRAINT fk_previous_impact
		FOREIGN KEY(previous_impact_id)
		REFERENCES test_case_impacts(impact_id)
		ON DELETE SET NULL
);

CREATE INDEX IF NOT EXISTS idx_test_case_impacts_original_story ON test_case_impacts(original_story_id);
CREATE INDEX IF NOT EXISTS idx_test_case_impacts_new_story ON test_case_impacts(new_story_id);
CREATE INDEX IF NOT EXISTS idx_test_case_impacts_project ON test_case_impacts(project_id);
CREATE INDEX IF NOT EXISTS idx_test_case_impacts_chain ON test_case_impacts(previous_impact_id);
`

// EnsureSchema creates the database structures for the given embedding dimension.
func (s *PostgresStore) EnsureSchema(ctx context.Context, dimension int) error {
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf(schema, dimension)); err != nil {
		return fmt.Errorf("%w: ensure schema: %v", port.ErrDatabase, err)
	}
	return nil
}
