package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/domain"
	"github.com/G-Dillep/Testcase-Generator-by-innova/internal/port"
)

// PostgresStore handles all relational database operations for generated
// test-case runs and impact records.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore opens a connection and returns a store instance.
func NewPostgresStore(databaseURL string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close closes the database connection.
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by the vector store.
func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

// --- Test-case runs ---

const runColumns = `run_id, project_id, story_id, COALESCE(story_description, ''), created_on,
	test_case_json, total_test_cases, test_case_generated, has_impacts, latest_impact_id, source`

// UpsertRun inserts a run, or replaces the payload of the existing run for
// the same story. The unique constraint on story_id guarantees exactly one
// authoritative row per story; on replacement the original run_id is kept so
// existing impact records stay linked, and impact flags are reset.
func (s *PostgresStore) UpsertRun(ctx context.Context, run *domain.TestCaseRun) (string, error) {
	query := `
		INSERT INTO test_case_runs (
			run_id, project_id, story_id, story_description, created_on,
			test_case_json, total_test_cases, test_case_generated, source
		) VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7, $8, $9)
		ON CONFLICT (story_id) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			story_description = EXCLUDED.story_description,
			created_on = EXCLUDED.created_on,
			test_case_json = EXCLUDED.test_case_json,
			total_test_cases = EXCLUDED.total_test_cases,
			test_case_generated = EXCLUDED.test_case_generated,
			impacted_test_case_generated = FALSE,
			has_impacts = FALSE,
			latest_impact_id = NULL,
			source = EXCLUDED.source
		RETURNING run_id`

	var runID string
	err := s.db.QueryRowContext(ctx, query,
		run.RunID, run.ProjectID, run.StoryID, run.StoryDescription, run.CreatedOn,
		string(run.Suite), run.TotalTestCases, run.Generated, run.Source,
	).Scan(&runID)
	if err != nil {
		return "", fmt.Errorf("%w: upsert run: %v", port.ErrDatabase, err)
	}
	return runID, nil
}

// GetRunByStoryID returns the authoritative run for a story, or
// port.ErrTestCasesNotFound when none exists.
func (s *PostgresStore) GetRunByStoryID(ctx context.Context, storyID string) (*domain.TestCaseRun, error) {
	query := `SELECT ` + runColumns + ` FROM test_case_runs WHERE story_id = $1`

	var (
		run   domain.TestCaseRun
		suite []byte
	)
	err := s.db.QueryRowContext(ctx, query, storyID).Scan(
		&run.RunID, &run.ProjectID, &run.StoryID, &run.StoryDescription, &run.CreatedOn,
		&suite, &run.TotalTestCases, &run.Generated, &run.HasImpacts, &run.LatestImpactID, &run.Source,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: story %s", port.ErrTestCasesNotFound, storyID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get run for story %s: %v", port.ErrDatabase, storyID, err)
	}
	run.Suite = json.RawMessage(suite)
	return &run, nil
}

// ListGeneratedStoryIDs returns the set of story ids that already have a run.
func (s *PostgresStore) ListGeneratedStoryIDs(ctx context.Context) (map[string]struct{}, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT story_id FROM test_case_runs`)
	if err != nil {
		return nil, fmt.Errorf("%w: list generated story ids: %v", port.ErrDatabase, err)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan story id: %v", port.ErrDatabase, err)
		}
		ids[id] = struct{}{}
	}
	return ids, rows.Err()
}

// --- Impact records ---

// StoreImpacts persists every impacted test case of one candidate analysis
// inside a single transaction: resolve the candidate's run id, insert one
// impact record per entry (chained to any previous impact on the same test
// case), and flag the run row with the latest impact id. Returns the number
// of impacts stored.
func (s *PostgresStore) StoreImpacts(
	ctx context.Context,
	projectID, newStoryID, originalStoryID string,
	similarityScore float64,
	analysis *domain.ImpactAnalysis,
) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("%w: begin tx: %v", port.ErrDatabase, err)
	}
	defer tx.Rollback()

	var originalRunID string
	err = tx.QueryRowContext(ctx,
		`SELECT run_id FROM test_case_runs WHERE story_id = $1 AND project_id = $2`,
		originalStoryID, projectID,
	).Scan(&originalRunID)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: no run id for story %s in project %s", port.ErrDatabase, originalStoryID, projectID)
	}
	if err != nil {
		return 0, fmt.Errorf("%w: resolve run id: %v", port.ErrDatabase, err)
	}

	count := 0
	for _, impacted := range analysis.ImpactedTestCases {
		prevID, version, err := latestImpact(ctx, tx, originalStoryID, impacted.OriginalTestCaseID)
		if err != nil {
			return 0, err
		}

		impactID := uuid.NewString()
		analysisJSON, err := json.Marshal(impacted)
		if err != nil {
			return 0, fmt.Errorf("%w: marshal impact analysis: %v", port.ErrDatabase, err)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO test_case_impacts (
				impact_id, project_id, new_story_id, original_story_id,
				original_test_case_id, modified_test_case_id, original_run_id,
				impact_created_on, source, similarity_score, impact_analysis_json,
				previous_impact_id, impact_version
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11::jsonb, $12, $13)`,
			impactID, projectID, newStoryID, originalStoryID,
			impacted.OriginalTestCaseID,
			fmt.Sprintf("%s-MOD%d", impacted.OriginalTestCaseID, version),
			originalRunID, time.Now(), "llm", similarityScore, string(analysisJSON),
			prevID, version,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: insert impact: %v", port.ErrDatabase, err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE test_case_runs
			SET impacted_test_case_generated = TRUE,
			    has_impacts = TRUE,
			    latest_impact_id = $1
			WHERE story_id = $2 AND project_id = $3`,
			impactID, originalStoryID, projectID,
		)
		if err != nil {
			return 0, fmt.Errorf("%w: flag run impacts: %v", port.ErrDatabase, err)
		}

		count++
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("%w: commit impacts: %v", port.ErrDatabase, err)
	}
	return count, nil
}

// latestImpact resolves the chain tail for a test case: the most recent
// impact id (if any) and the version the next record should carry.
func latestImpact(ctx context.Context, tx *sql.Tx, originalStoryID, testCaseID string) (*string, int, error) {
	var (
		prevID      string
		prevVersion int
	)
	err := tx.QueryRowContext(ctx, `
		SELECT impact_id, impact_version FROM test_case_impacts
		WHERE original_story_id = $1 AND original_test_case_id = $2
		ORDER BY impact_version DESC, impact_created_on DESC LIMIT 1`,
		originalStoryID, testCaseID,
	).Scan(&prevID, &prevVersion)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, 1, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("%w: resolve impact chain: %v", port.ErrDatabase, err)
	}
	return &prevID, prevVersion + 1, nil
}

// ListImpactsByStory returns impact records where the story is the impacted
// side, newest first.
func (s *PostgresStore) ListImpactsByStory(ctx context.Context, storyID string) ([]domain.ImpactRecord, error) {
	query := `
		SELECT impact_id, project_id, new_story_id, original_story_id,
		       original_test_case_id, modified_test_case_id, original_run_id,
		       impact_created_on, source, similarity_score, impact_analysis_json,
		       previous_impact_id, impact_version
		FROM test_case_impacts
		WHERE original_story_id = $1
		ORDER BY impact_created_on DESC`

	rows, err := s.db.QueryContext(ctx, query, storyID)
	if err != nil {
		return nil, fmt.Errorf("%w: list impacts: %v", port.ErrDatabase, err)
	}
	defer rows.Close()

	var records []domain.ImpactRecord
	for rows.Next() {
		var (
			r        domain.ImpactRecord
			analysis []byte
		)
		if err := rows.Scan(
			&r.ImpactID, &r.ProjectID, &r.NewStoryID, &r.OriginalStoryID,
			&r.OriginalTestCaseID, &r.ModifiedTestCaseID, &r.OriginalRunID,
			&r.CreatedOn, &r.Source, &r.SimilarityScore, &analysis,
			&r.PreviousImpactID, &r.Version,
		); err != nil {
			return nil, fmt.Errorf("%w: scan impact: %v", port.ErrDatabase, err)
		}
		r.Analysis = json.RawMessage(analysis)
		records = append(records, r)
	}
	return records, rows.Err()
}
