package store

import (
	"context"
	"database/sql"
	"fmt"
)

// EnsureDraft materializes a draft copy of a live project on first edit.
// The project row and every owned row (override rows for all companies,
// content chains, image collections, core numbers, associations) are copied
// into draft scope in one transaction. Calling it again is a no-op.
//
// Two requests racing to materialize the same draft are resolved by the
// conflict-is-ok insert of the project row: the loser sees zero rows
// affected and skips the sub-record copies.
func (s *Store) EnsureDraft(ctx context.Context, projectID string) (DraftState, error) {
	var state DraftState
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		state, err = ensureDraftTx(ctx, tx, projectID)
		return err
	})
	return state, err
}

func draftExistsTx(ctx context.Context, tx *sql.Tx, projectID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM projects WHERE id=$1 AND lifecycle='draft')
	`, projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check draft exists: %w", err)
	}
	return exists, nil
}

func liveExistsTx(ctx context.Context, tx *sql.Tx, projectID string) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM projects WHERE id=$1 AND lifecycle='live')
	`, projectID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check live exists: %w", err)
	}
	return exists, nil
}

func ensureDraftTx(ctx context.Context, tx *sql.Tx, projectID string) (DraftState, error) {
	exists, err := draftExistsTx(ctx, tx, projectID)
	if err != nil {
		return DraftState{}, err
	}
	if exists {
		return DraftState{AlreadyExisted: true}, nil
	}

	live, err := liveExistsTx(ctx, tx, projectID)
	if err != nil {
		return DraftState{}, err
	}
	if !live {
		return DraftState{}, sql.ErrNoRows
	}

	result, err := tx.ExecContext(ctx, `
		INSERT INTO projects (id, lifecycle, name, location, year, learn_more, status, procurement)
		SELECT id, 'draft', name, location, year, learn_more, status, procurement
		FROM projects
		WHERE id=$1 AND lifecycle='live'
		ON CONFLICT (id, lifecycle) DO NOTHING
	`, projectID)
	if err != nil {
		return DraftState{}, fmt.Errorf("copy project row: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return DraftState{}, fmt.Errorf("copy project row affected: %w", err)
	}
	if affected == 0 {
		// Another request materialized the draft first.
		return DraftState{AlreadyExisted: true}, nil
	}

	copies := []struct {
		name  string
		query string
	}{
		{"override rows", `
			INSERT INTO project_overrides (project_id, company_name, lifecycle, introduction,
				header_photo, header_photo_copyright, banner_photo, banner_photo_copyright,
				thumbnail, custom_content, custom_images, visible, show_in_carousel, weight)
			SELECT project_id, company_name, 'draft', introduction,
				header_photo, header_photo_copyright, banner_photo, banner_photo_copyright,
				thumbnail, custom_content, custom_images, visible, show_in_carousel, weight
			FROM project_overrides WHERE project_id=$1 AND lifecycle='live'`},
		{"content blocks", `
			INSERT INTO content_blocks (id, lifecycle, project_id, company_name, previous_entry,
				body, image, image_copyright, quote)
			SELECT id, 'draft', project_id, company_name, previous_entry,
				body, image, image_copyright, quote
			FROM content_blocks WHERE project_id=$1 AND lifecycle='live'`},
		{"images", `
			INSERT INTO project_images (id, lifecycle, project_id, company_name, image, image_copyright, alt)
			SELECT id, 'draft', project_id, company_name, image, image_copyright, alt
			FROM project_images WHERE project_id=$1 AND lifecycle='live'`},
		{"core numbers", `
			INSERT INTO core_numbers (id, lifecycle, project_id, title, number)
			SELECT id, 'draft', project_id, title, number
			FROM core_numbers WHERE project_id=$1 AND lifecycle='live'`},
		{"parties", `
			INSERT INTO project_parties (project_id, party_name, party_type, lifecycle)
			SELECT project_id, party_name, party_type, 'draft'
			FROM project_parties WHERE project_id=$1 AND lifecycle='live'`},
		{"industries", `
			INSERT INTO project_industries (project_id, industry_name, lifecycle)
			SELECT project_id, industry_name, 'draft'
			FROM project_industries WHERE project_id=$1 AND lifecycle='live'`},
		{"tags", `
			INSERT INTO project_tags (project_id, tag, lifecycle)
			SELECT project_id, tag, 'draft'
			FROM project_tags WHERE project_id=$1 AND lifecycle='live'`},
	}
	for _, copy := range copies {
		if _, err := tx.ExecContext(ctx, copy.query, projectID); err != nil {
			return DraftState{}, fmt.Errorf("copy %s to draft: %w", copy.name, err)
		}
	}

	return DraftState{AlreadyExisted: false}, nil
}

// currentLifecycleTx reports the lifecycle edits and reads should target:
// draft while an edit session is in progress, live otherwise.
func currentLifecycleTx(ctx context.Context, tx *sql.Tx, projectID string) (Lifecycle, error) {
	exists, err := draftExistsTx(ctx, tx, projectID)
	if err != nil {
		return "", err
	}
	if exists {
		return Draft, nil
	}
	return Live, nil
}
