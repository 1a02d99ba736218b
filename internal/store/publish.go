package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ownedTables are the per-project tables that carry a lifecycle column and
// move together with the project row on publish, revert and unpublish.
var ownedTables = []string{
	"project_overrides",
	"content_blocks",
	"project_images",
	"core_numbers",
	"project_parties",
	"project_industries",
	"project_tags",
}

// Publish replaces the live version with the draft in one transaction. The
// previous live rows are removed and every draft row is retagged as live.
func (s *Store) Publish(ctx context.Context, projectID string, viewer *string) (ProjectView, error) {
	var view ProjectView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		hasDraft, err := draftExistsTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !hasDraft {
			return ErrNoDraft
		}
		if err := deleteVersionTx(ctx, tx, projectID, Live); err != nil {
			return err
		}
		if err := retagVersionTx(ctx, tx, projectID, Draft, Live); err != nil {
			return err
		}
		view, err = viewTx(ctx, tx, projectID, viewer, Live)
		return err
	})
	return view, err
}

// Revert discards the draft, exposing the live version again. A project
// that has never been published cannot be reverted.
func (s *Store) Revert(ctx context.Context, projectID string, viewer *string) (ProjectView, error) {
	var view ProjectView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		hasDraft, err := draftExistsTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !hasDraft {
			return ErrNoDraft
		}
		hasLive, err := liveExistsTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !hasLive {
			return ErrNoLive
		}
		if err := deleteVersionTx(ctx, tx, projectID, Draft); err != nil {
			return err
		}
		view, err = viewTx(ctx, tx, projectID, viewer, Live)
		return err
	})
	return view, err
}

// Unpublish takes the project offline. When a draft already exists the live
// rows are simply dropped; otherwise the live rows become the new draft.
func (s *Store) Unpublish(ctx context.Context, projectID string, viewer *string) (ProjectView, error) {
	var view ProjectView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		hasLive, err := liveExistsTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if !hasLive {
			return ErrNoLive
		}
		hasDraft, err := draftExistsTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		if hasDraft {
			if err := deleteVersionTx(ctx, tx, projectID, Live); err != nil {
				return err
			}
		} else if err := retagVersionTx(ctx, tx, projectID, Live, Draft); err != nil {
			return err
		}
		view, err = viewTx(ctx, tx, projectID, viewer, Draft)
		return err
	})
	return view, err
}

func deleteVersionTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) error {
	if err := deleteOwnedRowsTx(ctx, tx, projectID, lc); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM projects WHERE id=$1 AND lifecycle=$2
	`, projectID, lc); err != nil {
		return fmt.Errorf("delete %s project row: %w", lc, err)
	}
	return nil
}

func retagVersionTx(ctx context.Context, tx *sql.Tx, projectID string, from, to Lifecycle) error {
	if _, err := tx.ExecContext(ctx, `
		UPDATE projects SET lifecycle=$3, updated_at=NOW() WHERE id=$1 AND lifecycle=$2
	`, projectID, from, to); err != nil {
		return fmt.Errorf("retag project row: %w", err)
	}
	for _, table := range ownedTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			UPDATE %s SET lifecycle=$3 WHERE project_id=$1 AND lifecycle=$2
		`, table), projectID, from, to); err != nil {
			return fmt.Errorf("retag %s: %w", table, err)
		}
	}
	return nil
}

func deleteOwnedRowsTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) error {
	for _, table := range ownedTables {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`
			DELETE FROM %s WHERE project_id=$1 AND lifecycle=$2
		`, table), projectID, lc); err != nil {
			return fmt.Errorf("delete %s rows: %w", table, err)
		}
	}
	return nil
}
