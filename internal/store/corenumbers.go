package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atelier/api/internal/util"
)

// CreateCoreNumber adds an empty title/number pair to the draft for the
// editor to fill in.
func (s *Store) CreateCoreNumber(ctx context.Context, projectID string) (CoreNumber, error) {
	var item CoreNumber
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		item = CoreNumber{ID: util.NewID()}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO core_numbers (id, lifecycle, project_id, title, number)
			VALUES ($1, 'draft', $2, '', '')
		`, item.ID, projectID); err != nil {
			return fmt.Errorf("insert core number: %w", err)
		}
		return nil
	})
	if err != nil {
		return CoreNumber{}, err
	}
	return item, nil
}

// UpdateCoreNumber writes a core number's title and value on the draft.
func (s *Store) UpdateCoreNumber(ctx context.Context, coreNumberID, title, number string) (CoreNumber, error) {
	var item CoreNumber
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		projectID, err := coreNumberProjectTx(ctx, tx, coreNumberID)
		if err != nil {
			return err
		}
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		err = tx.QueryRowContext(ctx, `
			UPDATE core_numbers SET title=$2, number=$3
			WHERE id=$1 AND lifecycle='draft'
			RETURNING id, title, number
		`, coreNumberID, title, number).Scan(&item.ID, &item.Title, &item.Number)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("update core number: %w", err)
		}
		return nil
	})
	if err != nil {
		return CoreNumber{}, err
	}
	return item, nil
}

// DeleteCoreNumber removes a core number from the draft.
func (s *Store) DeleteCoreNumber(ctx context.Context, coreNumberID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		projectID, err := coreNumberProjectTx(ctx, tx, coreNumberID)
		if err != nil {
			return err
		}
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM core_numbers WHERE id=$1 AND lifecycle='draft'
		`, coreNumberID)
		if err != nil {
			return fmt.Errorf("delete core number: %w", err)
		}
		return requireAffected(result)
	})
}

func listCoreNumbersTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) ([]CoreNumber, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, title, number FROM core_numbers
		WHERE project_id=$1 AND lifecycle=$2
		ORDER BY id ASC
	`, projectID, lc)
	if err != nil {
		return nil, fmt.Errorf("list core numbers: %w", err)
	}
	defer rows.Close()

	items := make([]CoreNumber, 0)
	for rows.Next() {
		var item CoreNumber
		if err := rows.Scan(&item.ID, &item.Title, &item.Number); err != nil {
			return nil, fmt.Errorf("scan core number: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate core numbers: %w", err)
	}
	return items, nil
}

func coreNumberProjectTx(ctx context.Context, tx *sql.Tx, coreNumberID string) (string, error) {
	var projectID string
	err := tx.QueryRowContext(ctx, `
		SELECT project_id FROM core_numbers WHERE id=$1 LIMIT 1
	`, coreNumberID).Scan(&projectID)
	if err != nil {
		return "", err
	}
	return projectID, nil
}
