package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"atelier/api/internal/chain"
	"atelier/api/internal/util"
)

// New blocks start with placeholder copy the editor replaces.
const defaultBlockBody = "<h3>Default text</h3>"

// ReadContent returns the ordered content chain for a project scope at the
// current editing lifecycle. A company that has not customised its content
// reads the base chain.
func (s *Store) ReadContent(ctx context.Context, projectID string, company *string) ([]Block, error) {
	var blocks []Block
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		lc, err := currentLifecycleTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		scope, err := contentScopeTx(ctx, tx, projectID, company, lc)
		if err != nil {
			return err
		}
		blocks, err = readChainTx(ctx, tx, projectID, scope, lc)
		return err
	})
	return blocks, err
}

// InsertBlock creates a draft content block after the given block, or as
// the new head when after is nil. The displaced successor is repointed at
// the new block.
func (s *Store) InsertBlock(ctx context.Context, projectID string, company *string, after *string) (Block, error) {
	var block Block
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		scope, err := contentScopeTx(ctx, tx, projectID, company, Draft)
		if err != nil {
			return err
		}

		if after != nil {
			var exists bool
			err := tx.QueryRowContext(ctx, `
				SELECT EXISTS(
					SELECT 1 FROM content_blocks
					WHERE id=$1 AND lifecycle='draft'
						AND project_id=$2 AND company_name IS NOT DISTINCT FROM $3
				)
			`, *after, projectID, scope).Scan(&exists)
			if err != nil {
				return fmt.Errorf("check predecessor: %w", err)
			}
			if !exists {
				return sql.ErrNoRows
			}
		}

		blockID := util.NewID()

		// Repoint the block that currently follows the insertion point
		// before taking its slot, so the one-successor-per-predecessor
		// constraint holds after each statement.
		if _, err := tx.ExecContext(ctx, `
			UPDATE content_blocks SET previous_entry=$4
			WHERE project_id=$1 AND company_name IS NOT DISTINCT FROM $2 AND lifecycle='draft'
				AND previous_entry IS NOT DISTINCT FROM $3
		`, projectID, scope, after, blockID); err != nil {
			return fmt.Errorf("repoint successor: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO content_blocks (id, lifecycle, project_id, company_name, previous_entry, body)
			VALUES ($1, 'draft', $2, $3, $4, $5)
		`, blockID, projectID, scope, after, defaultBlockBody); err != nil {
			return fmt.Errorf("insert block: %w", err)
		}

		block = Block{ID: blockID, Body: defaultBlockBody}
		return nil
	})
	return block, err
}

// DeleteBlock removes a draft block and splices the chain around it: the
// successor inherits the deleted block's predecessor. Deleting the head
// promotes its successor.
func (s *Store) DeleteBlock(ctx context.Context, blockID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		projectID, err := blockProjectTx(ctx, tx, blockID)
		if err != nil {
			return err
		}
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}

		var scope, prev *string
		err = tx.QueryRowContext(ctx, `
			DELETE FROM content_blocks WHERE id=$1 AND lifecycle='draft'
			RETURNING company_name, previous_entry
		`, blockID).Scan(&scope, &prev)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("delete block: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE content_blocks SET previous_entry=$4
			WHERE project_id=$1 AND company_name IS NOT DISTINCT FROM $2 AND lifecycle='draft'
				AND previous_entry=$3
		`, projectID, scope, blockID, prev); err != nil {
			return fmt.Errorf("splice successor: %w", err)
		}
		return nil
	})
}

// UpdateBlockText replaces a draft block's body.
func (s *Store) UpdateBlockText(ctx context.Context, blockID, body string) (Block, error) {
	return s.updateBlock(ctx, blockID, `body=$2`, body)
}

// UpdateBlockQuote sets or clears a draft block's pull quote.
func (s *Store) UpdateBlockQuote(ctx context.Context, blockID string, quote *string) (Block, error) {
	return s.updateBlock(ctx, blockID, `quote=$2`, quote)
}

// UpdateBlockImage sets a draft block's image and copyright together.
func (s *Store) UpdateBlockImage(ctx context.Context, blockID string, image, copyright *string) (Block, error) {
	return s.updateBlock(ctx, blockID, `image=$2, image_copyright=$3`, image, copyright)
}

func (s *Store) updateBlock(ctx context.Context, blockID, assignment string, values ...any) (Block, error) {
	var block Block
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		projectID, err := blockProjectTx(ctx, tx, blockID)
		if err != nil {
			return err
		}
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}

		args := append([]any{blockID}, values...)
		err = tx.QueryRowContext(ctx, `
			UPDATE content_blocks SET `+assignment+`
			WHERE id=$1 AND lifecycle='draft'
			RETURNING id, body, image, image_copyright, quote
		`, args...).Scan(&block.ID, &block.Body, &block.Image, &block.ImageCopyright, &block.Quote)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return sql.ErrNoRows
			}
			return fmt.Errorf("update block: %w", err)
		}
		return nil
	})
	return block, err
}

// CustomiseContent deep-clones the base draft chain into a company scope:
// fresh ids throughout, predecessors re-linked through the old-to-new map,
// and the company's custom flag flipped so the fork sticks. A repeat call
// is a no-op that returns the existing company chain.
func (s *Store) CustomiseContent(ctx context.Context, projectID, company string) ([]Block, error) {
	var blocks []Block
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}

		override, err := getOverrideRowTx(ctx, tx, projectID, &company, Draft)
		if err != nil {
			return err
		}
		if override == nil {
			return sql.ErrNoRows
		}
		if override.CustomContent {
			blocks, err = readChainTx(ctx, tx, projectID, &company, Draft)
			return err
		}

		rows, err := tx.QueryContext(ctx, `
			SELECT id, previous_entry, body, image, image_copyright, quote
			FROM content_blocks
			WHERE project_id=$1 AND company_name IS NULL AND lifecycle='draft'
		`, projectID)
		if err != nil {
			return fmt.Errorf("read base chain: %w", err)
		}
		defer rows.Close()

		var links []chain.Link
		blocksByID := make(map[string]Block)
		for rows.Next() {
			var block Block
			var prev *string
			if err := rows.Scan(&block.ID, &prev, &block.Body, &block.Image, &block.ImageCopyright, &block.Quote); err != nil {
				return fmt.Errorf("scan base block: %w", err)
			}
			links = append(links, chain.Link{ID: block.ID, Prev: prev})
			blocksByID[block.ID] = block
		}
		if err := rows.Err(); err != nil {
			return fmt.Errorf("iterate base chain: %w", err)
		}

		clones, mapping, err := chain.Remap(links, util.NewID)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrCorruptChain, err)
		}

		for i, clone := range clones {
			source := blocksByID[links[i].ID]
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO content_blocks (id, lifecycle, project_id, company_name, previous_entry,
					body, image, image_copyright, quote)
				VALUES ($1, 'draft', $2, $3, $4, $5, $6, $7, $8)
			`, clone.ID, projectID, company, clone.Prev,
				source.Body, source.Image, source.ImageCopyright, source.Quote); err != nil {
				return fmt.Errorf("insert cloned block: %w", err)
			}
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE project_overrides SET custom_content=TRUE
			WHERE project_id=$1 AND company_name=$2 AND lifecycle='draft'
		`, projectID, company)
		if err != nil {
			return fmt.Errorf("flag custom content: %w", err)
		}
		if err := requireAffected(result); err != nil {
			return err
		}

		// Return the clone in chain order.
		ordered, err := chain.Order(clones)
		if err != nil {
			return fmt.Errorf("%w: %s", ErrCorruptChain, err)
		}
		newToOld := make(map[string]string, len(mapping))
		for oldID, newID := range mapping {
			newToOld[newID] = oldID
		}
		for _, newID := range ordered {
			source := blocksByID[newToOld[newID]]
			source.ID = newID
			blocks = append(blocks, source)
		}
		return nil
	})
	return blocks, err
}

func readChainTx(ctx context.Context, tx *sql.Tx, projectID string, company *string, lc Lifecycle) ([]Block, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, previous_entry, body, image, image_copyright, quote
		FROM content_blocks
		WHERE project_id=$1 AND company_name IS NOT DISTINCT FROM $2 AND lifecycle=$3
	`, projectID, company, lc)
	if err != nil {
		return nil, fmt.Errorf("read chain: %w", err)
	}
	defer rows.Close()

	var links []chain.Link
	blocksByID := make(map[string]Block)
	for rows.Next() {
		var block Block
		var prev *string
		if err := rows.Scan(&block.ID, &prev, &block.Body, &block.Image, &block.ImageCopyright, &block.Quote); err != nil {
			return nil, fmt.Errorf("scan block: %w", err)
		}
		links = append(links, chain.Link{ID: block.ID, Prev: prev})
		blocksByID[block.ID] = block
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate chain: %w", err)
	}

	ordered, err := chain.Order(links)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrCorruptChain, err)
	}

	blocks := make([]Block, 0, len(ordered))
	for _, id := range ordered {
		blocks = append(blocks, blocksByID[id])
	}
	return blocks, nil
}

// contentScopeTx normalizes the chain scope: the company only once it has
// customised its content, the base scope otherwise.
func contentScopeTx(ctx context.Context, tx *sql.Tx, projectID string, company *string, lc Lifecycle) (*string, error) {
	if company == nil {
		return nil, nil
	}
	row, err := getOverrideRowTx(ctx, tx, projectID, company, lc)
	if err != nil {
		return nil, err
	}
	if row != nil && row.CustomContent {
		return company, nil
	}
	return nil, nil
}

func blockProjectTx(ctx context.Context, tx *sql.Tx, blockID string) (string, error) {
	var projectID string
	err := tx.QueryRowContext(ctx, `
		SELECT project_id FROM content_blocks WHERE id=$1 LIMIT 1
	`, blockID).Scan(&projectID)
	if err != nil {
		return "", err
	}
	return projectID, nil
}
