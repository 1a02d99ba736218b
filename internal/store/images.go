package store

import (
	"context"
	"database/sql"
	"fmt"

	"atelier/api/internal/util"
)

// ListImages returns a project's image collection for one scope at the
// current editing lifecycle.
func (s *Store) ListImages(ctx context.Context, projectID string, company *string) ([]Image, error) {
	var images []Image
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		lc, err := currentLifecycleTx(ctx, tx, projectID)
		if err != nil {
			return err
		}
		scope, err := imageScopeTx(ctx, tx, projectID, company, lc)
		if err != nil {
			return err
		}
		images, err = listImagesTx(ctx, tx, projectID, scope, lc)
		return err
	})
	return images, err
}

// AddImage appends an image to the draft collection.
func (s *Store) AddImage(ctx context.Context, projectID string, company *string, image Image) (Image, error) {
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		scope, err := imageScopeTx(ctx, tx, projectID, company, Draft)
		if err != nil {
			return err
		}
		image.ID = util.NewID()
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_images (id, lifecycle, project_id, company_name, image, image_copyright, alt)
			VALUES ($1, 'draft', $2, $3, $4, $5, $6)
		`, image.ID, projectID, scope, image.Image, image.ImageCopyright, image.Alt); err != nil {
			return fmt.Errorf("insert image: %w", err)
		}
		return nil
	})
	if err != nil {
		return Image{}, err
	}
	return image, nil
}

// DeleteImage removes an image from the draft collection.
func (s *Store) DeleteImage(ctx context.Context, imageID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		var projectID string
		err := tx.QueryRowContext(ctx, `
			SELECT project_id FROM project_images WHERE id=$1 LIMIT 1
		`, imageID).Scan(&projectID)
		if err != nil {
			return err
		}
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM project_images WHERE id=$1 AND lifecycle='draft'
		`, imageID)
		if err != nil {
			return fmt.Errorf("delete image: %w", err)
		}
		return requireAffected(result)
	})
}

// CustomiseImages copies the base draft collection into a company scope
// under fresh ids and flips the company's custom flag. A repeat call is a
// no-op that returns the existing company copy.
func (s *Store) CustomiseImages(ctx context.Context, projectID, company string) ([]Image, error) {
	var images []Image
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}

		row, err := getOverrideRowTx(ctx, tx, projectID, &company, Draft)
		if err != nil {
			return err
		}
		if row == nil {
			return sql.ErrNoRows
		}
		if row.CustomImages {
			images, err = listImagesTx(ctx, tx, projectID, &company, Draft)
			return err
		}

		source, err := listImagesTx(ctx, tx, projectID, nil, Draft)
		if err != nil {
			return err
		}
		for _, img := range source {
			img.ID = util.NewID()
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO project_images (id, lifecycle, project_id, company_name, image, image_copyright, alt)
				VALUES ($1, 'draft', $2, $3, $4, $5, $6)
			`, img.ID, projectID, company, img.Image, img.ImageCopyright, img.Alt); err != nil {
				return fmt.Errorf("clone image: %w", err)
			}
			images = append(images, img)
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE project_overrides SET custom_images=TRUE
			WHERE project_id=$1 AND company_name=$2 AND lifecycle='draft'
		`, projectID, company)
		if err != nil {
			return fmt.Errorf("flag custom images: %w", err)
		}
		return requireAffected(result)
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

func listImagesTx(ctx context.Context, tx *sql.Tx, projectID string, company *string, lc Lifecycle) ([]Image, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, image, image_copyright, alt
		FROM project_images
		WHERE project_id=$1 AND company_name IS NOT DISTINCT FROM $2 AND lifecycle=$3
		ORDER BY id ASC
	`, projectID, company, lc)
	if err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	defer rows.Close()

	images := make([]Image, 0)
	for rows.Next() {
		var img Image
		if err := rows.Scan(&img.ID, &img.Image, &img.ImageCopyright, &img.Alt); err != nil {
			return nil, fmt.Errorf("scan image: %w", err)
		}
		images = append(images, img)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate images: %w", err)
	}
	return images, nil
}

// imageScopeTx mirrors contentScopeTx for the image collection.
func imageScopeTx(ctx context.Context, tx *sql.Tx, projectID string, company *string, lc Lifecycle) (*string, error) {
	if company == nil {
		return nil, nil
	}
	row, err := getOverrideRowTx(ctx, tx, projectID, company, lc)
	if err != nil {
		return nil, err
	}
	if row != nil && row.CustomImages {
		return company, nil
	}
	return nil, nil
}
