package store

import (
	"context"
	"database/sql"
	"fmt"

	"atelier/api/internal/resolve"
	"atelier/api/internal/util"
)

// CreateProject inserts a new project directly as a draft, together with
// its base override row and the initial associations. There is no live
// counterpart until the first publish.
func (s *Store) CreateProject(ctx context.Context, input CreateProjectInput) (string, error) {
	projectID := util.NewID()
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projects (id, lifecycle, name, location, year, status, procurement)
			VALUES ($1, 'draft', $2, $3, $4, $5, $6)
		`, projectID, input.Name, input.Location, input.Year, input.Status, input.Procurement)
		if err != nil {
			return fmt.Errorf("insert project: %w", err)
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO project_overrides (project_id, company_name, lifecycle)
			VALUES ($1, NULL, 'draft')
		`, projectID); err != nil {
			return fmt.Errorf("insert base override row: %w", err)
		}

		for partyType, names := range map[string][]string{
			"client":     input.Clients,
			"architect":  input.Architects,
			"contractor": input.Contractors,
		} {
			for _, name := range names {
				if err := addPartyTx(ctx, tx, projectID, name, partyType); err != nil {
					return err
				}
			}
		}
		for _, company := range input.Companies {
			if err := attachCompanyTx(ctx, tx, projectID, company); err != nil {
				return err
			}
		}
		for _, industry := range input.Industries {
			if err := addIndustryTx(ctx, tx, projectID, industry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return projectID, nil
}

// ListProjects returns every project the user may edit, name-filtered. The
// row reflects the editing lifecycle: draft when one exists, live
// otherwise. An empty userID skips the permission filter.
func (s *Store) ListProjects(ctx context.Context, filter, userID string) ([]ProjectListItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT p.id, p.name, po.header_photo,
			EXISTS(SELECT 1 FROM projects d WHERE d.id=p.id AND d.lifecycle='draft') AS has_draft,
			EXISTS(SELECT 1 FROM projects l WHERE l.id=p.id AND l.lifecycle='live') AS published
		FROM projects p
		LEFT JOIN project_overrides po
			ON po.project_id=p.id AND po.lifecycle=p.lifecycle AND po.company_name IS NULL
		WHERE p.name ILIKE '%' || $1 || '%'
			AND p.lifecycle = CASE
				WHEN EXISTS(SELECT 1 FROM projects d WHERE d.id=p.id AND d.lifecycle='draft') THEN 'draft'
				ELSE 'live'
			END
			AND ($2 = '' OR EXISTS (
				SELECT 1 FROM permissions pm
				WHERE pm.user_id=$2 AND pm.can_edit
					AND (pm.company_name IS NULL OR EXISTS (
						SELECT 1 FROM project_overrides pc
						WHERE pc.project_id=p.id AND pc.company_name=pm.company_name
					))
			))
		ORDER BY p.name ASC
	`, filter, userID)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	items := make([]ProjectListItem, 0)
	for rows.Next() {
		var item ProjectListItem
		if err := rows.Scan(&item.ID, &item.Name, &item.HeaderPhoto, &item.HasDraft, &item.Published); err != nil {
			return nil, fmt.Errorf("scan project: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}
	return items, nil
}

// DeleteProject removes both lifecycles of a project and every owned row.
func (s *Store) DeleteProject(ctx context.Context, projectID string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		for _, lc := range []Lifecycle{Live, Draft} {
			if err := deleteOwnedRowsTx(ctx, tx, projectID, lc); err != nil {
				return err
			}
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, projectID)
		if err != nil {
			return fmt.Errorf("delete project: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete project affected: %w", err)
		}
		if affected == 0 {
			return sql.ErrNoRows
		}
		return nil
	})
}

// OpenProject reads the full editing view of a project in one company
// scope. Opening a company scope that has no override row yet materializes
// the draft if needed and attaches the empty row, in the same transaction.
func (s *Store) OpenProject(ctx context.Context, projectID string, company *string) (ProjectView, error) {
	var view ProjectView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		lc, err := currentLifecycleTx(ctx, tx, projectID)
		if err != nil {
			return err
		}

		if company != nil {
			attached, err := overrideRowExistsTx(ctx, tx, projectID, company, lc)
			if err != nil {
				return err
			}
			if !attached {
				if lc == Live {
					if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
						return err
					}
					lc = Draft
				}
				if err := attachCompanyTx(ctx, tx, projectID, *company); err != nil {
					return err
				}
			}
		}

		view, err = viewTx(ctx, tx, projectID, company, lc)
		return err
	})
	return view, err
}

// PublicView reads the published copy only. It never materializes a draft
// and never attaches companies; unknown scopes fall back to the base row.
func (s *Store) PublicView(ctx context.Context, projectID string, company *string) (ProjectView, error) {
	var view ProjectView
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		var err error
		view, err = viewTx(ctx, tx, projectID, company, Live)
		return err
	})
	return view, err
}

func overrideRowExistsTx(ctx context.Context, tx *sql.Tx, projectID string, company *string, lc Lifecycle) (bool, error) {
	var exists bool
	err := tx.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM project_overrides
			WHERE project_id=$1 AND company_name IS NOT DISTINCT FROM $2 AND lifecycle=$3
		)
	`, projectID, company, lc).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check override row: %w", err)
	}
	return exists, nil
}

func getOverrideRowTx(ctx context.Context, tx *sql.Tx, projectID string, company *string, lc Lifecycle) (*OverrideRow, error) {
	row := OverrideRow{ProjectID: projectID, CompanyName: company, Lifecycle: lc}
	err := tx.QueryRowContext(ctx, `
		SELECT introduction, header_photo, header_photo_copyright,
			banner_photo, banner_photo_copyright, thumbnail,
			custom_content, custom_images, visible, show_in_carousel, weight
		FROM project_overrides
		WHERE project_id=$1 AND company_name IS NOT DISTINCT FROM $2 AND lifecycle=$3
	`, projectID, company, lc).Scan(
		&row.Introduction,
		&row.HeaderPhoto,
		&row.HeaderPhotoCopyright,
		&row.BannerPhoto,
		&row.BannerPhotoCopyright,
		&row.Thumbnail,
		&row.CustomContent,
		&row.CustomImages,
		&row.Visible,
		&row.ShowInCarousel,
		&row.Weight,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read override row: %w", err)
	}
	return &row, nil
}

func getProjectRowTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) (Project, error) {
	project := Project{ID: projectID, Lifecycle: lc}
	err := tx.QueryRowContext(ctx, `
		SELECT name, location, year, learn_more, status, procurement
		FROM projects
		WHERE id=$1 AND lifecycle=$2
	`, projectID, lc).Scan(
		&project.Name,
		&project.Location,
		&project.Year,
		&project.LearnMore,
		&project.Status,
		&project.Procurement,
	)
	if err != nil {
		return Project{}, err
	}
	return project, nil
}

// resolveRecord applies the tenant-over-base fallback to one project. base
// must exist; its absence is a consistency violation, not a soft miss.
func resolveRecord(project Project, base, tenant *OverrideRow, company *string, hasDraft, published bool) (EffectiveRecord, error) {
	if base == nil {
		return EffectiveRecord{}, ErrMissingBase
	}

	hasTenant := company != nil
	record := EffectiveRecord{
		ID:          project.ID,
		Lifecycle:   project.Lifecycle,
		Name:        project.Name,
		Location:    project.Location,
		Year:        project.Year,
		LearnMore:   project.LearnMore,
		Status:      project.Status,
		Procurement: project.Procurement,
		HasDraft:    hasDraft,
		Published:   published,
	}

	// The scoped row carries the per-company presentation fields; the base
	// row serves when the lookup is not company-scoped.
	scoped := base
	if hasTenant && tenant != nil {
		scoped = tenant
	}
	record.Visible = scoped.Visible
	record.ShowInCarousel = scoped.ShowInCarousel
	record.Thumbnail = scoped.Thumbnail
	if hasTenant {
		record.Weight = scoped.Weight
	}

	var tenantIntro, tenantHeader, tenantHeaderCopy, tenantBanner, tenantBannerCopy *string
	var tenantContent, tenantImages bool
	if tenant != nil {
		tenantIntro = tenant.Introduction
		tenantHeader = tenant.HeaderPhoto
		tenantHeaderCopy = tenant.HeaderPhotoCopyright
		tenantBanner = tenant.BannerPhoto
		tenantBannerCopy = tenant.BannerPhotoCopyright
		tenantContent = tenant.CustomContent
		tenantImages = tenant.CustomImages
	}

	record.Introduction = resolve.Value(hasTenant, tenantIntro, base.Introduction)
	record.CustomIntroduction = resolve.Custom(hasTenant, tenantIntro)

	record.HeaderPhoto = resolve.Value(hasTenant, tenantHeader, base.HeaderPhoto)
	record.CustomHeaderPhoto = resolve.Custom(hasTenant, tenantHeader)
	if record.CustomHeaderPhoto {
		record.HeaderPhotoCopyright = resolve.Value(hasTenant, tenantHeaderCopy, base.HeaderPhotoCopyright)
	} else {
		record.HeaderPhotoCopyright = base.HeaderPhotoCopyright
	}

	record.BannerPhoto = resolve.Value(hasTenant, tenantBanner, base.BannerPhoto)
	record.CustomBannerPhoto = resolve.Custom(hasTenant, tenantBanner)
	if record.CustomBannerPhoto {
		record.BannerPhotoCopyright = resolve.Value(hasTenant, tenantBannerCopy, base.BannerPhotoCopyright)
	} else {
		record.BannerPhotoCopyright = base.BannerPhotoCopyright
	}

	record.CustomContent = resolve.Flag(hasTenant, tenantContent)
	record.CustomImages = resolve.Flag(hasTenant, tenantImages)

	return record, nil
}

func viewTx(ctx context.Context, tx *sql.Tx, projectID string, company *string, lc Lifecycle) (ProjectView, error) {
	project, err := getProjectRowTx(ctx, tx, projectID, lc)
	if err != nil {
		return ProjectView{}, err
	}

	base, err := getOverrideRowTx(ctx, tx, projectID, nil, lc)
	if err != nil {
		return ProjectView{}, err
	}
	var tenant *OverrideRow
	if company != nil {
		tenant, err = getOverrideRowTx(ctx, tx, projectID, company, lc)
		if err != nil {
			return ProjectView{}, err
		}
	}

	hasDraft, err := draftExistsTx(ctx, tx, projectID)
	if err != nil {
		return ProjectView{}, err
	}
	published, err := liveExistsTx(ctx, tx, projectID)
	if err != nil {
		return ProjectView{}, err
	}

	record, err := resolveRecord(project, base, tenant, company, hasDraft, published)
	if err != nil {
		return ProjectView{}, err
	}

	view := ProjectView{Record: record}

	// Chains and image collections stay on the base scope until the
	// company customises them.
	contentScope := company
	if !record.CustomContent || company == nil {
		contentScope = nil
	}
	view.Content, err = readChainTx(ctx, tx, projectID, contentScope, lc)
	if err != nil {
		return ProjectView{}, err
	}

	imageScope := company
	if !record.CustomImages || company == nil {
		imageScope = nil
	}
	view.Images, err = listImagesTx(ctx, tx, projectID, imageScope, lc)
	if err != nil {
		return ProjectView{}, err
	}

	view.CoreNumbers, err = listCoreNumbersTx(ctx, tx, projectID, lc)
	if err != nil {
		return ProjectView{}, err
	}
	view.Parties, err = partyGroupsTx(ctx, tx, projectID, lc)
	if err != nil {
		return ProjectView{}, err
	}
	view.Labels, err = listLabelsTx(ctx, tx, projectID, lc)
	if err != nil {
		return ProjectView{}, err
	}
	view.Companies, err = companyListTx(ctx, tx, projectID, lc)
	if err != nil {
		return ProjectView{}, err
	}
	view.Industries, err = listIndustriesTx(ctx, tx, projectID, lc)
	if err != nil {
		return ProjectView{}, err
	}

	return view, nil
}
