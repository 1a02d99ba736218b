package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// projectColumns whitelists the plain project fields editable per-draft.
var projectColumns = map[string]string{
	"name":        "name",
	"location":    "location",
	"year":        "year",
	"learn_more":  "learn_more",
	"status":      "status",
	"procurement": "procurement",
}

// overrideColumns whitelists the per-scope fields on the override row.
var overrideColumns = map[string]string{
	"introduction":           "introduction",
	"header_photo":           "header_photo",
	"header_photo_copyright": "header_photo_copyright",
	"banner_photo":           "banner_photo",
	"banner_photo_copyright": "banner_photo_copyright",
	"thumbnail":              "thumbnail",
	"visible":                "visible",
	"show_in_carousel":       "show_in_carousel",
	"weight":                 "weight",
}

// overrideGroups names the customisable field groups and the columns each
// customise call copies from the base row.
var overrideGroups = map[string][]string{
	"introduction": {"introduction"},
	"header":       {"header_photo", "header_photo_copyright"},
	"banner":       {"banner_photo", "banner_photo_copyright"},
}

// UpdateProjectField writes one project-level field on the draft row,
// materializing the draft first if needed.
func (s *Store) UpdateProjectField(ctx context.Context, projectID, field string, value any) error {
	column, ok := projectColumns[field]
	if !ok {
		return fmt.Errorf("unknown project field %q", field)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE projects SET `+column+`=$2, updated_at=NOW() WHERE id=$1 AND lifecycle='draft'`,
			projectID, value)
		if err != nil {
			return fmt.Errorf("update project %s: %w", field, err)
		}
		return requireAffected(result)
	})
}

// UpdateOverrideField writes one override-row field on the draft row for
// the given scope (base scope when company is nil).
func (s *Store) UpdateOverrideField(ctx context.Context, projectID string, company *string, field string, value any) error {
	column, ok := overrideColumns[field]
	if !ok {
		return fmt.Errorf("unknown override field %q", field)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx,
			`UPDATE project_overrides SET `+column+`=$3
			 WHERE project_id=$1 AND company_name IS NOT DISTINCT FROM $2 AND lifecycle='draft'`,
			projectID, company, value)
		if err != nil {
			return fmt.Errorf("update override %s: %w", field, err)
		}
		return requireAffected(result)
	})
}

// CustomiseOverride forks a company's copy of one field group from the
// current base values, severing inheritance for that group. The caller
// must have validated that a company is present.
func (s *Store) CustomiseOverride(ctx context.Context, projectID, company, group string) error {
	columns, ok := overrideGroups[group]
	if !ok {
		return fmt.Errorf("unknown override group %q", group)
	}
	assignments := make([]string, 0, len(columns))
	for _, column := range columns {
		assignments = append(assignments, column+"=b."+column)
	}

	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}

		baseExists, err := overrideRowExistsTx(ctx, tx, projectID, nil, Draft)
		if err != nil {
			return err
		}
		if !baseExists {
			return ErrMissingBase
		}

		result, err := tx.ExecContext(ctx, `
			UPDATE project_overrides t SET `+strings.Join(assignments, ", ")+`
			FROM project_overrides b
			WHERE b.project_id=t.project_id AND b.company_name IS NULL AND b.lifecycle='draft'
				AND t.project_id=$1 AND t.company_name=$2 AND t.lifecycle='draft'
		`, projectID, company)
		if err != nil {
			return fmt.Errorf("customise %s: %w", group, err)
		}
		return requireAffected(result)
	})
}

func requireAffected(result sql.Result) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
