package store

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
)

// PartyTypes are the roles a party can hold on a project.
var PartyTypes = map[string]struct{}{
	"client":     {},
	"architect":  {},
	"contractor": {},
}

// AddParty attaches a party to the draft under one role, registering the
// party name if it is new.
func (s *Store) AddParty(ctx context.Context, projectID, name, partyType string) error {
	if _, ok := PartyTypes[partyType]; !ok {
		return fmt.Errorf("unknown party type %q", partyType)
	}
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		return addPartyTx(ctx, tx, projectID, name, partyType)
	})
}

// RemoveParty detaches a party role from the draft.
func (s *Store) RemoveParty(ctx context.Context, projectID, name, partyType string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM project_parties
			WHERE project_id=$1 AND party_name=$2 AND party_type=$3 AND lifecycle='draft'
		`, projectID, name, partyType)
		if err != nil {
			return fmt.Errorf("remove party: %w", err)
		}
		return requireAffected(result)
	})
}

// AttachCompany adds a company to the draft by creating its (empty)
// override row. Everything stays inherited until the company customises.
func (s *Store) AttachCompany(ctx context.Context, projectID, company string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		return attachCompanyTx(ctx, tx, projectID, company)
	})
}

// DetachCompany removes a company from the draft along with its override
// row and any customised chain or image copies.
func (s *Store) DetachCompany(ctx context.Context, projectID, company string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM content_blocks
			WHERE project_id=$1 AND company_name=$2 AND lifecycle='draft'
		`, projectID, company); err != nil {
			return fmt.Errorf("delete company chain: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM project_images
			WHERE project_id=$1 AND company_name=$2 AND lifecycle='draft'
		`, projectID, company); err != nil {
			return fmt.Errorf("delete company images: %w", err)
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM project_overrides
			WHERE project_id=$1 AND company_name=$2 AND lifecycle='draft'
		`, projectID, company)
		if err != nil {
			return fmt.Errorf("detach company: %w", err)
		}
		return requireAffected(result)
	})
}

// AddIndustry attaches an industry to the draft.
func (s *Store) AddIndustry(ctx context.Context, projectID, industry string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		return addIndustryTx(ctx, tx, projectID, industry)
	})
}

// RemoveIndustry detaches an industry from the draft.
func (s *Store) RemoveIndustry(ctx context.Context, projectID, industry string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `
			DELETE FROM project_industries
			WHERE project_id=$1 AND industry_name=$2 AND lifecycle='draft'
		`, projectID, industry)
		if err != nil {
			return fmt.Errorf("remove industry: %w", err)
		}
		return requireAffected(result)
	})
}

// SetLabels replaces the draft's tag set wholesale.
func (s *Store) SetLabels(ctx context.Context, projectID string, labels []string) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := ensureDraftTx(ctx, tx, projectID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM project_tags WHERE project_id=$1 AND lifecycle='draft'
		`, projectID); err != nil {
			return fmt.Errorf("clear labels: %w", err)
		}
		for _, label := range labels {
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO tags (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
			`, label); err != nil {
				return fmt.Errorf("register tag: %w", err)
			}
			if _, err := tx.ExecContext(ctx, `
				INSERT INTO project_tags (project_id, tag, lifecycle)
				VALUES ($1, $2, 'draft')
				ON CONFLICT (project_id, tag, lifecycle) DO NOTHING
			`, projectID, label); err != nil {
				return fmt.Errorf("set label: %w", err)
			}
		}
		return nil
	})
}

// CreateParty registers a party in the global registry.
func (s *Store) CreateParty(ctx context.Context, name string, url *string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO parties (name, url) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET url=EXCLUDED.url
	`, name, url)
	if err != nil {
		return fmt.Errorf("create party: %w", err)
	}
	return nil
}

// ListParties returns the full party registry.
func (s *Store) ListParties(ctx context.Context) ([]Party, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, url FROM parties ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list parties: %w", err)
	}
	defer rows.Close()

	items := make([]Party, 0)
	for rows.Next() {
		var item Party
		if err := rows.Scan(&item.Name, &item.URL); err != nil {
			return nil, fmt.Errorf("scan party: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate parties: %w", err)
	}
	return items, nil
}

// SearchParties returns up to ten registry names matching the filter,
// skipping names already attached elsewhere in the caller's form.
func (s *Store) SearchParties(ctx context.Context, filter string, exclude []string) ([]string, error) {
	return s.searchRegistry(ctx, "parties", filter, exclude)
}

// SearchCompanies mirrors SearchParties for the company registry.
func (s *Store) SearchCompanies(ctx context.Context, filter string, exclude []string) ([]string, error) {
	return s.searchRegistry(ctx, "companies", filter, exclude)
}

// SearchIndustries mirrors SearchParties for the industry registry.
func (s *Store) SearchIndustries(ctx context.Context, filter string, exclude []string) ([]string, error) {
	return s.searchRegistry(ctx, "industries", filter, exclude)
}

// ListCompanies returns every registered company name.
func (s *Store) ListCompanies(ctx context.Context) ([]string, error) {
	return s.listRegistry(ctx, "companies")
}

// ListIndustries returns every registered industry name.
func (s *Store) ListIndustries(ctx context.Context) ([]string, error) {
	return s.listRegistry(ctx, "industries")
}

// table comes from the fixed registry set, never from a caller.
func (s *Store) searchRegistry(ctx context.Context, table, filter string, exclude []string) ([]string, error) {
	query := `SELECT name FROM ` + table + ` WHERE name ILIKE '%' || $1 || '%'`
	args := []any{filter}
	if len(exclude) > 0 {
		placeholders := make([]string, 0, len(exclude))
		for i, name := range exclude {
			placeholders = append(placeholders, "$"+strconv.Itoa(i+2))
			args = append(args, name)
		}
		query += ` AND name NOT IN (` + strings.Join(placeholders, ", ") + `)`
	}
	query += ` ORDER BY name ASC LIMIT 10`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", table, err)
	}
	defer rows.Close()
	return scanNames(rows, table)
}

func (s *Store) listRegistry(ctx context.Context, table string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name FROM `+table+` ORDER BY name ASC`)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", table, err)
	}
	defer rows.Close()
	return scanNames(rows, table)
}

func scanNames(rows *sql.Rows, table string) ([]string, error) {
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan %s name: %w", table, err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s names: %w", table, err)
	}
	return names, nil
}

// GrantPermission upserts a user's edit grant for one company scope (nil
// company grants the base scope).
func (s *Store) GrantPermission(ctx context.Context, userID string, company *string, canEdit bool) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO permissions (user_id, company_name, can_edit)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, company_name) DO UPDATE SET can_edit=EXCLUDED.can_edit
	`, userID, company, canEdit)
	if err != nil {
		return fmt.Errorf("grant permission: %w", err)
	}
	return nil
}

func addPartyTx(ctx context.Context, tx *sql.Tx, projectID, name, partyType string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO parties (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, name); err != nil {
		return fmt.Errorf("register party: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_parties (project_id, party_name, party_type, lifecycle)
		VALUES ($1, $2, $3, 'draft')
		ON CONFLICT (project_id, party_name, party_type, lifecycle) DO NOTHING
	`, projectID, name, partyType); err != nil {
		return fmt.Errorf("add party: %w", err)
	}
	return nil
}

func attachCompanyTx(ctx context.Context, tx *sql.Tx, projectID, company string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO companies (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, company); err != nil {
		return fmt.Errorf("register company: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_overrides (project_id, company_name, lifecycle)
		VALUES ($1, $2, 'draft')
		ON CONFLICT (project_id, company_name, lifecycle) DO NOTHING
	`, projectID, company); err != nil {
		return fmt.Errorf("attach company: %w", err)
	}
	return nil
}

func addIndustryTx(ctx context.Context, tx *sql.Tx, projectID, industry string) error {
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO industries (name) VALUES ($1) ON CONFLICT (name) DO NOTHING
	`, industry); err != nil {
		return fmt.Errorf("register industry: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO project_industries (project_id, industry_name, lifecycle)
		VALUES ($1, $2, 'draft')
		ON CONFLICT (project_id, industry_name, lifecycle) DO NOTHING
	`, projectID, industry); err != nil {
		return fmt.Errorf("add industry: %w", err)
	}
	return nil
}

func partyGroupsTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) (PartyGroups, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT pp.party_type, p.name, p.url
		FROM project_parties pp
		JOIN parties p ON p.name = pp.party_name
		WHERE pp.project_id=$1 AND pp.lifecycle=$2
		ORDER BY p.name ASC
	`, projectID, lc)
	if err != nil {
		return PartyGroups{}, fmt.Errorf("list parties for project: %w", err)
	}
	defer rows.Close()

	groups := PartyGroups{
		Clients:     make([]Party, 0),
		Architects:  make([]Party, 0),
		Contractors: make([]Party, 0),
	}
	for rows.Next() {
		var partyType string
		var item Party
		if err := rows.Scan(&partyType, &item.Name, &item.URL); err != nil {
			return PartyGroups{}, fmt.Errorf("scan project party: %w", err)
		}
		switch partyType {
		case "client":
			groups.Clients = append(groups.Clients, item)
		case "architect":
			groups.Architects = append(groups.Architects, item)
		case "contractor":
			groups.Contractors = append(groups.Contractors, item)
		}
	}
	if err := rows.Err(); err != nil {
		return PartyGroups{}, fmt.Errorf("iterate project parties: %w", err)
	}
	return groups, nil
}

func listLabelsTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) ([]Label, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT t.name, pt.tag IS NOT NULL
		FROM tags t
		LEFT JOIN project_tags pt ON t.name=pt.tag AND pt.project_id=$1 AND pt.lifecycle=$2
		ORDER BY t.name ASC
	`, projectID, lc)
	if err != nil {
		return nil, fmt.Errorf("list labels: %w", err)
	}
	defer rows.Close()

	items := make([]Label, 0)
	for rows.Next() {
		var item Label
		if err := rows.Scan(&item.Name, &item.Active); err != nil {
			return nil, fmt.Errorf("scan label: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate labels: %w", err)
	}
	return items, nil
}

func companyListTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) ([]CompanyListItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT c.name, po.company_name IS NOT NULL
		FROM companies c
		LEFT JOIN project_overrides po
			ON c.name=po.company_name AND po.project_id=$1 AND po.lifecycle=$2
		ORDER BY c.name ASC
	`, projectID, lc)
	if err != nil {
		return nil, fmt.Errorf("list companies: %w", err)
	}
	defer rows.Close()

	items := make([]CompanyListItem, 0)
	for rows.Next() {
		var item CompanyListItem
		if err := rows.Scan(&item.Name, &item.Active); err != nil {
			return nil, fmt.Errorf("scan company: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate companies: %w", err)
	}
	return items, nil
}

func listIndustriesTx(ctx context.Context, tx *sql.Tx, projectID string, lc Lifecycle) ([]string, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT industry_name FROM project_industries
		WHERE project_id=$1 AND lifecycle=$2
		ORDER BY industry_name ASC
	`, projectID, lc)
	if err != nil {
		return nil, fmt.Errorf("list industries: %w", err)
	}
	defer rows.Close()

	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan industry: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate industries: %w", err)
	}
	return names, nil
}
