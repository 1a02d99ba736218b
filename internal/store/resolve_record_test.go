package store

import (
	"errors"
	"testing"
)

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }

func baseRow() *OverrideRow {
	return &OverrideRow{
		Introduction:         strPtr("base intro"),
		HeaderPhoto:          strPtr("base-header.jpg"),
		HeaderPhotoCopyright: strPtr("base photographer"),
		Visible:              true,
	}
}

func TestResolveRecordMissingBase(t *testing.T) {
	_, err := resolveRecord(Project{ID: "p1"}, nil, nil, nil, false, false)
	if !errors.Is(err, ErrMissingBase) {
		t.Fatalf("resolveRecord() error = %v, want ErrMissingBase", err)
	}
}

func TestResolveRecordBaseScope(t *testing.T) {
	record, err := resolveRecord(Project{ID: "p1", Name: "Harbour"}, baseRow(), nil, nil, true, false)
	if err != nil {
		t.Fatalf("resolveRecord() error = %v", err)
	}
	if record.Introduction == nil || *record.Introduction != "base intro" {
		t.Fatalf("introduction = %v, want base intro", record.Introduction)
	}
	// With no company scope every field reads as the scope's own.
	if !record.CustomIntroduction || !record.CustomHeaderPhoto || !record.CustomContent || !record.CustomImages {
		t.Fatalf("base scope custom flags should all be true: %+v", record)
	}
	if record.Weight != nil {
		t.Fatalf("weight = %v, want nil outside a company scope", record.Weight)
	}
}

func TestResolveRecordInheritsFromBase(t *testing.T) {
	company := "nordics"
	tenant := &OverrideRow{CompanyName: &company, Visible: false, Weight: intPtr(3)}
	record, err := resolveRecord(Project{ID: "p1"}, baseRow(), tenant, &company, true, true)
	if err != nil {
		t.Fatalf("resolveRecord() error = %v", err)
	}
	if record.Introduction == nil || *record.Introduction != "base intro" {
		t.Fatalf("introduction = %v, want inherited base intro", record.Introduction)
	}
	if record.CustomIntroduction {
		t.Fatal("introduction should read as inherited")
	}
	if record.CustomContent || record.CustomImages {
		t.Fatal("content and images should read as inherited")
	}
	// Presentation fields come from the tenant row, never the base.
	if record.Visible {
		t.Fatal("visible should come from the tenant row")
	}
	if record.Weight == nil || *record.Weight != 3 {
		t.Fatalf("weight = %v, want 3", record.Weight)
	}
}

func TestResolveRecordTenantOverrideWins(t *testing.T) {
	company := "nordics"
	tenant := &OverrideRow{
		CompanyName:  &company,
		Introduction: strPtr("tenant intro"),
		HeaderPhoto:  strPtr("tenant-header.jpg"),
	}
	record, err := resolveRecord(Project{ID: "p1"}, baseRow(), tenant, &company, false, true)
	if err != nil {
		t.Fatalf("resolveRecord() error = %v", err)
	}
	if *record.Introduction != "tenant intro" || !record.CustomIntroduction {
		t.Fatalf("introduction = %v custom=%v, want tenant override", record.Introduction, record.CustomIntroduction)
	}
	if *record.HeaderPhoto != "tenant-header.jpg" || !record.CustomHeaderPhoto {
		t.Fatalf("header = %v custom=%v, want tenant override", record.HeaderPhoto, record.CustomHeaderPhoto)
	}
	// The copyright follows the photo's fork: a forked photo with no
	// copyright of its own must not borrow the base photographer credit.
	if record.HeaderPhotoCopyright != nil {
		t.Fatalf("header copyright = %v, want nil for forked photo", record.HeaderPhotoCopyright)
	}
}

func TestResolveRecordUnattachedCompanyFallsBack(t *testing.T) {
	company := "ghost"
	record, err := resolveRecord(Project{ID: "p1"}, baseRow(), nil, &company, false, true)
	if err != nil {
		t.Fatalf("resolveRecord() error = %v", err)
	}
	if record.Introduction == nil || *record.Introduction != "base intro" {
		t.Fatalf("introduction = %v, want base fallback", record.Introduction)
	}
	if record.CustomIntroduction || record.CustomContent {
		t.Fatal("unattached company must read everything as inherited")
	}
	// Presentation falls back to the base row when no tenant row exists.
	if !record.Visible {
		t.Fatal("visible should fall back to the base row")
	}
}
