package app

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"atelier/api/internal/auth"
	"atelier/api/internal/cache"
	"atelier/api/internal/config"
	"atelier/api/internal/store"
)

type fakeStore struct {
	createProjectFn       func(context.Context, store.CreateProjectInput) (string, error)
	listProjectsFn        func(context.Context, string, string) ([]store.ProjectListItem, error)
	openProjectFn         func(context.Context, string, *string) (store.ProjectView, error)
	publicViewFn          func(context.Context, string, *string) (store.ProjectView, error)
	deleteProjectFn       func(context.Context, string) error
	updateProjectFieldFn  func(context.Context, string, string, any) error
	updateOverrideFieldFn func(context.Context, string, *string, string, any) error
	customiseOverrideFn   func(context.Context, string, string, string) error
	publishFn             func(context.Context, string, *string) (store.ProjectView, error)
	revertFn              func(context.Context, string, *string) (store.ProjectView, error)
	unpublishFn           func(context.Context, string, *string) (store.ProjectView, error)
	insertBlockFn         func(context.Context, string, *string, *string) (store.Block, error)
	updateBlockTextFn     func(context.Context, string, string) (store.Block, error)
	customiseContentFn    func(context.Context, string, string) ([]store.Block, error)
	addPartyFn            func(context.Context, string, string, string) error
	listCompaniesFn       func(context.Context) ([]string, error)
	searchCompaniesFn     func(context.Context, string, []string) ([]string, error)
}

func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) CreateProject(ctx context.Context, input store.CreateProjectInput) (string, error) {
	if f.createProjectFn != nil {
		return f.createProjectFn(ctx, input)
	}
	return "p1", nil
}
func (f *fakeStore) ListProjects(ctx context.Context, filter, userID string) ([]store.ProjectListItem, error) {
	if f.listProjectsFn != nil {
		return f.listProjectsFn(ctx, filter, userID)
	}
	return nil, nil
}
func (f *fakeStore) DeleteProject(ctx context.Context, projectID string) error {
	if f.deleteProjectFn != nil {
		return f.deleteProjectFn(ctx, projectID)
	}
	return nil
}
func (f *fakeStore) OpenProject(ctx context.Context, projectID string, company *string) (store.ProjectView, error) {
	if f.openProjectFn != nil {
		return f.openProjectFn(ctx, projectID, company)
	}
	return store.ProjectView{Record: store.EffectiveRecord{ID: projectID}}, nil
}
func (f *fakeStore) PublicView(ctx context.Context, projectID string, company *string) (store.ProjectView, error) {
	if f.publicViewFn != nil {
		return f.publicViewFn(ctx, projectID, company)
	}
	return store.ProjectView{Record: store.EffectiveRecord{ID: projectID}}, nil
}
func (f *fakeStore) EnsureDraft(context.Context, string) (store.DraftState, error) {
	return store.DraftState{}, nil
}
func (f *fakeStore) UpdateProjectField(ctx context.Context, projectID, field string, value any) error {
	if f.updateProjectFieldFn != nil {
		return f.updateProjectFieldFn(ctx, projectID, field, value)
	}
	return nil
}
func (f *fakeStore) UpdateOverrideField(ctx context.Context, projectID string, company *string, field string, value any) error {
	if f.updateOverrideFieldFn != nil {
		return f.updateOverrideFieldFn(ctx, projectID, company, field, value)
	}
	return nil
}
func (f *fakeStore) CustomiseOverride(ctx context.Context, projectID, company, group string) error {
	if f.customiseOverrideFn != nil {
		return f.customiseOverrideFn(ctx, projectID, company, group)
	}
	return nil
}
func (f *fakeStore) Publish(ctx context.Context, projectID string, viewer *string) (store.ProjectView, error) {
	if f.publishFn != nil {
		return f.publishFn(ctx, projectID, viewer)
	}
	return store.ProjectView{}, nil
}
func (f *fakeStore) Revert(ctx context.Context, projectID string, viewer *string) (store.ProjectView, error) {
	if f.revertFn != nil {
		return f.revertFn(ctx, projectID, viewer)
	}
	return store.ProjectView{}, nil
}
func (f *fakeStore) Unpublish(ctx context.Context, projectID string, viewer *string) (store.ProjectView, error) {
	if f.unpublishFn != nil {
		return f.unpublishFn(ctx, projectID, viewer)
	}
	return store.ProjectView{}, nil
}
func (f *fakeStore) ReadContent(context.Context, string, *string) ([]store.Block, error) {
	return nil, nil
}
func (f *fakeStore) InsertBlock(ctx context.Context, projectID string, company *string, after *string) (store.Block, error) {
	if f.insertBlockFn != nil {
		return f.insertBlockFn(ctx, projectID, company, after)
	}
	return store.Block{}, nil
}
func (f *fakeStore) DeleteBlock(context.Context, string) error { return nil }
func (f *fakeStore) UpdateBlockText(ctx context.Context, blockID, body string) (store.Block, error) {
	if f.updateBlockTextFn != nil {
		return f.updateBlockTextFn(ctx, blockID, body)
	}
	return store.Block{}, nil
}
func (f *fakeStore) UpdateBlockQuote(context.Context, string, *string) (store.Block, error) {
	return store.Block{}, nil
}
func (f *fakeStore) UpdateBlockImage(context.Context, string, *string, *string) (store.Block, error) {
	return store.Block{}, nil
}
func (f *fakeStore) CustomiseContent(ctx context.Context, projectID, company string) ([]store.Block, error) {
	if f.customiseContentFn != nil {
		return f.customiseContentFn(ctx, projectID, company)
	}
	return nil, nil
}
func (f *fakeStore) ListImages(context.Context, string, *string) ([]store.Image, error) {
	return nil, nil
}
func (f *fakeStore) AddImage(context.Context, string, *string, store.Image) (store.Image, error) {
	return store.Image{}, nil
}
func (f *fakeStore) DeleteImage(context.Context, string) error { return nil }
func (f *fakeStore) CustomiseImages(context.Context, string, string) ([]store.Image, error) {
	return nil, nil
}
func (f *fakeStore) CreateCoreNumber(context.Context, string) (store.CoreNumber, error) {
	return store.CoreNumber{}, nil
}
func (f *fakeStore) UpdateCoreNumber(context.Context, string, string, string) (store.CoreNumber, error) {
	return store.CoreNumber{}, nil
}
func (f *fakeStore) DeleteCoreNumber(context.Context, string) error    { return nil }
func (f *fakeStore) SetLabels(context.Context, string, []string) error { return nil }
func (f *fakeStore) AddParty(ctx context.Context, projectID, name, partyType string) error {
	if f.addPartyFn != nil {
		return f.addPartyFn(ctx, projectID, name, partyType)
	}
	return nil
}
func (f *fakeStore) RemoveParty(context.Context, string, string, string) error { return nil }
func (f *fakeStore) AttachCompany(context.Context, string, string) error       { return nil }
func (f *fakeStore) DetachCompany(context.Context, string, string) error       { return nil }
func (f *fakeStore) AddIndustry(context.Context, string, string) error         { return nil }
func (f *fakeStore) RemoveIndustry(context.Context, string, string) error      { return nil }
func (f *fakeStore) CreateParty(context.Context, string, *string) error        { return nil }
func (f *fakeStore) ListParties(context.Context) ([]store.Party, error)        { return nil, nil }
func (f *fakeStore) SearchParties(context.Context, string, []string) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) ListCompanies(ctx context.Context) ([]string, error) {
	if f.listCompaniesFn != nil {
		return f.listCompaniesFn(ctx)
	}
	return nil, nil
}
func (f *fakeStore) SearchCompanies(ctx context.Context, filter string, exclude []string) ([]string, error) {
	if f.searchCompaniesFn != nil {
		return f.searchCompaniesFn(ctx, filter, exclude)
	}
	return nil, nil
}
func (f *fakeStore) ListIndustries(context.Context) ([]string, error) { return nil, nil }
func (f *fakeStore) SearchIndustries(context.Context, string, []string) ([]string, error) {
	return nil, nil
}
func (f *fakeStore) GrantPermission(context.Context, string, *string, bool) error { return nil }

func newTestService(fs *fakeStore) *Service {
	return &Service{
		cfg:   config.Config{TokenSecret: "test-secret"},
		store: fs,
		log:   zerolog.Nop(),
	}
}

func newTestCache(t *testing.T) viewCache {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return cache.NewWithClient(client, time.Minute)
}

func TestCreateProjectRequiresName(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateProject(context.Background(), CreateProjectBody{Name: "  "})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("CreateProject() error = %v, want 422", err)
	}
}

func TestCreateProjectRejectsBadProcurement(t *testing.T) {
	svc := newTestService(&fakeStore{})
	_, err := svc.CreateProject(context.Background(), CreateProjectBody{Name: "Harbour", Procurement: "secret"})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("CreateProject() error = %v, want 422", err)
	}
}

func TestCustomiseRequiresCompany(t *testing.T) {
	svc := newTestService(&fakeStore{})
	err := svc.Customise(context.Background(), "p1", nil, "introduction")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Code != "COMPANY_REQUIRED" {
		t.Fatalf("Customise() error = %v, want COMPANY_REQUIRED", err)
	}

	empty := "  "
	err = svc.Customise(context.Background(), "p1", &empty, "introduction")
	if !errors.As(err, &domainErr) || domainErr.Code != "COMPANY_REQUIRED" {
		t.Fatalf("Customise() error = %v, want COMPANY_REQUIRED", err)
	}
}

func TestCustomiseRejectsUnknownGroup(t *testing.T) {
	svc := newTestService(&fakeStore{})
	company := "nordics"
	err := svc.Customise(context.Background(), "p1", &company, "thumbnail")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("Customise() error = %v, want 422", err)
	}
}

func TestUpdateProjectFieldsRejectsUnknownField(t *testing.T) {
	svc := newTestService(&fakeStore{})
	err := svc.UpdateProjectFields(context.Background(), "p1", map[string]any{"visible": true})
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("UpdateProjectFields() error = %v, want 422", err)
	}
}

func TestUpdateProjectFieldsCoercesYearToInt(t *testing.T) {
	var gotValue any
	fs := &fakeStore{
		updateProjectFieldFn: func(_ context.Context, _, field string, value any) error {
			if field == "year" {
				gotValue = value
			}
			return nil
		},
	}
	svc := newTestService(fs)
	if err := svc.UpdateProjectFields(context.Background(), "p1", map[string]any{"year": float64(2024)}); err != nil {
		t.Fatalf("UpdateProjectFields() error = %v", err)
	}
	if year, ok := gotValue.(int); !ok || year != 2024 {
		t.Fatalf("year passed as %T(%v), want int(2024)", gotValue, gotValue)
	}
}

func TestAddPartyRejectsUnknownType(t *testing.T) {
	svc := newTestService(&fakeStore{})
	err := svc.AddParty(context.Background(), "p1", "Acme", "sponsor")
	var domainErr *DomainError
	if !errors.As(err, &domainErr) || domainErr.Status != http.StatusUnprocessableEntity {
		t.Fatalf("AddParty() error = %v, want 422", err)
	}
}

func TestIdentityFromTokenRoundTrip(t *testing.T) {
	svc := newTestService(&fakeStore{})
	company := "nordics"
	token, err := auth.IssueToken([]byte("test-secret"), "user-1", &company, time.Hour)
	if err != nil {
		t.Fatalf("IssueToken() error = %v", err)
	}
	identity, err := svc.IdentityFromToken(token)
	if err != nil {
		t.Fatalf("IdentityFromToken() error = %v", err)
	}
	if identity.UserID != "user-1" || identity.Company == nil || *identity.Company != "nordics" {
		t.Fatalf("unexpected identity: %+v", identity)
	}
}

func TestPublicProjectReadsThroughCache(t *testing.T) {
	storeHits := 0
	fs := &fakeStore{
		publicViewFn: func(_ context.Context, projectID string, _ *string) (store.ProjectView, error) {
			storeHits++
			return store.ProjectView{Record: store.EffectiveRecord{ID: projectID, Name: "Harbour"}}, nil
		},
	}
	svc := newTestService(fs)
	svc.cache = newTestCache(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		view, err := svc.PublicProject(ctx, "p1", nil)
		if err != nil {
			t.Fatalf("PublicProject() error = %v", err)
		}
		if view.Record.Name != "Harbour" {
			t.Fatalf("unexpected view: %+v", view.Record)
		}
	}
	if storeHits != 1 {
		t.Fatalf("store hit %d times, want 1", storeHits)
	}
}

func TestPublishInvalidatesCachedViews(t *testing.T) {
	storeHits := 0
	fs := &fakeStore{
		publicViewFn: func(_ context.Context, projectID string, _ *string) (store.ProjectView, error) {
			storeHits++
			return store.ProjectView{Record: store.EffectiveRecord{ID: projectID}}, nil
		},
	}
	svc := newTestService(fs)
	svc.cache = newTestCache(t)
	ctx := context.Background()

	if _, err := svc.PublicProject(ctx, "p1", nil); err != nil {
		t.Fatalf("PublicProject() error = %v", err)
	}
	if _, err := svc.Publish(ctx, "p1", nil); err != nil {
		t.Fatalf("Publish() error = %v", err)
	}
	if _, err := svc.PublicProject(ctx, "p1", nil); err != nil {
		t.Fatalf("PublicProject() error = %v", err)
	}
	if storeHits != 2 {
		t.Fatalf("store hit %d times, want 2 (cache dropped on publish)", storeHits)
	}
}

func TestPublishPropagatesNoDraft(t *testing.T) {
	fs := &fakeStore{
		publishFn: func(context.Context, string, *string) (store.ProjectView, error) {
			return store.ProjectView{}, store.ErrNoDraft
		},
	}
	svc := newTestService(fs)
	_, err := svc.Publish(context.Background(), "p1", nil)
	if !errors.Is(err, store.ErrNoDraft) {
		t.Fatalf("Publish() error = %v, want ErrNoDraft", err)
	}
}

func TestOpenProjectPassesThroughNotFound(t *testing.T) {
	fs := &fakeStore{
		openProjectFn: func(context.Context, string, *string) (store.ProjectView, error) {
			return store.ProjectView{}, sql.ErrNoRows
		},
	}
	svc := newTestService(fs)
	_, err := svc.OpenProject(context.Background(), "missing", nil)
	if !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("OpenProject() error = %v, want sql.ErrNoRows", err)
	}
}
