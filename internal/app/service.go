package app

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/rs/zerolog"

	"atelier/api/internal/auth"
	"atelier/api/internal/cache"
	"atelier/api/internal/config"
	"atelier/api/internal/media"
	"atelier/api/internal/store"
	"atelier/api/internal/util"
)

// Identity is the caller of an editor request. Company pins the editor to
// one tenant scope; nil means the base scope.
type Identity struct {
	UserID  string
	Company *string
}

type CreateProjectBody struct {
	Name        string   `json:"name"`
	Location    *string  `json:"location"`
	Year        *int     `json:"year"`
	Status      bool     `json:"status"`
	Procurement string   `json:"procurement"`
	Clients     []string `json:"clients"`
	Architects  []string `json:"architects"`
	Contractors []string `json:"contractors"`
	Companies   []string `json:"companies"`
	Industries  []string `json:"industries"`
}

// projectFields and overrideFields gate which columns the per-field update
// endpoints may touch.
var projectFields = map[string]struct{}{
	"name":        {},
	"location":    {},
	"year":        {},
	"learn_more":  {},
	"status":      {},
	"procurement": {},
}

var overrideFields = map[string]struct{}{
	"introduction":           {},
	"header_photo":           {},
	"header_photo_copyright": {},
	"banner_photo":           {},
	"banner_photo_copyright": {},
	"thumbnail":              {},
	"visible":                {},
	"show_in_carousel":       {},
	"weight":                 {},
}

var customiseGroups = map[string]struct{}{
	"introduction": {},
	"header":       {},
	"banner":       {},
}

var procurementValues = map[string]struct{}{
	"public":  {},
	"private": {},
}

type dataStore interface {
	Ping(context.Context) error
	CreateProject(context.Context, store.CreateProjectInput) (string, error)
	ListProjects(context.Context, string, string) ([]store.ProjectListItem, error)
	DeleteProject(context.Context, string) error
	OpenProject(context.Context, string, *string) (store.ProjectView, error)
	PublicView(context.Context, string, *string) (store.ProjectView, error)
	EnsureDraft(context.Context, string) (store.DraftState, error)
	UpdateProjectField(context.Context, string, string, any) error
	UpdateOverrideField(context.Context, string, *string, string, any) error
	CustomiseOverride(context.Context, string, string, string) error
	Publish(context.Context, string, *string) (store.ProjectView, error)
	Revert(context.Context, string, *string) (store.ProjectView, error)
	Unpublish(context.Context, string, *string) (store.ProjectView, error)
	ReadContent(context.Context, string, *string) ([]store.Block, error)
	InsertBlock(context.Context, string, *string, *string) (store.Block, error)
	DeleteBlock(context.Context, string) error
	UpdateBlockText(context.Context, string, string) (store.Block, error)
	UpdateBlockQuote(context.Context, string, *string) (store.Block, error)
	UpdateBlockImage(context.Context, string, *string, *string) (store.Block, error)
	CustomiseContent(context.Context, string, string) ([]store.Block, error)
	ListImages(context.Context, string, *string) ([]store.Image, error)
	AddImage(context.Context, string, *string, store.Image) (store.Image, error)
	DeleteImage(context.Context, string) error
	CustomiseImages(context.Context, string, string) ([]store.Image, error)
	CreateCoreNumber(context.Context, string) (store.CoreNumber, error)
	UpdateCoreNumber(context.Context, string, string, string) (store.CoreNumber, error)
	DeleteCoreNumber(context.Context, string) error
	SetLabels(context.Context, string, []string) error
	AddParty(context.Context, string, string, string) error
	RemoveParty(context.Context, string, string, string) error
	AttachCompany(context.Context, string, string) error
	DetachCompany(context.Context, string, string) error
	AddIndustry(context.Context, string, string) error
	RemoveIndustry(context.Context, string, string) error
	CreateParty(context.Context, string, *string) error
	ListParties(context.Context) ([]store.Party, error)
	SearchParties(context.Context, string, []string) ([]string, error)
	ListCompanies(context.Context) ([]string, error)
	SearchCompanies(context.Context, string, []string) ([]string, error)
	ListIndustries(context.Context) ([]string, error)
	SearchIndustries(context.Context, string, []string) ([]string, error)
	GrantPermission(context.Context, string, *string, bool) error
}

type viewCache interface {
	GetView(ctx context.Context, projectID string, company *string, out any) error
	SetView(ctx context.Context, projectID string, company *string, view any) error
	InvalidateProject(ctx context.Context, projectID string) error
}

type mediaStorage interface {
	Upload(ctx context.Context, name string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Remove(ctx context.Context, name string) error
}

type Service struct {
	cfg   config.Config
	store dataStore
	cache viewCache
	media mediaStorage
	log   zerolog.Logger
}

func New(cfg config.Config, dataStore *store.Store, viewCache *cache.Cache, mediaStore *media.Storage, logger zerolog.Logger) *Service {
	svc := &Service{cfg: cfg, store: dataStore, log: logger}
	if viewCache != nil {
		svc.cache = viewCache
	}
	if mediaStore != nil {
		svc.media = mediaStore
	}
	return svc
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// IdentityFromToken verifies a bearer token and returns the caller.
func (s *Service) IdentityFromToken(token string) (Identity, error) {
	claims, err := auth.ParseToken([]byte(s.cfg.TokenSecret), token)
	if err != nil {
		return Identity{}, err
	}
	return Identity{UserID: claims.Sub, Company: claims.Company}, nil
}

func (s *Service) CreateProject(ctx context.Context, body CreateProjectBody) (store.ProjectView, error) {
	name := strings.TrimSpace(body.Name)
	if name == "" {
		return store.ProjectView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	procurement := body.Procurement
	if procurement == "" {
		procurement = "public"
	}
	if _, ok := procurementValues[procurement]; !ok {
		return store.ProjectView{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "procurement must be public or private", nil)
	}

	projectID, err := s.store.CreateProject(ctx, store.CreateProjectInput{
		Name:        name,
		Location:    body.Location,
		Year:        body.Year,
		Status:      body.Status,
		Procurement: procurement,
		Clients:     body.Clients,
		Architects:  body.Architects,
		Contractors: body.Contractors,
		Companies:   body.Companies,
		Industries:  body.Industries,
	})
	if err != nil {
		return store.ProjectView{}, err
	}
	s.log.Info().Str("project_id", projectID).Msg("project created")
	return s.store.OpenProject(ctx, projectID, nil)
}

func (s *Service) ListProjects(ctx context.Context, identity Identity, filter string) ([]store.ProjectListItem, error) {
	return s.store.ListProjects(ctx, filter, identity.UserID)
}

func (s *Service) OpenProject(ctx context.Context, projectID string, company *string) (store.ProjectView, error) {
	return s.store.OpenProject(ctx, projectID, company)
}

// PublicProject serves the published view, read through the cache when one
// is configured. Editor traffic never takes this path.
func (s *Service) PublicProject(ctx context.Context, projectID string, company *string) (store.ProjectView, error) {
	if s.cache != nil {
		var view store.ProjectView
		err := s.cache.GetView(ctx, projectID, company, &view)
		if err == nil {
			return view, nil
		}
		if !errors.Is(err, cache.ErrMiss) {
			s.log.Warn().Err(err).Str("project_id", projectID).Msg("view cache read failed")
		}
	}

	view, err := s.store.PublicView(ctx, projectID, company)
	if err != nil {
		return store.ProjectView{}, err
	}
	if s.cache != nil {
		if err := s.cache.SetView(ctx, projectID, company, view); err != nil {
			s.log.Warn().Err(err).Str("project_id", projectID).Msg("view cache write failed")
		}
	}
	return view, nil
}

func (s *Service) DeleteProject(ctx context.Context, projectID string) error {
	if err := s.store.DeleteProject(ctx, projectID); err != nil {
		return err
	}
	s.invalidate(ctx, projectID)
	s.log.Info().Str("project_id", projectID).Msg("project deleted")
	return nil
}

func (s *Service) Publish(ctx context.Context, projectID string, company *string) (store.ProjectView, error) {
	view, err := s.store.Publish(ctx, projectID, company)
	if err != nil {
		return store.ProjectView{}, err
	}
	s.invalidate(ctx, projectID)
	s.log.Info().Str("project_id", projectID).Msg("project published")
	return view, nil
}

func (s *Service) Revert(ctx context.Context, projectID string, company *string) (store.ProjectView, error) {
	view, err := s.store.Revert(ctx, projectID, company)
	if err != nil {
		return store.ProjectView{}, err
	}
	s.invalidate(ctx, projectID)
	s.log.Info().Str("project_id", projectID).Msg("draft reverted")
	return view, nil
}

func (s *Service) Unpublish(ctx context.Context, projectID string, company *string) (store.ProjectView, error) {
	view, err := s.store.Unpublish(ctx, projectID, company)
	if err != nil {
		return store.ProjectView{}, err
	}
	s.invalidate(ctx, projectID)
	s.log.Info().Str("project_id", projectID).Msg("project unpublished")
	return view, nil
}

// UpdateProjectFields applies a set of plain project fields to the draft.
func (s *Service) UpdateProjectFields(ctx context.Context, projectID string, fields map[string]any) error {
	if len(fields) == 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "no fields provided", nil)
	}
	for field := range fields {
		if _, ok := projectFields[field]; !ok {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown field "+field, nil)
		}
	}
	if raw, ok := fields["procurement"]; ok {
		value, _ := raw.(string)
		if _, ok := procurementValues[value]; !ok {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "procurement must be public or private", nil)
		}
	}
	for field, value := range fields {
		if err := s.store.UpdateProjectField(ctx, projectID, field, normalizeFieldValue(field, value)); err != nil {
			return err
		}
	}
	return nil
}

// UpdateOverrideFields applies per-scope fields to the draft override row
// for the caller's company scope.
func (s *Service) UpdateOverrideFields(ctx context.Context, projectID string, company *string, fields map[string]any) error {
	if len(fields) == 0 {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "no fields provided", nil)
	}
	for field := range fields {
		if _, ok := overrideFields[field]; !ok {
			return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown field "+field, nil)
		}
	}
	for field, value := range fields {
		if err := s.store.UpdateOverrideField(ctx, projectID, company, field, normalizeFieldValue(field, value)); err != nil {
			return err
		}
	}
	return nil
}

// Customise forks a company's copy of one overridable field group.
func (s *Service) Customise(ctx context.Context, projectID string, company *string, group string) error {
	if _, ok := customiseGroups[group]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown group "+group, nil)
	}
	name, err := requireCompany(company)
	if err != nil {
		return err
	}
	return s.store.CustomiseOverride(ctx, projectID, name, group)
}

func (s *Service) ReadContent(ctx context.Context, projectID string, company *string) ([]store.Block, error) {
	return s.store.ReadContent(ctx, projectID, company)
}

func (s *Service) InsertBlock(ctx context.Context, projectID string, company *string, after *string) (store.Block, error) {
	return s.store.InsertBlock(ctx, projectID, company, after)
}

func (s *Service) DeleteBlock(ctx context.Context, blockID string) error {
	return s.store.DeleteBlock(ctx, blockID)
}

func (s *Service) UpdateBlockText(ctx context.Context, blockID, body string) (store.Block, error) {
	return s.store.UpdateBlockText(ctx, blockID, body)
}

func (s *Service) UpdateBlockQuote(ctx context.Context, blockID string, quote *string) (store.Block, error) {
	return s.store.UpdateBlockQuote(ctx, blockID, quote)
}

func (s *Service) UpdateBlockImage(ctx context.Context, blockID string, image, copyright *string) (store.Block, error) {
	return s.store.UpdateBlockImage(ctx, blockID, image, copyright)
}

func (s *Service) CustomiseContent(ctx context.Context, projectID string, company *string) ([]store.Block, error) {
	name, err := requireCompany(company)
	if err != nil {
		return nil, err
	}
	return s.store.CustomiseContent(ctx, projectID, name)
}

func (s *Service) ListImages(ctx context.Context, projectID string, company *string) ([]store.Image, error) {
	return s.store.ListImages(ctx, projectID, company)
}

func (s *Service) AddImage(ctx context.Context, projectID string, company *string, image store.Image) (store.Image, error) {
	if strings.TrimSpace(image.Image) == "" {
		return store.Image{}, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "image is required", nil)
	}
	return s.store.AddImage(ctx, projectID, company, image)
}

func (s *Service) DeleteImage(ctx context.Context, imageID string) error {
	return s.store.DeleteImage(ctx, imageID)
}

func (s *Service) CustomiseImages(ctx context.Context, projectID string, company *string) ([]store.Image, error) {
	name, err := requireCompany(company)
	if err != nil {
		return nil, err
	}
	return s.store.CustomiseImages(ctx, projectID, name)
}

func (s *Service) CreateCoreNumber(ctx context.Context, projectID string) (store.CoreNumber, error) {
	return s.store.CreateCoreNumber(ctx, projectID)
}

func (s *Service) UpdateCoreNumber(ctx context.Context, coreNumberID, title, number string) (store.CoreNumber, error) {
	return s.store.UpdateCoreNumber(ctx, coreNumberID, title, number)
}

func (s *Service) DeleteCoreNumber(ctx context.Context, coreNumberID string) error {
	return s.store.DeleteCoreNumber(ctx, coreNumberID)
}

func (s *Service) SetLabels(ctx context.Context, projectID string, labels []string) error {
	return s.store.SetLabels(ctx, projectID, labels)
}

func (s *Service) AddParty(ctx context.Context, projectID, name, partyType string) error {
	if _, ok := store.PartyTypes[partyType]; !ok {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "type must be client, architect or contractor", nil)
	}
	if strings.TrimSpace(name) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	return s.store.AddParty(ctx, projectID, name, partyType)
}

func (s *Service) RemoveParty(ctx context.Context, projectID, name, partyType string) error {
	return s.store.RemoveParty(ctx, projectID, name, partyType)
}

func (s *Service) AttachCompany(ctx context.Context, projectID, company string) error {
	if strings.TrimSpace(company) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	return s.store.AttachCompany(ctx, projectID, company)
}

func (s *Service) DetachCompany(ctx context.Context, projectID, company string) error {
	return s.store.DetachCompany(ctx, projectID, company)
}

func (s *Service) AddIndustry(ctx context.Context, projectID, industry string) error {
	if strings.TrimSpace(industry) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	return s.store.AddIndustry(ctx, projectID, industry)
}

func (s *Service) RemoveIndustry(ctx context.Context, projectID, industry string) error {
	return s.store.RemoveIndustry(ctx, projectID, industry)
}

func (s *Service) CreateParty(ctx context.Context, name string, url *string) error {
	if strings.TrimSpace(name) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}
	return s.store.CreateParty(ctx, name, url)
}

func (s *Service) ListParties(ctx context.Context) ([]store.Party, error) {
	return s.store.ListParties(ctx)
}

func (s *Service) SearchParties(ctx context.Context, filter string, exclude []string) ([]string, error) {
	return s.store.SearchParties(ctx, filter, exclude)
}

func (s *Service) ListCompanies(ctx context.Context) ([]string, error) {
	return s.store.ListCompanies(ctx)
}

func (s *Service) SearchCompanies(ctx context.Context, filter string, exclude []string) ([]string, error) {
	return s.store.SearchCompanies(ctx, filter, exclude)
}

func (s *Service) ListIndustries(ctx context.Context) ([]string, error) {
	return s.store.ListIndustries(ctx)
}

func (s *Service) SearchIndustries(ctx context.Context, filter string, exclude []string) ([]string, error) {
	return s.store.SearchIndustries(ctx, filter, exclude)
}

func (s *Service) GrantPermission(ctx context.Context, userID string, company *string, canEdit bool) error {
	if strings.TrimSpace(userID) == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "userId is required", nil)
	}
	return s.store.GrantPermission(ctx, userID, company, canEdit)
}

// UploadMedia stores an uploaded file under a fresh object name, keeping
// the original extension so content type sniffing stays sane downstream.
func (s *Service) UploadMedia(ctx context.Context, filename string, r io.Reader, size int64, contentType string) (string, error) {
	if s.media == nil {
		return "", domainError(http.StatusServiceUnavailable, "MEDIA_DISABLED", "Object storage is not configured", nil)
	}
	name := util.NewID() + strings.ToLower(path.Ext(filename))
	stored, err := s.media.Upload(ctx, name, r, size, contentType)
	if err != nil {
		return "", err
	}
	s.log.Info().Str("object", stored).Msg("media uploaded")
	return stored, nil
}

func (s *Service) OpenMedia(ctx context.Context, name string) (io.ReadCloser, error) {
	if s.media == nil {
		return nil, domainError(http.StatusServiceUnavailable, "MEDIA_DISABLED", "Object storage is not configured", nil)
	}
	return s.media.Open(ctx, name)
}

func (s *Service) RemoveMedia(ctx context.Context, name string) error {
	if s.media == nil {
		return domainError(http.StatusServiceUnavailable, "MEDIA_DISABLED", "Object storage is not configured", nil)
	}
	return s.media.Remove(ctx, name)
}

func (s *Service) invalidate(ctx context.Context, projectID string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateProject(ctx, projectID); err != nil {
		s.log.Warn().Err(err).Str("project_id", projectID).Msg("view cache invalidation failed")
	}
}

// normalizeFieldValue converts JSON numbers to int for integer columns so
// the driver does not send them as floats.
func normalizeFieldValue(field string, value any) any {
	switch field {
	case "year", "weight":
		if f, ok := value.(float64); ok {
			return int(f)
		}
	}
	return value
}

func requireCompany(company *string) (string, error) {
	if company == nil || strings.TrimSpace(*company) == "" {
		return "", domainError(http.StatusBadRequest, "COMPANY_REQUIRED", "a company scope is required to customise", nil)
	}
	return *company, nil
}
