package store

// Lifecycle distinguishes the published copy of a row from its editable
// draft copy. A row's natural key plus its lifecycle is its full identity.
type Lifecycle string

const (
	Live  Lifecycle = "live"
	Draft Lifecycle = "draft"
)

func (l Lifecycle) Valid() bool {
	return l == Live || l == Draft
}

type Project struct {
	ID          string
	Lifecycle   Lifecycle
	Name        string
	Location    *string
	Year        *int
	LearnMore   *string
	Status      bool
	Procurement string
}

// OverrideRow is one (project, company, lifecycle) settings row. The row
// with CompanyName nil is the base row all companies inherit from.
type OverrideRow struct {
	ProjectID            string
	CompanyName          *string
	Lifecycle            Lifecycle
	Introduction         *string
	HeaderPhoto          *string
	HeaderPhotoCopyright *string
	BannerPhoto          *string
	BannerPhotoCopyright *string
	Thumbnail            *string
	CustomContent        bool
	CustomImages         bool
	Visible              bool
	ShowInCarousel       bool
	Weight               *int
}

// EffectiveRecord is a project's resolved view for one company scope: every
// overridable field carries its tenant-over-base effective value and the
// companion custom flag the edit UI keys off.
type EffectiveRecord struct {
	ID          string
	Lifecycle   Lifecycle
	Name        string
	Location    *string
	Year        *int
	LearnMore   *string
	Status      bool
	Procurement string

	Introduction       *string
	CustomIntroduction bool

	HeaderPhoto          *string
	HeaderPhotoCopyright *string
	CustomHeaderPhoto    bool

	BannerPhoto          *string
	BannerPhotoCopyright *string
	CustomBannerPhoto    bool

	CustomContent bool
	CustomImages  bool

	Visible        bool
	ShowInCarousel bool
	Weight         *int
	Thumbnail      *string

	HasDraft  bool
	Published bool
}

type Block struct {
	ID             string
	Body           string
	Image          *string
	ImageCopyright *string
	Quote          *string
}

type Image struct {
	ID             string
	Image          string
	ImageCopyright *string
	Alt            *string
}

type CoreNumber struct {
	ID     string
	Title  string
	Number string
}

type Party struct {
	Name string
	URL  *string
}

// PartyGroups holds the project's party associations split by role.
type PartyGroups struct {
	Clients     []Party
	Architects  []Party
	Contractors []Party
}

type Label struct {
	Name   string
	Active bool
}

type CompanyListItem struct {
	Name   string
	Active bool
}

type ProjectListItem struct {
	ID          string
	Name        string
	HeaderPhoto *string
	HasDraft    bool
	Published   bool
}

// ProjectView is everything the edit screen needs for one project in one
// company scope, read in a single transaction.
type ProjectView struct {
	Record      EffectiveRecord
	Content     []Block
	Images      []Image
	CoreNumbers []CoreNumber
	Parties     PartyGroups
	Labels      []Label
	Companies   []CompanyListItem
	Industries  []string
}

// DraftState reports whether EnsureDraft found an existing draft or had to
// materialize one.
type DraftState struct {
	AlreadyExisted bool
}

// CreateProjectInput is the initial shape of a new project; it is created
// directly as a draft with no live counterpart.
type CreateProjectInput struct {
	Name        string
	Location    *string
	Year        *int
	Status      bool
	Procurement string
	Clients     []string
	Architects  []string
	Contractors []string
	Companies   []string
	Industries  []string
}
