package app

import "atelier/api/internal/store"

// Response shapes for the JSON surface. Resolved fields and their custom
// flags travel together so the edit UI can show inherited-vs-forked state.

type recordResponse struct {
	ID          string  `json:"id"`
	Lifecycle   string  `json:"lifecycle"`
	Name        string  `json:"name"`
	Location    *string `json:"location"`
	Year        *int    `json:"year"`
	LearnMore   *string `json:"learnMore"`
	Status      bool    `json:"status"`
	Procurement string  `json:"procurement"`

	Introduction       *string `json:"introduction"`
	CustomIntroduction bool    `json:"customIntroduction"`

	HeaderPhoto          *string `json:"headerPhoto"`
	HeaderPhotoCopyright *string `json:"headerPhotoCopyright"`
	CustomHeaderPhoto    bool    `json:"customHeaderPhoto"`

	BannerPhoto          *string `json:"bannerPhoto"`
	BannerPhotoCopyright *string `json:"bannerPhotoCopyright"`
	CustomBannerPhoto    bool    `json:"customBannerPhoto"`

	CustomContent bool `json:"customContent"`
	CustomImages  bool `json:"customImages"`

	Visible        bool    `json:"visible"`
	ShowInCarousel bool    `json:"showInCarousel"`
	Weight         *int    `json:"weight"`
	Thumbnail      *string `json:"thumbnail"`

	HasDraft  bool `json:"hasDraft"`
	Published bool `json:"published"`
}

type blockResponse struct {
	ID             string  `json:"id"`
	Body           string  `json:"body"`
	Image          *string `json:"image"`
	ImageCopyright *string `json:"imageCopyright"`
	Quote          *string `json:"quote"`
}

type imageResponse struct {
	ID             string  `json:"id"`
	Image          string  `json:"image"`
	ImageCopyright *string `json:"imageCopyright"`
	Alt            *string `json:"alt"`
}

type coreNumberResponse struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	Number string `json:"number"`
}

type partyResponse struct {
	Name string  `json:"name"`
	URL  *string `json:"url"`
}

type partyGroupsResponse struct {
	Clients     []partyResponse `json:"clients"`
	Architects  []partyResponse `json:"architects"`
	Contractors []partyResponse `json:"contractors"`
}

type labelResponse struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type companyResponse struct {
	Name   string `json:"name"`
	Active bool   `json:"active"`
}

type listItemResponse struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	HeaderPhoto *string `json:"headerPhoto"`
	HasDraft    bool    `json:"hasDraft"`
	Published   bool    `json:"published"`
}

type viewResponse struct {
	Record      recordResponse       `json:"record"`
	Content     []blockResponse      `json:"content"`
	Images      []imageResponse      `json:"images"`
	CoreNumbers []coreNumberResponse `json:"coreNumbers"`
	Parties     partyGroupsResponse  `json:"parties"`
	Labels      []labelResponse      `json:"labels"`
	Companies   []companyResponse    `json:"companies"`
	Industries  []string             `json:"industries"`
}

func renderView(view store.ProjectView) viewResponse {
	record := view.Record
	out := viewResponse{
		Record: recordResponse{
			ID:                   record.ID,
			Lifecycle:            string(record.Lifecycle),
			Name:                 record.Name,
			Location:             record.Location,
			Year:                 record.Year,
			LearnMore:            record.LearnMore,
			Status:               record.Status,
			Procurement:          record.Procurement,
			Introduction:         record.Introduction,
			CustomIntroduction:   record.CustomIntroduction,
			HeaderPhoto:          record.HeaderPhoto,
			HeaderPhotoCopyright: record.HeaderPhotoCopyright,
			CustomHeaderPhoto:    record.CustomHeaderPhoto,
			BannerPhoto:          record.BannerPhoto,
			BannerPhotoCopyright: record.BannerPhotoCopyright,
			CustomBannerPhoto:    record.CustomBannerPhoto,
			CustomContent:        record.CustomContent,
			CustomImages:         record.CustomImages,
			Visible:              record.Visible,
			ShowInCarousel:       record.ShowInCarousel,
			Weight:               record.Weight,
			Thumbnail:            record.Thumbnail,
			HasDraft:             record.HasDraft,
			Published:            record.Published,
		},
		Content:     renderBlocks(view.Content),
		Images:      renderImages(view.Images),
		CoreNumbers: make([]coreNumberResponse, 0, len(view.CoreNumbers)),
		Parties: partyGroupsResponse{
			Clients:     renderPartyGroup(view.Parties.Clients),
			Architects:  renderPartyGroup(view.Parties.Architects),
			Contractors: renderPartyGroup(view.Parties.Contractors),
		},
		Labels:     make([]labelResponse, 0, len(view.Labels)),
		Companies:  make([]companyResponse, 0, len(view.Companies)),
		Industries: view.Industries,
	}
	for _, item := range view.CoreNumbers {
		out.CoreNumbers = append(out.CoreNumbers, renderCoreNumber(item))
	}
	for _, label := range view.Labels {
		out.Labels = append(out.Labels, labelResponse{Name: label.Name, Active: label.Active})
	}
	for _, company := range view.Companies {
		out.Companies = append(out.Companies, companyResponse{Name: company.Name, Active: company.Active})
	}
	if out.Industries == nil {
		out.Industries = make([]string, 0)
	}
	return out
}

func renderBlock(block store.Block) blockResponse {
	return blockResponse{
		ID:             block.ID,
		Body:           block.Body,
		Image:          block.Image,
		ImageCopyright: block.ImageCopyright,
		Quote:          block.Quote,
	}
}

func renderBlocks(blocks []store.Block) []blockResponse {
	out := make([]blockResponse, 0, len(blocks))
	for _, block := range blocks {
		out = append(out, renderBlock(block))
	}
	return out
}

func renderImage(image store.Image) imageResponse {
	return imageResponse{
		ID:             image.ID,
		Image:          image.Image,
		ImageCopyright: image.ImageCopyright,
		Alt:            image.Alt,
	}
}

func renderImages(images []store.Image) []imageResponse {
	out := make([]imageResponse, 0, len(images))
	for _, image := range images {
		out = append(out, renderImage(image))
	}
	return out
}

func renderCoreNumber(item store.CoreNumber) coreNumberResponse {
	return coreNumberResponse{ID: item.ID, Title: item.Title, Number: item.Number}
}

func renderPartyGroup(parties []store.Party) []partyResponse {
	out := make([]partyResponse, 0, len(parties))
	for _, party := range parties {
		out = append(out, partyResponse{Name: party.Name, URL: party.URL})
	}
	return out
}

func renderParties(parties []store.Party) []partyResponse {
	return renderPartyGroup(parties)
}

func renderListItems(items []store.ProjectListItem) []listItemResponse {
	out := make([]listItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, listItemResponse{
			ID:          item.ID,
			Name:        item.Name,
			HeaderPhoto: item.HeaderPhoto,
			HasDraft:    item.HasDraft,
			Published:   item.Published,
		})
	}
	return out
}
