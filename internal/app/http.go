package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"atelier/api/internal/auth"
	"atelier/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
	log        zerolog.Logger
}

func NewHTTPServer(service *Service, corsOrigin string, logger zerolog.Logger) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin, log: logger}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		writeJSON(w, http.StatusNoContent, map[string]any{})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}
		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{"status": "error", "error": err.Error()}
		}
		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	parts := splitPath(r.URL.Path)
	if len(parts) == 0 || parts[0] != "api" {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	parts = parts[1:]

	// Published views and stored media are open to anonymous readers.
	if len(parts) == 3 && parts[0] == "public" && parts[1] == "projects" && r.Method == http.MethodGet {
		view, err := s.service.PublicProject(r.Context(), parts[2], companyParam(r))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, renderView(view))
		return
	}
	if len(parts) == 2 && parts[0] == "media" && r.Method == http.MethodGet {
		s.handleServeMedia(w, r, parts[1])
		return
	}

	identity, ok := s.requireIdentity(w, r)
	if !ok {
		return
	}

	if len(parts) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	switch parts[0] {
	case "projects":
		s.handleProjects(w, r, identity, parts[1:])
	case "content":
		s.handleBlocks(w, r, parts[1:])
	case "images":
		s.handleImages(w, r, parts[1:])
	case "core-numbers":
		s.handleCoreNumbers(w, r, parts[1:])
	case "parties":
		s.handleParties(w, r, parts[1:])
	case "companies":
		s.handleRegistry(w, r, parts[1:], s.service.ListCompanies, s.service.SearchCompanies)
	case "industries":
		s.handleRegistry(w, r, parts[1:], s.service.ListIndustries, s.service.SearchIndustries)
	case "permissions":
		s.handlePermissions(w, r, parts[1:])
	case "uploads":
		s.handleUploads(w, r, parts[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleProjects(w http.ResponseWriter, r *http.Request, identity Identity, parts []string) {
	ctx := r.Context()

	if len(parts) == 0 {
		switch r.Method {
		case http.MethodGet:
			items, err := s.service.ListProjects(ctx, identity, strings.TrimSpace(r.URL.Query().Get("filter")))
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, renderListItems(items))
		case http.MethodPost:
			var body CreateProjectBody
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			view, err := s.service.CreateProject(ctx, body)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, renderView(view))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	projectID := parts[0]
	company := companyParam(r)

	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			view, err := s.service.OpenProject(ctx, projectID, company)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, renderView(view))
		case http.MethodDelete:
			if err := s.service.DeleteProject(ctx, projectID); err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch parts[1] {
	case "publish", "revert", "unpublish":
		if r.Method != http.MethodPost || len(parts) != 2 {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var view store.ProjectView
		var err error
		switch parts[1] {
		case "publish":
			view, err = s.service.Publish(ctx, projectID, company)
		case "revert":
			view, err = s.service.Revert(ctx, projectID, company)
		case "unpublish":
			view, err = s.service.Unpublish(ctx, projectID, company)
		}
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderView(view))

	case "fields":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var fields map[string]any
		if err := decodeBody(r, &fields); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateProjectFields(ctx, projectID, fields); err != nil {
			s.fail(w, err)
			return
		}
		s.respondWithView(w, r, projectID, company)

	case "presentation":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var fields map[string]any
		if err := decodeBody(r, &fields); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateOverrideFields(ctx, projectID, company, fields); err != nil {
			s.fail(w, err)
			return
		}
		s.respondWithView(w, r, projectID, company)

	case "introduction":
		if len(parts) == 3 && parts[2] == "customise" && r.Method == http.MethodPost {
			if err := s.service.Customise(ctx, projectID, company, "introduction"); err != nil {
				s.fail(w, err)
				return
			}
			s.respondWithView(w, r, projectID, company)
			return
		}
		if r.Method != http.MethodPut || len(parts) != 2 {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Introduction *string `json:"introduction"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateOverrideFields(ctx, projectID, company, map[string]any{"introduction": body.Introduction}); err != nil {
			s.fail(w, err)
			return
		}
		s.respondWithView(w, r, projectID, company)

	case "header", "banner":
		group := parts[1]
		if len(parts) == 3 && parts[2] == "customise" && r.Method == http.MethodPost {
			if err := s.service.Customise(ctx, projectID, company, group); err != nil {
				s.fail(w, err)
				return
			}
			s.respondWithView(w, r, projectID, company)
			return
		}
		if r.Method != http.MethodPut || len(parts) != 2 {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Photo     *string `json:"photo"`
			Copyright *string `json:"copyright"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		fields := map[string]any{
			group + "_photo":           body.Photo,
			group + "_photo_copyright": body.Copyright,
		}
		if err := s.service.UpdateOverrideFields(ctx, projectID, company, fields); err != nil {
			s.fail(w, err)
			return
		}
		s.respondWithView(w, r, projectID, company)

	case "content":
		if len(parts) == 3 && parts[2] == "customise" && r.Method == http.MethodPost {
			blocks, err := s.service.CustomiseContent(ctx, projectID, company)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, renderBlocks(blocks))
			return
		}
		switch r.Method {
		case http.MethodGet:
			blocks, err := s.service.ReadContent(ctx, projectID, company)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, renderBlocks(blocks))
		case http.MethodPost:
			var body struct {
				After *string `json:"after"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			block, err := s.service.InsertBlock(ctx, projectID, company, body.After)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, renderBlock(block))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	case "images":
		if len(parts) == 3 && parts[2] == "customise" && r.Method == http.MethodPost {
			images, err := s.service.CustomiseImages(ctx, projectID, company)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, renderImages(images))
			return
		}
		switch r.Method {
		case http.MethodGet:
			images, err := s.service.ListImages(ctx, projectID, company)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, renderImages(images))
		case http.MethodPost:
			var body struct {
				Image          string  `json:"image"`
				ImageCopyright *string `json:"imageCopyright"`
				Alt            *string `json:"alt"`
			}
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			image, err := s.service.AddImage(ctx, projectID, company, store.Image{
				Image:          body.Image,
				ImageCopyright: body.ImageCopyright,
				Alt:            body.Alt,
			})
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusCreated, renderImage(image))
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}

	case "core-numbers":
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		item, err := s.service.CreateCoreNumber(ctx, projectID)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, renderCoreNumber(item))

	case "labels":
		if r.Method != http.MethodPut {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			Labels []string `json:"labels"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.SetLabels(ctx, projectID, body.Labels); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case "parties":
		var body struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		switch r.Method {
		case http.MethodPost:
			if err := s.service.AddParty(ctx, projectID, body.Name, body.Type); err != nil {
				s.fail(w, err)
				return
			}
		case http.MethodDelete:
			if err := s.service.RemoveParty(ctx, projectID, body.Name, body.Type); err != nil {
				s.fail(w, err)
				return
			}
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case "companies":
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		switch r.Method {
		case http.MethodPost:
			if err := s.service.AttachCompany(ctx, projectID, body.Name); err != nil {
				s.fail(w, err)
				return
			}
		case http.MethodDelete:
			if err := s.service.DetachCompany(ctx, projectID, body.Name); err != nil {
				s.fail(w, err)
				return
			}
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	case "industries":
		var body struct {
			Name string `json:"name"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		switch r.Method {
		case http.MethodPost:
			if err := s.service.AddIndustry(ctx, projectID, body.Name); err != nil {
				s.fail(w, err)
				return
			}
		case http.MethodDelete:
			if err := s.service.RemoveIndustry(ctx, projectID, body.Name); err != nil {
				s.fail(w, err)
				return
			}
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleBlocks(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()

	if len(parts) == 1 && r.Method == http.MethodDelete {
		if err := s.service.DeleteBlock(ctx, parts[0]); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) != 2 || r.Method != http.MethodPut {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	blockID := parts[0]

	switch parts[1] {
	case "text":
		var body struct {
			Body string `json:"body"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		block, err := s.service.UpdateBlockText(ctx, blockID, body.Body)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderBlock(block))
	case "quote":
		var body struct {
			Quote *string `json:"quote"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		block, err := s.service.UpdateBlockQuote(ctx, blockID, body.Quote)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderBlock(block))
	case "image":
		var body struct {
			Image     *string `json:"image"`
			Copyright *string `json:"copyright"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		block, err := s.service.UpdateBlockImage(ctx, blockID, body.Image, body.Copyright)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderBlock(block))
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleImages(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 || r.Method != http.MethodDelete {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	if err := s.service.DeleteImage(r.Context(), parts[0]); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleCoreNumbers(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodPut:
		var body struct {
			Title  string `json:"title"`
			Number string `json:"number"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		item, err := s.service.UpdateCoreNumber(ctx, parts[0], body.Title, body.Number)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, renderCoreNumber(item))
	case http.MethodDelete:
		if err := s.service.DeleteCoreNumber(ctx, parts[0]); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleParties(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ctx := r.Context()

	switch r.Method {
	case http.MethodGet:
		filter := strings.TrimSpace(r.URL.Query().Get("filter"))
		exclude := splitNames(r.URL.Query().Get("exclude"))
		if filter == "" && len(exclude) == 0 {
			items, err := s.service.ListParties(ctx)
			if err != nil {
				s.fail(w, err)
				return
			}
			writeJSON(w, http.StatusOK, renderParties(items))
			return
		}
		names, err := s.service.SearchParties(ctx, filter, exclude)
		if err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, names)
	case http.MethodPost:
		var body struct {
			Name string  `json:"name"`
			URL  *string `json:"url"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.CreateParty(ctx, body.Name, body.URL); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, map[string]any{"ok": true})
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

// handleRegistry serves the read-only company and industry registries with
// the same list/search surface as handleParties.
func (s *HTTPServer) handleRegistry(w http.ResponseWriter, r *http.Request, parts []string,
	list func(context.Context) ([]string, error),
	search func(context.Context, string, []string) ([]string, error),
) {
	if len(parts) != 0 || r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	ctx := r.Context()
	filter := strings.TrimSpace(r.URL.Query().Get("filter"))
	exclude := splitNames(r.URL.Query().Get("exclude"))

	var names []string
	var err error
	if filter == "" && len(exclude) == 0 {
		names, err = list(ctx)
	} else {
		names, err = search(ctx, filter, exclude)
	}
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, names)
}

func splitNames(raw string) []string {
	var names []string
	for _, name := range strings.Split(raw, ",") {
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			names = append(names, trimmed)
		}
	}
	return names
}

func (s *HTTPServer) handlePermissions(w http.ResponseWriter, r *http.Request, parts []string) {
	if len(parts) != 0 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	var body struct {
		UserID  string  `json:"userId"`
		Company *string `json:"company"`
		CanEdit bool    `json:"canEdit"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	if err := s.service.GrantPermission(r.Context(), body.UserID, body.Company, body.CanEdit); err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *HTTPServer) handleUploads(w http.ResponseWriter, r *http.Request, parts []string) {
	ctx := r.Context()

	if len(parts) == 1 && r.Method == http.MethodDelete {
		if err := s.service.RemoveMedia(ctx, parts[0]); err != nil {
			s.fail(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if len(parts) != 0 || r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "file is required", nil)
		return
	}
	defer file.Close()

	name, err := s.service.UploadMedia(ctx, header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"name": name})
}

func (s *HTTPServer) handleServeMedia(w http.ResponseWriter, r *http.Request, name string) {
	object, err := s.service.OpenMedia(r.Context(), name)
	if err != nil {
		s.fail(w, err)
		return
	}
	defer object.Close()

	w.Header().Del("Content-Type")
	if _, err := io.Copy(w, object); err != nil {
		s.log.Warn().Err(err).Str("object", name).Msg("media stream interrupted")
	}
}

// respondWithView re-reads the project after a mutation so the client gets
// the updated resolved record in one round trip.
func (s *HTTPServer) respondWithView(w http.ResponseWriter, r *http.Request, projectID string, company *string) {
	view, err := s.service.OpenProject(r.Context(), projectID, company)
	if err != nil {
		s.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, renderView(view))
}

func (s *HTTPServer) fail(w http.ResponseWriter, err error) {
	status, code, message, details := mapError(err)
	if status >= http.StatusInternalServerError {
		s.log.Error().Err(err).Msg("request failed")
	}
	writeError(w, status, code, message, details)
}

func (s *HTTPServer) requireIdentity(w http.ResponseWriter, r *http.Request) (Identity, bool) {
	token := bearerToken(r)
	if token == "" {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Identity{}, false
	}
	identity, err := s.service.IdentityFromToken(token)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil)
		return Identity{}, false
	}
	return identity, true
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		s.log.Info().
			Str("request_id", requestID).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", writer.status).
			Dur("duration", time.Since(started)).
			Msg("request")
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func companyParam(r *http.Request) *string {
	value := strings.TrimSpace(r.URL.Query().Get("company"))
	if value == "" {
		return nil
	}
	return &value
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	if errors.Is(err, store.ErrNoDraft) {
		return http.StatusBadRequest, "NO_DRAFT", "No draft to operate on", nil
	}
	if errors.Is(err, store.ErrNoLive) {
		return http.StatusBadRequest, "NOT_PUBLISHED", "Project has never been published", nil
	}
	if errors.Is(err, store.ErrMissingBase) || errors.Is(err, store.ErrCorruptChain) {
		return http.StatusInternalServerError, "CONSISTENCY_ERROR", "Stored data is inconsistent", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	if errors.Is(err, auth.ErrInvalidToken) || errors.Is(err, auth.ErrExpiredToken) {
		return http.StatusUnauthorized, "UNAUTHORIZED", "Unauthorized", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
