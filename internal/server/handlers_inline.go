package server

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"inlineedit/internal/api"
	"inlineedit/internal/inline"
	"inlineedit/internal/models"
	"inlineedit/internal/render"
	"inlineedit/internal/store"
)

func (s *Server) handleEditMultiple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	values := r.URL.Query()

	project, err := s.projectFromPath(ctx, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	tr := s.translator(r)
	backURL := safeBackURL(values.Get("back_url"), render.IssuesPath(s.root, project))
	noIssues := func(reason error) {
		s.log().Debug("edit_multiple without issues", "reason", reason)
		s.redirectWithFlash(w, r, backURL, flashError, tr.T("label_no_issues_selected"))
	}

	explicit, err := inline.ParseIDParams(values)
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidID))
		return
	}
	q, err := s.queryFromParams(ctx, values, project)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	ids, err := inline.ResolveIDs(ctx, explicit, q, s.store)
	if errors.Is(err, inline.ErrInvalidQuery) {
		noIssues(err)
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if len(ids) == 0 {
		noIssues(inline.ErrNotFound)
		return
	}

	projectIDs, ok := s.authorizeIssues(w, r, ids, project)
	if !ok {
		return
	}

	fields, err := s.store.CustomFields(ctx)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if q == nil {
		q = &models.Query{Name: "_"}
		if project != nil {
			q.ProjectID = &project.ID
		}
	}
	if err := q.Validate(fields); err != nil {
		noIssues(err)
		return
	}

	page, err := queryIntDefault(r, "page", 1)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	perPage, err := queryIntDefault(r, "per_page", s.perPage)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	page = max(page, 1)
	if perPage <= 0 {
		perPage = s.perPage
	}
	perPage = min(perPage, maxPerPage)

	listing := store.IssueQuery{
		Query:  q,
		Fields: fields,
		IDs:    ids,
		Sort:   sortCriteria(values.Get("sort"), q, fields),
		Offset: (page - 1) * perPage,
		Limit:  perPage,
	}
	total, err := s.store.CountIssues(ctx, listing)
	if err != nil {
		noIssues(err)
		return
	}
	issues, err := s.store.ListIssues(ctx, listing)
	if err != nil {
		noIssues(err)
		return
	}

	catalog, err := s.store.LoadCatalog(ctx, projectIDs)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	groupCounts, err := inline.CountByGroup(ctx, s.store, q, ids, fields, catalog)
	if err != nil {
		noIssues(err)
		return
	}
	parents := make(map[int64]bool, len(issues))
	shown := make([]int64, 0, len(issues))
	for _, issue := range issues {
		shown = append(shown, issue.ID)
		children, err := s.store.CountChildren(ctx, issue.ID)
		if err != nil {
			s.writeStoreError(w, r, err)
			return
		}
		parents[issue.ID] = children > 0
	}

	sort.Slice(shown, func(i, j int) bool { return shown[i] < shown[j] })

	flash, _ := s.takeFlash(w, r)

	renderer := render.NewRenderer(tr, catalog, s.settings, s.root)
	view := renderer.BuildPage(render.PageInput{
		Project:     project,
		Query:       q,
		Fields:      fields,
		Issues:      issues,
		Parents:     parents,
		GroupCounts: groupCounts,
		BackURL:     backURL,
		UpdateURL:   render.UpdateMultiplePath(s.root, project, shown),
		Flash:       flash.Message,
		FlashKind:   flash.Kind,
		Page:        page,
		PerPage:     perPage,
		Total:       total,
	})

	var body bytes.Buffer
	if err := render.WritePage(&body, view); err != nil {
		s.writeErrorReq(w, r, http.StatusInternalServerError, makeAPIError(http.StatusInternalServerError, "internal", ErrCodeRenderFailed, err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	if _, err := body.WriteTo(w); err != nil {
		s.log().Warn("write edit page", "error", err)
	}
}

func (s *Server) handleUpdateMultiple(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	project, err := s.projectFromPath(ctx, r)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	jsonRequest := isJSONRequest(r)
	var (
		payload map[int64]inline.Attributes
		rawBack string
	)
	if jsonRequest {
		var req api.UpdateMultipleRequest
		if !s.decodeJSONReq(w, r, &req) {
			return
		}
		payload, err = parseIssuesJSON(req.Issues)
		rawBack = req.BackURL
	} else {
		r.Body = http.MaxBytesReader(w, r.Body, batchJSONMaxBody)
		if err := r.ParseForm(); err != nil {
			s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidForm))
			return
		}
		payload, err = parseIssuesForm(r.PostForm)
		rawBack = r.PostForm.Get("back_url")
	}
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if len(payload) == 0 {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(inline.ErrNotFound, ErrCodeIssueNotFound))
		return
	}

	// The global form carries the edited ids in its URL as well.
	scope, err := inline.ParseIDParams(r.URL.Query())
	if err != nil {
		s.writeErrorReq(w, r, http.StatusBadRequest, badRequestCode(err, ErrCodeInvalidID))
		return
	}
	if len(scope) > 0 {
		if _, ok := s.authorizeIssues(w, r, scope, project); !ok {
			return
		}
	}

	ids := make([]int64, 0, len(payload))
	for id := range payload {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	known, err := s.store.IssueProjects(ctx, ids)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if len(known) == 0 {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(inline.ErrNotFound, ErrCodeIssueNotFound))
		return
	}
	if !s.authorizeProjects(w, r, projectSet(known, project)) {
		return
	}

	tr := s.translator(r)
	updater := inline.NewBatchUpdater(s.store, s.settings, tr, s.logger)
	result, err := updater.UpdateMultiple(ctx, payload)
	if errors.Is(err, inline.ErrNotFound) {
		s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(err, ErrCodeIssueNotFound))
		return
	}
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	s.log().Info("inline update",
		"updated", len(result.UpdatedIDs),
		"unchanged", len(result.UnchangedIDs),
		"failed", len(result.Failed),
	)

	if jsonRequest {
		s.writeJSON(w, http.StatusOK, toUpdateMultipleResponse(result))
		return
	}

	target := safeBackURL(rawBack, render.IssuesPath(s.root, s.singleProject(ctx, known, project)))
	if !result.OK() {
		s.redirectWithFlash(w, r, target, flashError, result.Message)
		return
	}
	s.redirectWithFlash(w, r, target, flashNotice, tr.T("notice_successful_update"))
}

// authorizeIssues loads the projects of ids, answering 404 when any id is
// unknown and 403 when the caller may not edit one of the projects.
func (s *Server) authorizeIssues(w http.ResponseWriter, r *http.Request, ids []int64, project *models.Project) ([]int64, bool) {
	known, err := s.store.IssueProjects(r.Context(), ids)
	if err != nil {
		s.writeStoreError(w, r, err)
		return nil, false
	}
	for _, id := range ids {
		if _, ok := known[id]; !ok {
			s.writeErrorReq(w, r, http.StatusNotFound, notFoundCode(fmt.Errorf("issue %d: %w", id, store.ErrNotFound), ErrCodeIssueNotFound))
			return nil, false
		}
	}
	projectIDs := projectSet(known, project)
	if !s.authorizeProjects(w, r, projectIDs) {
		return nil, false
	}
	return projectIDs, true
}

func (s *Server) authorizeProjects(w http.ResponseWriter, r *http.Request, projectIDs []int64) bool {
	principal, ok := authPrincipalFromContext(r.Context())
	if !ok {
		s.writeErrorReq(w, r, http.StatusUnauthorized, unauthorized(fmt.Errorf("authentication required")))
		return false
	}
	allowed, err := s.authService.AllowedTo(r.Context(), principal.User, models.PermissionInlineEdit, projectIDs)
	if err != nil {
		s.writeStoreError(w, r, err)
		return false
	}
	if !allowed {
		s.writeErrorReq(w, r, http.StatusForbidden, forbidden(fmt.Errorf("%s may not edit issues inline in projects %v", principal.User.Login, projectIDs)))
		return false
	}
	return true
}

func (s *Server) projectFromPath(ctx context.Context, r *http.Request) (*models.Project, error) {
	ref := strings.TrimSpace(r.PathValue("project_id"))
	if ref == "" {
		return nil, nil
	}
	project, err := s.store.FindProject(ctx, ref)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundCode(err, ErrCodeProjectNotFound)
	}
	if err != nil {
		return nil, storeFailure(err)
	}
	return project, nil
}

// projectSet returns the sorted distinct project ids of the issues, plus
// the scoping project.
func projectSet(issueProjects map[int64]int64, project *models.Project) []int64 {
	seen := map[int64]bool{}
	var out []int64
	add := func(id int64) {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	for _, projectID := range issueProjects {
		add(projectID)
	}
	if project != nil {
		add(project.ID)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// singleProject returns the scoping project, or the only project of the
// updated issues, for the default redirect target.
func (s *Server) singleProject(ctx context.Context, issueProjects map[int64]int64, project *models.Project) *models.Project {
	if project != nil {
		return project
	}
	ids := projectSet(issueProjects, nil)
	if len(ids) != 1 {
		return nil
	}
	found, err := s.store.GetProject(ctx, ids[0])
	if err != nil {
		s.log().Debug("default redirect project", "project_id", ids[0], "error", err)
		return nil
	}
	return found
}

func toUpdateMultipleResponse(result inline.BatchResult) api.UpdateMultipleResponse {
	resp := api.UpdateMultipleResponse{
		UpdatedIDs:   nonNilIDs(result.UpdatedIDs),
		UnchangedIDs: nonNilIDs(result.UnchangedIDs),
		Failed:       make([]api.FailedIssue, 0, len(result.Failed)),
		Message:      result.Message,
	}
	for _, failed := range result.Failed {
		resp.Failed = append(resp.Failed, api.FailedIssue{ID: failed.ID, Messages: failed.Messages})
	}
	return resp
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
