package httpapi

import (
	"net/http"
	"strconv"
	"strings"

	"datareg.org/internal/registry"
)

func (a *API) listOrganizations(w http.ResponseWriter, r *http.Request) {
	orgs, err := a.svc.ListOrganizations(r.Context())
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(orgs))
}

func (a *API) createOrganization(w http.ResponseWriter, r *http.Request) {
	var req registry.NewOrganization
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	org, err := a.svc.CreateOrganization(r.Context(), actorFrom(r), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, org)
}

// listAudit supports ?action=&resource_type=&actor_id=&limit=&offset=.
func (a *API) listAudit(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := registry.AuditFilter{
		Action:       strings.TrimSpace(q.Get("action")),
		ResourceType: strings.TrimSpace(q.Get("resource_type")),
	}
	if raw := strings.TrimSpace(q.Get("actor_id")); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, r, http.StatusBadRequest, "actor_id must be a positive integer")
			return
		}
		f.ActorID = id
	}
	var err error
	if f.Limit, err = queryInt(r, "limit", registry.DefaultAuditLimit); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	if f.Offset, err = queryInt(r, "offset", 0); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	entries, err := a.svc.ListAudit(r.Context(), actorFrom(r), f)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"items":  nonNil(entries),
		"limit":  f.Normalize().Limit,
		"offset": f.Offset,
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
