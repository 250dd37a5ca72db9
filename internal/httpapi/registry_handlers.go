package httpapi

import (
	"errors"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"datareg.org/internal/registry"
)

const materialField = "file"

type rejectRequest struct {
	Reason string `json:"reason"`
}

type listResponse[T any] struct {
	Items []T `json:"items"`
}

func newList[T any](items []T) listResponse[T] {
	return listResponse[T]{Items: nonNil(items)}
}

func (a *API) createAsset(w http.ResponseWriter, r *http.Request) {
	var req registry.NewAsset
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := a.svc.CreateAsset(r.Context(), actorFrom(r), req)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/assets/"+strconv.FormatInt(asset.ID, 10))
	writeJSON(w, http.StatusCreated, asset)
}

func (a *API) listAssets(w http.ResponseWriter, r *http.Request) {
	var stage registry.Stage
	if raw := strings.TrimSpace(r.URL.Query().Get("stage")); raw != "" {
		s, err := registry.ParseStage(raw)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		stage = s
	}
	assets, err := a.svc.ListAssets(r.Context(), actorFrom(r), stage)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(assets))
}

func (a *API) getAsset(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "assetID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	asset, err := a.svc.GetAsset(r.Context(), actorFrom(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, asset)
}

func (a *API) submitStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "assetID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.svc.Submit(r.Context(), actorFrom(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (a *API) listStageRecords(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "assetID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	recs, err := a.svc.ListStageRecords(r.Context(), actorFrom(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(recs))
}

func (a *API) listPendingRecords(w http.ResponseWriter, r *http.Request) {
	recs, err := a.svc.ListPendingRecords(r.Context(), actorFrom(r))
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(recs))
}

func (a *API) getStageRecord(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.svc.GetStageRecord(r.Context(), actorFrom(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) approveStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	rec, err := a.svc.Approve(r.Context(), actorFrom(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) rejectStage(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	var req rejectRequest
	if r.ContentLength != 0 {
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, r, http.StatusBadRequest, err.Error())
			return
		}
	}
	rec, err := a.svc.Reject(r.Context(), actorFrom(r), id, req.Reason)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (a *API) uploadMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	up, err := a.readUpload(r)
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(w, r, http.StatusRequestEntityTooLarge, "upload exceeds the size limit")
			return
		}
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, err := a.svc.SaveMaterial(r.Context(), actorFrom(r), id, up)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

func (a *API) readUpload(r *http.Request) (registry.Upload, error) {
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		return registry.Upload{}, err
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile(materialField)
	if err != nil {
		return registry.Upload{}, errors.New(`multipart field "file" is required`)
	}
	defer file.Close()
	if header.Size > a.maxUpload {
		return registry.Upload{}, &http.MaxBytesError{Limit: a.maxUpload}
	}
	data, err := io.ReadAll(io.LimitReader(file, a.maxUpload+1))
	if err != nil {
		return registry.Upload{}, err
	}
	if int64(len(data)) > a.maxUpload {
		return registry.Upload{}, &http.MaxBytesError{Limit: a.maxUpload}
	}
	contentType := header.Header.Get("Content-Type")
	if contentType == "" {
		contentType = http.DetectContentType(data)
	}
	return registry.Upload{
		FileName:    header.Filename,
		ContentType: contentType,
		Data:        data,
	}, nil
}

func (a *API) listMaterials(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "recordID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	ms, err := a.svc.ListMaterials(r.Context(), actorFrom(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newList(ms))
}

func (a *API) downloadMaterial(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "materialID")
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	m, data, err := a.svc.OpenMaterial(r.Context(), actorFrom(r), id)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}
	contentType := m.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": m.FileName}))
	w.Header().Set(hashHeader, m.SHA256)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(data)
}
