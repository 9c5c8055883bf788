// records.go - обработчики /data-records.
package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apierrors "github.com/smartlt/criclabs-assignment/internal/api/errors"
	"github.com/smartlt/criclabs-assignment/internal/api/middleware"
	"github.com/smartlt/criclabs-assignment/internal/service"
)

// CreateRecord - POST /data-records. Автор - текущий пользователь.
func (h *APIHandler) CreateRecord(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Authentication required")
		return
	}

	var req createRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.records.Create(r.Context(), service.CreateRecordInput{
		Title:            req.Title,
		Description:      req.Description,
		Department:       req.Department,
		DataSubjectTypes: req.DataSubjectTypes,
	}, user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, toRecordResponse(rec))
}

// ListRecords - GET /data-records.
func (h *APIHandler) ListRecords(w http.ResponseWriter, r *http.Request) {
	q, err := parseListQuery(r.URL.Query())
	if err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	res, err := h.records.List(r.Context(), q)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordListResponse(res))
}

// GetRecord - GET /data-records/{id}.
func (h *APIHandler) GetRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := h.records.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// UpdateRecord - PATCH /data-records/{id}. Только автор записи.
func (h *APIHandler) UpdateRecord(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Authentication required")
		return
	}

	var req updateRecordRequest
	if err := decodeJSON(w, r, &req); err != nil {
		apierrors.ValidationError(w, err.Error())
		return
	}

	rec, err := h.records.Update(r.Context(), chi.URLParam(r, "id"), service.UpdateRecordInput{
		Title:            req.Title,
		Description:      req.Description,
		Department:       req.Department,
		DataSubjectTypes: req.DataSubjectTypes,
	}, user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}

// DeleteRecord - DELETE /data-records/{id}. Возвращает удалённую запись.
func (h *APIHandler) DeleteRecord(w http.ResponseWriter, r *http.Request) {
	user := middleware.UserFromContext(r.Context())
	if user == nil {
		apierrors.Unauthorized(w, "Authentication required")
		return
	}

	rec, err := h.records.Remove(r.Context(), chi.URLParam(r, "id"), user.ID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toRecordResponse(rec))
}
