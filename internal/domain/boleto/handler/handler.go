package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/repository"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/service"
	"github.com/FACorreiaa/boleto-drafts/pkg/middleware"
)

// multipart overhead allowed on top of the PDF size limit
const multipartSlack = 1 << 20

// BoletoHandler serves the boleto HTTP API
type BoletoHandler struct {
	svc    *service.BoletoService
	logger *slog.Logger
}

// NewBoletoHandler creates a new boleto handler
func NewBoletoHandler(svc *service.BoletoService, logger *slog.Logger) *BoletoHandler {
	return &BoletoHandler{
		svc:    svc,
		logger: logger,
	}
}

// Register mounts the routes on mux.
func (h *BoletoHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /form", h.BuildForm)
	mux.HandleFunc("POST /drafts", h.SaveDraft)
	mux.HandleFunc("GET /drafts", h.ListDrafts)
	mux.HandleFunc("GET /drafts/ultimo", h.LatestDraft)
	mux.HandleFunc("GET /drafts/{id}", h.GetDraft)
	mux.HandleFunc("PUT /drafts/{id}", h.UpdateDraft)
	mux.HandleFunc("DELETE /drafts/{id}", h.DeleteDraft)
	mux.HandleFunc("GET /drafts/{id}/anexo", h.GetAttachment)
	mux.HandleFunc("POST /drafts/{id}/finalizar", h.Finalize)
	mux.HandleFunc("POST /importar-pdf", h.ImportPDF)
}

type formRequest struct {
	LinhaDigitavel string  `json:"linha_digitavel"`
	CompanyID      *int64  `json:"company_id"`
	Tipo           string  `json:"tipo"`
	NomeArquivo    *string `json:"nome_arquivo"`
}

type formResponse struct {
	Form             service.FormularioTransacao `json:"form"`
	BoletoMeta       *codec.BoletoMeta           `json:"boleto_meta"`
	ChecksumWarnings []codec.ChecksumWarning     `json:"checksum_warnings"`
}

// BuildForm handles POST /form
func (h *BoletoHandler) BuildForm(w http.ResponseWriter, r *http.Request) {
	var req formRequest
	if !h.decode(w, r, &req) {
		return
	}

	res, err := h.svc.BuildForm(r.Context(), service.FormRequest{
		LinhaDigitavel: req.LinhaDigitavel,
		EmpresaID:      req.CompanyID,
		Tipo:           req.Tipo,
		NomeArquivo:    req.NomeArquivo,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	warnings := res.ChecksumWarnings
	if warnings == nil {
		warnings = []codec.ChecksumWarning{}
	}
	middleware.WriteJSON(w, http.StatusOK, formResponse{
		Form:             res.Form,
		BoletoMeta:       res.Meta,
		ChecksumWarnings: warnings,
	})
}

type saveDraftRequest struct {
	DraftID        *int64          `json:"draft_id"`
	UserID         *int64          `json:"user_id"`
	CompanyID      *int64          `json:"company_id"`
	LinhaDigitavel string          `json:"linha_digitavel"`
	BoletoMeta     json.RawMessage `json:"boleto_meta"`
	Form           json.RawMessage `json:"form"`
	NomeArquivo    *string         `json:"nome_arquivo"`
}

// SaveDraft handles POST /drafts
func (h *BoletoHandler) SaveDraft(w http.ResponseWriter, r *http.Request) {
	var req saveDraftRequest
	if !h.decode(w, r, &req) {
		return
	}

	id, created, err := h.svc.SaveDraft(r.Context(), service.SaveDraftRequest{
		DraftID:        req.DraftID,
		UsuarioID:      req.UserID,
		EmpresaID:      req.CompanyID,
		LinhaDigitavel: req.LinhaDigitavel,
		BoletoMeta:     req.BoletoMeta,
		Form:           req.Form,
		NomeArquivo:    req.NomeArquivo,
	})
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	middleware.WriteJSON(w, status, map[string]int64{"draft_id": id})
}

// ListDrafts handles GET /drafts?company_id&user_id&status&limit
func (h *BoletoHandler) ListDrafts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	companyID, err := requiredInt64(q.Get("company_id"), "company_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	userID, err := optionalInt64(q.Get("user_id"), "user_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	filter := repository.ListFilter{EmpresaID: companyID, UsuarioID: userID}
	if s := q.Get("status"); s != "" {
		status := repository.DraftStatus(s)
		filter.Status = &status
	}
	if s := q.Get("limit"); s != "" {
		limit, err := strconv.Atoi(s)
		if err != nil || limit < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		filter.Limit = limit
	}

	drafts, err := h.svc.ListDrafts(r.Context(), filter)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	out := make([]draftResponse, 0, len(drafts))
	for _, d := range drafts {
		out = append(out, toDraftResponse(d))
	}
	middleware.WriteJSON(w, http.StatusOK, map[string]any{"drafts": out})
}

// LatestDraft handles GET /drafts/ultimo?user_id&company_id
func (h *BoletoHandler) LatestDraft(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	userID, err := optionalInt64(q.Get("user_id"), "user_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	companyID, err := optionalInt64(q.Get("company_id"), "company_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	d, err := h.svc.LatestDraft(r.Context(), userID, companyID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	if d == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toDraftResponse(d))
}

// GetDraft handles GET /drafts/{id}
func (h *BoletoHandler) GetDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	d, err := h.svc.GetDraft(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toDraftResponse(d))
}

// GetAttachment handles GET /drafts/{id}/anexo
func (h *BoletoHandler) GetAttachment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	att, err := h.svc.GetAttachment(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	defer att.Body.Close()

	w.Header().Set("Content-Type", att.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": att.Filename}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, att.Body); err != nil {
		h.logger.WarnContext(r.Context(), "attachment copy interrupted",
			slog.Int64("draft_id", id),
			slog.Any("error", err),
		)
	}
}

type updateDraftRequest struct {
	Form       json.RawMessage `json:"form"`
	BoletoMeta json.RawMessage `json:"boleto_meta"`
}

// UpdateDraft handles PUT /drafts/{id}
func (h *BoletoHandler) UpdateDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}
	var req updateDraftRequest
	if !h.decode(w, r, &req) {
		return
	}

	d, err := h.svc.UpdateForm(r.Context(), id, req.Form, req.BoletoMeta)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, toDraftResponse(d))
}

// DeleteDraft handles DELETE /drafts/{id}
func (h *BoletoHandler) DeleteDraft(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	if err := h.svc.DeleteDraft(r.Context(), id); err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Finalize handles POST /drafts/{id}/finalizar
func (h *BoletoHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	transacaoID, err := h.svc.Finalize(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	middleware.WriteJSON(w, http.StatusCreated, map[string]int64{
		"transacao_id": transacaoID,
		"draft_id":     id,
	})
}

type importResponse struct {
	DraftID        int64                       `json:"draft_id"`
	TipoDocumento  string                      `json:"tipo_documento"`
	LinhaDigitavel string                      `json:"linha_digitavel"`
	BoletoMeta     json.RawMessage             `json:"boleto_meta"`
	Form           service.FormularioTransacao `json:"form"`
}

// ImportPDF handles POST /importar-pdf (multipart/form-data)
func (h *BoletoHandler) ImportPDF(w http.ResponseWriter, r *http.Request) {
	limit := h.svc.MaxUploadBytes()
	r.Body = http.MaxBytesReader(w, r.Body, limit+multipartSlack)

	if err := r.ParseMultipartForm(limit + multipartSlack); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.writeServiceError(w, r, service.ErrUploadTooLarge)
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "expected a multipart/form-data body")
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	companyID, err := requiredInt64(r.FormValue("company_id"), "company_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}
	userID, err := optionalInt64(r.FormValue("user_id"), "user_id")
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	file, header, err := r.FormFile("pdf")
	if err != nil {
		h.writeServiceError(w, r, service.ErrUploadEmpty)
		return
	}
	defer file.Close()

	// one byte past the limit is enough to know the file is too large
	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to read upload", slog.Any("error", err))
		middleware.WriteError(w, http.StatusBadRequest, "failed to read upload")
		return
	}

	req := service.ImportRequest{
		Data:        data,
		ContentType: header.Header.Get("Content-Type"),
		Filename:    header.Filename,
		EmpresaID:   companyID,
		UsuarioID:   userID,
		Tipo:        r.FormValue("tipo"),
	}
	if nome := strings.TrimSpace(r.FormValue("nome_arquivo")); nome != "" {
		req.NomeArquivo = &nome
	}

	res, err := h.svc.ImportPDF(r.Context(), req)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	middleware.WriteJSON(w, http.StatusCreated, importResponse{
		DraftID:        res.DraftID,
		TipoDocumento:  res.TipoDocumento,
		LinhaDigitavel: res.LinhaDigitavel,
		BoletoMeta:     res.BoletoMeta,
		Form:           res.Form,
	})
}

func (h *BoletoHandler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func (h *BoletoHandler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		middleware.WriteError(w, http.StatusBadRequest, "invalid draft id")
		return 0, false
	}
	return id, true
}

func requiredInt64(raw, name string) (int64, error) {
	if raw == "" {
		return 0, fmt.Errorf("%w: %s is required", service.ErrInvalidInput, name)
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || v <= 0 {
		return 0, fmt.Errorf("%w: %s must be a positive integer", service.ErrInvalidInput, name)
	}
	return v, nil
}

func optionalInt64(raw, name string) (*int64, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := requiredInt64(raw, name)
	if err != nil {
		return nil, err
	}
	return &v, nil
}
