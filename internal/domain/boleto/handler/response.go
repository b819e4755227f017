package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/repository"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/service"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/ledger"
	"github.com/FACorreiaa/boleto-drafts/pkg/middleware"
)

type draftResponse struct {
	ID             int64                  `json:"id"`
	UserID         *int64                 `json:"user_id"`
	CompanyID      *int64                 `json:"company_id"`
	LinhaDigitavel string                 `json:"linha_digitavel"`
	BoletoMeta     json.RawMessage        `json:"boleto_meta"`
	Form           json.RawMessage        `json:"form"`
	Status         repository.DraftStatus `json:"status"`
	CriadoEm       time.Time              `json:"criado_em"`
	AtualizadoEm   time.Time              `json:"atualizado_em"`
}

func toDraftResponse(d *repository.Draft) draftResponse {
	return draftResponse{
		ID:             d.ID,
		UserID:         d.UsuarioID,
		CompanyID:      d.EmpresaID,
		LinhaDigitavel: d.LinhaDigitavel,
		BoletoMeta:     d.BoletoMeta,
		Form:           d.Formulario,
		Status:         d.Status,
		CriadoEm:       d.CriadoEm,
		AtualizadoEm:   d.AtualizadoEm,
	}
}

type unrecognizedResponse struct {
	Error   string `json:"error"`
	Preview string `json:"texto_extraido"`
}

// writeServiceError maps domain errors onto HTTP statuses. A draft that is no
// longer a rascunho is reported as not found, same as a missing one.
func (h *BoletoHandler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var unrecognized *service.UnrecognizedError
	switch {
	case errors.As(err, &unrecognized):
		middleware.WriteJSON(w, http.StatusBadRequest, unrecognizedResponse{
			Error:   unrecognized.Error(),
			Preview: unrecognized.Preview,
		})
	case errors.Is(err, repository.ErrDraftNotFound):
		middleware.WriteError(w, http.StatusNotFound, "draft not found")
	case errors.Is(err, repository.ErrDraftConflict):
		middleware.WriteError(w, http.StatusNotFound, "draft not found or already finalized")
	case errors.Is(err, service.ErrAttachmentNotFound):
		middleware.WriteError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrUpload),
		errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, ledger.ErrInvalidEntry),
		errors.Is(err, codec.ErrInvalidLength),
		errors.Is(err, codec.ErrInvalidValue),
		errors.Is(err, codec.ErrAssembly):
		middleware.WriteError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err),
		)
		middleware.WriteError(w, http.StatusInternalServerError, "internal server error")
	}
}
