package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/extractor"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/repository"
)

const (
	pdfContentType = "application/pdf"

	// StoragePrefix marks an anexo that points into pkg/storage.
	StoragePrefix = "storage:"
)

// tipo_documento values reported by an import
const (
	DocumentoLinhaDigitavel = "linha_digitavel"
)

// ImportRequest is one uploaded PDF
type ImportRequest struct {
	Data        []byte
	ContentType string
	Filename    string
	EmpresaID   int64
	UsuarioID   *int64
	Tipo        string
	NomeArquivo *string
}

// ImportResult describes the draft created from a PDF
type ImportResult struct {
	DraftID        int64
	TipoDocumento  string
	LinhaDigitavel string
	BoletoMeta     json.RawMessage
	Form           FormularioTransacao
}

// ImportPDF extracts a boleto from an uploaded PDF and stores it as a new
// rascunho. Unrecognized documents never create a draft.
func (s *BoletoService) ImportPDF(ctx context.Context, req ImportRequest) (res *ImportResult, err error) {
	ctx, span := s.startSpan(ctx, "ImportPDF",
		attribute.Int64("empresa.id", req.EmpresaID),
		attribute.Int("upload.bytes", len(req.Data)),
	)
	defer func() { endSpan(span, err) }()

	if err := s.validateUpload(req); err != nil {
		return nil, err
	}
	if req.EmpresaID <= 0 {
		return nil, fmt.Errorf("%w: company_id is required", ErrInvalidInput)
	}
	tipo, err := parseTipo(req.Tipo)
	if err != nil {
		return nil, err
	}

	text, err := s.pdf.Text(ctx, req.Data)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrUploadUnreadable, err)
	}

	extraction := s.extractor.Extract(text)
	span.SetAttributes(attribute.String("extraction.kind", string(extraction.Kind)))
	if extraction.Kind == extractor.KindUnrecognized {
		s.metrics.PDFImported(string(extractor.KindUnrecognized))
		s.logger.InfoContext(ctx, "rejected unrecognized pdf",
			slog.Int64("empresa_id", req.EmpresaID),
			slog.Int("text_length", len(text)),
		)
		return nil, newUnrecognizedError(text)
	}

	nome := req.NomeArquivo
	if nome == nil && req.Filename != "" {
		nome = &req.Filename
	}
	empresaID := req.EmpresaID
	today := s.today()

	res = &ImportResult{}
	switch extraction.Kind {
	case extractor.KindLinhaDigitavel:
		meta, err := codec.Decode(extraction.LinhaDigitavel)
		if err != nil {
			return nil, err
		}
		if warnings := codec.Verify(meta); len(warnings) > 0 {
			s.logger.WarnContext(ctx, "imported boleto has check digit mismatches",
				slog.String("linha_digitavel", meta.LinhaDigitavel),
				slog.Any("warnings", warnings),
			)
		}
		res.TipoDocumento = DocumentoLinhaDigitavel
		res.LinhaDigitavel = meta.LinhaDigitavel
		res.Form = formFromMeta(meta, &empresaID, tipo, today, nome)
		if res.BoletoMeta, err = json.Marshal(meta); err != nil {
			return nil, fmt.Errorf("failed to encode boleto meta: %w", err)
		}

	case extractor.KindHeuristic:
		data := extraction.Heuristic
		res.TipoDocumento = string(data.Tipo)
		res.LinhaDigitavel = placeholder(data.Tipo)
		res.Form = formFromHeuristic(data, &empresaID, tipo, today, nome)
		if res.BoletoMeta, err = json.Marshal(data); err != nil {
			return nil, fmt.Errorf("failed to encode heuristic data: %w", err)
		}
	}

	anexo, err := s.attach(ctx, req)
	if err != nil {
		return nil, err
	}
	res.Form.Anexo = &anexo

	form, err := json.Marshal(res.Form)
	if err != nil {
		return nil, fmt.Errorf("failed to encode form: %w", err)
	}

	d := &repository.Draft{
		UsuarioID:      req.UsuarioID,
		EmpresaID:      &empresaID,
		LinhaDigitavel: res.LinhaDigitavel,
		BoletoMeta:     res.BoletoMeta,
		Formulario:     form,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return nil, err
	}
	res.DraftID = d.ID

	s.metrics.PDFImported(res.TipoDocumento)
	s.metrics.DraftCreated(sourcePDF)
	s.logger.InfoContext(ctx, "draft created",
		slog.Int64("draft_id", d.ID),
		slog.String("source", sourcePDF),
		slog.String("tipo_documento", res.TipoDocumento),
	)
	return res, nil
}

func (s *BoletoService) validateUpload(req ImportRequest) error {
	if len(req.Data) == 0 {
		return ErrUploadEmpty
	}
	if int64(len(req.Data)) > s.maxUploadBytes {
		return ErrUploadTooLarge
	}
	mediaType, _, err := mime.ParseMediaType(req.ContentType)
	if err != nil || mediaType != pdfContentType {
		return ErrUploadNotPDF
	}
	return nil
}

// attach keeps the PDF in storage when configured and inline otherwise.
func (s *BoletoService) attach(ctx context.Context, req ImportRequest) (string, error) {
	if s.storage == nil {
		return base64.StdEncoding.EncodeToString(req.Data), nil
	}

	filename := req.Filename
	if filename == "" {
		filename = "boleto.pdf"
	}
	info, err := s.storage.Upload(ctx, Namespace(req.EmpresaID), filename, pdfContentType, bytes.NewReader(req.Data))
	if err != nil {
		return "", fmt.Errorf("failed to store pdf: %w", err)
	}
	s.logger.DebugContext(ctx, "pdf stored",
		slog.String("file_id", info.ID.String()),
		slog.String("sha256", info.SHA256),
		slog.Int64("size", info.Size),
	)
	return StoragePrefix + info.ID.String(), nil
}

// Namespace is the storage namespace holding a company's documents.
func Namespace(empresaID int64) string {
	return "empresa-" + strconv.FormatInt(empresaID, 10)
}

// placeholder stands in for the linha digitável of slips that have none.
func placeholder(tipo extractor.DocumentType) string {
	if tipo == extractor.DocumentPix {
		return "PIX-" + uuid.NewString()
	}
	return "BOLETO-" + uuid.NewString()
}
