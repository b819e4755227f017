// Package service orchestrates decoding, PDF import and the draft lifecycle
// of boleto payments.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"cloud.google.com/go/civil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/codec"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/extractor"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/repository"
	"github.com/FACorreiaa/boleto-drafts/internal/domain/ledger"
	"github.com/FACorreiaa/boleto-drafts/pkg/metrics"
	"github.com/FACorreiaa/boleto-drafts/pkg/pdftext"
	"github.com/FACorreiaa/boleto-drafts/pkg/storage"
)

const (
	// DefaultMaxUploadBytes caps PDF uploads.
	DefaultMaxUploadBytes int64 = 10 << 20

	sourceForm = "form"
	sourcePDF  = "pdf"
)

// BoletoService orchestrates decode, import and draft operations
type BoletoService struct {
	repo      repository.DraftRepository
	extractor *extractor.Extractor
	pdf       pdftext.Extractor
	storage   storage.Storage // optional: nil keeps attachments inline as base64
	metrics   *metrics.Metrics
	logger    *slog.Logger
	tracer    trace.Tracer

	now            func() time.Time
	location       *time.Location
	maxUploadBytes int64
}

// NewBoletoService creates a new boleto service
func NewBoletoService(repo repository.DraftRepository, logger *slog.Logger) *BoletoService {
	return &BoletoService{
		repo:           repo,
		extractor:      extractor.New(),
		pdf:            pdftext.New(logger),
		logger:         logger,
		tracer:         otel.Tracer("github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/service"),
		now:            time.Now,
		location:       saoPaulo(),
		maxUploadBytes: DefaultMaxUploadBytes,
	}
}

// WithStorage stores imported PDFs instead of inlining them in the form
func (s *BoletoService) WithStorage(st storage.Storage) *BoletoService {
	s.storage = st
	return s
}

// WithPDFReader replaces the PDF text extractor
func (s *BoletoService) WithPDFReader(pdf pdftext.Extractor) *BoletoService {
	s.pdf = pdf
	return s
}

func (s *BoletoService) WithMetrics(m *metrics.Metrics) *BoletoService {
	s.metrics = m
	return s
}

func (s *BoletoService) WithClock(now func() time.Time) *BoletoService {
	s.now = now
	return s
}

func (s *BoletoService) WithMaxUploadBytes(n int64) *BoletoService {
	if n > 0 {
		s.maxUploadBytes = n
	}
	return s
}

func (s *BoletoService) MaxUploadBytes() int64 {
	return s.maxUploadBytes
}

func saoPaulo() *time.Location {
	if loc, err := time.LoadLocation("America/Sao_Paulo"); err == nil {
		return loc
	}
	return time.FixedZone("BRT", -3*60*60)
}

// today is the business date in Brazil, which is what data_transacao means.
func (s *BoletoService) today() civil.Date {
	return civil.DateOf(s.now().In(s.location))
}

func (s *BoletoService) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "boleto."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// FormRequest asks for a prefilled form from a typed linha digitável
type FormRequest struct {
	LinhaDigitavel string
	EmpresaID      *int64
	Tipo           string
	NomeArquivo    *string
}

// FormResult is the decoded meta plus the form built from it
type FormResult struct {
	Form             FormularioTransacao
	Meta             *codec.BoletoMeta
	ChecksumWarnings []codec.ChecksumWarning
}

// BuildForm decodes a linha digitável and prefills the transaction form.
// Check digit mismatches are reported, never rejected.
func (s *BoletoService) BuildForm(ctx context.Context, req FormRequest) (res *FormResult, err error) {
	_, span := s.startSpan(ctx, "BuildForm")
	defer func() { endSpan(span, err) }()

	if req.LinhaDigitavel == "" {
		return nil, fmt.Errorf("%w: linha_digitavel is required", ErrInvalidInput)
	}
	tipo, err := parseTipo(req.Tipo)
	if err != nil {
		return nil, err
	}

	meta, err := codec.Decode(req.LinhaDigitavel)
	if err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.String("boleto.bank_code", meta.BankCode))

	return &FormResult{
		Form:             formFromMeta(meta, req.EmpresaID, tipo, s.today(), req.NomeArquivo),
		Meta:             meta,
		ChecksumWarnings: codec.Verify(meta),
	}, nil
}

// SaveDraftRequest creates a draft, or updates one in place when DraftID is set
type SaveDraftRequest struct {
	DraftID        *int64
	UsuarioID      *int64
	EmpresaID      *int64
	LinhaDigitavel string
	BoletoMeta     json.RawMessage
	Form           json.RawMessage
	NomeArquivo    *string
}

// SaveDraft is idempotent per draft id: saving again with the same id
// overwrites the stored form instead of adding a row.
func (s *BoletoService) SaveDraft(ctx context.Context, req SaveDraftRequest) (id int64, created bool, err error) {
	ctx, span := s.startSpan(ctx, "SaveDraft")
	defer func() { endSpan(span, err) }()

	if err := validJSON("boleto_meta", req.BoletoMeta); err != nil {
		return 0, false, err
	}
	if err := validJSON("form", req.Form); err != nil {
		return 0, false, err
	}
	form, err := withNomeArquivo(req.Form, req.NomeArquivo)
	if err != nil {
		return 0, false, err
	}

	if req.DraftID != nil {
		span.SetAttributes(attribute.Int64("draft.id", *req.DraftID))
		changes := repository.DraftChanges{BoletoMeta: req.BoletoMeta, Formulario: form}
		if req.LinhaDigitavel != "" {
			changes.LinhaDigitavel = &req.LinhaDigitavel
		}
		if _, err := s.repo.Update(ctx, *req.DraftID, changes); err != nil {
			return 0, false, err
		}
		return *req.DraftID, false, nil
	}

	if req.LinhaDigitavel == "" {
		return 0, false, fmt.Errorf("%w: linha_digitavel is required", ErrInvalidInput)
	}

	d := &repository.Draft{
		UsuarioID:      req.UsuarioID,
		EmpresaID:      req.EmpresaID,
		LinhaDigitavel: req.LinhaDigitavel,
		BoletoMeta:     req.BoletoMeta,
		Formulario:     form,
	}
	if err := s.repo.Create(ctx, d); err != nil {
		return 0, false, err
	}
	s.metrics.DraftCreated(sourceForm)
	span.SetAttributes(attribute.Int64("draft.id", d.ID))

	s.logger.InfoContext(ctx, "draft created",
		slog.Int64("draft_id", d.ID),
		slog.String("source", sourceForm),
	)
	return d.ID, true, nil
}

// UpdateForm replaces the form (and optionally the meta) of a rascunho
func (s *BoletoService) UpdateForm(ctx context.Context, id int64, form, meta json.RawMessage) (*repository.Draft, error) {
	if len(form) == 0 {
		return nil, fmt.Errorf("%w: form is required", ErrInvalidInput)
	}
	if err := validJSON("form", form); err != nil {
		return nil, err
	}
	if err := validJSON("boleto_meta", meta); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, id, repository.DraftChanges{Formulario: form, BoletoMeta: meta})
}

// GetDraft retrieves a draft by id
func (s *BoletoService) GetDraft(ctx context.Context, id int64) (*repository.Draft, error) {
	return s.repo.Get(ctx, id)
}

// ListDrafts lists a company's drafts
func (s *BoletoService) ListDrafts(ctx context.Context, filter repository.ListFilter) ([]*repository.Draft, error) {
	if filter.EmpresaID <= 0 {
		return nil, fmt.Errorf("%w: company_id is required", ErrInvalidInput)
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *filter.Status)
	}
	return s.repo.List(ctx, filter)
}

// LatestDraft returns the rascunho to resume, or nil when there is none
func (s *BoletoService) LatestDraft(ctx context.Context, usuarioID, empresaID *int64) (*repository.Draft, error) {
	d, err := s.repo.Latest(ctx, usuarioID, empresaID)
	if errors.Is(err, repository.ErrDraftNotFound) {
		return nil, nil
	}
	return d, err
}

// DeleteDraft removes a rascunho along with its stored PDF
func (s *BoletoService) DeleteDraft(ctx context.Context, id int64) error {
	d, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.removeStoredFile(ctx, d)
	return nil
}

// Finalize writes the draft's form to the ledger and locks the draft
func (s *BoletoService) Finalize(ctx context.Context, id int64) (transacaoID int64, err error) {
	ctx, span := s.startSpan(ctx, "Finalize", attribute.Int64("draft.id", id))
	defer func() { endSpan(span, err) }()

	today := s.today()
	transacaoID, err = s.repo.Finalize(ctx, id, func(d *repository.Draft) (ledger.Entry, error) {
		entry, err := entryFromForm(d.Formulario, d.EmpresaID, d.LinhaDigitavel, today)
		if err != nil {
			return ledger.Entry{}, err
		}
		entry.UsuarioID = d.UsuarioID
		return entry, nil
	})
	if err != nil {
		s.logger.WarnContext(ctx, "finalize failed",
			slog.Int64("draft_id", id),
			slog.Any("error", err),
		)
		return 0, err
	}

	s.metrics.DraftFinalized()
	s.logger.InfoContext(ctx, "draft finalized",
		slog.Int64("draft_id", id),
		slog.Int64("transacao_id", transacaoID),
	)
	return transacaoID, nil
}

// PurgeStale removes rascunhos untouched for longer than retention
func (s *BoletoService) PurgeStale(ctx context.Context, retention time.Duration) (int64, error) {
	if retention <= 0 {
		return 0, nil
	}
	n, err := s.repo.PurgeStale(ctx, s.now().Add(-retention))
	if err != nil {
		return 0, err
	}
	s.metrics.DraftsPurged(n)
	return n, nil
}

func validJSON(field string, raw json.RawMessage) error {
	if len(raw) > 0 && !json.Valid(raw) {
		return fmt.Errorf("%w: %s is not valid JSON", ErrInvalidInput, field)
	}
	return nil
}
