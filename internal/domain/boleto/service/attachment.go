package service

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/FACorreiaa/boleto-drafts/internal/domain/boleto/repository"
	"github.com/FACorreiaa/boleto-drafts/pkg/storage"
)

var ErrAttachmentNotFound = errors.New("draft has no attachment")

// Attachment is the source PDF of an imported draft.
type Attachment struct {
	Body        io.ReadCloser
	Filename    string
	ContentType string
}

type attachmentRef struct {
	Anexo       *string `json:"anexo"`
	NomeArquivo *string `json:"nome_arquivo"`
}

// storedFile returns the storage id behind a draft's anexo, if it has one.
func storedFile(d *repository.Draft) (uuid.UUID, bool) {
	var ref attachmentRef
	if err := json.Unmarshal(d.Formulario, &ref); err != nil || ref.Anexo == nil {
		return uuid.Nil, false
	}
	raw, ok := strings.CutPrefix(*ref.Anexo, StoragePrefix)
	if !ok {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(raw)
	return id, err == nil
}

// GetAttachment opens the PDF a draft was imported from. Inline base64
// attachments are decoded; storage references are downloaded.
func (s *BoletoService) GetAttachment(ctx context.Context, draftID int64) (*Attachment, error) {
	d, err := s.repo.Get(ctx, draftID)
	if err != nil {
		return nil, err
	}

	var ref attachmentRef
	if err := json.Unmarshal(d.Formulario, &ref); err != nil || ref.Anexo == nil || *ref.Anexo == "" {
		return nil, ErrAttachmentNotFound
	}
	filename := "boleto.pdf"
	if ref.NomeArquivo != nil && *ref.NomeArquivo != "" {
		filename = *ref.NomeArquivo
	}

	if fileID, ok := storedFile(d); ok {
		if s.storage == nil || d.EmpresaID == nil {
			return nil, ErrAttachmentNotFound
		}
		body, info, err := s.storage.Download(ctx, Namespace(*d.EmpresaID), fileID)
		if errors.Is(err, storage.ErrFileNotFound) {
			return nil, fmt.Errorf("%w: %v", ErrAttachmentNotFound, err)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to download attachment: %w", err)
		}
		if ref.NomeArquivo == nil && info.Name != "" {
			filename = info.Name
		}
		return &Attachment{Body: body, Filename: filename, ContentType: pdfContentType}, nil
	}

	data, err := base64.StdEncoding.DecodeString(*ref.Anexo)
	if err != nil {
		return nil, fmt.Errorf("%w: anexo is not a pdf", ErrAttachmentNotFound)
	}
	return &Attachment{
		Body:        io.NopCloser(bytes.NewReader(data)),
		Filename:    filename,
		ContentType: pdfContentType,
	}, nil
}

// removeStoredFile drops the stored PDF of a deleted draft. Failures only
// leave an orphaned file behind, so they are logged and not returned.
func (s *BoletoService) removeStoredFile(ctx context.Context, d *repository.Draft) {
	fileID, ok := storedFile(d)
	if !ok || s.storage == nil || d.EmpresaID == nil {
		return
	}
	if err := s.storage.Delete(ctx, Namespace(*d.EmpresaID), fileID); err != nil && !errors.Is(err, storage.ErrFileNotFound) {
		s.logger.WarnContext(ctx, "failed to remove draft attachment",
			slog.Int64("draft_id", d.ID),
			slog.String("file_id", fileID.String()),
			slog.Any("error", err),
		)
	}
}
