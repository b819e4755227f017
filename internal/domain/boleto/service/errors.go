package service

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput         = errors.New("invalid input")
	ErrUnrecognizedDocument = errors.New("document is not a recognizable boleto or pix slip")

	ErrUpload           = errors.New("invalid upload")
	ErrUploadEmpty      = fmt.Errorf("%w: no file received", ErrUpload)
	ErrUploadTooLarge   = fmt.Errorf("%w: file exceeds the size limit", ErrUpload)
	ErrUploadNotPDF     = fmt.Errorf("%w: only application/pdf is accepted", ErrUpload)
	ErrUploadUnreadable = fmt.Errorf("%w: pdf text could not be read", ErrUpload)
)

// previewLength bounds the text echoed back for unrecognized documents.
const previewLength = 500

// UnrecognizedError carries the start of the extracted text so the caller can
// see what the PDF actually contained.
type UnrecognizedError struct {
	Preview string
}

func newUnrecognizedError(text string) *UnrecognizedError {
	runes := []rune(text)
	if len(runes) > previewLength {
		runes = runes[:previewLength]
	}
	return &UnrecognizedError{Preview: string(runes)}
}

func (e *UnrecognizedError) Error() string {
	return ErrUnrecognizedDocument.Error()
}

func (e *UnrecognizedError) Is(target error) bool {
	return target == ErrUnrecognizedDocument
}
